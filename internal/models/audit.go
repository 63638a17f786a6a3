package models

import "time"

// SecurityEvent is one entry of the authentication and request-defense audit trail.
type SecurityEvent struct {
	ID        string    `db:"id" json:"id"`
	Event     string    `db:"event" json:"event"`
	Actor     string    `db:"actor" json:"actor"`
	Outcome   string    `db:"outcome" json:"outcome"`
	Detail    string    `db:"detail" json:"detail,omitempty"`
	IPAddress string    `db:"ip_address" json:"ipAddress"`
	UserAgent string    `db:"user_agent" json:"userAgent"`
	Path      string    `db:"path" json:"path,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
