package models

import "time"

// RegisterRequest is the sign-up payload.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	IP              string `json:"-"`
	UserAgent       string `json:"-"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// LogoutRequest optionally carries the refresh token to revoke alongside the access token.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
	AccessToken  string `json:"-"`
	Username     string `json:"-"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// AuthResponse returns the issued tokens and user info.
type AuthResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresIn    int64     `json:"expiresIn"`
	IssuedAt     time.Time `json:"issuedAt"`
	User         UserInfo  `json:"user"`
}
