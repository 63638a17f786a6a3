package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/todo-api/internal/models"
)

// SecurityEventRepository persists the audit trail.
type SecurityEventRepository struct {
	db *sqlx.DB
}

func NewSecurityEventRepository(db *sqlx.DB) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

func (r *SecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO security_events (id, event, actor, outcome, detail, ip_address, user_agent, path, created_at) VALUES (:id, :event, :actor, :outcome, :detail, :ip_address, :user_agent, :path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create security event: %w", err)
	}
	return nil
}
