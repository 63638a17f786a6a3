package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/todo-api/internal/models"
)

const todoColumns = `t.id, t.collection_id, t.title, t.description, t.completed, t.kind, t.due_date, t.target_cents, t.current_cents, t.created_at, t.updated_at`

// TodoRepository stores todos. Ownership is resolved through the parent collection.
type TodoRepository struct {
	db *sqlx.DB
}

func NewTodoRepository(db *sqlx.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

func (r *TodoRepository) ListByCollection(ctx context.Context, collectionID string) ([]models.Todo, error) {
	const query = `SELECT ` + todoColumns + ` FROM todos t WHERE t.collection_id = $1 ORDER BY t.created_at ASC`
	todos := []models.Todo{}
	if err := r.db.SelectContext(ctx, &todos, query, collectionID); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// FindByIDAndUser returns sql.ErrNoRows unless the todo sits in a collection owned by userID.
func (r *TodoRepository) FindByIDAndUser(ctx context.Context, id, userID string) (*models.Todo, error) {
	const query = `SELECT ` + todoColumns + ` FROM todos t JOIN collections c ON c.id = t.collection_id WHERE t.id = $1 AND c.user_id = $2 LIMIT 1`
	var todo models.Todo
	if err := r.db.GetContext(ctx, &todo, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find todo: %w", err)
	}
	return &todo, nil
}

func (r *TodoRepository) Create(ctx context.Context, todo *models.Todo) error {
	if todo.ID == "" {
		todo.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	todo.CreatedAt = now
	todo.UpdatedAt = now

	const query = `INSERT INTO todos (id, collection_id, title, description, completed, kind, due_date, target_cents, current_cents, created_at, updated_at) VALUES (:id, :collection_id, :title, :description, :completed, :kind, :due_date, :target_cents, :current_cents, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, todo); err != nil {
		return fmt.Errorf("create todo: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a todo already checked for ownership.
func (r *TodoRepository) Update(ctx context.Context, todo *models.Todo) error {
	todo.UpdatedAt = time.Now().UTC()
	const query = `UPDATE todos SET title = :title, description = :description, completed = :completed, due_date = :due_date, target_cents = :target_cents, current_cents = :current_cents, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, todo)
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}
	return requireAffected(res)
}

func (r *TodoRepository) Delete(ctx context.Context, id, userID string) error {
	const query = `DELETE FROM todos t USING collections c WHERE t.id = $1 AND c.id = t.collection_id AND c.user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return requireAffected(res)
}
