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

const collectionColumns = `id, user_id, name, description, created_at, updated_at`

// CollectionRepository stores todo collections. Every lookup is scoped to the owner.
type CollectionRepository struct {
	db *sqlx.DB
}

func NewCollectionRepository(db *sqlx.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

func (r *CollectionRepository) ListByUser(ctx context.Context, userID string) ([]models.Collection, error) {
	const query = `SELECT ` + collectionColumns + ` FROM collections WHERE user_id = $1 ORDER BY created_at ASC`
	collections := []models.Collection{}
	if err := r.db.SelectContext(ctx, &collections, query, userID); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return collections, nil
}

// FindByIDAndUser returns sql.ErrNoRows when the collection is missing or owned by someone else.
func (r *CollectionRepository) FindByIDAndUser(ctx context.Context, id, userID string) (*models.Collection, error) {
	const query = `SELECT ` + collectionColumns + ` FROM collections WHERE id = $1 AND user_id = $2 LIMIT 1`
	var collection models.Collection
	if err := r.db.GetContext(ctx, &collection, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find collection: %w", err)
	}
	return &collection, nil
}

func (r *CollectionRepository) Create(ctx context.Context, collection *models.Collection) error {
	if collection.ID == "" {
		collection.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	collection.CreatedAt = now
	collection.UpdatedAt = now

	const query = `INSERT INTO collections (` + collectionColumns + `) VALUES (:id, :user_id, :name, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, collection); err != nil {
		return fmt.Errorf("create collection: %w", mapWriteError(err))
	}
	return nil
}

// Update rewrites name and description. It returns sql.ErrNoRows when nothing matched.
func (r *CollectionRepository) Update(ctx context.Context, collection *models.Collection) error {
	collection.UpdatedAt = time.Now().UTC()
	const query = `UPDATE collections SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, collection)
	if err != nil {
		return fmt.Errorf("update collection: %w", err)
	}
	return requireAffected(res)
}

// Delete removes the collection; todos go with it through the foreign key.
func (r *CollectionRepository) Delete(ctx context.Context, id, userID string) error {
	const query = `DELETE FROM collections WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
