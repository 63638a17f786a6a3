package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/todo-api/internal/models"
	"github.com/noah-isme/todo-api/internal/security"
	appErrors "github.com/noah-isme/todo-api/pkg/errors"
)

type collectionRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Collection, error)
	FindByIDAndUser(ctx context.Context, id, userID string) (*models.Collection, error)
	Create(ctx context.Context, collection *models.Collection) error
	Update(ctx context.Context, collection *models.Collection) error
	Delete(ctx context.Context, id, userID string) error
}

// CollectionRequest is the create and update payload for collections.
type CollectionRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// CollectionService manages the todo collections of one user at a time.
type CollectionService struct {
	repo      collectionRepository
	inputs    *textGuard
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCollectionService creates a new collection service instance.
func NewCollectionService(repo collectionRepository, events SecurityEventRecorder, validate *validator.Validate, logger *zap.Logger) *CollectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionService{repo: repo, inputs: newTextGuard(events), validator: validate, logger: logger}
}

// List returns every collection owned by userID.
func (s *CollectionService) List(ctx context.Context, userID string) ([]models.Collection, error) {
	collections, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list collections")
	}
	return collections, nil
}

// Get returns a collection owned by userID. Collections of other users are reported as missing.
func (s *CollectionService) Get(ctx context.Context, userID, id string) (*models.Collection, error) {
	collection, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "collection not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load collection")
	}
	return collection, nil
}

// Create validates and sanitizes the payload before persisting it.
func (s *CollectionService) Create(ctx context.Context, userID string, req CollectionRequest) (*models.Collection, error) {
	name, description, err := s.clean(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	collection := &models.Collection{UserID: userID, Name: name, Description: description}
	if err := s.repo.Create(ctx, collection); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create collection")
	}
	return collection, nil
}

// Update replaces name and description of an owned collection.
func (s *CollectionService) Update(ctx context.Context, userID, id string, req CollectionRequest) (*models.Collection, error) {
	name, description, err := s.clean(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	collection, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	collection.Name = name
	collection.Description = description

	if err := s.repo.Update(ctx, collection); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "collection not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update collection")
	}
	return collection, nil
}

// Delete removes an owned collection together with its todos.
func (s *CollectionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "collection not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete collection")
	}
	return nil
}

func (s *CollectionService) clean(ctx context.Context, userID string, req CollectionRequest) (string, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "name is required")
	}
	name, err := s.inputs.required(ctx, userID, "name", req.Name, security.FieldTitle)
	if err != nil {
		return "", "", err
	}
	description, err := s.inputs.optional(ctx, userID, "description", req.Description, security.FieldDescription)
	if err != nil {
		return "", "", err
	}
	return name, description, nil
}

// textGuard runs secure validation on free-text business fields and sanitizes accepted values.
type textGuard struct {
	validator *security.InputValidator
	events    SecurityEventRecorder
}

func newTextGuard(events SecurityEventRecorder) *textGuard {
	if events == nil {
		events = nopRecorder{}
	}
	return &textGuard{validator: security.NewInputValidator(), events: events}
}

func (g *textGuard) required(ctx context.Context, actor, label, value string, kind security.FieldKind) (string, error) {
	if res := g.validator.ValidateSecurely(value, kind); !res.Valid {
		if res.Reason == security.ReasonInjection || res.Reason == security.ReasonSQL {
			g.events.Record(ctx, models.SecurityEvent{
				Event:   security.EventInputRejected,
				Actor:   actor,
				Outcome: security.OutcomeBlocked,
				Detail:  label + ": " + res.Reason,
			})
		}
		return "", appErrors.Clone(appErrors.ErrValidation, "Invalid "+label+": "+res.Reason)
	}
	return g.validator.Sanitize(value), nil
}

// optional accepts an empty value as-is.
func (g *textGuard) optional(ctx context.Context, actor, label, value string, kind security.FieldKind) (string, error) {
	if value == "" {
		return "", nil
	}
	return g.required(ctx, actor, label, value, kind)
}
