package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/todo-api/internal/models"
	"github.com/noah-isme/todo-api/internal/security"
	appErrors "github.com/noah-isme/todo-api/pkg/errors"
)

const dueDateLayout = "2006-01-02"

// maxAmount caps every money field so the cent value stays far inside int64.
const (
	maxAmount = 1e13
	maxCents  = int64(maxAmount * 100)
)

type todoRepository interface {
	ListByCollection(ctx context.Context, collectionID string) ([]models.Todo, error)
	FindByIDAndUser(ctx context.Context, id, userID string) (*models.Todo, error)
	Create(ctx context.Context, todo *models.Todo) error
	Update(ctx context.Context, todo *models.Todo) error
	Delete(ctx context.Context, id, userID string) error
}

type todoCollectionLookup interface {
	FindByIDAndUser(ctx context.Context, id, userID string) (*models.Collection, error)
}

// CreateTodoRequest is the payload for adding a todo. DueDate applies to deadline todos,
// the amounts to saving todos.
type CreateTodoRequest struct {
	Title         string   `json:"title" validate:"required"`
	Description   string   `json:"description"`
	Type          string   `json:"type"`
	DueDate       string   `json:"dueDate"`
	TargetAmount  *float64 `json:"targetAmount" validate:"omitempty,gt=0,lte=1e13"`
	CurrentAmount *float64 `json:"currentAmount" validate:"omitempty,gte=0,lte=1e13"`
}

// UpdateTodoRequest replaces title and description. Nil or empty optional fields keep their value.
type UpdateTodoRequest struct {
	Title         string   `json:"title" validate:"required"`
	Description   string   `json:"description"`
	Completed     *bool    `json:"completed"`
	Type          string   `json:"type"`
	DueDate       *string  `json:"dueDate"`
	TargetAmount  *float64 `json:"targetAmount" validate:"omitempty,gt=0,lte=1e13"`
	CurrentAmount *float64 `json:"currentAmount" validate:"omitempty,gte=0,lte=1e13"`
}

// AddMoneyRequest deposits into a saving todo.
type AddMoneyRequest struct {
	Amount float64 `json:"amount" validate:"gt=0,lte=1e13"`
}

// TodoService handles todo workflows. Ownership is always checked through the parent collection.
type TodoService struct {
	repo        todoRepository
	collections todoCollectionLookup
	inputs      *textGuard
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewTodoService creates a new todo service instance.
func NewTodoService(repo todoRepository, collections todoCollectionLookup, events SecurityEventRecorder, validate *validator.Validate, logger *zap.Logger) *TodoService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TodoService{
		repo:        repo,
		collections: collections,
		inputs:      newTextGuard(events),
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns the todos of an owned collection with their derived status.
func (s *TodoService) List(ctx context.Context, userID, collectionID string) ([]models.TodoView, error) {
	if err := s.ownCollection(ctx, userID, collectionID); err != nil {
		return nil, err
	}
	todos, err := s.repo.ListByCollection(ctx, collectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list todos")
	}

	now := s.now()
	views := make([]models.TodoView, 0, len(todos))
	for i := range todos {
		views = append(views, todos[i].View(now))
	}
	return views, nil
}

// Create adds a todo to an owned collection.
func (s *TodoService) Create(ctx context.Context, userID, collectionID string, req CreateTodoRequest) (*models.TodoView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid todo payload")
	}
	kind, err := models.ParseTodoKind(req.Type)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be one of STANDARD, DEADLINE, SAVING")
	}
	title, description, err := s.cleanText(ctx, userID, req.Title, req.Description)
	if err != nil {
		return nil, err
	}
	if err := s.ownCollection(ctx, userID, collectionID); err != nil {
		return nil, err
	}

	todo := &models.Todo{CollectionID: collectionID, Title: title, Description: description, Kind: kind}
	switch kind {
	case models.TodoDeadline:
		if req.DueDate != "" {
			due, err := parseDueDate(req.DueDate)
			if err != nil {
				return nil, err
			}
			todo.DueDate = due
		}
	case models.TodoSaving:
		if req.TargetAmount != nil {
			target := toCents(*req.TargetAmount)
			todo.TargetCents = &target
		}
		if req.CurrentAmount != nil {
			todo.CurrentCents = toCents(*req.CurrentAmount)
		}
	case models.TodoStandard:
	}
	if todo.ShouldAutoComplete() {
		todo.Completed = true
	}

	if err := s.repo.Create(ctx, todo); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create todo")
	}
	view := todo.View(s.now())
	return &view, nil
}

// Update modifies an owned todo and applies auto-completion.
func (s *TodoService) Update(ctx context.Context, userID, id string, req UpdateTodoRequest) (*models.TodoView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid todo payload")
	}
	title, description, err := s.cleanText(ctx, userID, req.Title, req.Description)
	if err != nil {
		return nil, err
	}

	todo, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	todo.Title = title
	todo.Description = description
	if req.Completed != nil {
		todo.Completed = *req.Completed
	}
	if req.Type != "" {
		kind, err := models.ParseTodoKind(req.Type)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "type must be one of STANDARD, DEADLINE, SAVING")
		}
		todo.Kind = kind
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			todo.DueDate = nil
		} else {
			due, err := parseDueDate(*req.DueDate)
			if err != nil {
				return nil, err
			}
			todo.DueDate = due
		}
	}
	if req.TargetAmount != nil {
		target := toCents(*req.TargetAmount)
		todo.TargetCents = &target
	}
	if req.CurrentAmount != nil {
		todo.CurrentCents = toCents(*req.CurrentAmount)
	}
	if todo.ShouldAutoComplete() {
		todo.Completed = true
	}

	return s.save(ctx, todo, "failed to update todo")
}

// Complete marks an owned todo as done. Every kind may be completed manually.
func (s *TodoService) Complete(ctx context.Context, userID, id string) (*models.TodoView, error) {
	todo, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	todo.Completed = true
	return s.save(ctx, todo, "failed to complete todo")
}

// AddMoney deposits into a saving todo and completes it once the target is reached.
func (s *TodoService) AddMoney(ctx context.Context, userID, id string, req AddMoneyRequest) (*models.TodoView, error) {
	if err := s.validator.Struct(req); err != nil || math.IsInf(req.Amount, 0) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be greater than zero and at most 10000000000000")
	}
	todo, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if todo.Kind != models.TodoSaving {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only saving todos accept deposits")
	}

	deposit := toCents(req.Amount)
	if todo.CurrentCents > maxCents-deposit {
		return nil, appErrors.Clone(appErrors.ErrValidation, "deposit exceeds the maximum balance")
	}
	todo.CurrentCents += deposit
	if todo.ShouldAutoComplete() {
		todo.Completed = true
	}
	return s.save(ctx, todo, "failed to add money")
}

// Delete removes an owned todo.
func (s *TodoService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "todo not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete todo")
	}
	return nil
}

func (s *TodoService) find(ctx context.Context, userID, id string) (*models.Todo, error) {
	todo, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "todo not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load todo")
	}
	return todo, nil
}

func (s *TodoService) save(ctx context.Context, todo *models.Todo, failure string) (*models.TodoView, error) {
	if err := s.repo.Update(ctx, todo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "todo not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, failure)
	}
	view := todo.View(s.now())
	return &view, nil
}

func (s *TodoService) ownCollection(ctx context.Context, userID, collectionID string) error {
	if _, err := s.collections.FindByIDAndUser(ctx, collectionID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "collection not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load collection")
	}
	return nil
}

func (s *TodoService) cleanText(ctx context.Context, userID, title, description string) (string, string, error) {
	cleanTitle, err := s.inputs.required(ctx, userID, "title", title, security.FieldTitle)
	if err != nil {
		return "", "", err
	}
	cleanDescription, err := s.inputs.optional(ctx, userID, "description", description, security.FieldDescription)
	if err != nil {
		return "", "", err
	}
	return cleanTitle, cleanDescription, nil
}

func parseDueDate(raw string) (*time.Time, error) {
	due, err := time.Parse(dueDateLayout, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dueDate must use YYYY-MM-DD")
	}
	return &due, nil
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
