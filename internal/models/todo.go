package models

import (
	"fmt"
	"strings"
	"time"
)

// TodoKind is the closed set of todo variants.
type TodoKind string

const (
	TodoStandard TodoKind = "STANDARD"
	TodoDeadline TodoKind = "DEADLINE"
	TodoSaving   TodoKind = "SAVING"
)

// ParseTodoKind accepts any casing and defaults to standard when raw is empty.
func ParseTodoKind(raw string) (TodoKind, error) {
	if raw == "" {
		return TodoStandard, nil
	}
	switch kind := TodoKind(strings.ToUpper(strings.TrimSpace(raw))); kind {
	case TodoStandard, TodoDeadline, TodoSaving:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown todo type %q", raw)
	}
}

// Completion statuses reported per kind.
const (
	StatusPending       = "PENDING"
	StatusCompleted     = "COMPLETED"
	StatusCompletedLate = "COMPLETED_LATE"
	StatusFailed        = "FAILED"
	StatusInProgress    = "IN_PROGRESS"
	StatusGoalReached   = "GOAL_REACHED"
)

// Todo is a task inside a collection. DueDate applies to deadline todos and the
// amounts, in cents, to saving todos.
type Todo struct {
	ID           string     `db:"id" json:"id"`
	CollectionID string     `db:"collection_id" json:"collectionId"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	Completed    bool       `db:"completed" json:"completed"`
	Kind         TodoKind   `db:"kind" json:"type"`
	DueDate      *time.Time `db:"due_date" json:"dueDate,omitempty"`
	TargetCents  *int64     `db:"target_cents" json:"targetCents,omitempty"`
	CurrentCents int64      `db:"current_cents" json:"currentCents"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// CompletionStatus reports the todo state as of now.
func (t *Todo) CompletionStatus(now time.Time) string {
	switch t.Kind {
	case TodoDeadline:
		late := t.deadlinePassed(now)
		switch {
		case t.Completed && late:
			return StatusCompletedLate
		case t.Completed:
			return StatusCompleted
		case late:
			return StatusFailed
		default:
			return StatusPending
		}
	case TodoSaving:
		if t.Completed || t.ShouldAutoComplete() {
			return StatusGoalReached
		}
		return StatusInProgress
	default:
		if t.Completed {
			return StatusCompleted
		}
		return StatusPending
	}
}

// ShouldAutoComplete is true only for saving todos whose goal is met.
func (t *Todo) ShouldAutoComplete() bool {
	switch t.Kind {
	case TodoSaving:
		return t.TargetCents != nil && t.CurrentCents >= *t.TargetCents
	case TodoStandard, TodoDeadline:
		return false
	default:
		return false
	}
}

// ProgressPercent is the saved share of the target, 0 for other kinds.
func (t *Todo) ProgressPercent() float64 {
	if t.Kind != TodoSaving || t.TargetCents == nil || *t.TargetCents <= 0 {
		return 0
	}
	return float64(t.CurrentCents) * 100 / float64(*t.TargetCents)
}

// deadlinePassed compares calendar days, so a todo due today is not late.
func (t *Todo) deadlinePassed(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	due := t.DueDate.UTC()
	today := now.UTC()
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return today.After(dueDay.Add(24*time.Hour - time.Nanosecond))
}

// TodoView is the response shape: the todo plus its derived status.
type TodoView struct {
	Todo
	Status          string  `json:"status"`
	ProgressPercent float64 `json:"progressPercent,omitempty"`
}

// View derives the response shape as of now.
func (t *Todo) View(now time.Time) TodoView {
	return TodoView{Todo: *t, Status: t.CompletionStatus(now), ProgressPercent: t.ProgressPercent()}
}
