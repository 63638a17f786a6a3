package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/todo-api/internal/models"
)

var todoRowColumns = []string{"id", "collection_id", "title", "description", "completed", "kind", "due_date", "target_cents", "current_cents", "created_at", "updated_at"}

func TestCollectionLifecycle(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCollectionRepository(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, name, description, created_at, updated_at FROM collections WHERE user_id = $1 ORDER BY created_at ASC")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "description", "created_at", "updated_at"}).
			AddRow("c1", "u1", "Groceries", "", now, now))
	mock.ExpectExec("INSERT INTO collections").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE collections SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM collections WHERE id = $1 AND user_id = $2")).
		WithArgs("c1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Groceries", list[0].Name)

	created := &models.Collection{UserID: "u1", Name: "Work"}
	require.NoError(t, repo.Create(ctx, created))
	assert.NotEmpty(t, created.ID)

	err = repo.Update(ctx, &models.Collection{ID: "other", UserID: "u1", Name: "x"})
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, repo.Delete(ctx, "c1", "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTodoFindScopedToOwner(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTodoRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM todos t JOIN collections c ON c.id = t.collection_id WHERE t.id = $1 AND c.user_id = $2 LIMIT 1")).
		WithArgs("t1", "u1").
		WillReturnRows(sqlmock.NewRows(todoRowColumns).
			AddRow("t1", "c1", "Save for bike", "", false, "SAVING", nil, int64(50000), int64(1200), now, now))
	mock.ExpectQuery("FROM todos t JOIN collections c").
		WithArgs("t1", "intruder").
		WillReturnError(sql.ErrNoRows)

	todo, err := repo.FindByIDAndUser(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.TodoSaving, todo.Kind)
	require.NotNil(t, todo.TargetCents)
	assert.EqualValues(t, 50000, *todo.TargetCents)
	assert.Nil(t, todo.DueDate)

	_, err = repo.FindByIDAndUser(context.Background(), "t1", "intruder")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTodoWrites(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTodoRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM todos t WHERE t.collection_id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(todoRowColumns))
	mock.ExpectExec("INSERT INTO todos").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE todos SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM todos t USING collections c")).
		WithArgs("t1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	todos, err := repo.ListByCollection(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, todos)
	assert.NotNil(t, todos)

	todo := &models.Todo{CollectionID: "c1", Title: "Milk", Kind: models.TodoStandard}
	require.NoError(t, repo.Create(ctx, todo))
	assert.NotEmpty(t, todo.ID)

	todo.Completed = true
	require.NoError(t, repo.Update(ctx, todo))

	assert.ErrorIs(t, repo.Delete(ctx, "t1", "u1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
