package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/todo-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "todo", Password: "secret", Name: "todoapp", SSLMode: "require"})
	assert.Equal(t, "host=db port=5433 user=todo password=secret dbname=todoapp sslmode=require", dsn)
}
