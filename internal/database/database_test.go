package database_test

import (
	"errors"
	"testing"

	"github.com/finmate/finmate/internal/config"
	"github.com/finmate/finmate/internal/database"
	"github.com/finmate/finmate/pkg/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteMigrates(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{
		Driver:      "sqlite",
		DSN:         "file:" + t.Name() + "?mode=memory&cache=shared",
		AutoMigrate: true,
	})
	require.NoError(t, err)

	for _, m := range models.AllModels() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
	assert.True(t, db.Migrator().HasTable("article_likes"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := database.Open(config.DatabaseConfig{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	db, err := database.NewSQLiteDB("file:"+t.Name()+"?mode=memory&cache=shared", false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	u := models.User{Username: "dup", Nickname: "dup", PasswordHash: "x"}
	require.NoError(t, db.Create(&u).Error)
	u2 := models.User{Username: "dup", Nickname: "other", PasswordHash: "x"}
	err = db.Create(&u2).Error
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))

	assert.True(t, database.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, database.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, database.IsUniqueViolation(errors.New("boom")))
	assert.False(t, database.IsUniqueViolation(nil))
}
