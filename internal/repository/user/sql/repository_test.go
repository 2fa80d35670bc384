package sql

import (
	"context"
	"testing"

	"github.com/sharetube/watchparty/internal/repository/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestGetUser(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	r := NewRepo(db)
	require.NoError(t, r.Migrate())

	ctx := context.Background()
	require.NoError(t, r.CreateUser(ctx, user.User{Id: "u1", Name: "Alice", Avatar: "a.png"}))

	u, err := r.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, user.User{Id: "u1", Name: "Alice", Avatar: "a.png"}, u)

	_, err = r.GetUser(ctx, "u2")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}
