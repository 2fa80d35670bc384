package sql

import (
	"context"
	"testing"

	"github.com/sharetube/watchparty/internal/repository/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *repo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	r := NewRepo(db)
	require.NoError(t, r.Migrate())

	return r
}

func TestGetItem(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.db.Create(&movieModel{ID: "movie-1", Name: "Spirited Away", PosterURL: "https://img/1.jpg"}).Error)
	require.NoError(t, r.db.Create(&[]episodeModel{
		{MovieID: "movie-1", Slug: "full", Name: "Full", LinkM3U8: "https://cdn/1.m3u8"},
		{MovieID: "movie-2", Slug: "ep-1", Name: "Episode 1"},
	}).Error)

	item, err := r.GetItem(ctx, "movie-1")
	require.NoError(t, err)
	assert.Equal(t, "Spirited Away", item.Name)
	assert.Equal(t, "https://img/1.jpg", item.PosterUrl)
	require.Len(t, item.Episodes, 1)
	assert.Equal(t, "full", item.Episodes[0].Slug)
	assert.Equal(t, "https://cdn/1.m3u8", item.Episodes[0].LinkM3U8)

	_, err = r.GetItem(ctx, "missing")
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)
}

func TestCreateItem(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.CreateItem(ctx, catalog.Item{
		Id:   "show-1",
		Name: "Mushishi",
		Episodes: []catalog.Episode{
			{Slug: "ep-1", Name: "The Green Seat"},
			{Slug: "ep-2", Name: "The Light of the Eyelid"},
		},
	}))

	item, err := r.GetItem(ctx, "show-1")
	require.NoError(t, err)
	require.Len(t, item.Episodes, 2)
	assert.Equal(t, "ep-1", item.Episodes[0].Slug)
	assert.Equal(t, "ep-2", item.Episodes[1].Slug)
	assert.NotEqual(t, item.Episodes[0].Id, item.Episodes[1].Id)

	assert.Error(t, r.CreateItem(ctx, catalog.Item{Id: "show-1", Name: "again"}))
}
