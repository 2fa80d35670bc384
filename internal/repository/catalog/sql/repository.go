package sql

import (
	"context"
	"errors"
	"strconv"

	"github.com/sharetube/watchparty/internal/repository/catalog"
	"gorm.io/gorm"
)

// repo reads movies and their episodes. The tables are owned by the
// catalog service; this repository never writes to them outside Migrate.
type repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *repo {
	return &repo{db: db}
}

func (r *repo) Migrate() error {
	return r.db.AutoMigrate(&movieModel{}, &episodeModel{})
}

func (r *repo) GetItem(ctx context.Context, itemId string) (catalog.Item, error) {
	var movie movieModel
	if err := r.db.WithContext(ctx).Where("id = ?", itemId).First(&movie).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return catalog.Item{}, catalog.ErrItemNotFound
		}
		return catalog.Item{}, err
	}

	var episodes []episodeModel
	if err := r.db.WithContext(ctx).
		Where("movie_id = ?", itemId).
		Order("id ASC").
		Find(&episodes).Error; err != nil {
		return catalog.Item{}, err
	}

	item := catalog.Item{
		Id:         movie.ID,
		Name:       movie.Name,
		OriginName: movie.OriginName,
		PosterUrl:  movie.PosterURL,
		Episodes:   make([]catalog.Episode, 0, len(episodes)),
	}
	for _, ep := range episodes {
		item.Episodes = append(item.Episodes, catalog.Episode{
			Id:        strconv.FormatUint(uint64(ep.ID), 10),
			Slug:      ep.Slug,
			Name:      ep.Name,
			Filename:  ep.Filename,
			LinkEmbed: ep.LinkEmbed,
			LinkM3U8:  ep.LinkM3U8,
		})
	}

	return item, nil
}

// CreateItem inserts a movie with its episodes. It exists for seeding
// and tests.
func (r *repo) CreateItem(ctx context.Context, item catalog.Item) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&movieModel{
			ID:         item.Id,
			Name:       item.Name,
			OriginName: item.OriginName,
			PosterURL:  item.PosterUrl,
		}).Error; err != nil {
			return err
		}

		for _, ep := range item.Episodes {
			if err := tx.Create(&episodeModel{
				MovieID:   item.Id,
				Slug:      ep.Slug,
				Name:      ep.Name,
				Filename:  ep.Filename,
				LinkEmbed: ep.LinkEmbed,
				LinkM3U8:  ep.LinkM3U8,
			}).Error; err != nil {
				return err
			}
		}

		return nil
	})
}
