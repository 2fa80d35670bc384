package sql

import (
	"context"
	"errors"

	"github.com/sharetube/watchparty/internal/repository/user"
	"gorm.io/gorm"
)

type userModel struct {
	ID     string `gorm:"primaryKey;type:varchar(64)"`
	Name   string `gorm:"type:varchar(100);not null"`
	Avatar string `gorm:"type:varchar(512)"`
}

func (userModel) TableName() string {
	return "users"
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *repo {
	return &repo{db: db}
}

func (r *repo) Migrate() error {
	return r.db.AutoMigrate(&userModel{})
}

func (r *repo) GetUser(ctx context.Context, userId string) (user.User, error) {
	var u userModel
	if err := r.db.WithContext(ctx).Where("id = ?", userId).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, user.ErrUserNotFound
		}
		return user.User{}, err
	}

	return user.User{
		Id:     u.ID,
		Name:   u.Name,
		Avatar: u.Avatar,
	}, nil
}

// CreateUser inserts a user. It exists for seeding and tests; accounts
// are managed elsewhere.
func (r *repo) CreateUser(ctx context.Context, u user.User) error {
	return r.db.WithContext(ctx).Create(&userModel{
		ID:     u.Id,
		Name:   u.Name,
		Avatar: u.Avatar,
	}).Error
}
