package repository

import (
	"context"

	"accountsystem/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type accountUserRepository struct {
	db *gorm.DB
}

func NewAccountUserRepository(db *gorm.DB) AccountUserRepository {
	return &accountUserRepository{db: db}
}

func (r *accountUserRepository) Create(ctx context.Context, user *model.AccountUser) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return errors.Wrap(err, "create account user")
	}
	return nil
}

func (r *accountUserRepository) GetByID(ctx context.Context, id int64) (*model.AccountUser, error) {
	var user model.AccountUser
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "get account user")
	}
	return &user, nil
}
