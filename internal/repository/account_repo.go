package repository

import (
	"context"
	"time"

	"accountsystem/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return errors.Wrap(err, "create account")
	}
	return nil
}

func (r *accountRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("account_number = ?", accountNumber).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrAccountNotFound
		}
		return nil, errors.Wrap(err, "get account")
	}
	return &account, nil
}

func (r *accountRepository) GetByAccountNumberForUpdate(ctx context.Context, accountNumber string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_number = ?", accountNumber).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrAccountNotFound
		}
		return nil, errors.Wrap(err, "get account for update")
	}
	return &account, nil
}

func (r *accountRepository) GetLatest(ctx context.Context) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Order("id DESC").First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get latest account")
	}
	return &account, nil
}

func (r *accountRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "count accounts")
	}
	return count, nil
}

func (r *accountRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("account_user_id = ?", userID).
		Order("id ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, errors.Wrap(err, "list accounts")
	}
	return accounts, nil
}

// UpdateBalance 覆盖写余额
//
// 调用方必须持有该账户的锁，并且在同一个事务里写流水
func (r *accountRepository) UpdateBalance(ctx context.Context, id int64, balance int64, updatedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"balance":    balance,
			"updated_at": updatedAt,
		})

	if result.Error != nil {
		return errors.Wrap(result.Error, "update balance")
	}

	if result.RowsAffected == 0 {
		return model.ErrAccountNotFound
	}

	return nil
}

func (r *accountRepository) Unregister(ctx context.Context, id int64, unregisteredAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND status = ?", id, model.AccountStatusInUse).
		Updates(map[string]interface{}{
			"status":           model.AccountStatusUnregistered,
			"un_registered_at": unregisteredAt,
			"updated_at":       unregisteredAt,
		})

	if result.Error != nil {
		return errors.Wrap(result.Error, "unregister account")
	}

	if result.RowsAffected == 0 {
		return model.ErrAccountAlreadyUnregistered
	}

	return nil
}
