package repository

import (
	"context"

	"accountsystem/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, trans *model.Transaction) error {
	if err := r.db.WithContext(ctx).Create(trans).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return errors.Wrap(err, "create transaction")
	}
	return nil
}

func (r *transactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrTransactionNotFound
		}
		return nil, errors.Wrap(err, "get transaction")
	}
	return &trans, nil
}
