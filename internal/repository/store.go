package repository

import (
	"context"
	"errors"
	"time"

	"accountsystem/internal/model"

	"gorm.io/gorm"
)

// ErrDuplicateKey 唯一索引冲突（账户号、流水号）
var ErrDuplicateKey = errors.New("唯一键冲突")

// AccountRepository 账户存储
//
// 查询不到账户时统一返回 model.ErrAccountNotFound
type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	GetByAccountNumber(ctx context.Context, accountNumber string) (*model.Account, error)
	// GetByAccountNumberForUpdate 在事务中加行锁读取
	GetByAccountNumberForUpdate(ctx context.Context, accountNumber string) (*model.Account, error)
	// GetLatest 返回 id 最大的账户，没有任何账户时返回 nil, nil
	GetLatest(ctx context.Context) (*model.Account, error)
	CountByUserID(ctx context.Context, userID int64) (int64, error)
	ListByUserID(ctx context.Context, userID int64) ([]*model.Account, error)
	UpdateBalance(ctx context.Context, id int64, balance int64, updatedAt time.Time) error
	Unregister(ctx context.Context, id int64, unregisteredAt time.Time) error
}

type AccountUserRepository interface {
	Create(ctx context.Context, user *model.AccountUser) error
	GetByID(ctx context.Context, id int64) (*model.AccountUser, error)
}

// TransactionRepository 交易流水只追加，不提供更新和删除
type TransactionRepository interface {
	Create(ctx context.Context, trans *model.Transaction) error
	GetByTransactionID(ctx context.Context, transactionID string) (*model.Transaction, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, msg *model.OutboxMessage) error
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
}

// Store 聚合所有仓储，并提供事务能力
//
// Transaction 中 fn 拿到的 Store 上的所有写操作要么一起提交，要么一起回滚
type Store interface {
	Accounts() AccountRepository
	AccountUsers() AccountUserRepository
	Transactions() TransactionRepository
	Outbox() OutboxRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// DBStore 基于 gorm 的 Store 实现
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Accounts() AccountRepository {
	return NewAccountRepository(s.db)
}

func (s *DBStore) AccountUsers() AccountUserRepository {
	return NewAccountUserRepository(s.db)
}

func (s *DBStore) Transactions() TransactionRepository {
	return NewTransactionRepository(s.db)
}

func (s *DBStore) Outbox() OutboxRepository {
	return NewOutboxRepository(s.db)
}

func (s *DBStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DBStore{db: tx})
	})
}
