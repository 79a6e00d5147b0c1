package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"accountsystem/internal/infrastructure/lock"
	"accountsystem/internal/model"
	"accountsystem/internal/repository"
	"accountsystem/pkg/idgen"

	"github.com/sirupsen/logrus"
)

const (
	MinUseAmount = 10
	MaxUseAmount = 1_000_000_000
)

// TransactionService 余额交易：使用、取消、失败记录、查询
//
// 【并发】同一账户的 use / cancel 持有账户锁完成"校验 -> 改余额 -> 写流水"，
// 不同账户互不影响。余额、流水、本地消息在同一个事务里提交。
type TransactionService struct {
	store      repository.Store
	locker     lock.Locker
	log        *logrus.Logger
	eventTopic string
	now        func() time.Time
}

func NewTransactionService(store repository.Store, locker lock.Locker, log *logrus.Logger, eventTopic string) *TransactionService {
	return &TransactionService{
		store:      store,
		locker:     locker,
		log:        log,
		eventTopic: eventTopic,
		now:        time.Now,
	}
}

// WithClock 替换时间源
func (s *TransactionService) WithClock(now func() time.Time) *TransactionService {
	s.now = now
	return s
}

// UseBalance 使用余额
//
// 校验顺序（第一个失败的生效，失败时不产生任何写入）：
// 1. 用户存在
// 2. 账户存在
// 3. 账户所有者就是该用户
// 4. 账户未注销
// 5. 余额足够
func (s *TransactionService) UseBalance(ctx context.Context, userID int64, accountNumber string, amount int64) (*model.TransactionResult, error) {
	if userID < 1 || !isValidAccountNumber(accountNumber) || amount < MinUseAmount || amount > MaxUseAmount {
		return nil, model.ErrInvalidRequest
	}

	unlock, err := obtainLock(ctx, s.locker, s.log, lock.AccountLockKey(accountNumber))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var trans *model.Transaction
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.AccountUsers().GetByID(ctx, userID)
		if err != nil {
			return err
		}

		account, err := tx.Accounts().GetByAccountNumberForUpdate(ctx, accountNumber)
		if err != nil {
			return err
		}

		if err := validateUseBalance(user, account, amount); err != nil {
			return err
		}

		if err := account.UseBalance(amount); err != nil {
			return err
		}

		trans, err = s.saveTransaction(ctx, tx, model.TransactionTypeUse, model.TransactionResultSuccess, amount, account, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": trans.TransactionID,
		"account_number": accountNumber,
		"amount":         amount,
		"balance":        trans.BalanceSnapshot,
	}).Info("余额使用成功")

	return model.ResultFromTransaction(trans), nil
}

func validateUseBalance(user *model.AccountUser, account *model.Account, amount int64) error {
	if user.ID != account.AccountUserID {
		return model.ErrOwnershipMismatch
	}
	if account.Status != model.AccountStatusInUse {
		return model.ErrAccountAlreadyUnregistered
	}
	if account.Balance < amount {
		return model.ErrInsufficientBalance
	}
	return nil
}

// SaveFailedUseTransaction 记录一笔失败的使用
//
// 调用方自己的后续步骤失败时调用，只写 FAIL 流水，不动余额
func (s *TransactionService) SaveFailedUseTransaction(ctx context.Context, accountNumber string, amount int64) error {
	return s.saveFailedTransaction(ctx, model.TransactionTypeUse, accountNumber, amount)
}

// CancelBalance 取消一笔交易，全额退回
//
// 校验顺序：
// 1. 交易存在
// 2. 账户存在
// 3. 交易属于该账户
// 4. 金额与原交易完全一致（不支持部分取消）
// 5. 原交易发生在一年以内
func (s *TransactionService) CancelBalance(ctx context.Context, transactionID, accountNumber string, amount int64) (*model.TransactionResult, error) {
	if transactionID == "" || !isValidAccountNumber(accountNumber) || amount <= 0 {
		return nil, model.ErrInvalidRequest
	}

	unlock, err := obtainLock(ctx, s.locker, s.log, lock.AccountLockKey(accountNumber))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var trans *model.Transaction
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		original, err := tx.Transactions().GetByTransactionID(ctx, transactionID)
		if err != nil {
			return err
		}

		account, err := tx.Accounts().GetByAccountNumberForUpdate(ctx, accountNumber)
		if err != nil {
			return err
		}

		if err := validateCancelBalance(original, account, amount, s.now()); err != nil {
			return err
		}

		if err := account.CancelBalance(amount); err != nil {
			return err
		}

		trans, err = s.saveTransaction(ctx, tx, model.TransactionTypeCancel, model.TransactionResultSuccess, amount, account, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id":          trans.TransactionID,
		"original_transaction_id": transactionID,
		"account_number":          accountNumber,
		"amount":                  amount,
		"balance":                 trans.BalanceSnapshot,
	}).Info("交易取消成功")

	return model.ResultFromTransaction(trans), nil
}

func validateCancelBalance(original *model.Transaction, account *model.Account, amount int64, now time.Time) error {
	if original.AccountID != account.ID {
		return model.ErrTransactionAccountMismatch
	}
	if original.Amount != amount {
		return model.ErrCancelMustBeFull
	}
	if original.TransactedAt.Before(now.AddDate(-model.CancelWindowYears, 0, 0)) {
		return model.ErrCancelWindowExpired
	}
	return nil
}

// SaveFailedCancelTransaction 记录一笔失败的取消，不动余额
func (s *TransactionService) SaveFailedCancelTransaction(ctx context.Context, accountNumber string, amount int64) error {
	return s.saveFailedTransaction(ctx, model.TransactionTypeCancel, accountNumber, amount)
}

// QueryTransaction 查询交易
func (s *TransactionService) QueryTransaction(ctx context.Context, transactionID string) (*model.TransactionResult, error) {
	trans, err := s.store.Transactions().GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return model.ResultFromTransaction(trans), nil
}

// saveFailedTransaction 不加账户锁：失败记录只追加流水，不读改余额
func (s *TransactionService) saveFailedTransaction(ctx context.Context, transactionType, accountNumber string, amount int64) error {
	if amount <= 0 {
		return model.ErrInvalidRequest
	}

	var trans *model.Transaction
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		account, err := tx.Accounts().GetByAccountNumber(ctx, accountNumber)
		if err != nil {
			return err
		}

		trans, err = s.saveTransaction(ctx, tx, transactionType, model.TransactionResultFail, amount, account, false)
		return err
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": trans.TransactionID,
		"type":           transactionType,
		"account_number": accountNumber,
		"amount":         amount,
	}).Warn("已记录失败交易")

	return nil
}

// saveTransaction 写流水和本地消息，balanceChanged 为 true 时同时落库新余额
//
// BalanceSnapshot 取 account 当前余额：成功交易为变动后余额，失败交易为原余额
func (s *TransactionService) saveTransaction(
	ctx context.Context,
	tx repository.Store,
	transactionType string,
	result string,
	amount int64,
	account *model.Account,
	balanceChanged bool,
) (*model.Transaction, error) {
	now := s.now()

	if balanceChanged {
		if err := tx.Accounts().UpdateBalance(ctx, account.ID, account.Balance, now); err != nil {
			return nil, fmt.Errorf("更新余额失败: %w", err)
		}
	}

	trans := &model.Transaction{
		TransactionID:   idgen.GenerateTransactionID(),
		AccountID:       account.ID,
		AccountNumber:   account.AccountNumber,
		Type:            transactionType,
		Result:          result,
		Amount:          amount,
		BalanceSnapshot: account.Balance,
		TransactedAt:    now,
		CreatedAt:       now,
	}
	if err := tx.Transactions().Create(ctx, trans); err != nil {
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}

	payload, err := json.Marshal(model.TransactionEvent{
		EventID:         idgen.NextEventID(),
		TransactionID:   trans.TransactionID,
		AccountNumber:   trans.AccountNumber,
		Type:            trans.Type,
		Result:          trans.Result,
		Amount:          trans.Amount,
		BalanceSnapshot: trans.BalanceSnapshot,
		TransactedAt:    trans.TransactedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("序列化交易事件失败: %w", err)
	}

	outboxMsg := &model.OutboxMessage{
		MessageKey: trans.TransactionID,
		Topic:      s.eventTopic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.Outbox().Create(ctx, outboxMsg); err != nil {
		return nil, fmt.Errorf("写入消息失败: %w", err)
	}

	return trans, nil
}
