package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"accountsystem/internal/infrastructure/lock"
	"accountsystem/internal/model"
	"accountsystem/internal/repository"

	"github.com/sirupsen/logrus"
)

// ErrAccountNumberExhausted 十位账户号已用完
var ErrAccountNumberExhausted = errors.New("账户号已用尽")

// AccountService 账户生命周期：开户、销户、查询
type AccountService struct {
	store  repository.Store
	locker lock.Locker
	log    *logrus.Logger
	now    func() time.Time
}

func NewAccountService(store repository.Store, locker lock.Locker, log *logrus.Logger) *AccountService {
	return &AccountService{
		store:  store,
		locker: locker,
		log:    log,
		now:    time.Now,
	}
}

// WithClock 替换时间源
func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	s.now = now
	return s
}

// CreateUser 创建账户持有人
func (s *AccountService) CreateUser(ctx context.Context, name string) (*model.AccountUser, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.ErrInvalidRequest
	}

	now := s.now()
	user := &model.AccountUser{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.AccountUsers().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return user, nil
}

// CreateAccount 开户
//
// 1. 用户必须存在
// 2. 每个用户最多 10 个账户
// 3. 账户号 = 当前最大账户号 + 1，没有账户时从 1000000000 开始
//
// 分配账户号是"读最大值再加一"，必须串行，所以整个过程持有开户锁
func (s *AccountService) CreateAccount(ctx context.Context, userID, initialBalance int64) (*model.AccountSnapshot, error) {
	if userID < 1 || initialBalance < model.MinInitialBalance {
		return nil, model.ErrInvalidRequest
	}

	unlock, err := obtainLock(ctx, s.locker, s.log, lock.CreateAccountLockKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var account *model.Account
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.AccountUsers().GetByID(ctx, userID); err != nil {
			return err
		}

		count, err := tx.Accounts().CountByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("查询账户数量失败: %w", err)
		}
		if count >= model.MaxAccountsPerUser {
			return model.ErrMaxAccountsPerUser
		}

		accountNumber, err := nextAccountNumber(ctx, tx.Accounts())
		if err != nil {
			return err
		}

		now := s.now()
		account = &model.Account{
			AccountUserID: userID,
			AccountNumber: accountNumber,
			Status:        model.AccountStatusInUse,
			Balance:       initialBalance,
			RegisteredAt:  now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Accounts().Create(ctx, account); err != nil {
			return fmt.Errorf("创建账户失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":         userID,
		"account_number":  account.AccountNumber,
		"initial_balance": initialBalance,
	}).Info("开户成功")

	return model.SnapshotFromAccount(account), nil
}

func nextAccountNumber(ctx context.Context, accounts repository.AccountRepository) (string, error) {
	latest, err := accounts.GetLatest(ctx)
	if err != nil {
		return "", fmt.Errorf("查询最新账户失败: %w", err)
	}
	if latest == nil {
		return model.InitialAccountNumber, nil
	}

	current, err := strconv.ParseInt(latest.AccountNumber, 10, 64)
	if err != nil {
		return "", fmt.Errorf("账户号格式错误 %q: %w", latest.AccountNumber, err)
	}
	next := fmt.Sprintf("%0*d", model.AccountNumberLength, current+1)
	if len(next) > model.AccountNumberLength {
		return "", ErrAccountNumberExhausted
	}
	return next, nil
}

// DeleteAccount 销户
//
// 校验顺序：用户存在 -> 账户存在 -> 所有者一致 -> 未注销 -> 余额为零
func (s *AccountService) DeleteAccount(ctx context.Context, userID int64, accountNumber string) (*model.AccountSnapshot, error) {
	if userID < 1 || !isValidAccountNumber(accountNumber) {
		return nil, model.ErrInvalidRequest
	}

	unlock, err := obtainLock(ctx, s.locker, s.log, lock.AccountLockKey(accountNumber))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var account *model.Account
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.AccountUsers().GetByID(ctx, userID)
		if err != nil {
			return err
		}

		account, err = tx.Accounts().GetByAccountNumberForUpdate(ctx, accountNumber)
		if err != nil {
			return err
		}

		if err := validateDeleteAccount(user, account); err != nil {
			return err
		}

		now := s.now()
		if err := tx.Accounts().Unregister(ctx, account.ID, now); err != nil {
			return err
		}
		account.Status = model.AccountStatusUnregistered
		account.UnRegisteredAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":        userID,
		"account_number": accountNumber,
	}).Info("销户成功")

	return model.SnapshotFromAccount(account), nil
}

func validateDeleteAccount(user *model.AccountUser, account *model.Account) error {
	if user.ID != account.AccountUserID {
		return model.ErrOwnershipMismatch
	}
	if account.Status != model.AccountStatusInUse {
		return model.ErrAccountAlreadyUnregistered
	}
	if account.Balance > 0 {
		return model.ErrBalanceNotEmpty
	}
	return nil
}

// GetAccountsByUserID 查询用户名下所有账户
func (s *AccountService) GetAccountsByUserID(ctx context.Context, userID int64) ([]model.AccountInfo, error) {
	if _, err := s.store.AccountUsers().GetByID(ctx, userID); err != nil {
		return nil, err
	}

	accounts, err := s.store.Accounts().ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询账户列表失败: %w", err)
	}

	infos := make([]model.AccountInfo, 0, len(accounts))
	for _, a := range accounts {
		infos = append(infos, model.AccountInfo{
			AccountNumber: a.AccountNumber,
			Balance:       a.Balance,
		})
	}
	return infos, nil
}
