// Package memory 提供 repository.Store 的内存实现，用于单元测试和本地运行。
//
// 事务采用写时复制：Transaction 持有全局写锁，复制一份状态交给 fn，
// fn 成功后整体替换，失败则直接丢弃副本。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"accountsystem/internal/model"
	"accountsystem/internal/repository"
)

type state struct {
	users           map[int64]model.AccountUser
	accounts        map[int64]model.Account
	accountByNumber map[string]int64
	transactions    map[string]model.Transaction
	outbox          map[int64]model.OutboxMessage

	userSeq        int64
	accountSeq     int64
	transactionSeq int64
	outboxSeq      int64
}

func newState() *state {
	return &state{
		users:           make(map[int64]model.AccountUser),
		accounts:        make(map[int64]model.Account),
		accountByNumber: make(map[string]int64),
		transactions:    make(map[string]model.Transaction),
		outbox:          make(map[int64]model.OutboxMessage),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:           make(map[int64]model.AccountUser, len(s.users)),
		accounts:        make(map[int64]model.Account, len(s.accounts)),
		accountByNumber: make(map[string]int64, len(s.accountByNumber)),
		transactions:    make(map[string]model.Transaction, len(s.transactions)),
		outbox:          make(map[int64]model.OutboxMessage, len(s.outbox)),
		userSeq:         s.userSeq,
		accountSeq:      s.accountSeq,
		transactionSeq:  s.transactionSeq,
		outboxSeq:       s.outboxSeq,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.accountByNumber {
		c.accountByNumber[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	return c
}

// Store 内存版 Store
type Store struct {
	mu *sync.RWMutex // 事务内部为 nil，由外层 Transaction 持有锁
	st *state
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		mu: &sync.RWMutex{},
		st: newState(),
	}
}

func (s *Store) rlock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) lock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Accounts() repository.AccountRepository {
	return &accountRepository{s: s}
}

func (s *Store) AccountUsers() repository.AccountUserRepository {
	return &accountUserRepository{s: s}
}

func (s *Store) Transactions() repository.TransactionRepository {
	return &transactionRepository{s: s}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{s: s}
}

func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.mu == nil {
		// 嵌套事务并入外层
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{st: s.st.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// ============================================================================
// 账户
// ============================================================================

type accountRepository struct {
	s *Store
}

func (r *accountRepository) Create(_ context.Context, account *model.Account) error {
	defer r.s.lock()()
	st := r.s.st

	if _, exists := st.accountByNumber[account.AccountNumber]; exists {
		return repository.ErrDuplicateKey
	}
	st.accountSeq++
	account.ID = st.accountSeq
	st.accounts[account.ID] = *account
	st.accountByNumber[account.AccountNumber] = account.ID
	return nil
}

func (r *accountRepository) GetByAccountNumber(_ context.Context, accountNumber string) (*model.Account, error) {
	defer r.s.rlock()()
	st := r.s.st

	id, ok := st.accountByNumber[accountNumber]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	account := st.accounts[id]
	return &account, nil
}

func (r *accountRepository) GetByAccountNumberForUpdate(ctx context.Context, accountNumber string) (*model.Account, error) {
	return r.GetByAccountNumber(ctx, accountNumber)
}

func (r *accountRepository) GetLatest(_ context.Context) (*model.Account, error) {
	defer r.s.rlock()()
	st := r.s.st

	var latest *model.Account
	for _, a := range st.accounts {
		if latest == nil || a.ID > latest.ID {
			account := a
			latest = &account
		}
	}
	return latest, nil
}

func (r *accountRepository) CountByUserID(_ context.Context, userID int64) (int64, error) {
	defer r.s.rlock()()

	var count int64
	for _, a := range r.s.st.accounts {
		if a.AccountUserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *accountRepository) ListByUserID(_ context.Context, userID int64) ([]*model.Account, error) {
	defer r.s.rlock()()

	accounts := make([]*model.Account, 0)
	for _, a := range r.s.st.accounts {
		if a.AccountUserID == userID {
			account := a
			accounts = append(accounts, &account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (r *accountRepository) UpdateBalance(_ context.Context, id int64, balance int64, updatedAt time.Time) error {
	defer r.s.lock()()

	account, ok := r.s.st.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	account.Balance = balance
	account.UpdatedAt = updatedAt
	r.s.st.accounts[id] = account
	return nil
}

func (r *accountRepository) Unregister(_ context.Context, id int64, unregisteredAt time.Time) error {
	defer r.s.lock()()

	account, ok := r.s.st.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	if account.Status != model.AccountStatusInUse {
		return model.ErrAccountAlreadyUnregistered
	}
	at := unregisteredAt
	account.Status = model.AccountStatusUnregistered
	account.UnRegisteredAt = &at
	account.UpdatedAt = unregisteredAt
	r.s.st.accounts[id] = account
	return nil
}

// ============================================================================
// 用户
// ============================================================================

type accountUserRepository struct {
	s *Store
}

func (r *accountUserRepository) Create(_ context.Context, user *model.AccountUser) error {
	defer r.s.lock()()

	st := r.s.st
	if user.ID == 0 {
		st.userSeq++
		user.ID = st.userSeq
	} else if user.ID > st.userSeq {
		st.userSeq = user.ID
	}
	if _, exists := st.users[user.ID]; exists {
		return repository.ErrDuplicateKey
	}
	st.users[user.ID] = *user
	return nil
}

func (r *accountUserRepository) GetByID(_ context.Context, id int64) (*model.AccountUser, error) {
	defer r.s.rlock()()

	user, ok := r.s.st.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &user, nil
}

// ============================================================================
// 交易流水
// ============================================================================

type transactionRepository struct {
	s *Store
}

func (r *transactionRepository) Create(_ context.Context, trans *model.Transaction) error {
	defer r.s.lock()()

	st := r.s.st
	if _, exists := st.transactions[trans.TransactionID]; exists {
		return repository.ErrDuplicateKey
	}
	st.transactionSeq++
	trans.ID = st.transactionSeq
	st.transactions[trans.TransactionID] = *trans
	return nil
}

func (r *transactionRepository) GetByTransactionID(_ context.Context, transactionID string) (*model.Transaction, error) {
	defer r.s.rlock()()

	trans, ok := r.s.st.transactions[transactionID]
	if !ok {
		return nil, model.ErrTransactionNotFound
	}
	return &trans, nil
}

// ListByAccountNumber 按写入顺序返回账户的全部流水，测试用
func (s *Store) ListByAccountNumber(accountNumber string) []model.Transaction {
	defer s.rlock()()

	list := make([]model.Transaction, 0)
	for _, t := range s.st.transactions {
		if t.AccountNumber == accountNumber {
			list = append(list, t)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// ============================================================================
// 本地消息表
// ============================================================================

type outboxRepository struct {
	s *Store
}

func (r *outboxRepository) Create(_ context.Context, msg *model.OutboxMessage) error {
	defer r.s.lock()()

	st := r.s.st
	st.outboxSeq++
	msg.ID = st.outboxSeq
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	st.outbox[msg.ID] = *msg
	return nil
}

func (r *outboxRepository) GetPendingMessages(_ context.Context, limit int) ([]*model.OutboxMessage, error) {
	defer r.s.rlock()()

	messages := make([]*model.OutboxMessage, 0)
	for _, m := range r.s.st.outbox {
		if m.Status == model.OutboxStatusPending {
			msg := m
			messages = append(messages, &msg)
		}
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

func (r *outboxRepository) UpdateStatus(_ context.Context, id int64, status string) error {
	defer r.s.lock()()

	if msg, ok := r.s.st.outbox[id]; ok {
		msg.Status = status
		r.s.st.outbox[id] = msg
	}
	return nil
}

func (r *outboxRepository) IncrementRetryCount(_ context.Context, id int64) error {
	defer r.s.lock()()

	if msg, ok := r.s.st.outbox[id]; ok {
		msg.RetryCount++
		r.s.st.outbox[id] = msg
	}
	return nil
}

func (r *outboxRepository) MarkAsFailed(_ context.Context, id int64) error {
	defer r.s.lock()()

	if msg, ok := r.s.st.outbox[id]; ok {
		msg.Status = model.OutboxStatusFailed
		r.s.st.outbox[id] = msg
	}
	return nil
}

// OutboxMessages 返回全部消息，测试用
func (s *Store) OutboxMessages() []model.OutboxMessage {
	defer s.rlock()()

	list := make([]model.OutboxMessage, 0, len(s.st.outbox))
	for _, m := range s.st.outbox {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
