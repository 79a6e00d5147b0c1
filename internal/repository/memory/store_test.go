package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"accountsystem/internal/model"
	"accountsystem/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(userID int64, number string, balance int64) *model.Account {
	return &model.Account{
		AccountUserID: userID,
		AccountNumber: number,
		Status:        model.AccountStatusInUse,
		Balance:       balance,
		RegisteredAt:  time.Now(),
	}
}

func TestStore_TransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Accounts().Create(ctx, newAccount(1, "1000000000", 1000)))

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(tx repository.Store) error {
		account, err := tx.Accounts().GetByAccountNumberForUpdate(ctx, "1000000000")
		require.NoError(t, err)
		require.NoError(t, tx.Accounts().UpdateBalance(ctx, account.ID, 0, time.Now()))
		require.NoError(t, tx.Transactions().Create(ctx, &model.Transaction{TransactionID: "t1", AccountID: account.ID}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	account, err := store.Accounts().GetByAccountNumber(ctx, "1000000000")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, account.Balance)

	_, err = store.Transactions().GetByTransactionID(ctx, "t1")
	assert.ErrorIs(t, err, model.ErrTransactionNotFound)
}

func TestStore_TransactionCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Accounts().Create(ctx, newAccount(1, "1000000000", 1000)))

	err := store.Transaction(ctx, func(tx repository.Store) error {
		account, err := tx.Accounts().GetByAccountNumber(ctx, "1000000000")
		if err != nil {
			return err
		}
		if err := tx.Accounts().UpdateBalance(ctx, account.ID, 400, time.Now()); err != nil {
			return err
		}
		return tx.Transactions().Create(ctx, &model.Transaction{TransactionID: "t1", AccountID: account.ID, AccountNumber: "1000000000"})
	})
	require.NoError(t, err)

	account, err := store.Accounts().GetByAccountNumber(ctx, "1000000000")
	require.NoError(t, err)
	assert.EqualValues(t, 400, account.Balance)
	assert.Len(t, store.ListByAccountNumber("1000000000"), 1)
}

func TestStore_ReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Accounts().Create(ctx, newAccount(1, "1000000000", 1000)))

	account, err := store.Accounts().GetByAccountNumber(ctx, "1000000000")
	require.NoError(t, err)
	account.Balance = -1

	again, err := store.Accounts().GetByAccountNumber(ctx, "1000000000")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, again.Balance)
}

func TestStore_Accounts(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	accounts := store.Accounts()

	latest, err := accounts.GetLatest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, accounts.Create(ctx, newAccount(1, "1000000000", 100)))
	require.NoError(t, accounts.Create(ctx, newAccount(2, "1000000001", 100)))
	require.NoError(t, accounts.Create(ctx, newAccount(1, "1000000002", 100)))
	assert.ErrorIs(t, accounts.Create(ctx, newAccount(3, "1000000002", 100)), repository.ErrDuplicateKey)

	latest, err = accounts.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000000002", latest.AccountNumber)

	count, err := accounts.CountByUserID(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	list, err := accounts.ListByUserID(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1000000000", list[0].AccountNumber)
	assert.Equal(t, "1000000002", list[1].AccountNumber)

	_, err = accounts.GetByAccountNumber(ctx, "9999999999")
	assert.ErrorIs(t, err, model.ErrAccountNotFound)

	now := time.Now()
	require.NoError(t, accounts.Unregister(ctx, list[0].ID, now))
	assert.ErrorIs(t, accounts.Unregister(ctx, list[0].ID, now), model.ErrAccountAlreadyUnregistered)

	unregistered, err := accounts.GetByAccountNumber(ctx, "1000000000")
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusUnregistered, unregistered.Status)
	require.NotNil(t, unregistered.UnRegisteredAt)
	assert.True(t, unregistered.UnRegisteredAt.Equal(now))
}

func TestStore_TransactionsAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Transactions().Create(ctx, &model.Transaction{TransactionID: "t1", Amount: 10}))
	err := store.Transactions().Create(ctx, &model.Transaction{TransactionID: "t1", Amount: 20})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)

	trans, err := store.Transactions().GetByTransactionID(ctx, "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 10, trans.Amount)
}

func TestStore_Outbox(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	outbox := store.Outbox()

	for i := 0; i < 3; i++ {
		require.NoError(t, outbox.Create(ctx, &model.OutboxMessage{Topic: "topic", MessageKey: "k"}))
	}

	pending, err := outbox.GetPendingMessages(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.EqualValues(t, 1, pending[0].ID)

	require.NoError(t, outbox.UpdateStatus(ctx, 1, model.OutboxStatusSent))
	require.NoError(t, outbox.IncrementRetryCount(ctx, 2))
	require.NoError(t, outbox.MarkAsFailed(ctx, 2))

	pending, err = outbox.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.EqualValues(t, 3, pending[0].ID)

	all := store.OutboxMessages()
	assert.Equal(t, 1, all[1].RetryCount)
	assert.Equal(t, model.OutboxStatusFailed, all[1].Status)
}

func TestStore_AccountUsers(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	user := &model.AccountUser{Name: "Pororo"}
	require.NoError(t, store.AccountUsers().Create(ctx, user))
	assert.EqualValues(t, 1, user.ID)

	got, err := store.AccountUsers().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Pororo", got.Name)

	_, err = store.AccountUsers().GetByID(ctx, 42)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}
