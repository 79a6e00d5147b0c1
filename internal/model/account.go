package model

import (
	"time"
)

// ============================================================================
// 账户状态常量
// ============================================================================

const (
	AccountStatusInUse        = "IN_USE"       // 使用中
	AccountStatusUnregistered = "UNREGISTERED" // 已注销（不可恢复）
)

const (
	MaxAccountsPerUser   = 10           // 每个用户最多持有的账户数，固定值
	MinInitialBalance    = 100          // 开户最低初始余额
	InitialAccountNumber = "1000000000" // 第一个账户号
	AccountNumberLength  = 10
)

// AccountUser 账户持有人
type AccountUser struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(64);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AccountUser) TableName() string {
	return "account_user"
}

// Account 账户表
//
// 【不变量】
// 1. 余额永远不能为负
// 2. 状态只能从 IN_USE 变为 UNREGISTERED，且只变一次
// 3. 账户不会被物理删除
type Account struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountUserID  int64      `gorm:"index;not null" json:"account_user_id"`
	AccountNumber  string     `gorm:"type:varchar(10);uniqueIndex;not null" json:"account_number"`
	Status         string     `gorm:"type:varchar(20);not null" json:"status"`
	Balance        int64      `gorm:"not null;default:0" json:"balance"`
	RegisteredAt   time.Time  `gorm:"not null" json:"registered_at"`
	UnRegisteredAt *time.Time `json:"unregistered_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// UseBalance 扣减余额，调用方需已完成校验
func (a *Account) UseBalance(amount int64) error {
	if amount > a.Balance {
		return ErrInsufficientBalance
	}
	a.Balance -= amount
	return nil
}

// CancelBalance 退回余额
func (a *Account) CancelBalance(amount int64) error {
	if amount < 0 {
		return ErrInvalidRequest
	}
	a.Balance += amount
	return nil
}

// AccountSnapshot 开户/销户后返回给调用方的账户快照
type AccountSnapshot struct {
	UserID         int64      `json:"user_id"`
	AccountNumber  string     `json:"account_number"`
	RegisteredAt   time.Time  `json:"registered_at"`
	UnRegisteredAt *time.Time `json:"unregistered_at,omitempty"`
}

func SnapshotFromAccount(a *Account) *AccountSnapshot {
	return &AccountSnapshot{
		UserID:         a.AccountUserID,
		AccountNumber:  a.AccountNumber,
		RegisteredAt:   a.RegisteredAt,
		UnRegisteredAt: a.UnRegisteredAt,
	}
}

// AccountInfo 用户账户列表项
type AccountInfo struct {
	AccountNumber string `json:"account_number"`
	Balance       int64  `json:"balance"`
}
