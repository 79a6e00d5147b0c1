package model

import (
	"time"
)

// ============================================================================
// 交易类型 / 结果常量
// ============================================================================

const (
	TransactionTypeUse    = "USE"    // 使用（扣款）
	TransactionTypeCancel = "CANCEL" // 取消（全额退回）
)

const (
	TransactionResultSuccess = "SUCCESS"
	TransactionResultFail    = "FAIL"
)

// CancelWindowYears 交易可取消的时间窗口（年）
const CancelWindowYears = 1

// Transaction 交易流水表
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除
// 2. 失败的尝试也要落一条 FAIL 记录，余额快照为当时余额
// 3. BalanceSnapshot 记录本笔交易生效后的余额
type Transaction struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID   string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"transaction_id"`
	AccountID       int64     `gorm:"index;not null" json:"account_id"`
	AccountNumber   string    `gorm:"type:varchar(10);index;not null" json:"account_number"`
	Type            string    `gorm:"type:varchar(20);not null" json:"type"`
	Result          string    `gorm:"type:varchar(8);not null" json:"result"`
	Amount          int64     `gorm:"not null" json:"amount"`
	BalanceSnapshot int64     `gorm:"not null" json:"balance_snapshot"`
	TransactedAt    time.Time `gorm:"index;not null" json:"transacted_at"`
	CreatedAt       time.Time `json:"created_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}

// TransactionResult 交易结果，对外暴露
type TransactionResult struct {
	AccountNumber string    `json:"account_number"`
	Type          string    `json:"transaction_type"`
	Result        string    `json:"transaction_result"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	TransactedAt  time.Time `json:"transacted_at"`
}

func ResultFromTransaction(t *Transaction) *TransactionResult {
	return &TransactionResult{
		AccountNumber: t.AccountNumber,
		Type:          t.Type,
		Result:        t.Result,
		TransactionID: t.TransactionID,
		Amount:        t.Amount,
		TransactedAt:  t.TransactedAt,
	}
}
