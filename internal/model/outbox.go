package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 本地消息表，和交易流水在同一个事务里写入
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// TransactionEvent 交易结果事件，序列化后写入 OutboxMessage.Payload
type TransactionEvent struct {
	EventID         int64     `json:"event_id"`
	TransactionID   string    `json:"transaction_id"`
	AccountNumber   string    `json:"account_number"`
	Type            string    `json:"type"`
	Result          string    `json:"result"`
	Amount          int64     `json:"amount"`
	BalanceSnapshot int64     `json:"balance_snapshot"`
	TransactedAt    time.Time `json:"transacted_at"`
}
