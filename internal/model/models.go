package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionRecord 已结束的确认记录 (成功、失败或被用户拒绝)
type TransactionRecord struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ConfirmationID string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"confirmation_id"`
	Type           string          `gorm:"type:varchar(64);not null;index" json:"type"`
	State          string          `gorm:"type:varchar(16);not null;index" json:"state"` // success, rejected
	Account        string          `gorm:"type:varchar(64);index" json:"account"`
	Network        string          `gorm:"type:varchar(32)" json:"network"`
	Origin         string          `gorm:"type:varchar(512)" json:"origin"`
	TxHash         string          `gorm:"type:varchar(64);index" json:"tx_hash"`
	ResultCode     string          `gorm:"type:varchar(64)" json:"result_code"`
	Error          string          `gorm:"type:text" json:"error"`
	FeeDrops       decimal.Decimal `gorm:"type:decimal(32,0);not null;default:0" json:"fee_drops"`
	Payload        []byte          `gorm:"type:text" json:"payload"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (TransactionRecord) TableName() string {
	return "transaction_records"
}

// OutboxMessage 本地消息表 (Transactional Outbox)
type OutboxMessage struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic     string         `gorm:"type:varchar(255);not null" json:"topic"`
	Key       string         `gorm:"type:varchar(255)" json:"key"`
	Payload   []byte         `gorm:"type:text;not null" json:"payload"`
	Status    string         `gorm:"type:varchar(50);not null;default:'PENDING';index" json:"status"` // PENDING, SENT, FAILED
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
)
