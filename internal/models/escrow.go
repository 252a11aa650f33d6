package models

import (
	"time"

	"github.com/google/uuid"
)

// Operation kinds recorded in the journal
const (
	OperationInitialize = "initialize"
	OperationContribute = "contribute"
	OperationChecker    = "checker"
	OperationRefund     = "refund"
)

// Operation statuses
const (
	OperationSucceeded = "succeeded"
	OperationFailed    = "failed"
)

// Campaign snapshot statuses
const (
	CampaignActive  = "active"
	CampaignExpired = "expired"
	CampaignSettled = "settled"
)

// EscrowOperation is one submitted escrow transaction, successful or not.
// Token amounts are kept as decimal strings since they span the full u64 range.
type EscrowOperation struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Kind         string    `gorm:"column:kind;size:20;not null;index" json:"kind"`
	Campaign     string    `gorm:"column:campaign;size:64;not null;index" json:"campaign"`
	Maker        string    `gorm:"column:maker;size:64;not null" json:"maker"`
	Signer       string    `gorm:"column:signer;size:64;not null" json:"signer"`
	Amount       string    `gorm:"column:amount;type:numeric(20,0);default:0" json:"amount"`
	Status       string    `gorm:"column:status;size:20;not null" json:"status"`
	ErrorCode    *int64    `gorm:"column:error_code" json:"error_code,omitempty"`
	ErrorCustom  bool      `gorm:"column:error_custom;default:false" json:"error_custom,omitempty"`
	ErrorMessage string    `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	Signature    string    `gorm:"column:signature;size:100" json:"signature,omitempty"`
	Slot         uint64    `gorm:"column:slot" json:"slot"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (EscrowOperation) TableName() string {
	return "escrow_operations"
}

// CampaignSnapshot is the last known state of a campaign
type CampaignSnapshot struct {
	Campaign        string    `gorm:"column:campaign;size:64;primaryKey" json:"campaign"`
	Maker           string    `gorm:"column:maker;size:64;not null;uniqueIndex" json:"maker"`
	Mint            string    `gorm:"column:mint;size:64;not null" json:"mint"`
	Vault           string    `gorm:"column:vault;size:64;not null" json:"vault"`
	AmountToRaise   string    `gorm:"column:amount_to_raise;type:numeric(20,0)" json:"amount_to_raise"`
	CurrentAmount   string    `gorm:"column:current_amount;type:numeric(20,0)" json:"current_amount"`
	VaultBalance    string    `gorm:"column:vault_balance;type:numeric(20,0)" json:"vault_balance"`
	TimeStarted     time.Time `gorm:"column:time_started" json:"time_started"`
	DurationSeconds string    `gorm:"column:duration_seconds;type:numeric(20,0)" json:"duration_seconds"`
	EndsAt          time.Time `gorm:"column:ends_at;index" json:"ends_at"`
	Status          string    `gorm:"column:status;size:20;not null;index" json:"status"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CampaignSnapshot) TableName() string {
	return "campaign_snapshots"
}

// Event types
const (
	EventCampaignInitialized = "campaign_initialized"
	EventContributed         = "contributed"
	EventSettled             = "settled"
	EventRefunded            = "refunded"
	EventCampaignExpired     = "campaign_expired"
)

// EscrowEvent is published to the broker and the websocket stream, and
// persisted by the worker
type EscrowEvent struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Type       string    `gorm:"column:type;size:40;not null;index" json:"type"`
	Campaign   string    `gorm:"column:campaign;size:64;not null;index" json:"campaign"`
	Payload    JSONMap   `gorm:"column:payload;type:jsonb" json:"payload"`
	OccurredAt time.Time `gorm:"column:occurred_at" json:"occurred_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
}

func (EscrowEvent) TableName() string {
	return "escrow_events"
}
