package models

import (
	"time"

	"gorm.io/datatypes"
)

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

// BillingWebhookEvent stores provider webhook payloads with deduplication
// metadata for idempotent processing. A row with ProcessedAt set and an empty
// ProcessingError is a finished delivery; anything else is re-run.
type BillingWebhookEvent struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Provider        string         `gorm:"type:varchar(20);not null;index:ux_billing_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID string         `gorm:"type:varchar(191);not null;default:'';index:ux_billing_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string         `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Livemode        bool           `gorm:"default:false" json:"livemode"`
	Payload         datatypes.JSON `gorm:"not null" json:"payload"`
	Outcome         string         `gorm:"type:varchar(64);default:''" json:"outcome"`
	Attempts        int            `gorm:"not null;default:0" json:"attempts"`
	ProcessedAt     *time.Time     `gorm:"default:null" json:"processed_at,omitempty"`
	ProcessingError string         `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsSettled reports whether a previous delivery finished without error.
func (e *BillingWebhookEvent) IsSettled() bool {
	return e != nil && e.ProcessedAt != nil && e.ProcessingError == ""
}
