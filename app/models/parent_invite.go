package models

import "time"

const (
	InviteStatusSending = "sending"
	InviteStatusSent    = "sent"
	InviteStatusFailed  = "failed"
)

// ParentInvite records a student's request to email a parent about buying Pro.
// Rows double as the rolling-window quota ledger.
type ParentInvite struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(191);not null;index:idx_parent_invites_user_created,priority:1" json:"user_id"`
	ParentEmail string    `gorm:"type:varchar(255);not null" json:"parent_email"`
	Status      string    `gorm:"type:varchar(16);not null;default:'sending'" json:"status"`
	Error       string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time `gorm:"not null;index:idx_parent_invites_user_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
