package models

import "time"

const (
	ClaimStatusPending = "pending"
	ClaimStatusPaid    = "paid"
	ClaimStatusClaimed = "claimed"
	ClaimStatusFailed  = "failed"
)

// ParentClaim is a parent-purchased Pro period waiting for a student to
// redeem it. Rows are created upstream at checkout as pending. ClaimCode is
// stored normalized (see claimcode.Normalize).
type ParentClaim struct {
	ID                   string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	ChildEmail           string     `gorm:"type:varchar(255);not null" json:"child_email"`
	ClaimCode            string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_parent_claims_code" json:"-"`
	Status               string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);default:''" json:"stripe_subscription_id"`
	StripeInvoiceID      string     `gorm:"type:varchar(191);default:''" json:"stripe_invoice_id"`
	StripeCustomerID     string     `gorm:"type:varchar(191);default:''" json:"stripe_customer_id"`
	Livemode             bool       `gorm:"default:false" json:"livemode"`
	PaidExpiresAtMs      *int64     `gorm:"default:null" json:"paid_expires_at_ms,omitempty"`
	PaidAt               *time.Time `gorm:"default:null" json:"paid_at,omitempty"`
	RedeemEmailSentAt    *time.Time `gorm:"default:null" json:"redeem_email_sent_at,omitempty"`
	RedeemEmailAttempts  int        `gorm:"not null;default:0" json:"redeem_email_attempts"`
	RedeemEmailLastError string     `gorm:"type:text" json:"redeem_email_last_error"`
	ClaimedByUserID      string     `gorm:"type:varchar(191);default:''" json:"claimed_by_user_id"`
	ClaimedAt            *time.Time `gorm:"default:null" json:"claimed_at,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *ParentClaim) IsClaimed() bool {
	return c.Status == ClaimStatusClaimed
}

// RedeemEmailSent reports whether the one-time redemption email went out.
func (c *ParentClaim) RedeemEmailSent() bool {
	return c.RedeemEmailSentAt != nil
}
