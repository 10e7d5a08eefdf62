package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/StudyFox/app/models"
	"gorm.io/gorm"
)

// ClaimPayment is the invoice data written when a claim becomes paid.
type ClaimPayment struct {
	InvoiceID      string
	SubscriptionID string
	CustomerID     string
	Livemode       bool
	ExpiresAtMs    int64
	PaidAt         time.Time
}

// ParentClaimRepository defines the storage operations of the claim state
// machine. Every transition is a conditional update.
type ParentClaimRepository interface {
	GetByID(ctx context.Context, id string) (*models.ParentClaim, error)
	GetByCode(ctx context.Context, normalizedCode string) (*models.ParentClaim, error)
	// MarkPaid moves a claim that is not claimed to paid. The stored expiry
	// only grows and paid_at keeps its first value. Returns false when no
	// row matched.
	MarkPaid(ctx context.Context, id string, p ClaimPayment) (bool, error)
	// MarkRedeemEmailSent sets redeem_email_sent_at once. Returns false when
	// it was already set.
	MarkRedeemEmailSent(ctx context.Context, id string, at time.Time) (bool, error)
	RecordRedeemEmailFailure(ctx context.Context, id string, message string) error
	// MarkClaimed moves a paid claim to claimed. Returns false on a lost race.
	MarkClaimed(ctx context.Context, id, userID string, at time.Time) (bool, error)
	ListPendingRedeemEmails(ctx context.Context, maxAttempts, limit int) ([]models.ParentClaim, error)
}

// ParentInviteRepository defines invite persistence and the quota count.
type ParentInviteRepository interface {
	Create(ctx context.Context, invite *models.ParentInvite) error
	CountSince(ctx context.Context, userID string, since time.Time) (int64, error)
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	ParentClaim  ParentClaimRepository
	ParentInvite ParentInviteRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		ParentClaim:  NewParentClaimRepository(db),
		ParentInvite: NewParentInviteRepository(db),
	}
}
