package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/StudyFox/app/models"
	"gorm.io/gorm"
)

// parentClaimRepository implements the ParentClaimRepository interface
type parentClaimRepository struct {
	db *gorm.DB
}

// NewParentClaimRepository creates a new parent claim repository instance
func NewParentClaimRepository(db *gorm.DB) ParentClaimRepository {
	return &parentClaimRepository{db: db}
}

func (r *parentClaimRepository) GetByID(ctx context.Context, id string) (*models.ParentClaim, error) {
	var claim models.ParentClaim
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&claim).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *parentClaimRepository) GetByCode(ctx context.Context, normalizedCode string) (*models.ParentClaim, error) {
	var claim models.ParentClaim
	if err := r.db.WithContext(ctx).Where("claim_code = ?", normalizedCode).First(&claim).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func markPaidQuery(tx *gorm.DB, id string, p ClaimPayment) *gorm.DB {
	return tx.Model(&models.ParentClaim{}).
		Where("id = ? AND status <> ?", id, models.ClaimStatusClaimed).
		Updates(map[string]interface{}{
			"status":                 models.ClaimStatusPaid,
			"stripe_invoice_id":      p.InvoiceID,
			"stripe_subscription_id": p.SubscriptionID,
			"stripe_customer_id":     p.CustomerID,
			"livemode":               p.Livemode,
			"paid_expires_at_ms": gorm.Expr(
				"CASE WHEN paid_expires_at_ms IS NULL OR paid_expires_at_ms < ? THEN ? ELSE paid_expires_at_ms END",
				p.ExpiresAtMs, p.ExpiresAtMs,
			),
			"paid_at": gorm.Expr("COALESCE(paid_at, ?)", p.PaidAt),
		})
}

func (r *parentClaimRepository) MarkPaid(ctx context.Context, id string, p ClaimPayment) (bool, error) {
	res := markPaidQuery(r.db.WithContext(ctx), id, p)
	if res.Error != nil {
		return false, res.Error
	}
	// updated_at always changes, so RowsAffected counts matched rows on MySQL too
	return res.RowsAffected > 0, nil
}

func markRedeemEmailSentQuery(tx *gorm.DB, id string, at time.Time) *gorm.DB {
	return tx.Model(&models.ParentClaim{}).
		Where("id = ? AND redeem_email_sent_at IS NULL", id).
		Updates(map[string]interface{}{
			"redeem_email_sent_at":    at,
			"redeem_email_last_error": "",
		})
}

func (r *parentClaimRepository) MarkRedeemEmailSent(ctx context.Context, id string, at time.Time) (bool, error) {
	res := markRedeemEmailSentQuery(r.db.WithContext(ctx), id, at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *parentClaimRepository) RecordRedeemEmailFailure(ctx context.Context, id string, message string) error {
	return r.db.WithContext(ctx).Model(&models.ParentClaim{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"redeem_email_attempts":   gorm.Expr("redeem_email_attempts + 1"),
			"redeem_email_last_error": truncate(message, 2000),
		}).Error
}

func markClaimedQuery(tx *gorm.DB, id, userID string, at time.Time) *gorm.DB {
	return tx.Model(&models.ParentClaim{}).
		Where("id = ? AND status = ?", id, models.ClaimStatusPaid).
		Updates(map[string]interface{}{
			"status":             models.ClaimStatusClaimed,
			"claimed_by_user_id": userID,
			"claimed_at":         at,
		})
}

func (r *parentClaimRepository) MarkClaimed(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	res := markClaimedQuery(r.db.WithContext(ctx), id, userID, at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *parentClaimRepository) ListPendingRedeemEmails(ctx context.Context, maxAttempts, limit int) ([]models.ParentClaim, error) {
	var claims []models.ParentClaim
	q := r.db.WithContext(ctx).
		Where("status = ? AND redeem_email_sent_at IS NULL AND redeem_email_attempts < ?", models.ClaimStatusPaid, maxAttempts).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&claims).Error
	return claims, err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
