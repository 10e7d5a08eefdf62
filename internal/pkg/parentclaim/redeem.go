package parentclaim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/StudyFox/app/models"
	"github.com/ManuelReschke/StudyFox/app/repository"
	"github.com/ManuelReschke/StudyFox/internal/pkg/claimcode"
	"github.com/ManuelReschke/StudyFox/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

var (
	ErrMalformedCode    = errors.New("claim code is malformed")
	ErrClaimNotFound    = errors.New("claim code not found")
	ErrClaimNotPaid     = errors.New("claim is not yet paid")
	ErrClaimAlreadyUsed = errors.New("claim code was already used")
)

// EntitlementReconciler is satisfied by *entitlements.Reconciler.
type EntitlementReconciler interface {
	Reconcile(ctx context.Context, customerID string, expiresAtMs int64) (entitlements.Result, error)
}

// Redemption is a successful claim redemption.
type Redemption struct {
	ClaimID     string
	ExpiresAtMs int64
	Result      entitlements.Result
}

// Redeemer lets a signed-in student redeem a paid claim for their own account.
type Redeemer struct {
	claims     repository.ParentClaimRepository
	reconciler EntitlementReconciler
	now        func() time.Time
}

func NewRedeemer(claims repository.ParentClaimRepository, reconciler EntitlementReconciler) *Redeemer {
	return &Redeemer{claims: claims, reconciler: reconciler, now: time.Now}
}

// Redeem marks the claim claimed by userID and then grants the claim's paid
// period. Only the account that wins the claim update is granted. If the grant
// fails, the same user may redeem again because reconciling is idempotent.
func (r *Redeemer) Redeem(ctx context.Context, userID, rawCode string) (*Redemption, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("user id is required")
	}
	code := claimcode.Normalize(rawCode)
	if !claimcode.IsWellFormed(code) {
		return nil, ErrMalformedCode
	}

	claim, err := r.claims.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("load claim by code: %w", err)
	}

	switch claim.Status {
	case models.ClaimStatusPaid, models.ClaimStatusClaimed:
	default:
		return nil, ErrClaimNotPaid
	}
	if claim.IsClaimed() && claim.ClaimedByUserID != uid {
		return nil, ErrClaimAlreadyUsed
	}
	if claim.PaidExpiresAtMs == nil || *claim.PaidExpiresAtMs <= 0 {
		return nil, fmt.Errorf("claim %s is paid without an expiry", claim.ID)
	}
	expiresAtMs := *claim.PaidExpiresAtMs

	if !claim.IsClaimed() {
		if err := r.claim(ctx, claim.ID, uid); err != nil {
			return nil, err
		}
	}

	// the claim now belongs to uid; a failed grant is retried by the same user
	result, err := r.reconciler.Reconcile(ctx, uid, expiresAtMs)
	if err != nil {
		return nil, fmt.Errorf("grant entitlement for claim %s: %w", claim.ID, err)
	}

	log.Infof("[ParentClaim] claim %s redeemed by user %s (%s)", claim.ID, uid, result)
	return &Redemption{ClaimID: claim.ID, ExpiresAtMs: expiresAtMs, Result: result}, nil
}

// claim moves the claim from paid to claimed for uid. Losing the race to
// another account is ErrClaimAlreadyUsed.
func (r *Redeemer) claim(ctx context.Context, claimID, uid string) error {
	claimed, err := r.claims.MarkClaimed(ctx, claimID, uid, r.now().UTC())
	if err != nil {
		return fmt.Errorf("mark claim %s claimed: %w", claimID, err)
	}
	if claimed {
		return nil
	}

	fresh, err := r.claims.GetByID(ctx, claimID)
	if err != nil {
		return fmt.Errorf("reload claim %s: %w", claimID, err)
	}
	if fresh.IsClaimed() && fresh.ClaimedByUserID == uid {
		return nil
	}
	log.Warnf("[ParentClaim] claim %s was redeemed concurrently", claimID)
	return ErrClaimAlreadyUsed
}
