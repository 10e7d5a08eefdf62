// Package parentclaim advances parent-purchased claims through
// pending -> paid -> claimed and sends the one-time redemption email.
package parentclaim

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/StudyFox/app/models"
	"github.com/ManuelReschke/StudyFox/app/repository"
	"github.com/ManuelReschke/StudyFox/internal/pkg/cache"
	"github.com/ManuelReschke/StudyFox/internal/pkg/claimcode"
	"github.com/ManuelReschke/StudyFox/internal/pkg/mail"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const redeemEmailLockTTL = 2 * time.Minute

// Outcome is what MarkPaidAndNotify did.
type Outcome string

const (
	OutcomeEmailSent        Outcome = "email_sent"
	OutcomeEmailAlreadySent Outcome = "email_already_sent"
	OutcomeSkipped          Outcome = "skipped"
)

// PaidInput is a paid invoice routed to a claim.
type PaidInput struct {
	ClaimID        string
	InvoiceID      string
	SubscriptionID string
	CustomerID     string
	Livemode       bool
	ExpiresAtMs    int64
}

// Locker narrows the window in which two deliveries of the same event could
// both send the email. Correctness still rests on the conditional writes, so
// only cache.ErrLockHeld fails a delivery; other lock errors are logged.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type Manager struct {
	claims repository.ParentClaimRepository
	mailer mail.Mailer
	locker Locker
	appURL string
	now    func() time.Time
}

// NewManager creates a manager. locker may be nil.
func NewManager(claims repository.ParentClaimRepository, mailer mail.Mailer, locker Locker, publicAppURL string) *Manager {
	return &Manager{
		claims: claims,
		mailer: mailer,
		locker: locker,
		appURL: publicAppURL,
		now:    time.Now,
	}
}

func lockKey(claimID string) string {
	return "parentclaim:redeem-email:" + claimID
}

// MarkPaidAndNotify records the payment on the claim and emails the claim
// code unless that already happened. An absent or claimed row is a benign
// race with redemption and returns OutcomeSkipped. A failed send is recorded
// on the row and returned so the delivery is retried.
func (m *Manager) MarkPaidAndNotify(ctx context.Context, in PaidInput) (Outcome, error) {
	id := strings.TrimSpace(in.ClaimID)
	if id == "" {
		return "", errors.New("claim id is required")
	}
	if in.ExpiresAtMs <= 0 {
		return "", fmt.Errorf("invalid expiry %d for claim %s", in.ExpiresAtMs, id)
	}

	updated, err := m.claims.MarkPaid(ctx, id, repository.ClaimPayment{
		InvoiceID:      in.InvoiceID,
		SubscriptionID: in.SubscriptionID,
		CustomerID:     in.CustomerID,
		Livemode:       in.Livemode,
		ExpiresAtMs:    in.ExpiresAtMs,
		PaidAt:         m.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("mark claim %s paid: %w", id, err)
	}
	if !updated {
		log.Infof("[ParentClaim] claim %s is absent or already claimed, skipping", id)
		return OutcomeSkipped, nil
	}

	claim, err := m.claims.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[ParentClaim] claim %s vanished after update", id)
			return OutcomeSkipped, nil
		}
		return "", fmt.Errorf("load claim %s: %w", id, err)
	}
	if claim.IsClaimed() {
		log.Infof("[ParentClaim] claim %s was redeemed concurrently, skipping email", id)
		return OutcomeSkipped, nil
	}

	return m.sendRedeemEmail(ctx, claim)
}

func (m *Manager) sendRedeemEmail(ctx context.Context, claim *models.ParentClaim) (Outcome, error) {
	if claim.RedeemEmailSent() {
		return OutcomeEmailAlreadySent, nil
	}

	if m.locker != nil {
		release, err := m.locker.Acquire(ctx, lockKey(claim.ID), redeemEmailLockTTL)
		switch {
		case errors.Is(err, cache.ErrLockHeld):
			return "", fmt.Errorf("redeem email lock for claim %s: %w", claim.ID, err)
		case err != nil:
			// the sent-at update still guards; only the double-send window widens
			log.Warnf("[ParentClaim] redeem email lock for claim %s unavailable, sending without it: %v", claim.ID, err)
		default:
			defer release()

			// another holder may have finished before we got the lock
			fresh, err := m.claims.GetByID(ctx, claim.ID)
			if err != nil {
				return "", fmt.Errorf("reload claim %s: %w", claim.ID, err)
			}
			if fresh.RedeemEmailSent() {
				return OutcomeEmailAlreadySent, nil
			}
			claim = fresh
		}
	}

	link, err := m.redeemLink(claim.ClaimCode)
	if err != nil {
		return "", err
	}
	msg, err := mail.RedeemEmail(claim.ChildEmail, mail.RedeemEmailData{
		Code: claimcode.Format(claim.ClaimCode),
		Link: template.URL(link),
	})
	if err != nil {
		return "", fmt.Errorf("render redeem email for claim %s: %w", claim.ID, err)
	}

	if err := m.mailer.Send(ctx, msg); err != nil {
		if rerr := m.claims.RecordRedeemEmailFailure(ctx, claim.ID, err.Error()); rerr != nil {
			log.Errorf("[ParentClaim] record email failure for claim %s: %v", claim.ID, rerr)
		}
		return "", fmt.Errorf("send redeem email for claim %s: %w", claim.ID, err)
	}

	marked, err := m.claims.MarkRedeemEmailSent(ctx, claim.ID, m.now().UTC())
	if err != nil {
		return "", fmt.Errorf("mark redeem email sent for claim %s: %w", claim.ID, err)
	}
	if !marked {
		log.Warnf("[ParentClaim] redeem email for claim %s was already marked sent", claim.ID)
	}
	log.Infof("[ParentClaim] redeem email sent for claim %s", claim.ID)
	return OutcomeEmailSent, nil
}

func (m *Manager) redeemLink(code string) (string, error) {
	u, err := url.Parse(m.appURL)
	if err != nil {
		return "", fmt.Errorf("invalid public app url %q: %w", m.appURL, err)
	}
	q := u.Query()
	q.Set("code", claimcode.Normalize(code))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RetryPendingEmails resends the redemption email for paid claims whose send
// failed fewer than maxAttempts times. It returns how many emails went out;
// individual failures are recorded on the rows and logged.
func (m *Manager) RetryPendingEmails(ctx context.Context, maxAttempts, limit int) (int, error) {
	claims, err := m.claims.ListPendingRedeemEmails(ctx, maxAttempts, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending redeem emails: %w", err)
	}

	sent := 0
	for i := range claims {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		outcome, err := m.sendRedeemEmail(ctx, &claims[i])
		if err != nil {
			log.Warnf("[ParentClaim] retry for claim %s failed: %v", claims[i].ID, err)
			continue
		}
		if outcome == OutcomeEmailSent {
			sent++
		}
	}
	return sent, nil
}
