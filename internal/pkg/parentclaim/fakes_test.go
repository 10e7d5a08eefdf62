package parentclaim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuelReschke/StudyFox/app/models"
	"github.com/ManuelReschke/StudyFox/app/repository"
	"github.com/ManuelReschke/StudyFox/internal/pkg/cache"
	"github.com/ManuelReschke/StudyFox/internal/pkg/mail"
	"gorm.io/gorm"
)

// memClaims mirrors the conditional updates of the GORM repository.
type memClaims struct {
	mu   sync.Mutex
	rows map[string]*models.ParentClaim
}

func newMemClaims(claims ...models.ParentClaim) *memClaims {
	m := &memClaims{rows: map[string]*models.ParentClaim{}}
	for i := range claims {
		c := claims[i]
		m.rows[c.ID] = &c
	}
	return m
}

func (m *memClaims) get(id string) models.ParentClaim {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memClaims) GetByID(_ context.Context, id string) (*models.ParentClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *row
	return &c, nil
}

func (m *memClaims) GetByCode(_ context.Context, code string) (*models.ParentClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ClaimCode == code {
			c := *row
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memClaims) MarkPaid(_ context.Context, id string, p repository.ClaimPayment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status == models.ClaimStatusClaimed {
		return false, nil
	}
	row.Status = models.ClaimStatusPaid
	row.StripeInvoiceID = p.InvoiceID
	row.StripeSubscriptionID = p.SubscriptionID
	row.StripeCustomerID = p.CustomerID
	row.Livemode = p.Livemode
	if row.PaidExpiresAtMs == nil || *row.PaidExpiresAtMs < p.ExpiresAtMs {
		v := p.ExpiresAtMs
		row.PaidExpiresAtMs = &v
	}
	if row.PaidAt == nil {
		at := p.PaidAt
		row.PaidAt = &at
	}
	return true, nil
}

func (m *memClaims) MarkRedeemEmailSent(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.RedeemEmailSentAt != nil {
		return false, nil
	}
	row.RedeemEmailSentAt = &at
	row.RedeemEmailLastError = ""
	return true, nil
}

func (m *memClaims) RecordRedeemEmailFailure(_ context.Context, id string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		row.RedeemEmailAttempts++
		row.RedeemEmailLastError = message
	}
	return nil
}

func (m *memClaims) MarkClaimed(_ context.Context, id, userID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status != models.ClaimStatusPaid {
		return false, nil
	}
	row.Status = models.ClaimStatusClaimed
	row.ClaimedByUserID = userID
	row.ClaimedAt = &at
	return true, nil
}

func (m *memClaims) ListPendingRedeemEmails(_ context.Context, maxAttempts, limit int) ([]models.ParentClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ParentClaim
	for _, row := range m.rows {
		if row.Status == models.ClaimStatusPaid && row.RedeemEmailSentAt == nil && row.RedeemEmailAttempts < maxAttempts {
			out = append(out, *row)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, cache.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

// brokenLocker fails like a locker whose Redis is unreachable.
type brokenLocker struct{}

func (brokenLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
}
