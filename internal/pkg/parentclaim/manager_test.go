package parentclaim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuelReschke/StudyFox/app/models"
	"github.com/ManuelReschke/StudyFox/internal/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func pendingClaim(id string) models.ParentClaim {
	return models.ParentClaim{
		ID:         id,
		ChildEmail: "kid@example.com",
		ClaimCode:  "ABCDEFGHJKLMNPQR",
		Status:     models.ClaimStatusPending,
	}
}

func newTestManager(claims *memClaims, mailer *fakeMailer) *Manager {
	m := NewManager(claims, mailer, newFakeLocker(), "studyfox://redeem")
	m.now = func() time.Time { return fixedNow }
	return m
}

func paidInput(id string, expiresAtMs int64) PaidInput {
	return PaidInput{
		ClaimID:        id,
		InvoiceID:      "in_1",
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		ExpiresAtMs:    expiresAtMs,
	}
}

func TestMarkPaidAndNotifyPendingToPaid(t *testing.T) {
	claims := newMemClaims(pendingClaim("c1"))
	mailer := &fakeMailer{}
	m := newTestManager(claims, mailer)

	outcome, err := m.MarkPaidAndNotify(context.Background(), paidInput("c1", 1700000000000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmailSent, outcome)

	row := claims.get("c1")
	assert.Equal(t, models.ClaimStatusPaid, row.Status)
	assert.Equal(t, "in_1", row.StripeInvoiceID)
	assert.Equal(t, "sub_1", row.StripeSubscriptionID)
	require.NotNil(t, row.PaidExpiresAtMs)
	assert.Equal(t, int64(1700000000000), *row.PaidExpiresAtMs)
	require.NotNil(t, row.RedeemEmailSentAt)
	assert.Equal(t, fixedNow, *row.RedeemEmailSentAt)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "kid@example.com", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].HTML, "ABCD-EFGH-JKLM-NPQR")
	assert.Contains(t, mailer.sent[0].HTML, "studyfox://redeem?code=ABCDEFGHJKLMNPQR")
}

func TestMarkPaidAndNotifyReplaySendsOnce(t *testing.T) {
	claims := newMemClaims(pendingClaim("c1"))
	mailer := &fakeMailer{}
	m := newTestManager(claims, mailer)
	ctx := context.Background()

	_, err := m.MarkPaidAndNotify(ctx, paidInput("c1", 1700000000000))
	require.NoError(t, err)
	firstPaidAt := *claims.get("c1").PaidAt

	m.now = func() time.Time { return fixedNow.Add(time.Hour) }
	outcome, err := m.MarkPaidAndNotify(ctx, paidInput("c1", 1700000000000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmailAlreadySent, outcome)

	// an older invoice replayed late must not pull the expiry back
	outcome, err = m.MarkPaidAndNotify(ctx, paidInput("c1", 1600000000000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmailAlreadySent, outcome)

	row := claims.get("c1")
	assert.Equal(t, int64(1700000000000), *row.PaidExpiresAtMs)
	assert.Equal(t, firstPaidAt, *row.PaidAt)
	assert.Len(t, mailer.sent, 1)
}

func TestMarkPaidAndNotifyNeverOverwritesClaimed(t *testing.T) {
	claimed := pendingClaim("c1")
	claimed.Status = models.ClaimStatusClaimed
	claimed.ClaimedByUserID = "student_1"
	claims := newMemClaims(claimed)
	mailer := &fakeMailer{}
	m := newTestManager(claims, mailer)

	outcome, err := m.MarkPaidAndNotify(context.Background(), paidInput("c1", 1800000000000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	row := claims.get("c1")
	assert.Equal(t, models.ClaimStatusClaimed, row.Status)
	assert.Nil(t, row.PaidExpiresAtMs)
	assert.Empty(t, mailer.sent)
}

func TestMarkPaidAndNotifyAbsentClaim(t *testing.T) {
	m := newTestManager(newMemClaims(), &fakeMailer{})

	outcome, err := m.MarkPaidAndNotify(context.Background(), paidInput("missing", 1700000000000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestMarkPaidAndNotifyEmailFailureIsRecordedAndRetried(t *testing.T) {
	claims := newMemClaims(pendingClaim("c1"))
	sendErr := errors.New("sendgrid down")
	mailer := &fakeMailer{err: sendErr}
	m := newTestManager(claims, mailer)
	ctx := context.Background()

	_, err := m.MarkPaidAndNotify(ctx, paidInput("c1", 1700000000000))
	require.Error(t, err)
	assert.ErrorIs(t, err, sendErr)

	row := claims.get("c1")
	assert.Equal(t, models.ClaimStatusPaid, row.Status)
	assert.Nil(t, row.RedeemEmailSentAt)
	assert.Equal(t, 1, row.RedeemEmailAttempts)
	assert.Contains(t, row.RedeemEmailLastError, "sendgrid down")

	// redelivery after the provider recovered
	mailer.err = nil
	outcome, err := m.MarkPaidAndNotify(ctx, paidInput("c1", 1700000000000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmailSent, outcome)

	row = claims.get("c1")
	assert.NotNil(t, row.RedeemEmailSentAt)
	assert.Empty(t, row.RedeemEmailLastError)
	assert.Equal(t, 1, row.RedeemEmailAttempts)
	assert.Len(t, mailer.sent, 1)
}

func TestMarkPaidAndNotifyLockHeld(t *testing.T) {
	claims := newMemClaims(pendingClaim("c1"))
	mailer := &fakeMailer{}
	locker := newFakeLocker()
	m := NewManager(claims, mailer, locker, "studyfox://redeem")

	release, err := locker.Acquire(context.Background(), lockKey("c1"), time.Minute)
	require.NoError(t, err)
	defer release()

	_, err = m.MarkPaidAndNotify(context.Background(), paidInput("c1", 1700000000000))
	assert.ErrorIs(t, err, cache.ErrLockHeld)
	assert.Empty(t, mailer.sent)
	assert.Equal(t, models.ClaimStatusPaid, claims.get("c1").Status)
}

func TestMarkPaidAndNotifySendsWhenLockerUnavailable(t *testing.T) {
	claims := newMemClaims(pendingClaim("c1"))
	mailer := &fakeMailer{}
	m := NewManager(claims, mailer, brokenLocker{}, "studyfox://redeem")

	for i := 0; i < 3; i++ {
		outcome, err := m.MarkPaidAndNotify(context.Background(), paidInput("c1", 1700000000000))
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, OutcomeEmailSent, outcome)
		} else {
			assert.Equal(t, OutcomeEmailAlreadySent, outcome)
		}
	}

	require.Len(t, mailer.sent, 1)
	row := claims.get("c1")
	assert.Equal(t, models.ClaimStatusPaid, row.Status)
	assert.NotNil(t, row.RedeemEmailSentAt)
}

func TestMarkPaidAndNotifyValidatesInput(t *testing.T) {
	m := newTestManager(newMemClaims(), &fakeMailer{})

	_, err := m.MarkPaidAndNotify(context.Background(), paidInput(" ", 1))
	assert.Error(t, err)
	_, err = m.MarkPaidAndNotify(context.Background(), paidInput("c1", 0))
	assert.Error(t, err)
}

func TestRedeemLinkKeepsExistingQuery(t *testing.T) {
	m := NewManager(nil, nil, nil, "https://studyfox.app/redeem?src=email")
	link, err := m.redeemLink("abcd-efgh")
	require.NoError(t, err)
	assert.Equal(t, "https://studyfox.app/redeem?code=ABCDEFGH&src=email", link)
}

func TestRetryPendingEmails(t *testing.T) {
	failing := pendingClaim("c1")
	failing.Status = models.ClaimStatusPaid
	failing.RedeemEmailAttempts = 2

	exhausted := pendingClaim("c2")
	exhausted.ClaimCode = "ZZZZYYYYXXXXWWWW"
	exhausted.Status = models.ClaimStatusPaid
	exhausted.RedeemEmailAttempts = 5

	pending := pendingClaim("c3")
	pending.ClaimCode = "2345678923456789"

	claims := newMemClaims(failing, exhausted, pending)
	mailer := &fakeMailer{}
	m := newTestManager(claims, mailer)

	sent, err := m.RetryPendingEmails(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, mailer.sent, 1)
	assert.NotNil(t, claims.get("c1").RedeemEmailSentAt)
	assert.Nil(t, claims.get("c2").RedeemEmailSentAt)
	assert.Nil(t, claims.get("c3").RedeemEmailSentAt)
}
