package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParentClaimFlags(t *testing.T) {
	c := &ParentClaim{Status: ClaimStatusPaid}
	assert.False(t, c.IsClaimed())
	assert.False(t, c.RedeemEmailSent())

	now := time.Now()
	c.RedeemEmailSentAt = &now
	c.Status = ClaimStatusClaimed
	assert.True(t, c.IsClaimed())
	assert.True(t, c.RedeemEmailSent())
}

func TestBillingWebhookEventIsSettled(t *testing.T) {
	var nilEvent *BillingWebhookEvent
	assert.False(t, nilEvent.IsSettled())

	now := time.Now()
	assert.False(t, (&BillingWebhookEvent{}).IsSettled())
	assert.False(t, (&BillingWebhookEvent{ProcessedAt: &now, ProcessingError: "boom"}).IsSettled())
	assert.True(t, (&BillingWebhookEvent{ProcessedAt: &now}).IsSettled())
}
