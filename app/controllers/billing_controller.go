package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/StudyFox/internal/pkg/billing"
	"github.com/ManuelReschke/StudyFox/internal/pkg/metrics/counter"
	"github.com/gofiber/fiber/v2"
)

const webhookTimeout = 15 * time.Second

// WebhookProcessor is satisfied by *billing.WebhookService.
type WebhookProcessor interface {
	HandleDelivery(ctx context.Context, payload []byte, sigHeader string) (*billing.DeliveryResult, error)
}

// WebhookStats is satisfied by *counter.WebhookCounter.
type WebhookStats interface {
	Snapshot(ctx context.Context) ([]counter.Count, error)
}

type BillingController struct {
	webhooks WebhookProcessor
	stats    WebhookStats
}

// NewBillingController creates the controller. stats may be nil.
func NewBillingController(webhooks WebhookProcessor, stats WebhookStats) *BillingController {
	return &BillingController{webhooks: webhooks, stats: stats}
}

// HandleStripeWebhook answers 200 on success or benign no-op, 400 when the
// delivery can never succeed and 500 when Stripe should redeliver.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	res, err := bc.webhooks.HandleDelivery(ctx, rawBody, signature)
	if err != nil {
		switch {
		case billing.IsVerificationError(err):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid_signature"})
		case errors.Is(err, billing.ErrMalformedEvent):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid_payload"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "webhook_processing_failed"})
		}
	}

	if res != nil && res.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleWebhookStats lists the webhook outcome counters.
func (bc *BillingController) HandleWebhookStats(c *fiber.Ctx) error {
	if bc.stats == nil {
		return fiber.NewError(fiber.StatusNotFound, "webhook stats are disabled")
	}
	counts, err := bc.stats.Snapshot(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "counters": counts})
}
