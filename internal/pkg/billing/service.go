package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/StudyFox/app/models"
	"github.com/ManuelReschke/StudyFox/internal/pkg/config"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventDispatcher is satisfied by *Dispatcher.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev *Event) (Outcome, error)
}

// OutcomeRecorder counts processed deliveries.
type OutcomeRecorder interface {
	Record(ctx context.Context, eventType, outcome string)
}

// DeliveryResult describes a handled webhook delivery.
type DeliveryResult struct {
	EventID   string
	EventType string
	Outcome   Outcome
	Duplicate bool
}

// WebhookService verifies, records and dispatches Stripe webhook deliveries.
type WebhookService struct {
	repo       Repository
	dispatcher EventDispatcher
	counter    OutcomeRecorder
	secrets    []string
	tolerance  time.Duration
	now        func() time.Time
}

// NewWebhookService creates the service. counter may be nil.
func NewWebhookService(repo Repository, dispatcher EventDispatcher, cfg config.Stripe, counter OutcomeRecorder) *WebhookService {
	return &WebhookService{
		repo:       repo,
		dispatcher: dispatcher,
		counter:    counter,
		secrets:    cfg.WebhookSecrets(),
		tolerance:  cfg.WebhookTolerance,
		now:        time.Now,
	}
}

// NewWebhookServiceFromDB wires the GORM ledger.
func NewWebhookServiceFromDB(db *gorm.DB, dispatcher EventDispatcher, cfg config.Stripe, counter OutcomeRecorder) *WebhookService {
	return NewWebhookService(NewRepository(db), dispatcher, cfg, counter)
}

// HandleDelivery processes one raw delivery.
//
// Verification errors (see IsVerificationError) and ErrMalformedEvent must
// be answered with 400. Any other error must fail the delivery with 500 so
// Stripe redelivers. A delivery that already finished is not run again, but
// every step below the ledger is idempotent on its own.
func (s *WebhookService) HandleDelivery(ctx context.Context, payload []byte, sigHeader string) (*DeliveryResult, error) {
	if err := VerifyStripeSignature(payload, sigHeader, s.secrets, s.tolerance, s.now()); err != nil {
		if IsVerificationError(err) {
			log.Warnf("[Webhook] rejected delivery: %v", err)
			s.record(ctx, "unverified", "invalid_signature")
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", config.ErrMissingCredentials, err)
	}

	ev, err := ParseEvent(payload)
	if err != nil {
		log.Warnf("[Webhook] %v", err)
		return nil, err
	}
	result := &DeliveryResult{EventID: ev.ID, EventType: ev.Type}

	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: ev.ID,
		EventType:       ev.Type,
		Livemode:        ev.Livemode,
		PayloadJSON:     payload,
	})
	if err != nil {
		return nil, fmt.Errorf("record webhook event %s: %w", ev.ID, err)
	}
	if !created && stored.IsSettled() {
		log.Infof("[Webhook] event %s (%s) already processed", ev.ID, ev.Type)
		result.Outcome = OutcomeDuplicate
		result.Duplicate = true
		s.record(ctx, ev.Type, string(OutcomeDuplicate))
		return result, nil
	}

	outcome, dispatchErr := s.dispatcher.Dispatch(ctx, ev)
	result.Outcome = outcome

	if err := s.MarkWebhookProcessed(ctx, stored.ID, outcome, dispatchErr); err != nil {
		log.Errorf("[Webhook] mark event %s processed: %v", ev.ID, err)
	}

	if dispatchErr != nil {
		if errors.Is(dispatchErr, config.ErrMissingCredentials) {
			log.Errorf("[Webhook] configuration fault on event %s: %v", ev.ID, dispatchErr)
		} else {
			log.Warnf("[Webhook] event %s (%s) failed: %v", ev.ID, ev.Type, dispatchErr)
		}
		s.record(ctx, ev.Type, "error")
		return result, dispatchErr
	}

	log.Infof("[Webhook] event %s (%s): %s", ev.ID, ev.Type, outcome)
	s.record(ctx, ev.Type, string(outcome))
	return result, nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *WebhookService) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		return false, nil, errors.New("provider_event_id is required")
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		Livemode:        in.Livemode,
		Payload:         datatypes.JSON(in.PayloadJSON),
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *WebhookService) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, outcome Outcome, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, string(outcome), errMsg)
}

func (s *WebhookService) record(ctx context.Context, eventType, outcome string) {
	if s.counter == nil {
		return
	}
	s.counter.Record(ctx, eventType, outcome)
}
