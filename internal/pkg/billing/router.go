package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuelReschke/StudyFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/StudyFox/internal/pkg/parentclaim"
	"github.com/gofiber/fiber/v2/log"
)

// MetadataResolver is satisfied by *SubscriptionResolver.
type MetadataResolver interface {
	Resolve(ctx context.Context, subscriptionID string, livemode bool) (*SubscriptionMetadata, error)
}

// EntitlementReconciler is satisfied by *entitlements.Reconciler.
type EntitlementReconciler interface {
	Reconcile(ctx context.Context, customerID string, expiresAtMs int64) (entitlements.Result, error)
}

// ClaimPaymentHandler is satisfied by *parentclaim.Manager.
type ClaimPaymentHandler interface {
	MarkPaidAndNotify(ctx context.Context, in parentclaim.PaidInput) (parentclaim.Outcome, error)
}

// Dispatcher routes verified Stripe events. Only invoice.paid grants access.
type Dispatcher struct {
	resolver   MetadataResolver
	reconciler EntitlementReconciler
	claims     ClaimPaymentHandler
}

func NewDispatcher(resolver MetadataResolver, reconciler EntitlementReconciler, claims ClaimPaymentHandler) *Dispatcher {
	return &Dispatcher{resolver: resolver, reconciler: reconciler, claims: claims}
}

// Dispatch handles one event. Errors are meant to fail the delivery so Stripe
// retries it; benign drops return a nil error with a descriptive outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) (Outcome, error) {
	if ev == nil {
		return "", errors.New("event is nil")
	}

	switch ev.Type {
	case EventCheckoutSessionCompleted:
		// a completed session is not a confirmed payment
		return OutcomeIgnored, nil
	case EventInvoicePaid:
		return d.handleInvoicePaid(ctx, ev)
	case EventSubscriptionDeleted:
		// the granted expiry lapses on its own
		return OutcomeIgnored, nil
	default:
		return OutcomeIgnored, nil
	}
}

func (d *Dispatcher) handleInvoicePaid(ctx context.Context, ev *Event) (Outcome, error) {
	inv, err := ParseInvoice(ev.Data.Object)
	if err != nil {
		log.Warnf("[Webhook] event %s: %v", ev.ID, err)
		return OutcomeMalformed, nil
	}
	if inv.SubscriptionID == "" {
		log.Warnf("[Webhook] invoice %s has no subscription, skipping", inv.ID)
		return OutcomeNotSubscription, nil
	}
	if inv.PeriodEndEpoch <= 0 {
		log.Warnf("[Webhook] invoice %s has no period end, dropping", inv.ID)
		return OutcomeMalformed, nil
	}

	md, err := d.resolver.Resolve(ctx, inv.SubscriptionID, inv.Livemode)
	if err != nil {
		return "", fmt.Errorf("resolve subscription %s: %w", inv.SubscriptionID, err)
	}

	expiresAtMs := inv.ExpiresAtMs()
	switch {
	case md.ParentClaimID != "":
		if md.StudentUserID != "" {
			log.Warnf("[Webhook] subscription %s carries both routing tags, using parent claim %s", md.SubscriptionID, md.ParentClaimID)
		}
		outcome, err := d.claims.MarkPaidAndNotify(ctx, parentclaim.PaidInput{
			ClaimID:        md.ParentClaimID,
			InvoiceID:      inv.ID,
			SubscriptionID: inv.SubscriptionID,
			CustomerID:     inv.CustomerID,
			Livemode:       inv.Livemode,
			ExpiresAtMs:    expiresAtMs,
		})
		if err != nil {
			return "", err
		}
		return claimOutcome(outcome), nil

	case md.StudentUserID != "":
		result, err := d.reconciler.Reconcile(ctx, md.StudentUserID, expiresAtMs)
		if err != nil {
			return "", fmt.Errorf("reconcile entitlement for %s: %w", md.StudentUserID, err)
		}
		return entitlementOutcome(result), nil

	default:
		log.Warnf("[Webhook] subscription %s has no routing metadata, dropping invoice %s", md.SubscriptionID, inv.ID)
		return OutcomeMalformed, nil
	}
}

func entitlementOutcome(r entitlements.Result) Outcome {
	switch r {
	case entitlements.ResultGranted:
		return OutcomeEntitlementGranted
	case entitlements.ResultExtended:
		return OutcomeEntitlementExtended
	default:
		return OutcomeEntitlementSatisfied
	}
}

func claimOutcome(o parentclaim.Outcome) Outcome {
	switch o {
	case parentclaim.OutcomeEmailSent:
		return OutcomeClaimEmailSent
	case parentclaim.OutcomeEmailAlreadySent:
		return OutcomeClaimEmailAlreadySet
	default:
		return OutcomeClaimSkipped
	}
}
