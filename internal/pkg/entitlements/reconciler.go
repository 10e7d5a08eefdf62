package entitlements

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
)

// Result is what a reconcile call did to the store.
type Result string

const (
	ResultAlreadySatisfied Result = "already_satisfied"
	ResultExtended         Result = "extended"
	ResultGranted          Result = "granted"
)

// Reconciler moves a customer's Pro expiry forward, never backward.
type Reconciler struct {
	store         Store
	entitlementID string
}

func NewReconciler(store Store, entitlementID string) *Reconciler {
	return &Reconciler{store: store, entitlementID: strings.TrimSpace(entitlementID)}
}

// Reconcile makes the customer's grant last at least until expiresAtMs.
//
// The store cannot update an expiry, so extending is revoke followed by
// grant. If a previous attempt died between the two calls, the re-read below
// finds no active grant and the plain grant path finishes the job.
func (r *Reconciler) Reconcile(ctx context.Context, customerID string, expiresAtMs int64) (Result, error) {
	cid := strings.TrimSpace(customerID)
	if cid == "" {
		return "", errors.New("customer id is required")
	}
	if r.entitlementID == "" {
		return "", errors.New("entitlement id is not configured")
	}
	if expiresAtMs <= 0 {
		return "", fmt.Errorf("invalid expiry %d", expiresAtMs)
	}

	active, err := r.store.ActiveEntitlements(ctx, cid)
	if err != nil {
		return "", fmt.Errorf("load active entitlements: %w", err)
	}

	current := r.find(active)
	if current != nil {
		// a grant without expiry already covers any period
		if current.ExpiresAtMs == nil || *current.ExpiresAtMs >= expiresAtMs {
			log.Infof("[Reconciler] customer=%s already entitled until %s", cid, describeExpiry(current.ExpiresAtMs))
			return ResultAlreadySatisfied, nil
		}

		log.Infof("[Reconciler] customer=%s extending %d -> %d", cid, *current.ExpiresAtMs, expiresAtMs)
		if err := r.store.Revoke(ctx, cid, r.entitlementID); err != nil {
			return "", fmt.Errorf("revoke before extend: %w", err)
		}
		if err := r.store.Grant(ctx, cid, r.entitlementID, expiresAtMs); err != nil {
			log.Errorf("[Reconciler] customer=%s revoked but grant failed, retry will re-grant: %v", cid, err)
			return "", fmt.Errorf("grant after revoke: %w", err)
		}
		return ResultExtended, nil
	}

	if err := r.store.Grant(ctx, cid, r.entitlementID, expiresAtMs); err != nil {
		return "", fmt.Errorf("grant: %w", err)
	}
	log.Infof("[Reconciler] customer=%s granted until %d", cid, expiresAtMs)
	return ResultGranted, nil
}

func (r *Reconciler) find(active []ActiveEntitlement) *ActiveEntitlement {
	for i := range active {
		if active[i].EntitlementID == r.entitlementID {
			return &active[i]
		}
	}
	return nil
}

func describeExpiry(ms *int64) string {
	if ms == nil {
		return "forever"
	}
	return fmt.Sprintf("%d", *ms)
}
