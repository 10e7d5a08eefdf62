package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/StudyFox/internal/pkg/config"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// SubscriptionResolver fetches subscriptions from Stripe with the API key of
// the invoice's mode and extracts the routing tags from their metadata.
type SubscriptionResolver struct {
	cfg      config.Stripe
	backends *stripe.Backends
}

// NewSubscriptionResolver creates a resolver. A non-empty cfg.APIBaseURL
// points every call at that host.
func NewSubscriptionResolver(cfg config.Stripe) *SubscriptionResolver {
	r := &SubscriptionResolver{cfg: cfg}
	if base := strings.TrimRight(cfg.APIBaseURL, "/"); base != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(base),
			MaxNetworkRetries: stripe.Int64(0),
		})
		r.backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}
	return r
}

// Resolve returns the metadata of subscriptionID. Missing credentials for the
// requested mode are a configuration fault, not a droppable event.
func (r *SubscriptionResolver) Resolve(ctx context.Context, subscriptionID string, livemode bool) (*SubscriptionMetadata, error) {
	subID := strings.TrimSpace(subscriptionID)
	if subID == "" {
		return nil, errors.New("subscription id is required")
	}

	key, err := r.cfg.SecretKey(livemode)
	if err != nil {
		return nil, err
	}

	sc := client.New(key, r.backends)
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := sc.Subscriptions.Get(subID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe subscription %s: %w", subID, err)
	}

	return metadataFromSubscription(sub), nil
}

func metadataFromSubscription(sub *stripe.Subscription) *SubscriptionMetadata {
	md := &SubscriptionMetadata{SubscriptionID: sub.ID}
	if sub.Metadata != nil {
		md.StudentUserID = strings.TrimSpace(sub.Metadata[MetadataStudentUserID])
		md.ParentClaimID = strings.TrimSpace(sub.Metadata[MetadataParentClaimID])
	}
	return md
}
