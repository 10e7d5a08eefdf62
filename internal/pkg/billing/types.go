package billing

import "errors"

// Stripe event types the router knows about.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventInvoicePaid              = "invoice.paid"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
)

// Subscription metadata keys written at checkout.
const (
	MetadataStudentUserID = "student_user_id"
	MetadataParentClaimID = "parent_claim_id"
)

// ErrMalformedEvent marks a verified body that is not a usable event
// envelope. Redelivery cannot fix it, so it is answered with 400.
var ErrMalformedEvent = errors.New("malformed webhook event")

// Outcome describes what processing a delivery did. Outcomes are logged,
// counted and stored on the webhook ledger row.
type Outcome string

const (
	OutcomeIgnored              Outcome = "ignored"
	OutcomeNotSubscription      Outcome = "not_subscription"
	OutcomeMalformed            Outcome = "malformed"
	OutcomeDuplicate            Outcome = "duplicate"
	OutcomeEntitlementGranted   Outcome = "entitlement_granted"
	OutcomeEntitlementExtended  Outcome = "entitlement_extended"
	OutcomeEntitlementSatisfied Outcome = "entitlement_already_satisfied"
	OutcomeClaimEmailSent       Outcome = "claim_email_sent"
	OutcomeClaimEmailAlreadySet Outcome = "claim_email_already_sent"
	OutcomeClaimSkipped         Outcome = "claim_skipped"
)

// SubscriptionMetadata carries the routing tags read from a subscription.
// Exactly one of StudentUserID and ParentClaimID is expected.
type SubscriptionMetadata struct {
	SubscriptionID string
	StudentUserID  string
	ParentClaimID  string
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Livemode        bool
	PayloadJSON     []byte
}
