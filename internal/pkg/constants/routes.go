package constants

// Static route constants
const (
	HealthRoute        = "/healthz"
	WebhooksRoute      = "/webhooks"
	StripeWebhookPath  = "/stripe"
	MetricsRoute       = "/metrics"
	WebhookMetricsPath = "/webhooks"
	APIRoute           = "/api"
	APIV1Path          = "/v1"
	ParentInvitesPath  = "/parent-invites"
	ClaimRedeemPath    = "/claims/redeem"
)
