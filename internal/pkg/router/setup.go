package router

import (
	"time"

	"github.com/ManuelReschke/StudyFox/app/controllers"
	"github.com/gofiber/fiber/v2"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps carries the wired controllers and middleware settings.
type Deps struct {
	Billing *controllers.BillingController
	Invites *controllers.ParentInviteController
	Claims  *controllers.ClaimController

	JWTSecret      string
	LimiterStorage fiber.Storage // nil keeps limiter counters in memory
	RequestsPerMin int
	LimitWindow    time.Duration

	MetricsUser     string
	MetricsPassword string // empty leaves /metrics unprotected
}

func InstallRouter(app *fiber.App, deps Deps) {
	// Webhooks are signed by Stripe and must not sit behind the bearer auth
	// or the per-IP limiter of the user API.
	setup(app, NewWebhookRouter(deps), NewMetricsRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
