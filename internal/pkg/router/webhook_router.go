package router

import (
	"github.com/ManuelReschke/StudyFox/app/controllers"
	"github.com/ManuelReschke/StudyFox/internal/pkg/constants"
	"github.com/gofiber/fiber/v2"
)

type WebhookRouter struct {
	billing *controllers.BillingController
}

func (w WebhookRouter) InstallRouter(app *fiber.App) {
	app.Get(constants.HealthRoute, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	hooks := app.Group(constants.WebhooksRoute)
	hooks.Post(constants.StripeWebhookPath, w.billing.HandleStripeWebhook)
}

func NewWebhookRouter(deps Deps) *WebhookRouter {
	return &WebhookRouter{billing: deps.Billing}
}
