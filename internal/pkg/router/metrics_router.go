package router

import (
	"github.com/ManuelReschke/StudyFox/app/controllers"
	"github.com/ManuelReschke/StudyFox/internal/pkg/constants"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"
)

type MetricsRouter struct {
	billing  *controllers.BillingController
	user     string
	password string
}

func (m MetricsRouter) InstallRouter(app *fiber.App) {
	var handlers []fiber.Handler
	if m.password != "" {
		handlers = append(handlers, basicauth.New(basicauth.Config{
			Users: map[string]string{
				m.user: m.password,
			},
		}))
	}

	metrics := app.Group(constants.MetricsRoute, handlers...)
	metrics.Get(constants.WebhookMetricsPath, m.billing.HandleWebhookStats)
	metrics.Get("/", monitor.New())
}

func NewMetricsRouter(deps Deps) *MetricsRouter {
	user := deps.MetricsUser
	if user == "" {
		user = "admin"
	}
	return &MetricsRouter{billing: deps.Billing, user: user, password: deps.MetricsPassword}
}
