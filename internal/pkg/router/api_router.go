package router

import (
	"time"

	"github.com/ManuelReschke/StudyFox/app/controllers"
	"github.com/ManuelReschke/StudyFox/internal/pkg/constants"
	"github.com/ManuelReschke/StudyFox/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

type ApiRouter struct {
	invites        *controllers.ParentInviteController
	claims         *controllers.ClaimController
	jwtSecret      string
	storage        fiber.Storage
	requestsPerMin int
	window         time.Duration
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	window := h.window
	if window <= 0 {
		window = time.Minute
	}

	api := app.Group(constants.APIRoute, middleware.NewIPLimiter(h.requestsPerMin, window, h.storage))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group(constants.APIV1Path, middleware.RequireBearerIdentity(h.jwtSecret))
	v1.Post(constants.ParentInvitesPath, h.invites.HandleRequestInvite)
	v1.Post(constants.ClaimRedeemPath, h.claims.HandleRedeem)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{
		invites:        deps.Invites,
		claims:         deps.Claims,
		jwtSecret:      deps.JWTSecret,
		storage:        deps.LimiterStorage,
		requestsPerMin: deps.RequestsPerMin,
		window:         deps.LimitWindow,
	}
}
