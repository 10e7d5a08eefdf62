package controllers

import (
	"context"
	"errors"

	"github.com/ManuelReschke/StudyFox/app/models"
	"github.com/ManuelReschke/StudyFox/internal/pkg/invite"
	"github.com/ManuelReschke/StudyFox/internal/pkg/middleware"
	"github.com/ManuelReschke/StudyFox/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// InviteRequester is satisfied by *invite.Service.
type InviteRequester interface {
	RequestInvite(ctx context.Context, userID, parentEmail string) (*models.ParentInvite, error)
}

type parentInviteRequest struct {
	ParentEmail string `json:"parentEmail" validate:"required"`
}

type ParentInviteController struct {
	invites InviteRequester
}

func NewParentInviteController(invites InviteRequester) *ParentInviteController {
	return &ParentInviteController{invites: invites}
}

func (pc *ParentInviteController) HandleRequestInvite(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": "login required"})
	}

	var req parentInviteRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}

	_, err := pc.invites.RequestInvite(c.UserContext(), userID, req.ParentEmail)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"ok": true})
	case errors.Is(err, invite.ErrInvalidEmail):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": invite.ErrInvalidEmail.Error()})
	case errors.Is(err, invite.ErrRateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"ok": false, "error": invite.ErrRateLimited.Error()})
	case errors.Is(err, invite.ErrInProgress):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"ok": false, "error": invite.ErrInProgress.Error()})
	case errors.Is(err, invite.ErrDeliveryFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"ok": false, "error": invite.ErrDeliveryFailed.Error()})
	default:
		log.Errorf("[Invite] request for user %s failed: %v", userID, err)
		return err
	}
}
