package controllers

import (
	"context"
	"errors"

	"github.com/ManuelReschke/StudyFox/internal/pkg/middleware"
	"github.com/ManuelReschke/StudyFox/internal/pkg/parentclaim"
	"github.com/ManuelReschke/StudyFox/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// ClaimRedeemer is satisfied by *parentclaim.Redeemer.
type ClaimRedeemer interface {
	Redeem(ctx context.Context, userID, rawCode string) (*parentclaim.Redemption, error)
}

type redeemRequest struct {
	Code string `json:"code" validate:"required"`
}

type ClaimController struct {
	redeemer ClaimRedeemer
}

func NewClaimController(redeemer ClaimRedeemer) *ClaimController {
	return &ClaimController{redeemer: redeemer}
}

func (cc *ClaimController) HandleRedeem(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": "login required"})
	}

	var req redeemRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := cc.redeemer.Redeem(c.UserContext(), userID, req.Code)
	if err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, parentclaim.ErrMalformedCode):
			status = fiber.StatusBadRequest
		case errors.Is(err, parentclaim.ErrClaimNotFound):
			status = fiber.StatusNotFound
		case errors.Is(err, parentclaim.ErrClaimNotPaid), errors.Is(err, parentclaim.ErrClaimAlreadyUsed):
			status = fiber.StatusConflict
		default:
			log.Errorf("[ParentClaim] redeem for user %s failed: %v", userID, err)
			return err
		}
		return c.Status(status).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}

	return c.JSON(fiber.Map{"ok": true, "expiresAtMs": res.ExpiresAtMs})
}
