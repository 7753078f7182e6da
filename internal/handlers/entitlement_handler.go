package handlers

import (
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type EntitlementHandler struct {
	entitlements *services.EntitlementService
}

func NewEntitlementHandler(entitlements *services.EntitlementService) *EntitlementHandler {
	return &EntitlementHandler{entitlements: entitlements}
}

func (h *EntitlementHandler) Get(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	resp, err := h.entitlements.Current(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err, "get_entitlement")
	}
	return c.JSON(resp)
}

func (h *EntitlementHandler) Cancel(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.entitlements.Cancel(c.UserContext(), userID); err != nil {
		return respondError(c, err, "cancel_entitlement")
	}
	return c.JSON(fiber.Map{"message": "Plan cancelled"})
}
