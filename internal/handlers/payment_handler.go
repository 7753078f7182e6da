package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	payments *services.PaymentService
	clock    clock.Clock
}

func NewPaymentHandler(payments *services.PaymentService, clk clock.Clock) *PaymentHandler {
	return &PaymentHandler{payments: payments, clock: clk}
}

// Create opens a pending payment and the matching gateway order.
func (h *PaymentHandler) Create(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req dto.CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	resp, err := h.payments.CreatePayment(c.UserContext(), userID, &req)
	if err != nil {
		return respondError(c, err, "create_payment")
	}
	if resp.Resumed {
		return c.JSON(resp)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *PaymentHandler) Confirm(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "Invalid payment ID")
	}
	var req dto.ConfirmPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	payment, err := h.payments.ConfirmPayment(c.UserContext(), userID, id, &req)
	if err != nil {
		return respondError(c, err, "confirm_payment")
	}
	return c.JSON(payment)
}

func (h *PaymentHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	payments, err := h.payments.ListUserPayments(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err, "list_my_payments")
	}
	return c.JSON(fiber.Map{"payments": payments})
}

func (h *PaymentHandler) GetMine(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "Invalid payment ID")
	}
	payment, err := h.payments.GetUserPayment(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err, "get_payment")
	}
	return c.JSON(payment)
}

var dateRanges = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
}

// AdminList backs the payments dashboard.
// Query: status, gateway, range (7d|30d|90d|1y|all), search, limit, offset.
func (h *PaymentHandler) AdminList(c *fiber.Ctx) error {
	filter := dto.PaymentFilter{
		Status:  c.Query("status"),
		Gateway: c.Query("gateway"),
		Search:  c.Query("search"),
		Limit:   c.QueryInt("limit", 20),
		Offset:  c.QueryInt("offset", 0),
	}

	switch r := c.Query("range", "all"); r {
	case "all", "":
	default:
		d, ok := dateRanges[r]
		if !ok {
			return badRequest(c, "range must be one of: 7d, 30d, 90d, 1y, all")
		}
		since := h.clock.Now().Add(-d)
		filter.Since = &since
	}

	resp, err := h.payments.ListPayments(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err, "list_payments")
	}
	return c.JSON(resp)
}

func (h *PaymentHandler) AdminGet(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "Invalid payment ID")
	}
	payment, err := h.payments.GetPayment(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "get_payment")
	}
	return c.JSON(payment)
}

// AdminAction applies approve, refund or mark_failed.
func (h *PaymentHandler) AdminAction(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "Invalid payment ID")
	}
	var req dto.PaymentActionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	payment, err := h.payments.ApplyAction(c.UserContext(), id, &req)
	if err != nil {
		return respondError(c, err, "payment_"+req.Action)
	}
	return c.JSON(payment)
}
