package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/authctx"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/jobs"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/services"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// respondError maps service errors to HTTP responses. Unknown errors become
// a 500 with a generic message; the detail goes to the log and Sentry.
func respondError(c *fiber.Ctx, err error, action string) error {
	status, message := classify(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed",
			"action", action,
			"method", c.Method(),
			"path", c.Path(),
			"error", err.Error(),
			"trace_id", c.GetRespHeader(fiber.HeaderXRequestID),
		)
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrPlanNotFound),
		errors.Is(err, services.ErrPaymentNotFound),
		errors.Is(err, services.ErrNoActiveEntitlement),
		errors.Is(err, jobs.ErrUnknownJob):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrDuplicatePending),
		errors.Is(err, services.ErrPlanUnavailable),
		errors.Is(err, jobs.ErrJobBusy):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, services.ErrGatewayVerification):
		return fiber.StatusPaymentRequired, "Payment could not be verified. If money was deducted it will be refunded automatically."
	case errors.Is(err, services.ErrGatewayUnavailable):
		return fiber.StatusBadGateway, "Payment provider is unavailable, please try again"
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}

func currentUser(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := authctx.GetUserID(c)
	return id, err == nil
}

func pathID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}
