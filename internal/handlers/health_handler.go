package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	ping func() error
}

func NewHealthHandler(ping func() error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	status := fiber.StatusOK
	if err := h.ping(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
	})
}
