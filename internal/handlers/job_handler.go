package handlers

import (
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/jobs"
	"github.com/gofiber/fiber/v2"
)

// JobHandler lets admins trigger a periodic job out of schedule.
type JobHandler struct {
	runner *jobs.Runner
}

func NewJobHandler(runner *jobs.Runner) *JobHandler {
	return &JobHandler{runner: runner}
}

func (h *JobHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"jobs": h.runner.Names()})
}

func (h *JobHandler) Run(c *fiber.Ctx) error {
	name := c.Params("name")
	n, err := h.runner.RunNow(c.UserContext(), name)
	if err != nil {
		return respondError(c, err, "run_job")
	}
	return c.JSON(dto.SweepResponse{Job: name, Affected: n})
}
