package handlers

import (
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type PlanHandler struct {
	plans *services.PlanService
}

func NewPlanHandler(plans *services.PlanService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// List is the public catalog: active plans, cheapest first.
func (h *PlanHandler) List(c *fiber.Ctx) error {
	plans, err := h.plans.ListActive(c.UserContext())
	if err != nil {
		return respondError(c, err, "list_plans")
	}
	return c.JSON(fiber.Map{"plans": plans})
}

func (h *PlanHandler) Get(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "Invalid plan ID")
	}
	plan, err := h.plans.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "get_plan")
	}
	if !plan.IsActive {
		return respondError(c, services.ErrPlanNotFound, "get_plan")
	}
	return c.JSON(plan)
}

func (h *PlanHandler) ListAll(c *fiber.Ctx) error {
	plans, err := h.plans.ListAll(c.UserContext())
	if err != nil {
		return respondError(c, err, "list_all_plans")
	}
	return c.JSON(fiber.Map{"plans": plans})
}

func (h *PlanHandler) Create(c *fiber.Ctx) error {
	var req dto.CreatePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	plan, err := h.plans.Create(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err, "create_plan")
	}
	return c.Status(fiber.StatusCreated).JSON(plan)
}

func (h *PlanHandler) Update(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "Invalid plan ID")
	}
	var req dto.UpdatePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	plan, err := h.plans.Update(c.UserContext(), id, &req)
	if err != nil {
		return respondError(c, err, "update_plan")
	}
	return c.JSON(plan)
}

func (h *PlanHandler) Delete(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "Invalid plan ID")
	}
	soft, err := h.plans.Delete(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "delete_plan")
	}
	if soft {
		return c.JSON(fiber.Map{"message": "Plan has purchases and was deactivated", "deactivated": true})
	}
	return c.JSON(fiber.Map{"message": "Plan deleted", "deactivated": false})
}
