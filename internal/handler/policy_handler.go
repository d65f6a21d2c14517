package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/service"
	"github.com/noah-isme/gema-reminders/internal/utils"
)

// PolicyHandler administers reminder policies.
type PolicyHandler struct {
	service service.PolicyService
	logger  zerolog.Logger
}

// NewPolicyHandler constructs the policy handler.
func NewPolicyHandler(service service.PolicyService, logger zerolog.Logger) *PolicyHandler {
	return &PolicyHandler{
		service: service,
		logger:  logger.With().Str("component", "policy_handler").Logger(),
	}
}

// Register binds the policy routes.
func (h *PolicyHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/", h.create)
	router.Patch("/:id", h.update)
}

func (h *PolicyHandler) list(c *fiber.Ctx) error {
	var (
		policies []dto.PolicyResponse
		err      error
	)
	if c.QueryBool("active") {
		policies, err = h.service.ListActive(requestContext(c))
	} else {
		policies, err = h.service.List(requestContext(c))
	}
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "reminder policies", policies)
}

func (h *PolicyHandler) create(c *fiber.Ctx) error {
	var payload dto.PolicyCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}

	policy, err := h.service.Create(requestContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "reminder policy created", policy)
}

func (h *PolicyHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid policy id")
	}

	var payload dto.PolicyUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}

	policy, err := h.service.Update(requestContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "reminder policy updated", policy)
}
