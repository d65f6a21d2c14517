package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/service"
	"github.com/noah-isme/gema-reminders/internal/utils"
)

// OpsHandler exposes on-demand dispatch, drain and reconcile runs to operators.
type OpsHandler struct {
	dispatcher service.DispatcherService
	delivery   service.DeliveryService
	scheduler  service.SchedulerService
	validator  *validator.Validate
	now        func() time.Time
	logger     zerolog.Logger
}

// NewOpsHandler constructs the operations handler.
func NewOpsHandler(dispatcher service.DispatcherService, delivery service.DeliveryService, scheduler service.SchedulerService, validate *validator.Validate, logger zerolog.Logger) *OpsHandler {
	return &OpsHandler{
		dispatcher: dispatcher,
		delivery:   delivery,
		scheduler:  scheduler,
		validator:  validate,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With().Str("component", "ops_handler").Logger(),
	}
}

// Register binds the ops routes.
func (h *OpsHandler) Register(router fiber.Router) {
	router.Post("/process-due", h.processDue)
	router.Post("/drain-delivery", h.drainDelivery)
	router.Post("/reconcile/:assessmentID", h.reconcile)
	router.Get("/delivery", h.listDelivery)
}

func (h *OpsHandler) batchRequest(c *fiber.Ctx) (dto.BatchRequest, error) {
	var req dto.BatchRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return req, err
		}
	}
	if req.BatchSize == 0 {
		size, err := parseQueryInt(c, "batch_size")
		if err != nil {
			return req, err
		}
		req.BatchSize = size
	}
	return req, h.validator.Struct(req)
}

func (h *OpsHandler) processDue(c *fiber.Ctx) error {
	req, err := h.batchRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid batch size")
	}

	summary, err := h.dispatcher.ProcessDue(requestContext(c), h.now(), req.BatchSize)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "due reminders processed", summary)
}

func (h *OpsHandler) drainDelivery(c *fiber.Ctx) error {
	req, err := h.batchRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid batch size")
	}

	summary, err := h.delivery.Drain(requestContext(c), h.now(), req.BatchSize)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "delivery queue drained", summary)
}

func (h *OpsHandler) reconcile(c *fiber.Ctx) error {
	assessmentID, err := parseIDParam(c, "assessmentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assessment id")
	}

	summary, err := h.scheduler.ReconcileAssessment(requestContext(c), assessmentID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assessment reconciled", summary)
}

func (h *OpsHandler) listDelivery(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	response, err := h.delivery.List(requestContext(c), c.Query("status"), page, pageSize)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	return utils.OK(c, response.Items, "delivery jobs", response.Pagination)
}
