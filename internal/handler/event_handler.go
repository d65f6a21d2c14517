package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/service"
	"github.com/noah-isme/gema-reminders/internal/utils"
)

// EventDecoder turns a raw envelope into a validated domain event.
type EventDecoder interface {
	Decode(data []byte, fallbackType string) (dto.DomainEvent, error)
}

// EventHandler accepts domain events over HTTP.
type EventHandler struct {
	service service.EventService
	decoder EventDecoder
	logger  zerolog.Logger
}

// NewEventHandler constructs the event handler.
func NewEventHandler(service service.EventService, decoder EventDecoder, logger zerolog.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		decoder: decoder,
		logger:  logger.With().Str("component", "event_handler").Logger(),
	}
}

// Register binds the event routes.
func (h *EventHandler) Register(router fiber.Router) {
	router.Post("/", h.accept)
}

func (h *EventHandler) accept(c *fiber.Ctx) error {
	event, err := h.decoder.Decode(c.Body(), "")
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	result, err := h.service.Handle(requestContext(c), event)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "event applied", result)
}
