package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/handler"
	"github.com/noah-isme/gema-reminders/internal/service"
)

type stubDispatcher struct {
	batchSize int
}

func (s *stubDispatcher) ProcessDue(_ context.Context, _ time.Time, batchSize int) (dto.DispatchSummary, error) {
	s.batchSize = batchSize
	return dto.DispatchSummary{Selected: 3, Sent: 2, Cancelled: 1}, nil
}

type stubScheduler struct {
	service.SchedulerService
	reconciled uint
}

func (s *stubScheduler) ReconcileAssessment(_ context.Context, assessmentID uint) (dto.ReconcileSummary, error) {
	if assessmentID == 404 {
		return dto.ReconcileSummary{}, service.ErrAssessmentNotFound
	}
	s.reconciled = assessmentID
	return dto.ReconcileSummary{Scheduled: 2}, nil
}

func newOpsApp(dispatcher service.DispatcherService, scheduler service.SchedulerService) *fiber.App {
	app := fiber.New()
	validate := validator.New(validator.WithRequiredStructEnabled())
	handler.NewOpsHandler(dispatcher, nil, scheduler, validate, zerolog.Nop()).Register(app.Group("/api/v1/reminders/ops"))
	return app
}

func TestOpsHandlerProcessDue(t *testing.T) {
	dispatcher := &stubDispatcher{}
	app := newOpsApp(dispatcher, &stubScheduler{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reminders/ops/process-due", strings.NewReader(`{"batch_size":25}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 25, dispatcher.batchSize)

	var summary dto.DispatchSummary
	require.NoError(t, json.Unmarshal(readEnvelope(t, resp).Data, &summary))
	require.Equal(t, 2, summary.Sent)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/reminders/ops/process-due?batch_size=7", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 7, dispatcher.batchSize)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/reminders/ops/process-due?batch_size=5000", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestOpsHandlerReconcile(t *testing.T) {
	scheduler := &stubScheduler{}
	app := newOpsApp(&stubDispatcher{}, scheduler)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/reminders/ops/reconcile/12", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(12), scheduler.reconciled)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/reminders/ops/reconcile/404", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/reminders/ops/reconcile/abc", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
