package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/handler"
	"github.com/noah-isme/gema-reminders/internal/models"
	"github.com/noah-isme/gema-reminders/internal/service"
)

type stubPolicyService struct {
	policies   []models.ReminderPolicy
	lastCreate dto.PolicyCreateRequest
	lastUpdate dto.PolicyUpdateRequest
	updateErr  error
	activeOnly bool
}

func (s *stubPolicyService) Policies(context.Context) ([]models.ReminderPolicy, error) {
	return s.policies, nil
}

func (s *stubPolicyService) List(context.Context) ([]dto.PolicyResponse, error) {
	out := make([]dto.PolicyResponse, 0, len(s.policies))
	for _, policy := range s.policies {
		out = append(out, dto.NewPolicyResponse(policy))
	}
	return out, nil
}

func (s *stubPolicyService) ListActive(ctx context.Context) ([]dto.PolicyResponse, error) {
	s.activeOnly = true
	return s.List(ctx)
}

func (s *stubPolicyService) Create(_ context.Context, payload dto.PolicyCreateRequest) (dto.PolicyResponse, error) {
	s.lastCreate = payload
	if payload.DaysBefore == 0 && payload.HoursBefore == 0 {
		return dto.PolicyResponse{}, service.ErrInvalidPolicy
	}
	now := time.Now().UTC()
	return dto.NewPolicyResponse(models.ReminderPolicy{
		ID:          7,
		Name:        payload.Name,
		DaysBefore:  payload.DaysBefore,
		HoursBefore: payload.HoursBefore,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}), nil
}

func (s *stubPolicyService) Update(_ context.Context, _ uint, payload dto.PolicyUpdateRequest) (dto.PolicyResponse, error) {
	s.lastUpdate = payload
	if s.updateErr != nil {
		return dto.PolicyResponse{}, s.updateErr
	}
	return dto.NewPolicyResponse(s.policies[0]), nil
}

func (s *stubPolicyService) SeedDefaults(context.Context) (int, error) {
	return 0, nil
}

func newPolicyApp(svc service.PolicyService) *fiber.App {
	app := fiber.New()
	handler.NewPolicyHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1/reminders/policies"))
	return app
}

func sendJSON(t *testing.T, app *fiber.App, method, target, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestPolicyHandlerCreate(t *testing.T) {
	svc := &stubPolicyService{}
	app := newPolicyApp(svc)

	resp := sendJSON(t, app, http.MethodPost, "/api/v1/reminders/policies", `{"name":"2 days before","days_before":2,"hours_before":6}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	raw := requireContract(t, resp, "policy.schema.json")
	var body struct {
		Data dto.PolicyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Equal(t, "2d6h", body.Data.Label)
	require.Equal(t, uint(6), svc.lastCreate.HoursBefore)
}

func TestPolicyHandlerCreateRejectsZeroLeadTime(t *testing.T) {
	app := newPolicyApp(&stubPolicyService{})

	resp := sendJSON(t, app, http.MethodPost, "/api/v1/reminders/policies", `{"name":"at the deadline"}`)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = sendJSON(t, app, http.MethodPost, "/api/v1/reminders/policies", `not json`)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPolicyHandlerUpdateConflictsWhileReferenced(t *testing.T) {
	svc := &stubPolicyService{updateErr: service.ErrPolicyInUse}
	app := newPolicyApp(svc)

	resp := sendJSON(t, app, http.MethodPatch, "/api/v1/reminders/policies/3", `{"days_before":5}`)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.NotNil(t, svc.lastUpdate.DaysBefore)
	require.Equal(t, uint(5), *svc.lastUpdate.DaysBefore)

	svc.updateErr = service.ErrPolicyNotFound
	resp = sendJSON(t, app, http.MethodPatch, "/api/v1/reminders/policies/3", `{"active":false}`)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = sendJSON(t, app, http.MethodPatch, "/api/v1/reminders/policies/zero", `{"active":false}`)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPolicyHandlerListActive(t *testing.T) {
	svc := &stubPolicyService{policies: []models.ReminderPolicy{{ID: 1, Name: "1 day before", DaysBefore: 1, Active: true}}}
	app := newPolicyApp(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reminders/policies?active=true", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, svc.activeOnly)

	var policies []dto.PolicyResponse
	require.NoError(t, json.Unmarshal(readEnvelope(t, resp).Data, &policies))
	require.Len(t, policies, 1)
	require.Equal(t, "1d", policies[0].Label)
}
