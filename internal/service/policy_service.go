package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/models"
	"github.com/noah-isme/gema-reminders/internal/observability"
	"github.com/noah-isme/gema-reminders/internal/repository"
)

const policyCacheKey = "reminders:policies:v1"

// PolicySource hands out the current reminder policies.
type PolicySource interface {
	Policies(ctx context.Context) ([]models.ReminderPolicy, error)
}

// PolicyService manages reminder policies.
type PolicyService interface {
	PolicySource
	List(ctx context.Context) ([]dto.PolicyResponse, error)
	ListActive(ctx context.Context) ([]dto.PolicyResponse, error)
	Create(ctx context.Context, payload dto.PolicyCreateRequest) (dto.PolicyResponse, error)
	Update(ctx context.Context, id uint, payload dto.PolicyUpdateRequest) (dto.PolicyResponse, error)
	SeedDefaults(ctx context.Context) (int, error)
}

type policyService struct {
	repo      repository.PolicyRepository
	cache     *redis.Client
	ttl       time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
}

// DefaultPolicies are installed on an empty policy table.
func DefaultPolicies() []models.ReminderPolicy {
	return []models.ReminderPolicy{
		{Name: "7 days before", DaysBefore: 7, Active: true},
		{Name: "3 days before", DaysBefore: 3, Active: true},
		{Name: "1 day before", DaysBefore: 1, Active: true},
		{Name: "6 hours before", HoursBefore: 6, Active: true},
	}
}

// NewPolicyService constructs the policy service. cache may be nil.
func NewPolicyService(repo repository.PolicyRepository, cache *redis.Client, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) PolicyService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &policyService{
		repo:      repo,
		cache:     cache,
		ttl:       ttl,
		validator: validate,
		logger:    logger.With().Str("component", "policy_service").Logger(),
	}
}

// Policies returns every policy, active or not, through the Redis cache.
func (s *policyService) Policies(ctx context.Context) ([]models.ReminderPolicy, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, policyCacheKey).Result(); err == nil && cached != "" {
			var policies []models.ReminderPolicy
			if err := json.Unmarshal([]byte(cached), &policies); err == nil {
				observability.PolicyCache().WithLabelValues("hit").Inc()
				return policies, nil
			}
		} else if err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("policy cache read failed")
		}
	}

	policies, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		observability.PolicyCache().WithLabelValues("miss").Inc()
		if payload, err := json.Marshal(policies); err == nil {
			if err := s.cache.Set(ctx, policyCacheKey, payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to cache reminder policies")
			}
		}
	}

	return policies, nil
}

func (s *policyService) List(ctx context.Context) ([]dto.PolicyResponse, error) {
	policies, err := s.Policies(ctx)
	if err != nil {
		return nil, err
	}
	return toPolicyResponses(policies, false), nil
}

func (s *policyService) ListActive(ctx context.Context) ([]dto.PolicyResponse, error) {
	policies, err := s.Policies(ctx)
	if err != nil {
		return nil, err
	}
	return toPolicyResponses(policies, true), nil
}

func (s *policyService) Create(ctx context.Context, payload dto.PolicyCreateRequest) (dto.PolicyResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PolicyResponse{}, err
	}

	policy := models.ReminderPolicy{
		Name:        strings.TrimSpace(payload.Name),
		DaysBefore:  payload.DaysBefore,
		HoursBefore: payload.HoursBefore,
		Active:      true,
	}
	if payload.Active != nil {
		policy.Active = *payload.Active
	}
	if policy.Offset() <= 0 {
		return dto.PolicyResponse{}, ErrInvalidPolicy
	}

	if err := s.repo.Create(ctx, &policy); err != nil {
		return dto.PolicyResponse{}, policyWriteError(err)
	}
	s.invalidate(ctx)

	s.logger.Info().Uint("policy_id", policy.ID).Str("lead_time", policy.Label()).Msg("reminder policy created")
	return dto.NewPolicyResponse(policy), nil
}

func (s *policyService) Update(ctx context.Context, id uint, payload dto.PolicyUpdateRequest) (dto.PolicyResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PolicyResponse{}, err
	}

	policy, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PolicyResponse{}, ErrPolicyNotFound
		}
		return dto.PolicyResponse{}, err
	}

	offset := policy.Offset()
	if payload.Name != nil {
		policy.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.DaysBefore != nil {
		policy.DaysBefore = *payload.DaysBefore
	}
	if payload.HoursBefore != nil {
		policy.HoursBefore = *payload.HoursBefore
	}
	if payload.Active != nil {
		policy.Active = *payload.Active
	}

	if policy.Offset() <= 0 {
		return dto.PolicyResponse{}, ErrInvalidPolicy
	}
	if policy.Offset() != offset {
		referenced, err := s.repo.IsReferenced(ctx, id)
		if err != nil {
			return dto.PolicyResponse{}, err
		}
		if referenced {
			return dto.PolicyResponse{}, ErrPolicyInUse
		}
	}

	if err := s.repo.Update(ctx, &policy); err != nil {
		return dto.PolicyResponse{}, policyWriteError(err)
	}
	s.invalidate(ctx)

	return dto.NewPolicyResponse(policy), nil
}

func policyWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrPolicyNameTaken
	}
	return err
}

func (s *policyService) SeedDefaults(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	created := 0
	for _, policy := range DefaultPolicies() {
		policy := policy
		if err := s.repo.Create(ctx, &policy); err != nil {
			return created, err
		}
		created++
	}
	s.invalidate(ctx)

	s.logger.Info().Int("count", created).Msg("default reminder policies seeded")
	return created, nil
}

func (s *policyService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, policyCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate policy cache")
	}
}

func toPolicyResponses(policies []models.ReminderPolicy, activeOnly bool) []dto.PolicyResponse {
	out := make([]dto.PolicyResponse, 0, len(policies))
	for _, policy := range policies {
		if activeOnly && !policy.Active {
			continue
		}
		out = append(out, dto.NewPolicyResponse(policy))
	}
	return out
}
