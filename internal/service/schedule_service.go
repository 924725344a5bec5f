package service

import (
	"context"
	"fmt"
	"strings"

	"slotbook/internal/domain"
	"slotbook/internal/models"
	"slotbook/internal/scheduling"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ScheduleService manages the owner side: businesses, services and weekly templates.
type ScheduleService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewScheduleService(repo domain.Repository, logger *zerolog.Logger) *ScheduleService {
	return &ScheduleService{repo: repo, logger: logger}
}

// SetWeeklyTemplate overwrites the weekly template of a business. Days left out are closed.
func (s *ScheduleService) SetWeeklyTemplate(ctx context.Context, businessID string, templates []*models.AvailabilityTemplate) error {
	if _, err := s.repo.GetBusiness(ctx, businessID); err != nil {
		return err
	}

	seen := make(map[models.Weekday]bool, len(templates))
	for _, tpl := range templates {
		if tpl == nil {
			return fmt.Errorf("%w: empty template row", domain.ErrValidation)
		}
		if !tpl.DayOfWeek.Valid() {
			return fmt.Errorf("%w: day_of_week %d is outside 0..6", domain.ErrConfiguration, int(tpl.DayOfWeek))
		}
		if seen[tpl.DayOfWeek] {
			return fmt.Errorf("%w: duplicate template for %s", domain.ErrConfiguration, tpl.DayOfWeek)
		}
		seen[tpl.DayOfWeek] = true

		// Закрытый день может прийти без часов
		if !tpl.IsActive && tpl.StartTime == "" && tpl.EndTime == "" {
			continue
		}
		if _, _, err := scheduling.ParseTemplate(tpl); err != nil {
			return err
		}
	}

	if err := s.repo.ReplaceAvailabilityTemplates(ctx, businessID, templates); err != nil {
		return err
	}
	s.logger.Info().Str("business_id", businessID).Int("days", len(templates)).Msg("Weekly template replaced")
	return nil
}

// WeeklyTemplate returns seven rows, Sunday first. Days without a stored row come back closed.
func (s *ScheduleService) WeeklyTemplate(ctx context.Context, businessID string) ([]*models.AvailabilityTemplate, error) {
	if _, err := s.repo.GetBusiness(ctx, businessID); err != nil {
		return nil, err
	}

	stored, err := s.repo.ListAvailabilityTemplates(ctx, businessID)
	if err != nil {
		return nil, err
	}

	week := make([]*models.AvailabilityTemplate, 7)
	for _, tpl := range stored {
		if tpl.DayOfWeek.Valid() {
			week[tpl.DayOfWeek] = tpl
		}
	}
	for day := models.Sunday; day <= models.Saturday; day++ {
		if week[day] == nil {
			week[day] = &models.AvailabilityTemplate{BusinessID: businessID, DayOfWeek: day}
		}
	}
	return week, nil
}

func (s *ScheduleService) SaveBusiness(ctx context.Context, b *models.Business) error {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return fmt.Errorf("%w: business name is required", domain.ErrValidation)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return s.repo.SaveBusiness(ctx, b)
}

func (s *ScheduleService) GetBusiness(ctx context.Context, id string) (*models.Business, error) {
	return s.repo.GetBusiness(ctx, id)
}

// SaveService creates or updates a bookable service. Existing bookings keep their own duration snapshot.
func (s *ScheduleService) SaveService(ctx context.Context, svc *models.Service) error {
	svc.Name = strings.TrimSpace(svc.Name)
	switch {
	case svc.Name == "":
		return fmt.Errorf("%w: service name is required", domain.ErrValidation)
	case svc.DurationMinutes <= 0 || svc.DurationMinutes > models.MaxSlotsPerDay:
		return fmt.Errorf("%w: duration_minutes must be in 1..%d", domain.ErrValidation, models.MaxSlotsPerDay)
	case svc.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	}

	if _, err := s.repo.GetBusiness(ctx, svc.BusinessID); err != nil {
		return err
	}
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	} else if existing, err := s.repo.GetService(ctx, svc.ID); err == nil && existing.BusinessID != svc.BusinessID {
		return fmt.Errorf("%w: service %s belongs to another business", domain.ErrValidation, svc.ID)
	}

	return s.repo.SaveService(ctx, svc)
}

func (s *ScheduleService) GetService(ctx context.Context, id string) (*models.Service, error) {
	return s.repo.GetService(ctx, id)
}

func (s *ScheduleService) ListServices(ctx context.Context, businessID string) ([]*models.Service, error) {
	return s.repo.ListServices(ctx, businessID)
}
