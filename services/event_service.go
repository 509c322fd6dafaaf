package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adilp/bhmhockey/models"
	"github.com/adilp/bhmhockey/repositories"
)

type CreateEventInput struct {
	Name        string
	Description *string
	Location    *string
	StartsAt    time.Time
	Capacity    int
	FeeCents    int
}

type UpdateEventInput struct {
	Name        *string
	Description *string
	Location    *string
	StartsAt    *time.Time
	Capacity    *int
	FeeCents    *int
}

type EventService interface {
	Create(ctx context.Context, actor *models.User, input CreateEventInput) (*models.Event, error)
	GetByID(ctx context.Context, id int) (*models.Event, error)
	List(ctx context.Context, filter repositories.ListEventsFilter) ([]models.Event, error)
	Update(ctx context.Context, actor *models.User, id int, input UpdateEventInput) (*models.Event, error)
	Cancel(ctx context.Context, actor *models.User, id int) error
	Delete(ctx context.Context, actor *models.User, id int) error
	SendUpcomingReminders(ctx context.Context, window time.Duration) (int, error)
}

type eventService struct {
	eventRepo        repositories.EventRepository
	registrationRepo repositories.RegistrationRepository
	promoter         WaitlistPromoter
	notifier         Notifier
	logger           *slog.Logger
	now              func() time.Time
}

func NewEventService(
	eventRepo repositories.EventRepository,
	registrationRepo repositories.RegistrationRepository,
	promoter WaitlistPromoter,
	notifier Notifier,
	logger *slog.Logger,
) EventService {
	return &eventService{
		eventRepo:        eventRepo,
		registrationRepo: registrationRepo,
		promoter:         promoter,
		notifier:         notifier,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *eventService) Create(ctx context.Context, actor *models.User, input CreateEventInput) (*models.Event, error) {
	if actor.Role != models.RoleOrganizer && actor.Role != models.RoleAdmin {
		return nil, ErrForbiddenOperation
	}
	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidationFailed)
	}
	if input.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if !input.StartsAt.After(s.now()) {
		return nil, ErrEventInPast
	}

	event := &models.Event{
		Name:        input.Name,
		Description: input.Description,
		Location:    input.Location,
		OrganizerID: actor.ID,
		StartsAt:    input.StartsAt,
		Capacity:    input.Capacity,
		FeeCents:    input.FeeCents,
		Status:      models.EventActive,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "event created",
		slog.Int("event_id", event.ID), slog.Int("organizer_id", actor.ID))
	return event, nil
}

func (s *eventService) GetByID(ctx context.Context, id int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if event.Status == models.EventDeleted {
		return nil, ErrEventNotFound
	}
	return event, nil
}

func (s *eventService) List(ctx context.Context, filter repositories.ListEventsFilter) ([]models.Event, error) {
	return s.eventRepo.List(ctx, filter)
}

func (s *eventService) Update(ctx context.Context, actor *models.User, id int, input UpdateEventInput) (*models.Event, error) {
	event, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, event); err != nil {
		return nil, err
	}
	if event.Status != models.EventActive {
		return nil, ErrEventNotEditable
	}

	if input.Name != nil {
		event.Name = *input.Name
	}
	if input.Description != nil {
		event.Description = input.Description
	}
	if input.Location != nil {
		event.Location = input.Location
	}
	if input.StartsAt != nil {
		event.StartsAt = *input.StartsAt
	}
	previousCapacity := event.Capacity
	if input.Capacity != nil {
		if *input.Capacity <= 0 {
			return nil, ErrInvalidCapacity
		}
		event.Capacity = *input.Capacity
	}
	if input.FeeCents != nil {
		event.FeeCents = *input.FeeCents
	}

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, err
	}

	if event.Capacity > previousCapacity {
		s.fillFreedCapacity(ctx, actor, models.ParentRef{Kind: models.ParentEvent, ID: event.ID})
	}
	return event, nil
}

// fillFreedCapacity pulls waitlisted registrations into slots opened by a
// capacity increase. Promotion failures are logged, never surfaced: the
// update itself already committed.
func (s *eventService) fillFreedCapacity(ctx context.Context, actor *models.User, parent models.ParentRef) {
	if s.promoter == nil {
		return
	}
	for {
		promoted, err := s.promoter.PromoteFromWaitlist(ctx, actor.ID, parent)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to promote after capacity increase",
				slog.Int("parent_id", parent.ID), slog.Any("error", err))
			return
		}
		if promoted == nil {
			return
		}
	}
}

// Cancel marks the event cancelled and tells everyone with an active or
// waitlisted registration.
func (s *eventService) Cancel(ctx context.Context, actor *models.User, id int) error {
	event, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, event); err != nil {
		return err
	}
	if err := s.eventRepo.UpdateStatus(ctx, nil, id, models.EventCancelled); err != nil {
		return err
	}

	if s.notifier != nil {
		regs, err := s.registrationRepo.ListByParent(ctx, nil, models.ParentRef{Kind: models.ParentEvent, ID: id})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to list registrations for cancellation notice",
				slog.Int("event_id", id), slog.Any("error", err))
			return nil
		}
		for _, reg := range regs {
			if reg.Status == models.RegistrationCancelled {
				continue
			}
			s.notifier.Notify(ctx, reg.UserID, models.NotificationTournamentStatus,
				event.Name, "The event has been cancelled.",
				map[string]interface{}{"event_id": id})
		}
	}
	return nil
}

// Delete is a lifecycle transition, not a row removal; only cancelled events
// can be hidden.
func (s *eventService) Delete(ctx context.Context, actor *models.User, id int) error {
	event, err := s.eventRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	if err := s.authorize(actor, event); err != nil {
		return err
	}
	if event.Status != models.EventCancelled {
		return ErrEventNotCancelled
	}
	return s.eventRepo.UpdateStatus(ctx, nil, id, models.EventDeleted)
}

// SendUpcomingReminders notifies active registrants of events starting
// within the window. Each event is marked so the sweep sends at most one
// reminder per event.
func (s *eventService) SendUpcomingReminders(ctx context.Context, window time.Duration) (int, error) {
	events, err := s.eventRepo.ListNeedingReminder(ctx, s.now(), window)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, event := range events {
		regs, err := s.registrationRepo.ListByParent(ctx, nil, models.ParentRef{Kind: models.ParentEvent, ID: event.ID})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to list registrations for reminder",
				slog.Int("event_id", event.ID), slog.Any("error", err))
			continue
		}
		if s.notifier != nil {
			for _, reg := range regs {
				if !reg.Status.Active() {
					continue
				}
				s.notifier.Notify(ctx, reg.UserID, models.NotificationEventReminder,
					event.Name,
					fmt.Sprintf("Starts %s", event.StartsAt.Format(time.RFC1123)),
					map[string]interface{}{"event_id": event.ID})
			}
		}
		if err := s.eventRepo.MarkReminderSent(ctx, event.ID, s.now()); err != nil {
			s.logger.WarnContext(ctx, "failed to mark reminder sent",
				slog.Int("event_id", event.ID), slog.Any("error", err))
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *eventService) authorize(actor *models.User, event *models.Event) error {
	if actor == nil {
		return ErrForbiddenOperation
	}
	if actor.Role == models.RoleAdmin || actor.ID == event.OrganizerID {
		return nil
	}
	return ErrForbiddenOperation
}
