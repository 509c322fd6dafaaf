package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adilp/bhmhockey/models"
)

type eventEnv struct {
	events        *fakeEventRepo
	registrations *fakeRegistrationRepo
	audit         *fakeAuditRepo
	notifier      *fakeNotifier
	waitlist      *waitlistService
	svc           *eventService
	clock         time.Time
}

func newEventEnv() *eventEnv {
	env := &eventEnv{
		events:        newFakeEventRepo(),
		registrations: newFakeRegistrationRepo(),
		audit:         &fakeAuditRepo{},
		notifier:      &fakeNotifier{},
		clock:         time.Date(2025, 11, 3, 18, 0, 0, 0, time.UTC),
	}
	waitlist := NewWaitlistService(
		env.registrations, env.events, newFakeTournamentRepo(), env.audit,
		fakeTxRunner{}, &fakeLocker{}, env.notifier, testLogger(),
		WaitlistConfig{PaymentWindow: 2 * time.Hour},
	).(*waitlistService)
	waitlist.now = func() time.Time { return env.clock }
	env.waitlist = waitlist

	svc := NewEventService(env.events, env.registrations, waitlist, env.notifier, testLogger()).(*eventService)
	svc.now = func() time.Time { return env.clock }
	env.svc = svc
	return env
}

func (env *eventEnv) addEvent(status models.EventStatus, startsIn time.Duration) *models.Event {
	event := &models.Event{
		Name:        "Sunday Skate",
		OrganizerID: 1,
		StartsAt:    env.clock.Add(startsIn),
		Capacity:    20,
		Status:      status,
	}
	env.events.add(event)
	return event
}

func (env *eventEnv) addRegistration(eventID, userID int, status models.RegistrationStatus) {
	reg := &models.Registration{ParentKind: models.ParentEvent, ParentID: eventID, UserID: userID, Status: status}
	if status == models.RegistrationWaitlisted {
		reg.WaitlistPosition = intPtr(1)
	}
	if err := env.registrations.Create(context.Background(), nil, reg); err != nil {
		panic(err)
	}
}

func TestCreateEvent(t *testing.T) {
	env := newEventEnv()

	event, err := env.svc.Create(context.Background(), organizer(), CreateEventInput{
		Name:     "Sunday Skate",
		StartsAt: env.clock.Add(48 * time.Hour),
		Capacity: 20,
		FeeCents: 1500,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventActive, event.Status)
	assert.Equal(t, 1, event.OrganizerID)
	assert.True(t, event.ChargesFee())
}

func TestCreateEventValidation(t *testing.T) {
	env := newEventEnv()
	valid := CreateEventInput{Name: "Sunday Skate", StartsAt: env.clock.Add(time.Hour), Capacity: 20}

	_, err := env.svc.Create(context.Background(), player(5), valid)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	input := valid
	input.Capacity = 0
	_, err = env.svc.Create(context.Background(), organizer(), input)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	input = valid
	input.StartsAt = env.clock.Add(-time.Hour)
	_, err = env.svc.Create(context.Background(), organizer(), input)
	assert.ErrorIs(t, err, ErrEventInPast)
}

func TestUpdateEventOnlyWhileActive(t *testing.T) {
	env := newEventEnv()
	cancelled := env.addEvent(models.EventCancelled, 24*time.Hour)

	_, err := env.svc.Update(context.Background(), organizer(), cancelled.ID, UpdateEventInput{Name: strPtr("Renamed")})
	assert.ErrorIs(t, err, ErrEventNotEditable)

	active := env.addEvent(models.EventActive, 24*time.Hour)
	updated, err := env.svc.Update(context.Background(), organizer(), active.ID, UpdateEventInput{Name: strPtr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
}

func TestUpdateEventCapacityIncreasePromotesWaitlist(t *testing.T) {
	env := newEventEnv()
	event := &models.Event{
		Name:        "Sunday Skate",
		OrganizerID: 1,
		StartsAt:    env.clock.Add(48 * time.Hour),
		Capacity:    1,
		FeeCents:    1500,
		Status:      models.EventActive,
	}
	env.events.add(event)
	parent := models.ParentRef{Kind: models.ParentEvent, ID: event.ID}

	first, err := env.waitlist.Register(context.Background(), 10, parent)
	require.NoError(t, err)
	require.Equal(t, models.RegistrationRegistered, first.Status)
	for _, userID := range []int{20, 21} {
		queued, err := env.waitlist.Register(context.Background(), userID, parent)
		require.NoError(t, err)
		require.Equal(t, models.RegistrationWaitlisted, queued.Status)
	}

	updated, err := env.svc.Update(context.Background(), organizer(), event.ID, UpdateEventInput{Capacity: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Capacity)

	// Both queued skaters take the new slots, in queue order.
	for _, userID := range []int{20, 21} {
		promoted, err := env.registrations.GetActiveByUser(context.Background(), nil, parent, userID)
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationRegistered, promoted.Status)
		require.NotNil(t, promoted.PaymentDeadlineAt)
		assert.Equal(t, env.clock.Add(2*time.Hour), *promoted.PaymentDeadlineAt)
	}

	queue, err := env.waitlist.ListQueue(context.Background(), parent)
	require.NoError(t, err)
	assert.Empty(t, queue)
	assert.Len(t, env.audit.byAction(models.AuditActionWaitlistPromote), 2)
}

func TestCancelEventNotifiesRegistrants(t *testing.T) {
	env := newEventEnv()
	event := env.addEvent(models.EventActive, 24*time.Hour)
	env.addRegistration(event.ID, 10, models.RegistrationRegistered)
	env.addRegistration(event.ID, 11, models.RegistrationWaitlisted)

	cancelled := &models.Registration{ParentKind: models.ParentEvent, ParentID: event.ID, UserID: 12, Status: models.RegistrationRegistered}
	require.NoError(t, env.registrations.Create(context.Background(), nil, cancelled))
	require.NoError(t, env.registrations.Cancel(context.Background(), nil, cancelled.ID))

	require.NoError(t, env.svc.Cancel(context.Background(), organizer(), event.ID))

	stored, err := env.events.GetByID(context.Background(), nil, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventCancelled, stored.Status)
	assert.Len(t, env.notifier.sent, 2)
}

func TestDeleteEventRequiresCancelled(t *testing.T) {
	env := newEventEnv()
	active := env.addEvent(models.EventActive, 24*time.Hour)

	assert.ErrorIs(t, env.svc.Delete(context.Background(), organizer(), active.ID), ErrEventNotCancelled)

	require.NoError(t, env.svc.Cancel(context.Background(), organizer(), active.ID))
	require.NoError(t, env.svc.Delete(context.Background(), organizer(), active.ID))

	_, err := env.svc.GetByID(context.Background(), active.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventAuthorization(t *testing.T) {
	env := newEventEnv()
	event := env.addEvent(models.EventActive, 24*time.Hour)

	err := env.svc.Cancel(context.Background(), &models.User{ID: 99, Role: models.RoleOrganizer}, event.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	err = env.svc.Cancel(context.Background(), &models.User{ID: 99, Role: models.RoleAdmin}, event.ID)
	assert.NoError(t, err)
}

func TestSendUpcomingReminders(t *testing.T) {
	env := newEventEnv()
	soon := env.addEvent(models.EventActive, 12*time.Hour)
	env.addEvent(models.EventActive, 90*time.Hour) // outside the window
	env.addRegistration(soon.ID, 10, models.RegistrationRegistered)
	env.addRegistration(soon.ID, 11, models.RegistrationWaitlisted) // not reminded

	sent, err := env.svc.SendUpcomingReminders(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, 10, env.notifier.sent[0].UserID)
	assert.Equal(t, models.NotificationEventReminder, env.notifier.sent[0].Type)

	// At most one reminder per event.
	sent, err = env.svc.SendUpcomingReminders(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}
