package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adilp/bhmhockey/models"
)

type waitlistEnv struct {
	registrations *fakeRegistrationRepo
	events        *fakeEventRepo
	tournaments   *fakeTournamentRepo
	audit         *fakeAuditRepo
	notifier      *fakeNotifier
	svc           *waitlistService
	clock         time.Time
}

func newWaitlistEnv(cfg WaitlistConfig) *waitlistEnv {
	env := &waitlistEnv{
		registrations: newFakeRegistrationRepo(),
		events:        newFakeEventRepo(),
		tournaments:   newFakeTournamentRepo(),
		audit:         &fakeAuditRepo{},
		notifier:      &fakeNotifier{},
		clock:         time.Date(2025, 11, 3, 18, 0, 0, 0, time.UTC),
	}
	svc := NewWaitlistService(
		env.registrations, env.events, env.tournaments, env.audit,
		fakeTxRunner{}, &fakeLocker{}, env.notifier, testLogger(), cfg,
	).(*waitlistService)
	svc.now = func() time.Time { return env.clock }
	env.svc = svc
	return env
}

func (env *waitlistEnv) addEvent(capacity, feeCents int) models.ParentRef {
	event := &models.Event{
		Name:        "Friday Skate",
		OrganizerID: 1,
		StartsAt:    env.clock.Add(72 * time.Hour),
		Capacity:    capacity,
		FeeCents:    feeCents,
		Status:      models.EventActive,
	}
	env.events.add(event)
	return models.ParentRef{Kind: models.ParentEvent, ID: event.ID}
}

func (env *waitlistEnv) mustRegister(t *testing.T, userID int, parent models.ParentRef) *models.Registration {
	t.Helper()
	reg, err := env.svc.Register(context.Background(), userID, parent)
	require.NoError(t, err)
	return reg
}

func (env *waitlistEnv) positions(t *testing.T, parent models.ParentRef) map[int]int {
	t.Helper()
	queue, err := env.svc.ListQueue(context.Background(), parent)
	require.NoError(t, err)
	out := make(map[int]int, len(queue))
	for _, reg := range queue {
		require.NotNil(t, reg.WaitlistPosition)
		out[reg.UserID] = *reg.WaitlistPosition
	}
	return out
}

func player(id int) *models.User {
	return &models.User{ID: id, Role: models.RolePlayer}
}

func TestRegisterFillsCapacityThenWaitlists(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{})
	parent := env.addEvent(2, 0)

	first := env.mustRegister(t, 10, parent)
	assert.Equal(t, models.RegistrationRegistered, first.Status)
	second := env.mustRegister(t, 11, parent)
	assert.Equal(t, models.RegistrationRegistered, second.Status)

	third := env.mustRegister(t, 12, parent)
	assert.Equal(t, models.RegistrationWaitlisted, third.Status)
	require.NotNil(t, third.WaitlistPosition)
	assert.Equal(t, 1, *third.WaitlistPosition)

	fourth := env.mustRegister(t, 13, parent)
	require.NotNil(t, fourth.WaitlistPosition)
	assert.Equal(t, 2, *fourth.WaitlistPosition)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{})
	parent := env.addEvent(2, 0)

	env.mustRegister(t, 10, parent)
	_, err := env.svc.Register(context.Background(), 10, parent)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegisterAfterCancelAllowed(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{})
	parent := env.addEvent(2, 0)

	reg := env.mustRegister(t, 10, parent)
	require.NoError(t, env.svc.Cancel(context.Background(), player(10), reg.ID))
	again := env.mustRegister(t, 10, parent)
	assert.Equal(t, models.RegistrationRegistered, again.Status)
}

func TestRegisterClosedParents(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{})

	parent := env.addEvent(2, 0)
	require.NoError(t, env.events.UpdateStatus(context.Background(), nil, parent.ID, models.EventCancelled))
	_, err := env.svc.Register(context.Background(), 10, parent)
	assert.ErrorIs(t, err, ErrRegistrationNotOpen)

	past := &models.Event{Name: "Past", OrganizerID: 1, StartsAt: env.clock.Add(-time.Hour), Capacity: 4, Status: models.EventActive}
	env.events.add(past)
	_, err = env.svc.Register(context.Background(), 10, models.ParentRef{Kind: models.ParentEvent, ID: past.ID})
	assert.ErrorIs(t, err, ErrRegistrationNotOpen)

	draft := &models.Tournament{Name: "Draft Cup", OrganizerID: 1, Status: models.TournamentDraft, MaxTeams: 4}
	env.tournaments.add(draft)
	_, err = env.svc.Register(context.Background(), 10, models.ParentRef{Kind: models.ParentTournament, ID: draft.ID})
	assert.ErrorIs(t, err, ErrRegistrationNotOpen)
}

func TestRegisterTournamentWaitlist(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{})
	open := &models.Tournament{Name: "Open Cup", OrganizerID: 1, Status: models.TournamentOpen, MaxTeams: 1}
	env.tournaments.add(open)
	parent := models.ParentRef{Kind: models.ParentTournament, ID: open.ID}

	first := env.mustRegister(t, 10, parent)
	assert.Equal(t, models.RegistrationRegistered, first.Status)
	second := env.mustRegister(t, 11, parent)
	assert.Equal(t, models.RegistrationWaitlisted, second.Status)
}

func TestCancelWaitlistedCompactsPositions(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{})
	parent := env.addEvent(1, 0)

	env.mustRegister(t, 10, parent)
	env.mustRegister(t, 20, parent)
	middle := env.mustRegister(t, 21, parent)
	env.mustRegister(t, 22, parent)

	require.NoError(t, env.svc.Cancel(context.Background(), player(21), middle.ID))

	positions := env.positions(t, parent)
	assert.Equal(t, map[int]int{20: 1, 22: 2}, positions)
}

func TestCancelActivePromotesFront(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{})
	parent := env.addEvent(1, 0)

	active := env.mustRegister(t, 10, parent)
	env.mustRegister(t, 20, parent)
	env.mustRegister(t, 21, parent)

	require.NoError(t, env.svc.Cancel(context.Background(), player(10), active.ID))

	promoted, err := env.registrations.GetActiveByUser(context.Background(), nil, parent, 20)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationRegistered, promoted.Status)
	assert.Nil(t, promoted.WaitlistPosition)
	assert.NotNil(t, promoted.PromotedAt)
	assert.Nil(t, promoted.PaymentDeadlineAt)

	assert.Equal(t, map[int]int{21: 1}, env.positions(t, parent))
	assert.Len(t, env.audit.byAction(models.AuditActionWaitlistPromote), 1)

	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, 20, env.notifier.sent[0].UserID)
	assert.Equal(t, models.NotificationWaitlistPromoted, env.notifier.sent[0].Type)
}

func TestCancelActiveWithEmptyWaitlist(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{})
	parent := env.addEvent(2, 0)

	active := env.mustRegister(t, 10, parent)
	require.NoError(t, env.svc.Cancel(context.Background(), player(10), active.ID))
	assert.Empty(t, env.notifier.sent)

	count, err := env.registrations.CountActive(context.Background(), nil, parent)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCancelAuthorization(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{})
	parent := env.addEvent(2, 0)

	reg := env.mustRegister(t, 10, parent)
	err := env.svc.Cancel(context.Background(), player(11), reg.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	// Admins can cancel on someone's behalf; cancelling twice is not found.
	require.NoError(t, env.svc.Cancel(context.Background(), &models.User{ID: 1, Role: models.RoleAdmin}, reg.ID))
	err = env.svc.Cancel(context.Background(), player(10), reg.ID)
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestPromotionDeadlineFollowsFee(t *testing.T) {
	cases := []struct {
		name         string
		cfg          WaitlistConfig
		feeCents     int
		wantDeadline bool
	}{
		{name: "paid event", cfg: WaitlistConfig{ExpiryEnabled: true, PaymentWindow: 48 * time.Hour}, feeCents: 2500, wantDeadline: true},
		{name: "free event", cfg: WaitlistConfig{ExpiryEnabled: true, PaymentWindow: 48 * time.Hour}, feeCents: 0, wantDeadline: false},
		// The deadline is recorded even while the expiry sweep is off, so
		// enabling enforcement later applies to promotions already made.
		{name: "paid event with sweep disabled", cfg: WaitlistConfig{PaymentWindow: 48 * time.Hour}, feeCents: 2500, wantDeadline: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newWaitlistEnv(tc.cfg)
			parent := env.addEvent(1, tc.feeCents)

			active := env.mustRegister(t, 10, parent)
			env.mustRegister(t, 20, parent)
			require.NoError(t, env.svc.Cancel(context.Background(), player(10), active.ID))

			promoted, err := env.registrations.GetActiveByUser(context.Background(), nil, parent, 20)
			require.NoError(t, err)
			if tc.wantDeadline {
				require.NotNil(t, promoted.PaymentDeadlineAt)
				assert.Equal(t, env.clock.Add(tc.cfg.PaymentWindow), *promoted.PaymentDeadlineAt)
			} else {
				assert.Nil(t, promoted.PaymentDeadlineAt)
			}
		})
	}
}

func TestMarkPaid(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{})
	parent := env.addEvent(2, 2500)

	reg := env.mustRegister(t, 10, parent)
	paid, err := env.svc.MarkPaid(context.Background(), player(10), reg.ID)
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)

	_, err = env.svc.MarkPaid(context.Background(), player(10), reg.ID)
	assert.ErrorIs(t, err, ErrRegistrationNotPayable)

	env.mustRegister(t, 11, parent)
	env.mustRegister(t, 12, parent)
	queued := env.mustRegister(t, 13, parent)
	require.Equal(t, models.RegistrationWaitlisted, queued.Status)
	_, err = env.svc.MarkPaid(context.Background(), player(13), queued.ID)
	assert.ErrorIs(t, err, ErrRegistrationNotPayable)
}

func TestExpireOverduePromotions(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{ExpiryEnabled: true, PaymentWindow: time.Hour})
	parent := env.addEvent(1, 2500)

	active := env.mustRegister(t, 10, parent)
	env.mustRegister(t, 20, parent)
	env.mustRegister(t, 21, parent)

	// User 20 is promoted with a one hour deadline and never pays.
	require.NoError(t, env.svc.Cancel(context.Background(), player(10), active.ID))
	env.clock = env.clock.Add(2 * time.Hour)

	demoted, err := env.svc.ExpireOverduePromotions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, demoted)

	// 20 goes to the back of the queue; 21 takes the freed slot.
	assert.Equal(t, map[int]int{20: 1}, env.positions(t, parent))
	next, err := env.registrations.GetActiveByUser(context.Background(), nil, parent, 21)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationRegistered, next.Status)
	require.NotNil(t, next.PaymentDeadlineAt)

	assert.Len(t, env.audit.byAction(models.AuditActionWaitlistDemote), 1)
	assert.Len(t, env.audit.byAction(models.AuditActionWaitlistPromote), 2)

	types := make([]models.NotificationType, 0, len(env.notifier.sent))
	for _, n := range env.notifier.sent {
		types = append(types, n.Type)
	}
	assert.Equal(t, []models.NotificationType{
		models.NotificationWaitlistPromoted,
		models.NotificationWaitlistDemoted,
		models.NotificationWaitlistPromoted,
	}, types)

	// Running the sweep again before 21's deadline does nothing.
	demoted, err = env.svc.ExpireOverduePromotions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, demoted)
}

func TestExpireSkipsPaidPromotions(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{ExpiryEnabled: true, PaymentWindow: time.Hour})
	parent := env.addEvent(1, 2500)

	active := env.mustRegister(t, 10, parent)
	env.mustRegister(t, 20, parent)
	require.NoError(t, env.svc.Cancel(context.Background(), player(10), active.ID))

	promoted, err := env.registrations.GetActiveByUser(context.Background(), nil, parent, 20)
	require.NoError(t, err)
	_, err = env.svc.MarkPaid(context.Background(), player(20), promoted.ID)
	require.NoError(t, err)

	env.clock = env.clock.Add(2 * time.Hour)
	demoted, err := env.svc.ExpireOverduePromotions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, demoted)

	still, err := env.registrations.GetActiveByUser(context.Background(), nil, parent, 20)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationRegistered, still.Status)
}

func TestExpireSweepDisabledIsNoOp(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{PaymentWindow: time.Hour})
	parent := env.addEvent(1, 2500)

	active := env.mustRegister(t, 10, parent)
	env.mustRegister(t, 20, parent)
	require.NoError(t, env.svc.Cancel(context.Background(), player(10), active.ID))

	// 20 was promoted with a deadline, which is long past by now.
	env.clock = env.clock.Add(48 * time.Hour)

	demoted, err := env.svc.ExpireOverduePromotions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, demoted)

	still, err := env.registrations.GetActiveByUser(context.Background(), nil, parent, 20)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationRegistered, still.Status)
	require.NotNil(t, still.PaymentDeadlineAt)
}

func TestPromoteFromWaitlistFillsFreedSlot(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{PaymentWindow: 24 * time.Hour})
	parent := env.addEvent(1, 2500)

	env.mustRegister(t, 10, parent)
	env.mustRegister(t, 20, parent)
	env.mustRegister(t, 21, parent)

	// The parent is still full, so nothing moves.
	promoted, err := env.svc.PromoteFromWaitlist(context.Background(), 1, parent)
	require.NoError(t, err)
	assert.Nil(t, promoted)

	// The organizer widens the event to two skaters.
	env.events.byID[parent.ID].Capacity = 2

	promoted, err = env.svc.PromoteFromWaitlist(context.Background(), 1, parent)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, 20, promoted.UserID)
	assert.Equal(t, models.RegistrationRegistered, promoted.Status)
	require.NotNil(t, promoted.PaymentDeadlineAt)
	assert.Equal(t, env.clock.Add(24*time.Hour), *promoted.PaymentDeadlineAt)

	assert.Equal(t, map[int]int{21: 1}, env.positions(t, parent))
	assert.Len(t, env.audit.byAction(models.AuditActionWaitlistPromote), 1)
	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, models.NotificationWaitlistPromoted, env.notifier.sent[0].Type)

	// Capacity is full again, so the next call leaves 21 queued.
	promoted, err = env.svc.PromoteFromWaitlist(context.Background(), 1, parent)
	require.NoError(t, err)
	assert.Nil(t, promoted)
}

func TestPromoteFromWaitlistEmptyQueue(t *testing.T) {
	env := newWaitlistEnv(WaitlistConfig{})
	parent := env.addEvent(2, 0)

	env.mustRegister(t, 10, parent)

	promoted, err := env.svc.PromoteFromWaitlist(context.Background(), 1, parent)
	require.NoError(t, err)
	assert.Nil(t, promoted)
}
