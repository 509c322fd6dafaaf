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

// WaitlistConfig controls promotion payment deadlines. Every fee-charging
// promotion records a deadline of now+PaymentWindow; ExpiryEnabled gates
// only the sweep that demotes entries past it.
type WaitlistConfig struct {
	ExpiryEnabled bool
	PaymentWindow time.Duration
}

type WaitlistService interface {
	Register(ctx context.Context, userID int, parent models.ParentRef) (*models.Registration, error)
	Cancel(ctx context.Context, actor *models.User, registrationID int) error
	MarkPaid(ctx context.Context, actor *models.User, registrationID int) (*models.Registration, error)
	ListQueue(ctx context.Context, parent models.ParentRef) ([]*models.Registration, error)
	PromoteFromWaitlist(ctx context.Context, actorID int, parent models.ParentRef) (*models.Registration, error)
	ExpireOverduePromotions(ctx context.Context) (int, error)
}

// WaitlistPromoter is the slice of the waitlist manager other services use
// when a capacity change may open slots for queued registrations.
type WaitlistPromoter interface {
	PromoteFromWaitlist(ctx context.Context, actorID int, parent models.ParentRef) (*models.Registration, error)
}

type pendingNotification struct {
	userID int
	typ    models.NotificationType
	title  string
	body   string
	data   interface{}
}

type waitlistService struct {
	registrationRepo repositories.RegistrationRepository
	eventRepo        repositories.EventRepository
	tournamentRepo   repositories.TournamentRepository
	auditRepo        repositories.AuditRepository
	txRunner         repositories.TxRunner
	locker           repositories.AdvisoryLocker
	notifier         Notifier
	logger           *slog.Logger
	cfg              WaitlistConfig
	now              func() time.Time
}

func NewWaitlistService(
	registrationRepo repositories.RegistrationRepository,
	eventRepo repositories.EventRepository,
	tournamentRepo repositories.TournamentRepository,
	auditRepo repositories.AuditRepository,
	txRunner repositories.TxRunner,
	locker repositories.AdvisoryLocker,
	notifier Notifier,
	logger *slog.Logger,
	cfg WaitlistConfig,
) WaitlistService {
	return &waitlistService{
		registrationRepo: registrationRepo,
		eventRepo:        eventRepo,
		tournamentRepo:   tournamentRepo,
		auditRepo:        auditRepo,
		txRunner:         txRunner,
		locker:           locker,
		notifier:         notifier,
		logger:           logger,
		cfg:              cfg,
		now:              time.Now,
	}
}

// Register takes a capacity slot when one is free, otherwise appends to the
// waitlist. Position assignment happens under the parent's advisory lock so
// two simultaneous signups can never claim the same position.
func (s *waitlistService) Register(ctx context.Context, userID int, parent models.ParentRef) (*models.Registration, error) {
	var reg *models.Registration

	err := s.txRunner.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.locker.Acquire(ctx, exec, waitlistLockClass(parent), parent.ID); err != nil {
			return err
		}

		capacity, err := s.checkOpenAndCapacity(ctx, exec, parent)
		if err != nil {
			return err
		}

		if existing, err := s.registrationRepo.GetActiveByUser(ctx, exec, parent, userID); err == nil && existing != nil {
			return ErrAlreadyRegistered
		} else if err != nil && !errors.Is(err, repositories.ErrRegistrationNotFound) {
			return err
		}

		active, err := s.registrationRepo.CountActive(ctx, exec, parent)
		if err != nil {
			return err
		}

		reg = &models.Registration{
			ParentKind: parent.Kind,
			ParentID:   parent.ID,
			UserID:     userID,
		}
		if active < capacity {
			reg.Status = models.RegistrationRegistered
		} else {
			maxPos, err := s.registrationRepo.MaxWaitlistPosition(ctx, exec, parent)
			if err != nil {
				return err
			}
			reg.Status = models.RegistrationWaitlisted
			reg.WaitlistPosition = intPtr(maxPos + 1)
		}

		if err := s.registrationRepo.Create(ctx, exec, reg); err != nil {
			if errors.Is(err, repositories.ErrRegistrationConflict) {
				return ErrAlreadyRegistered
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "registration created",
		slog.Int("user_id", userID),
		slog.String("parent_kind", string(parent.Kind)),
		slog.Int("parent_id", parent.ID),
		slog.String("status", string(reg.Status)))
	return reg, nil
}

// Cancel releases the registration. Cancelling a waitlisted entry compacts
// the positions behind it; cancelling an active entry frees a capacity slot
// and promotes the front of the waitlist into it.
func (s *waitlistService) Cancel(ctx context.Context, actor *models.User, registrationID int) error {
	var pending []pendingNotification

	err := s.txRunner.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// First read only resolves the parent so the right lock is taken;
		// the row is re-read under the lock before any decision.
		preread, err := s.registrationRepo.GetByID(ctx, exec, registrationID)
		if err != nil {
			if errors.Is(err, repositories.ErrRegistrationNotFound) {
				return ErrRegistrationNotFound
			}
			return err
		}
		parent := preread.Parent()

		if err := s.locker.Acquire(ctx, exec, waitlistLockClass(parent), parent.ID); err != nil {
			return err
		}
		reg, err := s.registrationRepo.GetByID(ctx, exec, registrationID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleAdmin && actor.ID != reg.UserID {
			return ErrForbiddenOperation
		}
		if reg.Status == models.RegistrationCancelled {
			return ErrRegistrationNotFound
		}

		wasActive := reg.Status.Active()
		position := reg.WaitlistPosition

		if err := s.registrationRepo.Cancel(ctx, exec, reg.ID); err != nil {
			return err
		}
		if position != nil {
			if err := s.registrationRepo.DecrementPositionsAfter(ctx, exec, parent, *position); err != nil {
				return err
			}
		}
		if wasActive {
			promoted, err := s.promoteNext(ctx, exec, actor.ID, parent, 0)
			if err != nil {
				return err
			}
			if promoted != nil {
				pending = append(pending, promotionNotification(promoted, parent))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deliver(ctx, pending)
	return nil
}

func (s *waitlistService) MarkPaid(ctx context.Context, actor *models.User, registrationID int) (*models.Registration, error) {
	var reg *models.Registration
	err := s.txRunner.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		reg, err = s.registrationRepo.GetByID(ctx, exec, registrationID)
		if err != nil {
			if errors.Is(err, repositories.ErrRegistrationNotFound) {
				return ErrRegistrationNotFound
			}
			return err
		}
		if actor.Role != models.RoleAdmin && actor.Role != models.RoleOrganizer && actor.ID != reg.UserID {
			return ErrForbiddenOperation
		}
		if !reg.Status.Active() || reg.PaidAt != nil {
			return ErrRegistrationNotPayable
		}
		paidAt := s.now()
		if err := s.registrationRepo.MarkPaid(ctx, exec, reg.ID, paidAt); err != nil {
			return err
		}
		reg.PaidAt = &paidAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *waitlistService) ListQueue(ctx context.Context, parent models.ParentRef) ([]*models.Registration, error) {
	return s.registrationRepo.ListWaitlisted(ctx, nil, parent)
}

// PromoteFromWaitlist moves the front of the waitlist into a free capacity
// slot, if one exists. Returns nil without error when the waitlist is empty
// or the parent is already full. Callers that widen capacity by more than
// one slot invoke it repeatedly until it returns nil.
func (s *waitlistService) PromoteFromWaitlist(ctx context.Context, actorID int, parent models.ParentRef) (*models.Registration, error) {
	var promoted *models.Registration
	var pending []pendingNotification

	err := s.txRunner.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.locker.Acquire(ctx, exec, waitlistLockClass(parent), parent.ID); err != nil {
			return err
		}

		capacity, err := s.checkOpenAndCapacity(ctx, exec, parent)
		if err != nil {
			return err
		}
		active, err := s.registrationRepo.CountActive(ctx, exec, parent)
		if err != nil {
			return err
		}
		if active >= capacity {
			return nil
		}

		promoted, err = s.promoteNext(ctx, exec, actorID, parent, 0)
		if err != nil {
			return err
		}
		if promoted != nil {
			pending = append(pending, promotionNotification(promoted, parent))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, pending)
	return promoted, nil
}

// ExpireOverduePromotions demotes promotions whose payment deadline lapsed,
// sending each to the back of its waitlist, and promotes the next candidate
// into the freed slot. Safe to run repeatedly; each entry is re-checked
// under its parent's lock. A no-op unless expiry enforcement is enabled;
// deadlines are still recorded so enabling it later catches up.
func (s *waitlistService) ExpireOverduePromotions(ctx context.Context) (int, error) {
	if !s.cfg.ExpiryEnabled {
		return 0, nil
	}

	overdue, err := s.registrationRepo.ListOverduePromotions(ctx, nil, s.now())
	if err != nil {
		return 0, err
	}

	demoted := 0
	for _, candidate := range overdue {
		var pending []pendingNotification
		parent := candidate.Parent()

		err := s.txRunner.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			if err := s.locker.Acquire(ctx, exec, waitlistLockClass(parent), parent.ID); err != nil {
				return err
			}
			reg, err := s.registrationRepo.GetByID(ctx, exec, candidate.ID)
			if err != nil {
				return err
			}
			// Paid or cancelled since the sweep listed it.
			if !reg.Status.Active() || reg.PaidAt != nil ||
				reg.PaymentDeadlineAt == nil || reg.PaymentDeadlineAt.After(s.now()) {
				return nil
			}

			maxPos, err := s.registrationRepo.MaxWaitlistPosition(ctx, exec, parent)
			if err != nil {
				return err
			}
			if err := s.registrationRepo.MarkDemoted(ctx, exec, reg.ID, maxPos+1); err != nil {
				return err
			}
			demoted++

			if err := s.appendWaitlistAudit(ctx, exec, reg.UserID, parent, models.AuditActionWaitlistDemote, reg.ID); err != nil {
				return err
			}
			pending = append(pending, pendingNotification{
				userID: reg.UserID,
				typ:    models.NotificationWaitlistDemoted,
				title:  "Spot released",
				body:   "Your payment deadline passed and your spot went to the next person on the waitlist.",
				data:   map[string]interface{}{"registration_id": reg.ID},
			})

			promoted, err := s.promoteNext(ctx, exec, reg.UserID, parent, reg.ID)
			if err != nil {
				return err
			}
			if promoted != nil {
				pending = append(pending, promotionNotification(promoted, parent))
			}
			return nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to expire overdue promotion",
				slog.Int("registration_id", candidate.ID), slog.Any("error", err))
			continue
		}
		s.deliver(ctx, pending)
	}
	return demoted, nil
}

// promoteNext moves the front of the waitlist into a freed capacity slot.
// Returns nil without error when the waitlist is empty. excludeID skips a
// just-demoted registration so it cannot be re-promoted in the same sweep.
func (s *waitlistService) promoteNext(ctx context.Context, exec repositories.SQLExecutor, actorID int, parent models.ParentRef, excludeID int) (*models.Registration, error) {
	queue, err := s.registrationRepo.ListWaitlisted(ctx, exec, parent)
	if err != nil {
		return nil, err
	}
	var next *models.Registration
	for _, candidate := range queue {
		if candidate.ID != excludeID {
			next = candidate
			break
		}
	}
	if next == nil {
		return nil, nil
	}

	promotedAt := s.now()
	var deadline *time.Time
	fee, err := s.parentFee(ctx, exec, parent)
	if err != nil {
		return nil, err
	}
	if fee > 0 {
		d := promotedAt.Add(s.cfg.PaymentWindow)
		deadline = &d
	}

	if err := s.registrationRepo.MarkPromoted(ctx, exec, next.ID, promotedAt, deadline); err != nil {
		return nil, err
	}
	if next.WaitlistPosition != nil {
		if err := s.registrationRepo.DecrementPositionsAfter(ctx, exec, parent, *next.WaitlistPosition); err != nil {
			return nil, err
		}
	}
	if err := s.appendWaitlistAudit(ctx, exec, actorID, parent, models.AuditActionWaitlistPromote, next.ID); err != nil {
		return nil, err
	}

	next.Status = models.RegistrationRegistered
	next.WaitlistPosition = nil
	next.PromotedAt = &promotedAt
	next.PaymentDeadlineAt = deadline
	return next, nil
}

// checkOpenAndCapacity verifies the parent accepts registrations and returns
// its capacity.
func (s *waitlistService) checkOpenAndCapacity(ctx context.Context, exec repositories.SQLExecutor, parent models.ParentRef) (int, error) {
	switch parent.Kind {
	case models.ParentEvent:
		event, err := s.eventRepo.GetByID(ctx, exec, parent.ID)
		if err != nil {
			if errors.Is(err, repositories.ErrEventNotFound) {
				return 0, ErrEventNotFound
			}
			return 0, err
		}
		if event.Status != models.EventActive || !event.StartsAt.After(s.now()) {
			return 0, ErrRegistrationNotOpen
		}
		return event.Capacity, nil
	case models.ParentTournament:
		t, err := s.tournamentRepo.GetByID(ctx, exec, parent.ID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return 0, ErrTournamentNotFound
			}
			return 0, err
		}
		if t.Status != models.TournamentOpen {
			return 0, ErrRegistrationNotOpen
		}
		return t.MaxTeams, nil
	default:
		return 0, fmt.Errorf("%w: unknown parent kind %q", ErrValidationFailed, parent.Kind)
	}
}

func (s *waitlistService) parentFee(ctx context.Context, exec repositories.SQLExecutor, parent models.ParentRef) (int, error) {
	switch parent.Kind {
	case models.ParentEvent:
		event, err := s.eventRepo.GetByID(ctx, exec, parent.ID)
		if err != nil {
			return 0, err
		}
		return event.FeeCents, nil
	case models.ParentTournament:
		t, err := s.tournamentRepo.GetByID(ctx, exec, parent.ID)
		if err != nil {
			return 0, err
		}
		return t.FeeCents, nil
	default:
		return 0, nil
	}
}

func (s *waitlistService) appendWaitlistAudit(ctx context.Context, exec repositories.SQLExecutor, actorID int, parent models.ParentRef, action string, registrationID int) error {
	entry := &models.TournamentAuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: strPtr("registration"),
		EntityID:   &registrationID,
		Details:    jsonString(map[string]interface{}{"parent_kind": parent.Kind, "parent_id": parent.ID}),
	}
	if parent.Kind == models.ParentTournament {
		id := parent.ID
		entry.TournamentID = &id
	}
	return s.auditRepo.Append(ctx, exec, entry)
}

func (s *waitlistService) deliver(ctx context.Context, pending []pendingNotification) {
	if s.notifier == nil {
		return
	}
	for _, n := range pending {
		s.notifier.Notify(ctx, n.userID, n.typ, n.title, n.body, n.data)
	}
}

func promotionNotification(reg *models.Registration, parent models.ParentRef) pendingNotification {
	body := "A spot opened up and you are in."
	if reg.PaymentDeadlineAt != nil {
		body = fmt.Sprintf("A spot opened up and you are in. Complete payment by %s to keep it.",
			reg.PaymentDeadlineAt.Format(time.RFC1123))
	}
	return pendingNotification{
		userID: reg.UserID,
		typ:    models.NotificationWaitlistPromoted,
		title:  "You're off the waitlist",
		body:   body,
		data: map[string]interface{}{
			"registration_id": reg.ID,
			"parent_kind":     parent.Kind,
			"parent_id":       parent.ID,
		},
	}
}

func waitlistLockClass(parent models.ParentRef) repositories.LockClass {
	if parent.Kind == models.ParentEvent {
		return repositories.LockEventWaitlist
	}
	return repositories.LockTournamentWaitlist
}
