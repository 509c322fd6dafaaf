package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/adilp/bhmhockey/models"
	"github.com/adilp/bhmhockey/repositories"
	"github.com/adilp/bhmhockey/storage"
	"github.com/google/uuid"
)

// transition describes one state machine edge. Resume has no fixed target:
// it restores the status saved when the tournament was postponed.
type transition struct {
	from []models.TournamentStatus
	to   models.TournamentStatus
}

var statusTransitions = map[models.TournamentAction]transition{
	models.ActionPublish: {
		from: []models.TournamentStatus{models.TournamentDraft},
		to:   models.TournamentOpen,
	},
	models.ActionCloseRegistration: {
		from: []models.TournamentStatus{models.TournamentOpen},
		to:   models.TournamentRegistrationClosed,
	},
	models.ActionStart: {
		from: []models.TournamentStatus{models.TournamentOpen, models.TournamentRegistrationClosed},
		to:   models.TournamentInProgress,
	},
	models.ActionPostpone: {
		from: []models.TournamentStatus{models.TournamentOpen, models.TournamentRegistrationClosed, models.TournamentInProgress},
		to:   models.TournamentPostponed,
	},
	models.ActionResume: {
		from: []models.TournamentStatus{models.TournamentPostponed},
	},
	models.ActionCancel: {
		from: []models.TournamentStatus{
			models.TournamentDraft, models.TournamentOpen, models.TournamentRegistrationClosed,
			models.TournamentInProgress, models.TournamentPostponed,
		},
		to: models.TournamentCancelled,
	},
	models.ActionComplete: {
		from: []models.TournamentStatus{models.TournamentInProgress},
		to:   models.TournamentCompleted,
	},
}

type CreateTournamentInput struct {
	Name            string
	Description     *string
	Format          models.TournamentFormat
	StartDate       time.Time
	EndDate         time.Time
	Location        *string
	MinTeamSize     int
	MaxTeamSize     int
	MaxTeams        int
	FeeCents        int
	PointsWin       *int
	PointsTie       *int
	PointsLoss      *int
	TiebreakerOrder []models.TiebreakCriterion
	ThirdPlaceMatch bool
	GrandFinalReset bool
}

type UpdateTournamentInput struct {
	Name            *string
	Description     *string
	StartDate       *time.Time
	EndDate         *time.Time
	Location        *string
	MinTeamSize     *int
	MaxTeamSize     *int
	MaxTeams        *int
	FeeCents        *int
	ThirdPlaceMatch *bool
	GrandFinalReset *bool
	TiebreakerOrder []models.TiebreakCriterion
}

type TournamentService interface {
	Create(ctx context.Context, actor *models.User, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, actor *models.User, id int, input UpdateTournamentInput) (*models.Tournament, error)
	Delete(ctx context.Context, actor *models.User, id int) error
	ApplyAction(ctx context.Context, actor *models.User, id int, action models.TournamentAction) (*models.Tournament, error)
	UploadLogo(ctx context.Context, actor *models.User, id int, contentType string, body io.Reader) (*models.Tournament, error)
	ListAuditLog(ctx context.Context, actor *models.User, id int, limit, offset int) ([]models.TournamentAuditLog, error)
}

type tournamentService struct {
	tournamentRepo   repositories.TournamentRepository
	teamRepo         repositories.TeamRepository
	matchRepo        repositories.MatchRepository
	registrationRepo repositories.RegistrationRepository
	auditRepo        repositories.AuditRepository
	standings        StandingsService
	txRunner         repositories.TxRunner
	locker           repositories.AdvisoryLocker
	uploader         storage.FileUploader
	broadcaster      Broadcaster
	notifier         Notifier
	promoter         WaitlistPromoter
	logger           *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	registrationRepo repositories.RegistrationRepository,
	auditRepo repositories.AuditRepository,
	standings StandingsService,
	txRunner repositories.TxRunner,
	locker repositories.AdvisoryLocker,
	uploader storage.FileUploader,
	broadcaster Broadcaster,
	notifier Notifier,
	promoter WaitlistPromoter,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tournamentRepo:   tournamentRepo,
		teamRepo:         teamRepo,
		matchRepo:        matchRepo,
		registrationRepo: registrationRepo,
		auditRepo:        auditRepo,
		standings:        standings,
		txRunner:         txRunner,
		locker:           locker,
		uploader:         uploader,
		broadcaster:      broadcaster,
		notifier:         notifier,
		promoter:         promoter,
		logger:           logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, actor *models.User, input CreateTournamentInput) (*models.Tournament, error) {
	if actor.Role != models.RoleOrganizer && actor.Role != models.RoleAdmin {
		return nil, ErrForbiddenOperation
	}
	if input.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidationFailed)
	}
	if err := validateTournamentDates(input.StartDate, input.EndDate); err != nil {
		return nil, err
	}
	switch input.Format {
	case models.FormatSingleElimination, models.FormatDoubleElimination, models.FormatRoundRobin:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, input.Format)
	}
	if input.MinTeamSize > 0 && input.MaxTeamSize > 0 && input.MinTeamSize > input.MaxTeamSize {
		return nil, ErrInvalidTeamSizeRange
	}
	if input.MaxTeams <= 0 {
		return nil, fmt.Errorf("%w: max teams must be positive", ErrValidationFailed)
	}

	t := &models.Tournament{
		Name:            input.Name,
		Description:     input.Description,
		OrganizerID:     actor.ID,
		Format:          input.Format,
		Status:          models.TournamentDraft,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		Location:        input.Location,
		MinTeamSize:     input.MinTeamSize,
		MaxTeamSize:     input.MaxTeamSize,
		MaxTeams:        input.MaxTeams,
		FeeCents:        input.FeeCents,
		PointsWin:       2,
		PointsTie:       1,
		PointsLoss:      0,
		TiebreakerOrder: input.TiebreakerOrder,
		ThirdPlaceMatch: input.ThirdPlaceMatch,
		GrandFinalReset: input.GrandFinalReset,
	}
	if input.PointsWin != nil {
		t.PointsWin = *input.PointsWin
	}
	if input.PointsTie != nil {
		t.PointsTie = *input.PointsTie
	}
	if input.PointsLoss != nil {
		t.PointsLoss = *input.PointsLoss
	}

	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, s.mapRepoError(err)
	}
	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", t.ID), slog.String("format", string(t.Format)), slog.Int("organizer_id", actor.ID))
	return t, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	populateTournamentLogoURL(t, s.uploader)
	return t, nil
}

func (s *tournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		populateTournamentLogoURL(&tournaments[i], s.uploader)
	}
	return tournaments, nil
}

// Update is limited to tournaments that have not started: structural settings
// would invalidate an existing bracket.
func (s *tournamentService) Update(ctx context.Context, actor *models.User, id int, input UpdateTournamentInput) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if err := s.authorize(actor, t); err != nil {
		return nil, err
	}
	switch t.Status {
	case models.TournamentDraft, models.TournamentOpen, models.TournamentRegistrationClosed:
	default:
		return nil, ErrTournamentNotEditable
	}

	if input.Name != nil {
		t.Name = *input.Name
	}
	if input.Description != nil {
		t.Description = input.Description
	}
	if input.StartDate != nil {
		t.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		t.EndDate = *input.EndDate
	}
	if input.Location != nil {
		t.Location = input.Location
	}
	if input.MinTeamSize != nil {
		t.MinTeamSize = *input.MinTeamSize
	}
	if input.MaxTeamSize != nil {
		t.MaxTeamSize = *input.MaxTeamSize
	}
	previousMaxTeams := t.MaxTeams
	if input.MaxTeams != nil {
		t.MaxTeams = *input.MaxTeams
	}
	if input.FeeCents != nil {
		t.FeeCents = *input.FeeCents
	}
	if input.ThirdPlaceMatch != nil {
		t.ThirdPlaceMatch = *input.ThirdPlaceMatch
	}
	if input.GrandFinalReset != nil {
		t.GrandFinalReset = *input.GrandFinalReset
	}
	if input.TiebreakerOrder != nil {
		t.TiebreakerOrder = input.TiebreakerOrder
	}

	if err := validateTournamentDates(t.StartDate, t.EndDate); err != nil {
		return nil, err
	}
	if t.MinTeamSize > 0 && t.MaxTeamSize > 0 && t.MinTeamSize > t.MaxTeamSize {
		return nil, ErrInvalidTeamSizeRange
	}

	if err := s.tournamentRepo.Update(ctx, t); err != nil {
		return nil, s.mapRepoError(err)
	}

	// A wider team limit opens slots for the registration waitlist.
	if s.promoter != nil && t.Status == models.TournamentOpen && t.MaxTeams > previousMaxTeams {
		parent := models.ParentRef{Kind: models.ParentTournament, ID: t.ID}
		for {
			promoted, err := s.promoter.PromoteFromWaitlist(ctx, actor.ID, parent)
			if err != nil {
				s.logger.WarnContext(ctx, "failed to promote after team limit increase",
					slog.Int("tournament_id", t.ID), slog.Any("error", err))
				break
			}
			if promoted == nil {
				break
			}
		}
	}

	populateTournamentLogoURL(t, s.uploader)
	return t, nil
}

func (s *tournamentService) Delete(ctx context.Context, actor *models.User, id int) error {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return s.mapRepoError(err)
	}
	if err := s.authorize(actor, t); err != nil {
		return err
	}
	if t.Status != models.TournamentDraft {
		return ErrTournamentNotDeletable
	}
	return s.mapRepoError(s.tournamentRepo.Delete(ctx, id))
}

// ApplyAction drives the tournament state machine. The transition, its
// precondition checks and the audit record all commit atomically.
func (s *tournamentService) ApplyAction(ctx context.Context, actor *models.User, id int, action models.TournamentAction) (*models.Tournament, error) {
	tr, ok := statusTransitions[action]
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidationFailed, action)
	}

	var updated *models.Tournament
	err := s.txRunner.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.locker.Acquire(ctx, exec, repositories.LockTournament, id); err != nil {
			return err
		}
		t, err := s.tournamentRepo.GetByID(ctx, exec, id)
		if err != nil {
			return s.mapRepoError(err)
		}
		if err := s.authorize(actor, t); err != nil {
			return err
		}
		if !transitionAllowed(tr, t.Status) {
			return fmt.Errorf("%w: cannot %s a %s tournament", ErrInvalidStatusTransition, action, t.Status)
		}

		target := tr.to
		var prior *models.TournamentStatus
		switch action {
		case models.ActionStart:
			unfinished, cErr := s.matchRepo.CountUnfinished(ctx, exec, id)
			if cErr != nil {
				return cErr
			}
			if unfinished == 0 {
				return ErrBracketRequired
			}
		case models.ActionComplete:
			unfinished, cErr := s.matchRepo.CountUnfinished(ctx, exec, id)
			if cErr != nil {
				return cErr
			}
			if unfinished > 0 {
				return ErrMatchesStillUnfinished
			}
			if wErr := s.resolveWinner(ctx, exec, t); wErr != nil {
				return wErr
			}
		case models.ActionPostpone:
			current := t.Status
			prior = &current
		case models.ActionResume:
			if t.PriorStatus != nil {
				target = *t.PriorStatus
			} else {
				target = models.TournamentOpen
			}
		}

		if err := s.tournamentRepo.UpdateStatus(ctx, exec, id, target, prior); err != nil {
			return s.mapRepoError(err)
		}

		from := string(t.Status)
		to := string(target)
		entry := &models.TournamentAuditLog{
			TournamentID: &id,
			ActorID:      actor.ID,
			Action:       "tournament." + string(action),
			FromStatus:   &from,
			ToStatus:     &to,
		}
		if err := s.auditRepo.Append(ctx, exec, entry); err != nil {
			return err
		}

		t.PriorStatus = prior
		t.Status = target
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament status changed",
		slog.Int("tournament_id", id), slog.String("action", string(action)), slog.String("status", string(updated.Status)))
	s.afterStatusChange(ctx, updated)
	return updated, nil
}

// resolveWinner fills WinnerTeamID before a manual completion. Elimination
// winners are set by the match processor; round robin falls back to the
// standings leader.
func (s *tournamentService) resolveWinner(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	if t.WinnerTeamID != nil {
		return nil
	}
	if t.Format != models.FormatRoundRobin || s.standings == nil {
		return nil
	}
	table, err := s.standings.ComputeForUpdate(ctx, exec, t)
	if err != nil {
		return err
	}
	if len(table) == 0 {
		return nil
	}
	winnerID := table[0].TeamID
	t.WinnerTeamID = &winnerID
	if err := s.tournamentRepo.SetWinner(ctx, exec, t.ID, &winnerID); err != nil {
		return err
	}
	return s.teamRepo.UpdateStatus(ctx, exec, winnerID, models.TeamWinner)
}

func (s *tournamentService) afterStatusChange(ctx context.Context, t *models.Tournament) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToRoom(tournamentRoom(t.ID), LiveMessage{
			Type:    LiveTournamentStatus,
			Payload: map[string]interface{}{"tournament_id": t.ID, "status": t.Status},
		})
	}
	if s.notifier == nil {
		return
	}
	regs, err := s.registrationRepo.ListByParent(ctx, nil, models.ParentRef{Kind: models.ParentTournament, ID: t.ID})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list registrations for status notification",
			slog.Int("tournament_id", t.ID), slog.Any("error", err))
		return
	}
	for _, reg := range regs {
		if !reg.Status.Active() && reg.Status != models.RegistrationWaitlisted {
			continue
		}
		s.notifier.Notify(ctx, reg.UserID, models.NotificationTournamentStatus,
			t.Name,
			fmt.Sprintf("Tournament is now %s", t.Status),
			map[string]interface{}{"tournament_id": t.ID, "status": t.Status},
		)
	}
}

func (s *tournamentService) UploadLogo(ctx context.Context, actor *models.User, id int, contentType string, body io.Reader) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if err := s.authorize(actor, t); err != nil {
		return nil, err
	}
	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	key := fmt.Sprintf("tournaments/%d/logo_%s%s", id, uuid.NewString(), ext)
	result, err := s.uploader.Upload(ctx, key, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("failed to upload tournament logo: %w", err)
	}

	oldKey := t.LogoKey
	if err := s.tournamentRepo.UpdateLogoKey(ctx, id, &result.Key); err != nil {
		_ = s.uploader.Delete(ctx, result.Key)
		return nil, s.mapRepoError(err)
	}
	if oldKey != nil && *oldKey != "" {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete previous logo",
				slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	t.LogoKey = &result.Key
	populateTournamentLogoURL(t, s.uploader)
	return t, nil
}

func (s *tournamentService) ListAuditLog(ctx context.Context, actor *models.User, id int, limit, offset int) ([]models.TournamentAuditLog, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, s.mapRepoError(err)
	}
	if err := s.authorize(actor, t); err != nil {
		return nil, err
	}
	return s.auditRepo.ListByTournament(ctx, id, limit, offset)
}

func (s *tournamentService) authorize(actor *models.User, t *models.Tournament) error {
	if actor == nil {
		return ErrForbiddenOperation
	}
	if actor.Role == models.RoleAdmin || actor.ID == t.OrganizerID {
		return nil
	}
	return ErrForbiddenOperation
}

func (s *tournamentService) mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentNameConflict):
		return ErrTournamentNameConflict
	default:
		return err
	}
}

func transitionAllowed(tr transition, current models.TournamentStatus) bool {
	for _, from := range tr.from {
		if from == current {
			return true
		}
	}
	return false
}
