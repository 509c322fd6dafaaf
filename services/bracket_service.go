package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adilp/bhmhockey/brackets"
	"github.com/adilp/bhmhockey/models"
	"github.com/adilp/bhmhockey/repositories"
	"golang.org/x/sync/errgroup"
)

type BracketService interface {
	GenerateBracket(ctx context.Context, actor *models.User, tournamentID int) (*models.Tournament, error)
	GetBracket(ctx context.Context, tournamentID int) (*models.Tournament, error)
}

type bracketService struct {
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	matchRepo      repositories.MatchRepository
	standingRepo   repositories.StandingRepository
	auditRepo      repositories.AuditRepository
	txRunner       repositories.TxRunner
	locker         repositories.AdvisoryLocker
	broadcaster    Broadcaster
	logger         *slog.Logger
}

func NewBracketService(
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.StandingRepository,
	auditRepo repositories.AuditRepository,
	txRunner repositories.TxRunner,
	locker repositories.AdvisoryLocker,
	broadcaster Broadcaster,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		matchRepo:      matchRepo,
		standingRepo:   standingRepo,
		auditRepo:      auditRepo,
		txRunner:       txRunner,
		locker:         locker,
		broadcaster:    broadcaster,
		logger:         logger,
	}
}

// GenerateBracket builds and persists the full match graph. Regenerating
// before the tournament starts replaces any previous bracket; once play has
// begun the bracket is immutable.
func (s *bracketService) GenerateBracket(ctx context.Context, actor *models.User, tournamentID int) (*models.Tournament, error) {
	var tournament *models.Tournament

	err := s.txRunner.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.locker.Acquire(ctx, exec, repositories.LockTournament, tournamentID); err != nil {
			return err
		}

		t, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if actor.Role != models.RoleAdmin && actor.ID != t.OrganizerID {
			return ErrForbiddenOperation
		}
		if t.Status != models.TournamentOpen && t.Status != models.TournamentRegistrationClosed {
			return fmt.Errorf("%w: bracket generation requires an open or registration-closed tournament (status is %s)",
				ErrInvalidTournamentForStep, t.Status)
		}

		allTeams, err := s.teamRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		teams := make([]*models.TournamentTeam, 0, len(allTeams))
		for _, team := range allTeams {
			if team.Status == models.TeamRegistered || team.Status == models.TeamActive {
				teams = append(teams, team)
			}
		}
		if len(teams) < 2 {
			return fmt.Errorf("%w: have %d, need at least 2", ErrNotEnoughTeams, len(teams))
		}

		generator, err := brackets.ForFormat(t.Format)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}

		generated, err := generator.Generate(ctx, brackets.GenerateParams{Tournament: t, Teams: teams})
		if err != nil {
			if errors.Is(err, brackets.ErrInsufficientTeams) {
				return fmt.Errorf("%w: %v", ErrNotEnoughTeams, err)
			}
			return fmt.Errorf("failed to generate %s bracket: %w", t.Format, err)
		}

		// Regeneration: throw away the previous graph and derived data.
		if err := s.matchRepo.DeleteByTournament(ctx, exec, tournamentID); err != nil {
			return err
		}
		if err := s.standingRepo.DeleteByTournament(ctx, exec, tournamentID); err != nil {
			return err
		}
		if err := s.teamRepo.ResetStats(ctx, exec, tournamentID); err != nil {
			return err
		}

		for i, team := range teams {
			seed := i + 1
			if err := s.teamRepo.UpdateSeed(ctx, exec, team.ID, &seed); err != nil {
				return err
			}
			if err := s.teamRepo.UpdateStatus(ctx, exec, team.ID, models.TeamActive); err != nil {
				return err
			}
			team.Seed = &seed
			team.Status = models.TeamActive
		}

		if err := s.persistBracket(ctx, exec, t, generated); err != nil {
			return err
		}

		entry := &models.TournamentAuditLog{
			TournamentID: &tournamentID,
			ActorID:      actor.ID,
			Action:       models.AuditActionBracketGenerated,
			Details: jsonString(map[string]interface{}{
				"format":  t.Format,
				"teams":   len(teams),
				"matches": len(generated),
			}),
		}
		if err := s.auditRepo.Append(ctx, exec, entry); err != nil {
			return err
		}

		tournament = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "bracket generated",
		slog.Int("tournament_id", tournamentID), slog.String("format", string(tournament.Format)))

	full, err := s.GetBracket(ctx, tournamentID)
	if err != nil {
		s.logger.WarnContext(ctx, "bracket saved but reload failed",
			slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return tournament, nil
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToRoom(tournamentRoom(tournamentID), LiveMessage{
			Type:    LiveBracketUpdated,
			Payload: full,
		})
	}
	return full, nil
}

// persistBracket writes generated matches in two passes: insert every node
// keyed by its generator UID, then patch successor pointers with the
// database ids the first pass produced. Bye matches are stored too, already
// decided, so the bracket renders complete rounds.
func (s *bracketService) persistBracket(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, generated []*brackets.GeneratedMatch) error {
	defaultTime := t.StartDate
	if time.Now().After(defaultTime) {
		defaultTime = time.Now().Add(15 * time.Minute)
	}

	uidToDBID := make(map[string]int, len(generated))

	for _, gm := range generated {
		m := &models.TournamentMatch{
			TournamentID:    t.ID,
			Round:           gm.Round,
			MatchNumber:     gm.Number,
			BracketSide:     gm.Side,
			BracketPosition: gm.Position,
			HomeTeamID:      gm.HomeTeamID,
			AwayTeamID:      gm.AwayTeamID,
			Status:          models.MatchScheduled,
			ScheduledAt:     defaultTime,
		}
		if gm.IsBye {
			m.Status = models.MatchBye
			m.WinnerTeamID = gm.ByeTeamID
		}
		if err := s.matchRepo.Create(ctx, exec, m); err != nil {
			return err
		}
		uidToDBID[gm.UID] = m.ID
	}

	for _, gm := range generated {
		if gm.WinnerNextUID == nil && gm.LoserNextUID == nil {
			continue
		}
		var nextID, nextSlot, loserNextID, loserNextSlot *int
		if gm.WinnerNextUID != nil {
			id, ok := uidToDBID[*gm.WinnerNextUID]
			if !ok {
				return fmt.Errorf("generated match %s points at unknown successor %s", gm.UID, *gm.WinnerNextUID)
			}
			nextID = &id
			nextSlot = gm.WinnerNextSlot
		}
		if gm.LoserNextUID != nil {
			id, ok := uidToDBID[*gm.LoserNextUID]
			if !ok {
				return fmt.Errorf("generated match %s points at unknown loser successor %s", gm.UID, *gm.LoserNextUID)
			}
			loserNextID = &id
			loserNextSlot = gm.LoserNextSlot
		}
		if err := s.matchRepo.UpdateSuccessors(ctx, exec, uidToDBID[gm.UID], nextID, nextSlot, loserNextID, loserNextSlot); err != nil {
			return err
		}
	}
	return nil
}

// GetBracket loads the tournament with its teams and match graph, fetched in
// parallel.
func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		teams, err := s.teamRepo.ListByTournament(gCtx, nil, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to load teams for tournament %d: %w", tournamentID, err)
		}
		t.Teams = make([]models.TournamentTeam, len(teams))
		for i, team := range teams {
			t.Teams[i] = *team
		}
		return nil
	})

	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, nil, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to load matches for tournament %d: %w", tournamentID, err)
		}
		t.Matches = make([]models.TournamentMatch, len(matches))
		for i, m := range matches {
			t.Matches[i] = *m
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}
