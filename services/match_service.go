package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adilp/bhmhockey/models"
	"github.com/adilp/bhmhockey/repositories"
)

// MatchResultInput carries one reported result. A non-nil ForfeitTeamID
// awards the match to the opponent regardless of scores.
type MatchResultInput struct {
	HomeScore     int
	AwayScore     int
	ForfeitTeamID *int
	ForfeitReason *string
}

// MatchResultOutcome is everything a single report may have caused.
type MatchResultOutcome struct {
	Match               *models.TournamentMatch `json:"match"`
	WinnerTeamID        *int                    `json:"winner_team_id,omitempty"`
	ResetMatchID        *int                    `json:"reset_match_id,omitempty"`
	TournamentCompleted bool                    `json:"tournament_completed"`
	ChampionTeamID      *int                    `json:"champion_team_id,omitempty"`
}

type MatchService interface {
	GetByID(ctx context.Context, id int) (*models.TournamentMatch, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.TournamentMatch, error)
	ReportResult(ctx context.Context, actor *models.User, matchID int, input MatchResultInput) (*MatchResultOutcome, error)
}

type matchService struct {
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	auditRepo      repositories.AuditRepository
	standings      StandingsService
	txRunner       repositories.TxRunner
	locker         repositories.AdvisoryLocker
	broadcaster    Broadcaster
	notifier       Notifier
	logger         *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	auditRepo repositories.AuditRepository,
	standings StandingsService,
	txRunner repositories.TxRunner,
	locker repositories.AdvisoryLocker,
	broadcaster Broadcaster,
	notifier Notifier,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		auditRepo:      auditRepo,
		standings:      standings,
		txRunner:       txRunner,
		locker:         locker,
		broadcaster:    broadcaster,
		notifier:       notifier,
		logger:         logger,
	}
}

func (s *matchService) GetByID(ctx context.Context, id int) (*models.TournamentMatch, error) {
	m, err := s.matchRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *matchService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.TournamentMatch, error) {
	return s.matchRepo.ListByTournament(ctx, nil, tournamentID)
}

// ReportResult records a result and runs every consequence in one
// transaction: team statistics, bracket advancement, loser drops, grand
// final resets, standings, and tournament completion. The per-tournament
// advisory lock serializes concurrent reports for the same bracket.
func (s *matchService) ReportResult(ctx context.Context, actor *models.User, matchID int, input MatchResultInput) (*MatchResultOutcome, error) {
	if input.HomeScore < 0 || input.AwayScore < 0 {
		return nil, ErrNegativeScore
	}

	outcome := &MatchResultOutcome{}
	var tournament *models.Tournament

	err := s.txRunner.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		probe, err := s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}

		if err := s.locker.Acquire(ctx, exec, repositories.LockTournament, probe.TournamentID); err != nil {
			return err
		}

		t, err := s.tournamentRepo.GetByID(ctx, exec, probe.TournamentID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleAdmin && actor.ID != t.OrganizerID {
			return ErrForbiddenOperation
		}
		if t.Status != models.TournamentInProgress {
			return fmt.Errorf("%w: results are only accepted while the tournament is in progress (status is %s)",
				ErrInvalidTournamentForStep, t.Status)
		}

		// Reload under the lock; a concurrent report may have landed between
		// the probe and the lock acquisition.
		match, err := s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if match.Status.Decided() {
			return ErrMatchAlreadyDecided
		}
		if match.Status != models.MatchScheduled && match.Status != models.MatchInProgress {
			return fmt.Errorf("%w: status is %s", ErrMatchNotPlayable, match.Status)
		}
		if match.HomeTeamID == nil || match.AwayTeamID == nil {
			return ErrTeamsNotAssigned
		}

		oldValue := jsonString(match)

		winnerID, status, err := s.decide(t, match, input)
		if err != nil {
			return err
		}

		match.HomeScore = intPtr(input.HomeScore)
		match.AwayScore = intPtr(input.AwayScore)
		match.Status = status
		match.WinnerTeamID = winnerID
		match.ForfeitTeamID = input.ForfeitTeamID
		match.ForfeitReason = input.ForfeitReason

		if err := s.matchRepo.UpdateResult(ctx, exec, match); err != nil {
			return err
		}
		if err := s.applyTeamStats(ctx, exec, t, match); err != nil {
			return err
		}

		if t.Format != models.FormatRoundRobin {
			if err := s.advance(ctx, exec, t, match, outcome); err != nil {
				return err
			}
		} else if s.standings != nil {
			if _, err := s.standings.UpdateForTournament(ctx, exec, t); err != nil {
				return err
			}
		}

		entry := &models.TournamentAuditLog{
			TournamentID: &t.ID,
			ActorID:      actor.ID,
			Action:       models.AuditActionMatchResult,
			EntityType:   strPtr("match"),
			EntityID:     &match.ID,
			OldValue:     oldValue,
			NewValue:     jsonString(match),
		}
		if err := s.auditRepo.Append(ctx, exec, entry); err != nil {
			return err
		}

		completed, champion, err := s.maybeComplete(ctx, exec, actor, t, match)
		if err != nil {
			return err
		}

		outcome.Match = match
		outcome.WinnerTeamID = winnerID
		outcome.TournamentCompleted = completed
		outcome.ChampionTeamID = champion
		tournament = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match result recorded",
		slog.Int("match_id", matchID),
		slog.Int("tournament_id", tournament.ID),
		slog.Bool("tournament_completed", outcome.TournamentCompleted))
	s.afterResult(ctx, tournament, outcome)
	return outcome, nil
}

// decide resolves the winner and resulting match status from the input.
func (s *matchService) decide(t *models.Tournament, match *models.TournamentMatch, input MatchResultInput) (*int, models.MatchStatus, error) {
	if input.ForfeitTeamID != nil {
		switch *input.ForfeitTeamID {
		case *match.HomeTeamID:
			return match.AwayTeamID, models.MatchForfeit, nil
		case *match.AwayTeamID:
			return match.HomeTeamID, models.MatchForfeit, nil
		default:
			return nil, "", ErrForfeitTeamNotInMatch
		}
	}

	switch {
	case input.HomeScore > input.AwayScore:
		return match.HomeTeamID, models.MatchCompleted, nil
	case input.AwayScore > input.HomeScore:
		return match.AwayTeamID, models.MatchCompleted, nil
	default:
		if t.Format != models.FormatRoundRobin {
			return nil, "", ErrTieNotAllowed
		}
		return nil, models.MatchCompleted, nil
	}
}

// applyTeamStats increments the per-team aggregates once per decided match.
func (s *matchService) applyTeamStats(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, match *models.TournamentMatch) error {
	home, err := s.teamRepo.GetByID(ctx, exec, *match.HomeTeamID)
	if err != nil {
		return err
	}
	away, err := s.teamRepo.GetByID(ctx, exec, *match.AwayTeamID)
	if err != nil {
		return err
	}

	home.GoalsFor += *match.HomeScore
	home.GoalsAgainst += *match.AwayScore
	away.GoalsFor += *match.AwayScore
	away.GoalsAgainst += *match.HomeScore

	switch {
	case match.WinnerTeamID == nil:
		home.Ties++
		away.Ties++
		home.Points += t.PointsTie
		away.Points += t.PointsTie
	case *match.WinnerTeamID == home.ID:
		home.Wins++
		away.Losses++
		home.Points += t.PointsWin
		away.Points += t.PointsLoss
	default:
		away.Wins++
		home.Losses++
		away.Points += t.PointsWin
		home.Points += t.PointsLoss
	}

	if err := s.teamRepo.UpdateStats(ctx, exec, home); err != nil {
		return err
	}
	return s.teamRepo.UpdateStats(ctx, exec, away)
}

// advance moves the winner and loser along their successor pointers and
// creates the grand final reset when the losers bracket champion takes the
// first grand final.
func (s *matchService) advance(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, match *models.TournamentMatch, outcome *MatchResultOutcome) error {
	winnerID := match.WinnerTeamID
	loserID := match.LoserTeamID()

	if winnerID != nil && match.NextMatchID != nil && match.NextMatchSlot != nil {
		if err := s.matchRepo.AssignTeamSlot(ctx, exec, *match.NextMatchID, *match.NextMatchSlot, *winnerID); err != nil {
			if errors.Is(err, repositories.ErrMatchSlotOccupied) {
				return fmt.Errorf("%w: match %d slot %d", ErrSlotAlreadyTaken, *match.NextMatchID, *match.NextMatchSlot)
			}
			return err
		}
	}

	resetCreated := false
	if s.isFirstGrandFinal(match) && t.GrandFinalReset && winnerID != nil && *winnerID == *match.AwayTeamID {
		// The losers bracket champion (away slot) beat the winners bracket
		// champion, so both teams now carry one bracket loss and play again.
		reset := &models.TournamentMatch{
			TournamentID:    t.ID,
			Round:           match.Round + 1,
			MatchNumber:     1,
			BracketSide:     match.BracketSide,
			BracketPosition: strPtr("Grand Final Reset"),
			HomeTeamID:      match.HomeTeamID,
			AwayTeamID:      match.AwayTeamID,
			Status:          models.MatchScheduled,
			ScheduledAt:     match.ScheduledAt,
		}
		if err := s.matchRepo.Create(ctx, exec, reset); err != nil {
			return err
		}
		outcome.ResetMatchID = &reset.ID
		resetCreated = true
	}

	if loserID != nil {
		switch {
		case match.LoserNextMatchID != nil && match.LoserNextSlot != nil:
			if err := s.matchRepo.AssignTeamSlot(ctx, exec, *match.LoserNextMatchID, *match.LoserNextSlot, *loserID); err != nil {
				if errors.Is(err, repositories.ErrMatchSlotOccupied) {
					return fmt.Errorf("%w: match %d slot %d", ErrSlotAlreadyTaken, *match.LoserNextMatchID, *match.LoserNextSlot)
				}
				return err
			}
		case resetCreated:
			// Loser plays on in the reset match.
		default:
			if err := s.teamRepo.UpdateStatus(ctx, exec, *loserID, models.TeamEliminated); err != nil {
				return err
			}
		}
	}
	return nil
}

// isFirstGrandFinal reports whether the match is the initial grand final,
// not a reset created from one.
func (s *matchService) isFirstGrandFinal(match *models.TournamentMatch) bool {
	return match.BracketSide != nil && *match.BracketSide == models.SideGrandFinal &&
		derefString(match.BracketPosition) != "Grand Final Reset"
}

// maybeComplete finishes the tournament when the last match is decided.
func (s *matchService) maybeComplete(ctx context.Context, exec repositories.SQLExecutor, actor *models.User, t *models.Tournament, match *models.TournamentMatch) (bool, *int, error) {
	unfinished, err := s.matchRepo.CountUnfinished(ctx, exec, t.ID)
	if err != nil {
		return false, nil, err
	}
	if unfinished > 0 {
		return false, nil, nil
	}

	champion, err := s.champion(ctx, exec, t)
	if err != nil {
		return false, nil, err
	}

	if err := s.tournamentRepo.SetWinner(ctx, exec, t.ID, champion); err != nil {
		return false, nil, err
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, exec, t.ID, models.TournamentCompleted, nil); err != nil {
		return false, nil, err
	}

	teams, err := s.teamRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return false, nil, err
	}
	for _, team := range teams {
		switch {
		case champion != nil && team.ID == *champion:
			err = s.teamRepo.UpdateStatus(ctx, exec, team.ID, models.TeamWinner)
		case team.Status == models.TeamActive:
			err = s.teamRepo.UpdateStatus(ctx, exec, team.ID, models.TeamEliminated)
		}
		if err != nil {
			return false, nil, err
		}
	}

	from := string(models.TournamentInProgress)
	to := string(models.TournamentCompleted)
	entry := &models.TournamentAuditLog{
		TournamentID: &t.ID,
		ActorID:      actor.ID,
		Action:       "tournament." + string(models.ActionComplete),
		FromStatus:   &from,
		ToStatus:     &to,
		Details:      jsonString(map[string]interface{}{"champion_team_id": champion, "decided_by_match": match.ID}),
	}
	if err := s.auditRepo.Append(ctx, exec, entry); err != nil {
		return false, nil, err
	}

	t.Status = models.TournamentCompleted
	t.WinnerTeamID = champion
	return true, champion, nil
}

// champion resolves the tournament winner: the standings leader for round
// robin, otherwise the winner of the decisive bracket match.
func (s *matchService) champion(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) (*int, error) {
	if t.Format == models.FormatRoundRobin {
		if s.standings == nil {
			return nil, nil
		}
		table, err := s.standings.ComputeForUpdate(ctx, exec, t)
		if err != nil {
			return nil, err
		}
		if len(table) == 0 {
			return nil, nil
		}
		return intPtr(table[0].TeamID), nil
	}

	matches, err := s.matchRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return nil, err
	}
	decisive := decisiveMatch(matches)
	if decisive == nil {
		return nil, nil
	}
	return decisive.WinnerTeamID, nil
}

// decisiveMatch picks the match whose winner takes the tournament: the
// latest grand final if one exists, otherwise the winners bracket final
// (match number 1 of the highest round, which excludes the third place
// match).
func decisiveMatch(matches []*models.TournamentMatch) *models.TournamentMatch {
	var grandFinal, final *models.TournamentMatch
	for _, m := range matches {
		if m.BracketSide != nil && *m.BracketSide == models.SideGrandFinal {
			if grandFinal == nil || m.Round > grandFinal.Round {
				grandFinal = m
			}
			continue
		}
		if m.BracketSide != nil && *m.BracketSide != models.SideWinners {
			continue
		}
		if m.MatchNumber != 1 {
			continue
		}
		if final == nil || m.Round > final.Round {
			final = m
		}
	}
	if grandFinal != nil {
		return grandFinal
	}
	return final
}

func (s *matchService) afterResult(ctx context.Context, t *models.Tournament, outcome *MatchResultOutcome) {
	if s.broadcaster != nil {
		room := tournamentRoom(t.ID)
		s.broadcaster.BroadcastToRoom(room, LiveMessage{Type: LiveMatchUpdated, Payload: outcome})
		if t.Format == models.FormatRoundRobin {
			s.broadcaster.BroadcastToRoom(room, LiveMessage{Type: LiveStandingsUpdated, Payload: map[string]int{"tournament_id": t.ID}})
		}
		if outcome.TournamentCompleted {
			s.broadcaster.BroadcastToRoom(room, LiveMessage{
				Type:    LiveTournamentStatus,
				Payload: map[string]interface{}{"tournament_id": t.ID, "status": models.TournamentCompleted},
			})
		}
	}

	if s.notifier == nil || outcome.Match == nil {
		return
	}
	match := outcome.Match
	for _, teamID := range []*int{match.HomeTeamID, match.AwayTeamID} {
		if teamID == nil {
			continue
		}
		team, err := s.teamRepo.GetByID(ctx, nil, *teamID)
		if err != nil || team.CaptainID == nil {
			continue
		}
		s.notifier.Notify(ctx, *team.CaptainID, models.NotificationMatchCompleted,
			t.Name,
			fmt.Sprintf("Result recorded: %d - %d", *match.HomeScore, *match.AwayScore),
			map[string]interface{}{"tournament_id": t.ID, "match_id": match.ID},
		)
	}
}
