package services

import (
	"context"
	"errors"
	"sort"

	"github.com/adilp/bhmhockey/models"
	"github.com/adilp/bhmhockey/repositories"
)

// StandingsService keeps the round robin table. The computation always
// starts from decided matches, never from the cached rows, so a recompute
// after a correction converges on the right numbers.
type StandingsService interface {
	GetStandings(ctx context.Context, tournamentID int) ([]models.TeamStanding, error)
	ComputeForUpdate(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) ([]models.TeamStanding, error)
	UpdateForTournament(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) ([]models.TeamStanding, error)
}

type standingsService struct {
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	matchRepo      repositories.MatchRepository
	standingRepo   repositories.StandingRepository
}

func NewStandingsService(
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.StandingRepository,
) StandingsService {
	return &standingsService{
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		matchRepo:      matchRepo,
		standingRepo:   standingRepo,
	}
}

func (s *standingsService) GetStandings(ctx context.Context, tournamentID int) ([]models.TeamStanding, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if t.Format != models.FormatRoundRobin {
		return nil, ErrStandingsNotEnabled
	}

	cached, err := s.standingRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}
	// No results yet: render a zeroed table instead of an empty response.
	return s.ComputeForUpdate(ctx, nil, t)
}

// ComputeForUpdate builds the ranked table from team rosters and decided
// matches using exec, so it can run inside the match result transaction.
func (s *standingsService) ComputeForUpdate(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) ([]models.TeamStanding, error) {
	teams, err := s.teamRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return nil, err
	}
	matches, err := s.matchRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return nil, err
	}
	return computeStandings(t, teams, matches), nil
}

func (s *standingsService) UpdateForTournament(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) ([]models.TeamStanding, error) {
	table, err := s.ComputeForUpdate(ctx, exec, t)
	if err != nil {
		return nil, err
	}
	for i := range table {
		if err := s.standingRepo.Upsert(ctx, exec, &table[i]); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// computeStandings tallies decided matches into one row per team and ranks
// the rows: points first, then the tournament's tiebreaker order applied to
// each group of tied teams, with team name as the final deterministic key.
func computeStandings(t *models.Tournament, teams []*models.TournamentTeam, matches []*models.TournamentMatch) []models.TeamStanding {
	rows := make(map[int]*models.TeamStanding, len(teams))
	names := make(map[int]string, len(teams))
	for _, team := range teams {
		rows[team.ID] = &models.TeamStanding{
			TournamentID: t.ID,
			TeamID:       team.ID,
			TeamName:     team.Name,
		}
		names[team.ID] = team.Name
	}

	decided := make([]*models.TournamentMatch, 0, len(matches))
	for _, m := range matches {
		if m.Status != models.MatchCompleted && m.Status != models.MatchForfeit {
			continue
		}
		if m.HomeTeamID == nil || m.AwayTeamID == nil || m.HomeScore == nil || m.AwayScore == nil {
			continue
		}
		decided = append(decided, m)

		home, away := rows[*m.HomeTeamID], rows[*m.AwayTeamID]
		if home == nil || away == nil {
			continue
		}
		tallyMatch(t, home, away, m)
	}

	table := make([]models.TeamStanding, 0, len(rows))
	for _, row := range rows {
		table = append(table, *row)
	}
	rankTable(t, table, decided, names)
	return table
}

func tallyMatch(t *models.Tournament, home, away *models.TeamStanding, m *models.TournamentMatch) {
	home.GamesPlayed++
	away.GamesPlayed++
	home.GoalsFor += *m.HomeScore
	home.GoalsAgainst += *m.AwayScore
	away.GoalsFor += *m.AwayScore
	away.GoalsAgainst += *m.HomeScore

	switch {
	case m.WinnerTeamID == nil:
		home.Ties++
		away.Ties++
		home.Points += t.PointsTie
		away.Points += t.PointsTie
	case *m.WinnerTeamID == home.TeamID:
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
}

func rankTable(t *models.Tournament, table []models.TeamStanding, decided []*models.TournamentMatch, names map[int]string) {
	sort.SliceStable(table, func(i, j int) bool {
		if table[i].Points != table[j].Points {
			return table[i].Points > table[j].Points
		}
		return names[table[i].TeamID] < names[table[j].TeamID]
	})

	// Resolve each group of point-tied teams with the configured criteria.
	start := 0
	for start < len(table) {
		end := start + 1
		for end < len(table) && table[end].Points == table[start].Points {
			end++
		}
		if end-start > 1 {
			resolveTieGroup(t, table[start:end], decided, names)
		}
		start = end
	}

	for i := range table {
		table[i].Rank = i + 1
	}
}

// resolveTieGroup orders teams with equal points. Head-to-head considers
// only matches played among the tied teams themselves.
func resolveTieGroup(t *models.Tournament, group []models.TeamStanding, decided []*models.TournamentMatch, names map[int]string) {
	inGroup := make(map[int]bool, len(group))
	for _, row := range group {
		inGroup[row.TeamID] = true
	}

	h2hPoints := make(map[int]int, len(group))
	for _, m := range decided {
		if !inGroup[*m.HomeTeamID] || !inGroup[*m.AwayTeamID] {
			continue
		}
		switch {
		case m.WinnerTeamID == nil:
			h2hPoints[*m.HomeTeamID] += t.PointsTie
			h2hPoints[*m.AwayTeamID] += t.PointsTie
		case *m.WinnerTeamID == *m.HomeTeamID:
			h2hPoints[*m.HomeTeamID] += t.PointsWin
			h2hPoints[*m.AwayTeamID] += t.PointsLoss
		default:
			h2hPoints[*m.AwayTeamID] += t.PointsWin
			h2hPoints[*m.HomeTeamID] += t.PointsLoss
		}
	}

	criteria := t.Tiebreakers()
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		for _, criterion := range criteria {
			var av, bv int
			switch criterion {
			case models.TiebreakHeadToHead:
				av, bv = h2hPoints[a.TeamID], h2hPoints[b.TeamID]
			case models.TiebreakGoalDifference:
				av, bv = a.GoalDifference(), b.GoalDifference()
			case models.TiebreakGoalsScored:
				av, bv = a.GoalsFor, b.GoalsFor
			}
			if av != bv {
				return av > bv
			}
		}
		return names[a.TeamID] < names[b.TeamID]
	})
}
