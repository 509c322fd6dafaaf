package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/adilp/bhmhockey/models"
)

// StandingRepository caches computed round-robin tables. The standings
// service recomputes from matches and upserts here; reads never calculate.
type StandingRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, standing *models.TeamStanding) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.TeamStanding, error)
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresStandingRepository struct {
	db *sql.DB
}

func NewPostgresStandingRepository(db *sql.DB) StandingRepository {
	return &postgresStandingRepository{db: db}
}

func (r *postgresStandingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStandingRepository) Upsert(ctx context.Context, exec SQLExecutor, s *models.TeamStanding) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO team_standings (
			tournament_id, team_id, games_played, wins, ties, losses,
			points, goals_for, goals_against, rank, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (tournament_id, team_id) DO UPDATE SET
			games_played = EXCLUDED.games_played,
			wins = EXCLUDED.wins,
			ties = EXCLUDED.ties,
			losses = EXCLUDED.losses,
			points = EXCLUDED.points,
			goals_for = EXCLUDED.goals_for,
			goals_against = EXCLUDED.goals_against,
			rank = EXCLUDED.rank,
			updated_at = NOW()
		RETURNING id, updated_at`

	err := executor.QueryRowContext(ctx, query,
		s.TournamentID, s.TeamID, s.GamesPlayed, s.Wins, s.Ties, s.Losses,
		s.Points, s.GoalsFor, s.GoalsAgainst, s.Rank,
	).Scan(&s.ID, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert standing for team %d: %w", s.TeamID, err)
	}
	return nil
}

func (r *postgresStandingRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.TeamStanding, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT s.id, s.tournament_id, s.team_id, t.name, s.games_played, s.wins, s.ties, s.losses,
			s.points, s.goals_for, s.goals_against, s.rank, s.updated_at
		FROM team_standings s
		JOIN tournament_teams t ON t.id = s.team_id
		WHERE s.tournament_id = $1
		ORDER BY s.rank`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	standings := make([]models.TeamStanding, 0)
	for rows.Next() {
		var s models.TeamStanding
		if scanErr := rows.Scan(
			&s.ID, &s.TournamentID, &s.TeamID, &s.TeamName, &s.GamesPlayed, &s.Wins, &s.Ties, &s.Losses,
			&s.Points, &s.GoalsFor, &s.GoalsAgainst, &s.Rank, &s.UpdatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		standings = append(standings, s)
	}
	return standings, rows.Err()
}

func (r *postgresStandingRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	if _, err := executor.ExecContext(ctx, `DELETE FROM team_standings WHERE tournament_id = $1`, tournamentID); err != nil {
		return fmt.Errorf("failed to delete standings: %w", err)
	}
	return nil
}
