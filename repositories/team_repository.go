package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adilp/bhmhockey/models"
	"github.com/lib/pq"
)

var (
	ErrTeamNotFound          = errors.New("team not found")
	ErrTeamNameConflict      = errors.New("team name already taken in this tournament")
	ErrTeamInvalidTournament = errors.New("invalid tournament reference")
)

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.TournamentTeam) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentTeam, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentTeam, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TeamStatus) error
	UpdateSeed(ctx context.Context, exec SQLExecutor, id int, seed *int) error
	UpdateStats(ctx context.Context, exec SQLExecutor, team *models.TournamentTeam) error
	ResetStats(ctx context.Context, exec SQLExecutor, tournamentID int) error
	Delete(ctx context.Context, id int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const teamColumns = `
	id, tournament_id, name, captain_id, status, seed,
	wins, losses, ties, points, goals_for, goals_against, created_at`

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.TournamentTeam) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_teams (tournament_id, name, captain_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		team.TournamentID, team.Name, team.CaptainID, team.Status,
	).Scan(&team.ID, &team.CreatedAt)

	return r.handleTeamError(err)
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentTeam, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + teamColumns + ` FROM tournament_teams WHERE id = $1`

	team := &models.TournamentTeam{}
	err := executor.QueryRowContext(ctx, query, id).Scan(
		&team.ID, &team.TournamentID, &team.Name, &team.CaptainID, &team.Status, &team.Seed,
		&team.Wins, &team.Losses, &team.Ties, &team.Points, &team.GoalsFor, &team.GoalsAgainst, &team.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return team, nil
}

func (r *postgresTeamRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentTeam, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + teamColumns + `
		FROM tournament_teams
		WHERE tournament_id = $1
		ORDER BY seed NULLS LAST, created_at`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]*models.TournamentTeam, 0)
	for rows.Next() {
		team := &models.TournamentTeam{}
		if scanErr := rows.Scan(
			&team.ID, &team.TournamentID, &team.Name, &team.CaptainID, &team.Status, &team.Seed,
			&team.Wins, &team.Losses, &team.Ties, &team.Points, &team.GoalsFor, &team.GoalsAgainst, &team.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (r *postgresTeamRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TeamStatus) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE tournament_teams SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update team status: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateSeed(ctx context.Context, exec SQLExecutor, id int, seed *int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE tournament_teams SET seed = $1 WHERE id = $2`, seed, id)
	if err != nil {
		return fmt.Errorf("failed to update team seed: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateStats(ctx context.Context, exec SQLExecutor, team *models.TournamentTeam) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_teams SET
			wins = $1, losses = $2, ties = $3, points = $4,
			goals_for = $5, goals_against = $6
		WHERE id = $7`
	result, err := executor.ExecContext(ctx, query,
		team.Wins, team.Losses, team.Ties, team.Points,
		team.GoalsFor, team.GoalsAgainst, team.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update team stats: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) ResetStats(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_teams SET
			wins = 0, losses = 0, ties = 0, points = 0,
			goals_for = 0, goals_against = 0
		WHERE tournament_id = $1`
	if _, err := executor.ExecContext(ctx, query, tournamentID); err != nil {
		return fmt.Errorf("failed to reset team stats: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) Delete(ctx context.Context, id int) error {
	executor := r.getExecutor(nil)
	result, err := executor.ExecContext(ctx, `DELETE FROM tournament_teams WHERE id = $1`, id)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) handleTeamError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "tournament_teams_tournament_id_name_key" {
				return ErrTeamNameConflict
			}
		case "23503":
			if pqErr.Constraint == "tournament_teams_tournament_id_fkey" {
				return ErrTeamInvalidTournament
			}
		}
	}
	return err
}
