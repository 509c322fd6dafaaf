package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adilp/bhmhockey/models"
)

var (
	ErrMatchNotFound     = errors.New("match not found")
	ErrMatchSlotOccupied = errors.New("match slot already occupied")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.TournamentMatch) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentMatch, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentMatch, error)
	UpdateSuccessors(ctx context.Context, exec SQLExecutor, id int, nextID, nextSlot, loserNextID, loserNextSlot *int) error
	UpdateResult(ctx context.Context, exec SQLExecutor, match *models.TournamentMatch) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error
	AssignTeamSlot(ctx context.Context, exec SQLExecutor, matchID, slot, teamID int) error
	CountUnfinished(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, round, match_number, bracket_side, bracket_position,
	home_team_id, away_team_id, home_score, away_score, status,
	winner_team_id, forfeit_team_id, forfeit_reason,
	next_match_id, next_match_slot, loser_next_match_id, loser_next_slot,
	scheduled_at, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.TournamentMatch) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_matches (
			tournament_id, round, match_number, bracket_side, bracket_position,
			home_team_id, away_team_id, status, winner_team_id, scheduled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		m.TournamentID, m.Round, m.MatchNumber, m.BracketSide, m.BracketPosition,
		m.HomeTeamID, m.AwayTeamID, m.Status, m.WinnerTeamID, m.ScheduledAt,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentMatch, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM tournament_matches WHERE id = $1`

	m, err := scanMatch(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentMatch, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + `
		FROM tournament_matches
		WHERE tournament_id = $1
		ORDER BY bracket_side NULLS LAST, round, match_number`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.TournamentMatch, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) UpdateSuccessors(ctx context.Context, exec SQLExecutor, id int, nextID, nextSlot, loserNextID, loserNextSlot *int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_matches SET
			next_match_id = $1, next_match_slot = $2,
			loser_next_match_id = $3, loser_next_slot = $4
		WHERE id = $5`
	result, err := executor.ExecContext(ctx, query, nextID, nextSlot, loserNextID, loserNextSlot, id)
	if err != nil {
		return fmt.Errorf("failed to update match successors: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, m *models.TournamentMatch) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_matches SET
			home_score = $1, away_score = $2, status = $3,
			winner_team_id = $4, forfeit_team_id = $5, forfeit_reason = $6
		WHERE id = $7`
	result, err := executor.ExecContext(ctx, query,
		m.HomeScore, m.AwayScore, m.Status,
		m.WinnerTeamID, m.ForfeitTeamID, m.ForfeitReason, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update match result: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE tournament_matches SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update match status: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// AssignTeamSlot fills a successor slot. The guard in the WHERE clause keeps
// a second advancement from silently overwriting an occupied slot.
func (r *postgresMatchRepository) AssignTeamSlot(ctx context.Context, exec SQLExecutor, matchID, slot, teamID int) error {
	executor := r.getExecutor(exec)

	column := "home_team_id"
	if slot == models.SlotAway {
		column = "away_team_id"
	}
	query := fmt.Sprintf(`UPDATE tournament_matches SET %s = $1 WHERE id = $2 AND %s IS NULL`, column, column)

	result, err := executor.ExecContext(ctx, query, teamID, matchID)
	if err != nil {
		return fmt.Errorf("failed to assign team to match slot: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		if _, getErr := r.GetByID(ctx, exec, matchID); errors.Is(getErr, ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return ErrMatchSlotOccupied
	}
	return nil
}

func (r *postgresMatchRepository) CountUnfinished(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT COUNT(*) FROM tournament_matches
		WHERE tournament_id = $1
		AND status NOT IN ($2, $3, $4, $5)`

	var count int
	err := executor.QueryRowContext(ctx, query, tournamentID,
		models.MatchCompleted, models.MatchForfeit, models.MatchBye, models.MatchCancelled,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unfinished matches: %w", err)
	}
	return count, nil
}

func (r *postgresMatchRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	if _, err := executor.ExecContext(ctx, `DELETE FROM tournament_matches WHERE tournament_id = $1`, tournamentID); err != nil {
		return fmt.Errorf("failed to delete tournament matches: %w", err)
	}
	return nil
}

func scanMatch(row rowScanner) (*models.TournamentMatch, error) {
	m := &models.TournamentMatch{}
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.Round, &m.MatchNumber, &m.BracketSide, &m.BracketPosition,
		&m.HomeTeamID, &m.AwayTeamID, &m.HomeScore, &m.AwayScore, &m.Status,
		&m.WinnerTeamID, &m.ForfeitTeamID, &m.ForfeitReason,
		&m.NextMatchID, &m.NextMatchSlot, &m.LoserNextMatchID, &m.LoserNextSlot,
		&m.ScheduledAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}
