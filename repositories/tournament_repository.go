package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adilp/bhmhockey/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound         = errors.New("tournament not found")
	ErrTournamentNameConflict     = errors.New("tournament name conflict for this organizer")
	ErrTournamentInvalidOrganizer = errors.New("invalid organizer reference")
	ErrTournamentInUse            = errors.New("tournament has teams or matches")
)

type ListTournamentsFilter struct {
	OrganizerID *int
	Status      *models.TournamentStatus
	Format      *models.TournamentFormat
	Limit       int
	Offset      int
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus, prior *models.TournamentStatus) error
	SetWinner(ctx context.Context, exec SQLExecutor, id int, winnerTeamID *int) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, description, organizer_id, format, status, prior_status,
	start_date, end_date, location,
	min_team_size, max_team_size, max_teams, fee_cents,
	points_win, points_tie, points_loss, tiebreaker_order,
	third_place_match, grand_final_reset, winner_team_id, logo_key, created_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	executor := r.getExecutor(nil)
	tiebreakers, err := marshalTiebreakers(t.TiebreakerOrder)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO tournaments (
			name, description, organizer_id, format, status,
			start_date, end_date, location,
			min_team_size, max_team_size, max_teams, fee_cents,
			points_win, points_tie, points_loss, tiebreaker_order,
			third_place_match, grand_final_reset, logo_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at`

	err = executor.QueryRowContext(ctx, query,
		t.Name, t.Description, t.OrganizerID, t.Format, t.Status,
		t.StartDate, t.EndDate, t.Location,
		t.MinTeamSize, t.MaxTeamSize, t.MaxTeams, t.FeeCents,
		t.PointsWin, t.PointsTie, t.PointsLoss, tiebreakers,
		t.ThirdPlaceMatch, t.GrandFinalReset, t.LogoKey,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t, err := scanTournament(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND organizer_id = $%d", argID)
		args = append(args, *filter.OrganizerID)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Format != nil {
		query += fmt.Sprintf(" AND format = $%d", argID)
		args = append(args, *filter.Format)
		argID++
	}

	query += " ORDER BY start_date DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, *t)
	}
	return tournaments, rows.Err()
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	executor := r.getExecutor(nil)
	tiebreakers, err := marshalTiebreakers(t.TiebreakerOrder)
	if err != nil {
		return err
	}
	// Status, winner and logo key have dedicated methods.
	query := `
		UPDATE tournaments SET
			name = $1,
			description = $2,
			start_date = $3,
			end_date = $4,
			location = $5,
			min_team_size = $6,
			max_team_size = $7,
			max_teams = $8,
			fee_cents = $9,
			points_win = $10,
			points_tie = $11,
			points_loss = $12,
			tiebreaker_order = $13,
			third_place_match = $14,
			grand_final_reset = $15
		WHERE id = $16`

	result, err := executor.ExecContext(ctx, query,
		t.Name, t.Description, t.StartDate, t.EndDate, t.Location,
		t.MinTeamSize, t.MaxTeamSize, t.MaxTeams, t.FeeCents,
		t.PointsWin, t.PointsTie, t.PointsLoss, tiebreakers,
		t.ThirdPlaceMatch, t.GrandFinalReset,
		t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus, prior *models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1, prior_status = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, status, prior, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetWinner(ctx context.Context, exec SQLExecutor, id int, winnerTeamID *int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET winner_team_id = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, winnerTeamID, id)
	if err != nil {
		return fmt.Errorf("failed to set tournament winner: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	executor := r.getExecutor(nil)
	query := `UPDATE tournaments SET logo_key = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	executor := r.getExecutor(nil)
	query := `DELETE FROM tournaments WHERE id = $1`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTournament(row rowScanner) (*models.Tournament, error) {
	t := &models.Tournament{}
	var tiebreakers []byte
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.OrganizerID, &t.Format, &t.Status, &t.PriorStatus,
		&t.StartDate, &t.EndDate, &t.Location,
		&t.MinTeamSize, &t.MaxTeamSize, &t.MaxTeams, &t.FeeCents,
		&t.PointsWin, &t.PointsTie, &t.PointsLoss, &tiebreakers,
		&t.ThirdPlaceMatch, &t.GrandFinalReset, &t.WinnerTeamID, &t.LogoKey, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(tiebreakers) > 0 {
		if err := json.Unmarshal(tiebreakers, &t.TiebreakerOrder); err != nil {
			return nil, fmt.Errorf("failed to decode tiebreaker order for tournament %d: %w", t.ID, err)
		}
	}
	return t, nil
}

func marshalTiebreakers(order []models.TiebreakCriterion) ([]byte, error) {
	if len(order) == 0 {
		order = []models.TiebreakCriterion{}
	}
	data, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tiebreaker order: %w", err)
	}
	return data, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "tournaments_organizer_id_name_key" {
				return ErrTournamentNameConflict
			}
		case "23503":
			if pqErr.Constraint == "tournaments_organizer_id_fkey" {
				return ErrTournamentInvalidOrganizer
			}
			return ErrTournamentInUse
		}
	}
	return err
}
