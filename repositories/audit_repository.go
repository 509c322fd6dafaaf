package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/adilp/bhmhockey/models"
)

// AuditRepository is append-only. Rows are written inside the transaction of
// the change they describe so the log can never disagree with the data.
type AuditRepository interface {
	Append(ctx context.Context, exec SQLExecutor, entry *models.TournamentAuditLog) error
	ListByTournament(ctx context.Context, tournamentID int, limit, offset int) ([]models.TournamentAuditLog, error)
}

type postgresAuditRepository struct {
	db *sql.DB
}

func NewPostgresAuditRepository(db *sql.DB) AuditRepository {
	return &postgresAuditRepository{db: db}
}

func (r *postgresAuditRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresAuditRepository) Append(ctx context.Context, exec SQLExecutor, entry *models.TournamentAuditLog) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_audit_log (
			tournament_id, actor_id, action, from_status, to_status,
			entity_type, entity_id, old_value, new_value, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		entry.TournamentID, entry.ActorID, entry.Action, entry.FromStatus, entry.ToStatus,
		entry.EntityType, entry.EntityID, entry.OldValue, entry.NewValue, entry.Details,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit log entry: %w", err)
	}
	return nil
}

func (r *postgresAuditRepository) ListByTournament(ctx context.Context, tournamentID int, limit, offset int) ([]models.TournamentAuditLog, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT id, tournament_id, actor_id, action, from_status, to_status,
			entity_type, entity_id, old_value, new_value, details, created_at
		FROM tournament_audit_log
		WHERE tournament_id = $1
		ORDER BY created_at DESC, id DESC`

	args := []interface{}{tournamentID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
		if offset > 0 {
			query += ` OFFSET $3`
			args = append(args, offset)
		}
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.TournamentAuditLog, 0)
	for rows.Next() {
		var e models.TournamentAuditLog
		if scanErr := rows.Scan(
			&e.ID, &e.TournamentID, &e.ActorID, &e.Action, &e.FromStatus, &e.ToStatus,
			&e.EntityType, &e.EntityID, &e.OldValue, &e.NewValue, &e.Details, &e.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
