package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adilp/bhmhockey/models"
	"github.com/lib/pq"
)

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrEventInvalidOrganizer = errors.New("invalid event organizer reference")
)

type ListEventsFilter struct {
	OrganizerID *int
	Status      *models.EventStatus
	From        *time.Time
	Limit       int
	Offset      int
}

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Event, error)
	List(ctx context.Context, filter ListEventsFilter) ([]models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.EventStatus) error
	ListNeedingReminder(ctx context.Context, now time.Time, window time.Duration) ([]*models.Event, error)
	MarkReminderSent(ctx context.Context, id int, at time.Time) error
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const eventColumns = `
	id, name, description, location, organizer_id, starts_at,
	capacity, fee_cents, status, reminder_sent_at, created_at`

func (r *postgresEventRepository) Create(ctx context.Context, e *models.Event) error {
	executor := r.getExecutor(nil)
	query := `
		INSERT INTO events (name, description, location, organizer_id, starts_at, capacity, fee_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		e.Name, e.Description, e.Location, e.OrganizerID, e.StartsAt, e.Capacity, e.FeeCents, e.Status,
	).Scan(&e.ID, &e.CreatedAt)

	return r.handleEventError(err)
}

func (r *postgresEventRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Event, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + eventColumns + ` FROM events WHERE id = $1`

	e, err := scanEvent(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *postgresEventRepository) List(ctx context.Context, filter ListEventsFilter) ([]models.Event, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + eventColumns + ` FROM events WHERE status != 'deleted'`

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
	if filter.From != nil {
		query += fmt.Sprintf(" AND starts_at >= $%d", argID)
		args = append(args, *filter.From)
		argID++
	}

	query += " ORDER BY starts_at"

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

	events := make([]models.Event, 0)
	for rows.Next() {
		e, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *postgresEventRepository) Update(ctx context.Context, e *models.Event) error {
	executor := r.getExecutor(nil)
	query := `
		UPDATE events SET
			name = $1, description = $2, location = $3,
			starts_at = $4, capacity = $5, fee_cents = $6
		WHERE id = $7`

	result, err := executor.ExecContext(ctx, query,
		e.Name, e.Description, e.Location, e.StartsAt, e.Capacity, e.FeeCents, e.ID,
	)
	if err != nil {
		return r.handleEventError(err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.EventStatus) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE events SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

// ListNeedingReminder returns active events starting within the window whose
// reminder has not gone out yet.
func (r *postgresEventRepository) ListNeedingReminder(ctx context.Context, now time.Time, window time.Duration) ([]*models.Event, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + eventColumns + `
		FROM events
		WHERE status = $1 AND reminder_sent_at IS NULL
		AND starts_at > $2 AND starts_at <= $3
		ORDER BY starts_at`

	rows, err := executor.QueryContext(ctx, query, models.EventActive, now, now.Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*models.Event, 0)
	for rows.Next() {
		e, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *postgresEventRepository) MarkReminderSent(ctx context.Context, id int, at time.Time) error {
	executor := r.getExecutor(nil)
	result, err := executor.ExecContext(ctx, `UPDATE events SET reminder_sent_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark event reminder sent: %w", err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func scanEvent(row rowScanner) (*models.Event, error) {
	e := &models.Event{}
	err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.Location, &e.OrganizerID, &e.StartsAt,
		&e.Capacity, &e.FeeCents, &e.Status, &e.ReminderSentAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *postgresEventRepository) handleEventError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" && pqErr.Constraint == "events_organizer_id_fkey" {
			return ErrEventInvalidOrganizer
		}
	}
	return err
}
