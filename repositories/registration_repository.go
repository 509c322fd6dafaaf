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
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrRegistrationConflict = errors.New("user already has an active registration for this parent")
	ErrRegistrationInvalid  = errors.New("invalid registration reference")
)

type RegistrationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Registration, error)
	GetActiveByUser(ctx context.Context, exec SQLExecutor, parent models.ParentRef, userID int) (*models.Registration, error)
	ListByParent(ctx context.Context, exec SQLExecutor, parent models.ParentRef) ([]*models.Registration, error)
	ListWaitlisted(ctx context.Context, exec SQLExecutor, parent models.ParentRef) ([]*models.Registration, error)
	CountActive(ctx context.Context, exec SQLExecutor, parent models.ParentRef) (int, error)
	MaxWaitlistPosition(ctx context.Context, exec SQLExecutor, parent models.ParentRef) (int, error)
	MarkPromoted(ctx context.Context, exec SQLExecutor, id int, promotedAt time.Time, paymentDeadline *time.Time) error
	MarkDemoted(ctx context.Context, exec SQLExecutor, id int, position int) error
	MarkPaid(ctx context.Context, exec SQLExecutor, id int, paidAt time.Time) error
	Cancel(ctx context.Context, exec SQLExecutor, id int) error
	DecrementPositionsAfter(ctx context.Context, exec SQLExecutor, parent models.ParentRef, position int) error
	ListOverduePromotions(ctx context.Context, exec SQLExecutor, now time.Time) ([]*models.Registration, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const registrationColumns = `
	id, parent_kind, parent_id, user_id, status, waitlist_position,
	promoted_at, payment_deadline_at, paid_at, created_at`

func (r *postgresRegistrationRepository) Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO registrations (parent_kind, parent_id, user_id, status, waitlist_position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		reg.ParentKind, reg.ParentID, reg.UserID, reg.Status, reg.WaitlistPosition,
	).Scan(&reg.ID, &reg.CreatedAt)

	return r.handleRegistrationError(err)
}

func (r *postgresRegistrationRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Registration, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + registrationColumns + ` FROM registrations WHERE id = $1`

	reg, err := scanRegistration(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) GetActiveByUser(ctx context.Context, exec SQLExecutor, parent models.ParentRef, userID int) (*models.Registration, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + registrationColumns + `
		FROM registrations
		WHERE parent_kind = $1 AND parent_id = $2 AND user_id = $3 AND status != $4`

	reg, err := scanRegistration(executor.QueryRowContext(ctx, query, parent.Kind, parent.ID, userID, models.RegistrationCancelled))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) ListByParent(ctx context.Context, exec SQLExecutor, parent models.ParentRef) ([]*models.Registration, error) {
	query := `SELECT` + registrationColumns + `
		FROM registrations
		WHERE parent_kind = $1 AND parent_id = $2
		ORDER BY created_at`
	return r.queryRegistrations(ctx, exec, query, parent.Kind, parent.ID)
}

// ListWaitlisted returns the queue in promotion order. Position is unique per
// parent among waitlisted rows, so the ordering is total.
func (r *postgresRegistrationRepository) ListWaitlisted(ctx context.Context, exec SQLExecutor, parent models.ParentRef) ([]*models.Registration, error) {
	query := `SELECT` + registrationColumns + `
		FROM registrations
		WHERE parent_kind = $1 AND parent_id = $2 AND status = $3
		ORDER BY waitlist_position`
	return r.queryRegistrations(ctx, exec, query, parent.Kind, parent.ID, models.RegistrationWaitlisted)
}

func (r *postgresRegistrationRepository) CountActive(ctx context.Context, exec SQLExecutor, parent models.ParentRef) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT COUNT(*) FROM registrations
		WHERE parent_kind = $1 AND parent_id = $2 AND status IN ($3, $4)`

	var count int
	err := executor.QueryRowContext(ctx, query, parent.Kind, parent.ID,
		models.RegistrationRegistered, models.RegistrationAssigned,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active registrations: %w", err)
	}
	return count, nil
}

func (r *postgresRegistrationRepository) MaxWaitlistPosition(ctx context.Context, exec SQLExecutor, parent models.ParentRef) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT COALESCE(MAX(waitlist_position), 0) FROM registrations
		WHERE parent_kind = $1 AND parent_id = $2 AND status = $3`

	var max int
	err := executor.QueryRowContext(ctx, query, parent.Kind, parent.ID, models.RegistrationWaitlisted).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max waitlist position: %w", err)
	}
	return max, nil
}

func (r *postgresRegistrationRepository) MarkPromoted(ctx context.Context, exec SQLExecutor, id int, promotedAt time.Time, paymentDeadline *time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE registrations SET
			status = $1, waitlist_position = NULL,
			promoted_at = $2, payment_deadline_at = $3
		WHERE id = $4`
	result, err := executor.ExecContext(ctx, query, models.RegistrationRegistered, promotedAt, paymentDeadline, id)
	if err != nil {
		return fmt.Errorf("failed to mark registration promoted: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

// MarkDemoted sends an unpaid promotion back onto the waitlist at the given
// position, clearing the promotion timestamps.
func (r *postgresRegistrationRepository) MarkDemoted(ctx context.Context, exec SQLExecutor, id int, position int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE registrations SET
			status = $1, waitlist_position = $2,
			promoted_at = NULL, payment_deadline_at = NULL
		WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, models.RegistrationWaitlisted, position, id)
	if err != nil {
		return fmt.Errorf("failed to mark registration demoted: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) MarkPaid(ctx context.Context, exec SQLExecutor, id int, paidAt time.Time) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE registrations SET paid_at = $1 WHERE id = $2`, paidAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark registration paid: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) Cancel(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE registrations SET status = $1, waitlist_position = NULL WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, models.RegistrationCancelled, id)
	if err != nil {
		return fmt.Errorf("failed to cancel registration: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

// DecrementPositionsAfter closes the gap left by a departed waitlist entry so
// positions stay dense.
func (r *postgresRegistrationRepository) DecrementPositionsAfter(ctx context.Context, exec SQLExecutor, parent models.ParentRef, position int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE registrations SET waitlist_position = waitlist_position - 1
		WHERE parent_kind = $1 AND parent_id = $2 AND status = $3 AND waitlist_position > $4`
	if _, err := executor.ExecContext(ctx, query, parent.Kind, parent.ID, models.RegistrationWaitlisted, position); err != nil {
		return fmt.Errorf("failed to compact waitlist positions: %w", err)
	}
	return nil
}

// ListOverduePromotions finds promotions whose payment deadline passed without
// payment, across all parents.
func (r *postgresRegistrationRepository) ListOverduePromotions(ctx context.Context, exec SQLExecutor, now time.Time) ([]*models.Registration, error) {
	query := `SELECT` + registrationColumns + `
		FROM registrations
		WHERE status = $1 AND paid_at IS NULL
		AND payment_deadline_at IS NOT NULL AND payment_deadline_at < $2
		ORDER BY payment_deadline_at`
	return r.queryRegistrations(ctx, exec, query, models.RegistrationRegistered, now)
}

func (r *postgresRegistrationRepository) queryRegistrations(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.Registration, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := make([]*models.Registration, 0)
	for rows.Next() {
		reg, scanErr := scanRegistration(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func scanRegistration(row rowScanner) (*models.Registration, error) {
	reg := &models.Registration{}
	err := row.Scan(
		&reg.ID, &reg.ParentKind, &reg.ParentID, &reg.UserID, &reg.Status, &reg.WaitlistPosition,
		&reg.PromotedAt, &reg.PaymentDeadlineAt, &reg.PaidAt, &reg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) handleRegistrationError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "registrations_active_user_parent_key" {
				return ErrRegistrationConflict
			}
		case "23503":
			return ErrRegistrationInvalid
		}
	}
	return err
}
