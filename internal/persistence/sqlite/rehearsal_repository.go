package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/example/rehearsal-scheduler/internal/persistence"
)

// RehearsalRepository implements persistence.RehearsalRepository using SQLite.
type RehearsalRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewRehearsalRepository creates a SQLite rehearsal repository.
func NewRehearsalRepository(pool *ConnectionPool) *RehearsalRepository {
	return &RehearsalRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const rehearsalColumns = `id, band_id, title, description, location, start_time, end_time,
	status, created_by, recurring_pattern, created_at, updated_at`

const attendeeColumns = `rehearsal_id, user_id, response, response_date, attendance_status,
	late_minutes, comment, updated_at`

// CreateRehearsal inserts the rehearsal and its attendee rows atomically.
func (r *RehearsalRepository) CreateRehearsal(ctx context.Context, rehearsal persistence.Rehearsal, attendees []persistence.RehearsalAttendee) error {
	if rehearsal.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := r.helper.ExecTx(ctx, tx, `
			INSERT INTO rehearsals (`+rehearsalColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rehearsal.ID,
			rehearsal.BandID,
			rehearsal.Title,
			nullString(rehearsal.Description),
			nullString(rehearsal.Location),
			formatTime(rehearsal.Start),
			formatTime(rehearsal.End),
			rehearsal.Status,
			rehearsal.CreatedBy,
			rehearsal.RecurringPattern,
			formatTime(rehearsal.CreatedAt),
			formatTime(rehearsal.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		for _, attendee := range attendees {
			if attendee.RehearsalID != rehearsal.ID {
				return fmt.Errorf("%w: attendee %s belongs to rehearsal %s",
					persistence.ErrConstraintViolation, attendee.UserID, attendee.RehearsalID)
			}
			if err := r.insertAttendee(ctx, tx, attendee); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRehearsal retrieves a rehearsal by id.
func (r *RehearsalRepository) GetRehearsal(ctx context.Context, id string) (persistence.Rehearsal, error) {
	row := r.helper.QueryRow(ctx, `SELECT `+rehearsalColumns+` FROM rehearsals WHERE id = ?`, id)
	return r.scanRehearsal(row)
}

// ListRehearsals returns rehearsals matching filter ordered by start time.
func (r *RehearsalRepository) ListRehearsals(ctx context.Context, filter persistence.RehearsalFilter) ([]persistence.Rehearsal, error) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if filter.BandID != "" {
		clauses = append(clauses, "band_id = ?")
		args = append(args, filter.BandID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.StartsAfter != nil {
		clauses = append(clauses, "start_time >= ?")
		args = append(args, formatTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		clauses = append(clauses, "end_time <= ?")
		args = append(args, formatTime(*filter.EndsBefore))
	}

	query := `SELECT ` + rehearsalColumns + ` FROM rehearsals`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_time ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	out := make([]persistence.Rehearsal, 0)
	for rows.Next() {
		rehearsal, err := r.scanRehearsal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rehearsal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rehearsals: %w", err)
	}
	return out, nil
}

// UpdateRehearsalStatus is a compare-and-set on the status column.
func (r *RehearsalRepository) UpdateRehearsalStatus(ctx context.Context, id, expected, next string, updatedAt time.Time) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(ctx, tx, `
			UPDATE rehearsals SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			next, formatTime(updatedAt), id, expected)
		if err != nil {
			return r.mapper.MapError(err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 1 {
			return nil
		}

		var current string
		err = r.helper.QueryRowTx(ctx, tx, `SELECT status FROM rehearsals WHERE id = ?`, id).Scan(&current)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return fmt.Errorf("%w: rehearsal %s is %s, expected %s", persistence.ErrStaleState, id, current, expected)
	})
}

// ListAttendees returns the rehearsal's attendee rows ordered by user id.
func (r *RehearsalRepository) ListAttendees(ctx context.Context, rehearsalID string) ([]persistence.RehearsalAttendee, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT `+attendeeColumns+` FROM rehearsal_attendees
		WHERE rehearsal_id = ?
		ORDER BY user_id ASC`, rehearsalID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	out := make([]persistence.RehearsalAttendee, 0)
	for rows.Next() {
		attendee, err := r.scanAttendee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, attendee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendees: %w", err)
	}
	return out, nil
}

// GetAttendee retrieves one attendee row.
func (r *RehearsalRepository) GetAttendee(ctx context.Context, rehearsalID, userID string) (persistence.RehearsalAttendee, error) {
	row := r.helper.QueryRow(ctx, `
		SELECT `+attendeeColumns+` FROM rehearsal_attendees
		WHERE rehearsal_id = ? AND user_id = ?`, rehearsalID, userID)
	return r.scanAttendee(row)
}

// SaveAttendee inserts or replaces the attendee row.
func (r *RehearsalRepository) SaveAttendee(ctx context.Context, attendee persistence.RehearsalAttendee) error {
	_, err := r.helper.Exec(ctx, `
		INSERT INTO rehearsal_attendees (`+attendeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (rehearsal_id, user_id) DO UPDATE SET
			response = excluded.response,
			response_date = excluded.response_date,
			attendance_status = excluded.attendance_status,
			late_minutes = excluded.late_minutes,
			comment = excluded.comment,
			updated_at = excluded.updated_at`,
		attendeeArgs(attendee)...,
	)
	return r.mapper.MapError(err)
}

// EnsureAttendee adds an unset row for userID to each listed rehearsal
// that has none.
func (r *RehearsalRepository) EnsureAttendee(ctx context.Context, rehearsalIDs []string, userID string, at time.Time) (int, error) {
	added := 0
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, id := range rehearsalIDs {
			result, err := r.helper.ExecTx(ctx, tx, `
				INSERT INTO rehearsal_attendees (rehearsal_id, user_id, updated_at)
				VALUES (?, ?, ?)
				ON CONFLICT (rehearsal_id, user_id) DO NOTHING`,
				id, userID, formatTime(at))
			if err != nil {
				return r.mapper.MapError(err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			added += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

func (r *RehearsalRepository) insertAttendee(ctx context.Context, tx *sql.Tx, attendee persistence.RehearsalAttendee) error {
	_, err := r.helper.ExecTx(ctx, tx, `
		INSERT INTO rehearsal_attendees (`+attendeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		attendeeArgs(attendee)...,
	)
	return r.mapper.MapError(err)
}

func attendeeArgs(a persistence.RehearsalAttendee) []any {
	return []any{
		a.RehearsalID,
		a.UserID,
		a.Response,
		nullTime(a.ResponseDate),
		a.AttendanceStatus,
		a.LateMinutes,
		nullString(a.Comment),
		formatTime(a.UpdatedAt),
	}
}

func (r *RehearsalRepository) scanRehearsal(row rowScanner) (persistence.Rehearsal, error) {
	var (
		rehearsal                      persistence.Rehearsal
		description, location, pattern sql.NullString
		start, end, createdAt, updated string
	)
	err := row.Scan(
		&rehearsal.ID,
		&rehearsal.BandID,
		&rehearsal.Title,
		&description,
		&location,
		&start,
		&end,
		&rehearsal.Status,
		&rehearsal.CreatedBy,
		&pattern,
		&createdAt,
		&updated,
	)
	if err != nil {
		return persistence.Rehearsal{}, r.mapper.MapError(err)
	}

	rehearsal.Description = stringPtr(description)
	rehearsal.Location = stringPtr(location)
	if pattern.Valid {
		rehearsal.RecurringPattern = datatypes.JSON(pattern.String)
	}
	if rehearsal.Start, err = parseTime("start_time", start); err != nil {
		return persistence.Rehearsal{}, err
	}
	if rehearsal.End, err = parseTime("end_time", end); err != nil {
		return persistence.Rehearsal{}, err
	}
	if rehearsal.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Rehearsal{}, err
	}
	if rehearsal.UpdatedAt, err = parseTime("updated_at", updated); err != nil {
		return persistence.Rehearsal{}, err
	}
	return rehearsal, nil
}

func (r *RehearsalRepository) scanAttendee(row rowScanner) (persistence.RehearsalAttendee, error) {
	var (
		attendee              persistence.RehearsalAttendee
		responseDate, comment sql.NullString
		updated               string
	)
	err := row.Scan(
		&attendee.RehearsalID,
		&attendee.UserID,
		&attendee.Response,
		&responseDate,
		&attendee.AttendanceStatus,
		&attendee.LateMinutes,
		&comment,
		&updated,
	)
	if err != nil {
		return persistence.RehearsalAttendee{}, r.mapper.MapError(err)
	}
	attendee.Comment = stringPtr(comment)
	if attendee.ResponseDate, err = parseNullTime("response_date", responseDate); err != nil {
		return persistence.RehearsalAttendee{}, err
	}
	if attendee.UpdatedAt, err = parseTime("updated_at", updated); err != nil {
		return persistence.RehearsalAttendee{}, err
	}
	return attendee, nil
}
