package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/rehearsal-scheduler/internal/persistence"
)

// AvailabilityRepository implements persistence.AvailabilityRepository using SQLite.
type AvailabilityRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewAvailabilityRepository creates a SQLite availability repository.
func NewAvailabilityRepository(pool *ConnectionPool) *AvailabilityRepository {
	return &AvailabilityRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const ruleColumns = `id, user_id, day_of_week, start_time, end_time, is_recurring,
	specific_date, effective_from, effective_until, created_at, updated_at`

// CreateAvailabilityRule inserts a rule.
func (r *AvailabilityRepository) CreateAvailabilityRule(ctx context.Context, rule persistence.AvailabilityRule) error {
	_, err := r.helper.Exec(ctx, `
		INSERT INTO availability_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.UserID,
		rule.DayOfWeek,
		rule.StartTime,
		rule.EndTime,
		rule.Recurring,
		nullDate(rule.SpecificDate),
		nullDate(rule.EffectiveFrom),
		nullDate(rule.EffectiveUntil),
		formatTime(rule.CreatedAt),
		formatTime(rule.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// ListAvailabilityRules returns a user's rules ordered by weekday and start time.
func (r *AvailabilityRepository) ListAvailabilityRules(ctx context.Context, userID string) ([]persistence.AvailabilityRule, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT `+ruleColumns+` FROM availability_rules
		WHERE user_id = ?
		ORDER BY day_of_week ASC, start_time ASC, id ASC`, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	rules := make([]persistence.AvailabilityRule, 0)
	for rows.Next() {
		var (
			rule                 persistence.AvailabilityRule
			specific, from, till sql.NullString
			createdAt, updated   string
		)
		if err := rows.Scan(
			&rule.ID,
			&rule.UserID,
			&rule.DayOfWeek,
			&rule.StartTime,
			&rule.EndTime,
			&rule.Recurring,
			&specific,
			&from,
			&till,
			&createdAt,
			&updated,
		); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if rule.SpecificDate, err = parseNullDate("specific_date", specific); err != nil {
			return nil, err
		}
		if rule.EffectiveFrom, err = parseNullDate("effective_from", from); err != nil {
			return nil, err
		}
		if rule.EffectiveUntil, err = parseNullDate("effective_until", till); err != nil {
			return nil, err
		}
		if rule.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		if rule.UpdatedAt, err = parseTime("updated_at", updated); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability rules: %w", err)
	}
	return rules, nil
}

// DeleteAvailabilityRule removes one of the user's rules.
func (r *AvailabilityRepository) DeleteAvailabilityRule(ctx context.Context, userID, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM availability_rules WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// CreateUnavailability inserts a busy period.
func (r *AvailabilityRepository) CreateUnavailability(ctx context.Context, u persistence.Unavailability) error {
	_, err := r.helper.Exec(ctx, `
		INSERT INTO unavailabilities (id, user_id, start_time, end_time, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.UserID,
		formatTime(u.Start),
		formatTime(u.End),
		nullString(u.Reason),
		formatTime(u.CreatedAt),
	)
	return r.mapper.MapError(err)
}

// ListUnavailabilities returns the user's busy periods overlapping [start, end).
func (r *AvailabilityRepository) ListUnavailabilities(ctx context.Context, userID string, start, end time.Time) ([]persistence.Unavailability, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, user_id, start_time, end_time, reason, created_at
		FROM unavailabilities
		WHERE user_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time ASC, id ASC`,
		userID, formatTime(end), formatTime(start))
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	out := make([]persistence.Unavailability, 0)
	for rows.Next() {
		var (
			u                     persistence.Unavailability
			reason                sql.NullString
			from, till, createdAt string
		)
		if err := rows.Scan(&u.ID, &u.UserID, &from, &till, &reason, &createdAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		u.Reason = stringPtr(reason)
		if u.Start, err = parseTime("start_time", from); err != nil {
			return nil, err
		}
		if u.End, err = parseTime("end_time", till); err != nil {
			return nil, err
		}
		if u.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unavailabilities: %w", err)
	}
	return out, nil
}

// DeleteUnavailability removes one of the user's busy periods.
func (r *AvailabilityRepository) DeleteUnavailability(ctx context.Context, userID, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM unavailabilities WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}
