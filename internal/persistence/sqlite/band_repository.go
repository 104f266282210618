package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/rehearsal-scheduler/internal/persistence"
)

// BandRepository implements persistence.BandRepository using SQLite.
type BandRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewBandRepository creates a SQLite band repository.
func NewBandRepository(pool *ConnectionPool) *BandRepository {
	return &BandRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const memberColumns = `band_id, user_id, role, instrument, invitation_status, joined_at, updated_at`

// CreateBand inserts the band and the creator's membership in one transaction.
func (r *BandRepository) CreateBand(ctx context.Context, band persistence.Band, creator persistence.BandMember) error {
	if band.ID == "" || creator.BandID != band.ID {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := r.helper.ExecTx(ctx, tx, `
			INSERT INTO bands (id, name, description, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			band.ID,
			band.Name,
			nullString(band.Description),
			band.CreatedBy,
			formatTime(band.CreatedAt),
			formatTime(band.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := r.insertMember(ctx, tx, creator); err != nil {
			return err
		}
		return nil
	})
}

// DeleteBand removes the band. Foreign keys cascade to memberships,
// rehearsals and attendee rows.
func (r *BandRepository) DeleteBand(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM bands WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetBand retrieves a band by id.
func (r *BandRepository) GetBand(ctx context.Context, id string) (persistence.Band, error) {
	var (
		band               persistence.Band
		description        sql.NullString
		createdAt, updated string
	)
	err := r.helper.QueryRow(ctx, `
		SELECT id, name, description, created_by, created_at, updated_at
		FROM bands WHERE id = ?`, id).Scan(
		&band.ID,
		&band.Name,
		&description,
		&band.CreatedBy,
		&createdAt,
		&updated,
	)
	if err != nil {
		return persistence.Band{}, r.mapper.MapError(err)
	}
	band.Description = stringPtr(description)
	if band.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Band{}, err
	}
	if band.UpdatedAt, err = parseTime("updated_at", updated); err != nil {
		return persistence.Band{}, err
	}
	return band, nil
}

// ListBandMembers returns the band's members ordered by user id.
func (r *BandRepository) ListBandMembers(ctx context.Context, bandID, invitationStatus string) ([]persistence.BandMember, error) {
	query := `SELECT ` + memberColumns + ` FROM band_members WHERE band_id = ?`
	args := []any{bandID}
	if invitationStatus != "" {
		query += ` AND invitation_status = ?`
		args = append(args, invitationStatus)
	}
	query += ` ORDER BY user_id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	members := make([]persistence.BandMember, 0)
	for rows.Next() {
		member, err := r.scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate band members: %w", err)
	}
	return members, nil
}

// GetBandMember retrieves one membership row.
func (r *BandRepository) GetBandMember(ctx context.Context, bandID, userID string) (persistence.BandMember, error) {
	row := r.helper.QueryRow(ctx, `
		SELECT `+memberColumns+` FROM band_members
		WHERE band_id = ? AND user_id = ?`, bandID, userID)
	return r.scanMember(row)
}

// AddBandMember inserts a membership row. A second row for the same band
// and user fails with persistence.ErrDuplicate.
func (r *BandRepository) AddBandMember(ctx context.Context, member persistence.BandMember) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return r.insertMember(ctx, tx, member)
	})
}

// UpdateBandMember overwrites role, instrument and invitation status.
func (r *BandRepository) UpdateBandMember(ctx context.Context, member persistence.BandMember) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE band_members
		SET role = ?, instrument = ?, invitation_status = ?, updated_at = ?
		WHERE band_id = ? AND user_id = ?`,
		member.Role,
		nullString(member.Instrument),
		member.InvitationStatus,
		formatTime(member.UpdatedAt),
		member.BandID,
		member.UserID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func (r *BandRepository) insertMember(ctx context.Context, tx *sql.Tx, member persistence.BandMember) error {
	_, err := r.helper.ExecTx(ctx, tx, `
		INSERT INTO band_members (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		member.BandID,
		member.UserID,
		member.Role,
		nullString(member.Instrument),
		member.InvitationStatus,
		formatTime(member.JoinedAt),
		formatTime(member.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

func (r *BandRepository) scanMember(row rowScanner) (persistence.BandMember, error) {
	var (
		member            persistence.BandMember
		instrument        sql.NullString
		joinedAt, updated string
	)
	err := row.Scan(
		&member.BandID,
		&member.UserID,
		&member.Role,
		&instrument,
		&member.InvitationStatus,
		&joinedAt,
		&updated,
	)
	if err != nil {
		return persistence.BandMember{}, r.mapper.MapError(err)
	}
	member.Instrument = stringPtr(instrument)
	if member.JoinedAt, err = parseTime("joined_at", joinedAt); err != nil {
		return persistence.BandMember{}, err
	}
	if member.UpdatedAt, err = parseTime("updated_at", updated); err != nil {
		return persistence.BandMember{}, err
	}
	return member, nil
}
