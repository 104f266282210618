package migration

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Manager orchestrates scanning and applying migrations.
type Manager struct {
	scanner  Scanner
	executor Executor
	logger   zerolog.Logger
}

// NewManager wires a scanner and executor. A nil logger discards output.
func NewManager(scanner Scanner, executor Executor, logger *zerolog.Logger) *Manager {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "migration").Logger()
	}
	return &Manager{scanner: scanner, executor: executor, logger: l}
}

// RunMigrations applies all pending migrations in version order. It stops at
// the first failure; earlier migrations stay applied.
func (m *Manager) RunMigrations(ctx context.Context) error {
	started := time.Now()

	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("resolve pending migrations")
		return err
	}
	if len(pending) == 0 {
		m.logger.Debug().Msg("schema up to date")
		return nil
	}

	for i, migration := range pending {
		stepStarted := time.Now()
		log := m.logger.With().
			Str("version", migration.Version).
			Str("description", migration.Description).
			Logger()
		log.Info().Int("step", i+1).Int("total", len(pending)).Msg("applying migration")

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			log.Error().Err(err).Msg("migration failed")
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}

		elapsed := time.Since(stepStarted)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			log.Error().Err(err).Msg("record migration")
			return err
		}
		log.Info().Dur("elapsed", elapsed).Msg("migration applied")
	}

	m.logger.Info().
		Int("applied", len(pending)).
		Dur("elapsed", time.Since(started)).
		Msg("migrations complete")
	return nil
}

// GetPendingMigrations returns migrations not yet applied after validating
// the sequence and the checksums of applied files.
func (m *Manager) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, err
	}
	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return nil, err
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateSequence(available, applied); err != nil {
		return nil, err
	}

	done := make(map[string]struct{}, len(applied))
	for _, a := range applied {
		done[a.Version] = struct{}{}
	}

	pending := make([]Migration, 0, len(available))
	for _, migration := range available {
		if _, ok := done[migration.Version]; ok {
			continue
		}
		pending = append(pending, migration)
	}
	sortByVersion(pending)
	return pending, nil
}

// Status reports the current schema version and what remains to apply.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return Status{}, err
	}

	status := Status{
		PendingCount:      len(pending),
		AppliedMigrations: applied,
		PendingMigrations: pending,
	}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	return status, nil
}

// validateSequence requires available versions to be contiguous and every
// applied version to still exist with an unchanged checksum.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for i, migration := range available {
		version, err := strconv.Atoi(migration.Version)
		if err != nil {
			return NewMigrationError(migration.Version, migration.FilePath, "validate sequence", err)
		}
		if i > 0 {
			previous, _ := strconv.Atoi(available[i-1].Version)
			if version != previous+1 {
				return fmt.Errorf("%w: missing version between %s and %s",
					ErrVersionConflict, available[i-1].Version, migration.Version)
			}
		}
		byVersion[version] = migration
	}

	for _, a := range applied {
		version, err := strconv.Atoi(a.Version)
		if err != nil {
			return fmt.Errorf("%w: applied version %q is not numeric", ErrVersionConflict, a.Version)
		}
		migration, ok := byVersion[version]
		if !ok {
			return fmt.Errorf("%w: applied version %s has no migration file", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && a.Checksum != migration.Checksum {
			return NewMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
