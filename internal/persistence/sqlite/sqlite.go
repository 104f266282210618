package sqlite

import (
	"context"
	"embed"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the SQLite-backed repositories over one connection pool.
type Storage struct {
	pool   *ConnectionPool
	logger *zerolog.Logger

	Users        *UserRepository
	Bands        *BandRepository
	Availability *AvailabilityRepository
	Rehearsals   *RehearsalRepository
}

// Open connects to dsn and verifies the connection. Call Migrate before use.
func Open(ctx context.Context, dsn string, logger *zerolog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}
	if err := WithRetry(ctx, DefaultRetryConfig(), func() error { return pool.Ping(ctx) }); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Storage{
		pool:         pool,
		logger:       logger,
		Users:        NewUserRepository(pool),
		Bands:        NewBandRepository(pool),
		Availability: NewAvailabilityRepository(pool),
		Rehearsals:   NewRehearsalRepository(pool),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	return manager.RunMigrations(ctx)
}

// SchemaStatus reports applied and pending migrations.
func (s *Storage) SchemaStatus(ctx context.Context) (migration.Status, error) {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	return manager.Status(ctx)
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	if s == nil {
		return nil
	}
	return s.pool.Close()
}
