package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/rehearsal-scheduler/internal/persistence/adapter"
	"github.com/example/rehearsal-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary, migrated
// SQLite database. Storage exposes the raw repositories; the remaining fields
// are the same repositories seen through the application adapters.
type SQLiteHarness struct {
	Storage *sqlite.Storage

	Users        *adapter.UserRepository
	Bands        *adapter.BandRepository
	Availability *adapter.AvailabilityRepository
	Rehearsals   *adapter.RehearsalRepository

	tb testing.TB
}

// NewSQLiteHarness opens and migrates a database file under tb.TempDir. The
// storage is closed through tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "rehearsals.db")
	storage, err := sqlite.Open(context.Background(), path, nil)
	require.NoError(tb, err, "open storage")
	tb.Cleanup(func() { _ = storage.Close() })

	require.NoError(tb, storage.Migrate(context.Background()), "migrate storage")

	return &SQLiteHarness{
		Storage:      storage,
		Users:        adapter.NewUserRepository(storage.Users),
		Bands:        adapter.NewBandRepository(storage.Bands),
		Availability: adapter.NewAvailabilityRepository(storage.Availability),
		Rehearsals:   adapter.NewRehearsalRepository(storage.Rehearsals),
		tb:           tb,
	}
}

// SeedUsers inserts each user.
func (h *SQLiteHarness) SeedUsers(users ...UserFixture) {
	h.tb.Helper()
	for _, u := range users {
		require.NoError(h.tb, h.Storage.Users.CreateUser(context.Background(), u.Persistence()), "seed user %s", u.ID)
	}
}

// SeedBand inserts the band with its creator, then every other member.
func (h *SQLiteHarness) SeedBand(b BandFixture) {
	h.tb.Helper()
	ctx := context.Background()
	members := b.PersistenceMembers()
	require.NoError(h.tb, h.Storage.Bands.CreateBand(ctx, b.Persistence(), members[0]), "seed band %s", b.ID)
	for _, m := range members[1:] {
		require.NoError(h.tb, h.Storage.Bands.AddBandMember(ctx, m), "seed member %s", m.UserID)
	}
}

// SeedRules inserts each availability rule.
func (h *SQLiteHarness) SeedRules(rules ...RuleFixture) {
	h.tb.Helper()
	for _, r := range rules {
		require.NoError(h.tb, h.Storage.Availability.CreateAvailabilityRule(context.Background(), r.Persistence()), "seed rule %s", r.ID)
	}
}

// SeedUnavailabilities inserts each busy period.
func (h *SQLiteHarness) SeedUnavailabilities(items ...UnavailabilityFixture) {
	h.tb.Helper()
	for _, u := range items {
		require.NoError(h.tb, h.Storage.Availability.CreateUnavailability(context.Background(), u.Persistence()), "seed unavailability %s", u.ID)
	}
}

// SeedRehearsal inserts the rehearsal and its attendee rows.
func (h *SQLiteHarness) SeedRehearsal(r RehearsalFixture) {
	h.tb.Helper()
	require.NoError(h.tb, h.Storage.Rehearsals.CreateRehearsal(context.Background(), r.Persistence(), r.PersistenceAttendees()), "seed rehearsal %s", r.ID)
}
