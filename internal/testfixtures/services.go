package testfixtures

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/availability"
)

// FastArgon2idParams keep password hashing cheap in tests.
var FastArgon2idParams = application.Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *zerolog.Logger
	Location    *time.Location
	Lookahead   time.Duration
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	nop := zerolog.Nop()
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Logger:      &nop,
		Location:    time.UTC,
		Lookahead:   365 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger *zerolog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// WithLocation sets the band-local time zone used by the availability engine.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// Services bundles every application service wired to one repository set.
type Services struct {
	Users        *application.UserService
	Bands        *application.BandService
	Availability *application.AvailabilityService
	Scheduling   *application.SchedulingService
	Rehearsals   *application.RehearsalService

	Metrics  *application.Metrics
	Registry *prometheus.Registry
	Notifier *RecordingNotifier
}

// NewServices wires all services to the harness repositories with a fresh
// metrics registry and a recording notifier.
func (f *ServiceFactory) NewServices(h *SQLiteHarness) Services {
	registry := prometheus.NewRegistry()
	metrics := application.NewMetrics(registry)
	notifier := &RecordingNotifier{}
	idGen := f.IDGenerator.NextFunc()
	now := f.Clock.NowFunc()
	engine := availability.NewEngine(f.Location, f.Lookahead)

	return Services{
		Users:        application.NewUserService(h.Users, FastArgon2idParams, idGen, now, f.Logger),
		Bands:        application.NewBandService(h.Bands, h.Users, h.Rehearsals, idGen, now, f.Logger),
		Availability: application.NewAvailabilityService(h.Availability, idGen, now, f.Logger),
		Scheduling:   application.NewSchedulingService(h.Bands, h.Availability, engine, 20, metrics, f.Logger),
		Rehearsals:   application.NewRehearsalService(h.Rehearsals, h.Bands, h.Users, notifier, metrics, idGen, now, f.Logger),
		Metrics:      metrics,
		Registry:     registry,
		Notifier:     notifier,
	}
}

// RecordingNotifier keeps every published event in order. Err, when set, is
// returned from Publish after the event is recorded.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []application.Event
	Err    error
}

func (n *RecordingNotifier) Publish(_ context.Context, event application.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.Err
}

// Events returns a copy of the recorded events.
func (n *RecordingNotifier) Events() []application.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]application.Event(nil), n.events...)
}

// Types returns the recorded event types in publish order.
func (n *RecordingNotifier) Types() []application.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]application.EventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}
