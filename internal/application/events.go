package application

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// EventType names a rehearsal notification.
type EventType string

const (
	EventRehearsalCreated           EventType = "rehearsal.created"
	EventRehearsalCanceled          EventType = "rehearsal.canceled"
	EventRehearsalCompleted         EventType = "rehearsal.completed"
	EventAttendeeResponseChanged    EventType = "attendee.response_changed"
	EventAttendeeAttendanceRecorded EventType = "attendee.attendance_recorded"
)

// Event is emitted after a rehearsal or attendee change has been persisted.
// UserID is the attendee for attendee events and the actor otherwise.
type Event struct {
	Type        EventType `json:"type"`
	BandID      string    `json:"band_id"`
	RehearsalID string    `json:"rehearsal_id"`
	UserID      string    `json:"user_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Notifier delivers events on a best-effort basis.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// eventPublisher sends events and records the outcome. Failures are logged
// and never returned to the caller.
type eventPublisher struct {
	notifier Notifier
	metrics  *Metrics
}

func (p eventPublisher) publish(ctx context.Context, logger zerolog.Logger, event Event) {
	if p.notifier == nil {
		return
	}
	err := p.notifier.Publish(ctx, event)
	p.metrics.eventPublished(event.Type, err)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("event_type", string(event.Type)).
			Str("rehearsal_id", event.RehearsalID).
			Msg("event publish failed")
	}
}
