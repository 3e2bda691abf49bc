package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/littlesprouts/admissions-api/internal/dto"
)

// Application lifecycle event names.
const (
	EventApplicationSubmitted     = "application.submitted"
	EventApplicationStatusChanged = "application.status_changed"
)

// ApplicationEvent is the payload published for every lifecycle event.
type ApplicationEvent struct {
	Event          string    `json:"event"`
	ApplicationID  uint      `json:"applicationId"`
	ChildFullName  string    `json:"childFullName"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	SubmittedBy    string    `json:"submittedBy,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// eventNotifier fans lifecycle events out to the Redis channel consumed by
// the admin dashboard and, when connected, the NATS subject consumed by
// downstream workers. Publishing is best effort: a broker outage must not
// fail an accepted application.
type eventNotifier struct {
	redis   *redis.Client
	nats    *nats.Conn
	channel string
	logger  zerolog.Logger
}

// NewEventNotifier constructs the lifecycle event publisher. Both clients
// are optional; a nil client skips that transport.
func NewEventNotifier(redisClient *redis.Client, natsConn *nats.Conn, channel string, logger zerolog.Logger) Notifier {
	if channel == "" {
		channel = "admissions"
	}
	return &eventNotifier{
		redis:   redisClient,
		nats:    natsConn,
		channel: channel,
		logger:  logger.With().Str("component", "event_notifier").Logger(),
	}
}

func (n *eventNotifier) ApplicationSubmitted(ctx context.Context, app dto.ApplicationResponse) {
	n.publish(ctx, ApplicationEvent{
		Event:         EventApplicationSubmitted,
		ApplicationID: app.ID,
		ChildFullName: app.ChildFullName,
		Status:        app.Status,
		SubmittedBy:   app.SubmittedBy,
		OccurredAt:    time.Now().UTC(),
	})
}

func (n *eventNotifier) ApplicationStatusChanged(ctx context.Context, app dto.ApplicationResponse, previousStatus string) {
	n.publish(ctx, ApplicationEvent{
		Event:          EventApplicationStatusChanged,
		ApplicationID:  app.ID,
		ChildFullName:  app.ChildFullName,
		Status:         app.Status,
		PreviousStatus: previousStatus,
		OccurredAt:     time.Now().UTC(),
	})
}

func (n *eventNotifier) publish(ctx context.Context, event ApplicationEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error().Err(err).Str("event", event.Event).Msg("failed to encode application event")
		return
	}

	if n.redis != nil {
		if err := n.redis.Publish(ctx, n.channel, payload).Err(); err != nil {
			n.logger.Warn().Err(err).Str("event", event.Event).Msg("failed to publish event to redis")
		}
	}

	if n.nats != nil {
		subject := n.channel + "." + event.Event
		if err := n.nats.Publish(subject, payload); err != nil {
			n.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event to nats")
		}
	}
}
