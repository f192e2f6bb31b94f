package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/pkg/logging"
)

const busChannel = "creatorpulse:progress"

// Bus broadcasts job events through Redis pub/sub so that a subscriber on
// one server process sees events for a job running on another. It decorates
// a local Hub: when Redis is unavailable the event is delivered locally and
// a warning is logged (warm fallback, not a hard failure).
type Bus struct {
	hub    *Hub
	client *redis.Client
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewBus creates a Redis-backed event bus around a local hub and starts the
// receive loop
func NewBus(hub *Hub, client *redis.Client) *Bus {
	ctx, cancel := context.WithCancel(context.Background())

	bus := &Bus{
		hub:    hub,
		client: client,
		logger: logging.GetLogger().With(zap.String("component", "progress-bus")),
		cancel: cancel,
	}

	go bus.listen(ctx)

	bus.logger.Info("Progress bus attached to Redis pub/sub")

	return bus
}

// Progress emits a progress event
func (b *Bus) Progress(jobID string, percent int, message string) {
	b.publish(Event{
		JobID:     jobID,
		Type:      EventProgress,
		Percent:   percent,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Complete emits the terminal complete event
func (b *Bus) Complete(jobID string, summary *models.JobSummary) {
	b.publish(Event{
		JobID:     jobID,
		Type:      EventComplete,
		Percent:   100,
		Summary:   summary,
		Timestamp: time.Now().UTC(),
	})
}

// Error emits the terminal error event
func (b *Bus) Error(jobID string, code, message string) {
	b.publish(Event{
		JobID:     jobID,
		Type:      EventError,
		ErrorCode: code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Close stops the receive loop
func (b *Bus) Close() {
	b.cancel()
}

// publish sends the event through Redis; local delivery happens when the
// receive loop gets it back. On publish failure the event is delivered to
// the local hub directly so in-process subscribers still see it.
func (b *Bus) publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("Failed to marshal progress event", zap.Error(err))
		b.hub.Dispatch(ev)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := b.client.Publish(ctx, busChannel, payload).Err(); err != nil {
		b.logger.Warn("Redis publish failed, delivering event locally only",
			zap.String("job_id", ev.JobID),
			zap.Error(err))
		b.hub.Dispatch(ev)
	}
}

// listen receives broadcast events and feeds them into the local hub
func (b *Bus) listen(ctx context.Context) {
	sub := b.client.Subscribe(ctx, busChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Error("Failed to unmarshal progress event", zap.Error(err))
				continue
			}
			b.hub.Dispatch(ev)
		}
	}
}
