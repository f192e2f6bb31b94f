package progress

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/pkg/logging"
)

const subscriberBuffer = 16

// Hub delivers job events to in-process subscribers. Percent values are
// clamped to [0,100] and kept monotonically non-decreasing per job.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string][]chan Event
	lastPercent map[string]int
	done        map[string]bool
	logger      *zap.Logger
}

// NewHub creates a new in-process event hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string][]chan Event),
		lastPercent: make(map[string]int),
		done:        make(map[string]bool),
		logger:      logging.GetLogger().With(zap.String("component", "progress-hub")),
	}
}

// Subscribe registers a subscriber for one job's events. The returned cancel
// function must be called when the subscriber goes away; the channel is
// closed after a terminal event.
func (h *Hub) Subscribe(jobID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[jobID] = append(h.subscribers[jobID], ch)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[jobID]
		for i, sub := range subs {
			if sub == ch {
				h.subscribers[jobID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}

	return ch, cancel
}

// Progress emits a progress event
func (h *Hub) Progress(jobID string, percent int, message string) {
	h.Dispatch(Event{
		JobID:     jobID,
		Type:      EventProgress,
		Percent:   percent,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Complete emits the terminal complete event
func (h *Hub) Complete(jobID string, summary *models.JobSummary) {
	h.Dispatch(Event{
		JobID:     jobID,
		Type:      EventComplete,
		Percent:   100,
		Summary:   summary,
		Timestamp: time.Now().UTC(),
	})
}

// Error emits the terminal error event
func (h *Hub) Error(jobID string, code, message string) {
	h.Dispatch(Event{
		JobID:     jobID,
		Type:      EventError,
		ErrorCode: code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Dispatch delivers an event to current subscribers without blocking. Slow
// subscribers lose events rather than stalling the pipeline.
func (h *Hub) Dispatch(ev Event) {
	h.mu.Lock()

	if h.done[ev.JobID] {
		h.mu.Unlock()
		return
	}

	// Clamp and enforce monotonic percent per job
	if ev.Percent < 0 {
		ev.Percent = 0
	}
	if ev.Percent > 100 {
		ev.Percent = 100
	}
	if last := h.lastPercent[ev.JobID]; ev.Percent < last {
		ev.Percent = last
	}
	h.lastPercent[ev.JobID] = ev.Percent

	subs := h.subscribers[ev.JobID]
	terminal := ev.Terminal()
	if terminal {
		h.done[ev.JobID] = true
		delete(h.subscribers, ev.JobID)
		delete(h.lastPercent, ev.JobID)
	}

	// Deliver while still holding the lock. The sends cannot block, and a
	// concurrent cancel must not close a channel mid-send.
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			h.logger.Debug("Dropping event for slow subscriber",
				zap.String("job_id", ev.JobID),
				zap.String("type", string(ev.Type)))
		}
		if terminal {
			close(ch)
		}
	}
	h.mu.Unlock()

	if terminal {
		// Forget the job after a grace period so late subscribers of a
		// reused job id are not silently muted forever
		go func(jobID string) {
			time.Sleep(time.Minute)
			h.mu.Lock()
			delete(h.done, jobID)
			h.mu.Unlock()
		}(ev.JobID)
	}
}
