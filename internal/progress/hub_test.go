package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

func TestHubDeliversToSubscriber(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("job-1")
	defer cancel()

	hub.Progress("job-1", 25, "fetching")

	select {
	case ev := <-ch:
		if ev.Type != EventProgress || ev.Percent != 25 || ev.Message != "fetching" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHubPercentMonotonicAndClamped(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("job-2")
	defer cancel()

	hub.Progress("job-2", 150, "over")
	hub.Progress("job-2", 40, "backwards")

	first := <-ch
	if first.Percent != 100 {
		t.Errorf("percent should clamp to 100, got %d", first.Percent)
	}

	second := <-ch
	if second.Percent != 100 {
		t.Errorf("percent should never decrease, got %d after 100", second.Percent)
	}
}

func TestHubTerminalClosesAndDedupes(t *testing.T) {
	hub := NewHub()
	ch, _ := hub.Subscribe("job-3")

	hub.Complete("job-3", &models.JobSummary{JobID: "job-3"})
	// A second terminal event must not be delivered
	hub.Error("job-3", "sync_failed", "should be ignored")

	ev, ok := <-ch
	if !ok {
		t.Fatal("expected complete event before close")
	}
	if ev.Type != EventComplete || ev.Summary == nil {
		t.Errorf("unexpected terminal event: %+v", ev)
	}

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after terminal event")
	}
}

func TestHubNoReplayForLateSubscriber(t *testing.T) {
	hub := NewHub()

	hub.Progress("job-4", 50, "halfway")

	ch, cancel := hub.Subscribe("job-4")
	defer cancel()

	select {
	case ev := <-ch:
		t.Errorf("late subscriber should not see earlier events, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubEmitNeverBlocks(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("job-5")
	defer cancel()

	// Fill the subscriber buffer well past capacity; Dispatch must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			hub.Progress("job-5", i%100, "spam")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch blocked on a slow subscriber")
	}
}

// A subscriber cancelling while its job is emitting must never race the
// dispatch loop or panic on a closed channel. Exercises the window where an
// SSE client disconnects mid-sync.
func TestHubCancelDuringDispatch(t *testing.T) {
	hub := NewHub()

	for iter := 0; iter < 20; iter++ {
		cancels := make([]func(), 0, 8)
		for i := 0; i < 8; i++ {
			// Never drained, so the buffer fills and Dispatch takes the
			// default branch alongside the cancels
			_, cancel := hub.Subscribe("job-churn")
			cancels = append(cancels, cancel)
		}

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < subscriberBuffer*2; i++ {
					hub.Progress("job-churn", i%100, "churn")
				}
			}()
		}
		for _, cancel := range cancels {
			wg.Add(1)
			go func(cancel func()) {
				defer wg.Done()
				cancel()
			}(cancel)
		}
		wg.Wait()
	}
}
