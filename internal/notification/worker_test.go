package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nidhi/pkg/domain"
)

func TestWorkerPublishesQueuedEvents(t *testing.T) {
	inbox := make(chan Event, 4)
	pub := &capturePublisher{}
	w := NewWorker(inbox, pub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	inbox <- Event{ID: domain.NewEventID(), SourceID: "rel-1", Kind: KindFundRelease}
	inbox <- Event{ID: domain.NewEventID(), SourceID: "rel-2", Kind: KindFundRelease}

	require.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "rel-1", pub.published()[0].SourceID)
}

func TestWorkerRetriesThenGivesUp(t *testing.T) {
	inbox := make(chan Event, 1)
	pub := &capturePublisher{failures: 2}
	w := NewWorker(inbox, pub, nil)
	w.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	inbox <- Event{ID: domain.NewEventID(), SourceID: "rel-3", Kind: KindFundRelease}

	// Two failures, then the third attempt lands.
	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, pub.attemptCount())
}

func TestWorkerStopsOnCancel(t *testing.T) {
	inbox := make(chan Event)
	w := NewWorker(inbox, NoopPublisher{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

type capturePublisher struct {
	mu       sync.Mutex
	failures int
	attempts int
	events   []Event
}

func (p *capturePublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *capturePublisher) attemptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

func (p *capturePublisher) published() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}
