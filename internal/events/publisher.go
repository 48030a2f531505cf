// Package events fans dataset notifications out to subscribers.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/VedaVachan/COD-Mobile-insights/internal/domain"
)

// Publisher delivers an event to some set of subscribers
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) error { return nil }

// Multi publishes to every publisher and joins their errors
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *Recorder) Publish(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything published so far
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}
