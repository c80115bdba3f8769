// Package memory provides an in-process event publisher for development and
// testing.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/leadforge/leadforge/internal/lead"
)

// Publisher records published events in order.
type Publisher struct {
	mu     sync.Mutex
	events []lead.Event
}

// NewPublisher constructs an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish appends the event and returns a synthetic message ID.
func (p *Publisher) Publish(_ context.Context, event lead.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return fmt.Sprintf("mem-%d", len(p.events)), nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []lead.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]lead.Event(nil), p.events...)
}
