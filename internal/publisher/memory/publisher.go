// Package memory records task notifications in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/venue-scraper/internal/venue"
)

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Events returns the task events published for a task, in publish order.
func (p *Publisher) Events(taskID string) []venue.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []venue.Event
	for _, msg := range p.messages {
		if evt, ok := msg.Payload.(venue.Event); ok && evt.TaskID == taskID {
			out = append(out, evt)
		}
	}
	return out
}
