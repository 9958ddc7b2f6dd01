// Package events delivers externally pushed order status updates.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/kicksvault/storefront/internal/domain"
)

// ErrClosed is returned when publishing to a closed source
var ErrClosed = errors.New("event source closed")

// Source is a stream of pushed status events. The channel is closed when the
// source shuts down.
type Source interface {
	Events() <-chan domain.StatusEvent
}

// ChannelSource is an in-process Source fed by Publish, used by the status
// webhook and by tests
type ChannelSource struct {
	mu     sync.RWMutex
	ch     chan domain.StatusEvent
	closed bool
}

// NewChannelSource creates a source buffering up to size events
func NewChannelSource(size int) *ChannelSource {
	return &ChannelSource{ch: make(chan domain.StatusEvent, size)}
}

func (s *ChannelSource) Events() <-chan domain.StatusEvent {
	return s.ch
}

// Publish queues an event, blocking while the buffer is full
func (s *ChannelSource) Publish(ctx context.Context, event domain.StatusEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the source; pending events remain readable
func (s *ChannelSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
