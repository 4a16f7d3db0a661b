// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/ManuGH/gazegate/internal/metrics"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("bus: closed")

const defaultBuffer = 64

// MemoryBus is an in-memory pub/sub. Delivery is best-effort: a full
// subscriber drops the message instead of blocking the publisher.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySub
	buffer int
	closed bool
}

// NewMemoryBus creates a bus whose subscribers buffer up to buffer messages.
func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &MemoryBus{subs: make(map[string][]*memorySub), buffer: buffer}
}

type memorySub struct {
	bus   *MemoryBus
	topic string
	ch    chan Notification
	done  chan struct{}
	once  sync.Once
}

func (s *memorySub) C() <-chan Notification { return s.ch }

func (s *memorySub) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.bus.remove(s)
	})
	return nil
}

func (b *MemoryBus) Publish(_ context.Context, topic string, n Notification) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	metrics.IncBusPublished(Family(topic), string(n.Level))
	for _, s := range b.subs[topic] {
		select {
		case s.ch <- n:
		default:
			metrics.IncBusDrop(Family(topic))
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	s := &memorySub{bus: b, topic: topic, ch: make(chan Notification, b.buffer), done: make(chan struct{})}
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = s.Close()
			case <-s.done:
			}
		}()
	}
	return s, nil
}

func (b *MemoryBus) remove(s *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lst := b.subs[s.topic]
	out := lst[:0]
	found := false
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		} else {
			found = true
		}
	}
	if len(out) == 0 {
		delete(b.subs, s.topic)
	} else {
		b.subs[s.topic] = out
	}
	if found {
		close(s.ch)
	}
}

// Close closes every subscription. Publishing afterwards fails.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*memorySub
	for _, lst := range b.subs {
		all = append(all, lst...)
	}
	b.mu.Unlock()
	for _, s := range all {
		_ = s.Close()
	}
}
