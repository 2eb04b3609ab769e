// SPDX-License-Identifier: MIT

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vesselworks/spiritd/internal/log"
	"github.com/vesselworks/spiritd/internal/metrics"
)

// subBuffer is the per-subscriber channel depth. A subscriber that falls
// this far behind causes publishes to block until their context expires.
const subBuffer = 64

// MemoryBus is an in-process pub/sub. Delivery is at-most-once per
// subscriber: a publish that cannot be buffered before its context expires
// is dropped for that subscriber, and closed subscribers are skipped.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]*memSub
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]*memSub)}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	subs := append([]*memSub(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- msg:
		case <-sub.done:
			// Unsubscribed between the snapshot and the send.
		case <-ctx.Done():
			recordDrop(topic, ctx.Err())
			return fmt.Errorf("publish topic %q: %w", topic, ctx.Err())
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	sub := &memSub{
		b:     b,
		topic: topic,
		ch:    make(chan Message, subBuffer),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	return sub, nil
}

func (b *MemoryBus) remove(sub *memSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lst := b.subs[sub.topic]
	out := lst[:0]
	for _, s := range lst {
		if s != sub {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		delete(b.subs, sub.topic)
	} else {
		b.subs[sub.topic] = out
	}
}

// memSub signals its own shutdown on done instead of closing ch; a publisher
// holding a pre-unsubscribe snapshot may still attempt a send, and a closed
// message channel would turn that into a panic.
type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan Message
	done  chan struct{}
	once  sync.Once
}

func (s *memSub) C() <-chan Message {
	return s.ch
}

func (s *memSub) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.b.remove(s)
	})
	return nil
}

const dropLogEvery = 100

var dropCount atomic.Uint64

func recordDrop(topic string, err error) {
	reason := "context_done"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, context.Canceled):
		reason = "canceled"
	}
	metrics.IncBusDropReason(topic, reason)

	count := dropCount.Add(1)
	if count%dropLogEvery == 0 {
		logger := log.WithComponent("bus")
		logger.Warn().
			Str("topic", topic).
			Str("reason", reason).
			Uint64("dropped", count).
			Msg("publish dropped, subscriber not keeping up")
	}
}

var _ Bus = (*MemoryBus)(nil)
