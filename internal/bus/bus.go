// Package bus implements the message fabric of spec.md §4.1: a
// process-wide, topic-keyed publish/subscribe bus with per-publisher FIFO
// ordering, plus a request/response layer over the same topic namespace.
//
// It generalises the teacher's (blinklabs-io/shai) per-connection pub/sub
// in internal/node/chainsync.go — a bounded subscriber channel per
// listener, published to in registration order — into a reusable,
// topic-addressed fabric.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/input-output-hk/acropolis/internal/logging"
)

// DefaultQueueSize is the default bound on a subscriber's inbox. A full
// inbox makes the publisher block until the subscriber drains it — per
// spec.md §4.1's backpressure policy.
const DefaultQueueSize = 64

// FatalFunc is invoked when a subscriber violates the bus's ordering
// contract (observed out of sequence). Consensus correctness depends on
// exact ordering, so this is wired to process-fatal behaviour by the
// caller, never decided inside the bus itself.
type FatalFunc func(topic string, err error)

// Bus is the process-wide message fabric. The zero value is not usable;
// construct with New.
type Bus struct {
	mu          sync.Mutex
	topics      map[string]*topic
	topicOrder  []string // registration order, for reverse-order shutdown
	handlers    map[string]RequestHandler
	fatal       FatalFunc
	shutdown    bool
}

// RequestHandler answers a single request/response topic.
type RequestHandler func(ctx context.Context, payload any) (any, error)

type topic struct {
	name string
	subs []*subscription
}

type subscription struct {
	id    int
	inbox chan any
	seq   uint64 // last delivered sequence number, for ordering diagnostics
}

// New constructs an empty Bus. fatal is invoked on ordering violations; a
// nil fatal is replaced with a no-op (tests that don't care about fatal
// escalation can pass nil).
func New(fatal FatalFunc) *Bus {
	if fatal == nil {
		fatal = func(string, error) {}
	}
	return &Bus{
		topics:   make(map[string]*topic),
		handlers: make(map[string]RequestHandler),
		fatal:    fatal,
	}
}

// Subscribe registers a new subscriber on topic, returning a receive-only
// channel of published values and an unsubscribe function. Delivery to
// this channel is strictly ordered relative to every Publish call on this
// topic (spec.md §4.1 "per publisher per topic: strict FIFO").
func (b *Bus) Subscribe(topicName string) (<-chan any, func()) {
	return b.SubscribeSize(topicName, DefaultQueueSize)
}

// SubscribeSize is Subscribe with an explicit inbox bound.
func (b *Bus) SubscribeSize(topicName string, queueSize int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[topicName]
	if !ok {
		t = &topic{name: topicName}
		b.topics[topicName] = t
		b.topicOrder = append(b.topicOrder, topicName)
	}
	sub := &subscription{
		id:    len(t.subs),
		inbox: make(chan any, queueSize),
	}
	t.subs = append(t.subs, sub)
	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range t.subs {
			if s == sub {
				t.subs = append(t.subs[:i], t.subs[i+1:]...)
				close(sub.inbox)
				break
			}
		}
	}
	return sub.inbox, unsubscribe
}

// Publish delivers msg to every subscriber of topicName, in subscription
// order. It blocks on a full subscriber inbox (spec.md §4.1 backpressure);
// use PublishCtx to bound that wait.
func (b *Bus) Publish(topicName string, msg any) {
	_ = b.PublishCtx(context.Background(), topicName, msg)
}

// PublishCtx is Publish with cancellation: if ctx is done before a slow
// subscriber drains, the remaining subscribers still receive the message
// (delivery order must not skip subscribers) but the call returns ctx's
// error so the caller can treat the subscriber as failing.
func (b *Bus) PublishCtx(ctx context.Context, topicName string, msg any) error {
	b.mu.Lock()
	t, ok := b.topics[topicName]
	var subs []*subscription
	if ok {
		subs = append(subs, t.subs...)
	}
	b.mu.Unlock()
	if !ok {
		return nil
	}
	var firstErr error
	for _, sub := range subs {
		select {
		case sub.inbox <- msg:
			sub.seq++
		case <-ctx.Done():
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			// Still attempt delivery without a deadline so ordering is
			// preserved for subscribers that are merely slow, not dead.
			sub.inbox <- msg
			sub.seq++
		}
	}
	return firstErr
}

// RegisterHandler wires a single handler to a request/response topic. Only
// one handler may be registered per topic, per spec.md §4.1.
func (b *Bus) RegisterHandler(topicName string, handler RequestHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[topicName]; exists {
		return fmt.Errorf("bus: handler already registered for topic %q", topicName)
	}
	b.handlers[topicName] = handler
	return nil
}

// Request routes payload to topicName's registered handler and waits for
// its response, per spec.md §4.1's request(topic, payload) -> future<response>.
func (b *Bus) Request(ctx context.Context, topicName string, payload any) (any, error) {
	b.mu.Lock()
	handler, ok := b.handlers[topicName]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("bus: no handler registered for topic %q", topicName)
	}
	requestID := uuid.NewString()
	logger := logging.GetLogger().With("request_id", requestID, "topic", topicName)
	resp, err := handler(ctx, payload)
	if err != nil {
		logger.Debug("request handler returned error", "error", err)
	}
	return resp, err
}

// ReportOrderingViolation lets a subscriber tell the bus it observed
// messages out of sequence. This is fatal to the process per spec.md
// §4.1: "a module that violates ordering contracts ... is fatal".
func (b *Bus) ReportOrderingViolation(topicName string, err error) {
	b.fatal(topicName, err)
}

// Shutdown drains every topic in reverse registration order, per spec.md
// §4.1. It closes subscriber inboxes so range loops over them terminate;
// it does not wait for subscriber goroutines to finish processing the
// drained backlog — callers that need that synchronise separately (each
// module flushes its own on-disk state on the way down).
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shutdown {
		return nil
	}
	b.shutdown = true
	for i := len(b.topicOrder) - 1; i >= 0; i-- {
		name := b.topicOrder[i]
		t := b.topics[name]
		for _, sub := range t.subs {
			close(sub.inbox)
		}
		t.subs = nil
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}
