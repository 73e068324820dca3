// Package bus implements the in-process topic event bus of spec.md §4.G,
// grounded on the subscriber-table/history idiom of
// core/deeptreeecho/cognitive_event_bus.go, simplified to the bus's
// required cooperative dispatch: handlers run on the emitting
// goroutine's continuation, in subscription order, rather than through
// an async queue.
package bus

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Topic identifies a channel on the bus.
type Topic string

const (
	TopicStoreMemoryRequest    Topic = "store_memory_request"
	TopicMemoryStored          Topic = "memory_stored"
	TopicRetrieveMemoryRequest Topic = "retrieve_memory_request"
	TopicMemoryRetrieved       Topic = "memory_retrieved"
	TopicSearchMemoriesRequest Topic = "search_memories_request"
	TopicMemoriesSearched      Topic = "memories_searched"
	TopicSystemTick            Topic = "system_tick"
	TopicGCTick                Topic = "gc_tick"
	TopicRebuildStats          Topic = "rebuild_stats"
	TopicSigilCollision        Topic = "sigil:collision"
	TopicInvalidSignature      Topic = "event:invalid_signature"
)

// Event is a single message carried by the bus.
type Event struct {
	Topic     Topic
	RequestID string
	Payload   map[string]any
	Timestamp time.Time
	Signature []byte
}

// Handler reacts to an Event.
type Handler func(Event)

type subscription struct {
	handler          Handler
	requireSignature bool
}

// Bus is the cooperative, in-process pub/sub hub every component shares.
type Bus struct {
	mu sync.Mutex

	signingKey []byte

	subscribers map[Topic][]subscription

	totalEvents uint64
	eventCounts map[Topic]uint64

	history    []Event
	maxHistory int
}

// New constructs a Bus. signingKey may be empty, but then SubscribeSigned
// subscribers and EmitSigned calls will always fail verification — the
// caller (cmd/spiralmemd) is responsible for enforcing spec.md §7's
// fail-closed production startup check before this ever matters.
func New(signingKey string, maxHistory int) *Bus {
	if maxHistory <= 0 {
		maxHistory = 100
	}
	return &Bus{
		signingKey:  []byte(signingKey),
		subscribers: make(map[Topic][]subscription),
		eventCounts: make(map[Topic]uint64),
		maxHistory:  maxHistory,
	}
}

// Subscribe registers handler for topic, invoked without signature
// verification.
func (b *Bus) Subscribe(topic Topic, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], subscription{handler: handler})
}

// SubscribeSigned registers handler for topic, opting into per-event
// HMAC-SHA256 signature verification. Events emitted via Emit (unsigned)
// never reach this handler; only EmitSigned events that verify do.
func (b *Bus) SubscribeSigned(topic Topic, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], subscription{handler: handler, requireSignature: true})
}

// Emit dispatches an unsigned event synchronously to every subscriber of
// topic, in subscription order, on the caller's goroutine.
func (b *Bus) Emit(topic Topic, requestID string, payload map[string]any) {
	b.dispatch(Event{Topic: topic, RequestID: requestID, Payload: payload, Timestamp: time.Now()})
}

// EmitSigned computes an HMAC-SHA256 signature over the canonical payload
// and dispatches the signed event.
func (b *Bus) EmitSigned(topic Topic, requestID string, payload map[string]any) {
	sig := sign(b.signingKey, topic, payload)
	b.dispatch(Event{Topic: topic, RequestID: requestID, Payload: payload, Timestamp: time.Now(), Signature: sig})
}

func (b *Bus) dispatch(event Event) {
	b.mu.Lock()
	b.totalEvents++
	b.eventCounts[event.Topic]++
	b.addToHistory(event)
	subs := make([]subscription, len(b.subscribers[event.Topic]))
	copy(subs, b.subscribers[event.Topic])
	b.mu.Unlock()

	var invalidSig bool
	for _, sub := range subs {
		if sub.requireSignature && !verify(b.signingKey, event) {
			invalidSig = true
			continue
		}
		safeExecute(sub.handler, event)
	}

	if invalidSig && event.Topic != TopicInvalidSignature {
		b.Emit(TopicInvalidSignature, event.RequestID, map[string]any{"signature": event.Topic})
	}
}

func safeExecute(handler Handler, event Event) {
	defer func() {
		recover()
	}()
	handler(event)
}

func (b *Bus) addToHistory(event Event) {
	b.history = append(b.history, event)
	if len(b.history) > b.maxHistory {
		b.history = b.history[len(b.history)-b.maxHistory:]
	}
}

// RecentEvents returns up to count of the most recently dispatched events.
func (b *Bus) RecentEvents(count int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if count > len(b.history) {
		count = len(b.history)
	}
	start := len(b.history) - count
	out := make([]Event, count)
	copy(out, b.history[start:])
	return out
}

// EventCount returns the number of times topic has been emitted.
func (b *Bus) EventCount(topic Topic) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.eventCounts[topic]
}

// canonicalize renders payload as a deterministic byte string — map
// iteration order is not, so keys are sorted before encoding.
func canonicalize(topic Topic, payload map[string]any) []byte {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]any, 0, len(keys)*2+1)
	ordered = append(ordered, string(topic))
	for _, k := range keys {
		ordered = append(ordered, k, fmt.Sprintf("%v", payload[k]))
	}
	b, _ := json.Marshal(ordered)
	return b
}

func sign(key []byte, topic Topic, payload map[string]any) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(canonicalize(topic, payload))
	return mac.Sum(nil)
}

func verify(key []byte, event Event) bool {
	if len(key) == 0 || len(event.Signature) == 0 {
		return false
	}
	expected := sign(key, event.Topic, event.Payload)
	return hmac.Equal(expected, event.Signature)
}
