// Package events fans store changes out to interested consumers.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Topic groups events by the store that emits them.
type Topic string

const (
	TopicSession Topic = "session"
	TopicCards   Topic = "cards"
	TopicTags    Topic = "tags"
	TopicNotice  Topic = "notice"
)

const defaultBufferSize = 16

// Event describes a state change.
type Event struct {
	Topic     Topic
	Action    string
	IDs       []int64
	Message   string
	Timestamp time.Time
}

// Publisher accepts events. A nil Publisher is never passed around; callers use Discard.
type Publisher interface {
	Publish(Event)
}

type discard struct{}

func (discard) Publish(Event) {}

// Discard drops every event.
var Discard Publisher = discard{}

// Dispatcher delivers events to per-topic subscribers without blocking publishers.
// A subscriber's stream is closed once it unsubscribes, so consumers may range over it.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[Topic]map[int64]*subscriber
	nextID      atomic.Int64
	bufferSize  int
	clock       func() time.Time
}

type subscriber struct {
	id     int64
	stream chan Event
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[Topic]map[int64]*subscriber),
		bufferSize:  defaultBufferSize,
		clock:       time.Now,
	}
}

// Subscribe registers for events on topic until ctx is done or cleanup is called.
// Either one closes the returned stream after any buffered events.
func (d *Dispatcher) Subscribe(ctx context.Context, topic Topic) (<-chan Event, func()) {
	if topic == "" {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     d.nextID.Add(1),
		stream: make(chan Event, d.bufferSize),
	}
	d.register(topic, sub)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregister(topic, sub.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish delivers event to current subscribers, dropping it for any whose buffer is full.
func (d *Dispatcher) Publish(event Event) {
	if event.Topic == "" || event.Action == "" {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.clock().UTC()
	}
	// The read lock keeps unregister from closing a stream mid-send.
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, sub := range d.subscribers[event.Topic] {
		select {
		case sub.stream <- event:
		default:
		}
	}
}

func (d *Dispatcher) register(topic Topic, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[topic]; !ok {
		d.subscribers[topic] = make(map[int64]*subscriber)
	}
	d.subscribers[topic][sub.id] = sub
}

func (d *Dispatcher) unregister(topic Topic, subscriberID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subscribers := d.subscribers[topic]
	sub, ok := subscribers[subscriberID]
	if !ok {
		return
	}
	delete(subscribers, subscriberID)
	if len(subscribers) == 0 {
		delete(d.subscribers, topic)
	}
	close(sub.stream)
}
