package notify

import (
	"context"
	"errors"

	"github.com/cristianortiz/quickbid/internal/shared/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// WildcardTopic subscribers receive the events published on every topic.
const WildcardTopic = "*"

const (
	// pending broadcasts kept while Run is busy, further ones are dropped
	broadcastBuffer = 256
	// events buffered per subscriber before it is considered too slow and dropped
	defaultSubscriberBuffer = 16
)

// ErrHubClosed is returned when subscribing to a hub whose Run loop has exited.
var ErrHubClosed = errors.New("notify: hub is closed")

// Hub keeps the subscribers registry grouped by topic and fans published events out to them.
// All the registry mutations happen in the Run goroutine.
type Hub[T any] struct {
	// outer map keys are topics, inner map values are ignored
	subscribers map[string]map[*Subscriber[T]]bool
	broadcast   chan *Message[T]
	register    chan *Subscriber[T]
	unregister  chan *Subscriber[T]
	done        chan struct{}
	bufferSize  int
}

// Subscriber is a single listener on a topic. C is closed when the subscriber is
// removed from the hub (unsubscribed, too slow, or hub shut down).
type Subscriber[T any] struct {
	ID    string
	Topic string
	C     <-chan T
	send  chan T
}

// Message is a published event addressed to a topic.
type Message[T any] struct {
	Topic string
	Event T
}

// NewHub creates a hub. Run must be started before Subscribe is called.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{
		subscribers: make(map[string]map[*Subscriber[T]]bool),
		broadcast:   make(chan *Message[T], broadcastBuffer),
		register:    make(chan *Subscriber[T]),
		unregister:  make(chan *Subscriber[T]),
		done:        make(chan struct{}),
		bufferSize:  defaultSubscriberBuffer,
	}
}

// Run starts the hub listening in their channels until ctx is cancelled.
func (h *Hub[T]) Run(ctx context.Context) {
	log.Info("Notify hub started")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for topic, subs := range h.subscribers {
				for sub := range subs {
					close(sub.send)
				}
				delete(h.subscribers, topic)
			}
			log.Info("Notify hub shutting down due to context cancellation")
			return

		case sub := <-h.register:
			if _, ok := h.subscribers[sub.Topic]; !ok {
				h.subscribers[sub.Topic] = make(map[*Subscriber[T]]bool)
			}
			h.subscribers[sub.Topic][sub] = true
			log.Debug("Subscriber registered",
				zap.String("subscriberID", sub.ID),
				zap.String("topic", sub.Topic),
				zap.Int("total_subscribers", h.count()),
			)

		case sub := <-h.unregister:
			h.remove(sub)

		case msg := <-h.broadcast:
			h.deliver(msg.Topic, msg)
			if msg.Topic != WildcardTopic {
				h.deliver(WildcardTopic, msg)
			}
		}
	}
}

// Subscribe registers a new subscriber for topic and waits until the hub has accepted it,
// so events published after Subscribe returns are delivered to it.
func (h *Hub[T]) Subscribe(ctx context.Context, topic string) (*Subscriber[T], error) {
	send := make(chan T, h.bufferSize)
	sub := &Subscriber[T]{ID: uuid.NewString(), Topic: topic, C: send, send: send}
	select {
	case h.register <- sub:
		return sub, nil
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unsubscribe removes sub from the hub and closes its channel.
func (h *Hub[T]) Unsubscribe(sub *Subscriber[T]) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Publish queues event for the subscribers of topic and of the wildcard topic.
// It never blocks: when the queue is full the event is dropped and false is returned.
func (h *Hub[T]) Publish(topic string, event T) bool {
	select {
	case h.broadcast <- &Message[T]{Topic: topic, Event: event}:
		log.Debug("Event queued for broadcast", zap.String("topic", topic))
		return true
	default:
		log.Error("Broadcast channel is full, event dropped", zap.String("topic", topic))
		return false
	}
}

func (h *Hub[T]) deliver(topic string, msg *Message[T]) {
	subs, ok := h.subscribers[topic]
	if !ok {
		return
	}
	for sub := range subs {
		select {
		case sub.send <- msg.Event:
		default:
			// subscriber is not draining its channel, drop it
			log.Warn("Failed to send event to subscriber, unregistering",
				zap.String("subscriberID", sub.ID),
				zap.String("topic", sub.Topic),
			)
			h.remove(sub)
		}
	}
}

func (h *Hub[T]) remove(sub *Subscriber[T]) {
	subs, ok := h.subscribers[sub.Topic]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.send)
	if len(subs) == 0 {
		delete(h.subscribers, sub.Topic)
	}
	log.Debug("Subscriber unregistered",
		zap.String("subscriberID", sub.ID),
		zap.String("topic", sub.Topic),
		zap.Int("total_subscribers", h.count()),
	)
}

func (h *Hub[T]) count() int {
	count := 0
	for _, subs := range h.subscribers {
		count += len(subs)
	}
	return count
}
