package store

import (
	"context"
	"sync"
)

// memMessage mirrors the fields of redis.Message that the feed reads.
type memMessage struct {
	Channel string
	Payload string
}

// memSubscription is one in-memory subscriber. Messages are dropped when
// its buffer is full so a slow reader never blocks a publisher.
type memSubscription struct {
	channels map[string]bool
	msgCh    chan memMessage
	closeCh  chan struct{}
	closed   bool
	mu       sync.RWMutex
}

func newMemSubscription(channels []string, buffer int) *memSubscription {
	set := make(map[string]bool, len(channels))
	for _, ch := range channels {
		set[ch] = true
	}
	return &memSubscription{
		channels: set,
		msgCh:    make(chan memMessage, buffer),
		closeCh:  make(chan struct{}),
	}
}

func (s *memSubscription) Channel() <-chan memMessage {
	return s.msgCh
}

func (s *memSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.closeCh)
		close(s.msgCh)
	}
	return nil
}

func (s *memSubscription) deliver(msg memMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || !s.channels[msg.Channel] {
		return
	}
	select {
	case s.msgCh <- msg:
	default:
	}
}

// PubSubHub fans messages out to in-memory subscribers when Redis is not
// reachable.
type PubSubHub struct {
	subscribers map[string][]*memSubscription // channel -> subscribers
	buffer      int
	mu          sync.RWMutex
}

func NewPubSubHub() *PubSubHub {
	return &PubSubHub{
		subscribers: make(map[string][]*memSubscription),
		buffer:      100,
	}
}

// Subscribe registers a subscriber that is removed when ctx is done or the
// subscription is closed.
func (h *PubSubHub) Subscribe(ctx context.Context, channels ...string) *memSubscription {
	sub := newMemSubscription(channels, h.buffer)

	h.mu.Lock()
	for _, channel := range channels {
		h.subscribers[channel] = append(h.subscribers[channel], sub)
	}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.closeCh:
		}
		h.remove(sub, channels)
	}()

	return sub
}

func (h *PubSubHub) remove(sub *memSubscription, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, channel := range channels {
		subs := h.subscribers[channel]
		for i, s := range subs {
			if s == sub {
				h.subscribers[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(h.subscribers[channel]) == 0 {
			delete(h.subscribers, channel)
		}
	}
}

// Publish delivers payload to every current subscriber of channel.
func (h *PubSubHub) Publish(channel, payload string) {
	h.mu.RLock()
	subs := make([]*memSubscription, len(h.subscribers[channel]))
	copy(subs, h.subscribers[channel])
	h.mu.RUnlock()

	msg := memMessage{Channel: channel, Payload: payload}
	for _, sub := range subs {
		sub.deliver(msg)
	}
}

// Subscribers reports how many subscribers are attached to channel.
func (h *PubSubHub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel])
}
