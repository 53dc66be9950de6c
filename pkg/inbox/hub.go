package inbox

import (
	"context"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/cache"
)

// Hub fans new notifications out to live subscribers, one feed per user.
// Slow subscribers are dropped rather than blocking delivery. The number of
// user feeds is bounded; the least recently used feed is closed when the
// bound is reached.
type Hub struct {
	feeds  *cache.LRUCache[string, *feed]
	buffer int
}

// NewHub creates a hub. bufferSize is the per-subscriber channel buffer
// (minimum 1); maxFeeds bounds the number of users with live feeds.
func NewHub(bufferSize, maxFeeds int) *Hub {
	if maxFeeds <= 0 {
		maxFeeds = 10000
	}
	h := &Hub{
		feeds:  cache.NewLRUCache[string, *feed](maxFeeds),
		buffer: max(bufferSize, 1),
	}
	h.feeds.SetEvictCallback(func(_ string, f *feed) {
		f.close()
	})
	return h
}

// Subscribe opens a live subscription to userID's notifications. It is
// closed when ctx is done, when Close is called, or when the subscriber
// falls behind.
func (h *Hub) Subscribe(ctx context.Context, userID string) *Subscription {
	f := h.feeds.GetOrCreate(userID, newFeed)
	sub := f.add(h.buffer)

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub
}

// Publish sends n to every live subscriber of n.UserID and returns how many
// received it.
func (h *Hub) Publish(n Notification) int {
	f, ok := h.feeds.Get(n.UserID)
	if !ok {
		return 0
	}
	return f.publish(n)
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID string) int {
	f, ok := h.feeds.Peek(userID)
	if !ok {
		return 0
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Close closes every feed and subscription.
func (h *Hub) Close() error {
	h.feeds.Clear()
	return nil
}

type feed struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

func newFeed() *feed {
	return &feed{subs: make(map[*Subscription]struct{})}
}

func (f *feed) add(buffer int) *Subscription {
	sub := &Subscription{
		ch:   make(chan Notification, buffer),
		done: make(chan struct{}),
		feed: f,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		sub.shut()
		return sub
	}
	f.subs[sub] = struct{}{}
	return sub
}

func (f *feed) publish(n Notification) int {
	var slow []*Subscription
	sent := 0

	f.mu.RLock()
	for sub := range f.subs {
		select {
		case sub.ch <- n:
			sent++
		default:
			slow = append(slow, sub)
		}
	}
	f.mu.RUnlock()

	for _, sub := range slow {
		sub.Close()
	}
	return sent
}

func (f *feed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		sub.shut()
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for sub := range f.subs {
		sub.shut()
	}
	clear(f.subs)
}

// Subscription receives live notifications for one user.
type Subscription struct {
	ch   chan Notification
	done chan struct{}
	once sync.Once
	feed *feed
}

// C returns the receive channel. It is closed with the subscription.
func (s *Subscription) C() <-chan Notification {
	return s.ch
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.feed.remove(s)
}

// shut must be called with the feed lock held.
func (s *Subscription) shut() {
	s.once.Do(func() {
		close(s.ch)
		close(s.done)
	})
}
