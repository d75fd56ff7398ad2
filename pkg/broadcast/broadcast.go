package broadcast

import (
	"sync"

	"github.com/brightwire/knxlogic/pkg/log"
	"github.com/brightwire/knxlogic/pkg/metrics"
	"github.com/brightwire/knxlogic/pkg/types"
)

// MinRingSize is the smallest ring capacity the broadcaster accepts.
const MinRingSize = 500

// DefaultSubscriberBuffer is the per-subscriber channel depth before a slow
// subscriber is disconnected.
const DefaultSubscriberBuffer = 64

// Subscriber is a channel that receives telegrams until it is disconnected.
type Subscriber chan *types.Telegram

// Broadcaster holds a bounded ring of recent telegrams and fans new ones out
// to subscribers, disconnecting any subscriber whose buffer is full.
type Broadcaster struct {
	mu          sync.RWMutex
	ring        []*types.Telegram
	ringHead    int
	ringLen     int
	ringCap     int
	subscribers map[Subscriber]bool
}

// New creates a Broadcaster with a ring of at least MinRingSize entries.
func New(ringCapacity int) *Broadcaster {
	if ringCapacity < MinRingSize {
		ringCapacity = MinRingSize
	}
	return &Broadcaster{
		ring:        make([]*types.Telegram, ringCapacity),
		ringCap:     ringCapacity,
		subscribers: make(map[Subscriber]bool),
	}
}

// Publish records the telegram in the ring and pushes it to every
// subscriber. A subscriber whose buffer is full is disconnected rather than
// having the telegram dropped silently.
func (b *Broadcaster) Publish(tg *types.Telegram) {
	b.mu.Lock()
	b.ring[b.ringHead] = tg
	b.ringHead = (b.ringHead + 1) % b.ringCap
	if b.ringLen < b.ringCap {
		b.ringLen++
	}

	toDisconnect := make([]Subscriber, 0)
	for sub := range b.subscribers {
		select {
		case sub <- tg:
		default:
			toDisconnect = append(toDisconnect, sub)
		}
	}
	for _, sub := range toDisconnect {
		delete(b.subscribers, sub)
		close(sub)
	}
	b.mu.Unlock()

	metrics.TelegramsTotal.WithLabelValues(string(tg.Origin)).Inc()
	for range toDisconnect {
		metrics.SubscribersDisconnectedTotal.Inc()
		log.WithComponent("broadcast").Warn().Str("address", tg.Address).Msg("subscriber disconnected: buffer full")
	}
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Broadcaster) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, DefaultSubscriberBuffer)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes a subscriber's channel.
func (b *Broadcaster) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Recent returns up to n most-recent telegrams, oldest first.
func (b *Broadcaster) Recent(n int) []*types.Telegram {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > b.ringLen {
		n = b.ringLen
	}
	out := make([]*types.Telegram, 0, n)
	start := (b.ringHead - n + b.ringCap) % b.ringCap
	for i := 0; i < n; i++ {
		out = append(out, b.ring[(start+i)%b.ringCap])
	}
	return out
}

// SubscriberCount returns the number of currently connected subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
