package appointments

import (
	"sync"
	"sync/atomic"
	"time"
)

// Change is a raw row change on the appointments table, as reported by
// whatever relays the booking database's changes into this process.
type Change struct {
	Op            ChangeOp
	AppointmentID string
	OldStatus     string // empty for inserts
	NewStatus     string
	At            time.Time
}

type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
)

// Feed is an in-memory fanout of row changes.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Slow subscribers may drop changes (bounded backpressure); the
//     poll detector is the catch-up path.
type Feed interface {
	Publish(c Change)
	Subscribe(buffer int) (ch <-chan Change, unsubscribe func())
}

// NewFeed returns a simple in-memory feed. It owns no goroutines.
func NewFeed() Feed {
	return &memFeed{subs: map[uint64]chan Change{}}
}

type memFeed struct {
	mu   sync.RWMutex
	subs map[uint64]chan Change
	seq  atomic.Uint64
}

func (f *memFeed) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while sending.
	f.mu.RLock()
	chs := make([]chan Change, 0, len(f.subs))
	for _, ch := range f.subs {
		chs = append(chs, ch)
	}
	f.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery. If a subscriber unsubscribes
		// concurrently and the channel closes, recover from the send
		// panic.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- c:
			default:
			}
		}()
	}
}

func (f *memFeed) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Change, buffer)
	id := f.seq.Add(1)

	f.mu.Lock()
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			// Closing is safe because Publish recovers from send panics.
			close(ch)
		})
	}
	return ch, unsub
}
