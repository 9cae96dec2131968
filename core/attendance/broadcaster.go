package attendance

import (
	"sync"
	"sync/atomic"
	"time"
)

type EventType string

const (
	EventMarked         EventType = "attendance_marked"
	EventSessionEnded   EventType = "session_ended"
	EventSessionExpired EventType = "session_expired"
)

type Event struct {
	Type        EventType `json:"type"`
	SessionID   string    `json:"session_id"`
	StudentID   string    `json:"student_id,omitempty"`
	StudentName string    `json:"student_name,omitempty"`
	RollNumber  string    `json:"roll_number,omitempty"`
	MarkedAt    time.Time `json:"marked_at,omitempty"`
	// Overflow is set on the first event delivered after older events
	// had to be dropped for this subscriber.
	Overflow bool `json:"overflow,omitempty"`
}

// subscriberBuffer bounds the per-subscriber queue; on overflow the oldest
// event is dropped so a slow viewer never blocks publication.
const subscriberBuffer = 64

type (
	// Broadcaster fans marking and lifecycle events out to live viewers
	// grouped by session id. Delivery is best-effort: per-subscriber FIFO,
	// no cross-subscriber ordering guarantee.
	Broadcaster struct {
		mu   sync.RWMutex
		subs map[string]map[*Subscription]struct{} // sessionID -> subscribers
	}

	Subscription struct {
		sessionID string
		events    chan Event
		overflow  uint32 // atomic; pending overflow flag
		b         *Broadcaster
		once      sync.Once
	}
)

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a new viewer for the given session. The caller must
// Close the subscription when the viewer disconnects.
func (b *Broadcaster) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{
		sessionID: sessionID,
		events:    make(chan Event, subscriberBuffer),
		b:         b,
	}
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[*Subscription]struct{})
	}
	b.subs[sessionID][sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers `ev` to every subscriber of the session without ever
// blocking the caller.
func (b *Broadcaster) Publish(sessionID string, ev Event) {
	ev.SessionID = sessionID

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[sessionID] {
		sub.send(ev)
	}
}

// SubscriberCount reports the number of live viewers for a session.
func (b *Broadcaster) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) SessionID() string { return s.sessionID }

// Close releases the subscription; the events channel is closed and no
// further events are delivered. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.b.mu.Lock()
		if subs, ok := s.b.subs[s.sessionID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.b.subs, s.sessionID)
			}
		}
		// events are only sent while holding the read lock; closing under
		// the write lock cannot race with a send.
		close(s.events)
		s.b.mu.Unlock()
	})
}

func (s *Subscription) send(ev Event) {
	if atomic.CompareAndSwapUint32(&s.overflow, 1, 0) {
		ev.Overflow = true
	}
	select {
	case s.events <- ev:
		return
	default:
	}

	// buffer full: drop the oldest queued event and retry once
	select {
	case <-s.events:
	default:
	}
	ev.Overflow = true
	select {
	case s.events <- ev:
	default:
		// still full; flag the overflow on the next delivered event
		atomic.StoreUint32(&s.overflow, 1)
	}
}
