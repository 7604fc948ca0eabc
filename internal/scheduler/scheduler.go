// Package scheduler keeps one timer per task and timestamp kind. It watches
// store snapshots, re-arms a timer when the timestamp changes and cancels it
// when the task or timestamp goes away. Firing hands the key to a Handler,
// which acts through the store like any other caller.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"daybucket/internal/store"
	"daybucket/internal/utils"
)

// Kind names the task timestamp a timer follows.
type Kind int

const (
	// KindUnlock follows availableAt.
	KindUnlock Kind = iota
	// KindReminder follows reminderAt.
	KindReminder
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUnlock:
		return "unlock"
	case KindReminder:
		return "reminder"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Key identifies a timer.
type Key struct {
	TaskID string
	Kind   Kind
}

// Handler runs when a timer fires. at is the timestamp the timer was armed for.
type Handler func(key Key, at time.Time)

type entry struct {
	at    time.Time
	timer *time.Timer
	gen   uint64
}

// Scheduler owns the per-task timers.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[Key]*entry
	handler Handler
	now     func() time.Time
	gen     uint64
	stopped bool
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source used to compute timer delays.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New returns a scheduler that calls handler when a timer fires.
func New(handler Handler, opts ...Option) *Scheduler {
	s := &Scheduler{
		timers:  make(map[Key]*entry),
		handler: handler,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach syncs with the current state of st and follows its snapshots.
// The returned function detaches.
func (s *Scheduler) Attach(st *store.Store) func() {
	unsubscribe := st.Subscribe(s.Sync)
	s.Sync(st.State())
	return unsubscribe
}

// Sync reconciles the timers with a state snapshot.
func (s *Scheduler) Sync(st store.State) {
	want := make(map[Key]time.Time)
	for i := range st.Items {
		t := &st.Items[i]
		if t.AvailableAt != nil && t.DependsOn != nil {
			want[Key{TaskID: t.ID, Kind: KindUnlock}] = *t.AvailableAt
		}
		if t.ReminderAt != nil {
			want[Key{TaskID: t.ID, Kind: KindReminder}] = *t.ReminderAt
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	for key, e := range s.timers {
		at, ok := want[key]
		if !ok || !at.Equal(e.at) {
			e.timer.Stop()
			delete(s.timers, key)
			utils.Debugf("Cancelled %s timer for task %s", key.Kind, key.TaskID)
		}
	}
	for key, at := range want {
		if _, ok := s.timers[key]; ok {
			continue
		}
		s.arm(key, at)
	}
}

// arm starts a timer. A past-due timestamp fires immediately. Caller holds mu.
func (s *Scheduler) arm(key Key, at time.Time) {
	s.gen++
	gen := s.gen
	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	e := &entry{at: at, gen: gen}
	e.timer = time.AfterFunc(delay, func() { s.fire(key, gen) })
	s.timers[key] = e
	utils.Debugf("Armed %s timer for task %s in %v", key.Kind, key.TaskID, delay)
}

func (s *Scheduler) fire(key Key, gen uint64) {
	s.mu.Lock()
	e, ok := s.timers[key]
	if !ok || e.gen != gen || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	if s.handler != nil {
		s.handler(key, e.at)
	}
}

// Pending returns the armed timers ordered by due time.
func (s *Scheduler) Pending() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]Key, 0, len(s.timers))
	for k := range s.timers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := s.timers[keys[i]], s.timers[keys[j]]
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		if keys[i].TaskID != keys[j].TaskID {
			return keys[i].TaskID < keys[j].TaskID
		}
		return keys[i].Kind < keys[j].Kind
	})
	return keys
}

// Next returns the earliest armed timestamp.
func (s *Scheduler) Next() (Key, time.Time, bool) {
	pending := s.Pending()
	if len(pending) == 0 {
		return Key{}, time.Time{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.timers[pending[0]]
	if !ok {
		return Key{}, time.Time{}, false
	}
	return pending[0], e.at, true
}

// Stop cancels every timer and waits for running handlers. Later Syncs are
// ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for key, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
