package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTaskLocked is returned when completing a task whose dependency gate is
// still closed.
var ErrTaskLocked = errors.New("task is locked by an unfinished dependency")

// ErrStateChanged is returned by CompareAndReplace when another writer
// changed the state after it was read.
var ErrStateChanged = errors.New("state changed since it was read")

// Clock returns the current time.
type Clock func() time.Time

// Listener receives a snapshot of the state after every dispatched request.
type Listener func(State)

// Request is a typed state transition applied by Store.Dispatch.
type Request interface {
	apply(st *State, env *env) error
}

// env carries the non-deterministic inputs of a transition.
type env struct {
	now   time.Time
	loc   *time.Location
	newID func() string
}

// today returns the current calendar date in the store location.
func (e *env) today() string {
	return e.now.In(e.loc).Format(DateLayout)
}

// Store is the single-writer holder of the task state.
type Store struct {
	mu        sync.Mutex
	state     State
	clock     Clock
	loc       *time.Location
	newID     func() string
	listeners map[int]Listener
	nextSub   int

	// notifyMu keeps listener delivery in dispatch order.
	notifyMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithLocation sets the location used to derive calendar dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithIDGenerator sets the identifier generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// WithState sets the initial state.
func WithState(st State) Option {
	return func(s *Store) {
		s.state = st.Clone()
		s.state.normalize()
	}
}

// New creates a store holding a fresh default state.
func New(opts ...Option) *Store {
	s := &Store{
		state:     NewState(),
		clock:     time.Now,
		loc:       time.Local,
		newID:     func() string { return uuid.New().String() },
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch applies req atomically and notifies listeners with the resulting
// state. Requests referencing unknown ids are no-ops and return nil.
func (s *Store) Dispatch(req Request) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	e := &env{
		now:   s.clock().UTC(),
		loc:   s.loc,
		newID: s.newID,
	}
	err := req.apply(&s.state, e)
	var snapshot State
	listeners := make([]Listener, 0, len(s.listeners))
	if err == nil {
		snapshot = s.state.Clone()
		for i := 0; i < s.nextSub; i++ {
			if l, ok := s.listeners[i]; ok {
				listeners = append(listeners, l)
			}
		}
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, l := range listeners {
		l(snapshot)
	}
	return nil
}

// Subscribe registers l to receive snapshots after each successful dispatch.
// The returned function removes the subscription.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Task returns a copy of the task with the given id.
func (s *Store) Task(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.state.find(id)
	if t == nil {
		return Task{}, false
	}
	return t.clone(), true
}

// Now returns the store clock's current time in UTC.
func (s *Store) Now() time.Time {
	return s.clock().UTC()
}

// Today returns the current calendar date in the store location.
func (s *Store) Today() string {
	return s.clock().In(s.loc).Format(DateLayout)
}

// AddTask dispatches an AddTask request and returns the created task.
func (s *Store) AddTask(req AddTask) (Task, error) {
	if req.ID == "" {
		req.ID = s.newID()
	}
	if err := s.Dispatch(req); err != nil {
		return Task{}, err
	}
	t, _ := s.Task(req.ID)
	return t, nil
}
