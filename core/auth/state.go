package auth

import "sync"

// Snapshot is a consistent read of State.
type Snapshot struct {
	Session *Session
	Loading bool
}

func (s Snapshot) IsAuthenticated() bool { return s.Session != nil }

// State holds the current session. It starts in the loading state until the
// first status check resolves. Safe for concurrent use; last write wins.
type State struct {
	mu      sync.RWMutex
	session *Session
	loading bool
	nextID  int
	subs    map[int]func(Snapshot)
}

func NewState() *State {
	return &State{loading: true, subs: map[int]func(Snapshot){}}
}

func (s *State) Set(sess Session) {
	s.mu.Lock()
	cp := sess
	s.session = &cp
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()
	publish(subs, snap)
}

func (s *State) Clear() {
	s.mu.Lock()
	s.session = nil
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()
	publish(subs, snap)
}

func (s *State) SetLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()
	publish(subs, snap)
}

func (s *State) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}

func (s *State) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every change and returns the function that
// removes it. fn runs outside the lock.
func (s *State) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *State) snapshotLocked() Snapshot {
	snap := Snapshot{Loading: s.loading}
	if s.session != nil {
		cp := *s.session
		snap.Session = &cp
	}
	return snap
}

func (s *State) subscribersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func publish(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
