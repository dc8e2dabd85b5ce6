package tracking

import (
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle position of a tracker session.
type State int32

const (
	StateUninitialized State = iota
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session holds the identifier shared by every event of one tracker
// lifetime. The id is minted on first use and never changes; it is not
// persisted anywhere.
type Session struct {
	once  sync.Once
	id    uuid.UUID
	newID func() uuid.UUID

	mu    sync.RWMutex
	state State
}

// NewSession returns an uninitialized session; its id is minted lazily.
func NewSession() *Session {
	return &Session{newID: uuid.New}
}

func (s *Session) ID() uuid.UUID {
	s.once.Do(func() {
		s.id = s.newID()
	})
	return s.id
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Active() bool {
	return s.State() == StateActive
}

func (s *Session) activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateActive:
		return ErrAlreadyMounted
	case StateTerminated:
		return ErrTerminated
	}
	s.state = StateActive
	return nil
}

// terminate reports whether the call moved the session out of ACTIVE.
func (s *Session) terminate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		s.state = StateTerminated
		return false
	}
	s.state = StateTerminated
	return true
}
