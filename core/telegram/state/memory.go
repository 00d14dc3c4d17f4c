package state

import "sync"

// NewMemoryManager returns a process-local Manager. Sessions do not survive
// a restart: mid-dialog users come back idle.
func NewMemoryManager() Manager {
	return &memoryStore{sessions: make(map[int64]*Session)}
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// ensure returns the user's session, creating an idle one on first touch.
// Callers must hold the write lock.
func (s *memoryStore) ensure(userID int64) *Session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{State: StateIdle, TempData: make(map[string]interface{})}
		s.sessions[userID] = sess
	}
	return sess
}

func (s *memoryStore) SetState(userID int64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(userID).State = st
}

func (s *memoryStore) GetState(userID int64) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess.State
	}
	return StateIdle
}

func (s *memoryStore) SetTemp(userID int64, key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(userID).TempData[key] = value
}

func (s *memoryStore) GetTemp(userID int64, key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	value, ok := sess.TempData[key]
	return value, ok
}

func (s *memoryStore) GetTempString(userID int64, key string) (string, bool) {
	value, ok := s.GetTemp(userID, key)
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

func (s *memoryStore) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

func (s *memoryStore) InProgress(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return ok && sess.State != StateIdle
}
