package permissions

import (
	"sync"

	"gateway/internal/models"
)

// profileStore is the guarded map backing the cache. Check-then-act sequences
// on one key stay inside a single lock scope.
type profileStore struct {
	mu     sync.RWMutex
	users  map[int64]map[int64]models.PermissionProfile
	bots   map[int64]models.PermissionProfile
	warned map[int64]bool
}

func newProfileStore() *profileStore {
	return &profileStore{
		users:  make(map[int64]map[int64]models.PermissionProfile),
		bots:   make(map[int64]models.PermissionProfile),
		warned: make(map[int64]bool),
	}
}

func (s *profileStore) user(chatID, userID int64) (models.PermissionProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.users[chatID][userID]
	return p, ok
}

func (s *profileStore) setUser(chatID, userID int64, p models.PermissionProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users[chatID] == nil {
		s.users[chatID] = make(map[int64]models.PermissionProfile)
	}
	s.users[chatID][userID] = p
}

func (s *profileStore) evictUser(chatID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.users[chatID]; ok {
		delete(m, userID)
	}
}

func (s *profileStore) bot(chatID int64) (models.PermissionProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.bots[chatID]
	return p, ok
}

func (s *profileStore) setBot(chatID int64, p models.PermissionProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bots[chatID] = p
	// The bot holds admin rights again, so a later demotion warns anew.
	delete(s.warned, chatID)
}

func (s *profileStore) evictBot(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bots, chatID)
}

// markWarned records that the admin warning was emitted for chatID and
// reports whether this call was the first since the last re-arm.
func (s *profileStore) markWarned(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.warned[chatID] {
		return false
	}
	s.warned[chatID] = true
	return true
}
