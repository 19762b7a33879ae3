package session

import (
	"sort"
	"sync"
)

// Store is the registry of live guild sessions. Sessions are created on first
// use and removed on cleanup.
type Store struct {
	mu            sync.RWMutex
	sessions      map[string]*GuildSession
	defaultVolume int
}

// NewStore 创建 session 注册表
func NewStore(defaultVolume int) *Store {
	if defaultVolume <= 0 {
		defaultVolume = 50
	}
	return &Store{
		sessions:      make(map[string]*GuildSession),
		defaultVolume: defaultVolume,
	}
}

// GetOrCreate returns the guild's session, creating an empty one if needed.
func (s *Store) GetOrCreate(guildID string) *GuildSession {
	s.mu.RLock()
	sess, ok := s.sessions[guildID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[guildID]; ok {
		return sess
	}
	sess = newGuildSession(guildID, s.defaultVolume)
	s.sessions[guildID] = sess
	return sess
}

// Get returns the guild's session if one exists.
func (s *Store) Get(guildID string) (*GuildSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[guildID]
	return sess, ok
}

// Delete removes sess if it is still the registered session for its guild.
func (s *Store) Delete(sess *GuildSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[sess.GuildID]; ok && cur == sess {
		delete(s.sessions, sess.GuildID)
		return true
	}
	return false
}

// GuildIDs lists guilds with a live session, sorted.
func (s *Store) GuildIDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
