package advisory

import (
	"sync"
	"time"

	"github.com/cropwise/cropwise/pkg/predict"
)

const defaultMaxSessions = 1024

type session struct {
	debouncer *predict.Debouncer
	lastUsed  time.Time
}

// sessions holds one debouncer per client session. The least recently used
// idle session is dropped once the limit is reached. Sessions with a call in
// flight are never dropped, so the limit can be exceeded by the number of
// concurrent calls.
type sessions struct {
	mu      sync.Mutex
	delay   time.Duration
	max     int
	entries map[string]*session
	now     func() time.Time
}

func newSessions(delay time.Duration, max int) *sessions {
	return &sessions{
		delay:   delay,
		max:     max,
		entries: make(map[string]*session),
		now:     time.Now,
	}
}

func (s *sessions) get(id string, next predict.Recommender) *predict.Debouncer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		e.lastUsed = s.now()
		return e.debouncer
	}

	for len(s.entries) >= s.max {
		if !s.evictOldest() {
			break
		}
	}
	e := &session{debouncer: predict.NewDebouncer(next, s.delay), lastUsed: s.now()}
	s.entries[id] = e
	return e.debouncer
}

// evictOldest drops the least recently used idle session. It reports false
// when every session has a call in flight.
func (s *sessions) evictOldest() bool {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range s.entries {
		if e.debouncer.Pending() {
			continue
		}
		if oldestID == "" || e.lastUsed.Before(oldest) {
			oldestID, oldest = id, e.lastUsed
		}
	}
	if oldestID == "" {
		return false
	}
	s.entries[oldestID].debouncer.Close()
	delete(s.entries, oldestID)
	return true
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *sessions) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		e.debouncer.Close()
		delete(s.entries, id)
	}
}
