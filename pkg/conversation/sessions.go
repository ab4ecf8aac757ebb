package conversation

import (
	"context"
	"sync"
	"time"
)

// session is the per-user critical section. lock is a one-slot semaphore so
// acquisition can honor context cancellation. evicted is only touched with lock held.
type session struct {
	lock         chan struct{}
	state        State
	lastActivity time.Time
	evicted      bool
}

type sessionTable struct {
	mu       sync.Mutex
	sessions map[UserID]*session
}

type sessionEntry struct {
	userID  UserID
	session *session
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[UserID]*session)}
}

func (table *sessionTable) lookup(userID UserID, now time.Time) *session {
	table.mu.Lock()
	defer table.mu.Unlock()
	current, found := table.sessions[userID]
	if !found {
		current = &session{
			lock:         make(chan struct{}, 1),
			state:        StateMenu,
			lastActivity: now,
		}
		table.sessions[userID] = current
	}
	return current
}

// acquire blocks until no other event for userID is in flight. A session evicted while
// the caller waited is abandoned for the fresh one in the table.
func (table *sessionTable) acquire(ctx context.Context, userID UserID, now time.Time) (*session, error) {
	for {
		current := table.lookup(userID, now)
		select {
		case current.lock <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if !current.evicted {
			return current, nil
		}
		current.release()
	}
}

// evict drops a session the caller holds so the table does not grow with every user seen.
func (table *sessionTable) evict(userID UserID, held *session) {
	table.mu.Lock()
	defer table.mu.Unlock()
	if table.sessions[userID] == held {
		delete(table.sessions, userID)
	}
	held.evicted = true
}

func (table *sessionTable) size() int {
	table.mu.Lock()
	defer table.mu.Unlock()
	return len(table.sessions)
}

func (table *sessionTable) entries() []sessionEntry {
	table.mu.Lock()
	defer table.mu.Unlock()
	entries := make([]sessionEntry, 0, len(table.sessions))
	for userID, current := range table.sessions {
		entries = append(entries, sessionEntry{userID: userID, session: current})
	}
	return entries
}

func (current *session) tryAcquire() bool {
	select {
	case current.lock <- struct{}{}:
		return true
	default:
		return false
	}
}

func (current *session) release() {
	<-current.lock
}
