package server

import (
	"sync"
)

// Queue is the matchmaking queue: an ordered list of waiting sessions.
// Insertion order is significant for FIFO formation and for position
// reporting. All operations share a single critical section so admission,
// removal-for-match and position reads never interleave inconsistently.
type Queue struct {
	mu       sync.Mutex
	sessions []*Session
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends the session at the tail and returns its 1-based position.
// A session already present is left where it is.
func (q *Queue) Enqueue(s *Session) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if pos := q.positionLocked(s); pos > 0 {
		return pos
	}
	q.sessions = append(q.sessions, s)
	return len(q.sessions)
}

// EnqueueAt inserts the session at a 1-based position, clamping to the tail.
// Position 0 means tail. Used to replay a reconnecting client's saved spot.
func (q *Queue) EnqueueAt(s *Session, pos int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if p := q.positionLocked(s); p > 0 {
		return p
	}
	if pos < 1 || pos > len(q.sessions) {
		q.sessions = append(q.sessions, s)
		return len(q.sessions)
	}
	q.sessions = append(q.sessions, nil)
	copy(q.sessions[pos:], q.sessions[pos-1:])
	q.sessions[pos-1] = s
	return pos
}

// PositionOf returns the session's 1-based queue position, or 0 if absent.
func (q *Queue) PositionOf(s *Session) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.positionLocked(s)
}

func (q *Queue) positionLocked(s *Session) int {
	for i, queued := range q.sessions {
		if queued == s {
			return i + 1
		}
	}
	return 0
}

// Remove takes the session out of the queue; reports whether it was present.
func (q *Queue) Remove(s *Session) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, queued := range q.sessions {
		if queued == s {
			q.sessions = append(q.sessions[:i], q.sessions[i+1:]...)
			return true
		}
	}
	return false
}

// DequeueAll atomically removes and returns every session the predicate
// selects, preserving queue order.
func (q *Queue) DequeueAll(pred func(*Session) bool) []*Session {
	q.mu.Lock()
	defer q.mu.Unlock()

	var taken []*Session
	remaining := q.sessions[:0]
	for _, s := range q.sessions {
		if pred(s) {
			taken = append(taken, s)
		} else {
			remaining = append(remaining, s)
		}
	}
	q.sessions = remaining
	return taken
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.sessions)
}

// Snapshot returns a copy of the current queue order.
func (q *Queue) Snapshot() []*Session {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Session, len(q.sessions))
	copy(out, q.sessions)
	return out
}

// FormSimple removes and returns the first playersPerGame sessions in FIFO
// order, or nil if the queue is too short.
func (q *Queue) FormSimple(playersPerGame int) []*Session {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.sessions) < playersPerGame {
		return nil
	}
	players := make([]*Session, playersPerGame)
	copy(players, q.sessions[:playersPerGame])
	q.sessions = append(q.sessions[:0], q.sessions[playersPerGame:]...)
	return players
}

// FormRanked scans pivots left to right, greedily collecting later sessions
// whose rank differs from the pivot's by at most maxDiff. The earliest pivot
// that completes a group wins, which keeps formation approximately FIFO-fair
// under the rank constraint. The group is removed atomically; returns nil if
// no group forms.
func (q *Queue) FormRanked(playersPerGame, maxDiff int) []*Session {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.sessions) < playersPerGame {
		return nil
	}

	for i := 0; i < len(q.sessions); i++ {
		pivotRank := q.sessions[i].Rank()
		group := []*Session{q.sessions[i]}
		for j := i + 1; j < len(q.sessions) && len(group) < playersPerGame; j++ {
			diff := q.sessions[j].Rank() - pivotRank
			if diff < 0 {
				diff = -diff
			}
			if diff <= maxDiff {
				group = append(group, q.sessions[j])
			}
		}
		if len(group) == playersPerGame {
			q.removeLocked(group)
			return group
		}
	}
	return nil
}

// Pruned pairs a session removed by a liveness sweep with the 1-based
// position it held when the sweep started.
type Pruned struct {
	Session  *Session
	Position int
}

// Sweep probes every queued session concurrently while holding the queue
// lock, so a session is either probed or formed into a match, never both.
// Sessions the probe rejects are removed atomically with their position
// capture and returned. The lock is held for at most one probe timeout.
func (q *Queue) Sweep(probe func(*Session) bool) []Pruned {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.sessions) == 0 {
		return nil
	}

	alive := make([]bool, len(q.sessions))
	var wg sync.WaitGroup
	for i, s := range q.sessions {
		wg.Add(1)
		go func(i int, s *Session) {
			defer wg.Done()
			alive[i] = probe(s)
		}(i, s)
	}
	wg.Wait()

	var pruned []Pruned
	remaining := q.sessions[:0]
	for i, s := range q.sessions {
		if alive[i] {
			remaining = append(remaining, s)
		} else {
			pruned = append(pruned, Pruned{Session: s, Position: i + 1})
		}
	}
	q.sessions = remaining
	return pruned
}

func (q *Queue) removeLocked(toRemove []*Session) {
	for _, s := range toRemove {
		for i, queued := range q.sessions {
			if queued == s {
				q.sessions = append(q.sessions[:i], q.sessions[i+1:]...)
				break
			}
		}
	}
}

// ReconnectMap stores the last known 1-based queue position of sessions
// pruned by the liveness monitor, keyed by username. An entry exists only
// for a user currently neither queued nor in a match.
type ReconnectMap struct {
	mu        sync.Mutex
	positions map[string]int
}

func NewReconnectMap() *ReconnectMap {
	return &ReconnectMap{positions: make(map[string]int)}
}

func (m *ReconnectMap) Save(username string, pos int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[username] = pos
}

// Take consumes and clears the saved position. ok is false if none was saved.
func (m *ReconnectMap) Take(username string) (pos int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok = m.positions[username]
	if ok {
		delete(m.positions, username)
	}
	return pos, ok
}
