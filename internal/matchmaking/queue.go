package matchmaking

import (
	"container/list"
	"sync"
)

// Queue holds the players waiting for a match, in arrival order.
// The map index gives O(1) duplicate detection; the list keeps FIFO order for sampling.
type Queue struct {
	mu      sync.RWMutex
	order   *list.List               // of Player
	entries map[string]*list.Element // player ID -> element in order

	// onResize is called with the new length while the write lock is still held,
	// so observers see sizes in the order the changes happened.
	onResize func(n int)
}

func NewQueue() *Queue {
	return &Queue{
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// RequestMatch adds the player unless a player with the same ID is already queued.
// It reports whether the player was added; false is a duplicate request, not an error.
func (q *Queue) RequestMatch(p Player) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := p.ID()
	if _, ok := q.entries[id]; ok {
		return false
	}
	q.entries[id] = q.order.PushBack(p)
	q.resized()
	return true
}

// Remove drops the entry for id if there is one.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if el, ok := q.entries[id]; ok {
		q.order.Remove(el)
		delete(q.entries, id)
		q.resized()
	}
}

// removeHandle drops p only if it is the handle currently queued under its ID.
// A player that reconnected under the same name keeps its new entry.
func (q *Queue) removeHandle(p Player) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.holds(p) {
		return false
	}
	q.drop(p)
	q.resized()
	return true
}

// takePair removes both players in one critical section, and only if both handles are
// still queued. A pair with a withdrawn member is left untouched.
func (q *Queue) takePair(p1, p2 Player) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.holds(p1) || !q.holds(p2) {
		return false
	}
	q.drop(p1)
	q.drop(p2)
	q.resized()
	return true
}

// holdsPair reports whether both handles are still queued.
func (q *Queue) holdsPair(p1, p2 Player) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.holds(p1) && q.holds(p2)
}

// holds and drop expect q.mu to be held.
func (q *Queue) holds(p Player) bool {
	el, ok := q.entries[p.ID()]
	return ok && el.Value.(Player) == p
}

func (q *Queue) drop(p Player) {
	q.order.Remove(q.entries[p.ID()])
	delete(q.entries, p.ID())
}

func (q *Queue) resized() {
	if q.onResize != nil {
		q.onResize(q.order.Len())
	}
}

// SamplePair returns the two longest-waiting players without removing them.
// The read lock is held only while the references are copied out.
func (q *Queue) SamplePair() (Player, Player, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.order.Len() < MatchCapacity {
		return nil, nil, false
	}
	first := q.order.Front()
	return first.Value.(Player), first.Next().Value.(Player), true
}

// Contains reports whether a player with the given ID is queued.
func (q *Queue) Contains(id string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.entries[id]
	return ok
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.order.Len()
}
