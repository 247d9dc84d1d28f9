package matchmaking

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RequestMatchIsIdempotent(t *testing.T) {
	q := NewQueue()
	alice := newFakePlayer("alice", 1200)

	assert.True(t, q.RequestMatch(alice))
	assert.False(t, q.RequestMatch(alice))
	// A second handle under the same name is still a duplicate.
	assert.False(t, q.RequestMatch(newFakePlayer("alice", 900)))
	assert.Equal(t, 1, q.Len())
}

func TestQueue_RemoveUnknownIsNoop(t *testing.T) {
	q := NewQueue()
	q.RequestMatch(newFakePlayer("alice", 1000))

	q.Remove("bob")
	assert.Equal(t, 1, q.Len())

	q.Remove("alice")
	q.Remove("alice")
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Contains("alice"))
}

func TestQueue_SamplePairKeepsArrivalOrder(t *testing.T) {
	q := NewQueue()
	_, _, ok := q.SamplePair()
	assert.False(t, ok)

	a, b, c := newFakePlayer("a", 0), newFakePlayer("b", 0), newFakePlayer("c", 0)
	q.RequestMatch(a)
	_, _, ok = q.SamplePair()
	assert.False(t, ok, "one player is not a pair")

	q.RequestMatch(b)
	q.RequestMatch(c)

	p1, p2, ok := q.SamplePair()
	require.True(t, ok)
	assert.Same(t, a, p1)
	assert.Same(t, b, p2)
	assert.Equal(t, 3, q.Len(), "sampling does not remove")

	q.Remove("a")
	p1, p2, ok = q.SamplePair()
	require.True(t, ok)
	assert.Same(t, b, p1)
	assert.Same(t, c, p2)
}

func TestQueue_RemoveHandleIgnoresStaleHandle(t *testing.T) {
	q := NewQueue()
	old := newFakePlayer("alice", 1000)
	q.RequestMatch(old)
	q.Remove("alice")

	reconnected := newFakePlayer("alice", 1000)
	q.RequestMatch(reconnected)

	assert.False(t, q.removeHandle(old))
	assert.True(t, q.Contains("alice"))
	assert.True(t, q.removeHandle(reconnected))
	assert.False(t, q.Contains("alice"))
}

func TestQueue_ConcurrentRequests(t *testing.T) {
	q := NewQueue()
	const players = 200

	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(2)
		id := fmt.Sprintf("player-%d", i)
		go func() {
			defer wg.Done()
			q.RequestMatch(newFakePlayer(id, 0))
		}()
		go func() {
			defer wg.Done()
			q.RequestMatch(newFakePlayer(id, 0))
		}()
	}
	wg.Wait()

	assert.Equal(t, players, q.Len())
	for i := 0; i < players; i++ {
		assert.True(t, q.Contains(fmt.Sprintf("player-%d", i)))
	}
}

func TestQueue_ReportsSizesInOrder(t *testing.T) {
	q := NewQueue()
	var sizes []int // appended under the queue's write lock
	q.onResize = func(n int) { sizes = append(sizes, n) }

	const players = 100
	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.RequestMatch(newFakePlayer(fmt.Sprintf("player-%d", i), 0))
		}(i)
	}
	wg.Wait()

	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Remove(fmt.Sprintf("player-%d", i))
			q.Remove(fmt.Sprintf("player-%d", i))
		}(i)
	}
	wg.Wait()

	require.Len(t, sizes, 2*players)
	for i := 0; i < players; i++ {
		assert.Equal(t, i+1, sizes[i])
		assert.Equal(t, players-i-1, sizes[players+i])
	}
}

func TestQueue_TakePair(t *testing.T) {
	q := NewQueue()
	a, b, c := newFakePlayer("a", 0), newFakePlayer("b", 0), newFakePlayer("c", 0)
	q.RequestMatch(a)
	q.RequestMatch(b)
	q.RequestMatch(c)

	assert.True(t, q.holdsPair(a, b))
	q.Remove("b")
	assert.False(t, q.holdsPair(a, b))
	assert.False(t, q.takePair(a, b))
	assert.Equal(t, 2, q.Len(), "a pair with a missing member is left alone")

	assert.False(t, q.takePair(a, newFakePlayer("c", 0)), "same id, different handle")
	assert.True(t, q.takePair(a, c))
	assert.Equal(t, 0, q.Len())
}
