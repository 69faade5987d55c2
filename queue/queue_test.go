package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 1; i <= 3; i++ {
		require.True(t, q.Push(i))
	}
	assert.Equal(t, 3, q.Len())

	for i := 1; i <= 3; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueueReadySignal(t *testing.T) {
	q := NewQueue[int]()

	select {
	case <-q.Ready():
		t.Fatal("empty queue must not be ready")
	default:
	}

	q.Push(1)
	q.Push(2)

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("queue with items must be ready")
	}

	_, ok := q.Pop()
	require.True(t, ok)

	// one item left, token is restored by Pop
	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("queue with a remaining item must be ready")
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue[string]()
	q.Push("a")
	q.Close()
	q.Close()

	assert.False(t, q.Push("b"))
	assert.False(t, q.Closed(), "closed but not drained")

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.True(t, q.Closed())
}

func TestQueueDiscard(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	assert.Equal(t, 5, q.Discard())
	assert.Equal(t, 0, q.Len())
}

func TestQueueConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 500

	q := NewQueue[int]()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(base*perProducer + i)
			}
		}(p)
	}

	seen := make(map[int]struct{})
	last := make(map[int]int)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for len(seen) < producers*perProducer {
		v, ok := q.Pop()
		if !ok {
			select {
			case <-q.Ready():
			case <-done:
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}
		_, dup := seen[v]
		require.False(t, dup)
		seen[v] = struct{}{}

		// per-producer order is preserved
		producer := v / perProducer
		if prev, ok := last[producer]; ok {
			require.Greater(t, v, prev)
		}
		last[producer] = v
	}
}
