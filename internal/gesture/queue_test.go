package gesture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	q.Put(EmptyResult())
	q.Put(NewResult(1, Single))
	q.Put(NewResult(2, Hold))
	assert.Equal(t, 3, q.Len())

	ctx := context.Background()
	for _, want := range []Result{EmptyResult(), NewResult(1, Single), NewResult(2, Hold)} {
		got, err := q.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, ok := q.TryGet()
	assert.False(t, ok)
}

func TestQueueGetBlocksUntilPut(t *testing.T) {
	q := NewQueue()
	got := make(chan Result, 1)

	go func() {
		r, err := q.Get(context.Background())
		if err == nil {
			got <- r
		}
	}()

	select {
	case <-got:
		t.Fatal("Get returned before Put")
	case <-time.After(20 * time.Millisecond):
	}

	q.Put(NewResult(0, Single))
	select {
	case r := <-got:
		assert.Equal(t, NewResult(0, Single), r)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake after Put")
	}
}

func TestQueueGetCancelled(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestQueueClose(t *testing.T) {
	q := NewQueue()
	q.Put(NewResult(1, Single))
	q.Close()
	q.Close()
	q.Put(NewResult(2, Single))

	r, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Key)

	_, err = q.Get(context.Background())
	assert.True(t, errors.Is(err, ErrQueueClosed))
}

func TestQueueManyReaders(t *testing.T) {
	q := NewQueue()
	const n = 200

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int]bool)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				r, err := q.Get(context.Background())
				if err != nil {
					return
				}
				mu.Lock()
				seen[r.Key] = true
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < n; i++ {
		q.Put(NewResult(i, Single))
	}
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)
	q.Close()
	wg.Wait()

	assert.Len(t, seen, n)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "none", EmptyResult().String())
	assert.Equal(t, "(3, HOLD)", NewResult(3, Hold).String())
}
