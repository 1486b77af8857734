package corosched

import (
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRing_RejectsNonPowerOfTwo(t *testing.T) {
	_, err := NewRing[int](3)
	require.ErrorIs(t, err, ErrRingCapacity)

	_, err = NewRing[int](0)
	require.ErrorIs(t, err, ErrRingCapacity)

	r, err := NewRing[int](8)
	require.NoError(t, err)
	assert.Equal(t, 8, r.Cap())
}

func TestRing_PushPopFIFOSingleProducer(t *testing.T) {
	r, err := NewRing[int](16)
	require.NoError(t, err)

	for i := 0; i < 16; i++ {
		r.Push(i)
	}
	for i := 0; i < 16; i++ {
		assert.Equal(t, i, r.Pop())
	}
}

func TestRing_TryPushTryPop(t *testing.T) {
	r, err := NewRing[int](4)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.True(t, r.TryPush(i))
	}
	assert.False(t, r.TryPush(99), "ring should report full at capacity")

	for i := 0; i < 4; i++ {
		v, ok := r.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := r.TryPop()
	assert.False(t, ok, "ring should report empty once drained")
}

// TestRing_MultiProducerMultiConsumer pushes producers*perProducer items
// from the producer goroutines and pops them across the consumer
// goroutines, and asserts the popped multiset equals the pushed multiset.
func TestRing_MultiProducerMultiConsumer(t *testing.T) {
	const producers = 8
	const perProducer = 2000
	const consumers = 4

	r, err := NewRing[int](64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				r.Push(base*perProducer + i)
			}
		}(p)
	}

	total := producers * perProducer
	results := make(chan int, total)
	var consumerWG sync.WaitGroup
	consumerWG.Add(consumers)
	var popped atomic.Int64
	for c := 0; c < consumers; c++ {
		go func() {
			defer consumerWG.Done()
			for {
				if popped.Add(1) > int64(total) {
					popped.Add(-1)
					return
				}
				results <- r.Pop()
			}
		}()
	}

	wg.Wait()
	consumerWG.Wait()
	close(results)

	got := make([]int, 0, total)
	for v := range results {
		got = append(got, v)
	}
	require.Len(t, got, total)

	want := make([]int, total)
	for i := range want {
		want[i] = i
	}
	sort.Ints(got)
	assert.Equal(t, want, got)
}

func TestRing_BackPressure(t *testing.T) {
	const producers = 32
	const perProducer = 1000
	const consumers = 4
	total := producers * perProducer

	r, err := NewRing[int](8)
	require.NoError(t, err)

	var tally sync.Map // value -> count
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				r.Push(base*perProducer + i)
			}
		}(p)
	}

	var consumed atomic.Int64
	var consumerWG sync.WaitGroup
	consumerWG.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer consumerWG.Done()
			for consumed.Add(1) <= int64(total) {
				v := r.Pop()
				actual, _ := tally.LoadOrStore(v, new(atomic.Int32))
				actual.(*atomic.Int32).Add(1)
			}
		}()
	}

	wg.Wait()
	consumerWG.Wait()

	count := 0
	tally.Range(func(_, v any) bool {
		if v.(*atomic.Int32).Load() != 1 {
			t.Fatalf("item observed more than once")
		}
		count++
		return true
	})
	assert.Equal(t, total, count)
}
