package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upper(_ context.Context, s string) (string, error) {
	return strings.ToUpper(s), nil
}

func TestPullEmptyQueue(t *testing.T) {
	q := New(upper, 2)

	_, err := q.Pull(context.Background())
	assert.ErrorIs(t, err, ErrEmptyQueue)
}

func TestDrainRunsEverything(t *testing.T) {
	var (
		mu        sync.Mutex
		collected []string
	)
	q := New(func(ctx context.Context, s string) (string, error) {
		v, _ := upper(ctx, s)
		mu.Lock()
		collected = append(collected, v)
		mu.Unlock()
		return v, nil
	}, 2)

	ctx := context.Background()
	for _, s := range []string{"a", "b", "o", "c", "d"} {
		q.Push(ctx, s)
	}
	require.NoError(t, q.Drain(ctx))

	sort.Strings(collected)
	assert.Equal(t, []string{"A", "B", "C", "D", "O"}, collected)
	assert.Equal(t, 0, q.Len())
}

func TestPullReturnsFastestFirst(t *testing.T) {
	q := New(func(ctx context.Context, d int) (int, error) {
		time.Sleep(time.Duration(d) * 2 * time.Millisecond)
		return d, nil
	}, 10)

	ctx := context.Background()
	for _, d := range []int{30, 20, 10} {
		q.Push(ctx, d)
	}

	for _, want := range []int{10, 20, 30} {
		got, err := q.Pull(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := q.Pull(ctx)
	assert.ErrorIs(t, err, ErrEmptyQueue)
}

func pullAll(t *testing.T, q *Queue[int, int]) []int {
	t.Helper()
	var out []int
	for v, err := range q.All(context.Background()) {
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func identity(_ context.Context, v int) (int, error) { return v, nil }

func TestOverflowIsLIFOByDefault(t *testing.T) {
	q := New(identity, 1)
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		q.Push(ctx, i)
	}
	assert.Equal(t, 1, q.InFlight())
	assert.Equal(t, 3, q.Buffered())

	assert.Equal(t, []int{1, 4, 3, 2}, pullAll(t, q))
}

func TestOverflowFIFO(t *testing.T) {
	q := New(identity, 1, WithFIFO())
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		q.Push(ctx, i)
	}

	assert.Equal(t, []int{1, 2, 3, 4}, pullAll(t, q))
}

func TestConcurrencyLimit(t *testing.T) {
	var running, peak int32
	q := New(func(ctx context.Context, v int) (int, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return v, nil
	}, 3)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		q.Push(ctx, i)
	}
	require.NoError(t, q.Drain(ctx))

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Greater(t, atomic.LoadInt32(&peak), int32(0))
}

func TestActionErrorSurfaces(t *testing.T) {
	boom := errors.New("boom")
	q := New(func(ctx context.Context, s string) (string, error) {
		if s == "bad" {
			return "", boom
		}
		return s, nil
	}, 1)

	ctx := context.Background()
	q.Push(ctx, "bad")
	q.Push(ctx, "good")

	assert.ErrorIs(t, q.Drain(ctx), boom)
	// the remaining input is still there
	require.NoError(t, q.Drain(ctx))
}

func TestActionPanicBecomesError(t *testing.T) {
	q := New(func(ctx context.Context, s string) (string, error) {
		panic(fmt.Sprintf("cannot render %s", s))
	}, 1)

	q.Push(context.Background(), "x")
	_, err := q.Pull(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot render x")
}

func TestPullHonorsContext(t *testing.T) {
	release := make(chan struct{})
	q := New(func(ctx context.Context, v int) (int, error) {
		<-release
		return v, nil
	}, 1)
	q.Push(context.Background(), 7)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.Pull(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	v, err := q.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestAllStopsWhenConsumerBreaks(t *testing.T) {
	q := New(identity, 1, WithFIFO())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		q.Push(ctx, i)
	}

	for v := range q.All(ctx) {
		if v == 1 {
			break
		}
	}
	assert.Equal(t, 3, q.Len())
}

func TestNewClampsConcurrency(t *testing.T) {
	q := New(identity, 0)
	q.Push(context.Background(), 1)
	q.Push(context.Background(), 2)

	assert.Equal(t, 1, q.InFlight())
	assert.Equal(t, 1, q.Buffered())
	require.NoError(t, q.Drain(context.Background()))
}
