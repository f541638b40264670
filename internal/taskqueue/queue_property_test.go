//go:build property

package taskqueue

import (
	"context"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestQueueProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("every pushed input yields exactly one result", prop.ForAll(
		func(inputs []int, concurrency int, fifo bool) bool {
			var opts []Option
			if fifo {
				opts = append(opts, WithFIFO())
			}
			q := New(func(ctx context.Context, v int) (int, error) { return v * 2, nil }, concurrency, opts...)

			ctx := context.Background()
			for _, in := range inputs {
				q.Push(ctx, in)
			}

			var got []int
			for v, err := range q.All(ctx) {
				if err != nil {
					return false
				}
				got = append(got, v)
			}

			want := make([]int, len(inputs))
			for i, in := range inputs {
				want[i] = in * 2
			}
			sort.Ints(got)
			sort.Ints(want)
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i] != want[i] {
					return false
				}
			}
			return q.Len() == 0
		},
		gen.SliceOf(gen.IntRange(-1000, 1000)),
		gen.IntRange(1, 8),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
