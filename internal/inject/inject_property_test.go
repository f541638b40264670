//go:build property

package inject

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// split cuts data at the given offsets (taken modulo the length).
func split(data []byte, cuts []int) [][]byte {
	if len(data) == 0 {
		return [][]byte{data}
	}
	var chunks [][]byte
	last := 0
	for _, c := range cuts {
		pos := c % (len(data) + 1)
		if pos < last {
			continue
		}
		chunks = append(chunks, data[last:pos])
		last = pos
	}
	return append(chunks, data[last:])
}

func run(chunks [][]byte, after, injection []byte) []byte {
	var out bytes.Buffer
	w := NewWriter(&out, after, injection)
	for _, c := range chunks {
		_, _ = w.Write(c)
	}
	_ = w.Close()
	return out.Bytes()
}

func TestWriterProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	after := []byte("aba")
	injection := []byte("<!>")

	// Alphabet restricted to a/b so the marker appears, overlaps and recurs often.
	bodyGen := gen.SliceOf(gen.OneConstOf(byte('a'), byte('b')))

	properties.Property("output matches a single-shot replacement of the first occurrence", prop.ForAll(
		func(body []byte, cuts []int) bool {
			got := run(split(body, cuts), after, injection)

			want := body
			if idx := bytes.Index(body, after); idx >= 0 {
				end := idx + len(after)
				want = append(append(append([]byte{}, body[:end]...), injection...), body[end:]...)
			}
			return bytes.Equal(got, want)
		},
		bodyGen,
		gen.SliceOf(gen.IntRange(0, 64)),
	))

	properties.Property("pattern-free input passes through unchanged", prop.ForAll(
		func(body []byte, cuts []int) bool {
			return bytes.Equal(run(split(body, cuts), []byte("</body>"), injection), body)
		},
		gen.SliceOf(gen.OneConstOf(byte('x'), byte('<'), byte('/'), byte('b'))),
		gen.SliceOf(gen.IntRange(0, 64)),
	))

	properties.Property("chunking never changes the one-shot result", prop.ForAll(
		func(body []byte, cuts []int) bool {
			return bytes.Equal(run(split(body, cuts), after, injection), Bytes(body, after, injection))
		},
		bodyGen,
		gen.SliceOf(gen.IntRange(0, 64)),
	))

	properties.TestingRun(t)
}
