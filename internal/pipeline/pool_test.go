package pipeline

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruppe-adler/dem2rgb/internal/terrainrgb"
)

func TestPartition(t *testing.T) {
	// 10 pixels over 3 workers: 4+3+3, contiguous, in order
	spans := partition(10, 3)
	require.Equal(t, []span{{0, 4}, {4, 3}, {7, 3}}, spans)
}

func TestPartitionCompleteness(t *testing.T) {
	tests := []struct {
		area, workers int
	}{
		{10, 3}, {0, 4}, {1, 8}, {7, 8}, {8, 8}, {9, 8},
		{1000, 1}, {1000, 7}, {65536, 16}, {22001, 3},
	}

	for _, test := range tests {
		spans := partition(test.area, test.workers)

		assert.LessOrEqual(t, len(spans), test.workers)

		next := 0
		for _, s := range spans {
			assert.Equal(t, next, s.Off, "area %d workers %d", test.area, test.workers)
			assert.Greater(t, s.Count, 0)
			next += s.Count
		}
		assert.Equal(t, test.area, next, "area %d workers %d", test.area, test.workers)

		// sizes differ by at most one
		if len(spans) > 0 {
			assert.LessOrEqual(t, spans[0].Count-spans[len(spans)-1].Count, 1)
		}
	}
}

func testEncoder(t *testing.T) *terrainrgb.Encoder {
	t.Helper()
	nodata := float32(-32768)
	enc, err := terrainrgb.New(terrainrgb.Options{
		Resolution:   1,
		ScaleMin:     -12000,
		ScaleMax:     10000,
		SourceNoData: &nodata,
		DestNoData:   0,
	})
	require.NoError(t, err)
	return enc
}

func randomBlock(area int) []float32 {
	rng := rand.New(rand.NewSource(42))
	src := make([]float32, area)
	for i := range src {
		if rng.Intn(50) == 0 {
			src[i] = -32768 // nodata
		} else {
			src[i] = float32(rng.Intn(22001) - 12000)
		}
	}
	return src
}

func newPlanes(area int) [3][]byte {
	return [3][]byte{make([]byte, area), make([]byte, area), make([]byte, area)}
}

func TestPoolMatchesSequential(t *testing.T) {
	enc := testEncoder(t)

	for _, area := range []int{1, 10, 1000, 12345} {
		src := randomBlock(area)

		want := newPlanes(area)
		enc.Encode(src, want)

		for _, workers := range []int{1, 2, 4, 8} {
			pool := NewPool(workers, enc)

			got := newPlanes(area)
			pool.Encode(src, got)
			pool.Close()

			assert.Equal(t, want, got, "area %d workers %d", area, workers)
		}
	}
}

func TestPoolReusableAcrossBlocks(t *testing.T) {
	enc := testEncoder(t)
	pool := NewPool(4, enc)
	defer pool.Close()

	for _, area := range []int{100, 7, 1024, 1} {
		src := randomBlock(area)

		want := newPlanes(area)
		enc.Encode(src, want)

		got := newPlanes(area)
		pool.Encode(src, got)

		assert.Equal(t, want, got, "area %d", area)
	}
}

func TestPoolMoreWorkersThanPixels(t *testing.T) {
	enc := testEncoder(t)
	pool := NewPool(8, enc)
	defer pool.Close()

	src := []float32{0, 100, 200}
	want := newPlanes(3)
	enc.Encode(src, want)

	got := newPlanes(3)
	pool.Encode(src, got)

	assert.Equal(t, want, got)
}
