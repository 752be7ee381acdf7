package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruppe-adler/dem2rgb/internal/raster"
)

// memSource serves a procedurally generated elevation raster.
type memSource struct {
	info   raster.Info
	data   []float32
	failAt *raster.Block // fail the read of this block, if set
	reads  []raster.Block
}

func newMemSource(width, height, tileW, tileH int) *memSource {
	data := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			data[y*width+x] = float32((x*31+y*17)%22001 - 12000)
		}
	}
	return &memSource{
		info: raster.Info{
			Width: width, Height: height, Bands: 1,
			TileWidth: tileW, TileHeight: tileH,
		},
		data: data,
	}
}

func (s *memSource) Info() raster.Info { return s.info }

func (s *memSource) ReadBlock(band int, b raster.Block, dst []float32) error {
	if s.failAt != nil && *s.failAt == b {
		return &raster.SourceError{Path: "mem", Op: "read", Block: &b, Err: errors.New("boom")}
	}
	s.reads = append(s.reads, b)
	for row := 0; row < b.Height; row++ {
		off := (b.Y+row)*s.info.Width + b.X
		copy(dst[row*b.Width:(row+1)*b.Width], s.data[off:off+b.Width])
	}
	return nil
}

func (s *memSource) Close() error { return nil }

// memSink assembles written blocks into three full-size planes.
type memSink struct {
	width, height int
	planes        [3][]byte
	writes        []raster.Block
	failAtWrite   int // fail the n-th write (1-based), 0 disables
}

func newMemSink(width, height int) *memSink {
	return &memSink{
		width: width, height: height,
		planes: [3][]byte{
			make([]byte, width*height),
			make([]byte, width*height),
			make([]byte, width*height),
		},
	}
}

func (s *memSink) SetProjection(string) error       { return nil }
func (s *memSink) SetGeoTransform([6]float64) error { return nil }
func (s *memSink) Close() error                     { return nil }

func (s *memSink) WriteBlock(b raster.Block, planes [3][]byte) error {
	if s.failAtWrite > 0 && len(s.writes)+1 == s.failAtWrite {
		return &raster.SinkError{Path: "mem", Op: "write", Block: &b, Err: errors.New("boom")}
	}
	s.writes = append(s.writes, b)
	for band := 0; band < 3; band++ {
		for row := 0; row < b.Height; row++ {
			off := (b.Y+row)*s.width + b.X
			copy(s.planes[band][off:off+b.Width], planes[band][row*b.Width:(row+1)*b.Width])
		}
	}
	return nil
}

func TestPipelineMatchesWholeFrameEncode(t *testing.T) {
	enc := testEncoder(t)

	// 10x7 raster, 4x3 tiles, budget so small that every block is a
	// single tile and the edge blocks are clamped
	src := newMemSource(10, 7, 4, 3)

	want := newPlanes(len(src.data))
	enc.Encode(src.data, want)

	for _, workers := range []int{1, 2, 4, 8} {
		sink := newMemSink(10, 7)
		pl := &Pipeline{
			Source: src, Band: 1, Sink: sink,
			Encoder: enc, Workers: workers, SampleBudget: 13,
		}
		require.NoError(t, pl.Run())

		assert.Equal(t, want, sink.planes, "workers %d", workers)
	}
}

func TestPipelineBlockIterationRowMajor(t *testing.T) {
	enc := testEncoder(t)
	src := newMemSource(10, 7, 4, 3)
	sink := newMemSink(10, 7)

	pl := &Pipeline{Source: src, Band: 1, Sink: sink, Encoder: enc, Workers: 1, SampleBudget: 13}

	blockWidth, blockHeight, total := pl.BlockLayout()
	assert.Equal(t, 4, blockWidth)
	assert.Equal(t, 3, blockHeight)
	assert.Equal(t, 9, total)

	require.NoError(t, pl.Run())

	want := []raster.Block{
		{X: 0, Y: 0, Width: 4, Height: 3}, {X: 4, Y: 0, Width: 4, Height: 3}, {X: 8, Y: 0, Width: 2, Height: 3},
		{X: 0, Y: 3, Width: 4, Height: 3}, {X: 4, Y: 3, Width: 4, Height: 3}, {X: 8, Y: 3, Width: 2, Height: 3},
		{X: 0, Y: 6, Width: 4, Height: 1}, {X: 4, Y: 6, Width: 4, Height: 1}, {X: 8, Y: 6, Width: 2, Height: 1},
	}
	assert.Equal(t, want, sink.writes)
	assert.Equal(t, want, src.reads)
}

func TestPipelineProgress(t *testing.T) {
	enc := testEncoder(t)
	src := newMemSource(10, 7, 4, 3)
	sink := newMemSink(10, 7)

	var completed []int
	totals := map[int]bool{}
	pl := &Pipeline{
		Source: src, Band: 1, Sink: sink, Encoder: enc,
		Workers: 2, SampleBudget: 13,
		Progress: func(done, total int) {
			completed = append(completed, done)
			totals[total] = true
		},
	}
	require.NoError(t, pl.Run())

	require.Len(t, completed, 9)
	for i, done := range completed {
		assert.Equal(t, i+1, done)
	}
	assert.Equal(t, map[int]bool{9: true}, totals)
}

func TestPipelineAbortsOnReadError(t *testing.T) {
	enc := testEncoder(t)
	src := newMemSource(10, 7, 4, 3)
	src.failAt = &raster.Block{X: 4, Y: 3, Width: 4, Height: 3}
	sink := newMemSink(10, 7)

	pl := &Pipeline{Source: src, Band: 1, Sink: sink, Encoder: enc, Workers: 4, SampleBudget: 13}
	err := pl.Run()

	var srcErr *raster.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, &raster.Block{X: 4, Y: 3, Width: 4, Height: 3}, srcErr.Block)

	// the failing block was the 5th: exactly 4 blocks made it to the sink
	assert.Len(t, sink.writes, 4)
}

func TestPipelineAbortsOnWriteError(t *testing.T) {
	enc := testEncoder(t)
	src := newMemSource(10, 7, 4, 3)
	sink := newMemSink(10, 7)
	sink.failAtWrite = 2

	pl := &Pipeline{Source: src, Band: 1, Sink: sink, Encoder: enc, Workers: 1, SampleBudget: 13}
	err := pl.Run()

	var sinkErr *raster.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Len(t, sink.writes, 1)
	assert.Len(t, src.reads, 2)
}

func TestPipelineRejectsInvalidWorkerCount(t *testing.T) {
	enc := testEncoder(t)
	src := newMemSource(4, 4, 4, 4)

	pl := &Pipeline{Source: src, Band: 1, Sink: newMemSink(4, 4), Encoder: enc, Workers: 0}
	err := pl.Run()

	var resErr *raster.ResourceError
	require.ErrorAs(t, err, &resErr)
}

func TestPipelineDefaultBudget(t *testing.T) {
	enc := testEncoder(t)
	src := newMemSource(100, 100, 10, 10)
	sink := newMemSink(100, 100)

	// whole raster fits one block under the default budget
	pl := &Pipeline{Source: src, Band: 1, Sink: sink, Encoder: enc, Workers: 2}
	_, _, total := pl.BlockLayout()
	assert.Equal(t, 1, total)

	require.NoError(t, pl.Run())
	assert.Len(t, sink.writes, 1)
}
