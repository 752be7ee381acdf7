package pipeline

import (
	"fmt"

	"github.com/gruppe-adler/dem2rgb/internal/raster"
	"github.com/gruppe-adler/dem2rgb/internal/terrainrgb"
)

// DefaultSampleBudget is the sample budget used when none is configured,
// 8Mi float32 samples (32MiB source buffer, 24MiB destination buffer).
const DefaultSampleBudget = 8 << 20

// Pipeline streams one band of a source raster through memory in
// edge-clamped row-major blocks, codes every sample with the Encoder and
// persists the result. It owns the two block buffers, which are
// allocated once at the maximum block geometry and reused for every
// block.
type Pipeline struct {
	Source  raster.Source
	Band    int
	Sink    raster.Sink
	Encoder *terrainrgb.Encoder

	// Workers is the number of parallel execution units. 1 selects the
	// sequential fallback with no synchronization at all.
	Workers int

	// SampleBudget bounds the block buffer size, in float32 samples.
	// 0 selects DefaultSampleBudget.
	SampleBudget int

	// Progress, if set, is invoked after every persisted block.
	Progress func(completed, total int)
}

// BlockLayout returns the planned block geometry and the total number of
// blocks of a run, without running it.
func (p *Pipeline) BlockLayout() (blockWidth, blockHeight, total int) {
	info := p.Source.Info()
	budget := p.SampleBudget
	if budget <= 0 {
		budget = DefaultSampleBudget
	}
	blockWidth, blockHeight = BlockSize(info.TileWidth, info.TileHeight, info.Width, info.Height, budget)
	cols := (info.Width + blockWidth - 1) / blockWidth
	rows := (info.Height + blockHeight - 1) / blockHeight
	return blockWidth, blockHeight, cols * rows
}

// Run converts the whole raster. The first collaborator error aborts the
// run; the worker pool is joined and released on every exit path.
func (p *Pipeline) Run() error {
	info := p.Source.Info()
	blockWidth, blockHeight, total := p.BlockLayout()
	if blockWidth <= 0 || blockHeight <= 0 {
		return &raster.ResourceError{Reason: fmt.Sprintf("invalid block geometry %dx%d", blockWidth, blockHeight)}
	}
	if p.Workers < 1 {
		return &raster.ResourceError{Reason: fmt.Sprintf("invalid number of workers: %d", p.Workers)}
	}

	maxArea := blockWidth * blockHeight
	srcBuf := make([]float32, maxArea)
	dstBuf := make([]byte, 3*maxArea)

	var pool *Pool
	if p.Workers > 1 {
		pool = NewPool(p.Workers, p.Encoder)
		defer pool.Close()
	}

	completed := 0
	for y := 0; y < info.Height; y += blockHeight {
		for x := 0; x < info.Width; x += blockWidth {
			blk := raster.Block{X: x, Y: y, Width: blockWidth, Height: blockHeight}
			if x+blk.Width > info.Width {
				blk.Width = info.Width - x
			}
			if y+blk.Height > info.Height {
				blk.Height = info.Height - y
			}
			area := blk.Area()

			src := srcBuf[:area]
			if err := p.Source.ReadBlock(p.Band, blk, src); err != nil {
				return err
			}

			// Three disjoint plane views over the one destination
			// allocation, recomputed from the current block's area.
			planes := [3][]byte{
				dstBuf[0*area : 1*area : 1*area],
				dstBuf[1*area : 2*area : 2*area],
				dstBuf[2*area : 3*area : 3*area],
			}

			if pool != nil {
				pool.Encode(src, planes)
			} else {
				p.Encoder.Encode(src, planes)
			}

			if err := p.Sink.WriteBlock(blk, planes); err != nil {
				return err
			}

			completed++
			if p.Progress != nil {
				p.Progress(completed, total)
			}
		}
	}

	return nil
}
