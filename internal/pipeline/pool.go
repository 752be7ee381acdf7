package pipeline

import (
	"sync"

	"github.com/gruppe-adler/dem2rgb/internal/terrainrgb"
)

// assignment is one worker's share of a block: a contiguous pixel range
// of the source buffer and the matching ranges of the three destination
// planes.
type assignment struct {
	src    []float32
	planes [3][]byte
}

// span is a contiguous index range [Off, Off+Count) of a block's pixel
// space.
type span struct {
	Off, Count int
}

// partition splits [0, area) into at most workers contiguous spans of
// near-equal size. The remainder is absorbed by the first spans, so
// sizes differ by at most one. Spans that would be empty are dropped
// (area < workers). Every index is covered exactly once.
func partition(area, workers int) []span {
	base := area / workers
	rem := area % workers

	spans := make([]span, 0, workers)
	off := 0
	for i := 0; i < workers; i++ {
		count := base
		if i < rem {
			count++
		}
		if count == 0 {
			break
		}
		spans = append(spans, span{Off: off, Count: count})
		off += count
	}
	return spans
}

// Pool is a fixed set of long-lived workers applying one Encoder to
// disjoint pixel ranges of a block. Workers are started once and live
// until Close. Encode acts as a hard barrier: it does not return before
// every worker finished its range, so the caller may hand the
// destination buffer to the sink immediately afterwards.
//
// The output is byte-identical to a plain Encoder.Encode over the whole
// block for any worker count: the encoder is stateless and the assigned
// ranges are disjoint.
type Pool struct {
	workers int
	enc     *terrainrgb.Encoder
	tasks   chan assignment

	barrier sync.WaitGroup // outstanding assignments of the current block
	alive   sync.WaitGroup // running worker goroutines
}

// NewPool starts workers goroutines sharing enc.
func NewPool(workers int, enc *terrainrgb.Encoder) *Pool {
	p := &Pool{
		workers: workers,
		enc:     enc,
		tasks:   make(chan assignment, workers),
	}
	p.alive.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.alive.Done()
	for t := range p.tasks {
		p.enc.Encode(t.src, t.planes)
		p.barrier.Done()
	}
}

// Encode partitions the block across the pool and blocks until all
// workers completed their ranges.
func (p *Pool) Encode(src []float32, planes [3][]byte) {
	spans := partition(len(src), p.workers)

	p.barrier.Add(len(spans))
	for _, s := range spans {
		end := s.Off + s.Count
		p.tasks <- assignment{
			src: src[s.Off:end],
			planes: [3][]byte{
				planes[0][s.Off:end],
				planes[1][s.Off:end],
				planes[2][s.Off:end],
			},
		}
	}
	p.barrier.Wait()
}

// Close signals shutdown and joins every worker. The pool must not be
// used afterwards.
func (p *Pool) Close() {
	close(p.tasks)
	p.alive.Wait()
}
