package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockSizeExact(t *testing.T) {
	tests := []struct {
		name                  string
		tileW, tileH          int
		dsW, dsH              int
		budget                int
		wantWidth, wantHeight int
	}{
		{
			// width grows to 3 tiles (48x16 = 768 samples), the next
			// height increment would blow the budget
			name:  "small budget stops growth",
			tileW: 16, tileH: 16, dsW: 100, dsH: 100,
			budget:    1000,
			wantWidth: 48, wantHeight: 16,
		},
		{
			name:  "clamped to dataset",
			tileW: 16, tileH: 16, dsW: 20, dsH: 20,
			budget:    1 << 30,
			wantWidth: 20, wantHeight: 20,
		},
		{
			// the reference geometry: 256x256 tiles, 8Mi sample budget
			name:  "wide blocks on a large dataset",
			tileW: 256, tileH: 256, dsW: 10000, dsH: 10000,
			budget:    8 << 20,
			wantWidth: 10000, wantHeight: 768,
		},
		{
			name:  "single tile dataset",
			tileW: 256, tileH: 256, dsW: 256, dsH: 256,
			budget:    8 << 20,
			wantWidth: 256, wantHeight: 256,
		},
		{
			name:  "scanline tiles",
			tileW: 1000, tileH: 1, dsW: 1000, dsH: 500,
			budget:    4000,
			wantWidth: 1000, wantHeight: 3,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			w, h := BlockSize(test.tileW, test.tileH, test.dsW, test.dsH, test.budget)
			assert.Equal(t, test.wantWidth, w)
			assert.Equal(t, test.wantHeight, h)
		})
	}
}

func TestBlockSizeBudgetBound(t *testing.T) {
	const tile = 256
	tileArea := tile * tile

	for _, budget := range []int{tileArea, 4 * tileArea, 8 << 20, 64 << 20} {
		for _, ds := range []struct{ w, h int }{{512, 512}, {10000, 10000}, {100000, 300}} {
			w, h := BlockSize(tile, tile, ds.w, ds.h, budget)

			assert.LessOrEqual(t, w, ds.w)
			assert.LessOrEqual(t, h, ds.h)
			assert.Greater(t, w, 0)
			assert.Greater(t, h, 0)

			// the chosen area may exceed the budget by at most one
			// tile-row increment
			assert.Less(t, w*h, budget+w*tile, "budget %d dataset %dx%d", budget, ds.w, ds.h)

			// dimensions are tile multiples unless clamped to the edge
			if w != ds.w {
				assert.Zero(t, w%tile, "width %d not a tile multiple", w)
			}
			if h != ds.h {
				assert.Zero(t, h%tile, "height %d not a tile multiple", h)
			}
		}
	}
}

func TestBlockSizeDeterministic(t *testing.T) {
	w1, h1 := BlockSize(256, 256, 7777, 9999, 8<<20)
	w2, h2 := BlockSize(256, 256, 7777, 9999, 8<<20)
	assert.Equal(t, w1, w2)
	assert.Equal(t, h1, h2)
}
