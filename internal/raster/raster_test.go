package raster

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestBounds(t *testing.T) {
	info := Info{
		Width:        100,
		Height:       50,
		GeoTransform: [6]float64{1000, 10, 0, 2000, 0, -10},
	}

	bound := Bounds(info)
	assert.Equal(t, orb.Point{1000, 1500}, bound.Min)
	assert.Equal(t, orb.Point{2000, 2000}, bound.Max)
}

func TestBoundsRotated(t *testing.T) {
	// a slight shear must still yield the enclosing box
	info := Info{
		Width:        10,
		Height:       10,
		GeoTransform: [6]float64{0, 1, 0.5, 0, 0, -1},
	}

	bound := Bounds(info)
	assert.Equal(t, orb.Point{0, -10}, bound.Min)
	assert.Equal(t, orb.Point{15, 0}, bound.Max)
}

func TestProbeExtension(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"dem.asc", "asc"},
		{"dem.ASC", "asc"},
		{"dem.asc.gz", "asc.gz"},
		{"dem.Asc.GZ", "asc.gz"},
		{"dir/dem.bin", "bin"},
		{"noext", ""},
		{"archive.gz", "gz"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, probeExtension(test.path), "path %s", test.path)
	}
}

func TestBlockArea(t *testing.T) {
	assert.Equal(t, 12, Block{X: 5, Y: 9, Width: 4, Height: 3}.Area())
}
