package raster

import (
	"github.com/paulmach/orb"
)

// Block is a rectangular raster subregion, processed as one
// read/transform/write unit.
type Block struct {
	X, Y          int
	Width, Height int
}

// Area returns the number of pixels covered by the block.
func (b Block) Area() int {
	return b.Width * b.Height
}

// Info describes an open raster dataset.
type Info struct {
	Width  int
	Height int
	Bands  int

	// Native tile geometry of the underlying store. Scanline-oriented
	// formats report TileWidth == Width, TileHeight == 1.
	TileWidth  int
	TileHeight int

	Projection      string
	GeoTransform    [6]float64
	HasGeoTransform bool

	// NoData is the sentinel elevation value of the source, if any.
	NoData *float64
}

// Source is an open elevation raster. ReadBlock fills dst with the
// row-major float32 samples of one band inside b; dst must hold at
// least b.Area() samples.
type Source interface {
	Info() Info
	ReadBlock(band int, b Block, dst []float32) error
	Close() error
}

// Sink is a three-band byte raster being written. WriteBlock persists
// the three band-sequential planes of b; each plane holds exactly
// b.Area() bytes.
type Sink interface {
	SetProjection(proj string) error
	SetGeoTransform(gt [6]float64) error
	WriteBlock(b Block, planes [3][]byte) error
	Close() error
}

// Bounds applies the geotransform of info to the raster corners and
// returns the covered georeferenced extent.
func Bounds(info Info) orb.Bound {
	gt := info.GeoTransform
	w, h := float64(info.Width), float64(info.Height)

	corners := []orb.Point{
		apply(gt, 0, 0),
		apply(gt, w, 0),
		apply(gt, 0, h),
		apply(gt, w, h),
	}

	bound := orb.Bound{Min: corners[0], Max: corners[0]}
	for _, c := range corners[1:] {
		bound = bound.Extend(c)
	}
	return bound
}

func apply(gt [6]float64, px, py float64) orb.Point {
	return orb.Point{
		gt[0] + px*gt[1] + py*gt[2],
		gt[3] + px*gt[4] + py*gt[5],
	}
}
