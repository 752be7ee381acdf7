package terrainrgb

import (
	"fmt"
	"math"

	"github.com/gruppe-adler/dem2rgb/internal/raster"
)

/*
	Elevation samples are coded into two bytes of precision:

	value = 256 * (elevation * resolution - scaleMin) / scaleRange

	Channel 0 carries floor(value), channel 1 carries the next 8
	fractional bits as floor(value * 256) mod 256, channel 2 is
	reserved and always 0. A decoder recovers the elevation with

	elevation = (scaleMin + (R + G/256) * scaleRange/256) / resolution

	All arithmetic is IEEE-754 single precision, floor rounds toward
	negative infinity.
*/

// Options configures an Encoder.
type Options struct {
	// Resolution is the multiplier applied to every elevation sample
	// before normalization. Must be > 0.
	Resolution float32

	// ScaleMin/ScaleMax is the elevation window mapped onto the output
	// code space. ScaleMax must be >= ScaleMin.
	ScaleMin int
	ScaleMax int

	// SourceNoData, if non-nil, is the sentinel sample value that maps
	// straight to DestNoData (the resolution multiplier is not applied).
	SourceNoData *float32

	// DestNoData is the elevation category nodata samples are coded as.
	// Must lie inside [ScaleMin, ScaleMax] when SourceNoData is set.
	DestNoData int
}

// Encoder maps elevation samples to 3-byte codes. It is immutable and
// carries no per-call state, so one Encoder may be shared by any number
// of goroutines over disjoint pixel ranges.
//
// Values normalizing outside [0, 256) wrap: the coded bytes are the low
// 8 bits of the floored value, they are not clamped.
type Encoder struct {
	resolution float32
	scaleMin   float32
	scaleRange float32
	hasNoData  bool
	srcNoData  float32
	dstNoData  float32
}

// New validates opts and builds an Encoder.
func New(opts Options) (*Encoder, error) {
	scaleRange := opts.ScaleMax - opts.ScaleMin + 1
	if scaleRange <= 0 {
		return nil, &raster.ConfigError{Reason: "invalid scale"}
	}
	if opts.Resolution <= 0 {
		return nil, &raster.ConfigError{Reason: "invalid resolution"}
	}
	if opts.SourceNoData != nil && (opts.DestNoData < opts.ScaleMin || opts.ScaleMax < opts.DestNoData) {
		return nil, &raster.ConfigError{Reason: "destination NODATA is outside scale range"}
	}

	e := &Encoder{
		resolution: opts.Resolution,
		scaleMin:   float32(opts.ScaleMin),
		scaleRange: float32(scaleRange),
		dstNoData:  float32(opts.DestNoData),
	}
	if opts.SourceNoData != nil {
		e.hasNoData = true
		e.srcNoData = *opts.SourceNoData
	}
	return e, nil
}

// Encode codes len(src) samples into the three destination planes.
// Each plane must hold at least len(src) bytes.
func (e *Encoder) Encode(src []float32, dst [3][]byte) {
	for i, sample := range src {
		elev := sample
		if e.hasNoData && sample == e.srcNoData {
			elev = e.dstNoData
		} else {
			elev *= e.resolution
		}

		v := 256 * (elev - e.scaleMin) / e.scaleRange
		dst[0][i] = byte(int64(math.Floor(float64(v))))
		dst[1][i] = byte(int64(math.Floor(float64(v*256))) % 256)
		dst[2][i] = 0
	}
}

func (e *Encoder) String() string {
	s := fmt.Sprintf("terrain-rgb-web r=%g scale=[%g;%g]",
		e.resolution, e.scaleMin, e.scaleMin+e.scaleRange-1)
	if e.hasNoData {
		s += fmt.Sprintf(" nodata=%g->%g", e.srcNoData, e.dstNoData)
	}
	return s
}
