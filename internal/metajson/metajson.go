// Package metajson writes the JSON metadata sidecar that accompanies a
// converted raster, so consumers can decode the RGB values back into
// elevations without guessing the scale parameters.
package metajson

import (
	"encoding/json"
	"os"

	"github.com/gruppe-adler/dem2rgb/internal/raster"
)

// NoData describes the nodata mapping of a conversion.
type NoData struct {
	Source float64 `json:"source"`
	Dest   int     `json:"dest"`
}

// MetaJSON is the sidecar document.
type MetaJSON struct {
	Encoding   string      `json:"encoding"`
	Source     string      `json:"source"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Projection string      `json:"projection,omitempty"`
	Bounds     *[4]float64 `json:"bounds,omitempty"` // west, south, east, north
	ScaleMin   int         `json:"scaleMin"`
	ScaleMax   int         `json:"scaleMax"`
	Resolution float64     `json:"resolution"`
	NoData     *NoData     `json:"nodata,omitempty"`
}

// New assembles the sidecar document for a conversion of src.
func New(sourcePath string, info raster.Info, scaleMin, scaleMax int, resolution float64, nodata *NoData) MetaJSON {
	meta := MetaJSON{
		Encoding:   "terrain-rgb-web",
		Source:     sourcePath,
		Width:      info.Width,
		Height:     info.Height,
		Projection: info.Projection,
		ScaleMin:   scaleMin,
		ScaleMax:   scaleMax,
		Resolution: resolution,
		NoData:     nodata,
	}
	if info.HasGeoTransform {
		bound := raster.Bounds(info)
		meta.Bounds = &[4]float64{bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y()}
	}
	return meta
}

// Write marshals meta to the given path.
func Write(path string, meta MetaJSON) error {
	bytes, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err = f.Write(append(bytes, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
