// Package pngout is the PNG sink driver. PNG is not block-addressable,
// so the driver accumulates the full output image in memory and encodes
// it on Close; the pipeline's own buffers stay bounded regardless.
// Georeferencing goes into a world file (.pgw) and a .prj sidecar.
package pngout

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/gruppe-adler/dem2rgb/internal/raster"
)

func init() {
	raster.RegisterSink(driver{})
}

type driver struct{}

func (driver) Name() string { return "png" }

func (driver) Create(path string, width, height int, options []string) (raster.Sink, error) {
	level := png.DefaultCompression
	for _, opt := range options {
		name, value, ok := strings.Cut(opt, "=")
		if !ok {
			return nil, &raster.SinkError{Path: path, Op: "create", Err: fmt.Errorf("malformed creation option %q", opt)}
		}
		switch strings.ToUpper(name) {
		case "COMPRESSION":
			switch strings.ToLower(value) {
			case "none":
				level = png.NoCompression
			case "fast":
				level = png.BestSpeed
			case "default":
				level = png.DefaultCompression
			case "best":
				level = png.BestCompression
			default:
				return nil, &raster.SinkError{Path: path, Op: "create", Err: fmt.Errorf("unknown COMPRESSION %q", value)}
			}
		default:
			return nil, &raster.SinkError{Path: path, Op: "create", Err: fmt.Errorf("unknown creation option %q", name)}
		}
	}

	// Claim the path right away so a clashing destination fails before
	// any block is processed.
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			err = raster.ErrExists
		}
		return nil, &raster.SinkError{Path: path, Op: "create", Err: err}
	}

	return &sink{
		path:  path,
		file:  file,
		img:   image.NewRGBA(image.Rect(0, 0, width, height)),
		level: level,
	}, nil
}

type sink struct {
	path  string
	file  *os.File
	img   *image.RGBA
	level png.CompressionLevel

	projection   string
	geoTransform [6]float64
	hasGeo       bool
}

func (s *sink) SetProjection(proj string) error {
	s.projection = proj
	return nil
}

func (s *sink) SetGeoTransform(gt [6]float64) error {
	s.geoTransform = gt
	s.hasGeo = true
	return nil
}

func (s *sink) WriteBlock(b raster.Block, planes [3][]byte) error {
	bounds := s.img.Bounds()
	if b.X < 0 || b.Y < 0 || b.X+b.Width > bounds.Dx() || b.Y+b.Height > bounds.Dy() {
		return &raster.SinkError{Path: s.path, Op: "write", Block: &b, Err: fmt.Errorf("window outside %dx%d image", bounds.Dx(), bounds.Dy())}
	}
	area := b.Area()
	for _, plane := range planes {
		if len(plane) < area {
			return &raster.SinkError{Path: s.path, Op: "write", Block: &b, Err: fmt.Errorf("plane too small")}
		}
	}

	for row := 0; row < b.Height; row++ {
		pix := s.img.Pix[s.img.PixOffset(b.X, b.Y+row):]
		for col := 0; col < b.Width; col++ {
			i := row*b.Width + col
			pix[4*col+0] = planes[0][i]
			pix[4*col+1] = planes[1][i]
			pix[4*col+2] = planes[2][i]
			pix[4*col+3] = 255
		}
	}
	return nil
}

func (s *sink) Close() error {
	enc := png.Encoder{CompressionLevel: s.level}
	if err := enc.Encode(s.file, s.img); err != nil {
		s.file.Close()
		return &raster.SinkError{Path: s.path, Op: "close", Err: err}
	}
	if err := s.file.Close(); err != nil {
		return &raster.SinkError{Path: s.path, Op: "close", Err: err}
	}

	if s.hasGeo {
		if err := s.writeWorldFile(); err != nil {
			return err
		}
	}
	if s.projection != "" {
		if err := os.WriteFile(sidecarPath(s.path, ".prj"), []byte(s.projection+"\n"), 0o644); err != nil {
			return &raster.SinkError{Path: s.path, Op: "close", Err: err}
		}
	}
	return nil
}

// writeWorldFile emits the six-line ESRI world file. The anchor point is
// the center of the top-left pixel, not its corner.
func (s *sink) writeWorldFile() error {
	gt := s.geoTransform
	content := fmt.Sprintf("%.10g\n%.10g\n%.10g\n%.10g\n%.10g\n%.10g\n",
		gt[1], gt[4], gt[2], gt[5],
		gt[0]+gt[1]/2+gt[2]/2,
		gt[3]+gt[4]/2+gt[5]/2)
	if err := os.WriteFile(sidecarPath(s.path, ".pgw"), []byte(content), 0o644); err != nil {
		return &raster.SinkError{Path: s.path, Op: "close", Err: err}
	}
	return nil
}

func sidecarPath(path, ext string) string {
	i := strings.LastIndex(path, ".")
	if i <= strings.LastIndexAny(path, "/\\") {
		return path + ext
	}
	return path[:i] + ext
}
