// Package envi is the ENVI flat-binary raster driver: a headerless data
// file of band-sequential samples next to a small .hdr text header. It
// is the only driver in this tool with true block-addressable I/O on
// both ends, so it is the one to use for rasters that don't fit in
// memory.
//
// The source side accepts single- or multi-band float32 BSQ files
// (data type 4, byte order 0), the sink side writes 3-band byte BSQ.
package envi

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gruppe-adler/dem2rgb/internal/raster"
)

func init() {
	raster.RegisterSource(driver{})
	raster.RegisterSink(driver{})
}

type driver struct{}

func (driver) Name() string         { return "envi" }
func (driver) Extensions() []string { return []string{"bin", "bsq", "envi"} }

// headerPath derives the .hdr sidecar path: replace the extension, or
// append when there is none.
func headerPath(path string) string {
	i := strings.LastIndex(path, ".")
	if i <= strings.LastIndexAny(path, "/\\") {
		return path + ".hdr"
	}
	return path[:i] + ".hdr"
}

const (
	dataTypeByte    = 1
	dataTypeFloat32 = 4
)

// header mirrors the subset of ENVI header fields this driver handles.
type header struct {
	samples      int
	lines        int
	bands        int
	headerOffset int64
	dataType     int
	interleave   string
	byteOrder    int
	description  string
	mapInfo      []string
	coordSys     string
	ignoreValue  *float64
}

func (driver) Open(path string) (raster.Source, error) {
	hdr, err := parseHeader(headerPath(path))
	if err != nil {
		return nil, &raster.SourceError{Path: path, Op: "open", Err: err}
	}
	if hdr.dataType != dataTypeFloat32 {
		return nil, &raster.SourceError{Path: path, Op: "open", Err: fmt.Errorf("unsupported data type %d, want %d (float32)", hdr.dataType, dataTypeFloat32)}
	}
	if hdr.interleave != "bsq" {
		return nil, &raster.SourceError{Path: path, Op: "open", Err: fmt.Errorf("unsupported interleave %q", hdr.interleave)}
	}
	if hdr.byteOrder != 0 {
		return nil, &raster.SourceError{Path: path, Op: "open", Err: fmt.Errorf("unsupported byte order %d", hdr.byteOrder)}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &raster.SourceError{Path: path, Op: "open", Err: err}
	}
	return &source{path: path, file: file, hdr: hdr}, nil
}

type source struct {
	path string
	file *os.File
	hdr  *header
}

func (s *source) Info() raster.Info {
	hdr := s.hdr
	info := raster.Info{
		Width:      hdr.samples,
		Height:     hdr.lines,
		Bands:      hdr.bands,
		TileWidth:  hdr.samples,
		TileHeight: 1,
		Projection: hdr.coordSys,
		NoData:     hdr.ignoreValue,
	}
	if gt, ok := hdr.geoTransform(); ok {
		info.GeoTransform = gt
		info.HasGeoTransform = true
	}
	return info
}

func (s *source) ReadBlock(band int, b raster.Block, dst []float32) error {
	hdr := s.hdr
	if band < 1 || band > hdr.bands {
		return &raster.SourceError{Path: s.path, Op: "band", Err: fmt.Errorf("invalid band number %d", band)}
	}
	if b.X < 0 || b.Y < 0 || b.X+b.Width > hdr.samples || b.Y+b.Height > hdr.lines {
		return &raster.SourceError{Path: s.path, Op: "read", Block: &b, Err: fmt.Errorf("window outside %dx%d raster", hdr.samples, hdr.lines)}
	}
	if len(dst) < b.Area() {
		return &raster.SourceError{Path: s.path, Op: "read", Block: &b, Err: fmt.Errorf("buffer too small")}
	}

	raw := make([]byte, 4*b.Width)
	bandOffset := int64(band-1) * int64(hdr.lines) * int64(hdr.samples)
	for row := 0; row < b.Height; row++ {
		sampleOffset := bandOffset + int64(b.Y+row)*int64(hdr.samples) + int64(b.X)
		if _, err := s.file.ReadAt(raw, hdr.headerOffset+4*sampleOffset); err != nil {
			return &raster.SourceError{Path: s.path, Op: "read", Block: &b, Err: err}
		}
		for col := 0; col < b.Width; col++ {
			bits := binary.LittleEndian.Uint32(raw[4*col:])
			dst[row*b.Width+col] = math.Float32frombits(bits)
		}
	}
	return nil
}

func (s *source) Close() error {
	return s.file.Close()
}

func (driver) Create(path string, width, height int, options []string) (raster.Sink, error) {
	description := "dem2rgb output"
	for _, opt := range options {
		name, value, ok := strings.Cut(opt, "=")
		if !ok {
			return nil, &raster.SinkError{Path: path, Op: "create", Err: fmt.Errorf("malformed creation option %q", opt)}
		}
		switch strings.ToUpper(name) {
		case "DESCRIPTION":
			description = value
		default:
			return nil, &raster.SinkError{Path: path, Op: "create", Err: fmt.Errorf("unknown creation option %q", name)}
		}
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			err = raster.ErrExists
		}
		return nil, &raster.SinkError{Path: path, Op: "create", Err: err}
	}
	// Pre-size the data file so a full disk shows up here, not in the
	// middle of the block loop.
	if err := file.Truncate(3 * int64(width) * int64(height)); err != nil {
		file.Close()
		os.Remove(path)
		return nil, &raster.SinkError{Path: path, Op: "create", Err: err}
	}

	return &sink{
		path:        path,
		file:        file,
		width:       width,
		height:      height,
		description: description,
	}, nil
}

type sink struct {
	path        string
	file        *os.File
	width       int
	height      int
	description string

	projection   string
	geoTransform [6]float64
	hasGeo       bool
}

func (s *sink) SetProjection(proj string) error {
	s.projection = proj
	return nil
}

func (s *sink) SetGeoTransform(gt [6]float64) error {
	if gt[2] != 0 || gt[4] != 0 {
		return &raster.SinkError{Path: s.path, Op: "geotransform", Err: fmt.Errorf("rotated geotransforms are not representable in an ENVI header")}
	}
	s.geoTransform = gt
	s.hasGeo = true
	return nil
}

func (s *sink) WriteBlock(b raster.Block, planes [3][]byte) error {
	if b.X < 0 || b.Y < 0 || b.X+b.Width > s.width || b.Y+b.Height > s.height {
		return &raster.SinkError{Path: s.path, Op: "write", Block: &b, Err: fmt.Errorf("window outside %dx%d raster", s.width, s.height)}
	}
	area := b.Area()
	for band := 0; band < 3; band++ {
		if len(planes[band]) < area {
			return &raster.SinkError{Path: s.path, Op: "write", Block: &b, Err: fmt.Errorf("plane %d too small", band)}
		}
		bandOffset := int64(band) * int64(s.height) * int64(s.width)
		for row := 0; row < b.Height; row++ {
			off := bandOffset + int64(b.Y+row)*int64(s.width) + int64(b.X)
			line := planes[band][row*b.Width : (row+1)*b.Width]
			if _, err := s.file.WriteAt(line, off); err != nil {
				return &raster.SinkError{Path: s.path, Op: "write", Block: &b, Err: err}
			}
		}
	}
	return nil
}

func (s *sink) Close() error {
	if err := s.writeHeader(); err != nil {
		s.file.Close()
		return err
	}
	if err := s.file.Close(); err != nil {
		return &raster.SinkError{Path: s.path, Op: "close", Err: err}
	}
	return nil
}

func (s *sink) writeHeader() error {
	var b strings.Builder
	fmt.Fprintf(&b, "ENVI\n")
	fmt.Fprintf(&b, "description = {%s}\n", s.description)
	fmt.Fprintf(&b, "samples = %d\n", s.width)
	fmt.Fprintf(&b, "lines = %d\n", s.height)
	fmt.Fprintf(&b, "bands = 3\n")
	fmt.Fprintf(&b, "header offset = 0\n")
	fmt.Fprintf(&b, "file type = ENVI Standard\n")
	fmt.Fprintf(&b, "data type = %d\n", dataTypeByte)
	fmt.Fprintf(&b, "interleave = bsq\n")
	fmt.Fprintf(&b, "byte order = 0\n")
	if s.hasGeo {
		gt := s.geoTransform
		fmt.Fprintf(&b, "map info = {Arbitrary, 1, 1, %g, %g, %g, %g, units=Meters}\n",
			gt[0], gt[3], gt[1], -gt[5])
	}
	if s.projection != "" {
		fmt.Fprintf(&b, "coordinate system string = {%s}\n", s.projection)
	}

	if err := os.WriteFile(headerPath(s.path), []byte(b.String()), 0o644); err != nil {
		return &raster.SinkError{Path: s.path, Op: "close", Err: err}
	}
	return nil
}

// geoTransform rebuilds the geotransform from a "map info" header line,
// which anchors pixel (1, 1) at its upper-left corner.
func (h *header) geoTransform() ([6]float64, bool) {
	if len(h.mapInfo) < 7 {
		return [6]float64{}, false
	}
	ulx, err1 := strconv.ParseFloat(h.mapInfo[3], 64)
	uly, err2 := strconv.ParseFloat(h.mapInfo[4], 64)
	xres, err3 := strconv.ParseFloat(h.mapInfo[5], 64)
	yres, err4 := strconv.ParseFloat(h.mapInfo[6], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return [6]float64{}, false
	}
	return [6]float64{ulx, xres, 0, uly, 0, -yres}, true
}

func parseHeader(path string) (*header, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	hdr := &header{bands: 1, interleave: "bsq"}

	scanner := bufio.NewScanner(file)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			if line != "ENVI" {
				return nil, fmt.Errorf("%s: not an ENVI header", path)
			}
			first = false
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		value = strings.TrimPrefix(value, "{")
		value = strings.TrimSuffix(value, "}")
		value = strings.TrimSpace(value)

		switch key {
		case "samples":
			hdr.samples, err = strconv.Atoi(value)
		case "lines":
			hdr.lines, err = strconv.Atoi(value)
		case "bands":
			hdr.bands, err = strconv.Atoi(value)
		case "header offset":
			hdr.headerOffset, err = strconv.ParseInt(value, 10, 64)
		case "data type":
			hdr.dataType, err = strconv.Atoi(value)
		case "interleave":
			hdr.interleave = strings.ToLower(value)
		case "byte order":
			hdr.byteOrder, err = strconv.Atoi(value)
		case "description":
			hdr.description = value
		case "coordinate system string":
			hdr.coordSys = value
		case "map info":
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			hdr.mapInfo = parts
		case "data ignore value":
			var f float64
			f, err = strconv.ParseFloat(value, 64)
			if err == nil {
				hdr.ignoreValue = &f
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%s: bad value for %q: %v", path, key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if hdr.samples <= 0 || hdr.lines <= 0 || hdr.bands <= 0 {
		return nil, fmt.Errorf("%s: missing samples/lines/bands", path)
	}
	return hdr, nil
}
