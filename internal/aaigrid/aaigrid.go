// Package aaigrid is the ESRI ASCII grid source driver (.asc, optionally
// gzip compressed). The format is plain text and not seekable, so the
// whole grid is parsed into memory at open and block reads are served
// from there. The native tile is reported as one scanline.
package aaigrid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/gruppe-adler/dem2rgb/internal/raster"
)

func init() {
	raster.RegisterSource(driver{})
}

type driver struct{}

func (driver) Name() string         { return "aaigrid" }
func (driver) Extensions() []string { return []string{"asc", "asc.gz"} }

func (driver) Open(path string) (raster.Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &raster.SourceError{Path: path, Op: "open", Err: err}
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, &raster.SourceError{Path: path, Op: "open", Err: err}
		}
		defer gz.Close()
		reader = gz
	}

	grid, err := parseGrid(reader)
	if err != nil {
		return nil, &raster.SourceError{Path: path, Op: "open", Err: err}
	}

	src := &source{path: path, grid: grid}
	src.projection = readProjectionSidecar(path)
	return src, nil
}

// readProjectionSidecar picks up an optional .prj file next to the grid.
func readProjectionSidecar(path string) string {
	base := strings.TrimSuffix(path, ".gz")
	base = strings.TrimSuffix(base, ".GZ")
	i := strings.LastIndex(base, ".")
	if i < 0 {
		return ""
	}
	wkt, err := os.ReadFile(base[:i] + ".prj")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(wkt))
}

type source struct {
	path       string
	grid       *grid
	projection string
}

func (s *source) Info() raster.Info {
	g := s.grid
	info := raster.Info{
		Width:      g.cols,
		Height:     g.rows,
		Bands:      1,
		TileWidth:  g.cols,
		TileHeight: 1,
		Projection: s.projection,
	}

	// The header anchors the grid at its lower-left corner (or cell
	// center); the geotransform wants the upper-left corner.
	xll, yll := g.xll, g.yll
	if g.centered {
		xll -= g.cellSize / 2
		yll -= g.cellSize / 2
	}
	info.GeoTransform = [6]float64{
		xll, g.cellSize, 0,
		yll + float64(g.rows)*g.cellSize, 0, -g.cellSize,
	}
	info.HasGeoTransform = true

	if g.hasNoData {
		nodata := g.noData
		info.NoData = &nodata
	}
	return info
}

func (s *source) ReadBlock(band int, b raster.Block, dst []float32) error {
	if band != 1 {
		return &raster.SourceError{Path: s.path, Op: "band", Err: fmt.Errorf("invalid band number %d", band)}
	}
	g := s.grid
	if b.X < 0 || b.Y < 0 || b.X+b.Width > g.cols || b.Y+b.Height > g.rows {
		return &raster.SourceError{Path: s.path, Op: "read", Block: &b, Err: fmt.Errorf("window outside %dx%d grid", g.cols, g.rows)}
	}
	if len(dst) < b.Area() {
		return &raster.SourceError{Path: s.path, Op: "read", Block: &b, Err: fmt.Errorf("buffer too small")}
	}
	for row := 0; row < b.Height; row++ {
		off := (b.Y+row)*g.cols + b.X
		copy(dst[row*b.Width:(row+1)*b.Width], g.data[off:off+b.Width])
	}
	return nil
}

func (s *source) Close() error {
	s.grid = nil
	return nil
}

// grid is a fully parsed ESRI ASCII raster, samples row-major top-down.
type grid struct {
	cols, rows int
	xll, yll   float64
	centered   bool // xll/yll reference the cell center, not the corner
	cellSize   float64
	hasNoData  bool
	noData     float64
	data       []float32
}

// parseGrid reads the header and data lines. The header ends with the
// first line whose keyword is not a known header keyword; NODATA_VALUE
// is the only optional header.
func parseGrid(reader io.Reader) (*grid, error) {
	g := &grid{cellSize: -1, cols: -1, rows: -1}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var haveX, haveY bool
	inHeader := true
	row := 0

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if inHeader {
			keyword := strings.ToUpper(fields[0])
			if isHeaderKeyword(keyword) {
				if len(fields) != 2 {
					return nil, fmt.Errorf("header line %s must have exactly two fields", keyword)
				}
				if err := g.setHeader(keyword, fields[1], &haveX, &haveY); err != nil {
					return nil, err
				}
				continue
			}

			if g.cols <= 0 || g.rows <= 0 || g.cellSize <= 0 || !haveX || !haveY {
				return nil, fmt.Errorf("grid doesn't include all mandatory headers")
			}
			inHeader = false
			g.data = make([]float32, g.cols*g.rows)
		}

		if row >= g.rows {
			break
		}
		if len(fields) < g.cols {
			return nil, fmt.Errorf("data row %d is too short", row)
		}
		for col := 0; col < g.cols; col++ {
			f, err := strconv.ParseFloat(fields[col], 32)
			if err != nil {
				return nil, err
			}
			g.data[row*g.cols+col] = float32(f)
		}
		row++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if inHeader {
		return nil, fmt.Errorf("grid has no data rows")
	}
	if row < g.rows {
		return nil, fmt.Errorf("grid ends after %d of %d rows", row, g.rows)
	}

	return g, nil
}

func isHeaderKeyword(keyword string) bool {
	switch keyword {
	case "NCOLS", "NROWS", "XLLCORNER", "YLLCORNER", "XLLCENTER", "YLLCENTER", "CELLSIZE", "NODATA_VALUE":
		return true
	}
	return false
}

func (g *grid) setHeader(keyword, value string, haveX, haveY *bool) error {
	switch keyword {
	case "NCOLS", "NROWS":
		i, err := strconv.ParseUint(value, 10, 31)
		if err != nil {
			return err
		}
		if keyword == "NCOLS" {
			g.cols = int(i)
		} else {
			g.rows = int(i)
		}
	default:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		switch keyword {
		case "XLLCORNER":
			g.xll = f
			*haveX = true
		case "YLLCORNER":
			g.yll = f
			*haveY = true
		case "XLLCENTER":
			g.xll = f
			g.centered = true
			*haveX = true
		case "YLLCENTER":
			g.yll = f
			g.centered = true
			*haveY = true
		case "CELLSIZE":
			if f <= 0 {
				return fmt.Errorf("CELLSIZE must be greater than 0")
			}
			g.cellSize = f
		case "NODATA_VALUE":
			g.noData = f
			g.hasNoData = true
		}
	}
	return nil
}
