package convert

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/gruppe-adler/dem2rgb/internal/raster"
)

// Config are the knobs of a conversion run. Defaults < config file <
// command line flags, in that order.
type Config struct {
	Band            int      `toml:"band"`
	Format          string   `toml:"format"`
	Workers         int      `toml:"workers"`
	Resolution      float64  `toml:"resolution"`
	Scale           string   `toml:"scale"`  // "min max"
	NoData          string   `toml:"nodata"` // "own <dest>" or "<source> <dest>"
	Memory          string   `toml:"memory"` // buffer budget, e.g. "32MiB"
	CreationOptions []string `toml:"creation_options"`

	// derived by Validate
	scaleMin, scaleMax int
	noData             *noDataSpec
	sampleBudget       int
}

type noDataSpec struct {
	own    bool // derive the source value from the dataset
	source float32
	dest   int
}

// DefaultConfig mirrors the historical gdaldem_web defaults: scale
// -12000..10000 m, resolution 1, one worker per CPU, 32MiB buffer.
func DefaultConfig() Config {
	return Config{
		Band:       1,
		Format:     "png",
		Workers:    runtime.NumCPU(),
		Resolution: 1.0,
		Scale:      "-12000 10000",
		Memory:     "32MiB",
	}
}

// LoadFile merges a TOML config file into c. Unknown keys are rejected,
// they are almost always typos.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return &raster.ConfigError{Reason: fmt.Sprintf("%s: %v", path, err)}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return &raster.ConfigError{Reason: fmt.Sprintf("%s: unknown key %q", path, undecoded[0].String())}
	}
	return nil
}

// Validate checks everything that can be checked without touching the
// source dataset and computes the derived fields. All failures here
// happen before the destination is created.
func (c *Config) Validate() error {
	var err error
	if c.scaleMin, c.scaleMax, err = parseScale(c.Scale); err != nil {
		return err
	}
	if c.scaleMax-c.scaleMin+1 <= 0 {
		return &raster.ConfigError{Reason: "invalid scale"}
	}
	if c.noData, err = parseNoData(c.NoData); err != nil {
		return err
	}
	if c.noData != nil && (c.noData.dest < c.scaleMin || c.scaleMax < c.noData.dest) {
		return &raster.ConfigError{Reason: "destination NODATA is outside scale range"}
	}
	if c.Resolution <= 0 {
		return &raster.ConfigError{Reason: "invalid resolution"}
	}
	if c.Workers < 1 {
		return &raster.ConfigError{Reason: fmt.Sprintf("invalid number of workers: %d", c.Workers)}
	}
	if c.Band < 1 {
		return &raster.ConfigError{Reason: fmt.Sprintf("invalid band number %d", c.Band)}
	}
	if c.Format == "" {
		return &raster.ConfigError{Reason: "no output format"}
	}

	bytes, err := humanize.ParseBytes(c.Memory)
	if err != nil {
		return &raster.ConfigError{Reason: fmt.Sprintf("invalid memory budget %q: %v", c.Memory, err)}
	}
	c.sampleBudget = int(bytes / 4) // float32 samples
	if c.sampleBudget < 1 {
		return &raster.ConfigError{Reason: fmt.Sprintf("memory budget %q is too small", c.Memory)}
	}
	return nil
}

func parseScale(s string) (min, max int, err error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, &raster.ConfigError{Reason: fmt.Sprintf("scale must be \"min max\", got %q", s)}
	}
	if min, err = strconv.Atoi(fields[0]); err != nil {
		return 0, 0, &raster.ConfigError{Reason: "invalid scale"}
	}
	if max, err = strconv.Atoi(fields[1]); err != nil {
		return 0, 0, &raster.ConfigError{Reason: "invalid scale"}
	}
	return min, max, nil
}

func parseNoData(s string) (*noDataSpec, error) {
	if s == "" {
		return nil, nil
	}
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return nil, &raster.ConfigError{Reason: fmt.Sprintf("nodata must be \"own|<num> <num>\", got %q", s)}
	}

	spec := &noDataSpec{}
	if fields[0] == "own" {
		spec.own = true
	} else {
		f, err := strconv.ParseFloat(fields[0], 32)
		if err != nil {
			return nil, &raster.ConfigError{Reason: fmt.Sprintf("invalid nodata source value %q", fields[0])}
		}
		spec.source = float32(f)
	}

	dest, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, &raster.ConfigError{Reason: fmt.Sprintf("invalid nodata destination value %q", fields[1])}
	}
	spec.dest = dest
	return spec, nil
}
