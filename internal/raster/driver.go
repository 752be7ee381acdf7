package raster

import (
	"fmt"
	"sort"
	"strings"
)

// SourceDriver opens existing datasets. Extensions returns the file
// extensions (without dot, lower case) the driver is probed for.
type SourceDriver interface {
	Name() string
	Extensions() []string
	Open(path string) (Source, error)
}

// SinkDriver creates new datasets. Options are format-specific
// NAME=VALUE creation options.
type SinkDriver interface {
	Name() string
	Create(path string, width, height int, options []string) (Sink, error)
}

var (
	sourceDrivers = map[string]SourceDriver{}
	sinkDrivers   = map[string]SinkDriver{}
)

// RegisterSource registers a source driver. Meant to be called from
// driver package init functions.
func RegisterSource(d SourceDriver) {
	sourceDrivers[strings.ToLower(d.Name())] = d
}

// RegisterSink registers a sink driver.
func RegisterSink(d SinkDriver) {
	sinkDrivers[strings.ToLower(d.Name())] = d
}

// OpenSource probes the registered source drivers by file extension and
// opens the dataset.
func OpenSource(path string) (Source, error) {
	ext := probeExtension(path)
	for _, d := range sourceDrivers {
		for _, e := range d.Extensions() {
			if e == ext {
				return d.Open(path)
			}
		}
	}
	return nil, &SourceError{Path: path, Op: "open", Err: fmt.Errorf("no driver for %q", ext)}
}

// CreateSink creates a destination dataset with the named format driver.
func CreateSink(format, path string, width, height int, options []string) (Sink, error) {
	d, ok := sinkDrivers[strings.ToLower(format)]
	if !ok {
		return nil, &ConfigError{Reason: fmt.Sprintf("%s: invalid driver name", format)}
	}
	return d.Create(path, width, height, options)
}

// SinkFormats returns the names of all registered sink drivers, sorted.
func SinkFormats() []string {
	names := make([]string, 0, len(sinkDrivers))
	for name := range sinkDrivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SourceFormats returns the names of all registered source drivers, sorted.
func SourceFormats() []string {
	names := make([]string, 0, len(sourceDrivers))
	for name := range sourceDrivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// probeExtension returns the lower-case extension of path, treating a
// trailing .gz as part of the inner extension ("asc.gz" -> "asc.gz").
func probeExtension(path string) string {
	lower := strings.ToLower(path)
	gz := strings.HasSuffix(lower, ".gz")
	if gz {
		lower = strings.TrimSuffix(lower, ".gz")
	}
	i := strings.LastIndex(lower, ".")
	if i < 0 {
		if gz {
			return "gz"
		}
		return ""
	}
	ext := lower[i+1:]
	if gz {
		ext += ".gz"
	}
	return ext
}
