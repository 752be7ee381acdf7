package raster

import (
	"errors"
	"fmt"
)

// ErrExists is returned (wrapped) when a destination path already exists.
var ErrExists = errors.New("file exists")

// ConfigError reports an invalid run configuration. Config errors are
// always detected before the destination dataset is created.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

// SourceError reports a failure of the source dataset. Block is set for
// read failures and names the offending rectangle.
type SourceError struct {
	Path  string
	Op    string // "open", "band", "geotransform", "read"
	Block *Block
	Err   error
}

func (e *SourceError) Error() string {
	if e.Block != nil {
		return fmt.Sprintf("%s: can't %s [%d;%d] %dx%d: %v",
			e.Path, e.Op, e.Block.X, e.Block.Y, e.Block.Width, e.Block.Height, e.Err)
	}
	return fmt.Sprintf("%s: can't %s: %v", e.Path, e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// SinkError reports a failure of the destination dataset. Block is set
// for write failures and names the offending rectangle.
type SinkError struct {
	Path  string
	Op    string // "create", "projection", "geotransform", "write", "close"
	Block *Block
	Err   error
}

func (e *SinkError) Error() string {
	if e.Block != nil {
		return fmt.Sprintf("%s: can't %s [%d;%d] %dx%d: %v",
			e.Path, e.Op, e.Block.X, e.Block.Y, e.Block.Width, e.Block.Height, e.Err)
	}
	return fmt.Sprintf("%s: can't %s: %v", e.Path, e.Op, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// ResourceError reports a failure to set up run resources (buffers,
// worker pool).
type ResourceError struct {
	Reason string
}

func (e *ResourceError) Error() string {
	return "resource failure: " + e.Reason
}
