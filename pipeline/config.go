// Package pipeline drives conversions between grayscale depth rasters and
// depth container files, and verifies that written files read back intact.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/mrjoshuak/go-depthexr/depthmap"
	"github.com/mrjoshuak/go-depthexr/exr"
	"github.com/mrjoshuak/go-depthexr/verify"
)

// DefaultPreviewWidth is the thumbnail width used when none is configured.
const DefaultPreviewWidth = 256

// ErrMissingPath is returned when a required input or output path is empty.
var ErrMissingPath = errors.New("pipeline: missing path")

// Config describes one pipeline run.
type Config struct {
	// Input is the file read by the run: a raster for Encode and RoundTrip,
	// a container for Decode.
	Input string
	// Output is the container written by Encode and RoundTrip.
	Output string
	// Raster, if set, receives the samples quantized back to gray levels.
	Raster string
	// Text, if set, receives a text dump of the samples. A ".gz" suffix
	// compresses it.
	Text string
	// Preview, if set, receives a scaled-down copy of the gray raster.
	Preview      string
	PreviewWidth int

	Range     depthmap.Range
	Tolerance float64
	EXR       exr.Config

	Logger hclog.Logger
}

// DefaultConfig returns a Config with the default range, tolerance and
// container settings and a logger that discards output.
func DefaultConfig() Config {
	return Config{
		PreviewWidth: DefaultPreviewWidth,
		Range:        depthmap.DefaultRange,
		Tolerance:    verify.DefaultTolerance,
		EXR:          exr.DefaultConfig(),
		Logger:       hclog.NewNullLogger(),
	}
}

func (c Config) withDefaults() Config {
	if c.PreviewWidth <= 0 {
		c.PreviewWidth = DefaultPreviewWidth
	}
	if c.Range == (depthmap.Range{}) {
		c.Range = depthmap.DefaultRange
	}
	if c.Tolerance == 0 {
		c.Tolerance = verify.DefaultTolerance
	}
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
	return c
}

func (c Config) require(paths ...string) error {
	for _, p := range paths {
		var v string
		switch p {
		case "input":
			v = c.Input
		case "output":
			v = c.Output
		case "raster":
			v = c.Raster
		}
		if v == "" {
			return fmt.Errorf("%w: %s", ErrMissingPath, p)
		}
	}
	for _, out := range []string{c.Raster, c.Preview} {
		if out == "" {
			continue
		}
		f, err := depthmap.FormatFromPath(out)
		if err != nil {
			return err
		}
		if !f.CanWrite() {
			return fmt.Errorf("%w: cannot write %v", depthmap.ErrUnsupportedRaster, f)
		}
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("pipeline: negative tolerance %v", c.Tolerance)
	}
	return c.Range.Validate()
}
