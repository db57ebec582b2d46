// Package depthmap converts between 8-bit grayscale rasters and depth
// samples, and reads and writes the raster and text side files that
// accompany a depth container.
package depthmap

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidRange is returned when a depth range is not finite or
	// its maximum does not exceed its minimum.
	ErrInvalidRange = errors.New("depthmap: invalid depth range")

	// ErrUnsupportedRaster is returned for raster files whose format
	// cannot be read or written.
	ErrUnsupportedRaster = errors.New("depthmap: unsupported raster format")

	// ErrSizeMismatch is returned when a sample slice does not hold
	// width*height values.
	ErrSizeMismatch = errors.New("depthmap: sample count does not match dimensions")
)

// Range maps 8-bit gray levels onto a linear depth interval.
// Level 0 maps to Min and level 255 maps to Max.
type Range struct {
	Min, Max float32
}

// DefaultRange is the interval depth maps are normalized with unless
// configured otherwise.
var DefaultRange = Range{Min: 71.4000015258789, Max: 500}

// Validate reports whether r can be used for conversion.
func (r Range) Validate() error {
	for _, v := range []float32{r.Min, r.Max} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: %v", ErrInvalidRange, r)
		}
	}
	if r.Max <= r.Min {
		return fmt.Errorf("%w: max %v <= min %v", ErrInvalidRange, r.Max, r.Min)
	}
	return nil
}

// Normalize converts a gray level to depth.
// The arithmetic is single precision. The inner conversion forbids a fused
// multiply-add so all platforms produce identical samples.
func (r Range) Normalize(level uint8) float32 {
	return float32(float32(level)/255*(r.Max-r.Min)) + r.Min
}

// Quantize converts depth back to the nearest gray level, clamping values
// outside the range. NaN maps to 0.
func (r Range) Quantize(v float32) uint8 {
	if v != v {
		return 0
	}
	t := math.Round(float64(v-r.Min) / float64(r.Max-r.Min) * 255)
	switch {
	case t <= 0:
		return 0
	case t >= 255:
		return 255
	}
	return uint8(t)
}

// ToDepth normalizes every gray level.
func (r Range) ToDepth(levels []uint8) []float32 {
	out := make([]float32, len(levels))
	for i, l := range levels {
		out[i] = r.Normalize(l)
	}
	return out
}

// ToLevels quantizes every depth sample.
func (r Range) ToLevels(samples []float32) []uint8 {
	out := make([]uint8, len(samples))
	for i, v := range samples {
		out[i] = r.Quantize(v)
	}
	return out
}

func (r Range) String() string {
	return fmt.Sprintf("[%v, %v]", r.Min, r.Max)
}
