// Package exr reads and writes a minimal single-part, scanline,
// uncompressed subset of the OpenEXR container used for depth maps.
//
// A file is a fixed header prefix, a length-delimited region of typed
// attributes, and one chunk holding a row-major plane of samples for a
// single channel. Encoding followed by decoding reproduces FLOAT samples
// bit for bit.
package exr

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mrjoshuak/go-depthexr/internal/xdr"
)

// V2i represents a 2D integer vector.
type V2i struct {
	X, Y int32
}

// Box2i represents an axis-aligned 2D integer bounding box.
// Both corners are inclusive.
type Box2i struct {
	Min, Max V2i
}

// NewBox2i returns the box covering a width x height image anchored at
// the origin.
func NewBox2i(width, height int32) Box2i {
	return Box2i{Max: V2i{width - 1, height - 1}}
}

// Width returns the width of the box.
func (b Box2i) Width() int32 {
	return b.Max.X - b.Min.X + 1
}

// Height returns the height of the box.
func (b Box2i) Height() int32 {
	return b.Max.Y - b.Min.Y + 1
}

// IsEmpty returns true if the box has no area.
func (b Box2i) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y
}

// Area returns the number of pixels inside the box.
func (b Box2i) Area() int64 {
	if b.IsEmpty() {
		return 0
	}
	return (int64(b.Max.X) - int64(b.Min.X) + 1) * (int64(b.Max.Y) - int64(b.Min.Y) + 1)
}

func (b Box2i) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
}

// LineOrder defines the vertical order in which rows are stored.
type LineOrder int32

const (
	// LineOrderIncreasing stores rows from top to bottom (y=0 first).
	LineOrderIncreasing LineOrder = 0
	// LineOrderDecreasing stores rows from bottom to top.
	LineOrderDecreasing LineOrder = 1
)

// String returns a string representation of the line order.
func (lo LineOrder) String() string {
	switch lo {
	case LineOrderIncreasing:
		return "increasing_y"
	case LineOrderDecreasing:
		return "decreasing_y"
	default:
		return "unknown"
	}
}

// PixelType is the sample type of a channel.
type PixelType int32

const (
	// PixelTypeUint is a 32-bit unsigned integer sample.
	PixelTypeUint PixelType = 0
	// PixelTypeHalf is a 16-bit IEEE 754 sample.
	PixelTypeHalf PixelType = 1
	// PixelTypeFloat is a 32-bit IEEE 754 sample.
	PixelTypeFloat PixelType = 2
)

// Size returns the number of bytes one sample occupies.
func (p PixelType) Size() int {
	switch p {
	case PixelTypeHalf:
		return 2
	case PixelTypeUint, PixelTypeFloat:
		return 4
	default:
		return 0
	}
}

// String returns a string representation of the pixel type.
func (p PixelType) String() string {
	switch p {
	case PixelTypeUint:
		return "uint"
	case PixelTypeHalf:
		return "half"
	case PixelTypeFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Channel record layout. The name field is fixed width so every record has
// the same size on the wire.
const (
	ChannelNameSize   = 32
	ChannelRecordSize = ChannelNameSize + 4 + 1
	MaxChannelNameLen = ChannelNameSize - 1
)

// Channel describes one image channel.
type Channel struct {
	Name    string
	Type    PixelType
	PLinear bool
}

// DepthChannel returns the single linear float channel used for depth.
func DepthChannel() Channel {
	return Channel{Name: "Z", Type: PixelTypeFloat, PLinear: true}
}

// Validate checks that the channel can be encoded.
func (c Channel) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty channel name", ErrMalformedAttribute)
	}
	if len(c.Name) > MaxChannelNameLen {
		return fmt.Errorf("%w: channel name %q longer than %d bytes", ErrMalformedAttribute, c.Name, MaxChannelNameLen)
	}
	if strings.IndexByte(c.Name, 0) >= 0 {
		return fmt.Errorf("%w: channel name contains null byte", ErrMalformedAttribute)
	}
	if c.Type.Size() == 0 {
		return fmt.Errorf("%w: channel %q has pixel type %d", ErrMalformedAttribute, c.Name, int32(c.Type))
	}
	return nil
}

// ReadBox2i reads a Box2i from the reader.
func ReadBox2i(r *xdr.Reader) (Box2i, error) {
	var b Box2i
	var err error
	if b.Min.X, err = r.ReadInt32(); err != nil {
		return b, err
	}
	if b.Min.Y, err = r.ReadInt32(); err != nil {
		return b, err
	}
	if b.Max.X, err = r.ReadInt32(); err != nil {
		return b, err
	}
	b.Max.Y, err = r.ReadInt32()
	return b, err
}

// WriteBox2i writes a Box2i to the writer.
func WriteBox2i(w *xdr.BufferWriter, b Box2i) {
	w.WriteInt32(b.Min.X)
	w.WriteInt32(b.Min.Y)
	w.WriteInt32(b.Max.X)
	w.WriteInt32(b.Max.Y)
}

// readChannel reads one fixed-size channel record. The name field must be
// null-terminated and zero-padded, and the linear flag must be 0 or 1.
func readChannel(r *xdr.Reader) (Channel, error) {
	var c Channel
	field, err := r.ReadBytes(ChannelNameSize)
	if err != nil {
		return c, err
	}
	end := bytes.IndexByte(field, 0)
	if end < 0 {
		return c, fmt.Errorf("channel name is not null-terminated within %d bytes", ChannelNameSize)
	}
	for _, b := range field[end:] {
		if b != 0 {
			return c, fmt.Errorf("channel %q has non-zero name padding", field[:end])
		}
	}
	pt, err := r.ReadInt32()
	if err != nil {
		return c, err
	}
	lin, err := r.ReadByte()
	if err != nil {
		return c, err
	}
	if lin > 1 {
		return c, fmt.Errorf("channel %q has linear flag %d", field[:end], lin)
	}
	c.Name = string(field[:end])
	c.Type = PixelType(pt)
	c.PLinear = lin == 1
	return c, nil
}

func writeChannel(w *xdr.BufferWriter, c Channel) {
	w.WriteStringN(c.Name, ChannelNameSize)
	w.WriteInt32(int32(c.Type))
	if c.PLinear {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}
