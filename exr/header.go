package exr

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/mrjoshuak/go-depthexr/internal/xdr"
)

// MagicNumber identifies a container file.
const MagicNumber = 20000630

// Header defaults.
const (
	DefaultVersion       = 2
	DefaultMaxHeaderSize = 4096

	// DefaultCompression is the compression label written by default. It is
	// a declaration only: the pixel chunk is always stored uncompressed.
	DefaultCompression = "PIZ_COMPRESSION"
	// NoCompression is assumed when a file carries no compression label.
	NoCompression = "NO_COMPRESSION"
)

// Fixed prefix layout. The attribute region starts right after the region
// size field and is followed directly by the pixel chunk.
const (
	offsetMagic         = 0
	offsetVersion       = 4
	offsetChunkCount    = 8
	offsetDataWindow    = 12
	offsetDisplayWindow = 28
	offsetAspectRatio   = 44
	offsetLineOrder     = 48
	offsetRegionSize    = 52

	// PrefixSize is the size of the fixed part of the header.
	PrefixSize = 56
)

// Standard attribute names.
const (
	attrChannels    = "channels"
	attrCompression = "compression"
)

// Config controls how headers are built and which headers are accepted.
// The zero value of any field means "use the default".
type Config struct {
	// Version is written to and required from the version field.
	Version int32
	// Channel describes the single stored channel.
	Channel Channel
	// Compression is the declared compression label.
	Compression string
	// PixelAspectRatio is written to the pixel aspect ratio field.
	PixelAspectRatio float32
	// LineOrder selects the vertical order of stored rows.
	LineOrder LineOrder
	// MaxHeaderSize caps the encoded header, prefix included.
	MaxHeaderSize int
	// Extra attributes are written after the standard ones.
	Extra []*Attribute
}

// DefaultConfig returns the configuration for a linear float "Z" depth file.
func DefaultConfig() Config {
	return Config{
		Version:          DefaultVersion,
		Channel:          DepthChannel(),
		Compression:      DefaultCompression,
		PixelAspectRatio: 1,
		LineOrder:        LineOrderIncreasing,
		MaxHeaderSize:    DefaultMaxHeaderSize,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Version == 0 {
		c.Version = d.Version
	}
	if c.Channel.Name == "" {
		c.Channel = d.Channel
	}
	if c.Compression == "" {
		c.Compression = d.Compression
	}
	if c.PixelAspectRatio == 0 {
		c.PixelAspectRatio = d.PixelAspectRatio
	}
	if c.MaxHeaderSize <= 0 {
		c.MaxHeaderSize = d.MaxHeaderSize
	}
	return c
}

// Header is the decoded form of the container header.
type Header struct {
	Version          int32
	ChunkCount       int32
	DataWindow       Box2i
	DisplayWindow    Box2i
	PixelAspectRatio float32
	LineOrder        LineOrder
	Channels         ChannelList
	Compression      string
	// Extra holds attributes other than channels and compression, in file
	// order.
	Extra []*Attribute

	maxSize int
}

// NewHeader builds the header for a width x height depth plane.
// The data and display windows are both (0,0)-(width-1,height-1).
func NewHeader(width, height int, cfg Config) (*Header, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if width > math.MaxInt32 || height > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %dx%d does not fit a box2i", ErrDimensionOverflow, width, height)
	}
	cfg = cfg.withDefaults()

	window := NewBox2i(int32(width), int32(height))
	h := &Header{
		Version:          cfg.Version,
		ChunkCount:       1,
		DataWindow:       window,
		DisplayWindow:    window,
		PixelAspectRatio: cfg.PixelAspectRatio,
		LineOrder:        cfg.LineOrder,
		Channels:         ChannelList{cfg.Channel},
		Compression:      cfg.Compression,
		Extra:            cfg.Extra,
		maxSize:          cfg.MaxHeaderSize,
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Width returns the data window width.
func (h *Header) Width() int {
	return int(h.DataWindow.Width())
}

// Height returns the data window height.
func (h *Header) Height() int {
	return int(h.DataWindow.Height())
}

// Channel returns the stored channel.
func (h *Header) Channel() Channel {
	if len(h.Channels) == 0 {
		return DepthChannel()
	}
	return h.Channels[0]
}

// Get returns the extra attribute with the given name, or nil.
func (h *Header) Get(name string) *Attribute {
	for _, a := range h.Extra {
		if a != nil && a.Name == name {
			return a
		}
	}
	return nil
}

// Validate checks the header against what this package can store.
func (h *Header) Validate() error {
	if h.ChunkCount != 1 {
		return fmt.Errorf("%w: %d chunks", ErrUnsupportedFormat, h.ChunkCount)
	}
	if h.DataWindow.IsEmpty() {
		return fmt.Errorf("%w: data window %v", ErrInvalidDimensions, h.DataWindow)
	}
	if dw := h.DataWindow; int64(dw.Max.X)-int64(dw.Min.X) >= math.MaxInt32 ||
		int64(dw.Max.Y)-int64(dw.Min.Y) >= math.MaxInt32 {
		return fmt.Errorf("%w: data window %v", ErrDimensionOverflow, dw)
	}
	if h.DisplayWindow.IsEmpty() {
		return fmt.Errorf("%w: display window %v", ErrInvalidDimensions, h.DisplayWindow)
	}
	if math.IsNaN(float64(h.PixelAspectRatio)) || math.IsInf(float64(h.PixelAspectRatio), 0) || h.PixelAspectRatio <= 0 {
		return fmt.Errorf("%w: pixel aspect ratio %v", ErrInvalidDimensions, h.PixelAspectRatio)
	}
	if h.LineOrder != LineOrderIncreasing && h.LineOrder != LineOrderDecreasing {
		return fmt.Errorf("%w: line order %d", ErrUnsupportedFormat, int32(h.LineOrder))
	}
	if len(h.Channels) != 1 {
		return fmt.Errorf("%w: %d channels, want 1", ErrUnsupportedFormat, len(h.Channels))
	}
	if err := h.Channels.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAttribute, err)
	}
	switch h.Channels[0].Type {
	case PixelTypeFloat, PixelTypeHalf:
	default:
		return fmt.Errorf("%w: %s samples", ErrUnsupportedFormat, h.Channels[0].Type)
	}
	for i, a := range h.Extra {
		if a == nil || a.Value == nil {
			return fmt.Errorf("%w: extra attribute %d has no value", ErrMalformedAttribute, i)
		}
	}
	return nil
}

// regionAttributes returns the attributes of the variable region in write
// order.
func (h *Header) regionAttributes() []*Attribute {
	attrs := make([]*Attribute, 0, 2+len(h.Extra))
	attrs = append(attrs,
		&Attribute{Name: attrChannels, Value: h.Channels},
		&Attribute{Name: attrCompression, Value: StringValue(h.Compression)},
	)
	return append(attrs, h.Extra...)
}

// MarshalBinary encodes the header.
func (h *Header) MarshalBinary() ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	maxSize := h.maxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxHeaderSize
	}

	w := xdr.NewLimitedBufferWriter(256, maxSize)
	w.WriteUint32(MagicNumber)
	w.WriteInt32(h.Version)
	w.WriteInt32(h.ChunkCount)
	WriteBox2i(w, h.DataWindow)
	WriteBox2i(w, h.DisplayWindow)
	w.WriteFloat32(h.PixelAspectRatio)
	w.WriteInt32(int32(h.LineOrder))
	w.WriteInt32(0) // region size, patched below
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBufferOverflow, err)
	}

	seen := make(map[string]bool)
	for _, a := range h.regionAttributes() {
		if seen[a.Name] {
			return nil, fmt.Errorf("%w: duplicate attribute %q", ErrMalformedAttribute, a.Name)
		}
		seen[a.Name] = true
		if err := WriteAttribute(w, a); err != nil {
			return nil, err
		}
	}
	w.WriteByte(0)
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBufferOverflow, err)
	}

	if err := w.PutInt32At(offsetRegionSize, int32(w.Len()-PrefixSize)); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// WriteTo writes the encoded header to w.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	data, err := h.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	if err != nil {
		return int64(n), fmt.Errorf("%w: writing header: %v", ErrIO, err)
	}
	return int64(n), nil
}

// WriteHeader writes the default depth header for a width x height plane.
func WriteHeader(w io.Writer, width, height int) error {
	h, err := NewHeader(width, height, DefaultConfig())
	if err != nil {
		return err
	}
	_, err = h.WriteTo(w)
	return err
}

// ReadHeader reads a header written with the default configuration and
// returns the data window dimensions. The stream is left positioned at the
// first sample.
func ReadHeader(r io.Reader) (width, height int, err error) {
	h, err := DecodeHeader(r, DefaultConfig())
	if err != nil {
		return 0, 0, err
	}
	return h.Width(), h.Height(), nil
}

// DecodeHeader reads and validates a header. cfg supplies the accepted
// version and the size limit; other fields are ignored.
func DecodeHeader(r io.Reader, cfg Config) (*Header, error) {
	cfg = cfg.withDefaults()

	prefix := make([]byte, PrefixSize)
	n, err := io.ReadFull(r, prefix)
	if err != nil {
		if n >= 4 && xdr.ByteOrder.Uint32(prefix) != MagicNumber {
			return nil, fmt.Errorf("%w: bad magic number", ErrUnsupportedFormat)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: got %d of %d bytes", ErrTruncatedHeader, n, PrefixSize)
		}
		return nil, fmt.Errorf("%w: reading header: %v", ErrIO, err)
	}

	h, regionSize, err := parsePrefix(prefix, cfg)
	if err != nil {
		return nil, err
	}

	region := make([]byte, regionSize)
	if n, err := io.ReadFull(r, region); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: attribute region has %d of %d bytes", ErrTruncatedHeader, n, regionSize)
		}
		return nil, fmt.Errorf("%w: reading header: %v", ErrIO, err)
	}

	if err := h.parseRegion(region); err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// UnmarshalBinary decodes a header from data. Bytes after the header are
// ignored.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < PrefixSize {
		if len(data) >= 4 && xdr.ByteOrder.Uint32(data) != MagicNumber {
			return fmt.Errorf("%w: bad magic number", ErrUnsupportedFormat)
		}
		return fmt.Errorf("%w: got %d of %d bytes", ErrTruncatedHeader, len(data), PrefixSize)
	}
	parsed, regionSize, err := parsePrefix(data[:PrefixSize], DefaultConfig())
	if err != nil {
		return err
	}
	if len(data)-PrefixSize < regionSize {
		return fmt.Errorf("%w: attribute region has %d of %d bytes", ErrTruncatedHeader, len(data)-PrefixSize, regionSize)
	}
	if err := parsed.parseRegion(data[PrefixSize : PrefixSize+regionSize]); err != nil {
		return err
	}
	if err := parsed.Validate(); err != nil {
		return err
	}
	*h = *parsed
	return nil
}

// Size returns the encoded size of the header in bytes.
func (h *Header) Size() int {
	n := PrefixSize + 1
	for _, a := range h.regionAttributes() {
		if a == nil || a.Value == nil {
			continue
		}
		n += len(a.Name) + 1 + len(a.Value.Type()) + 1 + 4 + a.Value.Size()
	}
	return n
}

func parsePrefix(prefix []byte, cfg Config) (*Header, int, error) {
	r := xdr.NewReader(prefix)

	magic, _ := r.ReadUint32()
	if magic != MagicNumber {
		return nil, 0, fmt.Errorf("%w: bad magic number %d", ErrUnsupportedFormat, magic)
	}
	h := &Header{maxSize: cfg.MaxHeaderSize}
	h.Version, _ = r.ReadInt32()
	if h.Version != cfg.Version {
		return nil, 0, fmt.Errorf("%w: version %d, want %d", ErrUnsupportedFormat, h.Version, cfg.Version)
	}
	h.ChunkCount, _ = r.ReadInt32()
	h.DataWindow, _ = ReadBox2i(r)
	h.DisplayWindow, _ = ReadBox2i(r)
	h.PixelAspectRatio, _ = r.ReadFloat32()
	lo, _ := r.ReadInt32()
	h.LineOrder = LineOrder(lo)
	regionSize, err := r.ReadInt32()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrTruncatedHeader, err)
	}

	if regionSize < 1 {
		return nil, 0, fmt.Errorf("%w: attribute region size %d", ErrMalformedAttribute, regionSize)
	}
	if int64(regionSize)+PrefixSize > int64(cfg.MaxHeaderSize) {
		return nil, 0, fmt.Errorf("%w: header of %d bytes exceeds limit %d",
			ErrBufferOverflow, int64(regionSize)+PrefixSize, cfg.MaxHeaderSize)
	}
	return h, int(regionSize), nil
}

// parseRegion reads attributes up to the terminator. Anything after the
// terminator is padding. Absent standard attributes take their defaults.
func (h *Header) parseRegion(region []byte) error {
	r := xdr.NewReader(region)
	seen := make(map[string]bool)
	for {
		attr, err := ReadAttribute(r)
		if err != nil {
			return err
		}
		if attr == nil {
			break
		}
		if seen[attr.Name] {
			return fmt.Errorf("%w: duplicate attribute %q", ErrMalformedAttribute, attr.Name)
		}
		seen[attr.Name] = true

		switch attr.Name {
		case attrChannels:
			cl, ok := attr.Value.(ChannelList)
			if !ok {
				return fmt.Errorf("%w: %s has type %s", ErrMalformedAttribute, attr.Name, attr.Type())
			}
			h.Channels = cl
		case attrCompression:
			s, ok := attr.Value.(StringValue)
			if !ok {
				return fmt.Errorf("%w: %s has type %s", ErrMalformedAttribute, attr.Name, attr.Type())
			}
			h.Compression = string(s)
		default:
			h.Extra = append(h.Extra, attr)
		}
	}

	if h.Channels == nil {
		h.Channels = ChannelList{DepthChannel()}
	}
	if h.Compression == "" {
		h.Compression = NoCompression
	}
	return nil
}
