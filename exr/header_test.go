package exr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
)

// golden2x2 builds the expected file for a 2x2 plane of 1,2,3,4 with the
// default configuration, independently of the encoder.
func golden2x2() []byte {
	var b bytes.Buffer
	le := binary.LittleEndian
	put := func(v any) { binary.Write(&b, le, v) }

	put(uint32(20000630))
	put(int32(2))
	put(int32(1))
	put([4]int32{0, 0, 1, 1})
	put([4]int32{0, 0, 1, 1})
	put(float32(1))
	put(int32(0))
	put(int32(100)) // attribute region size

	b.WriteString("channels\x00channels\x00")
	put(int32(38))
	name := make([]byte, 32)
	name[0] = 'Z'
	b.Write(name)
	put(int32(2))
	b.WriteByte(1)
	b.WriteByte(0)

	b.WriteString("compression\x00string\x00")
	put(int32(16))
	b.WriteString("PIZ_COMPRESSION\x00")
	b.WriteByte(0)

	put([]float32{1, 2, 3, 4})
	return b.Bytes()
}

func TestGoldenFile2x2(t *testing.T) {
	var buf bytes.Buffer
	h, err := Encode(&buf, []float32{1, 2, 3, 4}, 2, 2, DefaultConfig())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := golden2x2()
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("encoded bytes differ\n got %v\nwant %v", buf.Bytes(), want)
	}
	if h.Size() != 156 {
		t.Errorf("Size() = %d, want 156", h.Size())
	}
	if got := binary.LittleEndian.Uint32(buf.Bytes()[offsetMagic:]); got != MagicNumber {
		t.Errorf("magic = %d", got)
	}
	if got := binary.LittleEndian.Uint32(buf.Bytes()[offsetAspectRatio:]); math.Float32frombits(got) != 1 {
		t.Errorf("pixel aspect ratio bits = 0x%08X", got)
	}

	img, err := Decode(bytes.NewReader(want), DefaultConfig())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Width() != 2 || img.Height() != 2 {
		t.Errorf("decoded %dx%d, want 2x2", img.Width(), img.Height())
	}
	for i, v := range []float32{1, 2, 3, 4} {
		if img.Samples[i] != v {
			t.Errorf("sample %d = %v, want %v", i, img.Samples[i], v)
		}
	}
	if img.Header.Compression != DefaultCompression {
		t.Errorf("Compression = %q", img.Header.Compression)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	sizes := [][2]int{{1, 1}, {2, 2}, {640, 480}, {1, 4096}, {4096, 1}, {math.MaxInt32, 3}}
	for _, s := range sizes {
		var buf bytes.Buffer
		if err := WriteHeader(&buf, s[0], s[1]); err != nil {
			t.Fatalf("WriteHeader(%v) error = %v", s, err)
		}
		buf.WriteString("payload")

		w, h, err := ReadHeader(&buf)
		if err != nil {
			t.Fatalf("ReadHeader(%v) error = %v", s, err)
		}
		if w != s[0] || h != s[1] {
			t.Errorf("ReadHeader() = %dx%d, want %dx%d", w, h, s[0], s[1])
		}
		if rest := buf.String(); rest != "payload" {
			t.Errorf("stream left at %q, want payload", rest)
		}
	}
}

func TestNewHeaderDimensions(t *testing.T) {
	tests := []struct {
		w, h int
		want error
	}{
		{0, 1, ErrInvalidDimensions},
		{1, 0, ErrInvalidDimensions},
		{-3, 2, ErrInvalidDimensions},
		{math.MaxInt32 + 1, 1, ErrDimensionOverflow},
	}
	for _, tt := range tests {
		if _, err := NewHeader(tt.w, tt.h, DefaultConfig()); !errors.Is(err, tt.want) {
			t.Errorf("NewHeader(%d, %d) error = %v, want %v", tt.w, tt.h, err, tt.want)
		}
	}
}

func TestHeaderConfig(t *testing.T) {
	cfg := Config{
		Channel:          Channel{Name: "depth", Type: PixelTypeHalf},
		Compression:      NoCompression,
		PixelAspectRatio: 2,
		LineOrder:        LineOrderDecreasing,
		Extra: []*Attribute{
			{Name: "owner", Value: StringValue("scanner-3")},
			{Name: "frame", Value: IntValue(12)},
		},
	}
	h, err := NewHeader(3, 5, cfg)
	if err != nil {
		t.Fatalf("NewHeader() error = %v", err)
	}
	if h.Version != DefaultVersion {
		t.Errorf("Version = %d, want default %d", h.Version, DefaultVersion)
	}
	data, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	if len(data) != h.Size() {
		t.Errorf("len(MarshalBinary()) = %d, Size() = %d", len(data), h.Size())
	}

	var got Header
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if got.Channel() != cfg.Channel {
		t.Errorf("Channel() = %+v, want %+v", got.Channel(), cfg.Channel)
	}
	if got.Compression != NoCompression || got.PixelAspectRatio != 2 || got.LineOrder != LineOrderDecreasing {
		t.Errorf("decoded %q %v %v", got.Compression, got.PixelAspectRatio, got.LineOrder)
	}
	if a := got.Get("owner"); a == nil || a.Value != StringValue("scanner-3") {
		t.Errorf("Get(owner) = %v", a)
	}
	if a := got.Get("frame"); a == nil || a.Value != IntValue(12) {
		t.Errorf("Get(frame) = %v", a)
	}
	if got.Get("missing") != nil {
		t.Error("Get(missing) != nil")
	}
}

func TestHeaderNilExtra(t *testing.T) {
	for name, extra := range map[string][]*Attribute{
		"nil attribute": {nil},
		"nil value":     {{Name: "owner"}},
		"after valid":   {{Name: "frame", Value: IntValue(1)}, nil},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Extra = extra
			if _, err := NewHeader(2, 2, cfg); !errors.Is(err, ErrMalformedAttribute) {
				t.Errorf("NewHeader() error = %v, want ErrMalformedAttribute", err)
			}

			h, err := NewHeader(2, 2, DefaultConfig())
			if err != nil {
				t.Fatalf("NewHeader() error = %v", err)
			}
			h.Extra = extra
			if _, err := h.MarshalBinary(); !errors.Is(err, ErrMalformedAttribute) {
				t.Errorf("MarshalBinary() error = %v, want ErrMalformedAttribute", err)
			}
			if _, err := Encode(io.Discard, []float32{1, 2, 3, 4}, 2, 2, cfg); !errors.Is(err, ErrMalformedAttribute) {
				t.Errorf("Encode() error = %v, want ErrMalformedAttribute", err)
			}
			h.Size()
			h.Get("owner")
		})
	}
}

func TestHeaderVersionConfig(t *testing.T) {
	h, err := NewHeader(2, 2, Config{Version: 3})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	if _, err := DecodeHeader(bytes.NewReader(data), DefaultConfig()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("DecodeHeader(v3, want v2) error = %v, want ErrUnsupportedFormat", err)
	}
	got, err := DecodeHeader(bytes.NewReader(data), Config{Version: 3})
	if err != nil {
		t.Fatalf("DecodeHeader(v3) error = %v", err)
	}
	if got.Version != 3 {
		t.Errorf("Version = %d", got.Version)
	}
}

func TestReadHeaderBadMagic(t *testing.T) {
	data := golden2x2()
	binary.LittleEndian.PutUint32(data[offsetMagic:], 0)
	if _, _, err := ReadHeader(bytes.NewReader(data)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ReadHeader() error = %v, want ErrUnsupportedFormat", err)
	}
	// A short stream with a wrong magic is still reported as a format error.
	if _, _, err := ReadHeader(bytes.NewReader(data[:10])); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ReadHeader(short) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestReadHeaderTruncated(t *testing.T) {
	data := golden2x2()
	for _, n := range []int{0, 3, 20, PrefixSize - 1, PrefixSize, PrefixSize + 50, 155} {
		_, _, err := ReadHeader(bytes.NewReader(data[:n]))
		if !errors.Is(err, ErrTruncatedHeader) {
			t.Errorf("ReadHeader(%d bytes) error = %v, want ErrTruncatedHeader", n, err)
		}
	}
}

func TestReadHeaderFieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		patch func(b []byte)
		want  error
	}{
		{"version", func(b []byte) { binary.LittleEndian.PutUint32(b[offsetVersion:], 1) }, ErrUnsupportedFormat},
		{"chunks", func(b []byte) { binary.LittleEndian.PutUint32(b[offsetChunkCount:], 2) }, ErrUnsupportedFormat},
		{"data window", func(b []byte) { binary.LittleEndian.PutUint32(b[offsetDataWindow+8:], 0xFFFFFFFF) }, ErrInvalidDimensions},
		{"data window too wide", func(b []byte) { binary.LittleEndian.PutUint32(b[offsetDataWindow:], 0x80000000) }, ErrDimensionOverflow},
		{"display window", func(b []byte) { binary.LittleEndian.PutUint32(b[offsetDisplayWindow+12:], 0xFFFFFFFE) }, ErrInvalidDimensions},
		{"aspect ratio", func(b []byte) { binary.LittleEndian.PutUint32(b[offsetAspectRatio:], 0) }, ErrInvalidDimensions},
		{"line order", func(b []byte) { binary.LittleEndian.PutUint32(b[offsetLineOrder:], 2) }, ErrUnsupportedFormat},
		{"region size zero", func(b []byte) { binary.LittleEndian.PutUint32(b[offsetRegionSize:], 0) }, ErrMalformedAttribute},
		{"region size huge", func(b []byte) { binary.LittleEndian.PutUint32(b[offsetRegionSize:], 1<<30) }, ErrBufferOverflow},
		{"channel type", func(b []byte) { b[PrefixSize+22+32] = 0 }, ErrUnsupportedFormat},
		{"channel length", func(b []byte) { b[PrefixSize+18] = 39 }, ErrMalformedAttribute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := golden2x2()
			tt.patch(data)
			_, err := DecodeHeader(bytes.NewReader(data), DefaultConfig())
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodeHeader() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// region builds a header prefix for a 2x2 image followed by the given
// attribute region.
func region(attrs []byte) []byte {
	h, _ := NewHeader(2, 2, DefaultConfig())
	data, _ := h.MarshalBinary()
	out := append([]byte(nil), data[:PrefixSize]...)
	binary.LittleEndian.PutUint32(out[offsetRegionSize:], uint32(len(attrs)))
	return append(out, attrs...)
}

func TestHeaderRegionTolerance(t *testing.T) {
	// No attributes at all, plus padding after the terminator.
	h, err := DecodeHeader(bytes.NewReader(region([]byte{0, 0, 0, 0})), DefaultConfig())
	if err != nil {
		t.Fatalf("DecodeHeader(empty region) error = %v", err)
	}
	if h.Channel() != DepthChannel() {
		t.Errorf("default channel = %+v", h.Channel())
	}
	if h.Compression != NoCompression {
		t.Errorf("default compression = %q", h.Compression)
	}

	dup := append(rawAttribute("frame", "int", 4, []byte{1, 0, 0, 0}), rawAttribute("frame", "int", 4, []byte{2, 0, 0, 0})...)
	if _, err := DecodeHeader(bytes.NewReader(region(append(dup, 0))), DefaultConfig()); !errors.Is(err, ErrMalformedAttribute) {
		t.Errorf("duplicate attribute error = %v, want ErrMalformedAttribute", err)
	}

	wrongType := rawAttribute("channels", "int", 4, []byte{1, 0, 0, 0})
	if _, err := DecodeHeader(bytes.NewReader(region(append(wrongType, 0))), DefaultConfig()); !errors.Is(err, ErrMalformedAttribute) {
		t.Errorf("mistyped channels error = %v, want ErrMalformedAttribute", err)
	}

	// An attribute running past the region end without a terminator.
	noEnd := rawAttribute("frame", "int", 4, []byte{1, 0, 0, 0})
	if _, err := DecodeHeader(bytes.NewReader(region(noEnd)), DefaultConfig()); !errors.Is(err, ErrTruncatedData) {
		t.Errorf("unterminated region error = %v, want ErrTruncatedData", err)
	}
}

func TestHeaderMaxSize(t *testing.T) {
	cfg := Config{MaxHeaderSize: 120}
	_, err := NewHeader(2, 2, cfg)
	if err != nil {
		t.Fatalf("NewHeader() error = %v", err)
	}
	h, _ := NewHeader(2, 2, cfg)
	if _, err := h.MarshalBinary(); !errors.Is(err, ErrBufferOverflow) {
		t.Errorf("MarshalBinary() over limit error = %v, want ErrBufferOverflow", err)
	}

	h, _ = NewHeader(2, 2, DefaultConfig())
	data, _ := h.MarshalBinary()
	if _, err := DecodeHeader(bytes.NewReader(data), cfg); !errors.Is(err, ErrBufferOverflow) {
		t.Errorf("DecodeHeader() over limit error = %v, want ErrBufferOverflow", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestHeaderIOErrors(t *testing.T) {
	if err := WriteHeader(failingWriter{}, 2, 2); !errors.Is(err, ErrIO) {
		t.Errorf("WriteHeader() error = %v, want ErrIO", err)
	}
	if _, _, err := ReadHeader(failingReader{}); !errors.Is(err, ErrIO) {
		t.Errorf("ReadHeader() error = %v, want ErrIO", err)
	}
}
