package exr

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// DepthImage is a decoded depth file: its header and the sample plane in
// row-major order, top row first.
type DepthImage struct {
	Header  *Header
	Samples []float32
}

// Width returns the image width.
func (img *DepthImage) Width() int {
	return img.Header.Width()
}

// Height returns the image height.
func (img *DepthImage) Height() int {
	return img.Header.Height()
}

// Encode writes a complete file (header followed by samples) to w.
// The samples slice is not modified.
func Encode(w io.Writer, samples []float32, width, height int, cfg Config) (*Header, error) {
	h, err := NewHeader(width, height, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := h.WriteTo(w); err != nil {
		return nil, err
	}
	if err := h.WritePlane(w, samples); err != nil {
		return nil, err
	}
	return h, nil
}

// Decode reads a complete file from r.
func Decode(r io.Reader, cfg Config) (*DepthImage, error) {
	h, err := DecodeHeader(r, cfg)
	if err != nil {
		return nil, err
	}
	samples, err := h.ReadPlane(r)
	if err != nil {
		return nil, err
	}
	return &DepthImage{Header: h, Samples: samples}, nil
}

// WriteFile encodes samples into a new file at path, replacing any
// existing file. The file is closed on every return path.
func WriteFile(path string, samples []float32, width, height int, cfg Config) (h *Header, err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			h, err = nil, fmt.Errorf("%w: %v", ErrIO, cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	h, err = Encode(bw, samples, width, height, cfg)
	if err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return h, nil
}

// ReadFile decodes the file at path.
func ReadFile(path string, cfg Config) (*DepthImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	return Decode(bufio.NewReader(f), cfg)
}
