package exr

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/mrjoshuak/go-depthexr/half"
	"github.com/mrjoshuak/go-depthexr/internal/xdr"
)

// PlaneLen returns width*height, checking that a plane of that many
// samples of the given byte size is addressable.
func PlaneLen(width, height, sampleSize int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if sampleSize <= 0 {
		sampleSize = 1
	}
	if width > math.MaxInt/height {
		return 0, fmt.Errorf("%w: %dx%d", ErrDimensionOverflow, width, height)
	}
	n := width * height
	if n > math.MaxInt/sampleSize {
		return 0, fmt.Errorf("%w: %d samples of %d bytes", ErrDimensionOverflow, n, sampleSize)
	}
	return n, nil
}

// WritePlane writes width*height float32 samples in row-major order, top
// row first.
func WritePlane(w io.Writer, samples []float32, width, height int) error {
	return writePlane(w, samples, width, height, PixelTypeFloat, LineOrderIncreasing)
}

// ReadPlane reads width*height float32 samples written by WritePlane.
func ReadPlane(r io.Reader, width, height int) ([]float32, error) {
	return readPlane(r, width, height, PixelTypeFloat, LineOrderIncreasing)
}

// WritePlane writes samples using the header's dimensions, channel type and
// line order.
func (h *Header) WritePlane(w io.Writer, samples []float32) error {
	return writePlane(w, samples, h.Width(), h.Height(), h.Channel().Type, h.LineOrder)
}

// ReadPlane reads the sample plane described by the header.
func (h *Header) ReadPlane(r io.Reader) ([]float32, error) {
	return readPlane(r, h.Width(), h.Height(), h.Channel().Type, h.LineOrder)
}

// storedRow maps the i-th row on disk to its image row.
func storedRow(i, height int, order LineOrder) int {
	if order == LineOrderDecreasing {
		return height - 1 - i
	}
	return i
}

func writePlane(w io.Writer, samples []float32, width, height int, pt PixelType, order LineOrder) error {
	size := pt.Size()
	if pt != PixelTypeFloat && pt != PixelTypeHalf {
		return fmt.Errorf("%w: cannot write %s samples", ErrUnsupportedFormat, pt)
	}
	n, err := PlaneLen(width, height, size)
	if err != nil {
		return err
	}
	if len(samples) != n {
		return fmt.Errorf("%w: %d samples for %dx%d plane", ErrInvalidDimensions, len(samples), width, height)
	}

	sw := xdr.NewStreamWriter(w)
	row := make([]byte, width*size)
	for i := 0; i < height; i++ {
		y := storedRow(i, height, order)
		src := samples[y*width : (y+1)*width]
		switch pt {
		case PixelTypeFloat:
			for x, v := range src {
				xdr.ByteOrder.PutUint32(row[x*4:], math.Float32bits(v))
			}
		case PixelTypeHalf:
			for x, v := range src {
				xdr.ByteOrder.PutUint16(row[x*2:], half.FromFloat32(v).Bits())
			}
		}
		if err := sw.WriteBytes(row); err != nil {
			return fmt.Errorf("%w: writing row %d: %v", ErrIO, y, err)
		}
	}
	return nil
}

// readChunk is the number of samples decoded per read. Buffers grow with
// the data actually present, so a header claiming a huge plane cannot force
// a huge allocation before the payload runs out.
const readChunk = 64 << 10

func readPlane(r io.Reader, width, height int, pt PixelType, order LineOrder) ([]float32, error) {
	size := pt.Size()
	if pt != PixelTypeFloat && pt != PixelTypeHalf {
		return nil, fmt.Errorf("%w: cannot read %s samples", ErrUnsupportedFormat, pt)
	}
	n, err := PlaneLen(width, height, size)
	if err != nil {
		return nil, err
	}

	sr := xdr.NewStreamReader(r)
	samples := make([]float32, 0, min(n, readChunk))
	buf := make([]byte, min(n, readChunk)*size)
	for len(samples) < n {
		chunk := buf[:min(n-len(samples), readChunk)*size]
		if err := sr.ReadBytesInto(chunk); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: %d of %d samples", ErrTruncatedPayload, len(samples), n)
			}
			return nil, fmt.Errorf("%w: reading samples: %v", ErrIO, err)
		}
		switch pt {
		case PixelTypeFloat:
			for off := 0; off < len(chunk); off += 4 {
				samples = append(samples, math.Float32frombits(xdr.ByteOrder.Uint32(chunk[off:])))
			}
		case PixelTypeHalf:
			for off := 0; off < len(chunk); off += 2 {
				samples = append(samples, half.FromBits(xdr.ByteOrder.Uint16(chunk[off:])).Float32())
			}
		}
	}

	if order == LineOrderDecreasing {
		for top, bottom := 0, height-1; top < bottom; top, bottom = top+1, bottom-1 {
			a := samples[top*width : (top+1)*width]
			b := samples[bottom*width : (bottom+1)*width]
			for x := range a {
				a[x], b[x] = b[x], a[x]
			}
		}
	}
	return samples, nil
}
