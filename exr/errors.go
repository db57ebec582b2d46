package exr

import (
	"errors"
	"fmt"

	"github.com/mrjoshuak/go-depthexr/internal/xdr"
)

// Codec errors. Callers match these with errors.Is; returned errors wrap
// them with context about the record or field that failed.
var (
	ErrInvalidDimensions  = errors.New("exr: invalid image dimensions")
	ErrMalformedAttribute = errors.New("exr: malformed attribute")
	ErrTruncatedHeader    = errors.New("exr: truncated header")
	ErrTruncatedPayload   = errors.New("exr: truncated pixel data")
	ErrTruncatedData      = errors.New("exr: truncated attribute data")
	ErrUnsupportedFormat  = errors.New("exr: unsupported format")
	ErrDimensionOverflow  = errors.New("exr: image dimensions overflow")
	ErrBufferOverflow     = errors.New("exr: header buffer overflow")
	ErrIO                 = errors.New("exr: i/o failure")
)

// truncated maps an xdr short read onto the truncation error of the layer
// doing the reading. Other errors pass through unchanged.
func truncated(err, kind error, what string) error {
	if errors.Is(err, xdr.ErrShortBuffer) {
		return fmt.Errorf("%w: %s", kind, what)
	}
	return err
}
