package depthmap

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrjoshuak/go-jpeg2000"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format identifies a raster file encoding.
type Format int

const (
	FormatPNG Format = iota
	FormatTIFF
	FormatBMP
	// FormatJ2K is a raw JPEG 2000 codestream. It can be read but not
	// written: the encoder does not preserve 8-bit gray levels.
	FormatJ2K
	// FormatJP2 is a boxed JPEG 2000 file. It can be read but not written.
	FormatJP2
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatTIFF:
		return "tiff"
	case FormatBMP:
		return "bmp"
	case FormatJ2K:
		return "j2k"
	case FormatJP2:
		return "jp2"
	default:
		return "unknown"
	}
}

// CanWrite reports whether Encode supports f.
func (f Format) CanWrite() bool {
	switch f {
	case FormatPNG, FormatTIFF, FormatBMP:
		return true
	default:
		return false
	}
}

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	case ".bmp":
		return FormatBMP, nil
	case ".j2k", ".j2c":
		return FormatJ2K, nil
	case ".jp2":
		return FormatJP2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedRaster, filepath.Ext(path))
	}
}

// Decode reads a raster and reduces it to 8-bit gray.
func Decode(r io.Reader, f Format) (*image.Gray, error) {
	var (
		img image.Image
		err error
	)
	switch f {
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatTIFF:
		img, err = tiff.Decode(r)
	case FormatBMP:
		img, err = bmp.Decode(r)
	case FormatJ2K, FormatJP2:
		img, err = jpeg2000.Decode(r)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedRaster, f)
	}
	if err != nil {
		return nil, fmt.Errorf("depthmap: decode %v: %w", f, err)
	}
	return ToGray(img), nil
}

// Encode writes img in format f.
func Encode(w io.Writer, img image.Image, f Format) error {
	var err error
	switch f {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case FormatBMP:
		err = bmp.Encode(w, img)
	default:
		return fmt.Errorf("%w: cannot write %v", ErrUnsupportedRaster, f)
	}
	if err != nil {
		return fmt.Errorf("depthmap: encode %v: %w", f, err)
	}
	return nil
}

// ReadFile decodes the raster at path, choosing the format by extension.
func ReadFile(path string) (*image.Gray, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Decode(bufio.NewReader(file), f)
}

// WriteFile encodes img to path, choosing the format by extension.
func WriteFile(path string, img image.Image) (err error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if !f.CanWrite() {
		return fmt.Errorf("%w: cannot write %v", ErrUnsupportedRaster, f)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(file)
	if err := Encode(bw, img, f); err != nil {
		return err
	}
	return bw.Flush()
}

// ToGray converts img to an 8-bit gray image anchored at the origin.
// 16-bit samples keep their high byte and color is reduced to luminance.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.SetGray(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray))
		}
	}
	return g
}

// Levels returns the gray levels of img in row-major order.
func Levels(img *image.Gray) []uint8 {
	r := img.Rect
	w, h := r.Dx(), r.Dy()
	out := make([]uint8, 0, w*h)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := img.PixOffset(r.Min.X, y)
		out = append(out, img.Pix[off:off+w]...)
	}
	return out
}

// FromLevels wraps row-major gray levels in an image.
func FromLevels(levels []uint8, width, height int) (*image.Gray, error) {
	if width <= 0 || height <= 0 || len(levels) != width*height {
		return nil, fmt.Errorf("%w: %d levels for %dx%d", ErrSizeMismatch, len(levels), width, height)
	}
	return &image.Gray{
		Pix:    levels,
		Stride: width,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}
