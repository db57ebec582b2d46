package depthmap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// WriteText writes a human-readable dump of a depth plane: a short header
// with the dimensions and range, then one line of space-separated samples
// per row. Values are printed with six significant digits.
func WriteText(w io.Writer, samples []float32, width, height int, rng Range) error {
	if width <= 0 || height <= 0 || len(samples) != width*height {
		return fmt.Errorf("%w: %d samples for %dx%d", ErrSizeMismatch, len(samples), width, height)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Width: %d\n", width)
	fmt.Fprintf(bw, "Height: %d\n", height)
	fmt.Fprintf(bw, "Min Depth Value: %s\n", formatSample(rng.Min))
	fmt.Fprintf(bw, "Max Depth Value: %s\n", formatSample(rng.Max))
	bw.WriteString("Depth Data:\n")

	var num []byte
	for y := 0; y < height; y++ {
		for _, v := range samples[y*width : (y+1)*width] {
			num = strconv.AppendFloat(num[:0], float64(v), 'g', 6, 32)
			bw.Write(num)
			bw.WriteByte(' ')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatSample(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', 6, 32)
}

// WriteTextFile writes the text dump to path. Paths ending in ".gz" are
// gzip-compressed.
func WriteTextFile(path string, samples []float32, width, height int, rng Range) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return WriteText(f, samples, width, height, rng)
	}
	zw := gzip.NewWriter(f)
	if err := WriteText(zw, samples, width, height, rng); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
