package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mrjoshuak/go-depthexr/depthmap"
	"github.com/mrjoshuak/go-depthexr/exr"
)

// Issue is a single problem found while inspecting a file.
type Issue struct {
	Severity string // "error" or "warning"
	Message  string
}

// Report describes a container file.
type Report struct {
	Path     string
	FileSize int64
	// Header is nil when the header could not be decoded.
	Header *exr.Header

	Samples    int
	Min, Max   float32
	NaN        int
	Inf        int
	OutOfRange int
	// Trailing counts bytes after the sample plane.
	Trailing int64

	Issues []Issue
}

// Valid reports whether no error-level issue was found.
func (r *Report) Valid() bool {
	for _, is := range r.Issues {
		if is.Severity == "error" {
			return false
		}
	}
	return true
}

func (r *Report) errorf(format string, args ...any) {
	r.Issues = append(r.Issues, Issue{"error", fmt.Sprintf(format, args...)})
}

func (r *Report) warnf(format string, args ...any) {
	r.Issues = append(r.Issues, Issue{"warning", fmt.Sprintf(format, args...)})
}

// Inspect decodes the container at path and reports its header and sample
// statistics. Decoding problems are recorded as issues; only failures to
// open the file are returned as errors. Samples outside rng are counted
// and reported as a warning.
func Inspect(path string, cfg exr.Config, rng depthmap.Range) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rep := &Report{Path: path}
	if fi, err := f.Stat(); err == nil {
		rep.FileSize = fi.Size()
	}

	br := bufio.NewReader(f)
	h, err := exr.DecodeHeader(br, cfg)
	if err != nil {
		rep.errorf("header: %v", err)
		return rep, nil
	}
	rep.Header = h

	samples, err := h.ReadPlane(br)
	if err != nil {
		rep.errorf("payload: %v", err)
		return rep, nil
	}
	rep.scan(samples, rng)

	rep.Trailing, err = io.Copy(io.Discard, br)
	if err != nil {
		return nil, err
	}
	if rep.Trailing > 0 {
		rep.warnf("%d bytes after the sample plane", rep.Trailing)
	}
	if h.Compression != exr.NoCompression {
		rep.warnf("compression %q is declared but samples are stored uncompressed", h.Compression)
	}
	return rep, nil
}

func (r *Report) scan(samples []float32, rng depthmap.Range) {
	r.Samples = len(samples)
	first := true
	for _, v := range samples {
		f := float64(v)
		switch {
		case math.IsNaN(f):
			r.NaN++
			continue
		case math.IsInf(f, 0):
			r.Inf++
			continue
		}
		if v < rng.Min || v > rng.Max {
			r.OutOfRange++
		}
		if first || v < r.Min {
			r.Min = v
		}
		if first || v > r.Max {
			r.Max = v
		}
		first = false
	}
	if r.NaN > 0 {
		r.warnf("%d NaN samples", r.NaN)
	}
	if r.Inf > 0 {
		r.warnf("%d infinite samples", r.Inf)
	}
	if r.OutOfRange > 0 {
		r.warnf("%d samples outside %v", r.OutOfRange, rng)
	}
}

// WriteReport prints rep in a human-readable form.
func WriteReport(w io.Writer, rep *Report) error {
	status := "OK"
	if !rep.Valid() {
		status = "INVALID"
	}
	fmt.Fprintf(w, "%s: %s\n", rep.Path, status)

	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "  file size:\t%d bytes\n", rep.FileSize)
	if h := rep.Header; h != nil {
		fmt.Fprintf(tw, "  version:\t%d\n", h.Version)
		fmt.Fprintf(tw, "  data window:\t%v (%dx%d)\n", h.DataWindow, h.Width(), h.Height())
		fmt.Fprintf(tw, "  display window:\t%v\n", h.DisplayWindow)
		fmt.Fprintf(tw, "  pixel aspect ratio:\t%g\n", h.PixelAspectRatio)
		fmt.Fprintf(tw, "  line order:\t%v\n", h.LineOrder)
		fmt.Fprintf(tw, "  compression:\t%s\n", h.Compression)
		for _, c := range h.Channels {
			lin := ""
			if c.PLinear {
				lin = ", linear"
			}
			fmt.Fprintf(tw, "  channel:\t%s (%v%s)\n", c.Name, c.Type, lin)
		}
		fmt.Fprintf(tw, "  header size:\t%d bytes\n", h.Size())
		for _, a := range h.Extra {
			fmt.Fprintf(tw, "  attribute:\t%s (%s) = %v\n", a.Name, a.Type(), a.Value)
		}
	}
	if rep.Samples > 0 {
		fmt.Fprintf(tw, "  samples:\t%d, min %g, max %g\n", rep.Samples, rep.Min, rep.Max)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, is := range rep.Issues {
		if _, err := fmt.Fprintf(w, "  [%s] %s\n", strings.ToUpper(is.Severity), is.Message); err != nil {
			return err
		}
	}
	return nil
}
