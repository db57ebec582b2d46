package pipeline

import (
	"fmt"
	"image"

	"github.com/mrjoshuak/go-depthexr/depthmap"
	"github.com/mrjoshuak/go-depthexr/exr"
	"github.com/mrjoshuak/go-depthexr/verify"
)

// Result reports what a run produced.
type Result struct {
	Width, Height int
	// HeaderSize is the encoded header size in bytes.
	HeaderSize int
	// Samples holds the depth plane that was written or read.
	Samples []float32
	// Stats compares the written and re-read planes. It is only set by
	// RoundTrip.
	Stats *verify.Stats
}

// Encode reads the raster at cfg.Input, normalizes it to depth and writes
// the container to cfg.Output, plus any configured side files.
func Encode(cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.require("input", "output"); err != nil {
		return nil, err
	}
	log := cfg.Logger.Named("encode")

	gray, err := depthmap.ReadFile(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reading %s: %w", cfg.Input, err)
	}
	width, height := gray.Rect.Dx(), gray.Rect.Dy()
	log.Debug("raster loaded", "path", cfg.Input, "width", width, "height", height)

	samples := cfg.Range.ToDepth(depthmap.Levels(gray))
	h, err := exr.WriteFile(cfg.Output, samples, width, height, cfg.EXR)
	if err != nil {
		return nil, fmt.Errorf("pipeline: writing %s: %w", cfg.Output, err)
	}
	log.Info("container written", "path", cfg.Output,
		"width", width, "height", height,
		"bytes", h.Size()+len(samples)*h.Channel().Type.Size(),
		"channel", h.Channel().Name, "type", h.Channel().Type)

	if err := writeSideFiles(cfg, samples, gray); err != nil {
		return nil, err
	}
	return &Result{Width: width, Height: height, HeaderSize: h.Size(), Samples: samples}, nil
}

// Decode reads the container at cfg.Input and writes its samples as a gray
// raster to cfg.Raster, plus any configured side files.
func Decode(cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.require("input", "raster"); err != nil {
		return nil, err
	}
	log := cfg.Logger.Named("decode")

	img, err := exr.ReadFile(cfg.Input, cfg.EXR)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reading %s: %w", cfg.Input, err)
	}
	width, height := img.Width(), img.Height()
	log.Debug("container loaded", "path", cfg.Input, "width", width, "height", height,
		"compression", img.Header.Compression)

	gray, err := depthmap.FromLevels(cfg.Range.ToLevels(img.Samples), width, height)
	if err != nil {
		return nil, err
	}
	if err := depthmap.WriteFile(cfg.Raster, gray); err != nil {
		return nil, fmt.Errorf("pipeline: writing %s: %w", cfg.Raster, err)
	}
	log.Info("raster written", "path", cfg.Raster, "width", width, "height", height)

	if err := writeSideFiles(cfg, img.Samples, gray); err != nil {
		return nil, err
	}
	return &Result{Width: width, Height: height, HeaderSize: img.Header.Size(), Samples: img.Samples}, nil
}

// RoundTrip encodes cfg.Input into cfg.Output, decodes the file again and
// compares both planes within cfg.Tolerance. When cfg.Raster is set the
// decoded plane is also quantized back to a raster.
//
// A mismatch is returned as an error matching verify.ErrValueMismatch or
// verify.ErrLengthMismatch; the Result is still returned so callers can
// report the statistics.
func RoundTrip(cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.require("input", "output"); err != nil {
		return nil, err
	}
	log := cfg.Logger.Named("roundtrip")

	// Side files describe the decoded plane, so Encode does not write them.
	enc := cfg
	enc.Raster, enc.Text, enc.Preview = "", "", ""
	res, err := Encode(enc)
	if err != nil {
		return nil, err
	}

	img, err := exr.ReadFile(cfg.Output, cfg.EXR)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reading back %s: %w", cfg.Output, err)
	}
	if img.Width() != res.Width || img.Height() != res.Height {
		return res, fmt.Errorf("pipeline: read back %dx%d, wrote %dx%d",
			img.Width(), img.Height(), res.Width, res.Height)
	}

	stats := verify.Summarize(res.Samples, img.Samples)
	res.Stats = &stats
	if err := verify.Compare(res.Samples, img.Samples, cfg.Tolerance); err != nil {
		log.Error("verification failed", "error", err, "max_diff", stats.MaxDiff)
		return res, err
	}
	log.Info("verification passed", "samples", stats.Count, "exact", stats.Exact,
		"max_diff", stats.MaxDiff, "tolerance", cfg.Tolerance)

	gray, err := depthmap.FromLevels(cfg.Range.ToLevels(img.Samples), res.Width, res.Height)
	if err != nil {
		return res, err
	}
	if cfg.Raster != "" {
		if err := depthmap.WriteFile(cfg.Raster, gray); err != nil {
			return res, fmt.Errorf("pipeline: writing %s: %w", cfg.Raster, err)
		}
		log.Info("raster written", "path", cfg.Raster)
	}
	if err := writeSideFiles(cfg, img.Samples, gray); err != nil {
		return res, err
	}
	return res, nil
}

func writeSideFiles(cfg Config, samples []float32, gray *image.Gray) error {
	log := cfg.Logger
	width, height := gray.Rect.Dx(), gray.Rect.Dy()

	if cfg.Text != "" {
		if err := depthmap.WriteTextFile(cfg.Text, samples, width, height, cfg.Range); err != nil {
			return fmt.Errorf("pipeline: writing %s: %w", cfg.Text, err)
		}
		log.Debug("text dump written", "path", cfg.Text)
	}

	if cfg.Preview != "" {
		thumb, err := depthmap.Preview(gray, cfg.PreviewWidth)
		if err != nil {
			return err
		}
		if err := depthmap.WriteFile(cfg.Preview, thumb); err != nil {
			return fmt.Errorf("pipeline: writing %s: %w", cfg.Preview, err)
		}
		log.Debug("preview written", "path", cfg.Preview,
			"width", thumb.Rect.Dx(), "height", thumb.Rect.Dy())
	}
	return nil
}
