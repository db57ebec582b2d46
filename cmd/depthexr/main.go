// depthexr converts 8-bit grayscale depth rasters to single-channel depth
// container files and back, and checks that written files decode to the
// samples that were stored.
//
// Usage:
//
//	depthexr encode [flags] <raster> <output.exr>
//	depthexr decode [flags] <input.exr> <raster>
//	depthexr roundtrip [flags] <raster> <output.exr>
//	depthexr inspect [flags] <file.exr> [<file.exr> ...]
//
// Rasters may be PNG, TIFF or BMP, chosen by extension. JPEG 2000 files
// (.j2k, .j2c, .jp2) are accepted as input only.
//
// Exit codes:
//
//	0: success
//	1: verification failed or a file is invalid
//	2: usage or I/O error
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/mrjoshuak/go-depthexr/depthmap"
	"github.com/mrjoshuak/go-depthexr/exr"
	"github.com/mrjoshuak/go-depthexr/internal/logging"
	"github.com/mrjoshuak/go-depthexr/pipeline"
	"github.com/mrjoshuak/go-depthexr/verify"
)

const version = "1.0.0"

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// options holds flag values shared by all commands.
type options struct {
	logLevel     string
	min, max     float32
	compression  string
	channel      string
	half         bool
	tolerance    float64
	raster       string
	text         string
	preview      string
	previewWidth int
	quiet        bool

	stdout io.Writer
	stderr io.Writer
}

func (o *options) logger() hclog.Logger {
	return logging.NewLogger("depthexr", logging.Level(o.logLevel), o.stderr)
}

func (o *options) exrConfig() exr.Config {
	cfg := exr.DefaultConfig()
	cfg.Compression = o.compression
	cfg.Channel.Name = o.channel
	if o.half {
		cfg.Channel.Type = exr.PixelTypeHalf
	}
	return cfg
}

func (o *options) pipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Range = depthmap.Range{Min: o.min, Max: o.max}
	cfg.EXR = o.exrConfig()
	cfg.Tolerance = o.tolerance
	cfg.Raster = o.raster
	cfg.Text = o.text
	cfg.Preview = o.preview
	cfg.PreviewWidth = o.previewWidth
	cfg.Logger = o.logger()
	return cfg
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &options{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "depthexr",
		Short:         "Convert depth rasters to and from depth container files",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&o.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); defaults to $"+logging.EnvLogLevel)
	pf.Float32Var(&o.min, "min", depthmap.DefaultRange.Min, "Depth for gray level 0")
	pf.Float32Var(&o.max, "max", depthmap.DefaultRange.Max, "Depth for gray level 255")

	root.AddCommand(
		newEncodeCmd(o),
		newDecodeCmd(o),
		newRoundTripCmd(o),
		newInspectCmd(o),
	)
	return root
}

func addContainerFlags(cmd *cobra.Command, o *options) {
	cmd.Flags().StringVar(&o.compression, "compression", exr.DefaultCompression, "Compression label declared in the header")
	cmd.Flags().StringVar(&o.channel, "channel", "Z", "Name of the depth channel")
	cmd.Flags().BoolVar(&o.half, "half", false, "Store 16-bit half samples instead of 32-bit floats (lossy)")
}

func addSideFileFlags(cmd *cobra.Command, o *options) {
	cmd.Flags().StringVar(&o.text, "text", "", "Also write a text dump of the samples (.gz to compress)")
	cmd.Flags().StringVar(&o.preview, "preview", "", "Also write a scaled-down preview raster")
	cmd.Flags().IntVar(&o.previewWidth, "preview-width", pipeline.DefaultPreviewWidth, "Preview width in pixels")
}

func newEncodeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode <raster> <output.exr>",
		Short: "Normalize a gray raster to depth and write a container file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.pipelineConfig()
			cfg.Input, cfg.Output = args[0], args[1]
			res, err := pipeline.Encode(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(o.stdout, "%s: %dx%d, %d byte header\n", cfg.Output, res.Width, res.Height, res.HeaderSize)
			return nil
		},
	}
	addContainerFlags(cmd, o)
	addSideFileFlags(cmd, o)
	return cmd
}

func newDecodeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <input.exr> <raster>",
		Short: "Read a container file and quantize its samples to a gray raster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.pipelineConfig()
			cfg.Input, cfg.Raster = args[0], args[1]
			res, err := pipeline.Decode(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(o.stdout, "%s: %dx%d\n", cfg.Raster, res.Width, res.Height)
			return nil
		},
	}
	addSideFileFlags(cmd, o)
	return cmd
}

func newRoundTripCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roundtrip <raster> <output.exr>",
		Short: "Encode a raster, read the file back and verify every sample",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.pipelineConfig()
			cfg.Input, cfg.Output = args[0], args[1]
			res, err := pipeline.RoundTrip(cfg)
			if res != nil && res.Stats != nil {
				s := res.Stats
				fmt.Fprintf(o.stdout, "%s: %d samples, %d exact, max diff %g at %d\n",
					cfg.Output, s.Count, s.Exact, s.MaxDiff, s.MaxIndex)
			}
			if err != nil && res != nil && res.Stats != nil {
				return &exitError{code: 1, err: err}
			}
			return err
		},
	}
	cmd.Flags().Float64Var(&o.tolerance, "tolerance", verify.DefaultTolerance, "Largest accepted difference per sample")
	cmd.Flags().StringVar(&o.raster, "raster", "", "Also write the decoded samples as a gray raster")
	addContainerFlags(cmd, o)
	addSideFileFlags(cmd, o)
	return cmd
}

func newInspectCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file.exr> [<file.exr> ...]",
		Short: "Validate container files and print their header and sample statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.exrConfig()
			rng := depthmap.Range{Min: o.min, Max: o.max}
			invalid := 0
			for _, path := range args {
				rep, err := pipeline.Inspect(path, cfg, rng)
				if err != nil {
					return err
				}
				if !rep.Valid() {
					invalid++
				}
				if o.quiet {
					for _, is := range rep.Issues {
						if is.Severity == "error" {
							fmt.Fprintf(o.stderr, "%s: %s\n", path, is.Message)
						}
					}
					continue
				}
				if err := pipeline.WriteReport(o.stdout, rep); err != nil {
					return err
				}
			}
			if len(args) > 1 && !o.quiet {
				fmt.Fprintf(o.stdout, "\nSummary: %d of %d files valid\n", len(args)-invalid, len(args))
			}
			if invalid > 0 {
				return &exitError{code: 1, err: fmt.Errorf("%d of %d files invalid", invalid, len(args))}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "Only print errors; the exit code reports the result")
	return cmd
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "depthexr:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return 2
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
