package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ironsheep/filmreader/internal/config"
	"github.com/ironsheep/filmreader/internal/geom"
	"github.com/ironsheep/filmreader/internal/imaging"
	"github.com/ironsheep/filmreader/internal/ocr"
	"github.com/ironsheep/filmreader/internal/pipeline"
	"github.com/ironsheep/filmreader/internal/server"
	"github.com/ironsheep/filmreader/internal/source"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `filmreader - film frame border detection

Usage:
  filmreader image [-config file] [-out file.png] <frame>
  filmreader video [-config file] [-out dir] [-fps n] [-max n] <video>
  filmreader serve [-config file]

Commands:
  image    Detect the border in one frame, print it as JSON and write the preview
  video    Decode a video with ffmpeg and detect the border in every frame
  serve    Run the MCP server over stdin/stdout

Options:
  --version, -v    Print version information
  --help, -h       Print this help message

Environment variables:
  FILMREADER_LOG_LEVEL=debug    Override the configured log level
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("filmreader %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		fmt.Print(usage)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "image":
		err = runImage(os.Args[2:], os.Stdout)
	case "video":
		err = runVideo(ctx, os.Args[2:], os.Stdout)
	case "serve":
		err = runServe(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "filmreader: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger and pipeline options
// shared by all commands. The returned cleanup releases the OCR client.
func setup(configPath string) (config.Config, *slog.Logger, []pipeline.Option, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, nil, nil, err
	}
	// stdout carries JSON and the MCP protocol
	logger := cfg.NewLogger(os.Stderr)
	logger.Debug("filmreader starting", "version", Version, "commit", GitCommit, "config", configPath)

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	cleanup := func() {}
	if cfg.OCR.Enabled {
		reader, err := ocr.NewReader(cfg.OCR.Language)
		if err != nil {
			return cfg, nil, nil, nil, fmt.Errorf("ocr: %w", err)
		}
		logger.Debug("ocr enabled", "tesseract", reader.Version(), "language", reader.Language())
		opts = append(opts, pipeline.WithMarker(ocr.NewLabelStage(reader, logger)))
		cleanup = func() { reader.Close() }
	}
	return cfg, logger, opts, cleanup, nil
}

// frameReport is the JSON printed per processed frame.
type frameReport struct {
	Frame  uint64       `json:"frame"`
	State  string       `json:"state"`
	ROI    [4]int       `json:"roi"`
	Found  bool         `json:"found"`
	Quad   []geom.Point `json:"quad,omitempty"`
	Area   float64      `json:"area,omitempty"`
	Output string       `json:"output,omitempty"`
}

func report(res *pipeline.Result, output string) frameReport {
	r := frameReport{
		Frame:  res.Frame,
		State:  res.State.String(),
		ROI:    [4]int{res.ROI.Min.X, res.ROI.Min.Y, res.ROI.Max.X, res.ROI.Max.Y},
		Found:  res.Quad.Found(),
		Output: output,
	}
	if r.Found {
		r.Quad = res.Quad.Ordered()
		r.Area = res.Quad.Area
	}
	return r
}

func runImage(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("image", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	out := fs.String("out", "", "write the composited preview PNG here")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("image: expected exactly one frame file")
	}

	cfg, _, opts, cleanup, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return err
	}
	img, err := imaging.NewFrameCache().Load(fs.Arg(0))
	if err != nil {
		return err
	}
	res, err := p.Process(img)
	if err != nil {
		return err
	}
	if *out != "" {
		if err := imaging.SavePNG(*out, res.Image); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report(res, *out))
}

func runVideo(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("video", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	outDir := fs.String("out", "", "write composited frames as PNG into this directory")
	fps := fs.Float64("fps", 0, "resample to this frame rate (0 keeps every frame)")
	maxFrames := fs.Int("max", 0, "stop after this many frames (0 means all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("video: expected exactly one video file")
	}

	cfg, logger, opts, cleanup, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return err
	}
	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	v, err := source.Open(ctx, fs.Arg(0), source.Options{FPS: *fps, MaxFrames: *maxFrames})
	if err != nil {
		return err
	}
	logger.Info("decoding video", "path", fs.Arg(0),
		"width", v.Info.Width, "height", v.Info.Height, "fps", v.Info.FrameRate, "frames", v.Info.Frames)

	enc := json.NewEncoder(stdout)
	processed, found := 0, 0
	for {
		frame, err := v.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			v.Close()
			return err
		}
		res, err := p.Process(frame)
		if err != nil {
			v.Close()
			return err
		}
		processed++
		if res.Quad.Found() {
			found++
		}

		var output string
		if *outDir != "" {
			output = filepath.Join(*outDir, fmt.Sprintf("frame-%06d.png", res.Frame))
			if err := imaging.SavePNG(output, res.Image); err != nil {
				v.Close()
				return err
			}
		}
		if err := enc.Encode(report(res, output)); err != nil {
			v.Close()
			return err
		}
	}
	if err := v.Close(); err != nil {
		return err
	}
	logger.Info("video done", "frames", processed, "with_border", found)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, opts, cleanup, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := server.New(cfg, opts, server.WithLogger(logger), server.WithVersion(Version))
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
