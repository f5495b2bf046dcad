// Package source decodes video files into frames with ffmpeg.
//
// ffmpeg writes raw rgb24 frames to a pipe; a FrameReader slices the byte
// stream into *image.RGBA frames of the probed size.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ErrNoVideoStream is returned when a file has no decodable video stream.
var ErrNoVideoStream = errors.New("source: no video stream")

// Info describes the video stream of a file.
type Info struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frame_rate"`
	Frames    int     `json:"frames"`
	Codec     string  `json:"codec"`
}

type probe struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		NbFrames     string `json:"nb_frames"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// Probe runs ffprobe on path and returns its first video stream.
func Probe(path string) (Info, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe([]byte(out))
}

func parseProbe(data []byte) (Info, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return Info{}, fmt.Errorf("failed to parse probe output: %w", err)
	}
	for _, s := range p.Streams {
		if s.CodecType != "video" || s.Width <= 0 || s.Height <= 0 {
			continue
		}
		info := Info{
			Width:     s.Width,
			Height:    s.Height,
			FrameRate: parseRate(s.AvgFrameRate),
			Codec:     s.CodecName,
		}
		// nb_frames is missing for some containers
		if n, err := strconv.Atoi(s.NbFrames); err == nil {
			info.Frames = n
		}
		return info, nil
	}
	return Info{}, ErrNoVideoStream
}

// parseRate parses an ffprobe rational such as "24000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// Options controls decoding.
type Options struct {
	// FPS resamples the stream to this rate. Zero keeps every frame.
	FPS float64

	// MaxFrames stops decoding after this many frames. Zero means no limit.
	MaxFrames int
}

// Video is an open ffmpeg decode of one file.
type Video struct {
	Info   Info
	frames *FrameReader
	pipe   *io.PipeReader
	cancel context.CancelFunc
	done   chan error
	stderr bytes.Buffer
	max    int
	read   int
	eof    bool
}

// Open probes path and starts ffmpeg decoding it. Cancelling ctx kills the
// ffmpeg process. Close must be called when done.
func Open(ctx context.Context, path string, opts Options) (*Video, error) {
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}

	out := ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgb24",
	}
	if opts.FPS > 0 {
		out["r"] = strconv.FormatFloat(opts.FPS, 'f', -1, 64)
	}

	ctx, cancel := context.WithCancel(ctx)
	r, w := io.Pipe()
	v := &Video{
		Info:   info,
		frames: NewFrameReader(r, info.Width, info.Height),
		pipe:   r,
		cancel: cancel,
		done:   make(chan error, 1),
		max:    opts.MaxFrames,
	}

	stream := ffmpeg.Input(path).
		Output("pipe:1", out).
		WithOutput(w).
		WithErrorOutput(&v.stderr)
	stream.Context = ctx

	go func() {
		err := stream.Run()
		if err != nil {
			err = fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(v.stderr.String()))
		}
		w.CloseWithError(err)
		v.done <- err
	}()
	return v, nil
}

// Next returns the next frame, or io.EOF at the end of the stream or after
// MaxFrames frames.
func (v *Video) Next() (*image.RGBA, error) {
	if v.max > 0 && v.read >= v.max {
		return nil, io.EOF
	}
	img, err := v.frames.Next()
	if errors.Is(err, io.EOF) {
		v.eof = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	v.read++
	return img, nil
}

// Close stops decoding and waits for ffmpeg to exit. Stopping before the
// end of the stream is not an error.
func (v *Video) Close() error {
	v.pipe.Close()
	v.cancel()
	err := <-v.done
	if v.eof {
		return err
	}
	return nil
}

// FrameReader decodes a stream of packed rgb24 frames.
type FrameReader struct {
	r      io.Reader
	width  int
	height int
	buf    []byte
}

// NewFrameReader reads width x height rgb24 frames from r.
func NewFrameReader(r io.Reader, width, height int) *FrameReader {
	return &FrameReader{
		r:      r,
		width:  width,
		height: height,
		buf:    make([]byte, width*height*3),
	}
}

// Next reads one frame into a new image. It returns io.EOF when the stream
// ends on a frame boundary and io.ErrUnexpectedEOF on a truncated frame.
func (f *FrameReader) Next() (*image.RGBA, error) {
	if len(f.buf) == 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", f.width, f.height)
	}
	if _, err := io.ReadFull(f.r, f.buf); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	for i, j := 0, 0; i < len(f.buf); i, j = i+3, j+4 {
		img.Pix[j] = f.buf[i]
		img.Pix[j+1] = f.buf[i+1]
		img.Pix[j+2] = f.buf[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}
