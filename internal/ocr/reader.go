package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// ErrEmptyRegion is returned when the requested region does not overlap
// the image.
var ErrEmptyRegion = errors.New("ocr: empty region")

// Word is a recognized word and its location in the source image.
type Word struct {
	Text string `json:"text"`

	// Confidence is Tesseract's word confidence scaled to 0..1.
	Confidence float64 `json:"confidence"`

	Bounds image.Rectangle `json:"bounds"`
}

// Result is the text found in one region.
type Result struct {
	// Text is the recognized text with surrounding whitespace removed.
	Text string `json:"text"`

	// Words may be empty when Tesseract reports no word boxes; Text is still
	// set.
	Words []Word `json:"words"`

	// Region is the area that was read, in source image coordinates.
	Region image.Rectangle `json:"region"`
}

// TextReader reads the text in a region of an image.
type TextReader interface {
	Read(img image.Image, region image.Rectangle) (*Result, error)
}

// Reader reads text with a single Tesseract client. It is safe for
// concurrent use; calls are serialized.
type Reader struct {
	mu       sync.Mutex
	client   *gosseract.Client
	language string
}

var _ TextReader = (*Reader)(nil)

// NewReader creates a Tesseract client for language, e.g. "eng".
func NewReader(language string) (*Reader, error) {
	if language == "" {
		language = "eng"
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language %q: %w", language, err)
	}
	return &Reader{client: client, language: language}, nil
}

// Close releases the Tesseract client.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}

// Version returns the Tesseract library version.
func (r *Reader) Version() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Version()
}

// Language returns the configured language code.
func (r *Reader) Language() string {
	return r.language
}

// Read performs OCR on region of img. region is clipped to the image.
// Word bounds are returned in img's coordinates, not the crop's.
func (r *Reader) Read(img image.Image, region image.Rectangle) (*Result, error) {
	region = region.Intersect(img.Bounds())
	if region.Empty() {
		return nil, ErrEmptyRegion
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, imaging.Crop(img, region)); err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	result := &Result{Text: strings.TrimSpace(text), Words: []Word{}, Region: region}

	boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Return just text if boxes fail
		return result, nil
	}
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		result.Words = append(result.Words, Word{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds:     box.Box.Add(region.Min),
		})
	}
	return result, nil
}
