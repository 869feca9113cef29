// Package transcode recompresses image assets into smaller derivatives.
//
// Oversized images are downscaled to fit within configured bounds using
// Lanczos resampling, alpha channels are flattened onto a white background,
// and the result is re-encoded with format-specific quality settings.
// Transcoding is an explicit fallible operation: callers decide what to do
// with a failure (the upload path keeps the original bytes and carries on).
package transcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"

	// Registers WEBP decoding for image.Decode. The Go ecosystem has no
	// maintained pure-Go WEBP encoder, so WEBP input is re-encoded as JPEG.
	_ "golang.org/x/image/webp"
)

var (
	ErrDecode = errors.New("failed to decode image")
	ErrEncode = errors.New("failed to encode image")
)

// Config holds the immutable transcoding parameters.
type Config struct {
	MaxWidth        int
	MaxHeight       int
	JPEGQuality     int // for image/jpeg input
	FallbackQuality int // for WEBP and any other image input, re-encoded as JPEG
	PNGCompression  png.CompressionLevel
}

// DefaultConfig returns the production transcoding parameters.
func DefaultConfig() Config {
	return Config{
		MaxWidth:        1920,
		MaxHeight:       1080,
		JPEGQuality:     85,
		FallbackQuality: 80,
		PNGCompression:  png.DefaultCompression,
	}
}

// Result is the outcome of a successful transcode.
type Result struct {
	Data     []byte
	MIMEType string
	Resized  bool
}

// Transcoder converts image bytes into a compressed derivative.
type Transcoder struct {
	cfg Config
}

// New returns a Transcoder using the given configuration.
func New(cfg Config) *Transcoder {
	return &Transcoder{cfg: cfg}
}

// Transcode decodes data, downscales it if either dimension exceeds the
// configured bounds (preserving aspect ratio), flattens transparency onto a
// white background and re-encodes it. JPEG input stays JPEG, PNG stays PNG,
// everything else is normalized to JPEG. Any decode or encode failure is
// returned as an error; no partial output is produced.
func (t *Transcoder) Transcode(data []byte, mimeType string) (*Result, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	resized := bounds.Dx() > t.cfg.MaxWidth || bounds.Dy() > t.cfg.MaxHeight
	if resized {
		// Fit scales by min(widthRatio, heightRatio) so neither bound is exceeded.
		img = imaging.Fit(img, t.cfg.MaxWidth, t.cfg.MaxHeight, imaging.Lanczos)
	}

	img = flatten(img)

	var buf bytes.Buffer
	outType := mimeType
	switch mimeType {
	case "image/jpeg":
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(t.cfg.JPEGQuality))
	case "image/png":
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(t.cfg.PNGCompression))
	default:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(t.cfg.FallbackQuality))
		outType = "image/jpeg"
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	return &Result{
		Data:     buf.Bytes(),
		MIMEType: outType,
		Resized:  resized,
	}, nil
}

// flatten composites the image onto an opaque white background; transparent
// regions render white in the output.
func flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	bg := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
