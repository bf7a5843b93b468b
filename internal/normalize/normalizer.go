// Package normalize recompresses raw receipt photos down to a size budget
// suitable for persistent storage.
package normalize

import (
	"bytes"
	"image"
	"image/jpeg"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/wph/expense-manager/internal/capture"
)

// Pass is one tier of the compression ladder: re-encode at Quality after
// fitting the long edge inside MaxDimension, aiming for TargetBytes.
type Pass struct {
	Quality      int
	MaxDimension int
	TargetBytes  int
}

// DefaultPasses is the standard two-tier ladder: a high-quality primary pass
// and a tighter secondary pass attempted only when the primary result is
// still over budget.
var DefaultPasses = []Pass{
	{Quality: 85, MaxDimension: 1920, TargetBytes: 400 * 1024},
	{Quality: 75, MaxDimension: 1600, TargetBytes: 300 * 1024},
}

const (
	fallbackQuality      = 85
	fallbackMaxDimension = 1600
)

// Normalizer produces size-bounded copies of raw images. Entry must never
// block on a compression bug: every failure path ends in the codec fallback
// tier or in returning the original bytes unchanged.
type Normalizer struct {
	passes []Pass
	codec  ImageCodec
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer with the default ladder.
func NewNormalizer(codec ImageCodec, logger *slog.Logger) *Normalizer {
	return NewNormalizerWithPasses(codec, DefaultPasses, logger)
}

// NewNormalizerWithPasses creates a Normalizer with a custom ladder.
func NewNormalizerWithPasses(codec ImageCodec, passes []Pass, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{passes: passes, codec: codec, logger: logger}
}

// Normalize recompresses a raw image through the ladder. Aspect ratio is
// preserved and images are never upscaled. If every tier fails, or
// re-encoding would grow the image, the original bytes come back unchanged.
// Normalize never returns an error.
func (n *Normalizer) Normalize(raw capture.RawImage) capture.NormalizedImage {
	if img, _, err := image.Decode(bytes.NewReader(raw.Data)); err == nil {
		if out, ok := n.runLadder(img, raw); ok {
			return out
		}
		return identity(raw, img)
	}

	// The standard decoders rejected the format; decode through the codec
	// and re-encode at a fixed quality.
	img, err := n.codec.Decode(raw.Data, raw.ContentType)
	if err != nil {
		n.logger.Warn("image normalization fell back to original bytes", "content_type", raw.ContentType, "error", err)
		return capture.NormalizedImage{Data: raw.Data}
	}

	resized := fitManual(img, fallbackMaxDimension)
	data, err := encodeJPEG(resized, fallbackQuality)
	if err != nil || len(data) >= len(raw.Data) {
		return identity(raw, img)
	}
	return normalized(data, resized)
}

// runLadder tries each pass in order, stopping at the first result inside
// its size target. A later pass reuses the previous pass's output so the
// secondary tier compounds on the primary, as in the original multi-pass
// design.
func (n *Normalizer) runLadder(img image.Image, raw capture.RawImage) (capture.NormalizedImage, bool) {
	var (
		best    []byte
		bestImg image.Image
	)

	current := img
	for _, pass := range n.passes {
		resized := imaging.Fit(current, pass.MaxDimension, pass.MaxDimension, imaging.Lanczos)
		data, err := encodeJPEG(resized, pass.Quality)
		if err != nil {
			continue
		}
		best, bestImg = data, resized
		current = resized
		if len(data) <= pass.TargetBytes {
			break
		}
	}

	if best == nil || len(best) >= len(raw.Data) {
		return capture.NormalizedImage{}, false
	}
	return normalized(best, bestImg), true
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fitManual computes scaled dimensions by hand, preserving aspect ratio and
// never upscaling.
func fitManual(img image.Image, maxDimension int) image.Image {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	if width <= maxDimension && height <= maxDimension {
		return img
	}
	if width > height {
		height = height * maxDimension / width
		width = maxDimension
	} else {
		width = width * maxDimension / height
		height = maxDimension
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

func normalized(data []byte, img image.Image) capture.NormalizedImage {
	return capture.NormalizedImage{
		Data:   data,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}
}

// identity returns the raw bytes unchanged, keeping the decoded dimensions
// when they are known.
func identity(raw capture.RawImage, img image.Image) capture.NormalizedImage {
	out := capture.NormalizedImage{Data: raw.Data}
	if img != nil {
		out.Width = img.Bounds().Dx()
		out.Height = img.Bounds().Dy()
	}
	return out
}
