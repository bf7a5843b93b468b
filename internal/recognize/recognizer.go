// Package recognize runs optical character recognition in an isolated worker
// reachable only through asynchronous message passing: one request carrying
// an image reference, one response carrying recognized text and a confidence
// score or a failure description.
package recognize

import (
	"context"

	"github.com/wph/expense-manager/internal/capture"
)

// Recognizer extracts text from a normalized image. Recognize never returns
// a Go error; failures are encoded in the result so downstream stages only
// ever see "value" or "absent".
type Recognizer interface {
	Recognize(ctx context.Context, image capture.NormalizedImage) capture.RecognitionResult

	// Close releases any resources held by the recognizer.
	Close() error
}

// request is the single message sent to a recognition worker. The image
// reference points at a file the worker can read; no other state is shared.
type request struct {
	ImagePath string `json:"imagePath"`
}

// failure builds the failed variant of a recognition response.
func failure(msg string) capture.RecognitionResult {
	return capture.RecognitionResult{Success: false, Error: msg}
}

// clampConfidence constrains a confidence score to [0, 100].
func clampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}
