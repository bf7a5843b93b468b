package recognize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/wph/expense-manager/internal/capture"
)

// DefaultTimeout bounds how long a caller waits for a worker response. An
// unanswered request is a recognition failure, not a hang.
const DefaultTimeout = 30 * time.Second

// Runner lets us stub the external command in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// TesseractWorker recognizes text by spawning a tesseract subprocess per
// request. The worker goroutine receives one request message, delivers
// exactly one response on the reply channel, and is torn down with its
// process once the response lands or the request is abandoned.
type TesseractWorker struct {
	binary   string
	language string
	timeout  time.Duration
	runner   Runner
	logger   *slog.Logger
}

// NewTesseractWorker creates a worker-spawning recognizer.
func NewTesseractWorker(binary, language string, timeout time.Duration, logger *slog.Logger) *TesseractWorker {
	if binary == "" {
		binary = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TesseractWorker{
		binary:   binary,
		language: language,
		timeout:  timeout,
		runner:   execRunner{},
		logger:   logger,
	}
}

// Recognize writes the image to a private temp file, hands its path to a
// fresh worker, and waits a bounded time for the single response. On timeout
// the context kills the subprocess and a failure result comes back instead.
func (w *TesseractWorker) Recognize(ctx context.Context, image capture.NormalizedImage) capture.RecognitionResult {
	file, err := os.CreateTemp("", "receipt-ocr-*.jpg")
	if err != nil {
		return failure(fmt.Sprintf("creating worker image file: %v", err))
	}
	if _, err := file.Write(image.Data); err != nil {
		file.Close()
		os.Remove(file.Name())
		return failure(fmt.Sprintf("writing worker image file: %v", err))
	}
	file.Close()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	responses := make(chan capture.RecognitionResult, 1)
	go w.serve(ctx, request{ImagePath: file.Name()}, responses)

	select {
	case res := <-responses:
		return res
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			w.logger.Warn("recognition abandoned before the worker responded")
			return failure("recognition cancelled")
		}
		w.logger.Warn("recognition worker did not respond in time", "timeout", w.timeout)
		return failure("recognition timed out")
	}
}

// Close releases worker resources. Workers are per-request, so there is
// nothing long-lived to tear down.
func (w *TesseractWorker) Close() error {
	return nil
}

// serve is the worker side of the message boundary: consume one request,
// produce one response, clean up.
func (w *TesseractWorker) serve(ctx context.Context, req request, responses chan<- capture.RecognitionResult) {
	defer os.Remove(req.ImagePath)

	stdout, stderr, err := w.runner.Run(ctx, w.binary, req.ImagePath, "stdout", "-l", w.language, "tsv")
	if err != nil {
		responses <- failure(fmt.Sprintf("tesseract: %v: %s", err, strings.TrimSpace(string(stderr))))
		return
	}
	responses <- parseTSV(stdout)
}

// parseTSV turns tesseract's TSV output into the response message: line
// texts in reading order, the full text, and the mean word confidence
// clamped to [0, 100].
func parseTSV(out []byte) capture.RecognitionResult {
	var (
		lines     []string
		words     []string
		lineKey   string
		confSum   float64
		confCount int
	)

	flush := func() {
		if len(words) > 0 {
			lines = append(lines, strings.Join(words, " "))
			words = nil
		}
	}

	for i, row := range strings.Split(string(out), "\n") {
		if i == 0 {
			continue // header
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		if cols[0] != "5" { // word-level rows only
			continue
		}
		key := cols[2] + "/" + cols[3] + "/" + cols[4]
		if key != lineKey {
			flush()
			lineKey = key
		}

		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		words = append(words, word)

		if conf, err := strconv.ParseFloat(cols[10], 64); err == nil && conf >= 0 {
			confSum += conf
			confCount++
		}
	}
	flush()

	confidence := 0.0
	if confCount > 0 {
		confidence = clampConfidence(confSum / float64(confCount))
	}
	return capture.RecognitionResult{
		Success:    true,
		Text:       strings.Join(lines, "\n"),
		Lines:      lines,
		Confidence: confidence,
	}
}
