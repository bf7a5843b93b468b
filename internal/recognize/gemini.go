package recognize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/wph/expense-manager/internal/capture"
)

// transcribePrompt asks the model for a faithful transcription rather than
// interpretation; the field heuristics run downstream on the raw text.
const transcribePrompt = `Transcribe every line of text visible in this receipt image, top to bottom, one line of output per line on the receipt. Preserve the original wording, numbers, and punctuation exactly. Return only the transcribed text with no commentary and no markdown.`

// Gemini recognizes text using Google Gemini vision. The model reports no
// confidence, so a heuristic score based on receipt artifacts stands in.
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGemini creates a Gemini-backed recognizer.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   client.GenerativeModel(modelName),
		timeout: DefaultTimeout,
	}, nil
}

// Recognize sends the normalized image for transcription. Failures come back
// encoded in the result, never as a panic or error to the caller.
func (g *Gemini) Recognize(ctx context.Context, image capture.NormalizedImage) capture.RecognitionResult {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	parts := []genai.Part{
		genai.ImageData(imageFormat(image.Data), image.Data),
		genai.Text(transcribePrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return failure(fmt.Sprintf("generating content: %v", err))
	}

	text, ok := transcript(resp)
	if !ok {
		return failure("no response from gemini")
	}

	return capture.RecognitionResult{
		Success:    true,
		Text:       text,
		Lines:      splitLines(text),
		Confidence: heuristicConfidence(text),
	}
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// transcript assembles the text parts of a generation response. Content is
// nil when the model stops without producing anything (safety stops report a
// FinishReason but no content), so that case reads as no response rather
// than a dereference.
func transcript(resp *genai.GenerateContentResponse) (string, bool) {
	if len(resp.Candidates) == 0 {
		return "", false
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", false
	}

	var b strings.Builder
	for _, part := range content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	text := strings.TrimSpace(b.String())
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text), true
}

// imageFormat returns the genai format suffix for the encoded bytes. The
// normalizer emits JPEG except on the identity path, where PNG originals can
// pass through untouched.
func imageFormat(data []byte) string {
	if len(data) >= 8 && string(data[1:4]) == "PNG" {
		return "png"
	}
	return "jpeg"
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
