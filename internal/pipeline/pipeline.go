// Package pipeline sequences receipt extraction: normalize and read metadata
// concurrently, recognize the normalized image, resolve the location branch,
// parse fields, and join everything into one result.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/wph/expense-manager/internal/capture"
	"github.com/wph/expense-manager/internal/location"
	"github.com/wph/expense-manager/internal/metadata"
	"github.com/wph/expense-manager/internal/normalize"
	"github.com/wph/expense-manager/internal/parse"
	"github.com/wph/expense-manager/internal/recognize"
)

// Stage identifies a step of the extraction pipeline, mainly for progress
// reporting and logs.
type Stage string

const (
	StageReceived           Stage = "received"
	StageNormalizing        Stage = "normalizing"
	StageMetadataExtracting Stage = "extracting_metadata"
	StageRecognizing        Stage = "recognizing"
	StageLocationResolving  Stage = "resolving_location"
	StageParsing            Stage = "parsing"
	StageAssembled          Stage = "assembled"
)

// MetadataFunc reads capture metadata from original image bytes.
type MetadataFunc func(data []byte) capture.CaptureMetadata

// Pipeline orchestrates the extraction stages. Each stage absorbs its own
// failures, so Extract always assembles a result; fields are simply absent
// where a stage degraded.
type Pipeline struct {
	normalizer      *normalize.Normalizer
	extractMetadata MetadataFunc
	resolver        *location.Resolver
	recognizer      recognize.Recognizer
	logger          *slog.Logger

	// OnStage, when set, observes stage transitions. The metadata/location
	// branch runs concurrently with normalization and recognition, so the
	// hook may fire from more than one goroutine.
	OnStage func(Stage)
}

// New creates a Pipeline using EXIF metadata extraction.
func New(normalizer *normalize.Normalizer, resolver *location.Resolver, recognizer recognize.Recognizer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		normalizer:      normalizer,
		extractMetadata: metadata.Extract,
		resolver:        resolver,
		recognizer:      recognizer,
		logger:          logger,
	}
}

// locationOutcome is what the metadata/location branch delivers at the join.
type locationOutcome struct {
	meta  capture.CaptureMetadata
	name  string
	point *capture.GeoPoint
}

// Extract runs one capture event through the pipeline. Normalization and
// metadata extraction start together on independent byte views; recognition
// follows normalization, resolution follows metadata, parsing follows
// recognition, and assembly waits for both branches. Cancelling ctx releases
// the pending external calls and still yields a (degraded) result.
func (p *Pipeline) Extract(ctx context.Context, raw capture.RawImage) capture.ExtractionResult {
	p.stage(StageReceived)

	locations := make(chan locationOutcome, 1)
	go func() {
		p.stage(StageMetadataExtracting)
		meta := p.extractMetadata(raw.Data)

		p.stage(StageLocationResolving)
		name, point := p.resolver.Resolve(ctx, meta.GPS)
		locations <- locationOutcome{meta: meta, name: name, point: point}
	}()

	p.stage(StageNormalizing)
	normalized := p.normalizer.Normalize(raw)

	p.stage(StageRecognizing)
	recognition := p.recognizer.Recognize(ctx, normalized)

	var fields capture.ParsedFields
	if recognition.Success {
		p.stage(StageParsing)
		fields = parse.Fields(recognition.Text)
	}

	loc := <-locations
	p.stage(StageAssembled)

	p.logger.Info("capture assembled",
		"normalized_bytes", normalized.Size(),
		"recognized", recognition.Success,
		"confidence", recognition.Confidence,
		"located", loc.name != "",
		"merchant", fields.MerchantName,
	)

	return capture.ExtractionResult{
		Image:       normalized,
		Metadata:    loc.meta,
		Location:    loc.name,
		GPS:         loc.point,
		Recognition: recognition,
		Fields:      fields,
	}
}

func (p *Pipeline) stage(s Stage) {
	p.logger.Debug("pipeline stage", "stage", string(s))
	if p.OnStage != nil {
		p.OnStage(s)
	}
}
