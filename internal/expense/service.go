package expense

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/wph/expense-manager/internal/capture"
)

// Extractor runs one capture event through the receipt pipeline. It never
// fails; degraded stages just leave result fields absent.
type Extractor interface {
	Extract(ctx context.Context, raw capture.RawImage) capture.ExtractionResult
}

// IDGenerator generates unique IDs for expenses
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service consumes extraction results: it persists the normalized receipt
// copy, creates draft expense records pre-filled from the parsed fields, and
// handles the form's edits.
type Service struct {
	db          DB
	extractor   Extractor
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, extractor Extractor, storage Storage) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor Extractor, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// CaptureExpense runs a photographed receipt through the extraction
// pipeline, stores the size-bounded copy, and creates a draft expense with
// whatever fields the pipeline produced. A degraded extraction still yields
// a draft; only storage and database failures surface as errors.
func (s *Service) CaptureExpense(ctx context.Context, filename string, data []byte, contentType string) (*Expense, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	result := s.extractor.Extract(ctx, capture.RawImage{Data: data, ContentType: contentType})

	if !result.Recognition.Success {
		slog.Warn("receipt recognition degraded",
			"filename", filename,
			"error", result.Recognition.Error,
		)
	}

	// The stored copy is the normalized JPEG unless every compression tier
	// fell through to the original bytes.
	storedType := "image/jpeg"
	cleanFilename := sanitizeFilename(filename)
	if bytes.Equal(result.Image.Data, data) {
		storedType = contentType
	} else {
		cleanFilename = strings.TrimSuffix(cleanFilename, filepath.Ext(cleanFilename)) + ".jpg"
	}

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), result.Image.Data)
	if err != nil {
		return nil, fmt.Errorf("saving receipt copy: %w", err)
	}

	expense := &Expense{
		ID:            id,
		MerchantName:  result.Fields.MerchantName,
		Date:          now,
		Location:      result.Location,
		GPS:           result.GPS,
		OCRConfidence: result.Recognition.Confidence,
		Status:        StatusDraft,
		ReceiptPath:   savedPath,
		ContentType:   storedType,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if result.Fields.Amount != nil {
		expense.AmountCents = int(math.Round(*result.Fields.Amount * 100))
	}
	if date, err := time.Parse("2006-01-02", result.Fields.Date); err == nil {
		expense.Date = date
	}

	if err := s.db.SaveExpense(expense); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving expense to database: %w", err)
	}

	return expense, nil
}

// GetExpense retrieves an expense by ID
func (s *Service) GetExpense(id string) (*Expense, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}
	return expense, nil
}

// ListExpenses returns all expenses
func (s *Service) ListExpenses() ([]*Expense, error) {
	expenses, err := s.db.ListExpenses()
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	return expenses, nil
}

// UpdateExpense applies the form's edits to a draft's pre-filled fields.
func (s *Service) UpdateExpense(id string, update Update) (*Expense, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense for update: %w", err)
	}

	if update.MerchantName != nil {
		expense.MerchantName = *update.MerchantName
	}
	if update.Date != nil {
		expense.Date = *update.Date
	}
	if update.AmountCents != nil {
		expense.AmountCents = *update.AmountCents
	}
	if update.Location != nil {
		expense.Location = *update.Location
	}
	expense.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveExpense(expense); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}
	return expense, nil
}

// SubmitExpense moves a draft into the submitted state.
func (s *Service) SubmitExpense(id string) (*Expense, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense for submission: %w", err)
	}
	if expense.Status == StatusSubmitted {
		return nil, fmt.Errorf("expense %s is already submitted", id)
	}

	expense.Status = StatusSubmitted
	expense.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveExpense(expense); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}
	return expense, nil
}

// DeleteExpense removes an expense and its stored receipt copy
func (s *Service) DeleteExpense(id string) error {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return fmt.Errorf("getting expense for deletion: %w", err)
	}

	if err := s.storage.Delete(expense.ReceiptPath); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete receipt copy", "path", expense.ReceiptPath, "error", err)
	}

	if err := s.db.DeleteExpense(id); err != nil {
		return fmt.Errorf("deleting expense from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the stored receipt copy for an expense
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting expense: %w", err)
	}

	data, err := s.storage.Get(expense.ReceiptPath)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, expense.ContentType, nil
}
