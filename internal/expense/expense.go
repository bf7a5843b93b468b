package expense

import (
	"time"

	"github.com/wph/expense-manager/internal/capture"
)

// Expense statuses. A capture creates a draft; the entry form edits the
// pre-filled fields and submits it.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
)

// Expense is a draft or submitted expense record. Fields pre-filled from a
// receipt capture stay blank where the extraction degraded; the form fills
// them in manually.
type Expense struct {
	ID            string            `json:"id"`
	MerchantName  string            `json:"merchant_name,omitempty"`
	Date          time.Time         `json:"date"`
	AmountCents   int               `json:"amount"` // Amount in cents
	Location      string            `json:"location,omitempty"`
	GPS           *capture.GeoPoint `json:"gps,omitempty"`
	OCRConfidence float64           `json:"ocr_confidence,omitempty"`
	Status        string            `json:"status"`
	ReceiptPath   string            `json:"receipt_path"`
	ContentType   string            `json:"content_type"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Update holds edits the entry form makes to a draft. Nil fields are left
// untouched.
type Update struct {
	MerchantName *string    `json:"merchant_name,omitempty"`
	Date         *time.Time `json:"date,omitempty"`
	AmountCents  *int       `json:"amount,omitempty"`
	Location     *string    `json:"location,omitempty"`
}
