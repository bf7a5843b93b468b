package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wph/expense-manager/internal/capture"
)

var (
	// Currency symbol before the number, or a currency code after it.
	amountPattern = regexp.MustCompile(`(?i)[$£€¥₹]\s*\d+(?:[,.]\d{2})?|\d+(?:[,.]\d{2})?\s*(?:USD|EUR|GBP|INR)`)
	numberPattern = regexp.MustCompile(`\d+(?:[,.]\d{2})?`)

	// Slash/dash dates, ISO dates, and spelled-month dates in any case;
	// recognized text is frequently all-caps.
	datePattern = regexp.MustCompile(`(?i)\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2}|[A-Za-z]{3}\s+\d{1,2},?\s+\d{4}`)

	// Three or more consecutive digits mark address/phone noise.
	digitRunPattern = regexp.MustCompile(`\d{3,}`)
)

// dateFormats is the normalization ladder tried in order against a matched
// date string. A date that parses is rewritten as ISO 8601; one that doesn't
// is kept in its original textual form.
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
	"01/02/06",
	"Jan 2, 2006",
	"Jan 2 2006",
}

// Fields applies the amount, date, and merchant-name heuristics to recognized
// text. The three extractions are independent and first-match-wins; absence of
// a match leaves the field empty.
func Fields(text string) capture.ParsedFields {
	fields := capture.ParsedFields{
		Date:         Date(text),
		MerchantName: Merchant(text),
	}
	if amount, ok := Amount(text); ok {
		fields.Amount = &amount
	}
	return fields
}

// Amount returns the first currency-adjacent numeric token in reading order.
// A comma is accepted as a decimal separator when no period form exists.
func Amount(text string) (float64, bool) {
	match := amountPattern.FindString(text)
	if match == "" {
		return 0, false
	}
	num := numberPattern.FindString(match)
	if num == "" {
		return 0, false
	}
	amount, err := strconv.ParseFloat(strings.Replace(num, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}

// Date returns the first date-looking substring, normalized to ISO 8601 when
// it parses against a known format and unchanged otherwise. Spelled months
// are title-cased before parsing so all-caps text still normalizes.
func Date(text string) string {
	match := datePattern.FindString(text)
	if match == "" {
		return ""
	}
	candidate := foldMonth(match)
	for _, format := range dateFormats {
		if d, err := time.Parse(format, candidate); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return match
}

// foldMonth rewrites a spelled-month match like "MAR 14, 2024" into the
// title case the format ladder expects. Numeric matches pass through.
func foldMonth(match string) string {
	if match == "" || match[0] >= '0' && match[0] <= '9' {
		return match
	}
	return strings.ToUpper(match[:1]) + strings.ToLower(match[1:])
}

// Merchant returns the first non-empty line that does not look like an
// address or phone number: no run of 3+ digits, and between 3 and 49
// characters long.
func Merchant(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if digitRunPattern.MatchString(line) {
			continue
		}
		if len(line) < 3 || len(line) > 49 {
			continue
		}
		return line
	}
	return ""
}
