package recognize

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}-\d{2}-\d{2}`)
	reCurr   = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud|inr|jpy)\b|[$£€]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
)

// heuristicConfidence scores transcribed text for engines that report no
// confidence of their own. Receipt artifacts (date-ish, currency-ish,
// amount-ish tokens) and sheer length each add to a base score, scaled 0-100.
func heuristicConfidence(text string) float64 {
	lowered := strings.ToLower(text)
	score := 20.0
	if reDate.MatchString(lowered) {
		score += 20
	}
	if reCurr.MatchString(lowered) {
		score += 15
	}
	if reAmount.MatchString(lowered) {
		score += 15
	}
	if len(text) > 120 {
		score += 10
	}
	return clampConfidence(score)
}
