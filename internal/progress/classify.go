package progress

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Status is the outcome recorded for one assessment.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// PassMark is the lowest score that counts as a pass.
const PassMark = 50.0

var (
	passedKeywords = []string{"passed", "pass", "completed", "complete"}
	failedKeywords = []string{"failed", "fail"}
)

// Label returns the display form of the status.
func (s Status) Label() string {
	switch s {
	case StatusPassed:
		return "Passed"
	case StatusFailed:
		return "Failed"
	default:
		return "Pending"
	}
}

// ParseStatus accepts either the label or the type form, in any case.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPassed:
		return StatusPassed, nil
	case StatusFailed:
		return StatusFailed, nil
	case StatusPending:
		return StatusPending, nil
	default:
		return "", fmt.Errorf("invalid status: %q", s)
	}
}

// Classification is the status derived from one recorded value.
type Classification struct {
	Label  string `json:"label"`
	Status Status `json:"status"`
	Value  Value  `json:"value"`
}

// Classify derives a status from a raw cell value. It depends on nothing
// but v and is defined for every input.
//
// Rules, first match wins: blank is pending; anything whose digits and dots
// parse as a number is a score (>= PassMark passes); a pass keyword passes;
// a fail keyword fails; any other text is pending.
func Classify(v Value) Classification {
	status := classifyStatus(v)
	return Classification{Label: status.Label(), Status: status, Value: v}
}

func classifyStatus(v Value) Status {
	s := strings.TrimSpace(v.String())
	if s == "" {
		return StatusPending
	}

	// "Score: 65/100" reads as 65100 here. Kept for compatibility with
	// existing spreadsheets.
	if score, ok := extractScore(s); ok {
		if score >= PassMark {
			return StatusPassed
		}
		return StatusFailed
	}

	lower := strings.ToLower(s)
	for _, kw := range passedKeywords {
		if strings.Contains(lower, kw) {
			return StatusPassed
		}
	}
	for _, kw := range failedKeywords {
		if strings.Contains(lower, kw) {
			return StatusFailed
		}
	}
	return StatusPending
}

// extractScore keeps only ASCII digits and dots and parses the remainder.
func extractScore(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		// Overlong digit runs overflow to +Inf, which still counts as a score.
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}
