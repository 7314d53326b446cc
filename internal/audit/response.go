package audit

import (
	"regexp"
	"strings"
)

// =============================================================================
// ENGINE RESPONSE GRAMMAR
// =============================================================================
//
// The perception engine answers delegated tasks with free text. Everything
// that turns that text into a decision lives in this file.

const (
	// FoundMarker is present in "<code> value found".
	FoundMarker = "value found"
	// NotFoundMarker is present in "<code> value not found in the evidence".
	NotFoundMarker = "value not found"
	// UnknownValue replaces a mismatched code that could not be extracted.
	UnknownValue = "UNKNOWN_VALUE"

	// EmptyQueuePhrase is what the filter task reports when no rows match.
	EmptyQueuePhrase = "no task pending to check"
	// RowsVisiblePhrase is what the filter task reports otherwise.
	RowsVisiblePhrase = "filter applied and tasks visible"
)

var (
	notFoundCodePattern     = regexp.MustCompile(`\[(.*?)\] value not found`)
	foundBracketCodePattern = regexp.MustCompile(`\[([^\]]*)\]\s*value found`)
)

// VerdictKind is the shape of an audit response.
type VerdictKind int

const (
	VerdictUnrecognized VerdictKind = iota
	VerdictFound
	VerdictNotFound
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictFound:
		return "found"
	case VerdictNotFound:
		return "not_found"
	default:
		return "unrecognized"
	}
}

// Verdict is the typed reading of an audit response.
// Code is the code as reported by the engine, not yet validated; it is
// UnknownValue for a not-found response without a bracketed code and empty
// for a found response without one.
type Verdict struct {
	Kind    VerdictKind
	Code    string
	Message string
}

// ParseVerdict translates an audit response. It never fails: anything that
// matches neither shape is VerdictUnrecognized.
//
// The not-found marker is checked first. "value not found" does not contain
// "value found", but checking the longer marker first keeps the order
// independent of that accident.
func ParseVerdict(message string) Verdict {
	v := Verdict{Message: message}

	switch {
	case strings.Contains(message, NotFoundMarker):
		v.Kind = VerdictNotFound
		v.Code = UnknownValue
		if m := notFoundCodePattern.FindStringSubmatch(message); m != nil {
			v.Code = m[1]
		}
	case strings.Contains(message, FoundMarker):
		v.Kind = VerdictFound
		if m := foundBracketCodePattern.FindStringSubmatch(message); m != nil {
			v.Code = strings.TrimSpace(m[1])
		}
	default:
		v.Kind = VerdictUnrecognized
	}
	return v
}

// FilterReport is the typed reading of the brand filter response.
type FilterReport int

const (
	FilterRowsVisible FilterReport = iota
	FilterEmptyQueue
)

// ParseFilterReport reads the filter task response. Only the explicit
// empty-queue phrase ends the run; any other text proceeds to the loop, where
// a missing record surfaces as a navigation failure.
func ParseFilterReport(message string) FilterReport {
	if strings.Contains(strings.ToLower(message), EmptyQueuePhrase) {
		return FilterEmptyQueue
	}
	return FilterRowsVisible
}
