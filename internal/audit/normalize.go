// Package audit implements the submission audit state machine: login, brand
// filtering, per-record evidence validation and loop termination.
//
// The package talks to the outside world only through the Engine, Session and
// Opener interfaces, so the browser/LLM stack can be swapped for a fake in
// tests or for a different perception engine in production.
package audit

import (
	"errors"
	"fmt"
	"strings"
)

// CodeLength is the fixed length of a canonical reference code.
const CodeLength = 10

// CanonicalCode is a normalized 10-character alphanumeric reference code.
// Values of this type are only produced by Normalize.
type CanonicalCode string

// String returns the code as a plain string.
func (c CanonicalCode) String() string {
	return string(c)
}

// ErrNormalization is the sentinel wrapped by every NormalizationError.
var ErrNormalization = errors.New("value cannot be normalized")

// NormalizationError reports a raw extraction that did not reduce to a
// canonical code.
type NormalizationError struct {
	Raw     string // value as extracted
	Cleaned string // value after separator stripping
	Reason  string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %q: %s (cleaned %q)", e.Raw, e.Reason, e.Cleaned)
}

// Unwrap lets errors.Is match ErrNormalization.
func (e *NormalizationError) Unwrap() error {
	return ErrNormalization
}

// Normalize reduces a raw table value to its canonical code.
//
// The double-hyphen suffix is stripped before the single-hyphen prefix:
// "L-83V1EAXU76--1" -> "L-83V1EAXU76" -> "83V1EAXU76". The remainder must be
// exactly CodeLength ASCII letters or digits.
func Normalize(raw string) (CanonicalCode, error) {
	cleaned := strings.TrimSpace(raw)

	if idx := strings.Index(cleaned, "--"); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	if _, after, found := strings.Cut(cleaned, "-"); found {
		cleaned = after
	}

	if len(cleaned) != CodeLength {
		return "", &NormalizationError{
			Raw:     raw,
			Cleaned: cleaned,
			Reason:  fmt.Sprintf("expected %d characters, got %d", CodeLength, len(cleaned)),
		}
	}
	for i := 0; i < len(cleaned); i++ {
		if !isAlphanumeric(cleaned[i]) {
			return "", &NormalizationError{
				Raw:     raw,
				Cleaned: cleaned,
				Reason:  fmt.Sprintf("non-alphanumeric character %q at position %d", cleaned[i], i),
			}
		}
	}
	return CanonicalCode(cleaned), nil
}

func isAlphanumeric(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
