package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		message string
		kind    VerdictKind
		code    string
	}{
		{"bracketed found", "[83V1EAXU76] value found", VerdictFound, "83V1EAXU76"},
		{"bare found", "83V1EAXU76 value found", VerdictFound, ""},
		{"found in prose", "The value found in the receipt matches", VerdictFound, ""},
		{"found without code", "value found", VerdictFound, ""},
		{"bracketed not found", "[83V1EAXU76] value not found in the evidence", VerdictNotFound, "83V1EAXU76"},
		{"not found without brackets", "83V1EAXU76 value not found in the evidence", VerdictNotFound, UnknownValue},
		{"not found with prose", "After checking: [ABCDEFGHIJ] value not found in the evidence.", VerdictNotFound, "ABCDEFGHIJ"},
		{"unrelated", "The page did not load", VerdictUnrecognized, ""},
		{"empty", "", VerdictUnrecognized, ""},
		{"case differs", "[83V1EAXU76] VALUE FOUND", VerdictUnrecognized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ParseVerdict(tt.message)
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.code, v.Code)
			assert.Equal(t, tt.message, v.Message)
		})
	}
}

func TestParseFilterReport(t *testing.T) {
	assert.Equal(t, FilterEmptyQueue, ParseFilterReport(EmptyQueuePhrase))
	assert.Equal(t, FilterEmptyQueue, ParseFilterReport(`Result: "No task pending to check".`))
	assert.Equal(t, FilterRowsVisible, ParseFilterReport(RowsVisiblePhrase))
	assert.Equal(t, FilterRowsVisible, ParseFilterReport("something else entirely"))
	assert.Equal(t, FilterRowsVisible, ParseFilterReport(""))
}

func TestMatch_Totality(t *testing.T) {
	codes := []CanonicalCode{"83V1EAXU76", "0000000000", "abcdefghij"}
	for _, code := range codes {
		for _, found := range []bool{true, false} {
			got := Match(code, found)
			assert.NotEqual(t, OutcomeAmbiguous, got.Kind)
			assert.Equal(t, code, got.Code)
			if found {
				assert.Equal(t, OutcomeMatched, got.Kind)
			} else {
				assert.Equal(t, OutcomeMismatched, got.Kind)
			}
		}
	}
}

func TestOutcome_DisplayCode(t *testing.T) {
	assert.Equal(t, "83V1EAXU76", Matched("83V1EAXU76").DisplayCode())
	assert.Equal(t, UnknownValue, Outcome{Kind: OutcomeMismatched, Reported: UnknownValue}.DisplayCode())
	assert.Empty(t, Ambiguous("huh").DisplayCode())
}

func TestResultKind_ExitCodesDistinct(t *testing.T) {
	seen := map[int]ResultKind{}
	for kind := range resultKindNames {
		code := RunResult{Kind: kind}.ExitCode()
		prev, dup := seen[code]
		assert.False(t, dup, "%s and %s share exit code %d", kind, prev, code)
		seen[code] = kind

		if kind != ResultCompleted {
			assert.NotZero(t, code, kind.String())
		}
		assert.NotEqual(t, ExitConfig, code)
		assert.NotEqual(t, ExitUnexpected, code)

		parsed, ok := ParseResultKind(kind.String())
		assert.True(t, ok)
		assert.Equal(t, kind, parsed)
	}
	assert.Equal(t, ExitUnexpected, RunResult{Kind: ResultKind(99)}.ExitCode())
}
