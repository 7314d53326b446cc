package audit

// OutcomeKind classifies a single record audit.
type OutcomeKind int

const (
	OutcomeMatched OutcomeKind = iota
	OutcomeMismatched
	OutcomeAmbiguous
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeMatched:
		return "matched"
	case OutcomeMismatched:
		return "mismatched"
	case OutcomeAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Outcome is the immutable result of auditing one record.
//
// Code is the validated code of a Matched or Mismatched outcome. Reported is
// the code as the engine wrote it; it differs from Code only when the engine
// reported a mismatch for a value that does not normalize (including
// UnknownValue), in which case Code is empty. Message carries the raw engine
// response and is the only payload of an Ambiguous outcome.
type Outcome struct {
	Kind     OutcomeKind
	Code     CanonicalCode
	Reported string
	Message  string
}

// DisplayCode returns the validated code, falling back to the reported one.
func (o Outcome) DisplayCode() string {
	if o.Code != "" {
		return string(o.Code)
	}
	return o.Reported
}

// Matched builds a matched outcome.
func Matched(code CanonicalCode) Outcome {
	return Outcome{Kind: OutcomeMatched, Code: code, Reported: string(code)}
}

// Mismatched builds a mismatched outcome.
func Mismatched(code CanonicalCode) Outcome {
	return Outcome{Kind: OutcomeMismatched, Code: code, Reported: string(code)}
}

// Ambiguous builds an outcome for an unrecognized engine response.
func Ambiguous(message string) Outcome {
	return Outcome{Kind: OutcomeAmbiguous, Message: message}
}

// Match combines a code with the evidence signal. It never yields Ambiguous;
// ambiguity only comes from malformed engine responses.
func Match(code CanonicalCode, foundInEvidence bool) Outcome {
	if foundInEvidence {
		return Matched(code)
	}
	return Mismatched(code)
}
