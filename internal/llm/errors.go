package llm

import (
	"fmt"
	"strings"
)

// FailureKind classifies why a structured call failed so the orchestrator
// can decide between retry-with-correction and degrade explicitly, rather
// than dispatching on error types.
type FailureKind string

const (
	// FailureTransient covers timeouts, rate limits, and 5xx responses
	FailureTransient FailureKind = "transient"

	// FailureSchema means the model's output did not match the expected structure
	FailureSchema FailureKind = "schema"

	// FailureRefusal is a content-policy soft refusal
	FailureRefusal FailureKind = "refusal"

	// FailureUnavailable means no provider is configured or reachable
	FailureUnavailable FailureKind = "unavailable"
)

// CallFailure carries the kind plus the raw failure reason, so callers can
// distinguish "retry with a corrective prompt" from "fall back".
type CallFailure struct {
	Kind   FailureKind
	Reason string
	Err    error
}

func (f *CallFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("llm call failed (%s): %s: %v", f.Kind, f.Reason, f.Err)
	}
	return fmt.Sprintf("llm call failed (%s): %s", f.Kind, f.Reason)
}

func (f *CallFailure) Unwrap() error {
	return f.Err
}

// refusal phrases checked case-insensitively against the response prefix
var refusalMarkers = []string{
	"i can't help",
	"i cannot help",
	"i can't assist",
	"i cannot assist",
	"i'm sorry, but i can't",
	"i'm sorry, but i cannot",
	"i am unable to",
	"i won't be able to",
	"as an ai",
}

// isSoftRefusal detects a content-policy soft refusal in place of output
func isSoftRefusal(text string) bool {
	head := strings.ToLower(text)
	if len(head) > 200 {
		head = head[:200]
	}
	for _, marker := range refusalMarkers {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}
