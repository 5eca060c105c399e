package types

import "fmt"

// RecordClass distinguishes cache entries from long-term memory entries.
// Per-class behavior is limited to default TTL and default tags; the
// retrieval algorithm is identical across classes.
type RecordClass string

const (
	// ClassExactResponse caches responses keyed by normalized prompt text
	ClassExactResponse RecordClass = "exact_response"
	// ClassTaskContext stores durable execution contexts for recurring tasks
	ClassTaskContext RecordClass = "task_context"
	// ClassStageOutput stores intermediate outputs of pipeline stages
	ClassStageOutput RecordClass = "stage_output"
	// ClassPattern stores recurring prompt/response patterns
	ClassPattern RecordClass = "pattern"
	// ClassInsight stores derived insights worth reusing
	ClassInsight RecordClass = "insight"
	// ClassUserPreference stores per-user preferences
	ClassUserPreference RecordClass = "user_preference"
)

// AllRecordClasses returns all valid record classes
func AllRecordClasses() []RecordClass {
	return []RecordClass{
		ClassExactResponse,
		ClassTaskContext,
		ClassStageOutput,
		ClassPattern,
		ClassInsight,
		ClassUserPreference,
	}
}

// IsValid checks if the record class is valid
func (c RecordClass) IsValid() bool {
	switch c {
	case ClassExactResponse,
		ClassTaskContext,
		ClassStageOutput,
		ClassPattern,
		ClassInsight,
		ClassUserPreference:
		return true
	default:
		return false
	}
}

// String returns the string representation of the record class
func (c RecordClass) String() string {
	return string(c)
}

// ParseRecordClass parses a string into a RecordClass
func ParseRecordClass(s string) (RecordClass, error) {
	class := RecordClass(s)
	if !class.IsValid() {
		return "", fmt.Errorf("invalid record class: %s", s)
	}
	return class, nil
}
