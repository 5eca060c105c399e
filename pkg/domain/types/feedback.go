package types

import "fmt"

// Feedback is a caller judgement on the usefulness of a served record.
// It adjusts the record's base relevance asymmetrically: negative
// feedback decays trust faster than positive builds it.
type Feedback string

const (
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

// IsValid checks if the feedback value is valid
func (f Feedback) IsValid() bool {
	switch f {
	case FeedbackPositive, FeedbackNegative:
		return true
	default:
		return false
	}
}

// String returns the string representation of the feedback
func (f Feedback) String() string {
	return string(f)
}

// ParseFeedback parses a string into a Feedback
func ParseFeedback(s string) (Feedback, error) {
	fb := Feedback(s)
	if !fb.IsValid() {
		return "", fmt.Errorf("invalid feedback: %s", s)
	}
	return fb, nil
}
