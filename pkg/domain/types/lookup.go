package types

// LookupOptions narrows a retrieval query. Class is required; the other
// fields are optional refinements.
type LookupOptions struct {
	// Class selects which record class to search
	Class RecordClass

	// Tags restricts results to records carrying all of the given tags
	Tags []string

	// TaskType restricts results to records whose task_type metadata
	// matches
	TaskType string

	// MinRelevance overrides the policy threshold when non-nil
	MinRelevance *float64

	// Limit caps the number of results. Zero means the policy default.
	Limit int

	// IncludeExpired makes logically dead records eligible as results
	IncludeExpired bool
}
