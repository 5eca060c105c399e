package model

import "github.com/secmon-lab/mnemora/pkg/domain/types"

// TagCount is a tag with its frequency across live records
type TagCount struct {
	Tag   string
	Count int
}

// Stats is a read-only rollup over the live record population plus the
// engine's hit/miss counters. Building it never mutates records.
type Stats struct {
	TotalRecords         int
	CountByClass         map[types.RecordClass]int
	AverageBaseRelevance float64
	TopTags              []TagCount
	// ContentBytes approximates the memory footprint as the sum of
	// content lengths.
	ContentBytes int64

	Hits   int64
	Misses int64
}
