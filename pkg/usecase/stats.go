package usecase

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemora/pkg/domain/model"
	"github.com/secmon-lab/mnemora/pkg/domain/types"
)

// topTagLimit caps how many tags a stats rollup reports
const topTagLimit = 10

// GetStats builds a rollup of the live record population and the engine's
// hit/miss counters.
func (uc *UseCases) GetStats(ctx context.Context) (*model.Stats, error) {
	records, err := uc.repo.Record().Scan(ctx, interfaces.RecordFilter{Now: uc.now()})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scan records")
	}

	stats := &model.Stats{
		TotalRecords: len(records),
		CountByClass: make(map[types.RecordClass]int),
		Hits:         uc.hits.Load(),
		Misses:       uc.misses.Load(),
	}

	tagCounts := make(map[string]int)
	var relevanceSum float64
	for _, rec := range records {
		stats.CountByClass[rec.Class]++
		stats.ContentBytes += int64(len(rec.Content))
		relevanceSum += rec.BaseRelevance
		for _, tag := range rec.Tags {
			tagCounts[tag]++
		}
	}
	if len(records) > 0 {
		stats.AverageBaseRelevance = relevanceSum / float64(len(records))
	}

	tags := make([]model.TagCount, 0, len(tagCounts))
	for tag, count := range tagCounts {
		tags = append(tags, model.TagCount{Tag: tag, Count: count})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})
	if len(tags) > topTagLimit {
		tags = tags[:topTagLimit]
	}
	stats.TopTags = tags

	return stats, nil
}
