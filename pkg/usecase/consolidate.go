package usecase

import (
	"context"
	"errors"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemora/pkg/domain/model"
	"github.com/secmon-lab/mnemora/pkg/domain/types"
)

// ConsolidateResult reports what a consolidation pass changed
type ConsolidateResult struct {
	// Merged is the number of records that absorbed at least one duplicate
	Merged int

	// Deleted is the number of duplicate records removed
	Deleted int
}

// Consolidate merges near-duplicate records. Records of the same class
// whose embeddings are more similar than the merge threshold collapse
// into one: the more used record survives and absorbs the other's access
// count, tags and metadata. Running it twice in a row changes nothing
// the second time.
func (uc *UseCases) Consolidate(ctx context.Context) (*ConsolidateResult, error) {
	result := &ConsolidateResult{}

	for _, class := range types.AllRecordClasses() {
		merged, deleted, err := uc.consolidateClass(ctx, class)
		if err != nil {
			return nil, goerr.Wrap(err, "consolidation failed", goerr.V("class", class))
		}
		result.Merged += merged
		result.Deleted += deleted
	}

	return result, nil
}

func (uc *UseCases) consolidateClass(ctx context.Context, class types.RecordClass) (int, int, error) {
	records, err := uc.repo.Record().Scan(ctx, interfaces.RecordFilter{
		Class: class,
		Now:   uc.now(),
	})
	if err != nil {
		return 0, 0, goerr.Wrap(err, "failed to scan class")
	}

	live := make(map[types.RecordID]*model.Record, len(records))
	for _, rec := range records {
		live[rec.ID] = rec
	}

	survivors := make(map[types.RecordID]bool)
	deleted := 0

	for i := 0; i < len(records); i++ {
		a, ok := live[records[i].ID]
		if !ok {
			continue
		}
		for j := i + 1; j < len(records); j++ {
			b, ok := live[records[j].ID]
			if !ok {
				continue
			}

			similarity, err := model.CosineSimilarity(a.Embedding, b.Embedding)
			if err != nil {
				return 0, 0, goerr.Wrap(err, "records carry mismatched embedding dimensions",
					goerr.V("a", a.ID), goerr.V("b", b.ID))
			}
			if similarity < uc.policy.MergeThreshold {
				continue
			}

			survivor, loser := pickSurvivor(a, b)
			updated, ok, err := uc.mergePair(ctx, survivor, loser)
			if err != nil {
				return 0, 0, err
			}
			if !ok {
				continue
			}

			delete(live, loser.ID)
			live[updated.ID] = updated
			survivors[updated.ID] = true
			deleted++

			if a.ID == loser.ID {
				break
			}
			a = updated
		}
	}

	// a survivor of one merge can itself be absorbed later; only count
	// the ones that made it to the end
	merged := 0
	for id := range survivors {
		if _, ok := live[id]; ok {
			merged++
		}
	}
	return merged, deleted, nil
}

// pickSurvivor chooses which of two duplicate records lives on: the one
// with the larger access count, or the more recently accessed on a tie.
func pickSurvivor(a, b *model.Record) (survivor, loser *model.Record) {
	if a.AccessCount != b.AccessCount {
		if a.AccessCount > b.AccessCount {
			return a, b
		}
		return b, a
	}
	if a.LastAccessedAt.After(b.LastAccessedAt) {
		return a, b
	}
	return b, a
}

// mergePair removes the loser and folds its history into the survivor.
// Returns false without error when a concurrent writer invalidated either
// side; the pair is reconsidered on the next pass.
func (uc *UseCases) mergePair(ctx context.Context, survivor, loser *model.Record) (*model.Record, bool, error) {
	if err := uc.repo.Record().Delete(ctx, loser.ID, loser.Revision); err != nil {
		if errors.Is(err, interfaces.ErrRevisionMismatch) || errors.Is(err, interfaces.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, goerr.Wrap(err, "failed to delete duplicate", goerr.V("id", loser.ID))
	}

	for i := 0; i < revisionRetryLimit; i++ {
		merged := survivor.Clone()
		merged.AccessCount += loser.AccessCount
		if loser.BaseRelevance > merged.BaseRelevance {
			merged.BaseRelevance = loser.BaseRelevance
		}
		merged.Tags = unionTags(merged.Tags, loser.Tags)
		merged.Metadata = unionMetadata(merged.Metadata, loser.Metadata)

		updated, err := uc.repo.Record().Put(ctx, merged)
		if err == nil {
			return updated, true, nil
		}
		if !errors.Is(err, interfaces.ErrRevisionMismatch) {
			return nil, false, goerr.Wrap(err, "failed to update survivor", goerr.V("id", survivor.ID))
		}

		fresh, err := uc.repo.Record().GetByID(ctx, survivor.ID)
		if err != nil {
			return nil, false, goerr.Wrap(err, "failed to reload survivor", goerr.V("id", survivor.ID))
		}
		survivor = fresh
	}
	return nil, false, goerr.Wrap(ErrRevisionRetryExceeded, "survivor update lost too many races",
		goerr.V("id", survivor.ID))
}

func unionTags(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for _, tag := range a {
		seen[tag] = true
	}
	for _, tag := range b {
		seen[tag] = true
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func unionMetadata(survivor, loser map[string]string) map[string]string {
	if len(loser) == 0 {
		return survivor
	}
	merged := make(map[string]string, len(survivor)+len(loser))
	for k, v := range loser {
		merged[k] = v
	}
	for k, v := range survivor {
		merged[k] = v
	}
	return merged
}
