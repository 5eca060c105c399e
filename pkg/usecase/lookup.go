package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemora/pkg/domain/model"
	"github.com/secmon-lab/mnemora/pkg/domain/model/config"
	"github.com/secmon-lab/mnemora/pkg/domain/types"
)

// LookupResult pairs a retrieved record with the scores that ranked it
type LookupResult struct {
	Record     *model.Record
	Similarity float64
	Relevance  float64
}

// Lookup retrieves records relevant to the query. A record whose key
// equals the derived key of the query is an exact hit and short-circuits
// the search. Otherwise records of the class are ranked by composite
// relevance and results below the threshold are dropped.
func (uc *UseCases) Lookup(ctx context.Context, query string, opts types.LookupOptions) ([]*LookupResult, error) {
	if !opts.Class.IsValid() {
		return nil, goerr.New("invalid record class", goerr.V("class", opts.Class))
	}

	now := uc.now()

	exact, err := uc.lookupExact(ctx, query, opts, now)
	if err != nil {
		return nil, err
	}
	if exact != nil {
		uc.hits.Add(1)
		return []*LookupResult{exact}, nil
	}

	results, err := uc.lookupSemantic(ctx, query, opts, now)
	if err != nil {
		return nil, err
	}

	if len(results) > 0 {
		uc.hits.Add(1)
	} else {
		uc.misses.Add(1)
	}
	return results, nil
}

func (uc *UseCases) lookupExact(ctx context.Context, query string, opts types.LookupOptions, now time.Time) (*LookupResult, error) {
	key := model.DeriveKey(query)
	rec, err := uc.repo.Record().GetByKey(ctx, opts.Class, key)
	if err != nil {
		if errors.Is(err, interfaces.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to look up exact key")
	}
	if rec.IsExpired(now) && !opts.IncludeExpired {
		return nil, nil
	}
	if !matchesOptions(rec, opts) {
		return nil, nil
	}

	touched, err := uc.recordAccess(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	return &LookupResult{
		Record:     touched,
		Similarity: 1.0,
		Relevance: uc.policy.Weights.Relevance(
			1.0, touched.BaseRelevance, touched.AccessCount, touched.LastAccessedAt, now),
	}, nil
}

func (uc *UseCases) lookupSemantic(ctx context.Context, query string, opts types.LookupOptions, now time.Time) ([]*LookupResult, error) {
	queryVec, _, err := uc.embedder.Resolve(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(ErrEmbeddingUnavailable, "cannot embed query", goerr.V("cause", err))
	}

	records, err := uc.repo.Record().Scan(ctx, interfaces.RecordFilter{
		Class:          opts.Class,
		Tags:           opts.Tags,
		TaskType:       opts.TaskType,
		IncludeExpired: opts.IncludeExpired,
		Now:            now,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scan records")
	}

	minRelevance := uc.policy.MinRelevance
	if opts.MinRelevance != nil {
		minRelevance = *opts.MinRelevance
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = config.DefaultLookupLimit
	}

	var results []*LookupResult
	for _, rec := range records {
		similarity, err := model.CosineSimilarity(queryVec, rec.Embedding)
		if err != nil {
			return nil, goerr.Wrap(err, "stored embedding does not match query dimension",
				goerr.V("recordID", rec.ID))
		}

		relevance := uc.policy.Weights.Relevance(
			similarity, rec.BaseRelevance, rec.AccessCount, rec.LastAccessedAt, now)
		if relevance < minRelevance {
			continue
		}

		results = append(results, &LookupResult{
			Record:     rec,
			Similarity: similarity,
			Relevance:  relevance,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		if results[i].Record.AccessCount != results[j].Record.AccessCount {
			return results[i].Record.AccessCount > results[j].Record.AccessCount
		}
		return results[i].Record.LastAccessedAt.After(results[j].Record.LastAccessedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}

	for _, r := range results {
		touched, err := uc.recordAccess(ctx, r.Record.ID)
		if err != nil {
			return nil, err
		}
		r.Record = touched
	}

	return results, nil
}

// matchesOptions applies the optional lookup refinements to an exact hit,
// mirroring the filters the semantic scan pushes into the repository.
func matchesOptions(rec *model.Record, opts types.LookupOptions) bool {
	for _, tag := range opts.Tags {
		if !rec.HasTag(tag) {
			return false
		}
	}
	if opts.TaskType != "" && rec.Metadata[model.MetadataKeyTaskType] != opts.TaskType {
		return false
	}
	return true
}

// recordAccess bumps the access bookkeeping of a record, retrying a
// bounded number of times when a concurrent writer wins the revision race.
func (uc *UseCases) recordAccess(ctx context.Context, id types.RecordID) (*model.Record, error) {
	for i := 0; i < revisionRetryLimit; i++ {
		rec, err := uc.repo.Record().GetByID(ctx, id)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to reload record", goerr.V("id", id))
		}

		rec.Touch(uc.now())
		updated, err := uc.repo.Record().Put(ctx, rec)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, interfaces.ErrRevisionMismatch) {
			return nil, goerr.Wrap(err, "failed to record access", goerr.V("id", id))
		}
	}
	return nil, goerr.Wrap(ErrRevisionRetryExceeded, "access bookkeeping lost too many races", goerr.V("id", id))
}
