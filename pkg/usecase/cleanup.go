package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemora/pkg/utils/logging"
)

// Cleanup removes records whose expiry has passed and returns how many
// were deleted. Records rewritten concurrently keep their new state and
// are left for the next pass.
func (uc *UseCases) Cleanup(ctx context.Context) (int, error) {
	now := uc.now()

	records, err := uc.repo.Record().Scan(ctx, interfaces.RecordFilter{IncludeExpired: true})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to scan records")
	}

	var refs []interfaces.RecordRef
	for _, rec := range records {
		if rec.IsExpired(now) {
			refs = append(refs, interfaces.RecordRef{ID: rec.ID, Revision: rec.Revision})
		}
	}
	if len(refs) == 0 {
		return 0, nil
	}

	deleted, err := uc.repo.Record().DeleteMany(ctx, refs)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to delete expired records")
	}

	logging.From(ctx).Info("removed expired records",
		"expired", len(refs), "deleted", deleted)
	return deleted, nil
}
