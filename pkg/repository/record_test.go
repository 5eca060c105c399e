package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemora/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemora/pkg/domain/model"
	"github.com/secmon-lab/mnemora/pkg/domain/types"
	"github.com/secmon-lab/mnemora/pkg/repository/firestore"
	"github.com/secmon-lab/mnemora/pkg/repository/memory"
)

func newTestRecord(class types.RecordClass, text string) *model.Record {
	now := time.Now().UTC()
	return &model.Record{
		ID:             types.NewRecordID(),
		Class:          class,
		Key:            model.DeriveKey(text),
		Content:        "content for " + text,
		Embedding:      []float32{0.1, 0.2, 0.3},
		Metadata:       map[string]string{model.MetadataKeyTaskType: "summarize"},
		Tags:           []string{"alpha", "beta"},
		BaseRelevance:  1.0,
		AccessCount:    1,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
}

func runRecordRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Put creates record with revision 1", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := newTestRecord(types.ClassTaskContext, "create test")
		created, err := repo.Record().Put(ctx, rec)
		gt.NoError(t, err).Required()

		gt.Value(t, created.ID).Equal(rec.ID)
		gt.Number(t, created.Revision).Equal(1)
		gt.Array(t, created.Embedding).Length(3)
	})

	t.Run("GetByKey retrieves stored record", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := newTestRecord(types.ClassTaskContext, "get by key test")
		_, err := repo.Record().Put(ctx, rec)
		gt.NoError(t, err).Required()

		got, err := repo.Record().GetByKey(ctx, types.ClassTaskContext, rec.Key)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ID).Equal(rec.ID)
		gt.Value(t, got.Content).Equal(rec.Content)
		gt.Value(t, got.Metadata[model.MetadataKeyTaskType]).Equal("summarize")
	})

	t.Run("GetByKey with wrong class returns not found", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := newTestRecord(types.ClassTaskContext, "class scoped key")
		_, err := repo.Record().Put(ctx, rec)
		gt.NoError(t, err).Required()

		_, err = repo.Record().GetByKey(ctx, types.ClassPattern, rec.Key)
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, memory.ErrNotFound) || errors.Is(err, firestore.ErrNotFound)).True()
	})

	t.Run("GetByID returns not found for missing record", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Record().GetByID(ctx, types.NewRecordID())
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, memory.ErrNotFound) || errors.Is(err, firestore.ErrNotFound)).True()
	})

	t.Run("Put with matching revision updates in place", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := newTestRecord(types.ClassTaskContext, "update test")
		created, err := repo.Record().Put(ctx, rec)
		gt.NoError(t, err).Required()

		created.Content = "updated content"
		created.AccessCount = 2
		updated, err := repo.Record().Put(ctx, created)
		gt.NoError(t, err).Required()
		gt.Number(t, updated.Revision).Equal(2)

		got, err := repo.Record().GetByID(ctx, rec.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Content).Equal("updated content")
		gt.Number(t, got.AccessCount).Equal(2)
	})

	t.Run("Put with stale revision fails", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := newTestRecord(types.ClassTaskContext, "stale revision test")
		created, err := repo.Record().Put(ctx, rec)
		gt.NoError(t, err).Required()

		// first writer wins
		first := created.Clone()
		first.Content = "first"
		_, err = repo.Record().Put(ctx, first)
		gt.NoError(t, err).Required()

		// second writer with the old revision loses
		second := created.Clone()
		second.Content = "second"
		_, err = repo.Record().Put(ctx, second)
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, memory.ErrRevisionMismatch) || errors.Is(err, firestore.ErrRevisionMismatch)).True()
	})

	t.Run("Put create loses taken key with conflict", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		winner := newTestRecord(types.ClassTaskContext, "contested key")
		_, err := repo.Record().Put(ctx, winner)
		gt.NoError(t, err).Required()

		loser := newTestRecord(types.ClassTaskContext, "contested key")
		_, err = repo.Record().Put(ctx, loser)
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, memory.ErrKeyConflict) || errors.Is(err, firestore.ErrKeyConflict)).True()

		// same key in another class is a different record
		otherClass := newTestRecord(types.ClassPattern, "contested key")
		_, err = repo.Record().Put(ctx, otherClass)
		gt.NoError(t, err)
	})

	t.Run("Delete frees the key for a new record", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first := newTestRecord(types.ClassTaskContext, "recycled key")
		created, err := repo.Record().Put(ctx, first)
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Record().Delete(ctx, created.ID, created.Revision)).Required()

		second := newTestRecord(types.ClassTaskContext, "recycled key")
		stored, err := repo.Record().Put(ctx, second)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.ID).Equal(second.ID)
	})

	t.Run("Put with nonzero revision on missing record fails", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := newTestRecord(types.ClassTaskContext, "phantom update test")
		rec.Revision = 3
		_, err := repo.Record().Put(ctx, rec)
		gt.Value(t, err).NotNil()
	})

	t.Run("Delete with matching revision removes record", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := newTestRecord(types.ClassTaskContext, "delete test")
		created, err := repo.Record().Put(ctx, rec)
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.Record().Delete(ctx, created.ID, created.Revision)).Required()

		_, err = repo.Record().GetByID(ctx, created.ID)
		gt.Value(t, err).NotNil()
	})

	t.Run("Delete with stale revision fails", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := newTestRecord(types.ClassTaskContext, "conditional delete test")
		created, err := repo.Record().Put(ctx, rec)
		gt.NoError(t, err).Required()

		rewritten := created.Clone()
		rewritten.Content = "rewritten after scan"
		_, err = repo.Record().Put(ctx, rewritten)
		gt.NoError(t, err).Required()

		err = repo.Record().Delete(ctx, created.ID, created.Revision)
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, memory.ErrRevisionMismatch) || errors.Is(err, firestore.ErrRevisionMismatch)).True()
	})

	t.Run("DeleteMany skips rewritten records", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		a, err := repo.Record().Put(ctx, newTestRecord(types.ClassStageOutput, "batch delete a"))
		gt.NoError(t, err).Required()
		b, err := repo.Record().Put(ctx, newTestRecord(types.ClassStageOutput, "batch delete b"))
		gt.NoError(t, err).Required()

		// b gets rewritten between snapshot and delete
		rewritten := b.Clone()
		rewritten.Content = "still alive"
		_, err = repo.Record().Put(ctx, rewritten)
		gt.NoError(t, err).Required()

		deleted, err := repo.Record().DeleteMany(ctx, []interfaces.RecordRef{
			{ID: a.ID, Revision: a.Revision},
			{ID: b.ID, Revision: b.Revision},
		})
		gt.NoError(t, err).Required()
		gt.Number(t, deleted).Equal(1)

		_, err = repo.Record().GetByID(ctx, b.ID)
		gt.NoError(t, err)
	})

	t.Run("Scan filters by class", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Record().Put(ctx, newTestRecord(types.ClassPattern, "pattern one"))
		gt.NoError(t, err).Required()
		_, err = repo.Record().Put(ctx, newTestRecord(types.ClassPattern, "pattern two"))
		gt.NoError(t, err).Required()
		_, err = repo.Record().Put(ctx, newTestRecord(types.ClassInsight, "insight one"))
		gt.NoError(t, err).Required()

		records, err := repo.Record().Scan(ctx, interfaces.RecordFilter{Class: types.ClassPattern})
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(2)
	})

	t.Run("Scan requires all tags", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		tagged := newTestRecord(types.ClassPattern, "tagged record")
		tagged.Tags = []string{"alpha", "beta", "gamma"}
		_, err := repo.Record().Put(ctx, tagged)
		gt.NoError(t, err).Required()

		other := newTestRecord(types.ClassPattern, "other record")
		other.Tags = []string{"alpha"}
		_, err = repo.Record().Put(ctx, other)
		gt.NoError(t, err).Required()

		records, err := repo.Record().Scan(ctx, interfaces.RecordFilter{
			Class: types.ClassPattern,
			Tags:  []string{"alpha", "gamma"},
		})
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(1)
		gt.Value(t, records[0].ID).Equal(tagged.ID)
	})

	t.Run("Scan filters by task type metadata", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		translate := newTestRecord(types.ClassTaskContext, "translate context")
		translate.Metadata = map[string]string{model.MetadataKeyTaskType: "translate"}
		_, err := repo.Record().Put(ctx, translate)
		gt.NoError(t, err).Required()

		_, err = repo.Record().Put(ctx, newTestRecord(types.ClassTaskContext, "summarize context"))
		gt.NoError(t, err).Required()

		records, err := repo.Record().Scan(ctx, interfaces.RecordFilter{
			Class:    types.ClassTaskContext,
			TaskType: "translate",
		})
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(1)
		gt.Value(t, records[0].ID).Equal(translate.ID)
	})

	t.Run("Scan hides expired records unless asked", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		expired := newTestRecord(types.ClassExactResponse, "expired entry")
		past := time.Now().UTC().Add(-time.Minute)
		expired.ExpiresAt = &past
		_, err := repo.Record().Put(ctx, expired)
		gt.NoError(t, err).Required()

		live, err := repo.Record().Scan(ctx, interfaces.RecordFilter{
			Class: types.ClassExactResponse,
			Now:   time.Now().UTC(),
		})
		gt.NoError(t, err).Required()
		gt.Array(t, live).Length(0)

		all, err := repo.Record().Scan(ctx, interfaces.RecordFilter{
			Class:          types.ClassExactResponse,
			IncludeExpired: true,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(1)
	})

	t.Run("Count matches scan", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			_, err := repo.Record().Put(ctx, newTestRecord(types.ClassInsight, fmt.Sprintf("insight %d", i)))
			gt.NoError(t, err).Required()
		}

		count, err := repo.Record().Count(ctx, interfaces.RecordFilter{Class: types.ClassInsight})
		gt.NoError(t, err).Required()
		gt.Number(t, count).Equal(3)
	})

	t.Run("returned records are isolated copies", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := newTestRecord(types.ClassUserPreference, "isolation test")
		created, err := repo.Record().Put(ctx, rec)
		gt.NoError(t, err).Required()

		created.Content = "mutated by caller"
		created.Embedding[0] = 9.9

		got, err := repo.Record().GetByID(ctx, rec.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Content).Equal(rec.Content)
		gt.Value(t, got.Embedding[0]).Equal(float32(0.1))
	})
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d_", time.Now().UnixNano())
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func TestMemoryRecordRepository(t *testing.T) {
	runRecordRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestFirestoreRecordRepository(t *testing.T) {
	runRecordRepositoryTest(t, newFirestoreRepository)
}
