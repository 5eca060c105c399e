package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemora/pkg/domain/model"
	"github.com/secmon-lab/mnemora/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	recordsCollection    = "records"
	recordKeysCollection = "record_keys"
)

// recordDoc is the Firestore document representation of model.Record.
// Embedding is stored as firestore.Vector32 so the collection stays
// compatible with FindNearest indexes, even though semantic ranking is
// done engine-side with the composite relevance score.
type recordDoc struct {
	ID                types.RecordID     `firestore:"ID"`
	Class             string             `firestore:"Class"`
	Key               string             `firestore:"Key"`
	Content           string             `firestore:"Content"`
	Embedding         firestore.Vector32 `firestore:"Embedding,omitempty"`
	FallbackEmbedding bool               `firestore:"FallbackEmbedding"`
	Metadata          map[string]string  `firestore:"Metadata,omitempty"`
	Tags              []string           `firestore:"Tags,omitempty"`
	BaseRelevance     float64            `firestore:"BaseRelevance"`
	AccessCount       int64              `firestore:"AccessCount"`
	CreatedAt         time.Time          `firestore:"CreatedAt"`
	LastAccessedAt    time.Time          `firestore:"LastAccessedAt"`
	ExpiresAt         *time.Time         `firestore:"ExpiresAt,omitempty"`
	Revision          int64              `firestore:"Revision"`
}

func toRecordDoc(r *model.Record) *recordDoc {
	doc := &recordDoc{
		ID:                r.ID,
		Class:             r.Class.String(),
		Key:               r.Key,
		Content:           r.Content,
		FallbackEmbedding: r.FallbackEmbedding,
		Metadata:          r.Metadata,
		Tags:              r.Tags,
		BaseRelevance:     r.BaseRelevance,
		AccessCount:       r.AccessCount,
		CreatedAt:         r.CreatedAt,
		LastAccessedAt:    r.LastAccessedAt,
		ExpiresAt:         r.ExpiresAt,
		Revision:          r.Revision,
	}
	if len(r.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(r.Embedding)
	}
	return doc
}

func fromRecordDoc(d *recordDoc) *model.Record {
	r := &model.Record{
		ID:                d.ID,
		Class:             types.RecordClass(d.Class),
		Key:               d.Key,
		Content:           d.Content,
		FallbackEmbedding: d.FallbackEmbedding,
		Metadata:          d.Metadata,
		Tags:              d.Tags,
		BaseRelevance:     d.BaseRelevance,
		AccessCount:       d.AccessCount,
		CreatedAt:         d.CreatedAt,
		LastAccessedAt:    d.LastAccessedAt,
		ExpiresAt:         d.ExpiresAt,
		Revision:          d.Revision,
	}
	if len(d.Embedding) > 0 {
		r.Embedding = []float32(d.Embedding)
	}
	return r
}

type recordRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newRecordRepository(client *firestore.Client) *recordRepository {
	return &recordRepository{client: client}
}

func (r *recordRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + recordsCollection)
}

// keyDoc claims a (class, key) pair for a record. The claim is read and
// written in the same transaction as the record itself, which is what
// keeps the pair unique under concurrent creates.
type keyDoc struct {
	RecordID types.RecordID `firestore:"RecordID"`
}

func (r *recordRepository) keyRef(class, key string) *firestore.DocumentRef {
	return r.client.Collection(r.collectionPrefix + recordKeysCollection).Doc(class + ":" + key)
}

func (r *recordRepository) GetByKey(ctx context.Context, class types.RecordClass, key string) (*model.Record, error) {
	iter := r.collection().
		Where("Class", "==", class.String()).
		Where("Key", "==", key).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(ErrNotFound, "no record for key",
			goerr.V("class", class), goerr.V("key", key))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query record by key",
			goerr.V("class", class), goerr.V("key", key))
	}

	var d recordDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal record")
	}

	return fromRecordDoc(&d), nil
}

func (r *recordRepository) GetByID(ctx context.Context, id types.RecordID) (*model.Record, error) {
	doc, err := r.collection().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "no record for id", goerr.V("recordID", id))
		}
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("recordID", id))
	}

	var d recordDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal record", goerr.V("recordID", id))
	}

	return fromRecordDoc(&d), nil
}

// Put creates or conditionally replaces a record inside a transaction so
// the revision check and the write are atomic.
func (r *recordRepository) Put(ctx context.Context, rec *model.Record) (*model.Record, error) {
	if err := rec.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid record")
	}

	saved := rec.Clone()
	saved.Revision++

	docRef := r.collection().Doc(rec.ID.String())
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to read record in transaction")
		}

		creating := status.Code(err) == codes.NotFound
		if creating {
			if rec.Revision != 0 {
				return goerr.Wrap(ErrNotFound, "cannot update missing record",
					goerr.V("recordID", rec.ID))
			}

			// a create must also win the (class, key) claim
			keyRef := r.keyRef(saved.Class.String(), saved.Key)
			claim, err := tx.Get(keyRef)
			if err != nil && status.Code(err) != codes.NotFound {
				return goerr.Wrap(err, "failed to read key claim in transaction")
			}
			if err == nil {
				var taken keyDoc
				if err := claim.DataTo(&taken); err != nil {
					return goerr.Wrap(err, "failed to unmarshal key claim")
				}
				if taken.RecordID != saved.ID {
					return goerr.Wrap(ErrKeyConflict, "key already taken by another record",
						goerr.V("class", saved.Class),
						goerr.V("key", saved.Key),
						goerr.V("existingID", taken.RecordID),
					)
				}
			}
			if err := tx.Set(keyRef, keyDoc{RecordID: saved.ID}); err != nil {
				return goerr.Wrap(err, "failed to claim key")
			}
		} else {
			var stored recordDoc
			if err := doc.DataTo(&stored); err != nil {
				return goerr.Wrap(err, "failed to unmarshal stored record")
			}
			if stored.Revision != rec.Revision {
				return goerr.Wrap(ErrRevisionMismatch, "concurrent write detected",
					goerr.V("recordID", rec.ID),
					goerr.V("expected", rec.Revision),
					goerr.V("stored", stored.Revision),
				)
			}
		}

		return tx.Set(docRef, toRecordDoc(saved))
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

// Scan pushes the class filter to Firestore and applies tag, task type
// and expiry filters client-side. Tag filtering cannot be expressed as a
// single Firestore query for the all-of semantics the engine needs.
func (r *recordRepository) Scan(ctx context.Context, filter interfaces.RecordFilter) ([]*model.Record, error) {
	query := r.collection().Query
	if filter.Class != "" {
		query = query.Where("Class", "==", filter.Class.String())
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	records := make([]*model.Record, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate records")
		}

		var d recordDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal record")
		}

		rec := fromRecordDoc(&d)
		if !matchesResidualFilter(rec, filter, now) {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

func (r *recordRepository) Delete(ctx context.Context, id types.RecordID, revision int64) error {
	docRef := r.collection().Doc(id.String())

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "no record for id", goerr.V("recordID", id))
			}
			return goerr.Wrap(err, "failed to read record in transaction", goerr.V("recordID", id))
		}

		var stored recordDoc
		if err := doc.DataTo(&stored); err != nil {
			return goerr.Wrap(err, "failed to unmarshal stored record")
		}
		if stored.Revision != revision {
			return goerr.Wrap(ErrRevisionMismatch, "record changed since scan",
				goerr.V("recordID", id),
				goerr.V("expected", revision),
				goerr.V("stored", stored.Revision),
			)
		}

		// release the (class, key) claim together with the record
		if err := tx.Delete(r.keyRef(stored.Class, stored.Key)); err != nil {
			return goerr.Wrap(err, "failed to release key claim", goerr.V("recordID", id))
		}
		return tx.Delete(docRef)
	})
}

func (r *recordRepository) DeleteMany(ctx context.Context, refs []interfaces.RecordRef) (int, error) {
	deleted := 0
	for _, ref := range refs {
		err := r.Delete(ctx, ref.ID, ref.Revision)
		switch {
		case err == nil:
			deleted++
		case errorsIsAny(err, ErrNotFound, ErrRevisionMismatch):
			// already gone or rewritten after the scan snapshot: skip
		default:
			return deleted, goerr.Wrap(err, "failed to delete record batch",
				goerr.V("recordID", ref.ID))
		}
	}

	return deleted, nil
}

func (r *recordRepository) Count(ctx context.Context, filter interfaces.RecordFilter) (int, error) {
	records, err := r.Scan(ctx, filter)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count records")
	}
	return len(records), nil
}

func matchesResidualFilter(rec *model.Record, filter interfaces.RecordFilter, now time.Time) bool {
	for _, tag := range filter.Tags {
		if !rec.HasTag(tag) {
			return false
		}
	}
	if filter.TaskType != "" && rec.Metadata[model.MetadataKeyTaskType] != filter.TaskType {
		return false
	}
	if !filter.IncludeExpired && rec.IsExpired(now) {
		return false
	}
	return true
}

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
