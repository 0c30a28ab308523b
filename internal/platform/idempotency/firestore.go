package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/launchpad/api/internal/platform/firestore"
)

const collectionName = "idempotency_keys"

var keysPath = pfirestore.Path{collectionName}

// FirestoreStore implements Store on a top-level Firestore collection.
type FirestoreStore struct {
	provider *pfirestore.Provider
	keys     *pfirestore.Collection[firestoreRecord]
}

// NewFirestoreStore constructs a Firestore-backed store.
func NewFirestoreStore(provider *pfirestore.Provider) *FirestoreStore {
	return &FirestoreStore{
		provider: provider,
		keys:     pfirestore.NewCollection[firestoreRecord](provider, collectionName, nil, nil),
	}
}

// Reserve implements Store.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (State, Record, error) {
	ref, err := s.keys.Doc(ctx, keysPath, documentID(key))
	if err != nil {
		return 0, Record{}, err
	}

	var (
		state  State
		result Record
	)
	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		record, found, err := s.read(tx, ref)
		if err != nil {
			return err
		}
		if !found || record.expired(now) {
			result = newRecord(key, fingerprint, now, ttl)
			state = StateNew
			return tx.Set(ref, toFirestoreRecord(result))
		}
		if record.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}
		state, result = record.state(), record
		return nil
	})
	return state, result, err
}

// Complete implements Store.
func (s *FirestoreStore) Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	ref, err := s.keys.Doc(ctx, keysPath, documentID(key))
	if err != nil {
		return err
	}
	return s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		record, found, err := s.read(tx, ref)
		if err != nil {
			return err
		}
		if !found {
			record = newRecord(key, fingerprint, now, ttl)
		} else if record.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}
		return tx.Set(ref, toFirestoreRecord(completeRecord(record, resp, now, ttl)))
	})
}

// Release implements Store.
func (s *FirestoreStore) Release(ctx context.Context, key string) error {
	return s.keys.Delete(ctx, keysPath, documentID(key))
}

// CleanupExpired deletes up to limit expired records in one batch.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	docs, err := s.keys.Query(ctx, keysPath, func(q firestore.Query) firestore.Query {
		return q.Where("expires_at", "<=", now).Limit(limit)
	})
	if err != nil || len(docs) == 0 {
		return 0, err
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	writer := client.BulkWriter(ctx)
	for _, doc := range docs {
		ref, err := s.keys.Doc(ctx, keysPath, doc.ID)
		if err != nil {
			return 0, err
		}
		if _, err := writer.Delete(ref); err != nil {
			return 0, pfirestore.WrapError("idempotency_keys.cleanup", err)
		}
	}
	writer.End()
	return len(docs), nil
}

func (s *FirestoreStore) read(tx *firestore.Transaction, ref *firestore.DocumentRef) (Record, bool, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		wrapped := pfirestore.WrapError("idempotency_keys.get", err)
		var repoErr *pfirestore.Error
		if errors.As(wrapped, &repoErr) && repoErr.IsNotFound() {
			return Record{}, false, nil
		}
		return Record{}, false, wrapped
	}
	doc, err := s.keys.Decode(snap)
	if err != nil {
		return Record{}, false, err
	}
	return doc.Data.toRecord(), true, nil
}

type firestoreRecord struct {
	Key         string              `firestore:"key"`
	Fingerprint string              `firestore:"fingerprint"`
	Completed   bool                `firestore:"completed"`
	Status      int                 `firestore:"response_status"`
	Headers     map[string][]string `firestore:"response_headers"`
	Body        []byte              `firestore:"response_body"`
	CreatedAt   time.Time           `firestore:"created_at"`
	ExpiresAt   time.Time           `firestore:"expires_at"`
}

func toFirestoreRecord(r Record) firestoreRecord {
	return firestoreRecord(r)
}

func (r firestoreRecord) toRecord() Record {
	return Record(r)
}
