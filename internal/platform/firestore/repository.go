package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Document represents a strongly typed Firestore document with metadata timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// Encoder serialises the strongly typed entity prior to persistence.
type Encoder[T any] func(value T) (any, error)

// Decoder hydrates the strongly typed entity from a snapshot.
type Decoder[T any] func(snap *firestore.DocumentSnapshot) (T, error)

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// Path addresses a collection that may sit below parent documents, alternating collection and
// document IDs: Path{"users", uid, "products"}.
type Path []string

func (p Path) String() string { return strings.Join(p, "/") }

func (p Path) valid() bool {
	if len(p)%2 == 0 {
		return false
	}
	for _, segment := range p {
		if strings.TrimSpace(segment) == "" || strings.Contains(segment, "/") {
			return false
		}
	}
	return true
}

// Collection provides typed access to every collection sharing one document shape, whichever
// parent document it hangs off.
type Collection[T any] struct {
	provider *Provider
	name     string
	encode   Encoder[T]
	decode   Decoder[T]
}

// NewCollection constructs a Collection. Nil codecs fall back to Firestore's struct mapping.
func NewCollection[T any](provider *Provider, name string, encode Encoder[T], decode Decoder[T]) *Collection[T] {
	if encode == nil {
		encode = func(value T) (any, error) { return value, nil }
	}
	if decode == nil {
		decode = func(snap *firestore.DocumentSnapshot) (T, error) {
			var target T
			err := snap.DataTo(&target)
			return target, err
		}
	}
	return &Collection[T]{provider: provider, name: name, encode: encode, decode: decode}
}

// Create stores value under a Firestore generated ID and returns that ID.
func (c *Collection[T]) Create(ctx context.Context, path Path, value T) (string, error) {
	coll, err := c.ref(ctx, path)
	if err != nil {
		return "", err
	}
	payload, err := c.encode(value)
	if err != nil {
		return "", fmt.Errorf("firestore: encode %s: %w", c.name, err)
	}
	doc := coll.NewDoc()
	if _, err := doc.Create(ctx, payload); err != nil {
		return "", WrapError(c.op("create"), err)
	}
	return doc.ID, nil
}

// Set upserts value under id.
func (c *Collection[T]) Set(ctx context.Context, path Path, id string, value T, opts ...firestore.SetOption) error {
	doc, err := c.Doc(ctx, path, id)
	if err != nil {
		return err
	}
	payload, err := c.encode(value)
	if err != nil {
		return fmt.Errorf("firestore: encode %s/%s: %w", c.name, id, err)
	}
	if _, err := doc.Set(ctx, payload, opts...); err != nil {
		return WrapError(c.op("set"), err)
	}
	return nil
}

// Update applies partial updates to an existing document.
func (c *Collection[T]) Update(ctx context.Context, path Path, id string, updates []firestore.Update, preconds ...firestore.Precondition) error {
	doc, err := c.Doc(ctx, path, id)
	if err != nil {
		return err
	}
	if _, err := doc.Update(ctx, updates, preconds...); err != nil {
		return WrapError(c.op("update"), err)
	}
	return nil
}

// Get fetches the document by ID and decodes it.
func (c *Collection[T]) Get(ctx context.Context, path Path, id string) (Document[T], error) {
	doc, err := c.Doc(ctx, path, id)
	if err != nil {
		return Document[T]{}, err
	}
	snapshot, err := doc.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(c.op("get"), err)
	}
	return c.Decode(snapshot)
}

// Delete removes the document. Deleting a missing document is not an error.
func (c *Collection[T]) Delete(ctx context.Context, path Path, id string) error {
	doc, err := c.Doc(ctx, path, id)
	if err != nil {
		return err
	}
	if _, err := doc.Delete(ctx); err != nil {
		return WrapError(c.op("delete"), err)
	}
	return nil
}

// Query executes a collection query and returns the decoded documents.
func (c *Collection[T]) Query(ctx context.Context, path Path, build QueryBuilder) ([]Document[T], error) {
	coll, err := c.ref(ctx, path)
	if err != nil {
		return nil, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var docs []Document[T]
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return docs, nil
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		decoded, err := c.Decode(snapshot)
		if err != nil {
			return nil, err
		}
		docs = append(docs, decoded)
	}
}

// Doc exposes the document reference, for transactions and batched writes.
func (c *Collection[T]) Doc(ctx context.Context, path Path, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" || strings.Contains(id, "/") {
		return nil, WrapError(c.op("document"), errors.New("firestore: invalid document id"))
	}
	coll, err := c.ref(ctx, path)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

// Decode converts a snapshot read elsewhere, such as inside a transaction.
func (c *Collection[T]) Decode(snapshot *firestore.DocumentSnapshot) (Document[T], error) {
	entity, err := c.decode(snapshot)
	if err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode %s/%s: %w", c.name, snapshot.Ref.ID, err)
	}
	return Document[T]{
		ID:         snapshot.Ref.ID,
		Data:       entity,
		CreateTime: snapshot.CreateTime,
		UpdateTime: snapshot.UpdateTime,
	}, nil
}

func (c *Collection[T]) ref(ctx context.Context, path Path) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	if !path.valid() {
		return nil, WrapError(c.op("collection"), fmt.Errorf("firestore: invalid collection path %q", path.String()))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	coll := client.Collection(path[0])
	for i := 1; i+1 < len(path); i += 2 {
		coll = coll.Doc(path[i]).Collection(path[i+1])
	}
	return coll, nil
}

func (c *Collection[T]) op(action string) string {
	return c.name + "." + action
}
