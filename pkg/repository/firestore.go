package repository

import (
	"context"
	"net/url"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/chorus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const collectionRecords = "records"

// Firestore implements Repository. Vector search needs a composite vector
// index on (scope_kind, scope_id, embedding).
type Firestore struct {
	client *firestore.Client
}

type firestoreRecord struct {
	ID        string             `firestore:"id"`
	Content   string             `firestore:"content"`
	ActorID   string             `firestore:"actor_id"`
	Role      string             `firestore:"role"`
	ScopeKind string             `firestore:"scope_kind"`
	ScopeID   string             `firestore:"scope_id"`
	CreatedAt string             `firestore:"created_at"`
	Metadata  map[string]any     `firestore:"metadata,omitempty"`
	Embedding firestore.Vector32 `firestore:"embedding"`
}

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID),
		)
	}

	return &Firestore{client: client}, nil
}

// docID keys a document by scope and record ID, so the same record ID in
// two scopes never shares a document. The scope ID is escaped because
// Firestore document IDs cannot contain '/'.
func docID(scope model.Scope, id model.RecordID) string {
	return string(scope.Kind) + ":" + url.PathEscape(scope.ID) + ":" + string(id)
}

func (r *Firestore) PutRecord(ctx context.Context, record *model.Record) error {
	if err := validatePut(record); err != nil {
		return err
	}

	doc := firestoreRecord{
		ID:        string(record.ID),
		Content:   record.Content,
		ActorID:   record.ActorID,
		Role:      string(record.Role),
		ScopeKind: string(record.Scope.Kind),
		ScopeID:   record.Scope.ID,
		CreatedAt: record.CreatedAt,
		Metadata:  record.Metadata,
		Embedding: record.Embedding,
	}

	if _, err := r.client.Collection(collectionRecords).Doc(docID(record.Scope, record.ID)).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put record", goerr.V("id", record.ID))
	}

	logging.From(ctx).Debug("put record", "id", record.ID, "scope", record.Scope.String())
	return nil
}

func (r *Firestore) GetRecord(ctx context.Context, scope model.Scope, id model.RecordID) (*model.Record, error) {
	snap, err := r.client.Collection(collectionRecords).Doc(docID(scope, id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrRecordNotFound, "failed to get record",
				goerr.V("id", id),
				goerr.V("scope", scope.String()),
			)
		}
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("id", id))
	}

	return decodeSnapshot(snap)
}

func (r *Firestore) scopeQuery(scope model.Scope) firestore.Query {
	return r.client.Collection(collectionRecords).
		Where("scope_kind", "==", string(scope.Kind)).
		Where("scope_id", "==", scope.ID)
}

func (r *Firestore) ListRecords(ctx context.Context, scope model.Scope) ([]*model.Record, error) {
	iter := r.scopeQuery(scope).Documents(ctx)
	defer iter.Stop()

	records, err := collect(iter)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list records", goerr.V("scope", scope.String()))
	}
	return records, nil
}

func (r *Firestore) SearchSimilarRecords(ctx context.Context, scope model.Scope, embedding firestore.Vector32, limit int) ([]*model.Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	vq := r.scopeQuery(scope).FindNearest("embedding", embedding, limit, firestore.DistanceMeasureCosine, nil)
	iter := vq.Documents(ctx)
	defer iter.Stop()

	records, err := collect(iter)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search similar records",
			goerr.V("scope", scope.String()),
			goerr.V("limit", limit),
		)
	}

	logging.From(ctx).Debug("searched records", "scope", scope.String(), "limit", limit, "found", len(records))
	return records, nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

func collect(iter *firestore.DocumentIterator) ([]*model.Record, error) {
	var records []*model.Record
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents")
		}

		record, err := decodeSnapshot(snap)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) (*model.Record, error) {
	var doc firestoreRecord
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode record", goerr.V("doc", snap.Ref.ID))
	}

	return &model.Record{
		ID:        model.RecordID(doc.ID),
		Content:   doc.Content,
		ActorID:   doc.ActorID,
		Role:      model.Role(doc.Role),
		Scope:     model.Scope{Kind: model.ScopeKind(doc.ScopeKind), ID: doc.ScopeID},
		CreatedAt: doc.CreatedAt,
		Metadata:  doc.Metadata,
		Embedding: doc.Embedding,
	}, nil
}
