package repository

import (
	"context"
	"encoding/json"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/chorus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	chromem "github.com/philippgille/chromem-go"
)

const (
	metaActorID   = "actor_id"
	metaRole      = "role"
	metaCreatedAt = "created_at"
	metaScopeKind = "scope_kind"
	metaScopeID   = "scope_id"
	metaMetadata  = "metadata"
)

// Chromem is an in-process Repository backed by chromem-go. Each scope gets
// its own collection so a query can never cross scopes.
type Chromem struct {
	db *chromem.DB

	mu          sync.RWMutex
	collections map[model.Scope]*chromem.Collection
	order       map[model.Scope][]model.RecordID
	known       map[recordKey]struct{}
}

// recordKey identifies a record within its scope; the same ID may exist in
// several scopes as distinct records.
type recordKey struct {
	scope model.Scope
	id    model.RecordID
}

func NewChromem() *Chromem {
	return &Chromem{
		db:          chromem.NewDB(),
		collections: make(map[model.Scope]*chromem.Collection),
		order:       make(map[model.Scope][]model.RecordID),
		known:       make(map[recordKey]struct{}),
	}
}

func (r *Chromem) collection(scope model.Scope, create bool) (*chromem.Collection, error) {
	r.mu.RLock()
	col, ok := r.collections[scope]
	r.mu.RUnlock()
	if ok || !create {
		return col, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if col, ok := r.collections[scope]; ok {
		return col, nil
	}

	// chromem-go falls back to its default (OpenAI) embedding func for nil.
	// It is never invoked: every document and query carries its own embedding.
	col, err := r.db.CreateCollection(scope.String(), nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create collection", goerr.V("scope", scope.String()))
	}
	r.collections[scope] = col
	return col, nil
}

func (r *Chromem) PutRecord(ctx context.Context, record *model.Record) error {
	if err := validatePut(record); err != nil {
		return err
	}

	col, err := r.collection(record.Scope, true)
	if err != nil {
		return err
	}

	doc, err := toDocument(record)
	if err != nil {
		return err
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to add document", goerr.V("id", record.ID))
	}

	r.mu.Lock()
	key := recordKey{scope: record.Scope, id: record.ID}
	if _, ok := r.known[key]; !ok {
		r.known[key] = struct{}{}
		r.order[record.Scope] = append(r.order[record.Scope], record.ID)
	}
	r.mu.Unlock()

	logging.From(ctx).Debug("put record", "id", record.ID, "scope", record.Scope.String())
	return nil
}

func (r *Chromem) GetRecord(ctx context.Context, scope model.Scope, id model.RecordID) (*model.Record, error) {
	col, err := r.collection(scope, false)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, goerr.Wrap(ErrRecordNotFound, "scope has no records", goerr.V("scope", scope.String()), goerr.V("id", id))
	}

	doc, err := col.GetByID(ctx, string(id))
	if err != nil {
		return nil, goerr.Wrap(ErrRecordNotFound, err.Error(), goerr.V("scope", scope.String()), goerr.V("id", id))
	}

	return fromDocument(doc.ID, doc.Content, doc.Metadata, doc.Embedding)
}

func (r *Chromem) ListRecords(ctx context.Context, scope model.Scope) ([]*model.Record, error) {
	r.mu.RLock()
	ids := append([]model.RecordID(nil), r.order[scope]...)
	r.mu.RUnlock()

	records := make([]*model.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := r.GetRecord(ctx, scope, id)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *Chromem) SearchSimilarRecords(ctx context.Context, scope model.Scope, embedding firestore.Vector32, limit int) ([]*model.Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	col, err := r.collection(scope, false)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, nil
	}

	// chromem-go rejects nResults larger than the collection
	n := min(limit, col.Count())
	if n == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query collection",
			goerr.V("scope", scope.String()),
			goerr.V("limit", n),
		)
	}

	records := make([]*model.Record, 0, len(results))
	for _, res := range results {
		rec, err := fromDocument(res.ID, res.Content, res.Metadata, res.Embedding)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	logging.From(ctx).Debug("searched records", "scope", scope.String(), "limit", limit, "found", len(records))
	return records, nil
}

func (r *Chromem) Close() error {
	return nil
}

func toDocument(record *model.Record) (chromem.Document, error) {
	meta := map[string]string{
		metaActorID:   record.ActorID,
		metaRole:      string(record.Role),
		metaCreatedAt: record.CreatedAt,
		metaScopeKind: string(record.Scope.Kind),
		metaScopeID:   record.Scope.ID,
	}

	if len(record.Metadata) > 0 {
		raw, err := json.Marshal(record.Metadata)
		if err != nil {
			return chromem.Document{}, goerr.Wrap(err, "failed to marshal metadata", goerr.V("id", record.ID))
		}
		meta[metaMetadata] = string(raw)
	}

	return chromem.Document{
		ID:        string(record.ID),
		Content:   record.Content,
		Embedding: record.Embedding,
		Metadata:  meta,
	}, nil
}

func fromDocument(id, content string, meta map[string]string, embedding []float32) (*model.Record, error) {
	record := &model.Record{
		ID:        model.RecordID(id),
		Content:   content,
		ActorID:   meta[metaActorID],
		Role:      model.Role(meta[metaRole]),
		CreatedAt: meta[metaCreatedAt],
		Scope: model.Scope{
			Kind: model.ScopeKind(meta[metaScopeKind]),
			ID:   meta[metaScopeID],
		},
		Embedding: embedding,
	}

	if raw, ok := meta[metaMetadata]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &record.Metadata); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal metadata", goerr.V("id", id))
		}
	}

	return record, nil
}
