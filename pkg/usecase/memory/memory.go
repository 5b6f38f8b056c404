// Package memory binds a Repository and an Embedder into the three ports the
// context assembler and the reporter depend on: similarity retrieval, full
// listing and attributed write-back.
package memory

import (
	"context"
	"time"

	"github.com/m-mizutani/chorus/pkg/adapter"
	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/chorus/pkg/repository"
	"github.com/m-mizutani/chorus/pkg/usecase/assembler"
	"github.com/m-mizutani/chorus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// UseCase provides memory record operations
type UseCase struct {
	repo     repository.Repository
	embedder adapter.Embedder
	now      func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithClock replaces time.Now for CreatedAt assignment
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates a new memory UseCase instance
func New(repo repository.Repository, embedder adapter.Embedder, opts ...Option) *UseCase {
	uc := &UseCase{
		repo:     repo,
		embedder: embedder,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Search returns up to limit records of scope relevant to query, unordered
func (u *UseCase) Search(ctx context.Context, query string, scope model.Scope, limit int) ([]*model.Record, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	vec, err := u.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	records, err := u.repo.SearchSimilarRecords(ctx, scope, vec, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search records")
	}

	// A backend must never return more than asked for
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ListAll returns every record of scope
func (u *UseCase) ListAll(ctx context.Context, scope model.Scope) ([]*model.Record, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	records, err := u.repo.ListRecords(ctx, scope)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list records")
	}
	return records, nil
}

// Append persists a new record built from draft. Actor and role are carried
// over unchanged; ID and CreatedAt are assigned here.
func (u *UseCase) Append(ctx context.Context, draft *model.Draft) (*model.Record, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	record := draft.NewRecord(u.now())

	vec, err := u.embedder.Embed(ctx, record.Content)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content")
	}
	record.Embedding = vec

	if err := u.repo.PutRecord(ctx, record); err != nil {
		return nil, goerr.Wrap(err, "failed to append record")
	}

	logging.From(ctx).Debug("appended record",
		"id", record.ID,
		"scope", record.Scope.String(),
		"actor", record.Actor(),
		"role", record.Role,
	)
	return record, nil
}

// Import persists records that already carry their own ID and CreatedAt,
// e.g. a seed file. Missing IDs are generated; CreatedAt is kept as is.
func (u *UseCase) Import(ctx context.Context, records []*model.Record) error {
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = model.NewRecordID()
		}

		vec, err := u.embedder.Embed(ctx, rec.Content)
		if err != nil {
			return goerr.Wrap(err, "failed to embed content", goerr.V("id", rec.ID))
		}
		rec.Embedding = vec

		if err := u.repo.PutRecord(ctx, rec); err != nil {
			return goerr.Wrap(err, "failed to import record", goerr.V("id", rec.ID))
		}
	}
	return nil
}

// Retriever binds Search to a query and scope for the assembler
func (u *UseCase) Retriever(query string, scope model.Scope) assembler.RetrieveFunc {
	return func(ctx context.Context, limit int) ([]*model.Record, error) {
		return u.Search(ctx, query, scope, limit)
	}
}

// AssembleContext is the common path: retrieve for the query, then assemble
func (u *UseCase) AssembleContext(ctx context.Context, input assembler.Input) (*assembler.Result, error) {
	return assembler.Assemble(ctx, input, u.Retriever(input.Query, input.Scope))
}
