package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrRecordNotFound    = goerr.New("record not found")
	ErrEmbeddingRequired = goerr.New("record embedding is required")
)

// Repository persists memory records. Every read is confined to one scope.
type Repository interface {
	// PutRecord saves a record; the record must carry its embedding
	PutRecord(ctx context.Context, record *model.Record) error

	// GetRecord retrieves a record by ID within a scope
	GetRecord(ctx context.Context, scope model.Scope, id model.RecordID) (*model.Record, error)

	// ListRecords returns every record of the scope in no particular order
	ListRecords(ctx context.Context, scope model.Scope) ([]*model.Record, error)

	// SearchSimilarRecords returns up to limit records of the scope nearest
	// to embedding, ranked by relevance (not by time)
	SearchSimilarRecords(ctx context.Context, scope model.Scope, embedding firestore.Vector32, limit int) ([]*model.Record, error)

	// Close releases resources
	Close() error
}

func validatePut(record *model.Record) error {
	if record.Content == "" {
		return goerr.Wrap(model.ErrEmptyContent, "failed to put record", goerr.V("id", record.ID))
	}
	if err := record.Scope.Validate(); err != nil {
		return goerr.Wrap(err, "failed to put record", goerr.V("id", record.ID))
	}
	if len(record.Embedding) == 0 {
		return goerr.Wrap(ErrEmbeddingRequired, "failed to put record", goerr.V("id", record.ID))
	}
	return nil
}
