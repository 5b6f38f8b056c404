package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/chorus/pkg/adapter"
	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/chorus/pkg/repository"
	"github.com/m-mizutani/gt"
)

func embed(t *testing.T, text string) firestore.Vector32 {
	t.Helper()
	vec, err := adapter.NewHashEmbedder(256).Embed(context.Background(), text)
	gt.NoError(t, err)
	return vec
}

func newRecord(t *testing.T, scope model.Scope, content, actor string, role model.Role, createdAt string) *model.Record {
	return &model.Record{
		ID:        model.NewRecordID(),
		Content:   content,
		ActorID:   actor,
		Role:      role,
		Scope:     scope,
		CreatedAt: createdAt,
		Metadata:  map[string]any{"source": "test"},
		Embedding: embed(t, content),
	}
}

// testRepository runs the same contract against every backend
func testRepository(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	scopeA := model.RunScope("a-" + suffix)
	scopeB := model.RunScope("b-" + suffix)

	recA1 := newRecord(t, scopeA, "we should migrate the database on friday", "alice", model.RoleUser, "2024-01-01T10:00:00Z")
	recA2 := newRecord(t, scopeA, "database migration plan drafted", "planner", model.RoleAssistant, "2024-01-01T11:00:00Z")
	recA3 := newRecord(t, scopeA, "lunch order for the team", "", "", "")
	recB1 := newRecord(t, scopeB, "database migration in another project", "bob", model.RoleUser, "2024-01-02T10:00:00Z")

	for _, rec := range []*model.Record{recA1, recA2, recA3, recB1} {
		gt.NoError(t, repo.PutRecord(ctx, rec))
	}

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetRecord(ctx, scopeA, recA1.ID)
		gt.NoError(t, err)
		gt.Equal(t, got.ID, recA1.ID)
		gt.Equal(t, got.Content, recA1.Content)
		gt.Equal(t, got.ActorID, "alice")
		gt.Equal(t, got.Role, model.RoleUser)
		gt.Equal(t, got.Scope, scopeA)
		gt.Equal(t, got.CreatedAt, "2024-01-01T10:00:00Z")
		gt.Equal(t, got.Metadata["source"], any("test"))
	})

	t.Run("get keeps missing attribution", func(t *testing.T) {
		got, err := repo.GetRecord(ctx, scopeA, recA3.ID)
		gt.NoError(t, err)
		gt.Equal(t, got.ActorID, "")
		gt.Equal(t, got.Role, model.Role(""))
		gt.Equal(t, got.CreatedAt, "")
	})

	t.Run("get from another scope", func(t *testing.T) {
		_, err := repo.GetRecord(ctx, scopeB, recA1.ID)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, repository.ErrRecordNotFound))
	})

	t.Run("list is scoped", func(t *testing.T) {
		listA, err := repo.ListRecords(ctx, scopeA)
		gt.NoError(t, err)
		gt.A(t, listA).Length(3)
		for _, r := range listA {
			gt.Equal(t, r.Scope, scopeA)
		}

		listB, err := repo.ListRecords(ctx, scopeB)
		gt.NoError(t, err)
		gt.A(t, listB).Length(1)
		gt.Equal(t, listB[0].ID, recB1.ID)
	})

	t.Run("list unknown scope", func(t *testing.T) {
		list, err := repo.ListRecords(ctx, model.RunScope("none-"+suffix))
		gt.NoError(t, err)
		gt.A(t, list).Length(0)
	})

	t.Run("search is scoped and limited", func(t *testing.T) {
		results, err := repo.SearchSimilarRecords(ctx, scopeA, embed(t, "database migration"), 2)
		gt.NoError(t, err)
		gt.A(t, results).Length(2)
		for _, r := range results {
			gt.Equal(t, r.Scope, scopeA)
		}
	})

	t.Run("search limit above scope size", func(t *testing.T) {
		results, err := repo.SearchSimilarRecords(ctx, scopeB, embed(t, "database"), 10)
		gt.NoError(t, err)
		gt.A(t, results).Length(1)
	})

	t.Run("search empty scope", func(t *testing.T) {
		results, err := repo.SearchSimilarRecords(ctx, model.UserScope("nobody-"+suffix), embed(t, "x"), 5)
		gt.NoError(t, err)
		gt.A(t, results).Length(0)
	})

	t.Run("same id in two scopes", func(t *testing.T) {
		scopeC := model.RunScope("c-" + suffix)
		scopeD := model.RunScope("d-" + suffix)

		recC := newRecord(t, scopeC, "shared id in first scope", "carol", model.RoleUser, "2024-01-03T10:00:00Z")
		recD := newRecord(t, scopeD, "shared id in second scope", "dave", model.RoleUser, "2024-01-03T11:00:00Z")
		recD.ID = recC.ID

		gt.NoError(t, repo.PutRecord(ctx, recC))
		gt.NoError(t, repo.PutRecord(ctx, recD))

		listC, err := repo.ListRecords(ctx, scopeC)
		gt.NoError(t, err)
		gt.A(t, listC).Length(1)
		gt.Equal(t, listC[0].Content, "shared id in first scope")

		listD, err := repo.ListRecords(ctx, scopeD)
		gt.NoError(t, err)
		gt.A(t, listD).Length(1)
		gt.Equal(t, listD[0].Content, "shared id in second scope")

		found, err := repo.SearchSimilarRecords(ctx, scopeD, embed(t, "shared id"), 5)
		gt.NoError(t, err)
		gt.A(t, found).Length(1)

		got, err := repo.GetRecord(ctx, scopeC, recC.ID)
		gt.NoError(t, err)
		gt.Equal(t, got.Scope, scopeC)
		gt.Equal(t, got.ActorID, "carol")
	})

	t.Run("put validates", func(t *testing.T) {
		noEmbedding := &model.Record{ID: model.NewRecordID(), Content: "x", Scope: scopeA}
		gt.True(t, errors.Is(repo.PutRecord(ctx, noEmbedding), repository.ErrEmbeddingRequired))

		noContent := &model.Record{ID: model.NewRecordID(), Scope: scopeA, Embedding: embed(t, "x")}
		gt.True(t, errors.Is(repo.PutRecord(ctx, noContent), model.ErrEmptyContent))

		badScope := &model.Record{ID: model.NewRecordID(), Content: "x", Embedding: embed(t, "x")}
		gt.True(t, errors.Is(repo.PutRecord(ctx, badScope), model.ErrInvalidScope))
	})
}

func TestChromem(t *testing.T) {
	repo := repository.NewChromem()
	defer repo.Close()
	testRepository(t, repo)
}

func TestChromemPutSameIDTwice(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewChromem()
	scope := model.RunScope("dup")

	rec := newRecord(t, scope, "first version", "alice", model.RoleUser, "2024-01-01T10:00:00Z")
	gt.NoError(t, repo.PutRecord(ctx, rec))
	gt.NoError(t, repo.PutRecord(ctx, rec))

	list, err := repo.ListRecords(ctx, scope)
	gt.NoError(t, err)
	gt.A(t, list).Length(1)
}

func TestChromemListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewChromem()
	scope := model.UserScope("alice")

	var ids []model.RecordID
	for i := 0; i < 5; i++ {
		rec := newRecord(t, scope, fmt.Sprintf("note %d", i), "alice", model.RoleUser, "")
		gt.NoError(t, repo.PutRecord(ctx, rec))
		ids = append(ids, rec.ID)
	}

	list, err := repo.ListRecords(ctx, scope)
	gt.NoError(t, err)
	gt.A(t, list).Length(5)
	for i, r := range list {
		gt.Equal(t, r.ID, ids[i])
	}
}

func TestFirestore(t *testing.T) {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.NewFirestore(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	defer repo.Close()

	testRepository(t, repo)
}
