package mcp_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/chorus/pkg/adapter"
	"github.com/m-mizutani/chorus/pkg/repository"
	"github.com/m-mizutani/chorus/pkg/service/mcp"
	"github.com/m-mizutani/chorus/pkg/usecase/memory"
	"github.com/m-mizutani/gt"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func connect(t *testing.T, uc *memory.UseCase) *mcpsdk.ClientSession {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	srv := mcp.New(uc)
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	go func() {
		_ = srv.MCPServer().Run(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func callText(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	gt.NoError(t, err)
	gt.A(t, result.Content).Length(1)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	return text.Text, result.IsError
}

func newUseCase() *memory.UseCase {
	tick := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return memory.New(
		repository.NewChromem(),
		adapter.NewHashEmbedder(256),
		memory.WithClock(func() time.Time {
			now := tick
			tick = tick.Add(time.Minute)
			return now
		}),
	)
}

func TestToolsRegistered(t *testing.T) {
	session := connect(t, newUseCase())

	result, err := session.ListTools(context.Background(), nil)
	gt.NoError(t, err)

	names := map[string]bool{}
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	gt.Map(t, names).HasKey("assemble_context")
	gt.Map(t, names).HasKey("attribution_report")
	gt.Map(t, names).HasKey("remember")
}

func TestRememberThenReport(t *testing.T) {
	session := connect(t, newUseCase())

	text, isErr := callText(t, session, "remember", map[string]any{
		"scope":    "run:sprint-12",
		"content":  "we drop the legacy exporter",
		"actor_id": "alice",
	})
	gt.False(t, isErr)
	gt.S(t, text).Contains("Stored memory")

	_, isErr = callText(t, session, "remember", map[string]any{
		"scope":    "run:sprint-12",
		"content":  "agreed, exporter goes",
		"actor_id": "bob",
	})
	gt.False(t, isErr)

	text, isErr = callText(t, session, "attribution_report", map[string]any{
		"scope":          "run:sprint-12",
		"sort_by_time":   true,
		"group_by_actor": true,
	})
	gt.False(t, isErr)
	gt.Equal(t, text, "=== Speaker: alice ===\n[2024-05-01 08:00:00] we drop the legacy exporter\n\n=== Speaker: bob ===\n[2024-05-01 08:01:00] agreed, exporter goes")

	text, isErr = callText(t, session, "assemble_context", map[string]any{
		"query": "exporter",
		"scope": "run:sprint-12",
		"limit": 1,
	})
	gt.False(t, isErr)
	gt.Equal(t, text, "- agreed, exporter goes (by bob at 2024-05-01 08:01:00 UTC)")
}

func TestEmptyScopeReport(t *testing.T) {
	session := connect(t, newUseCase())

	text, isErr := callText(t, session, "attribution_report", map[string]any{
		"scope": "user:nobody",
	})
	gt.False(t, isErr)
	gt.Equal(t, text, "No memories found.")
}

func TestToolErrorsAreReported(t *testing.T) {
	session := connect(t, newUseCase())

	text, isErr := callText(t, session, "remember", map[string]any{
		"scope":   "galaxy:andromeda",
		"content": "hello",
	})
	gt.True(t, isErr)
	gt.S(t, text).Contains("unknown scope kind")

	_, isErr = callText(t, session, "assemble_context", map[string]any{
		"query": "x",
		"scope": "run:r",
		"limit": -1,
	})
	gt.True(t, isErr)
}
