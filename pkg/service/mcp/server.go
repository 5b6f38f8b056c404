package mcp

import (
	"context"
	"fmt"

	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/chorus/pkg/usecase/assembler"
	"github.com/m-mizutani/chorus/pkg/usecase/memory"
	"github.com/m-mizutani/chorus/pkg/usecase/reporter"
	"github.com/m-mizutani/chorus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "chorus"
	serverVersion = "0.1.0"
)

// Server exposes context assembly, attribution reports and write-back as MCP tools
type Server struct {
	memory *memory.UseCase
	server *mcp.Server
}

// AssembleContextInput is the input of the assemble_context tool
type AssembleContextInput struct {
	Query        string   `json:"query" jsonschema:"Text used to find relevant memories"`
	Scope        string   `json:"scope" jsonschema:"Scope in the form kind:id, kind is one of user, agent or run"`
	Limit        int      `json:"limit,omitempty" jsonschema:"Maximum number of memories to include, defaults to 10"`
	ExcludeRoles []string `json:"exclude_roles,omitempty" jsonschema:"Roles to leave out, e.g. assistant"`
}

// AttributionReportInput is the input of the attribution_report tool
type AttributionReportInput struct {
	Scope        string `json:"scope" jsonschema:"Scope in the form kind:id"`
	SortByTime   bool   `json:"sort_by_time,omitempty" jsonschema:"Order records from oldest to newest"`
	GroupByActor bool   `json:"group_by_actor,omitempty" jsonschema:"Group records under a heading per speaker"`
}

// RememberInput is the input of the remember tool
type RememberInput struct {
	Scope   string `json:"scope" jsonschema:"Scope in the form kind:id"`
	Content string `json:"content" jsonschema:"Text to remember"`
	ActorID string `json:"actor_id,omitempty" jsonschema:"Who said it"`
	Role    string `json:"role,omitempty" jsonschema:"user, assistant or system"`
}

const defaultToolLimit = 10

// New creates a Server with all tools registered
func New(uc *memory.UseCase) *Server {
	s := &Server{
		memory: uc,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "assemble_context",
		Description: "Build an attributed context block of the most recent relevant memories in a scope",
	}, s.assembleContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "attribution_report",
		Description: "Render every memory of a scope with its speaker and time",
	}, s.attributionReport)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "remember",
		Description: "Store a new attributed memory in a scope",
	}, s.remember)

	return s
}

// MCPServer returns the underlying server, e.g. to run it on another transport
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// Serve runs the server over stdio until ctx is cancelled or the client disconnects
func (s *Server) Serve(ctx context.Context) error {
	logging.From(ctx).Info("MCP server started", "transport", "stdio")
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "MCP server stopped")
	}
	return nil
}

func (s *Server) assembleContext(ctx context.Context, req *mcp.CallToolRequest, input AssembleContextInput) (*mcp.CallToolResult, any, error) {
	scope, err := model.ParseScope(input.Scope)
	if err != nil {
		return errorResult(err), nil, nil
	}

	limit := input.Limit
	if limit == 0 {
		limit = defaultToolLimit
	}

	roles := make([]model.Role, 0, len(input.ExcludeRoles))
	for _, r := range input.ExcludeRoles {
		roles = append(roles, model.Role(r))
	}

	result, err := s.memory.AssembleContext(ctx, assembler.Input{
		Query:        input.Query,
		Scope:        scope,
		Limit:        limit,
		ExcludeRoles: roles,
	})
	if err != nil {
		logging.From(ctx).Warn("assemble_context failed", "error", err)
		return errorResult(err), nil, nil
	}

	logging.From(ctx).Debug("assemble_context",
		"scope", scope.String(),
		"requested", result.Requested,
		"selected", len(result.Records),
	)
	return textResult(result.Text), nil, nil
}

func (s *Server) attributionReport(ctx context.Context, req *mcp.CallToolRequest, input AttributionReportInput) (*mcp.CallToolResult, any, error) {
	scope, err := model.ParseScope(input.Scope)
	if err != nil {
		return errorResult(err), nil, nil
	}

	records, err := s.memory.ListAll(ctx, scope)
	if err != nil {
		logging.From(ctx).Warn("attribution_report failed", "error", err)
		return errorResult(err), nil, nil
	}

	text := reporter.Render(records, reporter.Options{
		SortByTime:   input.SortByTime,
		GroupByActor: input.GroupByActor,
	})
	return textResult(text), nil, nil
}

func (s *Server) remember(ctx context.Context, req *mcp.CallToolRequest, input RememberInput) (*mcp.CallToolResult, any, error) {
	scope, err := model.ParseScope(input.Scope)
	if err != nil {
		return errorResult(err), nil, nil
	}

	role := model.Role(input.Role)
	if role == "" {
		role = model.RoleUser
	}

	record, err := s.memory.Append(ctx, &model.Draft{
		Content: input.Content,
		ActorID: input.ActorID,
		Role:    role,
		Scope:   scope,
	})
	if err != nil {
		return errorResult(err), nil, nil
	}

	return textResult(fmt.Sprintf("Stored memory %s at %s", record.ID, record.CreatedAt)), nil, nil
}

// errorResult reports a failure to the client as tool output so the model can see it
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: err.Error()},
		},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
