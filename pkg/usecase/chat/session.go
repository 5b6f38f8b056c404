package chat

import (
	"bytes"
	"context"
	_ "embed"
	"text/template"

	"github.com/m-mizutani/chorus/pkg/adapter"
	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/chorus/pkg/usecase/assembler"
	"github.com/m-mizutani/chorus/pkg/usecase/memory"
	"github.com/m-mizutani/chorus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const defaultContextLimit = 10

//go:embed prompt/system.md
var systemPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

// Session manages one speaker's conversation with an agent inside a shared scope
type Session struct {
	memory *memory.UseCase
	gemini adapter.Gemini

	scope        model.Scope
	userID       string
	agentID      string
	contextLimit int
	excludeRoles []model.Role
}

// NewInput contains parameters for creating a new chat session
type NewInput struct {
	Memory       *memory.UseCase
	Gemini       adapter.Gemini
	Scope        model.Scope
	UserID       string
	AgentID      string
	ContextLimit int          // Optional: defaults to 10
	ExcludeRoles []model.Role // Optional: roles left out of the context
}

// Reply is the outcome of one Send
type Reply struct {
	Text      string
	Context   *assembler.Result
	User      *model.Record
	Assistant *model.Record
}

func New(input NewInput) (*Session, error) {
	if input.Memory == nil {
		return nil, goerr.New("memory is required")
	}
	if input.Gemini == nil {
		return nil, goerr.New("gemini is required")
	}
	if err := input.Scope.Validate(); err != nil {
		return nil, goerr.Wrap(err, "failed to create session")
	}
	if input.AgentID == "" {
		return nil, goerr.New("agent id is required")
	}

	limit := input.ContextLimit
	if limit == 0 {
		limit = defaultContextLimit
	}

	return &Session{
		memory:       input.Memory,
		gemini:       input.Gemini,
		scope:        input.Scope,
		userID:       input.UserID,
		agentID:      input.AgentID,
		contextLimit: limit,
		excludeRoles: input.ExcludeRoles,
	}, nil
}

// Send assembles context for message, generates a reply and writes both the
// message and the reply back to the scope with their attribution.
func (s *Session) Send(ctx context.Context, message string) (*Reply, error) {
	logger := logging.From(ctx).With("scope", s.scope.String(), "agent", s.agentID)

	assembled, err := s.memory.AssembleContext(ctx, assembler.Input{
		Query:        message,
		Scope:        s.scope,
		Limit:        s.contextLimit,
		ExcludeRoles: s.excludeRoles,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to assemble context")
	}

	systemPrompt, err := s.buildSystemPrompt(assembled.Text)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(message, genai.RoleUser),
	}

	resp, err := s.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content")
	}

	text := adapter.ResponseText(resp)
	if text == "" {
		return nil, goerr.New("empty response from model")
	}

	userRecord, err := s.memory.Append(ctx, &model.Draft{
		Content: message,
		ActorID: s.userID,
		Role:    model.RoleUser,
		Scope:   s.scope,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to record user message")
	}

	assistantRecord, err := s.memory.Append(ctx, &model.Draft{
		Content:  text,
		ActorID:  s.agentID,
		Role:     model.RoleAssistant,
		Scope:    s.scope,
		Metadata: map[string]any{"reply_to": string(userRecord.ID)},
	})
	if err != nil {
		logger.Warn("user message stored without a reply",
			"user_record", userRecord.ID,
			"error", err,
		)
		return nil, goerr.Wrap(err, "failed to record assistant reply, user message is stored without a reply",
			goerr.V("user_record", userRecord.ID))
	}

	logger.Debug("chat turn recorded",
		"context_records", len(assembled.Records),
		"user_record", userRecord.ID,
		"assistant_record", assistantRecord.ID,
	)

	return &Reply{
		Text:      text,
		Context:   assembled,
		User:      userRecord,
		Assistant: assistantRecord,
	}, nil
}

func (s *Session) buildSystemPrompt(contextText string) (string, error) {
	userID := s.userID
	if userID == "" {
		userID = model.UnknownActor
	}

	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, map[string]string{
		"AgentID": s.agentID,
		"Scope":   s.scope.String(),
		"UserID":  userID,
		"Context": contextText,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to build system prompt")
	}
	return buf.String(), nil
}
