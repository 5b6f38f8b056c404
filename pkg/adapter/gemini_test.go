package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/chorus/pkg/adapter"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

func setupGemini(t *testing.T) *adapter.GeminiClient {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	client, err := adapter.NewGemini(context.Background(), projectID, "us-central1")
	gt.NoError(t, err)
	return client
}

func TestGenerateContent(t *testing.T) {
	client := setupGemini(t)
	ctx := context.Background()

	contents := []*genai.Content{
		genai.NewContentFromText("Hello, what is the capital of France?", genai.RoleUser),
	}

	resp, err := client.GenerateContent(ctx, contents, nil)
	gt.NoError(t, err)
	gt.S(t, adapter.ResponseText(resp)).Contains("Paris")
}

func TestEmbed(t *testing.T) {
	client := setupGemini(t)

	vec, err := client.Embed(context.Background(), "the team agreed to ship on friday")
	gt.NoError(t, err)
	gt.A(t, vec).Length(client.Dimensions())
}

func TestResponseText(t *testing.T) {
	gt.Equal(t, adapter.ResponseText(nil), "")
	gt.Equal(t, adapter.ResponseText(&genai.GenerateContentResponse{}), "")

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role: genai.RoleModel,
					Parts: []*genai.Part{
						{Text: "thinking...", Thought: true},
						{Text: "Hello, "},
						{Text: "world"},
					},
				},
			},
		},
	}
	gt.Equal(t, adapter.ResponseText(resp), "Hello, world")
}
