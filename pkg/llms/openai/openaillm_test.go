package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/pkg/llms/openai"
	"github.com/effective-security/seoagent/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toolCallCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1743415200,
  "model": "gpt-4o",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "dataforseo_ranked_keywords", "arguments": "{\"target\":\"example.com\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 120, "completion_tokens": 14, "total_tokens": 134}
}`

type targetArgs struct {
	Target string `json:"target"`
}

func TestNew(t *testing.T) {
	_, err := openai.New()
	assert.EqualError(t, err, "OPENAI: API key is required")

	llm, err := openai.New(openai.WithToken("sk-test"))
	require.NoError(t, err)
	assert.Equal(t, openai.DefaultModel, llm.GetName())
	assert.Equal(t, llms.ProviderOpenAI, llm.GetProviderType())

	llm, err = openai.New(
		openai.WithToken("pplx-test"),
		openai.WithProvider(llms.ProviderPerplexity),
		openai.WithModel("sonar"),
	)
	require.NoError(t, err)
	assert.Equal(t, "sonar", llm.GetName())
	assert.Equal(t, llms.ProviderPerplexity, llm.GetProviderType())
}

func TestToMessages(t *testing.T) {
	msgs, err := openai.ToMessages([]llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are an SEO analyst."),
		llms.MessageFromTextParts(llms.RoleHuman, "keyword coverage for example.com"),
		llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
			ID:   "call_1",
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      "dataforseo_ranked_keywords",
				Arguments: `{"target":"example.com"}`,
			},
		}),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: "call_1",
			Name:       "dataforseo_ranked_keywords",
			Content:    `{"keywords_count":128}`,
		}),
	})
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[2].OfAssistant.ToolCalls[0].OfFunction.ID)
	assert.NotNil(t, msgs[3].OfTool)

	_, err = openai.ToMessages([]llms.Message{llms.MessageFromTextParts(llms.RoleTool, "no response")})
	assert.EqualError(t, err, "expected part of type ToolCallResponse for role tool, got llms.TextContent")

	_, err = openai.ToMessages([]llms.Message{llms.MessageFromTextParts("generic", "hi")})
	assert.EqualError(t, err, "generic: unexpected role")
}

func TestNewParams(t *testing.T) {
	opts := llms.NewCallOptions(llms.CallOptions{Model: "gpt-4o"},
		llms.WithMaxTokens(512),
		llms.WithTemperature(0.2),
		llms.WithTools([]llms.Tool{{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "dataforseo_ranked_keywords",
				Description: "Ranked keywords of a domain",
				Parameters:  schema.Parameters(targetArgs{}),
			},
		}}),
	)
	params, err := openai.NewParams([]llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")}, &opts)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", string(params.Model))
	assert.Equal(t, int64(512), params.MaxCompletionTokens.Value)
	require.Len(t, params.Tools, 1)

	opts.Tools = []llms.Tool{{Type: "retrieval"}}
	_, err = openai.NewParams(nil, &opts)
	assert.EqualError(t, err, `tool type "retrieval" not supported`)
}

func TestGenerateContent(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallCompletion))
	}))
	defer srv.Close()

	llm, err := openai.New(
		openai.WithToken("sk-test"),
		openai.WithBaseURL(srv.URL+"/"),
		openai.WithMaxRetries(0),
	)
	require.NoError(t, err)

	resp, err := llm.GenerateContent(context.Background(),
		[]llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "keyword coverage for example.com")},
	)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)

	choice := resp.Choices[0]
	assert.Equal(t, "tool_calls", choice.StopReason)
	require.Len(t, choice.ToolCalls, 1)
	assert.Equal(t, "call_1", choice.ToolCalls[0].ID)
	assert.Equal(t, "dataforseo_ranked_keywords", choice.ToolCalls[0].FunctionCall.Name)
	assert.Equal(t, `{"target":"example.com"}`, choice.ToolCalls[0].FunctionCall.Arguments)
	assert.EqualValues(t, 134, choice.GenerationInfo["TotalTokens"])
	assert.Equal(t, "gpt-4o", req["model"])
}
