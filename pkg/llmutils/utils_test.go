package llmutils_test

import (
	"strings"
	"testing"

	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/pkg/llmutils"
	"github.com/stretchr/testify/assert"
)

func Test_CleanJSON(t *testing.T) {
	llmOutput := "\n```json\n\n{\"site\": \"example.com\", \"clicks\": 10}\n\n```\n\n"
	assert.Equal(t, "{\"site\": \"example.com\", \"clicks\": 10}", string(llmutils.CleanJSON([]byte(llmOutput))))

	llmOutput = "Here is the plan:\n```json\n\n[{\"id\": 1}]\n```\n\n"
	assert.Equal(t, "[{\"id\": 1}]", string(llmutils.CleanJSON([]byte(llmOutput))))

	assert.Equal(t, "no json", string(llmutils.CleanJSON([]byte("no json"))))
}

func Test_TrimBackticks(t *testing.T) {
	expected := "{\"keyword\": \"seo\"}"

	assert.Equal(t, expected, llmutils.TrimBackticks("\n```json\n\n{\"keyword\": \"seo\"}\n\n```\n\n"))
	assert.Equal(t, expected, llmutils.TrimBackticks(expected))
	assert.Equal(t, expected, llmutils.TrimBackticks("\n```\n\n{\"keyword\": \"seo\"}\n\n```\n\n"))
	assert.Equal(t, expected, llmutils.TrimBackticks("\n```{\"keyword\": \"seo\"}\n\n```\n\n"))
}

func Test_Stringify(t *testing.T) {
	assert.Equal(t, "text", llmutils.Stringify("text"))
	assert.Equal(t, "\n```json\n{\n\t\"a\": 1\n}\n```\n", llmutils.Stringify(map[string]int{"a": 1}))
	assert.Equal(t, "[1,2]", llmutils.ToJSON([]int{1, 2}))
	assert.Equal(t, "a: 1\n", llmutils.ToYAML(map[string]int{"a": 1}))

	resp := llmutils.NewContentResponse("answer")
	assert.Len(t, resp.Choices, 1)
	assert.Equal(t, "answer", resp.Choices[0].Content)
}

func Test_EnsureNewline(t *testing.T) {
	assert.Equal(t, "", llmutils.EnsureEndsWithNewline("  "))
	assert.Equal(t, "abc\n", llmutils.EnsureEndsWithNewline(" abc"))
	assert.Equal(t, "abc\n", llmutils.EnsureEndsWithNewline("abc\n\n"))
}

func Test_Counts(t *testing.T) {
	msgs := []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "Hello"),
		llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{ID: "1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "n", Arguments: "{}"}}),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{ToolCallID: "1", Name: "n", Content: "ok"}),
	}
	// roles: human(5)+ai(2)+tool(4), content: 5 + (1+8+1+2) + (1+1+2)
	assert.Equal(t, uint64(11+5+12+4), llmutils.CountMessagesContentSize(msgs))
	assert.Equal(t, "Hello", llmutils.FindLastUserQuestion(msgs))

	resp := &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content: "Hello world",
				GenerationInfo: map[string]any{
					"InputTokens":  10,
					"OutputTokens": 5,
					"TotalTokens":  15,
				},
			},
		},
	}
	assert.Equal(t, uint64(11), llmutils.CountResponseContentSize(resp))
	in, out, total := llmutils.CountTokens(resp)
	assert.Equal(t, int64(10), in)
	assert.Equal(t, int64(5), out)
	assert.Equal(t, int64(15), total)
}

func TestPrintMessages(t *testing.T) {
	var buf strings.Builder
	llmutils.PrintMessages(&buf, []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "Be concise."),
		llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{ID: "1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "tool1", Arguments: "{}"}}),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{ToolCallID: "1", Name: "tool1", Content: "result"}),
	})
	exp := `SYSTEM: Be concise.
AI: ToolCall ID=1, Type=function, Func=tool1({})
TOOL: ToolCallResponse ID=1, Name=tool1, Content=result
`
	assert.Equal(t, exp, buf.String())
}
