package callbacks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/assistants"
	"github.com/effective-security/seoagent/chatmodel"
	"github.com/effective-security/seoagent/mocks/mockassistants"
	"github.com/effective-security/seoagent/mocks/mockllms"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type queryArgs struct {
	Keyword string `json:"keyword"`
}

func TestScratchpad(t *testing.T) {
	saved := TimeNowFn
	ts := time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC)
	TimeNowFn = func() time.Time { return ts }
	t.Cleanup(func() { TimeNowFn = saved })

	ctrl := gomock.NewController(t)
	agent := mockassistants.NewMockIAgent(ctrl)
	agent.EXPECT().Name().Return("SEO Agent").AnyTimes()
	llm := mockllms.NewMockModel(ctrl)
	llm.EXPECT().GetName().Return("gpt-4o").AnyTimes()

	serp := tools.NewFunc("dataforseo_serp_organic", "Organic SERP",
		func(context.Context, *queryArgs) (*tools.Result, error) { return nil, nil })

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("chat42", nil))
	sp := NewScratchpad(ModeVerbose)

	// no run started
	sp.OnAgentStart(ctx, agent, "ignored")
	stats, trace := sp.EndRun(ctx)
	assert.Nil(t, stats)
	assert.Nil(t, trace)

	sp.StartRun(ctx)
	sp.OnAgentStart(ctx, agent, "serp for seo audit")
	sp.OnLLMCallStart(ctx, agent, llm, []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "system"),
		llms.MessageFromTextParts(llms.RoleHuman, "serp for seo audit"),
	})
	sp.OnLLMCallEnd(ctx, agent, llm, &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}})
	sp.OnStateChange(ctx, agent, assistants.StateThinking, assistants.StateToolCalling)
	sp.OnToolStart(ctx, serp, `{"keyword":"seo audit"}`)
	sp.OnToolEnd(ctx, serp, `{"keyword":"seo audit"}`, tools.NewResult("dataforseo_serp_organic", tools.Metrics{"items": 10}))
	sp.OnToolError(ctx, serp, `{}`, errors.New("rate_limit: quota exceeded"))
	sp.OnToolNotFound(ctx, "bing_serp")
	sp.OnStateChange(ctx, agent, assistants.StateThinking, assistants.StateAborted)
	sp.OnAgentEnd(ctx, agent, "serp for seo audit", &assistants.RunResult{
		Answer: assistants.CouldNotComplete,
		State:  assistants.StateAborted,
		Steps:  3,
		Invocations: []assistants.InvocationRecord{
			{Step: 1, Name: "dataforseo_serp_organic", Result: tools.NewResult("dataforseo_serp_organic", nil)},
			{Step: 2, Name: "bing_serp", Rejected: "bing_serp: unknown tool"},
			{Step: 3, Name: "dataforseo_serp_organic", Result: tools.FailedResult("dataforseo_serp_organic", tools.NewFailure(tools.FailureRateLimit, "quota exceeded"))},
		},
	})

	// other chats are not traced
	other := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("chat43", nil))
	sp.OnToolNotFound(other, "bing_serp")
	sp.OnToolNotFound(context.Background(), "bing_serp")

	stats, trace = sp.EndRun(ctx)
	require.NotNil(t, stats)
	assert.Equal(t, "chat42", stats.ChatID)
	assert.Equal(t, uint32(1), stats.AgentCalls)
	assert.Equal(t, uint32(1), stats.AgentCallsSucceeded)
	assert.Equal(t, uint32(3), stats.Steps)
	assert.Equal(t, uint32(2), stats.StateChanges)
	assert.True(t, stats.Aborted)
	assert.Equal(t, uint32(1), stats.LLMCalls)
	assert.Equal(t, uint32(2), stats.TotalMessages)
	assert.Equal(t, uint32(1), stats.ToolsCalls)
	assert.Equal(t, uint32(1), stats.ToolsCallsSucceeded)
	assert.Equal(t, uint32(1), stats.ToolsCallsFailed)
	assert.Equal(t, uint32(1), stats.ToolNotFound)
	assert.Equal(t, time.Duration(0), stats.Duration)

	out := string(trace)
	assert.True(t, strings.HasPrefix(out, "2025-03-31 10:00:00 chat42 *** Run Started ***\n"))
	assert.Contains(t, out, "SEO Agent Query: serp for seo audit\n")
	assert.Contains(t, out, "SEO Agent State: thinking -> tool_calling\n")
	assert.Contains(t, out, "dataforseo_serp_organic Output: {\"items\":10}\n")
	assert.Contains(t, out, "SEO Agent Step 1: dataforseo_serp_organic ok\n")
	assert.Contains(t, out, "SEO Agent Step 2: bing_serp rejected: bing_serp: unknown tool\n")
	assert.Contains(t, out, "SEO Agent Step 3: dataforseo_serp_organic failed: rate_limit\n")
	assert.Contains(t, out, "SEO Agent *** Agent End *** aborted\n")
	assert.Contains(t, out, "Tool calls: 1, Failed: 1, Not Found: 1\n")
	assert.Contains(t, out, "*** Run Ended. Duration: 0s ***\n")

	// the run is removed
	stats, _ = sp.EndRun(ctx)
	assert.Nil(t, stats)
}

func TestScratchpad_NoChat(t *testing.T) {
	sp := NewScratchpad(ModeDefault)
	sp.StartRun(context.Background())
	assert.Empty(t, sp.runs)
}
