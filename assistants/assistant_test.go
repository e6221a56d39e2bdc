package assistants_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/assistants"
	"github.com/effective-security/seoagent/chatmodel"
	"github.com/effective-security/seoagent/mocks/mockllms"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/seo"
	"github.com/effective-security/seoagent/store"
	"github.com/effective-security/seoagent/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type targetArgs struct {
	Target string `json:"target" jsonschema:"description=Domain or URL"`
}

// seoTools returns a registry of fake providers and the number of calls per tool
func seoTools(t *testing.T) (*tools.Registry, map[string]int) {
	calls := map[string]int{}

	ranked := tools.NewFunc("dataforseo_ranked_keywords", "Keywords the domain ranks for",
		func(_ context.Context, in *targetArgs) (*tools.Result, error) {
			calls["dataforseo_ranked_keywords"]++
			return tools.NewResult("dataforseo_ranked_keywords", tools.Metrics{
				"target":         in.Target,
				"keywords_count": 128,
				"top_keyword":    "seo audit",
			}), nil
		})
	volume := tools.NewFunc("dataforseo_keyword_search_volume", "Search volume of keywords",
		func(_ context.Context, _ *targetArgs) (*tools.Result, error) {
			calls["dataforseo_keyword_search_volume"]++
			return tools.NewResult("dataforseo_keyword_search_volume", tools.Metrics{"search_volume": 1000}), nil
		})
	analytics := tools.NewFunc("gsc_search_analytics", "Search Console performance",
		func(_ context.Context, _ *targetArgs) (*tools.Result, error) {
			calls["gsc_search_analytics"]++
			return nil, tools.NewFailure(tools.FailureRateLimit, "quota exceeded").WithStatus(429)
		})

	reg, err := tools.NewRegistry([]tools.ITool{analytics, ranked, volume})
	require.NoError(t, err)
	return reg, calls
}

func newModel(ctrl *gomock.Controller, provider llms.ProviderType) *mockllms.MockModel {
	m := mockllms.NewMockModel(ctrl)
	m.EXPECT().GetName().Return("gpt-4o").AnyTimes()
	m.EXPECT().GetProviderType().Return(provider).AnyTimes()
	return m
}

func textResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text, StopReason: "stop"}},
	}
}

func toolCallResponse(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{ToolCalls: calls, StopReason: "tool_calls"}},
	}
}

func toolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:   id,
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

func toolResponses(msgs []llms.Message) []llms.ToolCallResponse {
	var res []llms.ToolCallResponse
	for _, m := range msgs {
		if m.Role != llms.RoleTool {
			continue
		}
		for _, p := range m.Parts {
			if r, ok := p.(llms.ToolCallResponse); ok {
				res = append(res, r)
			}
		}
	}
	return res
}

func TestAgent_Builder(t *testing.T) {
	ctrl := gomock.NewController(t)
	llm := newModel(ctrl, llms.ProviderOpenAI)

	a := assistants.NewAgent(llm, nil)
	assert.Equal(t, "SEO Agent", a.Name())
	assert.NotEmpty(t, a.Description())
	assert.Equal(t, 0, a.Registry().Len())
	assert.Equal(t, assistants.DefaultMaxSteps, a.Config().MaxSteps)

	a = a.WithName("Auditor").WithDescription("Audits sites")
	assert.Equal(t, "Auditor", a.Name())
	assert.Equal(t, "Audits sites", a.Description())

	_, err := a.Run(context.Background(), "   ")
	assert.EqualError(t, err, "query is empty")
}

func TestAgent_GeneralQuestion(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	reg, calls := seoTools(t)
	llm := newModel(ctrl, llms.ProviderOpenAI)

	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llms.Message, opts ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 2)
			assert.Equal(t, llms.RoleSystem, msgs[0].Role)
			assert.Contains(t, msgs[0].GetContent(), "No tools are available for this query.")
			assert.Equal(t, "What is SEO?\n", msgs[1].GetContent())
			assert.Empty(t, applyCallOptions(opts).Tools)
			return textResponse("SEO is the practice of improving organic search visibility."), nil
		})

	a := assistants.NewAgent(llm, reg,
		assistants.WithPlanner(seo.NewRouter(nil)),
		assistants.WithInstructions(seo.FormatInstructions),
	)
	res, err := a.Execute(ctx, "What is SEO?")
	require.NoError(t, err)
	assert.Equal(t, assistants.StateDone, res.State)
	assert.Equal(t, "SEO is the practice of improving organic search visibility.", res.Answer)
	assert.Equal(t, 0, res.ToolCalls())
	assert.Empty(t, res.Invocations)
	assert.Empty(t, res.Tools)
	assert.Equal(t, 1, res.Steps)
	assert.NoError(t, res.Reason)
	assert.Empty(t, calls)
}

func TestAgent_KeywordCoverage(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	reg, calls := seoTools(t)
	llm := newModel(ctrl, llms.ProviderOpenAI)

	gomock.InOrder(
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, opts ...llms.CallOption) (*llms.ContentResponse, error) {
				o := applyCallOptions(opts)
				var names []string
				for _, lt := range o.Tools {
					names = append(names, lt.Function.Name)
				}
				assert.Contains(t, names, "dataforseo_ranked_keywords")
				assert.NotContains(t, names, "gsc_search_analytics")
				assert.Contains(t, msgs[0].GetContent(), `"name": "dataforseo_ranked_keywords"`)
				return toolCallResponse(toolCall("call_1", "dataforseo_ranked_keywords", `{"target":"example.com"}`)), nil
			}),
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				require.Len(t, msgs, 4)
				assert.Equal(t, llms.RoleAI, msgs[2].Role)
				obs := toolResponses(msgs)
				require.Len(t, obs, 1)
				assert.Equal(t, "call_1", obs[0].ToolCallID)
				assert.Contains(t, obs[0].Content, `"keywords_count":128`)
				return textResponse("example.com ranks for 128 keywords, led by \"seo audit\"."), nil
			}),
	)

	a := assistants.NewAgent(llm, reg,
		assistants.WithPlanner(seo.NewRouter(nil)),
		assistants.WithInstructions(seo.FormatInstructions),
	)
	res, err := a.Execute(ctx, "keyword coverage for site example.com")
	require.NoError(t, err)
	assert.Equal(t, assistants.StateDone, res.State)
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, 1, res.ToolCalls())
	require.Len(t, res.Invocations, 1)
	inv := res.Invocations[0]
	assert.Equal(t, "dataforseo_ranked_keywords", inv.Name)
	assert.Equal(t, 1, inv.Step)
	require.NotNil(t, inv.Result)
	assert.Equal(t, 128, inv.Result.Metrics["keywords_count"])
	assert.Contains(t, res.Answer, "128 keywords")
	assert.Equal(t, map[string]int{"dataforseo_ranked_keywords": 1}, calls)
}

func TestAgent_MaxSteps(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	reg, calls := seoTools(t)
	llm := newModel(ctrl, llms.ProviderOpenAI)

	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse(toolCall("call_x", "dataforseo_keyword_search_volume", `{"target":"seo"}`)), nil).
		Times(3)

	a := assistants.NewAgent(llm, reg, assistants.WithMaxSteps(3))
	res, err := a.Execute(ctx, "search volume of seo")
	require.NoError(t, err)
	assert.Equal(t, assistants.StateAborted, res.State)
	assert.Equal(t, assistants.CouldNotComplete, res.Answer)
	assert.True(t, errors.Is(res.Reason, assistants.ErrMaxSteps))
	assert.Equal(t, 3, res.Steps)
	assert.Equal(t, 3, res.ToolCalls())
	assert.Equal(t, 3, calls["dataforseo_keyword_search_volume"])

	t.Run("run", func(t *testing.T) {
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse(toolCall("call_y", "dataforseo_keyword_search_volume", `{"target":"seo"}`)), nil).
			Times(3)

		answer, err := a.Run(ctx, "search volume of seo")
		require.NoError(t, err)
		assert.Equal(t, assistants.CouldNotComplete, answer)
	})
}

func TestAgent_Observations(t *testing.T) {
	ctx := context.Background()

	tcases := []struct {
		name     string
		call     llms.ToolCall
		expObs   string
		called   int
		rejected bool
	}{
		{
			name:     "unknown",
			call:     toolCall("call_1", "bing_keywords", `{"target":"example.com"}`),
			expObs:   "Tool `bing_keywords` not found. Use the exact name of one of the available tools: gsc_search_analytics, dataforseo_ranked_keywords, dataforseo_keyword_search_volume",
			rejected: true,
		},
		{
			name:     "malformed",
			call:     toolCall("call_1", "dataforseo_ranked_keywords", `{}`),
			expObs:   "Tool `dataforseo_ranked_keywords` failed (malformed_request): ",
			rejected: true,
		},
		{
			name:     "not json",
			call:     toolCall("call_1", "dataforseo_ranked_keywords", `target=example.com`),
			expObs:   "Tool `dataforseo_ranked_keywords` failed (malformed_request): ",
			rejected: true,
		},
		{
			name:   "provider failure",
			call:   toolCall("call_1", "gsc_search_analytics", `{"target":"sc-domain:example.com"}`),
			expObs: "Tool `gsc_search_analytics` failed (rate_limit): quota exceeded",
			called: 1,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			reg, calls := seoTools(t)
			llm := newModel(ctrl, llms.ProviderOpenAI)

			var observation string
			gomock.InOrder(
				llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(toolCallResponse(tc.call), nil),
				llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
						obs := toolResponses(msgs)
						require.Len(t, obs, 1)
						observation = obs[0].Content
						return textResponse("The data is not available right now."), nil
					}),
			)

			res, err := assistants.NewAgent(llm, reg).Execute(ctx, "performance of example.com")
			require.NoError(t, err)
			assert.Equal(t, assistants.StateDone, res.State)
			assert.Equal(t, "The data is not available right now.", res.Answer)
			assert.Contains(t, observation, tc.expObs)
			assert.Equal(t, tc.called, calls[tc.call.FunctionCall.Name])
			require.Len(t, res.Invocations, 1)
			assert.Equal(t, tc.rejected, !res.Invocations[0].Called())
			if tc.rejected {
				assert.Equal(t, 0, res.ToolCalls())
			} else {
				require.NotNil(t, res.Invocations[0].Result)
				assert.Equal(t, tools.FailureRateLimit, res.Invocations[0].Result.Failure.Kind)
			}
		})
	}
}

func TestAgent_DeferredCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	reg, calls := seoTools(t)
	llm := newModel(ctrl, llms.ProviderOpenAI)

	gomock.InOrder(
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse(
				toolCall("call_1", "dataforseo_ranked_keywords", `{"target":"example.com"}`),
				toolCall("call_2", "dataforseo_keyword_search_volume", `{"target":"seo audit"}`),
			), nil),
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				// system, human, AI with two calls, two tool responses
				require.Len(t, msgs, 5)
				obs := toolResponses(msgs)
				require.Len(t, obs, 2)
				assert.Equal(t, "call_1", obs[0].ToolCallID)
				assert.Contains(t, obs[0].Content, "keywords_count")
				assert.Equal(t, "call_2", obs[1].ToolCallID)
				assert.Contains(t, obs[1].Content, "Not executed")
				return textResponse("Ranked for 128 keywords."), nil
			}),
	)

	res, err := assistants.NewAgent(llm, reg).Execute(ctx, "keywords of example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ToolCalls())
	assert.Equal(t, map[string]int{"dataforseo_ranked_keywords": 1}, calls)
}

func TestAgent_Abort(t *testing.T) {
	ctx := context.Background()

	t.Run("stop reason", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		llm := newModel(ctrl, llms.ProviderOpenAI)
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&llms.ContentResponse{
				Choices: []*llms.ContentChoice{{StopReason: "content_filter"}},
			}, nil)

		res, err := assistants.NewAgent(llm, nil).Execute(ctx, "keywords of example.com")
		require.NoError(t, err)
		assert.Equal(t, assistants.StateAborted, res.State)
		assert.Equal(t, "I could not complete this request: stopped by the model: content_filter", res.Answer)
		assert.True(t, errors.Is(res.Reason, assistants.ErrAborted))
	})

	t.Run("empty responses", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		llm := newModel(ctrl, llms.ProviderOpenAI)
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&llms.ContentResponse{Choices: []*llms.ContentChoice{{}}}, nil).
			Times(1 + assistants.DefaultMaxEmptyResponses)

		res, err := assistants.NewAgent(llm, nil).Execute(ctx, "keywords of example.com")
		require.NoError(t, err)
		assert.Equal(t, assistants.StateAborted, res.State)
		assert.Equal(t, 1, res.Steps)
		assert.Equal(t, "I could not complete this request: the model returned an empty response", res.Answer)
	})

	t.Run("decider", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		llm := newModel(ctrl, llms.ProviderOpenAI)

		a := assistants.NewAgent(llm, nil, assistants.WithDecider(deciderFunc(func(context.Context, *assistants.DecideInput) (assistants.Step, error) {
			return assistants.Abort{Reason: "no site given"}, nil
		})))
		answer, err := a.Run(ctx, "audit my site")
		require.NoError(t, err)
		assert.Equal(t, "I could not complete this request: no site given", answer)
	})
}

type deciderFunc func(context.Context, *assistants.DecideInput) (assistants.Step, error)

func (f deciderFunc) Decide(ctx context.Context, in *assistants.DecideInput) (assistants.Step, error) {
	return f(ctx, in)
}

func TestAgent_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("model", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		llm := newModel(ctrl, llms.ProviderOpenAI)
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("503 service unavailable"))

		_, err := assistants.NewAgent(llm, nil).Run(ctx, "What is SEO?")
		assert.EqualError(t, err, "failed to generate content from LLM: 503 service unavailable")
	})

	t.Run("no function calling", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		reg, _ := seoTools(t)
		llm := newModel(ctrl, llms.ProviderPerplexity)

		_, err := assistants.NewAgent(llm, reg).Run(ctx, "keywords of example.com")
		require.Error(t, err)
		assert.True(t, errors.Is(err, assistants.ErrNoTools))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		llm := newModel(ctrl, llms.ProviderOpenAI)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := assistants.NewAgent(llm, nil).Run(cctx, "What is SEO?")
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("unexpected step", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		llm := newModel(ctrl, llms.ProviderOpenAI)

		a := assistants.NewAgent(llm, nil, assistants.WithDecider(deciderFunc(func(context.Context, *assistants.DecideInput) (assistants.Step, error) {
			return nil, nil
		})))
		_, err := a.Run(ctx, "What is SEO?")
		assert.EqualError(t, err, "unexpected step: <nil>")
	})
}

func TestAgent_History(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("chat1", nil))
	llm := newModel(ctrl, llms.ProviderOpenAI)
	ms := store.NewMemoryStore(0)

	gomock.InOrder(
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				assert.Len(t, msgs, 2)
				return textResponse("SEO is search engine optimization."), nil
			}),
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				require.Len(t, msgs, 4)
				assert.Equal(t, "What is SEO?\n", msgs[1].GetContent())
				assert.Equal(t, llms.RoleAI, msgs[2].Role)
				assert.Equal(t, "Tell me more\n", msgs[3].GetContent())
				return textResponse("It covers content, links and technical health."), nil
			}),
	)

	a := assistants.NewAgent(llm, nil, assistants.WithStore(ms))
	_, err := a.Run(ctx, "What is SEO?")
	require.NoError(t, err)
	_, err = a.Run(ctx, "Tell me more")
	require.NoError(t, err)
	assert.Len(t, ms.Messages(ctx), 4)

	t.Run("no chat context", func(t *testing.T) {
		llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(textResponse("ok"), nil)
		answer, err := a.Run(context.Background(), "What is SEO?")
		require.NoError(t, err)
		assert.Equal(t, "ok", answer)
	})
}
