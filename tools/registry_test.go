package tools_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/mocks/mocktools"
	"github.com/effective-security/seoagent/pkg/schema"
	"github.com/effective-security/seoagent/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var siteSchema = schema.MustFromAny(map[string]any{
	"type": "object",
	"properties": map[string]any{
		"site_url": map[string]any{"type": "string"},
		"limit":    map[string]any{"type": "integer"},
	},
	"required": []string{"site_url"},
})

func newMockTool(ctrl *gomock.Controller, name string) *mocktools.MockITool {
	m := mocktools.NewMockITool(ctrl)
	m.EXPECT().Name().Return(name).AnyTimes()
	m.EXPECT().Description().Return("description of " + name).AnyTimes()
	m.EXPECT().Parameters().Return(siteSchema).AnyTimes()
	return m
}

func TestRegistry_Lookup(t *testing.T) {
	ctrl := gomock.NewController(t)

	gsc := newMockTool(ctrl, "gsc_search_analytics")
	dfs := newMockTool(ctrl, "dataforseo_ranked_keywords")

	_, err := tools.NewRegistry([]tools.ITool{gsc, gsc})
	require.Error(t, err)
	assert.True(t, errors.Is(err, tools.ErrDuplicateTool))

	r, err := tools.NewRegistry([]tools.ITool{gsc, dfs})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"gsc_search_analytics", "dataforseo_ranked_keywords"}, r.Names())

	list := r.ListTools()
	require.Len(t, list, 2)
	assert.Equal(t, "description of gsc_search_analytics", list[0].Description)
	assert.Same(t, siteSchema, list[0].Parameters)

	tool, err := r.Resolve("GSC_Search_Analytics")
	require.NoError(t, err)
	assert.Equal(t, gsc, tool)

	_, err = r.Resolve("bing_webmaster")
	require.Error(t, err)
	assert.True(t, errors.Is(err, tools.ErrUnknownTool))
	assert.Equal(t, "bing_webmaster: unknown tool", err.Error())

	assert.Len(t, r.ByPrefix("gsc_"), 1)
	assert.Len(t, r.ByPrefix("dataforseo"), 1)
	assert.Empty(t, r.ByPrefix("tavily"))

	sub, err := r.Subset("dataforseo_ranked_keywords", "dataforseo_ranked_keywords")
	require.NoError(t, err)
	assert.Equal(t, []string{"dataforseo_ranked_keywords"}, sub.Names())
	_, err = r.Subset("nope")
	assert.True(t, errors.Is(err, tools.ErrUnknownTool))

	lt := r.LLMTools()
	require.Len(t, lt, 2)
	assert.Equal(t, "function", lt[0].Type)
	assert.Equal(t, "gsc_search_analytics", lt[0].Function.Name)

	desc := r.Describe()
	assert.Contains(t, desc, `"name": "gsc_search_analytics"`)
	assert.NotContains(t, desc, "site_url")
}

func TestRegistry_InvokeRejectsBeforeCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	// Call is never expected: gomock fails the test on any network attempt
	gsc := newMockTool(ctrl, "gsc_search_analytics")
	cb := mocktools.NewMockCallback(ctrl)

	r, err := tools.NewRegistry([]tools.ITool{gsc})
	require.NoError(t, err)

	cb.EXPECT().OnToolNotFound(ctx, "unknown_tool")
	res, err := r.Invoke(ctx, tools.Invocation{Name: "unknown_tool", Arguments: `{}`}, cb)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, tools.ErrUnknownTool))

	for _, args := range []string{
		`not json`,
		`{}`,
		`{"site_url": 42}`,
		`{"site_url": "sc-domain:example.com", "limit": "ten"}`,
	} {
		cb.EXPECT().OnToolError(ctx, gsc, args, gomock.Any())
		res, err = r.Invoke(ctx, tools.Invocation{Name: "gsc_search_analytics", Arguments: args}, cb)
		require.Error(t, err, args)
		assert.Nil(t, res)
		assert.True(t, errors.Is(err, tools.ErrMalformedArguments), args)
	}

	assert.NoError(t, r.Validate("gsc_search_analytics", `{"site_url":"x"}`))
	assert.True(t, errors.Is(r.Validate("x", `{}`), tools.ErrUnknownTool))
}

func TestRegistry_InvokeFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	args := `{"site_url":"sc-domain:example.com"}`

	gsc := newMockTool(ctrl, "gsc_search_analytics")
	r, err := tools.NewRegistry([]tools.ITool{gsc}, tools.WithRetries(2))
	require.NoError(t, err)

	t.Run("typed", func(t *testing.T) {
		gsc.EXPECT().Call(ctx, args).Return(nil, tools.NewFailure(tools.FailureRateLimit, "quota exceeded").WithStatus(429))
		res, err := r.Invoke(ctx, tools.Invocation{Name: "gsc_search_analytics", Arguments: args}, nil)
		require.NoError(t, err)
		require.True(t, res.Failed())
		assert.Equal(t, tools.FailureRateLimit, res.Failure.Kind)
		assert.Equal(t, "gsc_search_analytics", res.Failure.Tool)
		assert.Equal(t, "Tool `gsc_search_analytics` failed (rate_limit): quota exceeded", res.String())
	})

	t.Run("untyped_retried", func(t *testing.T) {
		gsc.EXPECT().Call(ctx, args).Return(nil, errors.New("connection reset")).Times(3)
		res, err := r.Invoke(ctx, tools.Invocation{Name: "gsc_search_analytics", Arguments: args}, nil)
		require.NoError(t, err)
		require.True(t, res.Failed())
		assert.Equal(t, tools.FailureUpstreamUnavailable, res.Failure.Kind)
	})

	t.Run("retry_succeeds", func(t *testing.T) {
		gomock.InOrder(
			gsc.EXPECT().Call(ctx, args).Return(nil, tools.NewFailure(tools.FailureUpstreamUnavailable, "503")),
			gsc.EXPECT().Call(ctx, args).Return(tools.NewResult("", tools.Metrics{"clicks": 10}), nil),
		)
		res, err := r.Invoke(ctx, tools.Invocation{Name: "gsc_search_analytics", Arguments: args}, nil)
		require.NoError(t, err)
		assert.False(t, res.Failed())
		assert.Equal(t, "gsc_search_analytics", res.Tool)
		assert.Equal(t, `{"clicks":10}`, res.String())
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		gsc.EXPECT().Call(cctx, args).DoAndReturn(func(context.Context, string) (*tools.Result, error) {
			cancel()
			return nil, context.Canceled
		})
		_, err := r.Invoke(cctx, tools.Invocation{Name: "gsc_search_analytics", Arguments: args}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestRegistry_InvokeSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	type input struct {
		Target string `json:"target" jsonschema:"description=Domain"`
	}
	var called int
	dfs := tools.NewFunc("dataforseo_ranked_keywords", "Ranked keywords", func(_ context.Context, in *input) (*tools.Result, error) {
		called++
		return tools.NewResult("dataforseo_ranked_keywords", tools.Metrics{
			"target":         in.Target,
			"keywords_count": 12,
		}), nil
	})

	r, err := tools.NewRegistry([]tools.ITool{dfs})
	require.NoError(t, err)

	cb := mocktools.NewMockCallback(ctrl)
	cb.EXPECT().OnToolStart(ctx, dfs, `{"target":"example.com"}`)
	cb.EXPECT().OnToolEnd(ctx, dfs, `{"target":"example.com"}`, gomock.Any())

	res, err := r.Invoke(ctx, tools.Invocation{Name: "dataforseo_ranked_keywords", Arguments: `{"target":"example.com"}`}, cb)
	require.NoError(t, err)
	assert.Equal(t, 1, called)
	assert.Equal(t, "example.com", res.Metrics["target"])
	assert.Equal(t, []string{"keywords_count", "target"}, res.Metrics.Keys())

	_, err = r.Invoke(ctx, tools.Invocation{Name: "dataforseo_ranked_keywords", Arguments: `{}`}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, called)
}
