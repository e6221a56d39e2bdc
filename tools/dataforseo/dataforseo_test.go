package dataforseo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/effective-security/seoagent/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rankedKeywordsResponse = `{
	"version": "0.1.20250101",
	"status_code": 20000,
	"status_message": "Ok.",
	"time": "1.2 sec.",
	"cost": 0.0101,
	"tasks": [{
		"status_code": 20000,
		"status_message": "Ok.",
		"result": [{
			"target": "example.com",
			"total_count": 1520,
			"metrics": {"organic": {"etv": 3421.5}},
			"items": [
				{"keyword_data": {"keyword": "seo audit", "keyword_info": {"search_volume": 5400}},
				 "ranked_serp_element": {"serp_item": {"rank_group": 2, "url": "https://example.com/audit"}}},
				{"keyword_data": {"keyword": "seo checklist", "keyword_info": {"search_volume": 2900}},
				 "ranked_serp_element": {"serp_item": {"rank_group": 7, "url": "https://example.com/checklist"}}},
				{"keyword_data": {"keyword": "what is seo", "keyword_info": {"search_volume": 12100}},
				 "ranked_serp_element": {"serp_item": {"rank_group": 24, "url": "https://example.com/blog"}}}
			]
		}]
	}]
}`

type server struct {
	status int
	body   string
	path   string
	task   map[string]any
	auth   bool
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.path = r.URL.Path
	user, pass, ok := r.BasicAuth()
	s.auth = ok && user == "login" && pass == "secret"

	var tasks []map[string]any
	b, _ := io.ReadAll(r.Body)
	if json.Unmarshal(b, &tasks) == nil && len(tasks) == 1 {
		s.task = tasks[0]
	}
	w.WriteHeader(s.status)
	_, _ = w.Write([]byte(s.body))
}

func newTestRegistry(t *testing.T, s *server) *tools.Registry {
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	c, err := New("login", "secret", WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	r, err := tools.NewRegistry(c.Tools())
	require.NoError(t, err)
	return r
}

func TestNew(t *testing.T) {
	_, err := New("", "secret")
	assert.EqualError(t, err, "DataForSEO login and password are required")

	c, err := New("login", "secret", WithDefaults("United States", ""))
	require.NoError(t, err)
	assert.Equal(t, "United States", c.location)
	assert.Equal(t, DefaultLanguage, c.language)
	assert.Len(t, c.Tools(), 4)
}

func TestRankedKeywords(t *testing.T) {
	s := &server{status: http.StatusOK, body: rankedKeywordsResponse}
	r := newTestRegistry(t, s)

	res, err := r.Invoke(context.Background(), tools.Invocation{
		Name:      ToolRankedKeywords,
		Arguments: `{"target":"https://www.Example.com/blog"}`,
	}, nil)
	require.NoError(t, err)
	require.False(t, res.Failed(), res.String())

	assert.True(t, s.auth)
	assert.Equal(t, PathRankedKeywords, s.path)
	assert.Equal(t, "example.com", s.task["target"])
	assert.Equal(t, DefaultLocation, s.task["location_name"])
	assert.Equal(t, DefaultLanguage, s.task["language_code"])
	assert.EqualValues(t, DefaultLimit, s.task["limit"])

	m := res.Metrics
	assert.Equal(t, "example.com", m["target"])
	assert.EqualValues(t, 1520, m["total_keywords"])
	assert.Equal(t, 3, m["returned"])
	assert.Equal(t, 1, m["top3_keywords"])
	assert.Equal(t, 2, m["top10_keywords"])
	assert.Equal(t, 3421.5, m["estimated_traffic"])
	kws := m["keywords"].([]tools.Metrics)
	assert.Equal(t, "seo audit", kws[0]["keyword"])
	assert.EqualValues(t, 5400, kws[0]["search_volume"])
}

func TestSearchVolume(t *testing.T) {
	s := &server{status: http.StatusOK, body: `{"status_code":20000,"tasks":[{"status_code":20000,"result":[
		{"keyword":"seo","search_volume":1000,"cpc":1.5,"competition":"HIGH"},
		{"keyword":"seo tools","search_volume":500,"cpc":2.25,"competition":"MEDIUM"}
	]}]}`}
	r := newTestRegistry(t, s)

	res, err := r.Invoke(context.Background(), tools.Invocation{
		Name:      ToolKeywordSearchVolume,
		Arguments: `{"keywords":["seo","seo tools"],"location_name":"United States"}`,
	}, nil)
	require.NoError(t, err)
	require.False(t, res.Failed(), res.String())
	assert.Equal(t, PathSearchVolume, s.path)
	assert.Equal(t, []any{"seo", "seo tools"}, s.task["keywords"])
	assert.Equal(t, "United States", s.task["location_name"])
	assert.EqualValues(t, 1500, res.Metrics["total_search_volume"])
	assert.Equal(t, 2, res.Metrics["keywords_count"])

	_, err = r.Invoke(context.Background(), tools.Invocation{
		Name:      ToolKeywordSearchVolume,
		Arguments: `{"keywords":[]}`,
	}, nil)
	assert.ErrorIs(t, err, tools.ErrMalformedArguments)
}

func TestSERPAndBacklinks(t *testing.T) {
	s := &server{status: http.StatusOK, body: `{"status_code":20000,"tasks":[{"status_code":20000,"result":[{
		"se_results_count": 1200000,
		"items": [
			{"type":"featured_snippet","rank_group":1,"domain":"x.com"},
			{"type":"organic","rank_group":1,"domain":"moz.com","url":"https://moz.com/learn/seo","title":"SEO"},
			{"type":"organic","rank_group":2,"domain":"ahrefs.com","url":"https://ahrefs.com/seo","title":"SEO guide"}
		]
	}]}]}`}
	r := newTestRegistry(t, s)

	res, err := r.Invoke(context.Background(), tools.Invocation{Name: ToolSERPOrganic, Arguments: `{"keyword":"seo","depth":500}`}, nil)
	require.NoError(t, err)
	require.False(t, res.Failed(), res.String())
	assert.EqualValues(t, MaxLimit, s.task["depth"])
	assert.Equal(t, 2, res.Metrics["organic_count"])

	s.body = `{"status_code":20000,"tasks":[{"status_code":20000,"result":[{"rank":412,"backlinks":18500,"referring_domains":940}]}]}`
	res, err = r.Invoke(context.Background(), tools.Invocation{Name: ToolBacklinksSummary, Arguments: `{"target":"example.com"}`}, nil)
	require.NoError(t, err)
	require.False(t, res.Failed(), res.String())
	assert.Equal(t, PathBacklinksSummary, s.path)
	assert.EqualValues(t, 940, res.Metrics["referring_domains"])
}

func TestFailures(t *testing.T) {
	tcases := []struct {
		name   string
		status int
		body   string
		exp    tools.FailureKind
	}{
		{"http_auth", http.StatusUnauthorized, `{"status_code":40100,"status_message":"You are not authorized"}`, tools.FailureAuth},
		{"http_unavailable", http.StatusBadGateway, `bad gateway`, tools.FailureUpstreamUnavailable},
		{"invalid_json", http.StatusOK, `<html>`, tools.FailureUpstreamUnavailable},
		{"envelope_auth", http.StatusOK, `{"status_code":40100,"status_message":"You are not authorized to access this resource."}`, tools.FailureAuth},
		{"envelope_rate", http.StatusOK, `{"status_code":40202,"status_message":"Rate-limit exceeded."}`, tools.FailureRateLimit},
		{"task_malformed", http.StatusOK, `{"status_code":20000,"tasks":[{"status_code":40501,"status_message":"Invalid Field: 'target'."}]}`, tools.FailureMalformedRequest},
		{"task_internal", http.StatusOK, `{"status_code":20000,"tasks":[{"status_code":50000,"status_message":"Internal Error."}]}`, tools.FailureUpstreamUnavailable},
		{"no_tasks", http.StatusOK, `{"status_code":20000,"tasks":[]}`, tools.FailureUpstreamUnavailable},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRegistry(t, &server{status: tc.status, body: tc.body})
			res, err := r.Invoke(context.Background(), tools.Invocation{Name: ToolBacklinksSummary, Arguments: `{"target":"example.com"}`}, nil)
			require.NoError(t, err)
			require.True(t, res.Failed())
			assert.Equal(t, tc.exp, res.Failure.Kind)
			assert.Equal(t, ToolBacklinksSummary, res.Failure.Tool)
		})
	}
}

func TestNormalizeTarget(t *testing.T) {
	assert.Equal(t, "example.com", normalizeTarget(" https://www.example.com/path "))
	assert.Equal(t, "blog.example.com", normalizeTarget("http://blog.example.com"))
	assert.Equal(t, "", normalizeTarget(""))
}
