package dataforseo

import (
	"context"
	"strings"

	"github.com/effective-security/seoagent/tools"
	"github.com/tidwall/gjson"
)

// Tool names
const (
	ToolKeywordSearchVolume = "dataforseo_keyword_search_volume"
	ToolRankedKeywords      = "dataforseo_ranked_keywords"
	ToolSERPOrganic         = "dataforseo_serp_organic"
	ToolBacklinksSummary    = "dataforseo_backlinks_summary"
)

// API paths
const (
	PathSearchVolume     = "/v3/keywords_data/google_ads/search_volume/live"
	PathRankedKeywords   = "/v3/dataforseo_labs/google/ranked_keywords/live"
	PathSERPOrganic      = "/v3/serp/google/organic/live/advanced"
	PathBacklinksSummary = "/v3/backlinks/summary/live"
)

const (
	// DefaultLimit is the number of items requested when not specified
	DefaultLimit = 20
	// MaxLimit is the number of items returned to the model
	MaxLimit = 100
	// MaxKeywords per search volume request
	MaxKeywords = 100
)

// Tools returns the DataForSEO tools
func (c *Client) Tools() []tools.ITool {
	return []tools.ITool{
		tools.NewFunc(ToolKeywordSearchVolume,
			"Returns Google Ads search volume, CPC and competition for a list of keywords.",
			c.KeywordSearchVolume),
		tools.NewFunc(ToolRankedKeywords,
			"Returns keywords a domain ranks for in Google organic search, with positions and volume. "+
				"Use it for keyword coverage and visibility of a site.",
			c.RankedKeywords),
		tools.NewFunc(ToolSERPOrganic,
			"Returns the top Google organic results for a keyword.",
			c.SERPOrganic),
		tools.NewFunc(ToolBacklinksSummary,
			"Returns a backlink profile summary for a domain: backlinks, referring domains and rank.",
			c.BacklinksSummary),
	}
}

// Locale is the common location and language of a request
type Locale struct {
	LocationName string `json:"location_name,omitempty" jsonschema:"description=Location name such as United States. Defaults to India"`
	LanguageCode string `json:"language_code,omitempty" jsonschema:"description=Language code such as en"`
}

func (c *Client) locale(l Locale) (string, string) {
	loc := l.LocationName
	if loc == "" {
		loc = c.location
	}
	lang := l.LanguageCode
	if lang == "" {
		lang = c.language
	}
	return loc, lang
}

func limit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return min(n, MaxLimit)
}

// SearchVolumeRequest is the input of dataforseo_keyword_search_volume
type SearchVolumeRequest struct {
	Keywords []string `json:"keywords" jsonschema:"description=Keywords to look up,minItems=1"`
	Locale
}

// KeywordSearchVolume returns search volume metrics per keyword
func (c *Client) KeywordSearchVolume(ctx context.Context, req *SearchVolumeRequest) (*tools.Result, error) {
	if len(req.Keywords) == 0 {
		return nil, tools.NewFailure(tools.FailureMalformedRequest, "keywords are required")
	}
	if len(req.Keywords) > MaxKeywords {
		return nil, tools.NewFailure(tools.FailureMalformedRequest, "at most %d keywords are allowed", MaxKeywords)
	}
	loc, lang := c.locale(req.Locale)
	payload, err := task(
		"keywords", req.Keywords,
		"location_name", loc,
		"language_code", lang,
	)
	if err != nil {
		return nil, err
	}

	// search_volume returns a result per keyword
	res, err := c.Post(ctx, PathSearchVolume, payload)
	if err != nil {
		return nil, err
	}

	var total int64
	list := make([]tools.Metrics, 0, len(res))
	for _, r := range res {
		vol := r.Get("search_volume").Int()
		total += vol
		list = append(list, tools.Metrics{
			"keyword":       r.Get("keyword").String(),
			"search_volume": vol,
			"cpc":           r.Get("cpc").Float(),
			"competition":   r.Get("competition").String(),
		})
	}
	return tools.NewResult(ToolKeywordSearchVolume, tools.Metrics{
		"location":            loc,
		"language":            lang,
		"keywords_count":      len(list),
		"total_search_volume": total,
		"keywords":            list,
	}), nil
}

// RankedKeywordsRequest is the input of dataforseo_ranked_keywords
type RankedKeywordsRequest struct {
	Target string `json:"target" jsonschema:"description=Domain without scheme such as example.com"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum number of keywords up to 100"`
	Locale
}

// RankedKeywords returns the keyword coverage of a domain
func (c *Client) RankedKeywords(ctx context.Context, req *RankedKeywordsRequest) (*tools.Result, error) {
	target := normalizeTarget(req.Target)
	if target == "" {
		return nil, tools.NewFailure(tools.FailureMalformedRequest, "target is required")
	}
	loc, lang := c.locale(req.Locale)
	payload, err := task(
		"target", target,
		"location_name", loc,
		"language_code", lang,
		"limit", limit(req.Limit),
	)
	if err != nil {
		return nil, err
	}

	results, err := c.Post(ctx, PathRankedKeywords, payload)
	if err != nil {
		return nil, err
	}
	res := first(results)

	items := res.Get("items").Array()
	list := make([]tools.Metrics, 0, len(items))
	var top3, top10 int
	for _, it := range items {
		pos := it.Get("ranked_serp_element.serp_item.rank_group").Int()
		if pos > 0 && pos <= 3 {
			top3++
		}
		if pos > 0 && pos <= 10 {
			top10++
		}
		list = append(list, tools.Metrics{
			"keyword":       it.Get("keyword_data.keyword").String(),
			"search_volume": it.Get("keyword_data.keyword_info.search_volume").Int(),
			"position":      pos,
			"url":           it.Get("ranked_serp_element.serp_item.url").String(),
		})
	}

	return tools.NewResult(ToolRankedKeywords, tools.Metrics{
		"target":            target,
		"location":          loc,
		"language":          lang,
		"total_keywords":    res.Get("total_count").Int(),
		"returned":          len(list),
		"top3_keywords":     top3,
		"top10_keywords":    top10,
		"estimated_traffic": res.Get("metrics.organic.etv").Float(),
		"keywords":          list,
	}), nil
}

// SERPRequest is the input of dataforseo_serp_organic
type SERPRequest struct {
	Keyword string `json:"keyword" jsonschema:"description=Search query"`
	Depth   int    `json:"depth,omitempty" jsonschema:"description=Number of results up to 100"`
	Locale
}

// SERPOrganic returns organic results of a keyword
func (c *Client) SERPOrganic(ctx context.Context, req *SERPRequest) (*tools.Result, error) {
	if req.Keyword == "" {
		return nil, tools.NewFailure(tools.FailureMalformedRequest, "keyword is required")
	}
	loc, lang := c.locale(req.Locale)
	payload, err := task(
		"keyword", req.Keyword,
		"location_name", loc,
		"language_code", lang,
		"depth", limit(req.Depth),
	)
	if err != nil {
		return nil, err
	}

	results, err := c.Post(ctx, PathSERPOrganic, payload)
	if err != nil {
		return nil, err
	}
	res := first(results)

	var list []tools.Metrics
	for _, it := range res.Get("items").Array() {
		if it.Get("type").String() != "organic" {
			continue
		}
		list = append(list, tools.Metrics{
			"position": it.Get("rank_group").Int(),
			"domain":   it.Get("domain").String(),
			"url":      it.Get("url").String(),
			"title":    it.Get("title").String(),
		})
	}
	return tools.NewResult(ToolSERPOrganic, tools.Metrics{
		"keyword":       req.Keyword,
		"location":      loc,
		"language":      lang,
		"results_count": res.Get("se_results_count").Int(),
		"organic_count": len(list),
		"results":       list,
	}), nil
}

// BacklinksRequest is the input of dataforseo_backlinks_summary
type BacklinksRequest struct {
	Target string `json:"target" jsonschema:"description=Domain without scheme such as example.com"`
}

// BacklinksSummary returns the backlink profile of a domain
func (c *Client) BacklinksSummary(ctx context.Context, req *BacklinksRequest) (*tools.Result, error) {
	target := normalizeTarget(req.Target)
	if target == "" {
		return nil, tools.NewFailure(tools.FailureMalformedRequest, "target is required")
	}
	payload, err := task("target", target)
	if err != nil {
		return nil, err
	}
	results, err := c.Post(ctx, PathBacklinksSummary, payload)
	if err != nil {
		return nil, err
	}
	res := first(results)
	return tools.NewResult(ToolBacklinksSummary, tools.Metrics{
		"target":                     target,
		"rank":                       res.Get("rank").Int(),
		"backlinks":                  res.Get("backlinks").Int(),
		"referring_domains":          res.Get("referring_domains").Int(),
		"referring_main_domains":     res.Get("referring_main_domains").Int(),
		"broken_backlinks":           res.Get("broken_backlinks").Int(),
		"backlinks_spam_score":       res.Get("backlinks_spam_score").Int(),
		"referring_domains_nofollow": res.Get("referring_domains_nofollow").Int(),
	}), nil
}

func first(res []gjson.Result) gjson.Result {
	if len(res) == 0 {
		return gjson.Result{}
	}
	return res[0]
}

func normalizeTarget(t string) string {
	t = strings.TrimSpace(strings.ToLower(t))
	t = strings.TrimPrefix(t, "https://")
	t = strings.TrimPrefix(t, "http://")
	t = strings.TrimPrefix(t, "www.")
	if i := strings.IndexByte(t, '/'); i >= 0 {
		t = t[:i]
	}
	return t
}
