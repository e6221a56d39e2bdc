package seo

import (
	"slices"
	"strings"
)

// Server identifies the backend a plan step depends on
type Server string

const (
	// ServerGSC is Google Search Console
	ServerGSC Server = "gsc"
	// ServerDataForSEO is DataForSEO
	ServerDataForSEO Server = "dataforseo"
	// ServerBoth combines both backends
	ServerBoth Server = "both"
	// ServerNone is a reasoning-only step
	ServerNone Server = "none"
)

// Valid returns true for known servers
func (s Server) Valid() bool {
	switch s {
	case ServerGSC, ServerDataForSEO, ServerBoth, ServerNone:
		return true
	}
	return false
}

// servers returns the concrete backends of s
func (s Server) servers() []Server {
	switch s {
	case ServerGSC, ServerDataForSEO:
		return []Server{s}
	case ServerBoth:
		return []Server{ServerGSC, ServerDataForSEO}
	}
	return nil
}

// Category is a high-level SEO task category
type Category string

// Categories
const (
	CategoryGSCProperties  Category = "gsc_properties"
	CategoryGSCPages       Category = "gsc_pages"
	CategoryGSCPerformance Category = "gsc_performance"
	CategoryGSCQueries     Category = "gsc_queries"
	CategoryTechnicalAudit Category = "technical_audit"
	CategoryGSCMisc        Category = "gsc_misc"
	CategoryKeywords       Category = "keywords"
	CategorySERP           Category = "serp"
	CategoryPaidSearch     Category = "paid_search"
	CategoryDataForSEOMisc Category = "dataforseo_misc"
	CategoryRankTracking   Category = "rank_tracking"
	CategoryDomainInsights Category = "domain_insights"
	CategoryBacklinks      Category = "backlinks"
)

// Categories returns all categories in the order of preference
func Categories() []Category {
	return []Category{
		CategoryGSCProperties,
		CategoryGSCPages,
		CategoryGSCPerformance,
		CategoryGSCQueries,
		CategoryTechnicalAudit,
		CategoryGSCMisc,
		CategoryKeywords,
		CategorySERP,
		CategoryPaidSearch,
		CategoryDataForSEOMisc,
		CategoryRankTracking,
		CategoryDomainInsights,
		CategoryBacklinks,
	}
}

// gscSitemapHints are shared by property, page and audit categories
var gscSitemapHints = []string{
	"list_sitemaps",
	"get_sitemaps",
	"list_sitemaps_enhanced",
	"get_sitemap_details",
	"submit_sitemap",
	"delete_sitemap",
	"manage_sitemaps",
}

// gscAnalyticsHints are shared by property, page and performance categories
var gscAnalyticsHints = []string{
	"search_analytics",
	"get_performance_overview",
	"get_advanced_search_analytics",
	"compare_search_periods",
	"get_search_by_page_query",
}

// gscInspectionHints are shared by page and audit categories
var gscInspectionHints = []string{
	"inspect_url",
	"batch_url_inspection",
	"check_indexing_issues",
}

// categoryHints maps a category and a server to substrings of tool names.
// Both native adapter names and the names exposed by the remote MCP servers are listed.
var categoryHints = map[Category]map[Server][]string{
	CategoryGSCProperties: {
		ServerGSC: concat([]string{"list_sites", "list_properties", "get_site_details"}, gscAnalyticsHints, gscInspectionHints, gscSitemapHints),
	},
	CategoryGSCPages: {
		ServerGSC: concat([]string{"get_site_details"}, gscAnalyticsHints, gscInspectionHints, gscSitemapHints),
	},
	CategoryGSCPerformance: {
		ServerGSC: gscAnalyticsHints,
	},
	CategoryGSCQueries: {
		ServerGSC: {
			"search_analytics",
			"get_advanced_search_analytics",
			"compare_search_periods",
			"get_search_by_page_query",
		},
	},
	CategoryTechnicalAudit: {
		ServerGSC: concat(gscInspectionHints, gscSitemapHints),
	},
	CategoryGSCMisc: {
		ServerGSC: {"get_creator_info"},
	},
	CategoryKeywords: {
		ServerDataForSEO: {
			"keyword_search_volume",
			"ranked_keywords",
			"ai_optimization_keyword_data_search_volume",
			"keywords_data_google_ads_search_volume",
			"keywords_data_dataforseo_trends_explore",
			"keywords_data_google_trends_explore",
			"dataforseo_labs_google_keyword_ideas",
			"dataforseo_labs_google_related_keywords",
			"dataforseo_labs_google_keyword_suggestions",
			"dataforseo_labs_bulk_keyword_difficulty",
			"dataforseo_labs_google_keyword_overview",
			"dataforseo_labs_google_keywords_for_site",
			"dataforseo_labs_google_historical_keyword_data",
		},
	},
	CategorySERP: {
		ServerDataForSEO: {
			"serp_organic",
			"serp_locations",
			"serp_youtube_organic_live_advanced",
			"dataforseo_labs_google_historical_serp",
			"dataforseo_labs_google_serp_competitors",
		},
	},
	CategoryPaidSearch: {
		ServerDataForSEO: {
			"keyword_search_volume",
			"keywords_data_google_ads_search_volume",
		},
	},
	CategoryDataForSEOMisc: {
		ServerDataForSEO: {
			"on_page_content_parsing",
			"on_page_instant_pages",
			"on_page_lighthouse",
			"dataforseo_labs_google_competitors_domain",
			"dataforseo_labs_google_subdomains",
			"dataforseo_labs_google_top_searches",
			"dataforseo_labs_search_intent",
			"dataforseo_labs_google_domain_intersection",
			"dataforseo_labs_google_page_intersection",
			"dataforseo_labs_google_relevant_pages",
			"domain_analytics_whois_overview",
			"domain_analytics_technologies_domain_technologies",
			"content_analysis_search",
			"content_analysis_summary",
		},
	},
	CategoryRankTracking: {
		ServerDataForSEO: {
			"ranked_keywords",
			"dataforseo_labs_google_domain_rank_overview",
			"dataforseo_labs_google_historical_rank_overview",
			"backlinks_bulk_ranks",
		},
	},
	CategoryDomainInsights: {
		ServerDataForSEO: {
			"dataforseo_labs_bulk_traffic_estimation",
			"backlinks_summary",
		},
	},
	CategoryBacklinks: {
		ServerDataForSEO: {
			"backlinks_summary",
			"backlinks_backlinks",
			"backlinks_anchors",
			"backlinks_referring_domains",
			"backlinks_referring_networks",
			"backlinks_competitors",
			"backlinks_domain_intersection",
			"backlinks_domain_pages_summary",
			"backlinks_bulk_spam_score",
			"backlinks_timeseries_summary",
			"backlinks_timeseries_new_lost_summary",
		},
	},
}

func concat(lists ...[]string) []string {
	var res []string
	for _, l := range lists {
		for _, s := range l {
			if !slices.Contains(res, s) {
				res = append(res, s)
			}
		}
	}
	return res
}

// Hints returns tool name hints of the category for the server.
// For ServerBoth the hints of both backends are returned.
func Hints(category Category, server Server) []string {
	var res []string
	for _, s := range server.servers() {
		res = append(res, categoryHints[category][s]...)
	}
	return res
}

// ServerOf returns the backend that serves the category
func ServerOf(category Category) Server {
	hints, ok := categoryHints[category]
	if !ok {
		return ServerNone
	}
	if _, ok := hints[ServerGSC]; ok {
		return ServerGSC
	}
	return ServerDataForSEO
}

// matchHints returns true if the lowercase tool name contains any hint
func matchHints(name string, hints []string) bool {
	name = strings.ToLower(name)
	for _, h := range hints {
		if strings.Contains(name, strings.ToLower(h)) {
			return true
		}
	}
	return false
}

type inferRule struct {
	category Category
	gscOnly  bool
	keywords []string
}

// rules are evaluated in order, the first match wins
var inferRules = []inferRule{
	{category: CategoryBacklinks, keywords: []string{"backlink", "referring domain", "anchor", "link profile"}},
	{category: CategoryKeywords, keywords: []string{"keyword", "search volume", "cpc", "keyword research", "keyword idea"}},
	{category: CategorySERP, keywords: []string{"serp", "search result", "organic result", "ranking"}},
	{category: CategoryGSCPerformance, gscOnly: true, keywords: []string{"performance", "traffic", "clicks", "impressions", "ctr"}},
	{category: CategoryGSCQueries, gscOnly: true, keywords: []string{"query", "queries", "search query"}},
	{category: CategoryGSCPages, gscOnly: true, keywords: []string{"page", "pages", "url", "landing page"}},
	{category: CategoryTechnicalAudit, keywords: []string{"sitemap", "indexing", "coverage", "technical", "audit"}},
	{category: CategoryRankTracking, keywords: []string{"rank", "position"}},
}

// InferCategory returns the category implied by the goal text,
// or an empty string when no rule matches.
// Search Console specific rules apply only when server is ServerGSC.
func InferCategory(goal string, server Server) Category {
	goal = strings.ToLower(goal)
	for _, r := range inferRules {
		if r.gscOnly && server != ServerGSC {
			continue
		}
		for _, kw := range r.keywords {
			if strings.Contains(goal, kw) {
				return r.category
			}
		}
	}
	return ""
}
