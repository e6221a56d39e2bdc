// Package gsc provides Google Search Console tools.
package gsc

import (
	"context"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/auth/credentials"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/searchconsole/v1"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/seoagent/tools", "gsc")

// Tool names
const (
	ToolListSites       = "gsc_list_sites"
	ToolSearchAnalytics = "gsc_search_analytics"
	ToolListSitemaps    = "gsc_list_sitemaps"
	ToolInspectURL      = "gsc_inspect_url"
)

const (
	// DefaultRowLimit is the number of rows requested when not specified
	DefaultRowLimit = 25
	// MaxRowLimit is the number of rows returned to the model
	MaxRowLimit = 100
	// DefaultDays is the reporting window when dates are not specified
	DefaultDays = 28
	// dataLagDays is the delay of Search Console data
	dataLagDays = 3

	dateLayout = "2006-01-02"
)

// now is overridden in tests
var now = time.Now

// Client wraps Search Console API
type Client struct {
	svc *searchconsole.Service
}

// New returns Client.
// When credentialsFile is set, it is used for service account or
// authorized user credentials, otherwise application default credentials
// are used, unless opts provide authentication.
func New(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*Client, error) {
	if credentialsFile != "" {
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			CredentialsFile: credentialsFile,
			Scopes:          []string{searchconsole.WebmastersReadonlyScope},
		})
		if err != nil {
			return nil, errors.Wrapf(err, "unable to load Search Console credentials")
		}
		opts = append([]option.ClientOption{option.WithAuthCredentials(creds)}, opts...)
	}

	svc, err := searchconsole.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create Search Console client")
	}
	return &Client{svc: svc}, nil
}

// Tools returns the Search Console tools
func (c *Client) Tools() []tools.ITool {
	return []tools.ITool{
		tools.NewFunc(ToolListSites,
			"Lists the Search Console properties (sites) available to the account, with permission level.",
			c.ListSites),
		tools.NewFunc(ToolSearchAnalytics,
			"Returns Search Console performance for a property: clicks, impressions, CTR and average position, "+
				"optionally grouped by query, page, country, device or date.",
			c.SearchAnalytics),
		tools.NewFunc(ToolListSitemaps,
			"Lists sitemaps submitted for a Search Console property, with errors and warnings.",
			c.ListSitemaps),
		tools.NewFunc(ToolInspectURL,
			"Inspects the Google index status of a URL in a Search Console property.",
			c.InspectURL),
	}
}

// ListSitesRequest is the input of gsc_list_sites
type ListSitesRequest struct{}

// ListSites returns the properties of the account
func (c *Client) ListSites(ctx context.Context, _ *ListSitesRequest) (*tools.Result, error) {
	res, err := c.svc.Sites.List().Context(ctx).Do()
	if err != nil {
		return nil, failure(err)
	}

	sites := make([]tools.Metrics, 0, len(res.SiteEntry))
	for _, s := range res.SiteEntry {
		sites = append(sites, tools.Metrics{
			"site_url":         s.SiteUrl,
			"permission_level": s.PermissionLevel,
		})
	}
	return tools.NewResult(ToolListSites, tools.Metrics{
		"sites_count": len(sites),
		"sites":       sites,
	}), nil
}

// SearchAnalyticsRequest is the input of gsc_search_analytics
type SearchAnalyticsRequest struct {
	SiteURL       string   `json:"site_url" jsonschema:"description=Search Console property. For example: https://www.example.com/ or sc-domain:example.com"`
	StartDate     string   `json:"start_date,omitempty" jsonschema:"description=Start date in YYYY-MM-DD format. Defaults to 28 days before end date"`
	EndDate       string   `json:"end_date,omitempty" jsonschema:"description=End date in YYYY-MM-DD format. Defaults to 3 days ago"`
	Dimensions    []string `json:"dimensions,omitempty" jsonschema:"description=Group results by dimensions,enum=query,enum=page,enum=country,enum=device,enum=date,enum=searchAppearance"`
	QueryContains string   `json:"query_contains,omitempty" jsonschema:"description=Only include queries that contain the text"`
	PageContains  string   `json:"page_contains,omitempty" jsonschema:"description=Only include pages that contain the text"`
	SearchType    string   `json:"search_type,omitempty" jsonschema:"description=Search type,enum=web,enum=image,enum=video,enum=news,enum=discover,enum=googleNews"`
	RowLimit      int64    `json:"row_limit,omitempty" jsonschema:"description=Maximum number of rows up to 100"`
}

// SearchAnalytics returns performance totals and rows
func (c *Client) SearchAnalytics(ctx context.Context, req *SearchAnalyticsRequest) (*tools.Result, error) {
	if req.SiteURL == "" {
		return nil, tools.NewFailure(tools.FailureMalformedRequest, "site_url is required")
	}
	start, end, err := dateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	limit := req.RowLimit
	if limit <= 0 {
		limit = DefaultRowLimit
	}
	limit = min(limit, MaxRowLimit)

	q := &searchconsole.SearchAnalyticsQueryRequest{
		StartDate:  start,
		EndDate:    end,
		Dimensions: req.Dimensions,
		RowLimit:   limit,
		Type:       req.SearchType,
	}
	var filters []*searchconsole.ApiDimensionFilter
	if req.QueryContains != "" {
		filters = append(filters, &searchconsole.ApiDimensionFilter{
			Dimension:  "query",
			Operator:   "contains",
			Expression: req.QueryContains,
		})
	}
	if req.PageContains != "" {
		filters = append(filters, &searchconsole.ApiDimensionFilter{
			Dimension:  "page",
			Operator:   "contains",
			Expression: req.PageContains,
		})
	}
	if len(filters) > 0 {
		q.DimensionFilterGroups = []*searchconsole.ApiDimensionFilterGroup{
			{GroupType: "and", Filters: filters},
		}
	}

	res, err := c.svc.Searchanalytics.Query(req.SiteURL, q).Context(ctx).Do()
	if err != nil {
		return nil, failure(err)
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"site", req.SiteURL,
		"start", start,
		"end", end,
		"rows", len(res.Rows))

	return tools.NewResult(ToolSearchAnalytics, analyticsMetrics(req.SiteURL, start, end, req.Dimensions, res.Rows)), nil
}

func analyticsMetrics(site, start, end string, dims []string, rows []*searchconsole.ApiDataRow) tools.Metrics {
	var clicks, impressions, weightedPos float64
	list := make([]tools.Metrics, 0, len(rows))
	for _, r := range rows {
		clicks += r.Clicks
		impressions += r.Impressions
		weightedPos += r.Position * r.Impressions

		row := tools.Metrics{
			"clicks":      r.Clicks,
			"impressions": r.Impressions,
			"ctr":         round(r.Ctr, 4),
			"position":    round(r.Position, 1),
		}
		for i, k := range r.Keys {
			name := "key"
			if i < len(dims) {
				name = dims[i]
			}
			row[name] = k
		}
		list = append(list, row)
	}

	m := tools.Metrics{
		"site_url":    site,
		"start_date":  start,
		"end_date":    end,
		"clicks":      clicks,
		"impressions": impressions,
		"rows_count":  len(rows),
	}
	if impressions > 0 {
		m["ctr"] = round(clicks/impressions, 4)
		m["average_position"] = round(weightedPos/impressions, 1)
	}
	if len(dims) > 0 {
		m["dimensions"] = dims
		m["rows"] = list
	}
	return m
}

// SiteRequest is the input of property level tools
type SiteRequest struct {
	SiteURL string `json:"site_url" jsonschema:"description=Search Console property. For example: https://www.example.com/ or sc-domain:example.com"`
}

// ListSitemaps returns the submitted sitemaps
func (c *Client) ListSitemaps(ctx context.Context, req *SiteRequest) (*tools.Result, error) {
	if req.SiteURL == "" {
		return nil, tools.NewFailure(tools.FailureMalformedRequest, "site_url is required")
	}
	res, err := c.svc.Sitemaps.List(req.SiteURL).Context(ctx).Do()
	if err != nil {
		return nil, failure(err)
	}

	var errCount, warnCount int64
	list := make([]tools.Metrics, 0, len(res.Sitemap))
	for _, s := range res.Sitemap {
		errCount += s.Errors
		warnCount += s.Warnings
		list = append(list, tools.Metrics{
			"path":           s.Path,
			"type":           s.Type,
			"last_submitted": s.LastSubmitted,
			"is_pending":     s.IsPending,
			"errors":         s.Errors,
			"warnings":       s.Warnings,
		})
	}
	return tools.NewResult(ToolListSitemaps, tools.Metrics{
		"site_url":       req.SiteURL,
		"sitemaps_count": len(list),
		"errors":         errCount,
		"warnings":       warnCount,
		"sitemaps":       list,
	}), nil
}

// InspectURLRequest is the input of gsc_inspect_url
type InspectURLRequest struct {
	SiteURL       string `json:"site_url" jsonschema:"description=Search Console property that contains the URL"`
	InspectionURL string `json:"inspection_url" jsonschema:"description=Fully qualified URL to inspect"`
}

// InspectURL returns the index status of the URL
func (c *Client) InspectURL(ctx context.Context, req *InspectURLRequest) (*tools.Result, error) {
	if req.SiteURL == "" || req.InspectionURL == "" {
		return nil, tools.NewFailure(tools.FailureMalformedRequest, "site_url and inspection_url are required")
	}
	res, err := c.svc.UrlInspection.Index.Inspect(&searchconsole.InspectUrlIndexRequest{
		SiteUrl:       req.SiteURL,
		InspectionUrl: req.InspectionURL,
	}).Context(ctx).Do()
	if err != nil {
		return nil, failure(err)
	}

	m := tools.Metrics{
		"inspection_url": req.InspectionURL,
	}
	if ir := res.InspectionResult; ir != nil {
		m["inspection_link"] = ir.InspectionResultLink
		if st := ir.IndexStatusResult; st != nil {
			m["verdict"] = st.Verdict
			m["coverage_state"] = st.CoverageState
			m["indexing_state"] = st.IndexingState
			m["page_fetch_state"] = st.PageFetchState
			m["robots_txt_state"] = st.RobotsTxtState
			m["last_crawl_time"] = st.LastCrawlTime
			m["google_canonical"] = st.GoogleCanonical
			m["user_canonical"] = st.UserCanonical
		}
	}
	return tools.NewResult(ToolInspectURL, m), nil
}

func dateRange(start, end string) (string, string, error) {
	endDate := now().UTC().AddDate(0, 0, -dataLagDays)
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return "", "", tools.NewFailure(tools.FailureMalformedRequest, "invalid end_date %q, expected YYYY-MM-DD", end)
		}
		endDate = t
	}
	startDate := endDate.AddDate(0, 0, -DefaultDays)
	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return "", "", tools.NewFailure(tools.FailureMalformedRequest, "invalid start_date %q, expected YYYY-MM-DD", start)
		}
		startDate = t
	}
	if startDate.After(endDate) {
		return "", "", tools.NewFailure(tools.FailureMalformedRequest, "start_date is after end_date")
	}
	return startDate.Format(dateLayout), endDate.Format(dateLayout), nil
}

// failure converts Google API errors to tools.Failure
func failure(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := values.StringsCoalesce(gerr.Message, http.StatusText(gerr.Code))
		if slices.ContainsFunc(gerr.Errors, func(e googleapi.ErrorItem) bool {
			return strings.Contains(strings.ToLower(e.Reason), "ratelimit") || e.Reason == "quotaExceeded"
		}) {
			return tools.NewFailure(tools.FailureRateLimit, "%s", msg).WithStatus(gerr.Code).WithCause(err)
		}
		return tools.NewFailure(tools.KindFromHTTPStatus(gerr.Code), "%s", msg).WithStatus(gerr.Code).WithCause(err)
	}
	return err
}

func round(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}
