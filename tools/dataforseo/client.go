// Package dataforseo provides DataForSEO tools over the REST API v3.
package dataforseo

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/seoagent/tools", "dataforseo")

const (
	// DefaultBaseURL is the DataForSEO API endpoint
	DefaultBaseURL = "https://api.dataforseo.com"
	// DefaultLocation is the location_name used when not specified
	DefaultLocation = "India"
	// DefaultLanguage is the language_code used when not specified
	DefaultLanguage = "en"
	// DefaultTimeout for API requests
	DefaultTimeout = 60 * time.Second

	statusOK = 20000
)

// Client is DataForSEO API client
type Client struct {
	login      string
	password   string
	baseURL    string
	location   string
	language   string
	httpClient *http.Client
}

// Option configures Client
type Option func(*Client)

// WithBaseURL overrides the API endpoint
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithDefaults sets the default location and language
func WithDefaults(location, language string) Option {
	return func(c *Client) {
		c.location = values.StringsCoalesce(location, c.location)
		c.language = values.StringsCoalesce(language, c.language)
	}
}

// New returns Client
func New(login, password string, opts ...Option) (*Client, error) {
	if login == "" || password == "" {
		return nil, errors.New("DataForSEO login and password are required")
	}
	c := &Client{
		login:      login,
		password:   password,
		baseURL:    DefaultBaseURL,
		location:   DefaultLocation,
		language:   DefaultLanguage,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Post sends a single task to the live endpoint and returns
// the results of the task.
func (c *Client) Post(ctx context.Context, path string, task []byte) ([]gjson.Result, error) {
	body := make([]byte, 0, len(task)+2)
	body = append(body, '[')
	body = append(body, task...)
	body = append(body, ']')

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.SetBasicAuth(c.login, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request failed: %s", path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tools.NewFailure(tools.FailureUpstreamUnavailable, "failed to read response").WithCause(err)
	}

	if resp.StatusCode >= 300 {
		msg := values.StringsCoalesce(gjson.GetBytes(raw, "status_message").String(), http.StatusText(resp.StatusCode))
		return nil, tools.NewFailure(tools.KindFromHTTPStatus(resp.StatusCode), "%s", msg).WithStatus(resp.StatusCode)
	}
	if !gjson.ValidBytes(raw) {
		return nil, tools.NewFailure(tools.FailureUpstreamUnavailable, "invalid response from %s", path).WithStatus(resp.StatusCode)
	}

	doc := gjson.ParseBytes(raw)
	if f := statusFailure(doc); f != nil {
		return nil, f
	}
	task0 := doc.Get("tasks.0")
	if !task0.Exists() {
		return nil, tools.NewFailure(tools.FailureUpstreamUnavailable, "no task in response")
	}
	if f := statusFailure(task0); f != nil {
		return nil, f
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"path", path,
		"cost", doc.Get("cost").Float(),
		"time", doc.Get("time").String())

	return task0.Get("result").Array(), nil
}

// statusFailure maps DataForSEO status codes to failures.
// 20000 is success, 401xx and 402xx are account issues, 40202 is rate limit,
// other 4xxxx are request errors, 5xxxx are server errors.
func statusFailure(r gjson.Result) *tools.Failure {
	code := int(r.Get("status_code").Int())
	if code == 0 || code == statusOK {
		return nil
	}
	msg := values.StringsCoalesce(r.Get("status_message").String(), "unknown error")

	var kind tools.FailureKind
	switch {
	case code == 40202 || code == 40209:
		kind = tools.FailureRateLimit
	case code >= 40100 && code < 40300:
		kind = tools.FailureAuth
	case code >= 40000 && code < 50000:
		kind = tools.FailureMalformedRequest
	default:
		kind = tools.FailureUpstreamUnavailable
	}
	return tools.NewFailure(kind, "%s (%d)", msg, code).WithStatus(code)
}

// task builds the task payload from key/value pairs, skipping empty values
func task(kv ...any) ([]byte, error) {
	js := []byte(`{}`)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		val := kv[i+1]
		switch v := val.(type) {
		case string:
			if v == "" {
				continue
			}
		case int:
			if v == 0 {
				continue
			}
		case []string:
			if len(v) == 0 {
				continue
			}
		}
		var err error
		js, err = sjson.SetBytes(js, key, val)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to set %s", key)
		}
	}
	return js, nil
}
