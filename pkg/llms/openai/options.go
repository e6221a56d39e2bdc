package openai

import (
	"net/http"

	"github.com/effective-security/seoagent/pkg/llms"
)

// Default values
const (
	DefaultBaseURL           = "https://api.openai.com/v1"
	DefaultPerplexityBaseURL = "https://api.perplexity.ai"
	DefaultModel             = "gpt-4o"
	DefaultMaxRetries        = 2
)

type options struct {
	token        string
	model        string
	baseURL      string
	organization string
	provider     llms.ProviderType
	httpClient   *http.Client
	maxRetries   int
}

// Option is a functional option for the OpenAI client.
type Option func(*options)

// WithToken sets the API key.
func WithToken(token string) Option {
	return func(opts *options) {
		opts.token = token
	}
}

// WithModel sets the model used when the call does not specify one.
func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithBaseURL sets the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// WithOrganization sets the organization billed for the requests.
func WithOrganization(organization string) Option {
	return func(opts *options) {
		opts.organization = organization
	}
}

// WithProvider sets the provider type, OPENAI or PERPLEXITY.
func WithProvider(provider llms.ProviderType) Option {
	return func(opts *options) {
		opts.provider = provider
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithMaxRetries sets the number of SDK retries.
func WithMaxRetries(n int) Option {
	return func(opts *options) {
		opts.maxRetries = n
	}
}
