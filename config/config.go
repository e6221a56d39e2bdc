// Package config loads the process configuration once at startup:
// an optional YAML file, the environment overriding it, then defaults.
package config

import (
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/seoagent", "config")

// Tool modes
const (
	ToolModeNative = "native"
	ToolModeMCP    = "mcp"
)

// LLM providers selected by LLM_PROVIDER
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogleAI  = "googleai"
	ProviderBedrock   = "bedrock"
)

// Defaults
const (
	DefaultOpenAIModel    = "gpt-4o"
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultGoogleModel    = "gemini-2.5-flash"
	DefaultBedrockModel   = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	DefaultMaxSteps       = 10
	DefaultPlanFormat     = "json_schema"
	DefaultWebAddr        = ":8080"
	DefaultRequestsPerMin = 30
	DefaultBurst          = 5
	DefaultMaxSessions    = 100
)

// ErrConfiguration is the cause of every ConfigurationError
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError names the missing or invalid settings
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return ErrConfiguration.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap returns ErrConfiguration
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func (e *ConfigurationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// OpenAIConfig of the OpenAI provider
type OpenAIConfig struct {
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"OPENAI_API_KEY" validate:"required"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty" env:"OPENAI_MODEL"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" env:"OPENAI_BASE_URL"`
}

// AnthropicConfig of the Anthropic provider
type AnthropicConfig struct {
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"ANTHROPIC_API_KEY" validate:"required"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty" env:"ANTHROPIC_MODEL"`
}

// GoogleConfig of the Gemini provider
type GoogleConfig struct {
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" env:"GOOGLE_API_KEY" validate:"required"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty" env:"GOOGLE_MODEL"`
}

// BedrockConfig of the Bedrock provider,
// credentials are taken from the default AWS chain.
type BedrockConfig struct {
	Region string `json:"region,omitempty" yaml:"region,omitempty" env:"AWS_REGION" validate:"required"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty" env:"BEDROCK_MODEL"`
}

// GSCConfig of Search Console
type GSCConfig struct {
	// Credentials is the path of service account or authorized user JSON
	Credentials string `json:"credentials,omitempty" yaml:"credentials,omitempty" env:"GSC_CREDENTIALS" validate:"required"`
	SkipOAuth   bool   `json:"skip_oauth,omitempty" yaml:"skip_oauth,omitempty" env:"GSC_SKIP_OAUTH"`
	// MCPCommand starts the Search Console MCP server over stdio in mcp mode
	MCPCommand string `json:"mcp_command,omitempty" yaml:"mcp_command,omitempty" env:"GSC_MCP_COMMAND" validate:"required_if=Mode mcp"`
	// Mode mirrors Config.ToolMode for validation
	Mode string `json:"-" yaml:"-" env:"-"`
}

// DataForSEOConfig of DataForSEO
type DataForSEOConfig struct {
	Login    string `json:"login,omitempty" yaml:"login,omitempty" env:"DATAFORSEO_LOGIN" validate:"required_if=Mode native"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" env:"DATAFORSEO_PASSWORD" validate:"required_if=Mode native"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty" env:"DATAFORSEO_BASE_URL"`
	Location string `json:"location,omitempty" yaml:"location,omitempty" env:"DATAFORSEO_LOCATION"`
	Language string `json:"language,omitempty" yaml:"language,omitempty" env:"DATAFORSEO_LANGUAGE"`
	// MCPURL is the streamable HTTP endpoint in mcp mode
	MCPURL string `json:"mcp_url,omitempty" yaml:"mcp_url,omitempty" env:"DATAFORSEO_MCP_URL" validate:"required_if=Mode mcp"`
	Mode   string `json:"-" yaml:"-" env:"-"`
}

// WebConfig of the chat HTTP server
type WebConfig struct {
	Addr              string `json:"addr,omitempty" yaml:"addr,omitempty" env:"SEOAGENT_ADDR"`
	RequestsPerMinute int    `json:"requests_per_minute,omitempty" yaml:"requests_per_minute,omitempty" env:"SEOAGENT_REQUESTS_PER_MINUTE" validate:"min=0"`
	Burst             int    `json:"burst,omitempty" yaml:"burst,omitempty" env:"SEOAGENT_BURST" validate:"min=0"`
	MaxSessions       int    `json:"max_sessions,omitempty" yaml:"max_sessions,omitempty" env:"SEOAGENT_MAX_SESSIONS" validate:"min=0"`
}

// Config is the process configuration, built once and passed by reference
type Config struct {
	// LLMProvider is one of openai, anthropic, googleai, bedrock
	LLMProvider string `json:"llm_provider,omitempty" yaml:"llm_provider,omitempty" env:"LLM_PROVIDER" validate:"oneof=openai anthropic googleai bedrock"`
	// LLMConfig is the path of llmfactory YAML,
	// when set it replaces the single provider built from the environment.
	LLMConfig string `json:"llm_config,omitempty" yaml:"llm_config,omitempty" env:"SEOAGENT_LLM_CONFIG"`

	OpenAI    OpenAIConfig    `json:"openai" yaml:"openai" validate:"-"`
	Anthropic AnthropicConfig `json:"anthropic" yaml:"anthropic" validate:"-"`
	Google    GoogleConfig    `json:"google" yaml:"google" validate:"-"`
	Bedrock   BedrockConfig   `json:"bedrock" yaml:"bedrock" validate:"-"`

	// ToolMode is native or mcp
	ToolMode        string `json:"tool_mode,omitempty" yaml:"tool_mode,omitempty" env:"SEOAGENT_TOOL_MODE" validate:"oneof=native mcp"`
	MaxSteps        int    `json:"max_steps,omitempty" yaml:"max_steps,omitempty" env:"SEOAGENT_MAX_STEPS" validate:"min=1,max=50"`
	UpstreamRetries int    `json:"upstream_retries,omitempty" yaml:"upstream_retries,omitempty" env:"SEOAGENT_UPSTREAM_RETRIES" validate:"min=0,max=3"`
	// Planning restricts the tools of a query to the planned categories
	Planning bool `json:"planning,omitempty" yaml:"planning,omitempty" env:"SEOAGENT_PLANNING"`
	// PlanFormat is the planner output format: json, json_schema, yaml or toml
	PlanFormat string `json:"plan_format,omitempty" yaml:"plan_format,omitempty" env:"SEOAGENT_PLAN_FORMAT" validate:"oneof=json json_schema yaml toml"`

	GSC          GSCConfig        `json:"gsc" yaml:"gsc" validate:"-"`
	DataForSEO   DataForSEOConfig `json:"dataforseo" yaml:"dataforseo" validate:"-"`
	TavilyAPIKey string           `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty" env:"TAVILY_API_KEY"`

	Web WebConfig `json:"web" yaml:"web" validate:"-"`
}

// LoadOption changes the validation of Load
type LoadOption func(*loadOptions)

type loadOptions struct {
	toolsOnly bool
}

// ToolsOnly skips the LLM provider settings,
// for processes that serve the tools without the agent.
func ToolsOnly() LoadOption {
	return func(o *loadOptions) {
		o.toolsOnly = true
	}
}

// Load returns the configuration from the optional file and the environment.
// The returned error is *ConfigurationError when settings are missing or invalid.
func Load(file string, opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()
	v.SetDefault("gsc.skip_oauth", true)
	v.SetDefault("planning", true)
	for _, b := range envBindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if !strings.HasSuffix(file, ".json") {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WithMessagef(err, "unable to load config %s", file)
		}
	}

	cerr := &ConfigurationError{}
	checkTypes(v, cerr)

	cfg := &Config{}
	err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return nil, errors.WithMessage(err, "unable to decode config")
	}
	if err = configloader.ExpandAll(cfg); err != nil {
		return nil, errors.WithMessage(err, "unable to expand config")
	}

	cfg.setDefaults()

	if err = cfg.validate(cerr, o.toolsOnly); err != nil {
		return nil, err
	}

	logger.KV(xlog.DEBUG,
		"llm_provider", cfg.LLMProvider,
		"tool_mode", cfg.ToolMode,
		"max_steps", cfg.MaxSteps,
		"upstream_retries", cfg.UpstreamRetries)
	return cfg, nil
}

func (c *Config) setDefaults() {
	c.LLMProvider = strings.ToLower(values.StringsCoalesce(c.LLMProvider, ProviderOpenAI))
	c.ToolMode = strings.ToLower(values.StringsCoalesce(c.ToolMode, ToolModeNative))
	c.MaxSteps = values.NumbersCoalesce(c.MaxSteps, DefaultMaxSteps)
	c.PlanFormat = strings.ToLower(values.StringsCoalesce(c.PlanFormat, DefaultPlanFormat))

	c.OpenAI.Model = values.StringsCoalesce(c.OpenAI.Model, DefaultOpenAIModel)
	c.Anthropic.Model = values.StringsCoalesce(c.Anthropic.Model, DefaultAnthropicModel)
	c.Google.Model = values.StringsCoalesce(c.Google.Model, DefaultGoogleModel)
	c.Bedrock.Model = values.StringsCoalesce(c.Bedrock.Model, DefaultBedrockModel)

	c.GSC.Mode = c.ToolMode
	c.DataForSEO.Mode = c.ToolMode

	c.Web.Addr = values.StringsCoalesce(c.Web.Addr, DefaultWebAddr)
	c.Web.RequestsPerMinute = values.NumbersCoalesce(c.Web.RequestsPerMinute, DefaultRequestsPerMin)
	c.Web.Burst = values.NumbersCoalesce(c.Web.Burst, DefaultBurst)
	c.Web.MaxSessions = values.NumbersCoalesce(c.Web.MaxSessions, DefaultMaxSessions)
}

// validate collects every missing and invalid setting
func (c *Config) validate(cerr *ConfigurationError, toolsOnly bool) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := f.Tag.Get("env")
		if name == "-" {
			return ""
		}
		return values.StringsCoalesce(name, f.Name)
	})

	checks := []any{c, &c.GSC, &c.DataForSEO, &c.Web}
	if c.LLMConfig == "" && !toolsOnly {
		switch c.LLMProvider {
		case ProviderOpenAI:
			checks = append(checks, &c.OpenAI)
		case ProviderAnthropic:
			checks = append(checks, &c.Anthropic)
		case ProviderGoogleAI:
			checks = append(checks, &c.Google)
		case ProviderBedrock:
			checks = append(checks, &c.Bedrock)
		}
	}

	for _, s := range checks {
		err := v.Struct(s)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.WithStack(err)
		}
		for _, fe := range verrs {
			if strings.HasPrefix(fe.Tag(), "required") {
				cerr.Missing = append(cerr.Missing, fe.Field())
			} else {
				cerr.Invalid = append(cerr.Invalid, fe.Field())
			}
		}
	}

	if cerr.empty() {
		return nil
	}
	logger.KV(xlog.ERROR,
		"missing", cerr.Missing,
		"invalid", cerr.Invalid)
	return cerr
}

// binding maps a config key to its environment variable
type binding struct {
	key  string
	env  string
	kind reflect.Kind
}

// envBindings are collected from the `yaml` and `env` tags of Config
var envBindings = collectBindings(reflect.TypeOf(Config{}), "")

func collectBindings(t reflect.Type, prefix string) []binding {
	var list []binding
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if key == "" || key == "-" {
			continue
		}
		key = prefix + key
		if f.Type.Kind() == reflect.Struct {
			list = append(list, collectBindings(f.Type, key+".")...)
			continue
		}
		if env := f.Tag.Get("env"); env != "" && env != "-" {
			list = append(list, binding{key: key, env: env, kind: f.Type.Kind()})
		}
	}
	return list
}

// checkTypes reports the variables that can not be decoded
// and resets their keys to the zero value.
func checkTypes(v *viper.Viper, cerr *ConfigurationError) {
	for _, b := range envBindings {
		switch b.kind {
		case reflect.Int:
			if _, err := cast.ToIntE(v.Get(b.key)); err != nil {
				cerr.Invalid = append(cerr.Invalid, b.env)
				v.Set(b.key, 0)
			}
		case reflect.Bool:
			if _, err := cast.ToBoolE(v.Get(b.key)); err != nil {
				cerr.Invalid = append(cerr.Invalid, b.env)
				v.Set(b.key, false)
			}
		}
	}
}
