package assistants

import (
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/store"
)

// DefaultMaxSteps is the default bound of Thinking steps in a run
const DefaultMaxSteps = 10

// Option is a function that can be used to modify the behavior of the Agent Config.
type Option func(*Config)

// Config of the Agent
type Config struct {
	// Model is the model to use in an LLM call.
	Model    string
	modelSet bool

	// MaxTokens is the maximum number of tokens to generate to use in an LLM call.
	MaxTokens    int
	maxTokensSet bool

	// Temperature is the temperature for sampling to use in an LLM call, between 0 and 1.
	Temperature    float64
	temperatureSet bool

	// TopP is the cumulative probability for top-p sampling in an LLM call.
	TopP    float64
	toppSet bool

	// Seed is a seed for deterministic sampling in an LLM call.
	Seed    int
	seedSet bool

	//
	// Below are the options for the Agent, not related to LLM call
	//

	// MaxSteps bounds the Thinking steps of a run
	MaxSteps int
	// CallbackHandler receives the run events
	CallbackHandler Callback
	// Store keeps the conversation between runs of the same chat
	Store store.MessageStore
	// Planner narrows the tools for a query
	Planner ToolPlanner
	// Instructions renders the system prompt
	Instructions InstructionsFunc
	// Decider replaces the model as the decision source
	Decider Decider
}

// NewConfig returns Config with defaults
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		MaxSteps:     DefaultMaxSteps,
		Instructions: DefaultInstructions,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Apply returns a copy of the config with the options applied
func (c *Config) Apply(opts ...Option) *Config {
	cfg := *c
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMaxSteps sets the step limit, non-positive values are ignored.
func WithMaxSteps(n int) Option {
	return func(o *Config) {
		if n > 0 {
			o.MaxSteps = n
		}
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

// WithStore sets the conversation store
func WithStore(s store.MessageStore) Option {
	return func(o *Config) {
		o.Store = s
	}
}

// WithPlanner sets the tool planner
func WithPlanner(p ToolPlanner) Option {
	return func(o *Config) {
		o.Planner = p
	}
}

// WithInstructions sets the system prompt
func WithInstructions(fn InstructionsFunc) Option {
	return func(o *Config) {
		if fn != nil {
			o.Instructions = fn
		}
	}
}

// WithDecider sets the decision source
func WithDecider(d Decider) Option {
	return func(o *Config) {
		o.Decider = d
	}
}

// WithModel is an option for LLM.Call.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
		o.modelSet = true
	}
}

// WithMaxTokens is an option for LLM.Call.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
		o.maxTokensSet = true
	}
}

// WithTemperature is an option for LLM.Call.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithTopP	will add an option to use top-p sampling for LLM.Call.
func WithTopP(topP float64) Option {
	return func(o *Config) {
		o.TopP = topP
		o.toppSet = true
	}
}

// WithSeed will add an option to use deterministic sampling for LLM.Call.
func WithSeed(seed int) Option {
	return func(o *Config) {
		o.Seed = seed
		o.seedSet = true
	}
}

// GetCallOptions returns the LLM call options that were set
func (c *Config) GetCallOptions() []llms.CallOption {
	var opts []llms.CallOption
	if c.modelSet {
		opts = append(opts, llms.WithModel(c.Model))
	}
	if c.maxTokensSet {
		opts = append(opts, llms.WithMaxTokens(c.MaxTokens))
	}
	if c.temperatureSet {
		opts = append(opts, llms.WithTemperature(c.Temperature))
	}
	if c.toppSet {
		opts = append(opts, llms.WithTopP(c.TopP))
	}
	if c.seedSet {
		opts = append(opts, llms.WithSeed(c.Seed))
	}
	return opts
}
