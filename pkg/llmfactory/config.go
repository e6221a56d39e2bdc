package llmfactory

import (
	"slices"
	"strings"

	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/x/configloader"
)

// Config of the LLM providers
type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers"`
	// DefaultProvider specifies the name of the default provider,
	// the first provider is used if not set.
	DefaultProvider string `json:"default_provider,omitempty" yaml:"default_provider,omitempty"`
	// AssistantModels specifies the preferred models of an assistant,
	// key is the assistant name, `default` applies to all assistants.
	AssistantModels map[string][]string `json:"assistant_models,omitempty" yaml:"assistant_models,omitempty"`
}

// ProviderConfig of a single LLM provider
type ProviderConfig struct {
	Name string `json:"name" yaml:"name"`
	// Type is one of OPENAI|ANTHROPIC|GOOGLEAI|BEDROCK|PERPLEXITY
	Type            string   `json:"type" yaml:"type"`
	Token           string   `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultModel    string   `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	BaseURL         string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// OrgID specifies which OpenAI organization is billed
	OrgID string `json:"org_id,omitempty" yaml:"org_id,omitempty"`
	// Region and the access keys are used by BEDROCK,
	// the default AWS credentials chain is used when the keys are empty.
	Region          string `json:"region,omitempty" yaml:"region,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty"`
}

// ProviderType returns the provider type
func (c *ProviderConfig) ProviderType() llms.ProviderType {
	switch t := llms.ProviderType(strings.ToUpper(c.Type)); t {
	case "OPEN_AI", "":
		return llms.ProviderOpenAI
	default:
		return t
	}
}

// FindModel returns the first of models available at the provider,
// or the provider's default model.
func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if model == c.DefaultModel || slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// LoadConfig from file, ${ENV} references are expanded
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
