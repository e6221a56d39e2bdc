package llmfactory

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/pkg/llms/anthropic"
	"github.com/effective-security/seoagent/pkg/llms/bedrock"
	"github.com/effective-security/seoagent/pkg/llms/googleai"
	"github.com/effective-security/seoagent/pkg/llms/openai"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/seoagent", "llmfactory")

// NewLLM is a wrapper for CreateLLM to allow for overriding the default implementation.
var NewLLM = CreateLLM

// Factory creates and caches LLM models.
type Factory interface {
	// DefaultModel returns the default model of the default provider.
	DefaultModel() (llms.Model, error)
	// ModelByType returns the model of the first provider of the type.
	ModelByType(providerType llms.ProviderType) (llms.Model, error)
	// ModelByName returns the first of preferred models available at a provider,
	// or the default model.
	ModelByName(preferredModels ...string) (llms.Model, error)
	// AssistantModel returns the model configured for the assistant.
	AssistantModel(assistantName string, preferredModels ...string) (llms.Model, error)
}

// Load returns the factory with the config loaded from file
func Load(location string) (Factory, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

type factory struct {
	cfg             *Config
	defaultProvider *ProviderConfig

	lock   sync.Mutex
	byType map[llms.ProviderType]llms.Model
	byName map[string]llms.Model
}

// New creates a new LLM factory
func New(cfg *Config) Factory {
	f := &factory{
		cfg:    cfg,
		byType: make(map[llms.ProviderType]llms.Model),
		byName: make(map[string]llms.Model),
	}
	for _, p := range cfg.Providers {
		if p.Name == cfg.DefaultProvider {
			f.defaultProvider = p
			break
		}
	}
	if f.defaultProvider == nil && len(cfg.Providers) > 0 {
		f.defaultProvider = cfg.Providers[0]
	}
	return f
}

// CreateLLM returns a model of the provider
func CreateLLM(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	model := cfg.FindModel(preferredModels...)
	switch typ := cfg.ProviderType(); typ {
	case llms.ProviderOpenAI, llms.ProviderPerplexity:
		return openai.New(
			openai.WithProvider(typ),
			openai.WithToken(cfg.Token),
			openai.WithModel(model),
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithOrganization(cfg.OrgID),
		)
	case llms.ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithToken(cfg.Token), anthropic.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	case llms.ProviderGoogleAI:
		opts := []googleai.Option{googleai.WithAPIKey(cfg.Token)}
		if model != "" {
			opts = append(opts, googleai.WithDefaultModel(model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, googleai.WithBaseURL(cfg.BaseURL))
		}
		return googleai.New(context.Background(), opts...)
	case llms.ProviderBedrock:
		opts := []bedrock.Option{bedrock.WithRegion(cfg.Region)}
		if model != "" {
			opts = append(opts, bedrock.WithModel(model))
		}
		if cfg.AccessKeyID != "" {
			opts = append(opts, bedrock.WithStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey))
		}
		return bedrock.New(context.Background(), opts...)
	default:
		return nil, errors.Errorf("unsupported provider type: %s", typ)
	}
}

func (f *factory) DefaultModel() (llms.Model, error) {
	if f.defaultProvider == nil {
		return nil, errors.New("no providers configured")
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	return f.create(f.defaultProvider, f.defaultProvider.DefaultModel)
}

func (f *factory) ModelByType(providerType llms.ProviderType) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if model, ok := f.byType[providerType]; ok {
		return model, nil
	}
	for _, cfg := range f.cfg.Providers {
		if cfg.ProviderType() == providerType {
			model, err := f.create(cfg, cfg.DefaultModel)
			if err != nil {
				return nil, err
			}
			f.byType[providerType] = model
			return model, nil
		}
	}
	return nil, errors.Errorf("provider not found for type: %s", providerType)
}

func (f *factory) ModelByName(preferredModels ...string) (llms.Model, error) {
	f.lock.Lock()
	for _, name := range preferredModels {
		if model, ok := f.byName[name]; ok {
			f.lock.Unlock()
			return model, nil
		}
		for _, cfg := range f.cfg.Providers {
			if cfg.FindModel(name) != name {
				continue
			}
			model, err := f.create(cfg, name)
			if err != nil {
				logger.KV(xlog.ERROR,
					"reason", "create_llm",
					"provider", cfg.Name,
					"model", name,
					"err", err.Error())
				continue
			}
			f.byName[name] = model
			f.lock.Unlock()
			return model, nil
		}
	}
	f.lock.Unlock()
	return f.DefaultModel()
}

func (f *factory) AssistantModel(assistantName string, preferredModels ...string) (llms.Model, error) {
	if models, ok := f.cfg.AssistantModels[assistantName]; ok {
		return f.ModelByName(models...)
	}
	if models, ok := f.cfg.AssistantModels["default"]; ok {
		return f.ModelByName(models...)
	}
	return f.ModelByName(preferredModels...)
}

// create must be called under the lock
func (f *factory) create(cfg *ProviderConfig, model string) (llms.Model, error) {
	key := cfg.Name + "/" + model
	if m, ok := f.byName[key]; ok {
		return m, nil
	}
	m, err := NewLLM(cfg, model)
	if err != nil {
		return nil, errors.WithMessagef(err, "provider %s", cfg.Name)
	}
	logger.KV(xlog.DEBUG,
		"status", "created_llm",
		"type", cfg.ProviderType(),
		"name", cfg.Name,
		"model", m.GetName())
	f.byName[key] = m
	return m, nil
}
