package main

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/assistants"
	"github.com/effective-security/seoagent/callbacks"
	"github.com/effective-security/seoagent/config"
	"github.com/effective-security/seoagent/seo"
	"github.com/effective-security/seoagent/store"
	"github.com/effective-security/seoagent/tools"
	"github.com/effective-security/xlog"
)

// Assistant names used to select models from the LLM config
const (
	assistantAgent   = "seoagent"
	assistantPlanner = "planner"
)

// historyLimit is the number of model messages kept per chat
const historyLimit = 100

// runtime is the wired agent of a command
type runtime struct {
	cfg    *config.Config
	reg    *tools.Registry
	agent  *assistants.Agent
	store  store.MessageStore
	closer io.Closer
}

func (g *Globals) loadConfig(opts ...config.LoadOption) (*config.Config, error) {
	return config.Load(g.Config, opts...)
}

// newRuntime builds the tools and the agent,
// extra callbacks receive the run events.
func (g *Globals) newRuntime(ctx context.Context, extra ...assistants.Callback) (*runtime, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	factory, err := cfg.NewLLMFactory()
	if err != nil {
		return nil, err
	}
	llm, err := factory.AssistantModel(assistantAgent)
	if err != nil {
		return nil, errors.WithMessage(err, "unable to create the agent model")
	}

	reg, closer, err := cfg.NewRegistry(ctx, version)
	if err != nil {
		return nil, err
	}

	fanout := callbacks.NewFanout(callbacks.NewPackageLogger(logger))
	if g.Verbose {
		fanout.Add(callbacks.NewPrinter(os.Stderr, callbacks.ModeDefault))
	}
	for _, cb := range extra {
		fanout.Add(cb)
	}

	history := store.NewMemoryStore(historyLimit)
	opts := []assistants.Option{
		assistants.WithMaxSteps(cfg.MaxSteps),
		assistants.WithInstructions(seo.FormatInstructions),
		assistants.WithCallback(fanout),
		assistants.WithStore(history),
	}

	if cfg.Planning {
		plannerLLM, err := factory.AssistantModel(assistantPlanner)
		if err != nil {
			_ = closer.Close()
			return nil, errors.WithMessage(err, "unable to create the planner model")
		}
		planner, err := seo.NewPlanner(plannerLLM, seo.WithPlanFormat(cfg.PlanFormat))
		if err != nil {
			_ = closer.Close()
			return nil, err
		}
		opts = append(opts, assistants.WithPlanner(seo.NewRouter(planner)))
	}

	logger.ContextKV(ctx, xlog.INFO,
		"model", llm.GetName(),
		"provider", llm.GetProviderType(),
		"tools", reg.Names(),
		"max_steps", cfg.MaxSteps,
		"planning", cfg.Planning,
		"plan_format", cfg.PlanFormat)

	return &runtime{
		cfg:    cfg,
		reg:    reg,
		agent:  assistants.NewAgent(llm, reg, opts...),
		store:  history,
		closer: closer,
	}, nil
}

// Close releases the MCP sessions
func (r *runtime) Close() error {
	return r.closer.Close()
}
