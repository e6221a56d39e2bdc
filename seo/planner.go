package seo

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/encoding"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/pkg/metricskey"
	"github.com/effective-security/seoagent/pkg/prompts"
	"github.com/effective-security/seoagent/pkg/schema"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/seoagent", "seo")

// MaxPlanSteps is the upper bound of steps in a plan
const MaxPlanSteps = 5

// PlanStep is one atomic step of a QueryPlan
type PlanStep struct {
	ID             int      `json:"id" yaml:"id" toml:"id" jsonschema:"title=id,description=Sequential step number starting from 1"`
	Goal           string   `json:"goal" yaml:"goal" toml:"goal" jsonschema:"title=goal,description=What this step is trying to achieve in plain language"`
	Server         Server   `json:"server" yaml:"server" toml:"server" jsonschema:"title=server,enum=gsc,enum=dataforseo,enum=both,enum=none,description=Backend needed: gsc for Search Console data; dataforseo for keywords and SERP and backlinks; both when combining; none for pure reasoning"`
	Categories     []string `json:"categories,omitempty" yaml:"categories,omitempty" toml:"categories,omitempty" jsonschema:"title=categories,description=High-level categories such as gsc_performance or keywords or backlinks"`
	RequiredInputs []string `json:"required_inputs,omitempty" yaml:"required_inputs,omitempty" toml:"required_inputs,omitempty" jsonschema:"title=required_inputs,description=Parameters needed to run the step such as domain or date_range or country"`
	Notes          string   `json:"notes,omitempty" yaml:"notes,omitempty" toml:"notes,omitempty" jsonschema:"title=notes,description=Optional notes or constraints for this step"`
}

// QueryPlan is the plan for answering a user query.
// The planner does not call tools.
type QueryPlan struct {
	OriginalQuery string     `json:"original_query" yaml:"original_query" toml:"original_query" jsonschema:"title=original_query,description=The original user query"`
	Summary       string     `json:"summary" yaml:"summary" toml:"summary" jsonschema:"title=summary,description=Short summary of the overall plan"`
	Steps         []PlanStep `json:"steps" yaml:"steps" toml:"steps" jsonschema:"title=steps,description=Ordered list of steps to execute"`
}

// GetContent returns the plan summary and steps
func (p *QueryPlan) GetContent() string {
	var b strings.Builder
	b.WriteString(p.Summary)
	for _, s := range p.Steps {
		fmt.Fprintf(&b, "\n%d. [%s] %s", s.ID, s.Server, s.Goal)
	}
	return b.String()
}

// NeedsTools returns true if any step targets a backend
func (p *QueryPlan) NeedsTools() bool {
	for _, s := range p.Steps {
		if s.Server != ServerNone {
			return true
		}
	}
	return false
}

// normalize enforces the plan invariants on model output
func (p *QueryPlan) normalize(query string) error {
	if p.OriginalQuery == "" {
		p.OriginalQuery = query
	}
	if len(p.Steps) == 0 {
		return errors.New("plan has no steps")
	}
	if len(p.Steps) > MaxPlanSteps {
		p.Steps = p.Steps[:MaxPlanSteps]
	}
	for i := range p.Steps {
		s := &p.Steps[i]
		s.ID = i + 1
		s.Server = Server(strings.ToLower(string(s.Server)))
		if !s.Server.Valid() {
			return errors.Newf("step %d: invalid server %q", s.ID, s.Server)
		}
	}
	return nil
}

const plannerPrompt = `You are an expert SEO strategist and planner.

Your job:
- Read the user's query.
- Decide what needs to be done using two backends:
  - 'gsc': Google Search Console tools (traffic, queries, pages, CTR, positions, sitemaps, indexing).
  - 'dataforseo': DataForSEO tools (keywords, SERP, competitors, CPC, difficulty, backlinks).
- Break the work into 1-{{ .max_steps }} clear, ordered steps.

Rules:
- Focus only on planning, do not answer the query.
- Use server='gsc' when the step depends mostly on Search Console data.
- Use server='dataforseo' when the step depends mostly on DataForSEO data.
- Use server='both' when the step combines both systems.
- Use server='none' when the step is pure reasoning or explanation without tool calls.
- General SEO questions that need no site data must have a single step with server='none'.
- Known categories: {{ .categories | join ", " }}.
- Be explicit about required_inputs (e.g. 'domain', 'date_range', 'country').
- steps.id must start at 1 and increase sequentially.
- Today is {{ .today }}.`

var plannerTemplate = prompts.NewPromptTemplate(plannerPrompt, []string{"max_steps", "categories", "today"})

// Planner turns a raw user query into a QueryPlan
type Planner struct {
	llm    llms.Model
	parser *encoding.TypedOutputParser[QueryPlan]
	opts   []llms.CallOption
}

// PlannerOption configures Planner
type PlannerOption func(*plannerOptions)

type plannerOptions struct {
	mode encoding.Mode
	opts []llms.CallOption
}

// WithPlanFormat sets the output format the model is asked for:
// json, json_schema, yaml or toml. json_schema also requests
// structured output from the providers that support it.
func WithPlanFormat(mode encoding.Mode) PlannerOption {
	return func(o *plannerOptions) {
		o.mode = mode
	}
}

// WithCallOptions adds options to the model calls
func WithCallOptions(opts ...llms.CallOption) PlannerOption {
	return func(o *plannerOptions) {
		o.opts = append(o.opts, opts...)
	}
}

// NewPlanner returns Planner, the default format is json
func NewPlanner(llm llms.Model, options ...PlannerOption) (*Planner, error) {
	o := &plannerOptions{mode: encoding.ModeJSON}
	for _, opt := range options {
		opt(o)
	}

	switch o.mode {
	case encoding.ModeJSON, encoding.ModeYAML, encoding.ModeTOML:
	case encoding.ModeJSONSchema:
		rf, err := schema.NewResponseFormat(reflect.TypeOf(QueryPlan{}), false)
		if err != nil {
			return nil, err
		}
		o.opts = append(o.opts, llms.WithResponseFormat(rf))
	default:
		return nil, errors.Newf("unsupported plan format: %s", o.mode)
	}

	parser, err := encoding.NewTypedOutputParser(QueryPlan{}, o.mode)
	if err != nil {
		return nil, err
	}
	return &Planner{
		llm:    llm,
		parser: parser,
		opts:   o.opts,
	}, nil
}

// SystemPrompt returns the planner instructions with the output schema
func (p *Planner) SystemPrompt() (string, error) {
	cats := make([]string, 0, len(Categories()))
	for _, c := range Categories() {
		cats = append(cats, string(c))
	}
	s, err := plannerTemplate.Format(map[string]any{
		"max_steps":  MaxPlanSteps,
		"categories": cats,
		"today":      now().Format(time.DateOnly),
	})
	if err != nil {
		return "", err
	}
	return s + "\n\n# OUTPUT SCHEMA\n" + strings.TrimRight(p.parser.GetFormatInstructions(), "\n"), nil
}

// Plan asks the model for a QueryPlan.
// A response that can not be parsed falls back to HeuristicPlan,
// a model error is returned.
func (p *Planner) Plan(ctx context.Context, query string) (*QueryPlan, error) {
	started := time.Now()
	defer metricskey.PerfLLMCall.MeasureSince(started, "planner", p.llm.GetName())

	sys, err := p.SystemPrompt()
	if err != nil {
		return nil, err
	}
	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, sys),
		llms.MessageFromTextParts(llms.RoleHuman, "User query:\n"+query+"\n\nCreate a structured plan to answer this."),
	}

	resp, err := p.llm.GenerateContent(ctx, messages, p.opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate plan")
	}
	if len(resp.Choices) == 0 {
		logger.ContextKV(ctx, xlog.WARNING, "status", "empty_plan_response")
		return HeuristicPlan(query), nil
	}

	plan, err := p.parser.Parse(resp.Choices[0].Content)
	if err == nil {
		err = plan.normalize(query)
	}
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "plan_fallback",
			"err", err.Error())
		return HeuristicPlan(query), nil
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "planned",
		"steps", len(plan.Steps))
	return plan, nil
}

// HeuristicPlan returns a single step plan inferred from the query keywords
func HeuristicPlan(query string) *QueryPlan {
	server := ServerNone
	category := InferCategory(query, ServerBoth)
	if category == "" {
		category = InferCategory(query, ServerGSC)
	}
	step := PlanStep{
		ID:    1,
		Goal:  query,
		Notes: "inferred from query keywords",
	}
	if category != "" {
		server = ServerOf(category)
		step.Categories = []string{string(category)}
	}
	step.Server = server

	summary := "Answer from general SEO knowledge."
	if server != ServerNone {
		summary = fmt.Sprintf("Use %s tools for %s.", server, category)
	}
	return &QueryPlan{
		OriginalQuery: query,
		Summary:       summary,
		Steps:         []PlanStep{step},
	}
}

var now = time.Now
