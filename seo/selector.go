package seo

import (
	"context"
	"fmt"
	"slices"

	"github.com/effective-security/seoagent/tools"
	"github.com/effective-security/xlog"
)

const (
	// MaxToolsPerStep bounds the tools exposed for a plan step
	MaxToolsPerStep = 6
	// MaxFallbackTools bounds the tools exposed when no hint matches
	MaxFallbackTools = 3
)

// Selection is the set of tools chosen for a plan step
type Selection struct {
	StepID int      `json:"step_id" yaml:"step_id"`
	Server Server   `json:"server" yaml:"server"`
	Goal   string   `json:"goal" yaml:"goal"`
	Tools  []string `json:"tools" yaml:"tools"`
	Notes  string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Selector picks a small subset of the registry for each plan step
type Selector struct {
	reg *tools.Registry
}

// NewSelector returns Selector over the registry
func NewSelector(reg *tools.Registry) *Selector {
	return &Selector{reg: reg}
}

// SelectStep returns the tools for a single step
func (s *Selector) SelectStep(step PlanStep) Selection {
	sel := Selection{
		StepID: step.ID,
		Server: step.Server,
		Goal:   step.Goal,
	}
	if step.Server == ServerNone || !step.Server.Valid() {
		sel.Notes = "No tools needed for a reasoning-only step."
		return sel
	}

	var hints []string
	for _, c := range step.Categories {
		hints = append(hints, Hints(Category(c), step.Server)...)
	}
	sel.Tools = s.match(hints, MaxToolsPerStep)
	if len(sel.Tools) > 0 {
		sel.Notes = "Selected by categories."
		return sel
	}

	if inferred := InferCategory(step.Goal, step.Server); inferred != "" {
		sel.Tools = s.match(Hints(inferred, step.Server), MaxToolsPerStep)
		if len(sel.Tools) > 0 {
			sel.Notes = fmt.Sprintf("Selected by category %q inferred from the goal.", inferred)
			return sel
		}
	}

	sel.Tools = s.fallback(step.Server)
	sel.Notes = "Used fallback tools for the server."
	return sel
}

// Select returns selections for every step of the plan
func (s *Selector) Select(ctx context.Context, plan *QueryPlan) []Selection {
	res := make([]Selection, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		sel := s.SelectStep(step)
		logger.ContextKV(ctx, xlog.DEBUG,
			"step", sel.StepID,
			"server", sel.Server,
			"tools", sel.Tools,
			"notes", sel.Notes)
		res = append(res, sel)
	}
	return res
}

// Registry returns the registry restricted to the tools selected for the plan.
// A plan whose steps need no backend yields an empty registry.
func (s *Selector) Registry(ctx context.Context, plan *QueryPlan) (*tools.Registry, error) {
	var names []string
	for _, sel := range s.Select(ctx, plan) {
		for _, n := range sel.Tools {
			if !slices.Contains(names, n) {
				names = append(names, n)
			}
		}
	}
	return s.reg.Subset(names...)
}

// match returns registry tools whose names contain any of the hints, in registry order
func (s *Selector) match(hints []string, limit int) []string {
	if len(hints) == 0 {
		return nil
	}
	var res []string
	for _, name := range s.reg.Names() {
		if matchHints(name, hints) {
			res = append(res, name)
			if len(res) == limit {
				break
			}
		}
	}
	return res
}

// fallback returns the first tools matching any hint of the server
func (s *Selector) fallback(server Server) []string {
	var hints []string
	for _, c := range Categories() {
		hints = append(hints, Hints(c, server)...)
	}
	return s.match(hints, MaxFallbackTools)
}
