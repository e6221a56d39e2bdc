package seo

import (
	"context"

	"github.com/effective-security/seoagent/tools"
	"github.com/effective-security/xlog"
)

// Router plans a query and restricts the registry to the tools of the plan.
// It implements assistants.ToolPlanner.
type Router struct {
	planner *Planner
}

// NewRouter returns Router.
// Without a planner the heuristic plan is used.
func NewRouter(planner *Planner) *Router {
	return &Router{planner: planner}
}

// Plan returns the plan of the query.
// A model error falls back to HeuristicPlan.
func (r *Router) Plan(ctx context.Context, query string) *QueryPlan {
	if r.planner == nil {
		return HeuristicPlan(query)
	}
	plan, err := r.planner.Plan(ctx, query)
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "planner_failed",
			"err", err.Error())
		return HeuristicPlan(query)
	}
	return plan
}

// PlanTools returns the subset of reg selected for the query plan
func (r *Router) PlanTools(ctx context.Context, query string, reg *tools.Registry) (*tools.Registry, error) {
	plan := r.Plan(ctx, query)
	sub, err := NewSelector(reg).Registry(ctx, plan)
	if err != nil {
		return nil, err
	}
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "routed",
		"plan", plan.Summary,
		"tools", sub.Names())
	return sub, nil
}
