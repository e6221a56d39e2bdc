package mcp

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/tools"
	"github.com/effective-security/xlog"
	"github.com/sourcegraph/conc/pool"
)

// Toolset is a set of tools loaded from MCP servers
type Toolset struct {
	clients []*Client
	tools   []tools.ITool
}

// LoadTools connects to the servers concurrently and returns their tools
// in the order of servers.
// A server that can not be reached fails the load.
func LoadTools(ctx context.Context, servers []ServerConfig, version string) (*Toolset, error) {
	clients := make([]*Client, len(servers))
	lists := make([][]tools.ITool, len(servers))

	p := pool.New().WithContext(ctx).WithCancelOnError()
	for i, cfg := range servers {
		clients[i] = NewClient(cfg, version)
		p.Go(func(ctx context.Context) error {
			list, err := clients[i].Tools(ctx)
			if err != nil {
				return errors.WithMessagef(err, "MCP server %s", cfg.Name)
			}
			logger.ContextKV(ctx, xlog.INFO,
				"server", cfg.Name,
				"tools", len(list))
			lists[i] = list
			return nil
		})
	}

	ts := &Toolset{clients: clients}
	if err := p.Wait(); err != nil {
		_ = ts.Close()
		return nil, err
	}
	for _, list := range lists {
		ts.tools = append(ts.tools, list...)
	}
	return ts, nil
}

// Tools returns the tools of all servers
func (s *Toolset) Tools() []tools.ITool {
	return s.tools
}

// Close closes all sessions
func (s *Toolset) Close() error {
	var errs []error
	for _, c := range s.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.clients = nil
	return errors.Join(errs...)
}
