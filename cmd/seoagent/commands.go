package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/assistants"
	"github.com/effective-security/seoagent/callbacks"
	"github.com/effective-security/seoagent/chat"
	"github.com/effective-security/seoagent/chat/web"
	"github.com/effective-security/seoagent/chatmodel"
	"github.com/effective-security/seoagent/config"
	"github.com/effective-security/seoagent/encoding"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

// Output formats of ask
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"
)

var outputModes = map[string]encoding.Mode{
	formatText: encoding.ModePlainText,
	formatJSON: encoding.ModeJSON,
	formatYAML: encoding.ModeYAML,
	formatTOML: encoding.ModeTOML,
}

const shutdownTimeout = 10 * time.Second

type chatCmd struct{}

func (c *chatCmd) Run(ctx context.Context, g *Globals) error {
	rt, err := g.newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	session := chat.NewSession(chatmodel.NewChatID(), rt.agent,
		chat.WithStore(rt.store),
		chat.WithSurface(chat.SurfaceTerminal))
	return chat.NewTerminal(session, rt.reg, os.Stdin, os.Stdout).Run(ctx)
}

type serveCmd struct {
	Addr string `help:"Listen address, overrides the configuration."`
}

func (c *serveCmd) Run(ctx context.Context, g *Globals) error {
	rt, err := g.newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	wc := rt.cfg.Web
	manager := chat.NewManager(rt.agent, rt.store, chat.SurfaceWeb, wc.MaxSessions)
	limiter := web.NewLimiter(float64(wc.RequestsPerMinute), wc.Burst)

	srv := &http.Server{
		Addr:              values.StringsCoalesce(c.Addr, wc.Addr),
		Handler:           web.NewServer(manager, rt.reg, limiter, version).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.ContextKV(ctx, xlog.INFO, "status", "listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err = <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WithStack(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.KV(xlog.INFO, "status", "shutting_down")
	return errors.WithStack(srv.Shutdown(shutdownCtx))
}

type askCmd struct {
	Query  []string `arg:"" help:"The SEO question."`
	Format string   `help:"Output format: text, json, yaml or toml." default:"text" enum:"text,json,yaml,toml"`
	Trace  bool     `help:"Print the run trace with token counts to stderr."`
}

func (c *askCmd) Run(ctx context.Context, g *Globals) error {
	query := strings.TrimSpace(strings.Join(c.Query, " "))
	if query == "" {
		return errors.WithStack(chat.ErrEmptyQuery)
	}

	var extra []assistants.Callback
	var pad *callbacks.Scratchpad
	if c.Trace {
		pad = callbacks.NewScratchpad(callbacks.ModeDefault)
		extra = append(extra, pad)
	}

	rt, err := g.newRuntime(ctx, extra...)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(chatmodel.NewChatID(), nil))
	if pad != nil {
		pad.StartRun(ctx)
	}

	res, err := rt.agent.Execute(ctx, query)

	if pad != nil {
		if _, trace := pad.EndRun(ctx); len(trace) > 0 {
			_, _ = os.Stderr.Write(trace)
		}
	}
	if err != nil {
		return err
	}
	return writeResult(os.Stdout, res, c.Format)
}

type toolsCmd struct{}

func (c *toolsCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.loadConfig(config.ToolsOnly())
	if err != nil {
		return err
	}
	reg, closer, err := cfg.NewRegistry(ctx, version)
	if err != nil {
		return err
	}
	defer closer.Close()

	for _, d := range reg.ListTools() {
		desc, _, _ := strings.Cut(d.Description, "\n")
		fmt.Fprintf(os.Stdout, "%s\t%s\n", d.Name, desc)
	}
	return nil
}

// writeResult prints the run in the format
func writeResult(w io.Writer, res *assistants.RunResult, format string) error {
	mode, ok := outputModes[format]
	if !ok {
		return errors.Newf("unsupported output format: %s", format)
	}
	enc, err := encoding.PredefinedSchemaEncoder(mode, assistants.RunResult{})
	if err != nil {
		return errors.WithStack(err)
	}
	b, err := enc.Marshal(res)
	if err != nil {
		return errors.WithStack(err)
	}
	if !strings.HasSuffix(string(b), "\n") {
		b = append(b, '\n')
	}
	_, err = w.Write(b)
	return errors.WithStack(err)
}
