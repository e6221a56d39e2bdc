// Command seo-mcp serves the Search Console and DataForSEO tools as an MCP server,
// over stdio or streamable HTTP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/config"
	"github.com/effective-security/seoagent/mcp/seoserver"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/seoagent", "seo-mcp")

var version = "dev"

type cli struct {
	Config    string           `help:"Path of the YAML configuration, the environment overrides it." env:"SEOAGENT_CONFIG"`
	Transport string           `help:"MCP transport: stdio or http." default:"stdio" enum:"stdio,http"`
	Addr      string           `help:"Listen address of the http transport." default:":8090"`
	Debug     bool             `help:"Enable debug logs on stderr."`
	Version   kong.VersionFlag `help:"Print the version and exit."`
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("seo-mcp"),
		kong.Description("MCP server of the SEO data tools."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(xlog.WARNING)
	if c.Debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := c.run(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, config.ErrConfiguration) {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	kctx.FatalIfErrorf(err)
}

func (c *cli) run(ctx context.Context) error {
	cfg, err := config.Load(c.Config, config.ToolsOnly())
	if err != nil {
		return err
	}
	if cfg.ToolMode != config.ToolModeNative {
		return &config.ConfigurationError{Invalid: []string{"SEOAGENT_TOOL_MODE"}}
	}

	reg, closer, err := cfg.NewRegistry(ctx, version)
	if err != nil {
		return err
	}
	defer closer.Close()

	s, err := seoserver.New(reg, version)
	if err != nil {
		return err
	}

	if c.Transport != "http" {
		return errors.WithStack(seoserver.ServeStdio(s))
	}

	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           seoserver.NewHTTPHandler(s),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.KV(xlog.INFO, "status", "listening", "addr", c.Addr, "path", seoserver.DefaultEndpointPath)
	if err = srv.ListenAndServe(); errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.WithStack(err)
}
