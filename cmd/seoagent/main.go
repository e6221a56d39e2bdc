// Command seoagent answers SEO questions with Search Console and DataForSEO data,
// in the terminal, over HTTP or as a single query.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/config"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/seoagent", "cmd")

// version is set at build time
var version = "dev"

// Globals are the flags shared by the commands
type Globals struct {
	Config   string           `help:"Path of the YAML configuration, the environment overrides it." env:"SEOAGENT_CONFIG"`
	LogLevel string           `help:"Log level: debug, info, warning, error." default:"warning" enum:"debug,info,warning,error"`
	Verbose  bool             `short:"v" help:"Print the agent steps to stderr."`
	Version  kong.VersionFlag `help:"Print the version and exit."`
}

type cli struct {
	Globals

	Chat  chatCmd  `cmd:"" default:"1" help:"Chat with the agent in the terminal."`
	Serve serveCmd `cmd:"" help:"Serve the chat page and the HTTP API."`
	Ask   askCmd   `cmd:"" help:"Answer a single query and exit."`
	Tools toolsCmd `cmd:"" help:"List the available tools."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var c cli
	kctx := kong.Parse(&c,
		kong.Name("seoagent"),
		kong.Description("SEO analyst agent over Google Search Console and DataForSEO."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	setupLogging(c.LogLevel)

	err := kctx.Run(&c.Globals)
	if err == nil {
		return
	}
	if errors.Is(err, config.ErrConfiguration) {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	kctx.FatalIfErrorf(err)
}

func setupLogging(level string) {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(logLevel(level))
}

func logLevel(level string) xlog.LogLevel {
	switch level {
	case "debug":
		return xlog.DEBUG
	case "info":
		return xlog.INFO
	case "error":
		return xlog.ERROR
	default:
		return xlog.WARNING
	}
}
