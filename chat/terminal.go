package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/tools"
)

// Terminal commands
const (
	CmdReset = "/reset"
	CmdTools = "/tools"
	CmdQuit  = "/quit"
	CmdExit  = "/exit"
	CmdHelp  = "/help"
)

const terminalHelp = `Ask an SEO question, or use a command:
  /tools  list the available tools
  /reset  clear the conversation
  /quit   exit
`

// Terminal is a line oriented REPL over a Session
type Terminal struct {
	session *Session
	reg     *tools.Registry
	in      io.Reader
	out     io.Writer
	prompt  string
}

// NewTerminal returns Terminal
func NewTerminal(session *Session, reg *tools.Registry, in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		session: session,
		reg:     reg,
		in:      in,
		out:     out,
		prompt:  "> ",
	}
}

// Run reads queries until /quit, EOF or ctx is done
func (t *Terminal) Run(ctx context.Context) error {
	fmt.Fprint(t.out, terminalHelp)

	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(t.out, t.prompt)
		if !scanner.Scan() {
			fmt.Fprintln(t.out)
			return errors.WithStack(scanner.Err())
		}
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case CmdQuit, CmdExit:
			return nil
		case CmdHelp:
			fmt.Fprint(t.out, terminalHelp)
		case CmdTools:
			t.printTools()
		case CmdReset:
			if err := t.session.Reset(ctx); err != nil {
				fmt.Fprintf(t.out, "%s%s\n", ErrorPrefix, err.Error())
				continue
			}
			fmt.Fprintln(t.out, "Conversation cleared.")
		default:
			entry, err := t.session.Submit(ctx, line)
			if err != nil {
				fmt.Fprintf(t.out, "%s%s\n", ErrorPrefix, err.Error())
				continue
			}
			fmt.Fprintf(t.out, "\n%s\n\n", strings.TrimSpace(entry.Text))
		}
	}
}

func (t *Terminal) printTools() {
	if t.reg == nil || t.reg.Len() == 0 {
		fmt.Fprintln(t.out, "No tools are configured.")
		return
	}
	for _, d := range t.reg.ListTools() {
		desc, _, _ := strings.Cut(d.Description, "\n")
		fmt.Fprintf(t.out, "  %s: %s\n", d.Name, desc)
	}
}
