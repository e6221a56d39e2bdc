package web

import (
	"context"
	_ "embed"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/effective-security/seoagent/chat"
	"github.com/effective-security/seoagent/chatmodel"
	"github.com/effective-security/seoagent/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/seoagent", "chat/web")

//go:embed index.html
var indexHTML []byte

// Defaults of the per-client rate limit
const (
	DefaultRequestsPerMinute = 30
	DefaultBurst             = 5
)

// SessionInfo describes a chat session
type SessionInfo struct {
	ID        string    `json:"id" doc:"Session ID"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
}

// ToolInfo describes an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createSessionOutput struct {
	Body SessionInfo
}

type sessionInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type submitInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Query string `json:"query" doc:"SEO question" minLength:"1" maxLength:"4000"`
	}
}

type submitOutput struct {
	Body struct {
		Entry chatmodel.Entry `json:"entry" doc:"Assistant entry"`
	}
}

type messagesOutput struct {
	Body struct {
		Entries []chatmodel.Entry `json:"entries"`
	}
}

type toolsOutput struct {
	Body struct {
		Tools []ToolInfo `json:"tools"`
	}
}

// Server is the HTTP surface of the chat
type Server struct {
	manager *chat.Manager
	reg     *tools.Registry
	limiter *Limiter
	version string
}

// NewServer returns Server
func NewServer(manager *chat.Manager, reg *tools.Registry, limiter *Limiter, version string) *Server {
	if limiter == nil {
		limiter = NewLimiter(DefaultRequestsPerMinute, DefaultBurst)
	}
	return &Server{
		manager: manager,
		reg:     reg,
		limiter: limiter,
		version: version,
	}
}

// Handler returns the HTTP handler with the API and the chat page
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	config := huma.DefaultConfig("SEO Agent API", s.version)
	config.Info.Description = "Chat with the SEO agent backed by Search Console and DataForSEO tools."
	api := humago.New(mux, config)
	api.UseMiddleware(s.limiter.Middleware(api))
	s.Register(api)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(indexHTML)
	})
	return mux
}

// Register adds the chat operations to the API
func (s *Server) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/api/sessions",
		Summary:       "Start a chat session",
		Tags:          []string{"Chat"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, _ *struct{}) (*createSessionOutput, error) {
		sess := s.manager.Create(ctx)
		return &createSessionOutput{Body: SessionInfo{ID: sess.ID(), CreatedAt: sess.CreatedAt()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-message",
		Method:      http.MethodPost,
		Path:        "/api/sessions/{id}/messages",
		Summary:     "Submit a query",
		Description: "Runs the agent and returns the assistant entry. Agent errors are returned as entries with error set.",
		Tags:        []string{"Chat"},
	}, func(ctx context.Context, in *submitInput) (*submitOutput, error) {
		sess, err := s.manager.Get(in.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		entry, err := sess.Submit(ctx, in.Body.Query)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &submitOutput{}
		out.Body.Entry = entry
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{id}/messages",
		Summary:     "Render the conversation",
		Tags:        []string{"Chat"},
	}, func(ctx context.Context, in *sessionInput) (*messagesOutput, error) {
		sess, err := s.manager.Get(in.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &messagesOutput{}
		out.Body.Entries = sess.Render()
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "reset-messages",
		Method:        http.MethodDelete,
		Path:          "/api/sessions/{id}/messages",
		Summary:       "Clear the conversation",
		Tags:          []string{"Chat"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, in *sessionInput) (*struct{}, error) {
		sess, err := s.manager.Get(in.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		if err = sess.Reset(ctx); err != nil {
			return nil, toHumaError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tools",
		Method:      http.MethodGet,
		Path:        "/api/tools",
		Summary:     "List the available tools",
		Tags:        []string{"Tools"},
	}, func(ctx context.Context, _ *struct{}) (*toolsOutput, error) {
		out := &toolsOutput{}
		out.Body.Tools = []ToolInfo{}
		if s.reg != nil {
			for _, d := range s.reg.ListTools() {
				desc, _, _ := strings.Cut(d.Description, "\n")
				out.Body.Tools = append(out.Body.Tools, ToolInfo{Name: d.Name, Description: desc})
			}
		}
		return out, nil
	})
}

func toHumaError(err error) error {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		return huma.Error404NotFound("session not found")
	case errors.Is(err, chat.ErrSessionBusy):
		return huma.Error409Conflict("a query is already running in this session")
	case errors.Is(err, chat.ErrEmptyQuery):
		return huma.Error422UnprocessableEntity("query is empty")
	}
	logger.KV(xlog.ERROR, "err", err.Error())
	return huma.Error500InternalServerError("internal error")
}
