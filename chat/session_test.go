package chat_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/chat"
	"github.com/effective-security/seoagent/chatmodel"
	"github.com/effective-security/seoagent/mocks/mockassistants"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/store"
	"github.com/effective-security/seoagent/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newAgent(t *testing.T) *mockassistants.MockIAgent {
	ctrl := gomock.NewController(t)
	agent := mockassistants.NewMockIAgent(ctrl)
	agent.EXPECT().Name().Return("SEO Agent").AnyTimes()
	return agent
}

func TestSession_Submit(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)
	sess := chat.NewSession("", agent, chat.WithSurface(chat.SurfaceTerminal))
	require.NotEmpty(t, sess.ID())
	assert.False(t, sess.CreatedAt().IsZero())

	agent.EXPECT().Run(gomock.Any(), "What is SEO?").
		DoAndReturn(func(ctx context.Context, _ string) (string, error) {
			assert.Equal(t, sess.ID(), chatmodel.GetChatID(ctx))
			return "SEO is search engine optimization.", nil
		})

	entry, err := sess.Submit(ctx, "  What is SEO?  ")
	require.NoError(t, err)
	assert.Equal(t, chatmodel.RoleAssistant, entry.Role)
	assert.Equal(t, "SEO is search engine optimization.", entry.Text)
	assert.False(t, entry.Error)

	entries := sess.Render()
	require.Len(t, entries, 2)
	assert.Equal(t, chatmodel.RoleUser, entries[0].Role)
	assert.Equal(t, "What is SEO?", entries[0].Text)
	assert.Equal(t, chatmodel.RoleAssistant, entries[1].Role)
	assert.Equal(t, "user: What is SEO?\n\nassistant: SEO is search engine optimization.\n", sess.String())

	t.Run("error entry", func(t *testing.T) {
		agent.EXPECT().Run(gomock.Any(), "keywords of example.com").
			Return("", errors.New("failed to generate content from LLM: 401 unauthorized"))

		entry, err := sess.Submit(ctx, "keywords of example.com")
		require.NoError(t, err)
		assert.True(t, entry.Error)
		assert.Equal(t, "Error: failed to generate content from LLM: 401 unauthorized", entry.Text)

		entries := sess.Render()
		require.Len(t, entries, 4)
		assert.Equal(t, chatmodel.RoleUser, entries[2].Role)
		assert.Equal(t, entry, entries[3])
	})

	t.Run("empty", func(t *testing.T) {
		_, err := sess.Submit(ctx, " \n ")
		assert.True(t, errors.Is(err, chat.ErrEmptyQuery))
		assert.Equal(t, 4, sess.Len())
	})
}

func TestSession_Busy(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)
	sess := chat.NewSession("chat1", agent)

	started := make(chan struct{})
	release := make(chan struct{})
	agent.EXPECT().Run(gomock.Any(), "backlinks of example.com").
		DoAndReturn(func(context.Context, string) (string, error) {
			close(started)
			<-release
			return "120 referring domains", nil
		})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := sess.Submit(ctx, "backlinks of example.com")
		assert.NoError(t, err)
	}()

	<-started
	_, err := sess.Submit(ctx, "What is SEO?")
	assert.True(t, errors.Is(err, chat.ErrSessionBusy))
	assert.True(t, errors.Is(sess.Reset(ctx), chat.ErrSessionBusy))
	assert.Equal(t, 1, sess.Len())

	close(release)
	wg.Wait()
	assert.Equal(t, 2, sess.Len())
}

func TestSession_Reset(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)
	ms := store.NewMemoryStore(0)
	sess := chat.NewSession("chat2", agent, chat.WithStore(ms))

	chatCtx := chatmodel.WithChatContext(ctx, chatmodel.NewChatContext("chat2", nil))
	require.NoError(t, ms.Add(chatCtx,
		llms.MessageFromTextParts(llms.RoleHuman, "What is SEO?"),
		llms.MessageFromTextParts(llms.RoleAI, "Search engine optimization."),
	))

	agent.EXPECT().Run(gomock.Any(), gomock.Any()).Return("ok", nil)
	_, err := sess.Submit(ctx, "What is SEO?")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Len())

	require.NoError(t, sess.Reset(ctx))
	assert.Equal(t, 0, sess.Len())
	assert.Empty(t, sess.Render())
	assert.Empty(t, ms.Messages(chatCtx))
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)
	m := chat.NewManager(agent, store.NewMemoryStore(0), chat.SurfaceWeb, 2)

	s1 := m.Create(ctx)
	s2 := m.Create(ctx)
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Equal(t, 2, m.Len())

	got, err := m.Get(s1.ID())
	require.NoError(t, err)
	assert.Same(t, s1, got)

	// s1 is evicted
	s3 := m.Create(ctx)
	assert.Equal(t, 2, m.Len())
	_, err = m.Get(s1.ID())
	assert.True(t, errors.Is(err, chat.ErrSessionNotFound))

	require.NoError(t, m.Delete(ctx, s2.ID()))
	assert.Equal(t, 1, m.Len())
	assert.True(t, errors.Is(m.Delete(ctx, s2.ID()), chat.ErrSessionNotFound))

	_, err = m.Get(s3.ID())
	assert.NoError(t, err)
}

func TestManager_EvictBusy(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)
	ms := store.NewMemoryStore(0)
	m := chat.NewManager(agent, ms, chat.SurfaceWeb, 1)

	s1 := m.Create(ctx)
	chatCtx := chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(s1.ID(), nil))

	started := make(chan struct{})
	release := make(chan struct{})
	agent.EXPECT().Run(gomock.Any(), "top queries of example.com").
		DoAndReturn(func(ctx context.Context, query string) (string, error) {
			close(started)
			<-release
			err := ms.Add(ctx,
				llms.MessageFromTextParts(llms.RoleHuman, query),
				llms.MessageFromTextParts(llms.RoleAI, "seo audit"),
			)
			return "seo audit", err
		})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s1.Submit(ctx, "top queries of example.com")
		assert.NoError(t, err)
	}()

	<-started
	s2 := m.Create(ctx)
	assert.Equal(t, 1, m.Len())
	_, err := m.Get(s1.ID())
	assert.True(t, errors.Is(err, chat.ErrSessionNotFound))

	close(release)
	wg.Wait()

	assert.Eventually(t, func() bool {
		return s1.Len() == 0 && len(ms.Messages(chatCtx)) == 0
	}, time.Second, 10*time.Millisecond)

	_, err = m.Get(s2.ID())
	assert.NoError(t, err)
}

type siteArgs struct {
	SiteURL string `json:"site_url"`
}

func TestTerminal(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)
	sess := chat.NewSession("chat3", agent)

	sites := tools.NewFunc("gsc_list_sites", "Lists Search Console properties\nwith permission level",
		func(context.Context, *siteArgs) (*tools.Result, error) { return nil, nil })
	reg, err := tools.NewRegistry([]tools.ITool{sites})
	require.NoError(t, err)

	gomock.InOrder(
		agent.EXPECT().Run(gomock.Any(), "What is SEO?").Return("SEO is search engine optimization.", nil),
		agent.EXPECT().Run(gomock.Any(), "top queries").Return("", errors.New("GSC_CREDENTIALS is not set")),
	)

	in := strings.NewReader("/tools\n\nWhat is SEO?\ntop queries\n/reset\n/quit\nignored\n")
	var out bytes.Buffer
	require.NoError(t, chat.NewTerminal(sess, reg, in, &out).Run(ctx))

	res := out.String()
	assert.Contains(t, res, "/reset  clear the conversation")
	assert.Contains(t, res, "  gsc_list_sites: Lists Search Console properties\n")
	assert.Contains(t, res, "\nSEO is search engine optimization.\n\n")
	assert.Contains(t, res, "\nError: GSC_CREDENTIALS is not set\n\n")
	assert.Contains(t, res, "Conversation cleared.\n")
	assert.Equal(t, 0, sess.Len())

	t.Run("eof", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, chat.NewTerminal(sess, nil, strings.NewReader("/tools\n"), &out).Run(ctx))
		assert.Contains(t, out.String(), "No tools are configured.")
	})
}
