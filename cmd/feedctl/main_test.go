package main

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/api"
	"github.com/bilyardvmetro/posts-feed-sync/internal/notify"
	"github.com/bilyardvmetro/posts-feed-sync/internal/pubsub"
	"github.com/bilyardvmetro/posts-feed-sync/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type cliEnv struct {
	t     *testing.T
	url   string
	state string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	srv := api.New(store.NewMemStore(), pubsub.NewMemoryBus(), zerolog.Nop())
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.CloseStreams()
		hs.Close()
	})
	return &cliEnv{t: t, url: hs.URL, state: filepath.Join(t.TempDir(), "state.db")}
}

// run executes one feedctl command line and returns its stdout.
func (c *cliEnv) run(args ...string) (string, error) {
	return c.runWith(c.state, args...)
}

func (c *cliEnv) runWith(state string, args ...string) (string, error) {
	out := &syncBuffer{}
	full := append([]string{"feedctl", "--api-url", c.url, "--state", state, "--log-level", "error"}, args...)
	err := newApp(out, &syncBuffer{}).Run(full)
	return out.String(), err
}

func (c *cliEnv) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "feedctl %s", strings.Join(args, " "))
	return out
}

func firstField(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

func TestCLI_PostSaveReact(t *testing.T) {
	c := newCLIEnv(t)

	assert.Contains(t, c.mustRun("login", "alice"), "logged in as alice")
	out := c.mustRun("post", "--title", "Hello", "--body", "first post")
	id := firstField(out)
	require.NotEmpty(t, id)
	assert.Contains(t, out, "by alice")

	out = c.mustRun("feed")
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "-- page 1/1, 1 total")

	out = c.mustRun("save", id)
	assert.Contains(t, out, "[saved]")

	out = c.mustRun("react", id, "like")
	assert.Contains(t, out, "like* 1")

	out = c.mustRun("feed", "saved")
	assert.Contains(t, out, id)

	out = c.mustRun("unsave", id)
	assert.NotContains(t, out, "[saved]")

	out = c.mustRun("show", id)
	assert.Contains(t, out, "first post")
}

func TestCLI_CommentsAndSoftDelete(t *testing.T) {
	c := newCLIEnv(t)
	c.mustRun("login", "alice")
	postID := firstField(c.mustRun("post", "--title", "T", "--body", "B"))

	commentID := firstField(c.mustRun("comment", postID, "nice"))
	require.NotEmpty(t, commentID)
	reply := c.mustRun("comment", "--parent", commentID, postID, "reply")
	assert.True(t, strings.HasPrefix(reply, "  "), "reply is indented: %q", reply)

	out := c.mustRun("comments", postID)
	assert.Contains(t, out, "alice: nice")
	assert.Contains(t, out, "alice: reply")

	out = c.mustRun("comment-react", commentID, "fire")
	assert.Contains(t, out, "fire* 1")

	out = c.mustRun("comment-delete", commentID)
	assert.Contains(t, out, "[deleted]")

	out = c.mustRun("feed", "/p/"+postID)
	assert.Contains(t, out, "[deleted]")
	assert.Contains(t, out, "alice: reply")
}

func TestCLI_PermissionsAndLogout(t *testing.T) {
	c := newCLIEnv(t)
	c.mustRun("login", "alice")
	id := firstField(c.mustRun("post", "--title", "T", "--body", "B"))

	c.mustRun("login", "bob")
	_, err := c.run("delete", id)
	require.Error(t, err)
	assert.Equal(t, notify.CodeForbidden, notify.Translate(err).Code)

	assert.Contains(t, c.mustRun("logout"), "logged out")
	_, err = c.run("save", id)
	require.Error(t, err)
	assert.Equal(t, notify.CodeUnauthorized, notify.Translate(err).Code)

	c.mustRun("login", "alice")
	assert.Contains(t, c.mustRun("delete", id), "deleted "+id)
	assert.Contains(t, c.mustRun("feed"), "0 total")
}

func TestCLI_Config(t *testing.T) {
	c := newCLIEnv(t)

	out := c.mustRun("config", "show")
	assert.Contains(t, out, "page-size: 10")
	assert.Contains(t, out, "(guest)")

	c.mustRun("config", "set", "page-size", "1")
	c.mustRun("config", "set", "strategy", "popular")
	out = c.mustRun("config", "show")
	assert.Contains(t, out, "page-size: 1")
	assert.Contains(t, out, "strategy: popular")

	_, err := c.run("config", "set", "strategy", "community")
	assert.Error(t, err)
	_, err = c.run("config", "set", "strategy", "nope")
	assert.Error(t, err)
	_, err = c.run("config", "set", "color", "red")
	assert.Error(t, err)

	c.mustRun("login", "alice")
	c.mustRun("post", "--title", "one", "--body", "b")
	c.mustRun("post", "--title", "two", "--body", "b")

	// popular по умолчанию, страница из одного поста и токен сессии
	out = c.mustRun("feed")
	assert.Contains(t, out, "popular")
	assert.Contains(t, out, "-- page 1/2, 2 total, session ")

	out = c.mustRun("feed", "--pages", "2")
	assert.Contains(t, out, "-- page 2/2")
}

func TestCLI_Watch(t *testing.T) {
	c := newCLIEnv(t)
	c.mustRun("login", "alice")
	id := firstField(c.mustRun("post", "--title", "before", "--body", "b"))

	// у наблюдателя свой файл состояния: bolt держит блокировку, пока команда работает
	watchState := filepath.Join(t.TempDir(), "watch.db")
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		args := []string{"feedctl", "--api-url", c.url, "--state", watchState, "--log-level", "error", "watch", "--for", "1500ms"}
		done <- newApp(out, &syncBuffer{}).Run(args)
	}()

	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "watching regular") },
		2*time.Second, 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	c.mustRun("edit", "--title", "after", "--body", "b2", id)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Contains(t, out.String(), "after")
}
