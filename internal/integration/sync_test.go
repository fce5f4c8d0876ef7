package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/auth"
	"github.com/bilyardvmetro/posts-feed-sync/internal/feed"
	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
	"github.com/bilyardvmetro/posts-feed-sync/internal/pubsub"
	"github.com/bilyardvmetro/posts-feed-sync/internal/remote"
	"github.com/bilyardvmetro/posts-feed-sync/internal/strategy"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	client   *remote.Client
	posts    *feed.Mutator[*model.Post]
	comments *feed.Mutator[*model.Comment]
}

func newUser(addr, name string, pageSize int) *user {
	c := remote.NewClient(addr, remote.WithAuth(auth.StaticToken(name)), remote.WithLogger(zerolog.Nop()))
	pr, cr := remote.Posts(c), remote.Comments(c)
	return &user{
		client:   c,
		posts:    feed.NewMutator(feed.NewStore[*model.Post](pr, feed.WithName("posts"), feed.WithPageSize(pageSize)), pr),
		comments: feed.NewMutator(feed.NewStore[*model.Comment](cr, feed.WithName("comments"), feed.WithPageSize(pageSize)), cr),
	}
}

func seedPosts(t *testing.T, u *user, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p, err := remote.Posts(u.client).Create(context.Background(), "/posts", remote.NewPost{
			Title: fmt.Sprintf("post %d", i),
			Body:  "body",
		})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	return ids
}

func TestFeed_PaginatesRegularListing(t *testing.T) {
	ts := startTestServer(t, nil)
	alice := newUser(ts.addr, "alice", 2)
	seedPosts(t, alice, 5)

	ctx := context.Background()
	s := alice.posts.Store()
	out, err := s.LoadInitial(ctx, strategy.Target{Strategy: strategy.Regular})
	require.NoError(t, err)
	assert.Equal(t, feed.Loaded, out)

	for s.HasMore() {
		_, err := s.LoadNext(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, s.Len())
	st := s.Cursor()
	assert.Equal(t, 3, st.CurrentPage)
	assert.Equal(t, 3, st.TotalPages)

	out, err = s.LoadNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, feed.SkippedExhausted, out)
}

func TestFeed_PopularKeepsSessionAcrossPages(t *testing.T) {
	ts := startTestServer(t, nil)
	alice := newUser(ts.addr, "alice", 2)
	seedPosts(t, alice, 6)

	ctx := context.Background()
	s := alice.posts.Store()
	_, err := s.LoadInitial(ctx, strategy.Target{Strategy: strategy.Explore})
	require.NoError(t, err)
	session := s.Cursor().SessionToken
	require.NotEmpty(t, session)

	for s.HasMore() {
		_, err := s.LoadNext(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, session, s.Cursor().SessionToken)

	// одна и та же сессия не дублирует посты между страницами
	seen := map[string]bool{}
	for _, p := range s.Items() {
		assert.False(t, seen[p.ID], "duplicate %s", p.ID)
		seen[p.ID] = true
	}
	assert.Len(t, seen, 6)

	_, err = s.LoadInitial(ctx, strategy.Target{Strategy: strategy.Regular})
	require.NoError(t, err)
	assert.Empty(t, s.Cursor().SessionToken)
}

func TestFeed_OptimisticMutationsReachServer(t *testing.T) {
	ts := startTestServer(t, nil)
	alice := newUser(ts.addr, "alice", 10)
	bob := newUser(ts.addr, "bob", 10)
	ids := seedPosts(t, alice, 2)

	ctx := context.Background()
	s := bob.posts.Store()
	_, err := s.LoadInitial(ctx, strategy.Target{Strategy: strategy.Regular})
	require.NoError(t, err)

	p, err := bob.posts.Save(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, p.Saved)

	p, err = bob.posts.ToggleReaction(ctx, ids[0], "like")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Reactions.Counts["like"])
	assert.True(t, p.Reactions.Has("like"))

	saved := newUser(ts.addr, "bob", 10).posts.Store()
	_, err = saved.LoadInitial(ctx, strategy.Target{Strategy: strategy.Saved})
	require.NoError(t, err)
	require.Equal(t, 1, saved.Len())
	assert.Equal(t, ids[0], saved.Items()[0].ID)

	// alice видит реакцию bob в счётчике, но не как свою
	ap, err := alice.posts.Store().LoadDetail(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 1, ap.Reactions.Total)
	assert.False(t, ap.Reactions.Has("like"))
	assert.False(t, ap.Saved)
}

func TestFeed_FailedMutationRollsBack(t *testing.T) {
	ts := startTestServer(t, nil)
	alice := newUser(ts.addr, "alice", 10)
	bob := newUser(ts.addr, "bob", 10)
	ids := seedPosts(t, alice, 3)

	ctx := context.Background()
	s := bob.posts.Store()
	_, err := s.LoadInitial(ctx, strategy.Target{Strategy: strategy.Regular})
	require.NoError(t, err)

	// чужой пост удалить нельзя: элемент возвращается на место
	before := s.Items()
	err = bob.posts.Delete(ctx, ids[1])
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, remote.StatusCode(err))
	after := s.Items()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}

	_, err = bob.posts.Edit(ctx, ids[0], model.Edit{Body: "hijacked"})
	require.Error(t, err)
	p, ok := s.Get(ids[0])
	require.True(t, ok)
	assert.Equal(t, "body", p.Body)
}

func TestFeed_CommentsSoftDelete(t *testing.T) {
	ts := startTestServer(t, nil)
	alice := newUser(ts.addr, "alice", 10)
	ids := seedPosts(t, alice, 1)

	ctx := context.Background()
	cfg, _ := strategy.ConfigOf(strategy.Comments)
	c, err := remote.Comments(alice.client).Create(ctx, cfg.Path(ids[0]), remote.NewComment{Body: "first"})
	require.NoError(t, err)

	s := alice.comments.Store()
	_, err = s.LoadInitial(ctx, strategy.Resolve(zerolog.Nop(), "/p/"+ids[0]))
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	got, err := alice.comments.SoftDelete(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	_, err = s.LoadInitial(ctx, strategy.Target{Strategy: strategy.Comments, Scope: ids[0]})
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	assert.True(t, s.Items()[0].Deleted)

	_, err = alice.comments.Save(ctx, c.ID)
	assert.ErrorIs(t, err, feed.ErrUnsupported)
}

func TestFeed_FollowsLiveUpdates(t *testing.T) {
	ts := startTestServer(t, nil)
	alice := newUser(ts.addr, "alice", 10)
	bob := newUser(ts.addr, "bob", 10)
	ids := seedPosts(t, alice, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := bob.posts.Store()
	_, err := s.LoadInitial(ctx, strategy.Target{Strategy: strategy.Regular})
	require.NoError(t, err)
	_, err = bob.posts.Save(ctx, ids[0])
	require.NoError(t, err)

	bus := pubsub.NewMemoryBus()
	defer s.Follow(bus, model.TopicPosts)()

	watchDone := make(chan error, 1)
	go func() { watchDone <- bob.client.Watch(ctx, bus) }()
	time.Sleep(150 * time.Millisecond)

	_, err = alice.posts.Store().LoadDetail(ctx, ids[0])
	require.NoError(t, err)
	_, err = alice.posts.Edit(ctx, ids[0], model.Edit{Title: "renamed", Body: "new body"})
	require.NoError(t, err)
	_, err = alice.posts.Store().LoadDetail(ctx, ids[1])
	require.NoError(t, err)
	require.NoError(t, alice.posts.Delete(ctx, ids[1]))

	assert.Eventually(t, func() bool {
		p, ok := s.Get(ids[0])
		_, gone := s.Get(ids[1])
		return ok && p.Title == "renamed" && !gone
	}, 2*time.Second, 20*time.Millisecond)

	// правка автора не сбрасывает сохранение зрителя
	p, _ := s.Get(ids[0])
	assert.True(t, p.Saved)

	cancel()
	select {
	case err := <-watchDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
