package feed_test

import (
	"context"
	"testing"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/feed"
	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
	"github.com/bilyardvmetro/posts-feed-sync/internal/pubsub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_FollowAppliesBusEvents(t *testing.T) {
	ctx := context.Background()
	s := feed.NewStore[*model.Post](&fakeRemote[*model.Post]{list: pagedPosts(3, 10)})
	_, err := s.LoadInitial(ctx, regular)
	require.NoError(t, err)

	bus := pubsub.NewMemoryBus()
	unsub := s.Follow(bus, model.TopicPosts)

	ev, err := model.NewEvent(model.EventPostDeleted, "p1", nil)
	require.NoError(t, err)
	bus.Publish(model.TopicPosts, ev)

	require.Eventually(t, func() bool { return s.Len() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"p0", "p2"}, ids(s.Items()))

	unsub()
	ev, err = model.NewEvent(model.EventPostDeleted, "p0", nil)
	require.NoError(t, err)
	bus.Publish(model.TopicPosts, ev)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, s.Len())
}

func TestStore_FollowKeepsLastOfOrderedUpdates(t *testing.T) {
	ctx := context.Background()
	s := feed.NewStore[*model.Post](&fakeRemote[*model.Post]{list: pagedPosts(1, 10)})
	_, err := s.LoadInitial(ctx, regular)
	require.NoError(t, err)

	bus := pubsub.NewMemoryBus()
	defer s.Follow(bus, model.TopicPosts)()

	const n = 200
	for i := 1; i <= n; i++ {
		ev, err := model.NewEvent(model.EventPostUpdated, "p0", &model.Post{ID: "p0", Title: "title p0", CommentsCount: i})
		require.NoError(t, err)
		bus.Publish(model.TopicPosts, ev)
	}

	require.Eventually(t, func() bool {
		p, ok := s.Get("p0")
		return ok && p.CommentsCount == n
	}, 2*time.Second, 10*time.Millisecond)
	// ничего не прилетает после последнего события
	time.Sleep(50 * time.Millisecond)
	p, _ := s.Get("p0")
	assert.Equal(t, n, p.CommentsCount)
}
