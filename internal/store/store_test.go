package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
	"github.com/bilyardvmetro/posts-feed-sync/internal/store"

	"github.com/google/uuid"
)

// stores returns the in-memory store and, when TEST_POSTGRES_DSN is set, a
// migrated Postgres store.
func stores(t *testing.T) map[string]store.Store {
	t.Helper()
	out := map[string]store.Store{"memory": store.NewMemStore()}
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		pg, err := store.NewPostgres(dsn)
		if err != nil {
			t.Fatalf("postgres: %v", err)
		}
		if err := pg.Migrate(context.Background()); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		t.Cleanup(func() { _ = pg.Close() })
		out["postgres"] = pg
	}
	return out
}

func mkPost(t *testing.T, st store.Store, community string, at time.Time) *model.Post {
	t.Helper()
	p := &model.Post{ID: uuid.NewString(), CommunityID: community, Title: "t", Body: "b", Author: "author", CreatedAt: at}
	if err := st.CreatePost(context.Background(), p); err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

func mkComment(t *testing.T, st store.Store, postID string, parent *string, at time.Time) *model.Comment {
	t.Helper()
	c := &model.Comment{ID: uuid.NewString(), PostID: postID, ParentID: parent, Body: "c", Author: "u", CreatedAt: at}
	if err := st.CreateComment(context.Background(), c); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	return c
}

func TestStore_CreateAndCountComments(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC()
			p := mkPost(t, st, "", now)
			other := mkPost(t, st, "", now)

			c1 := mkComment(t, st, p.ID, nil, now)
			c2 := mkComment(t, st, p.ID, &c1.ID, now.Add(time.Millisecond))
			if c2.Depth != 1 {
				t.Fatalf("expected depth 1 got %d", c2.Depth)
			}

			counts, err := st.BatchCommentsCount(ctx, []string{p.ID, other.ID})
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if counts[p.ID] != 2 || counts[other.ID] != 0 {
				t.Fatalf("unexpected counts %v", counts)
			}

			bad := &model.Comment{ID: uuid.NewString(), PostID: uuid.NewString(), Body: "x", Author: "u", CreatedAt: now}
			if err := st.CreateComment(ctx, bad); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("expected ErrNotFound for missing post, got %v", err)
			}
		})
	}
}

func TestStore_ListComments_Pagination(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC().Add(-time.Second)
			p := mkPost(t, st, "", base)

			var want []string
			for i := 0; i < 3; i++ {
				c := mkComment(t, st, p.ID, nil, base.Add(time.Duration(i)*time.Millisecond))
				want = append(want, c.ID)
			}

			page1, total, err := st.ListComments(ctx, p.ID, "", 0, 2)
			if err != nil {
				t.Fatalf("list comments: %v", err)
			}
			if total != 3 || len(page1) != 2 {
				t.Fatalf("expected 2 of 3, got %d of %d", len(page1), total)
			}

			page2, _, err := st.ListComments(ctx, p.ID, "", 2, 2)
			if err != nil {
				t.Fatalf("list2: %v", err)
			}
			if len(page2) != 1 || page2[0].ID != want[2] {
				t.Fatalf("unexpected second page %+v", page2)
			}
			if page1[0].ID != want[0] || page1[1].ID != want[1] {
				t.Fatal("comments must be oldest first")
			}
		})
	}
}

func TestStore_ReactionsAndSavesArePerViewer(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := mkPost(t, st, "", time.Now().UTC())

			for _, u := range []string{"alice", "bob"} {
				if err := st.ToggleReaction(ctx, p.ID, u, "like"); err != nil {
					t.Fatalf("react: %v", err)
				}
			}
			if err := st.SetSaved(ctx, p.ID, "alice", true); err != nil {
				t.Fatalf("save: %v", err)
			}
			// повторное сохранение ничего не ломает
			if err := st.SetSaved(ctx, p.ID, "alice", true); err != nil {
				t.Fatalf("save twice: %v", err)
			}

			alice, err := st.GetPost(ctx, p.ID, "alice")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if !alice.Saved || alice.Reactions.Total != 2 || !alice.Reactions.Has("like") {
				t.Fatalf("unexpected alice view %+v", alice)
			}

			guest, _ := st.GetPost(ctx, p.ID, "")
			if guest.Saved || guest.Reactions.Has("like") || guest.Reactions.Total != 2 {
				t.Fatalf("unexpected guest view %+v", guest)
			}

			// второй toggle снимает реакцию
			if err := st.ToggleReaction(ctx, p.ID, "alice", "like"); err != nil {
				t.Fatalf("unreact: %v", err)
			}
			alice, _ = st.GetPost(ctx, p.ID, "alice")
			if alice.Reactions.Has("like") || alice.Reactions.Total != 1 || !alice.Reactions.Valid() {
				t.Fatalf("unexpected after toggle %+v", alice.Reactions)
			}

			if err := st.SetSaved(ctx, uuid.NewString(), "alice", true); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_ListPostsOrders(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			community := uuid.NewString()
			base := time.Now().UTC().Add(-time.Hour)
			var posts []*model.Post
			for i := 0; i < 4; i++ {
				posts = append(posts, mkPost(t, st, community, base.Add(time.Duration(i)*time.Minute)))
			}
			mkPost(t, st, uuid.NewString(), base)

			got, total, err := st.ListPosts(ctx, store.PostQuery{CommunityID: community, Order: store.OrderNewest, Limit: 2})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != 4 || len(got) != 2 || got[0].ID != posts[3].ID || got[1].ID != posts[2].ID {
				t.Fatalf("newest order broken: total=%d got=%v", total, ids(got))
			}

			_ = st.ToggleReaction(ctx, posts[0].ID, "a", "like")
			_ = st.ToggleReaction(ctx, posts[0].ID, "b", "like")
			_ = st.ToggleReaction(ctx, posts[1].ID, "a", "fire")
			got, _, _ = st.ListPosts(ctx, store.PostQuery{CommunityID: community, Order: store.OrderPopular})
			if got[0].ID != posts[0].ID || got[1].ID != posts[1].ID {
				t.Fatalf("popular order broken: %v", ids(got))
			}

			first, _, _ := st.ListPosts(ctx, store.PostQuery{CommunityID: community, Order: store.OrderShuffled, Seed: "s1"})
			again, _, _ := st.ListPosts(ctx, store.PostQuery{CommunityID: community, Order: store.OrderShuffled, Seed: "s1"})
			if fmt.Sprint(ids(first)) != fmt.Sprint(ids(again)) {
				t.Fatal("same seed must give the same order")
			}

			_ = st.SetSaved(ctx, posts[1].ID, "reader", true)
			time.Sleep(2 * time.Millisecond)
			_ = st.SetSaved(ctx, posts[2].ID, "reader", true)
			saved, total, _ := st.ListPosts(ctx, store.PostQuery{SavedBy: "reader", Viewer: "reader"})
			if total != 2 || saved[0].ID != posts[2].ID || !saved[0].Saved {
				t.Fatalf("saved listing broken: total=%d %v", total, ids(saved))
			}

			empty, total, _ := st.ListPosts(ctx, store.PostQuery{CommunityID: community, Offset: 10, Limit: 2})
			if len(empty) != 0 || total != 4 {
				t.Fatalf("window past the end: %d items, total %d", len(empty), total)
			}
		})
	}
}

func TestStore_EditDeleteAndSoftDelete(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC()
			p := mkPost(t, st, "", now)
			c := mkComment(t, st, p.ID, nil, now)

			if err := st.UpdatePost(ctx, p.ID, model.Edit{Body: "new body"}); err != nil {
				t.Fatalf("update: %v", err)
			}
			got, _ := st.GetPost(ctx, p.ID, "")
			if got.Title != "t" || got.Body != "new body" {
				t.Fatalf("empty title must keep the old one: %+v", got)
			}

			if err := st.MarkCommentDeleted(ctx, c.ID); err != nil {
				t.Fatalf("soft delete: %v", err)
			}
			cm, _ := st.GetComment(ctx, c.ID, "")
			if !cm.Deleted || cm.Body != "" {
				t.Fatalf("comment not soft deleted: %+v", cm)
			}

			if err := st.DeletePost(ctx, p.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := st.GetPost(ctx, p.ID, ""); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if _, err := st.GetComment(ctx, c.ID, ""); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("comments must go with the post, got %v", err)
			}
			if err := st.DeletePost(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("second delete: %v", err)
			}
		})
	}
}

func ids(ps []*model.Post) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}
