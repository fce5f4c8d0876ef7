package feed_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
)

var errBoom = errors.New("boom")

// fakeRemote serves whatever its function fields return.
type fakeRemote[T any] struct {
	list        func(ctx context.Context, path string, q model.PageQuery) (*model.Page[T], error)
	get         func(ctx context.Context, id string) (T, error)
	save        func(ctx context.Context, id string) (T, error)
	unsave      func(ctx context.Context, id string) (T, error)
	react       func(ctx context.Context, id, kind string) (T, error)
	edit        func(ctx context.Context, id string, e model.Edit) (T, error)
	del         func(ctx context.Context, id string) error
	markDeleted func(ctx context.Context, id string) error
}

func (f *fakeRemote[T]) List(ctx context.Context, path string, q model.PageQuery) (*model.Page[T], error) {
	if f.list == nil {
		return nil, errors.New("list not stubbed")
	}
	return f.list(ctx, path, q)
}

func (f *fakeRemote[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if f.get == nil {
		return zero, errors.New("get not stubbed")
	}
	return f.get(ctx, id)
}

func (f *fakeRemote[T]) Save(ctx context.Context, id string) (T, error) {
	var zero T
	if f.save == nil {
		return zero, errors.New("save not stubbed")
	}
	return f.save(ctx, id)
}

func (f *fakeRemote[T]) Unsave(ctx context.Context, id string) (T, error) {
	var zero T
	if f.unsave == nil {
		return zero, errors.New("unsave not stubbed")
	}
	return f.unsave(ctx, id)
}

func (f *fakeRemote[T]) React(ctx context.Context, id, kind string) (T, error) {
	var zero T
	if f.react == nil {
		return zero, errors.New("react not stubbed")
	}
	return f.react(ctx, id, kind)
}

func (f *fakeRemote[T]) Edit(ctx context.Context, id string, e model.Edit) (T, error) {
	var zero T
	if f.edit == nil {
		return zero, errors.New("edit not stubbed")
	}
	return f.edit(ctx, id, e)
}

func (f *fakeRemote[T]) Delete(ctx context.Context, id string) error {
	if f.del == nil {
		return errors.New("delete not stubbed")
	}
	return f.del(ctx, id)
}

func (f *fakeRemote[T]) MarkDeleted(ctx context.Context, id string) error {
	if f.markDeleted == nil {
		return errors.New("mark deleted not stubbed")
	}
	return f.markDeleted(ctx, id)
}

func mkPost(id string) *model.Post {
	return &model.Post{ID: id, Title: "title " + id, Author: "tester", CreatedAt: time.Now().UTC()}
}

// pagedPosts splits n posts p0..p(n-1) into pages of size.
func pagedPosts(n, size int) func(context.Context, string, model.PageQuery) (*model.Page[*model.Post], error) {
	return func(_ context.Context, _ string, q model.PageQuery) (*model.Page[*model.Post], error) {
		start := (q.Page - 1) * size
		end := start + size
		if end > n {
			end = n
		}
		page := &model.Page[*model.Post]{TotalCount: n, TotalPages: model.TotalPages(n, size)}
		for i := start; i < end; i++ {
			page.Data = append(page.Data, mkPost(fmt.Sprintf("p%d", i)))
		}
		return page, nil
	}
}

func ids[T model.Entity[T]](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.EntityID())
	}
	return out
}
