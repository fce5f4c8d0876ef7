package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
)

// Resource is one REST collection (/posts or /comments) typed by its entity.
type Resource[T any] struct {
	c    *Client
	base string
}

func NewResource[T any](c *Client, base string) *Resource[T] {
	return &Resource[T]{c: c, base: base}
}

func Posts(c *Client) *Resource[*model.Post] { return NewResource[*model.Post](c, "/posts") }

func Comments(c *Client) *Resource[*model.Comment] {
	return NewResource[*model.Comment](c, "/comments")
}

func (r *Resource[T]) item(id string, suffix ...string) string {
	p := r.base + "/" + url.PathEscape(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// List fetches one page of path. The session token is read from the response header.
func (r *Resource[T]) List(ctx context.Context, path string, q model.PageQuery) (*model.Page[T], error) {
	var page model.Page[T]
	h, err := r.c.do(ctx, http.MethodGet, path, q, nil, &page)
	if err != nil {
		return nil, err
	}
	page.SessionID = h.Get(model.SessionHeader)
	return &page, nil
}

func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	_, err := r.c.do(ctx, http.MethodGet, r.item(id), nil, nil, &out)
	return out, err
}

func (r *Resource[T]) Save(ctx context.Context, id string) (T, error) {
	var out T
	_, err := r.c.do(ctx, http.MethodPost, r.item(id, "saved"), nil, nil, &out)
	return out, err
}

func (r *Resource[T]) Unsave(ctx context.Context, id string) (T, error) {
	var out T
	_, err := r.c.do(ctx, http.MethodDelete, r.item(id, "saved"), nil, nil, &out)
	return out, err
}

type reactionBody struct {
	ReactionID string `json:"reactionId"`
}

func (r *Resource[T]) React(ctx context.Context, id, kind string) (T, error) {
	var out T
	_, err := r.c.do(ctx, http.MethodPost, r.item(id, "reaction"), nil, reactionBody{ReactionID: kind}, &out)
	return out, err
}

func (r *Resource[T]) Edit(ctx context.Context, id string, e model.Edit) (T, error) {
	var out T
	_, err := r.c.do(ctx, http.MethodPut, r.item(id), nil, e, &out)
	return out, err
}

func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	_, err := r.c.do(ctx, http.MethodDelete, r.item(id), nil, nil, nil)
	return err
}

type deletedBody struct {
	Deleted bool `json:"deleted"`
}

func (r *Resource[T]) MarkDeleted(ctx context.Context, id string) error {
	_, err := r.c.do(ctx, http.MethodPatch, r.item(id), nil, deletedBody{Deleted: true}, nil)
	return err
}

// Create posts a new entity to path (a collection or a nested collection).
func (r *Resource[T]) Create(ctx context.Context, path string, in any) (T, error) {
	var out T
	_, err := r.c.do(ctx, http.MethodPost, path, nil, in, &out)
	return out, err
}

// NewPost is the body of POST /posts and POST /communities/{id}/posts.
type NewPost struct {
	CommunityID    string `json:"communityId,omitempty"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	CommentsClosed bool   `json:"commentsClosed,omitempty"`
}

// NewComment is the body of POST /posts/{id}/comments.
type NewComment struct {
	ParentID *string `json:"parentId,omitempty"`
	Body     string  `json:"body"`
}
