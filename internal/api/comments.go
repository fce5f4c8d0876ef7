package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/model"

	"github.com/google/uuid"
)

type commentsMeta struct {
	PostID         string `json:"postId"`
	CommentsClosed bool   `json:"commentsClosed"`
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, size, err := paging(r)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	postID := r.PathValue("id")
	post, err := s.Store.GetPost(ctx, postID, "")
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}

	items, total, err := s.Store.ListComments(ctx, postID, currentUserName(ctx), offset(page, size), size)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}

	out := model.Page[*model.Comment]{
		Data:       append([]*model.Comment{}, items...),
		TotalCount: total,
		TotalPages: model.TotalPages(total, size),
	}
	out.Metadata, _ = json.Marshal(commentsMeta{PostID: postID, CommentsClosed: post.CommentsClosed})
	writeJSON(w, http.StatusOK, out)
}

type createCommentRequest struct {
	ParentID *string `json:"parentId"`
	Body     string  `json:"body"`
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	author, err := requireUser(ctx)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	var req createCommentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	body, err := validateComment(req.Body)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}

	postID := r.PathValue("id")
	post, err := s.loadPost(ctx, postID, "")
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if post.CommentsClosed {
		writeError(w, r, s.Logger, fmt.Errorf("%w: comments are closed for this post", errForbidden))
		return
	}

	comment := &model.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		ParentID:  req.ParentID,
		Body:      body,
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.CreateComment(ctx, comment); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}

	if loaders := loadersFrom(ctx); loaders != nil {
		loaders.commentCounts.Prime(postID, post.CommentsCount+1)
	}
	s.publish(ctx, model.EventCommentUpdated, comment.ID, comment)
	s.publishPost(ctx, postID)
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) getComment(w http.ResponseWriter, r *http.Request) {
	c, err := s.Store.GetComment(r.Context(), r.PathValue("id"), currentUserName(r.Context()))
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ownComment loads the comment and checks the viewer wrote it.
func (s *Server) ownComment(ctx context.Context, id string) (*model.Comment, string, error) {
	viewer, err := requireUser(ctx)
	if err != nil {
		return nil, "", err
	}
	c, err := s.Store.GetComment(ctx, id, viewer)
	if err != nil {
		return nil, "", err
	}
	if c.Author != viewer {
		return nil, "", fmt.Errorf("%w: only the author can change this comment", errForbidden)
	}
	return c, viewer, nil
}

func (s *Server) editComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	c, viewer, err := s.ownComment(ctx, id)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if c.Deleted {
		writeError(w, r, s.Logger, badRequest("deleted comment cannot be edited"))
		return
	}
	var req model.Edit
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	body, err := validateComment(req.Body)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if err := s.Store.UpdateComment(ctx, id, body); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	s.respondComment(w, r, id, viewer)
}

type patchCommentRequest struct {
	Deleted bool `json:"deleted"`
}

func (s *Server) patchComment(w http.ResponseWriter, r *http.Request) {
	var req patchCommentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if !req.Deleted {
		writeError(w, r, s.Logger, badRequest("only {\"deleted\": true} is supported"))
		return
	}
	s.deleteComment(w, r)
}

// deleteComment is a soft delete: the comment keeps its place in the thread.
func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	_, viewer, err := s.ownComment(ctx, id)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if err := s.Store.MarkCommentDeleted(ctx, id); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	s.respondComment(w, r, id, viewer)
}

func (s *Server) reactComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := requireUser(ctx)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	var req reactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	kind, err := validateReaction(req.ReactionID)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	id := r.PathValue("id")
	if _, err := s.Store.GetComment(ctx, id, ""); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if err := s.Store.ToggleReaction(ctx, id, viewer, kind); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	s.respondComment(w, r, id, viewer)
}

func (s *Server) respondComment(w http.ResponseWriter, r *http.Request, id, viewer string) {
	ctx := r.Context()
	if shared, err := s.Store.GetComment(ctx, id, ""); err == nil {
		s.publish(ctx, model.EventCommentUpdated, id, shared)
	}
	c, err := s.Store.GetComment(ctx, id, viewer)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
