package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
	"github.com/bilyardvmetro/posts-feed-sync/internal/store"

	"github.com/google/uuid"
)

type listKind int

const (
	listRegular listKind = iota
	listPopular
	listExplore
	listSaved
	listCommunity
)

// usesSession: popular/explore отдают sessionId. Seed влияет только на порядок explore,
// popular пересчитывается на каждый запрос по текущим реакциям.
func (k listKind) usesSession() bool { return k == listPopular || k == listExplore }

type communityMeta struct {
	CommunityID string `json:"communityId"`
	PostCount   int    `json:"postCount"`
}

func (s *Server) listPosts(kind listKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		page, size, err := paging(r)
		if err != nil {
			writeError(w, r, s.Logger, err)
			return
		}

		q := store.PostQuery{
			Viewer: currentUserName(ctx),
			Order:  store.OrderNewest,
			Offset: offset(page, size),
			Limit:  size,
		}

		if kind.usesSession() {
			session := r.URL.Query().Get("sessionId")
			if session == "" {
				session = r.Header.Get(model.SessionHeader)
			}
			if session == "" {
				session = uuid.NewString()
			}
			w.Header().Set(model.SessionHeader, session)
			q.Seed = session
		}

		switch kind {
		case listPopular:
			q.Order = store.OrderPopular
		case listExplore:
			q.Order = store.OrderShuffled
		case listSaved:
			viewer, err := requireUser(ctx)
			if err != nil {
				writeError(w, r, s.Logger, err)
				return
			}
			q.SavedBy = viewer
		case listCommunity:
			q.CommunityID = r.PathValue("id")
		}

		posts, total, err := s.Store.ListPosts(ctx, q)
		if err != nil {
			writeError(w, r, s.Logger, err)
			return
		}
		if err := s.fillCommentCounts(ctx, posts); err != nil {
			writeError(w, r, s.Logger, err)
			return
		}

		out := model.Page[*model.Post]{
			Data:       append([]*model.Post{}, posts...),
			TotalCount: total,
			TotalPages: model.TotalPages(total, size),
		}
		if kind == listCommunity {
			out.Metadata, _ = json.Marshal(communityMeta{CommunityID: q.CommunityID, PostCount: total})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// fillCommentCounts resolves all counts of a listing with one batch query
// through the request loader.
func (s *Server) fillCommentCounts(ctx context.Context, posts []*model.Post) error {
	batch := s.Store.BatchCommentsCount
	if loaders := loadersFrom(ctx); loaders != nil {
		batch = loaders.commentCounts.LoadMany
	}
	counts, err := batch(ctx, postIDs(posts))
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.CommentsCount = counts[p.ID]
	}
	return nil
}

func postIDs(posts []*model.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

// loadPost reads a post as viewer sees it, comment count included.
func (s *Server) loadPost(ctx context.Context, id, viewer string) (*model.Post, error) {
	p, err := s.Store.GetPost(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if loaders := loadersFrom(ctx); loaders != nil {
		// publishPost и ответ в одном запросе читают счётчик один раз
		p.CommentsCount, err = loaders.commentCounts.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	if err := s.fillCommentCounts(ctx, []*model.Post{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	p, err := s.loadPost(r.Context(), r.PathValue("id"), currentUserName(r.Context()))
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type createPostRequest struct {
	CommunityID    string `json:"communityId"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	CommentsClosed bool   `json:"commentsClosed"`
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	author, err := requireUser(ctx)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	var req createPostRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	title, body, err := validatePost(req.Title, req.Body, true)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	community := strings.TrimSpace(req.CommunityID)
	if id := r.PathValue("id"); id != "" {
		community = id
	}

	post := &model.Post{
		ID:             uuid.NewString(),
		CommunityID:    community,
		Title:          title,
		Body:           body,
		Author:         author,
		CommentsClosed: req.CommentsClosed,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.Store.CreatePost(ctx, post); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if loaders := loadersFrom(ctx); loaders != nil {
		loaders.commentCounts.Prime(post.ID, 0)
	}
	s.publishPost(ctx, post.ID)
	writeJSON(w, http.StatusCreated, post)
}

// ownPost loads the post and checks the viewer wrote it.
func (s *Server) ownPost(ctx context.Context, id string) (string, error) {
	viewer, err := requireUser(ctx)
	if err != nil {
		return "", err
	}
	p, err := s.Store.GetPost(ctx, id, viewer)
	if err != nil {
		return "", err
	}
	if p.Author != viewer {
		return "", fmt.Errorf("%w: only the author can change this post", errForbidden)
	}
	return viewer, nil
}

func (s *Server) editPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	viewer, err := s.ownPost(ctx, id)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	var req model.Edit
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	title, body, err := validatePost(req.Title, req.Body, false)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if err := s.Store.UpdatePost(ctx, id, model.Edit{Title: title, Body: body}); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	s.respondPost(w, r, id, viewer, http.StatusOK)
}

type patchPostRequest struct {
	CommentsClosed *bool `json:"commentsClosed"`
}

func (s *Server) patchPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	viewer, err := s.ownPost(ctx, id)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	var req patchPostRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if req.CommentsClosed == nil {
		writeError(w, r, s.Logger, badRequest("commentsClosed is required"))
		return
	}
	if err := s.Store.CloseComments(ctx, id, *req.CommentsClosed); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	s.respondPost(w, r, id, viewer, http.StatusOK)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if _, err := s.ownPost(ctx, id); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if err := s.Store.DeletePost(ctx, id); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	s.publish(ctx, model.EventPostDeleted, id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (s *Server) setSaved(saved bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		viewer, err := requireUser(ctx)
		if err != nil {
			writeError(w, r, s.Logger, err)
			return
		}
		id := r.PathValue("id")
		if err := s.Store.SetSaved(ctx, id, viewer, saved); err != nil {
			writeError(w, r, s.Logger, err)
			return
		}
		// сохранение видно только самому зрителю, событие не нужно
		p, err := s.loadPost(ctx, id, viewer)
		if err != nil {
			writeError(w, r, s.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

type reactionRequest struct {
	ReactionID string `json:"reactionId"`
}

func (s *Server) reactPost(w http.ResponseWriter, r *http.Request) {
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
	if _, err := s.Store.GetPost(ctx, id, ""); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if err := s.Store.ToggleReaction(ctx, id, viewer, kind); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	s.respondPost(w, r, id, viewer, http.StatusOK)
}

// respondPost publishes the shared state of a changed post and answers with the viewer's copy.
func (s *Server) respondPost(w http.ResponseWriter, r *http.Request, id, viewer string, status int) {
	ctx := r.Context()
	s.publishPost(ctx, id)
	p, err := s.loadPost(ctx, id, viewer)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, status, p)
}
