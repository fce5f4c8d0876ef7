// Package api is the REST server the feed client talks to.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/auth"
	"github.com/bilyardvmetro/posts-feed-sync/internal/logger"
	"github.com/bilyardvmetro/posts-feed-sync/internal/pubsub"
	"github.com/bilyardvmetro/posts-feed-sync/internal/store"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Server struct {
	Store  store.Store
	Bus    pubsub.Bus
	Logger zerolog.Logger

	// KeepAlive is the websocket ping interval on /events.
	KeepAlive time.Duration
	upgrader  websocket.Upgrader
	done      chan struct{}
	closeOnce sync.Once
}

func New(st store.Store, bus pubsub.Bus, l zerolog.Logger) *Server {
	return &Server{
		Store:     st,
		Bus:       bus,
		Logger:    l,
		KeepAlive: 30 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
}

// CloseStreams ends every open /events stream. http.Server.Shutdown does not
// wait for hijacked connections, so call this before it.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Handler wires every route plus logging, auth, metrics and per-request loaders.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /posts", s.listPosts(listRegular))
	mux.HandleFunc("GET /posts/popular", s.listPosts(listPopular))
	mux.HandleFunc("GET /posts/explore", s.listPosts(listExplore))
	mux.HandleFunc("GET /posts/saved", s.listPosts(listSaved))
	mux.HandleFunc("POST /posts", s.createPost)
	mux.HandleFunc("GET /posts/{id}", s.getPost)
	mux.HandleFunc("PUT /posts/{id}", s.editPost)
	mux.HandleFunc("PATCH /posts/{id}", s.patchPost)
	mux.HandleFunc("DELETE /posts/{id}", s.deletePost)
	mux.HandleFunc("POST /posts/{id}/saved", s.setSaved(true))
	mux.HandleFunc("DELETE /posts/{id}/saved", s.setSaved(false))
	mux.HandleFunc("POST /posts/{id}/reaction", s.reactPost)
	mux.HandleFunc("GET /posts/{id}/comments", s.listComments)
	mux.HandleFunc("POST /posts/{id}/comments", s.createComment)

	mux.HandleFunc("GET /communities/{id}/posts", s.listPosts(listCommunity))
	mux.HandleFunc("POST /communities/{id}/posts", s.createPost)

	mux.HandleFunc("GET /comments/{id}", s.getComment)
	mux.HandleFunc("PUT /comments/{id}", s.editComment)
	mux.HandleFunc("PATCH /comments/{id}", s.patchComment)
	mux.HandleFunc("DELETE /comments/{id}", s.deleteComment)
	mux.HandleFunc("POST /comments/{id}/reaction", s.reactComment)

	mux.HandleFunc("GET /events", s.events)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var h http.Handler = mux
	h = WithLoaders(s.Store)(h)
	h = instrument(h)
	h = auth.WithUser(h)
	h = logger.Middleware(s.Logger)(h)
	return h
}
