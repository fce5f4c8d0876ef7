package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/logctx"
	"github.com/bilyardvmetro/posts-feed-sync/internal/model"

	"github.com/gorilla/websocket"
)

const eventBuffer = 64

// publish sends a viewer-neutral change event. Failures are logged, the
// write itself already succeeded.
func (s *Server) publish(ctx context.Context, t model.EventType, id string, v any) {
	if s.Bus == nil {
		return
	}
	ev, err := model.NewEvent(t, id, v)
	if err != nil {
		l := logctx.From(ctx, s.Logger)
		l.Error().Err(err).Str("id", id).Msg("build event")
		return
	}
	s.Bus.Publish(ev.Topic(), ev)
	eventsPublished.WithLabelValues(string(t)).Inc()
}

// publishPost publishes the guest view of the post, so no Saved or Mine leaks.
func (s *Server) publishPost(ctx context.Context, id string) {
	p, err := s.loadPost(ctx, id, "")
	if err != nil {
		l := logctx.From(ctx, s.Logger)
		l.Warn().Err(err).Str("id", id).Msg("load post for event")
		return
	}
	s.publish(ctx, model.EventPostUpdated, id, p)
}

// events streams bus events to one websocket client until either side goes away.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	l := logctx.From(r.Context(), s.Logger)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	eventClients.Inc()
	defer eventClients.Dec()

	out := make(chan model.Event, eventBuffer)
	overflow := make(chan struct{})
	var closed bool
	deliver := func(ev model.Event) {
		select {
		case out <- ev:
		default:
			// клиент не успевает читать: рвём соединение, он переподключится
			select {
			case overflow <- struct{}{}:
			default:
			}
		}
	}
	for _, topic := range []string{model.TopicPosts, model.TopicComments} {
		unsub := s.Bus.Subscribe(topic, deliver)
		defer unsub()
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	keepAlive := s.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	for !closed {
		select {
		case ev := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				l.Debug().Err(err).Msg("events write")
				closed = true
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				closed = true
			}
		case <-overflow:
			l.Warn().Msg("events client too slow, closing")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
				time.Now().Add(time.Second))
			closed = true
		case <-gone:
			closed = true
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			closed = true
		case <-r.Context().Done():
			closed = true
		}
	}
}
