package remote

import (
	"context"
	"strings"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/auth"
	"github.com/bilyardvmetro/posts-feed-sync/internal/logctx"
	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
	"github.com/bilyardvmetro/posts-feed-sync/internal/pubsub"

	"github.com/gorilla/websocket"
)

const EventsPath = "/events"

func (c *Client) eventsURL() string {
	u := c.baseURL + EventsPath
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// Watch streams server events into bus until ctx is done or the connection
// drops. Each event is published on its own topic.
func (c *Client) Watch(ctx context.Context, bus pubsub.Bus) error {
	h, err := auth.Header(c.tokens)
	if err != nil {
		return err
	}
	d := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := d.DialContext(ctx, c.eventsURL(), h)
	if err != nil {
		return err
	}
	defer conn.Close()

	l := logctx.From(ctx, c.log)
	l.Info().Str("url", c.eventsURL()).Msg("watching events")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var ev model.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ctx.Err()
			}
			return err
		}
		l.Debug().Str("type", string(ev.Type)).Str("id", ev.ID).Msg("event")
		bus.Publish(ev.Topic(), ev)
	}
}
