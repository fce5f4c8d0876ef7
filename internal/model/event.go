package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventPostUpdated    EventType = "post.updated"
	EventPostDeleted    EventType = "post.deleted"
	EventCommentUpdated EventType = "comment.updated"
)

const (
	TopicPosts    = "posts"
	TopicComments = "comments"
)

// Event: изменение сущности на сервере. Data не содержит полей конкретного зрителя.
type Event struct {
	Type EventType       `json:"type"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
	At   time.Time       `json:"at"`
}

func NewEvent(t EventType, id string, v any) (Event, error) {
	ev := Event{Type: t, ID: id, At: time.Now().UTC()}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return Event{}, err
		}
		ev.Data = data
	}
	return ev, nil
}

func (e Event) Topic() string {
	if e.Type == EventCommentUpdated {
		return TopicComments
	}
	return TopicPosts
}

func (e Event) Deleted() bool { return e.Type == EventPostDeleted }
