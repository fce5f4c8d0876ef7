package model

import "time"

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	ParentID  *string   `json:"parentId,omitempty"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Depth     int       `json:"depth"`
	Deleted   bool      `json:"deleted"`
	Reactions Reactions `json:"reactions"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *Comment) EntityID() string { return c.ID }

func (c *Comment) Clone() *Comment {
	out := *c
	if c.ParentID != nil {
		parent := *c.ParentID
		out.ParentID = &parent
	}
	out.Reactions = c.Reactions.Clone()
	return &out
}

func (c *Comment) WithReaction(kind string) *Comment {
	out := c.Clone()
	out.Reactions = c.Reactions.Toggle(kind)
	return out
}

func (c *Comment) WithEdit(e Edit) *Comment {
	out := c.Clone()
	out.Body = e.Body
	return out
}

// WithDeleted: мягкое удаление: комментарий остаётся в ветке, текст скрыт.
func (c *Comment) WithDeleted() *Comment {
	out := c.Clone()
	out.Deleted = true
	out.Body = ""
	return out
}

func (c *Comment) Merge(shared *Comment) *Comment {
	out := shared.Clone()
	out.Reactions = c.Reactions.Merge(shared.Reactions)
	return out
}
