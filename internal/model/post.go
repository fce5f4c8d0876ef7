package model

import "time"

type Post struct {
	ID             string    `json:"id"`
	CommunityID    string    `json:"communityId,omitempty"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Author         string    `json:"author"`
	Saved          bool      `json:"saved"`
	CommentsCount  int       `json:"commentsCount"`
	CommentsClosed bool      `json:"commentsClosed"`
	Reactions      Reactions `json:"reactions"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (p *Post) EntityID() string { return p.ID }

func (p *Post) Clone() *Post {
	c := *p
	c.Reactions = p.Reactions.Clone()
	return &c
}

func (p *Post) WithReaction(kind string) *Post {
	c := p.Clone()
	c.Reactions = p.Reactions.Toggle(kind)
	return c
}

func (p *Post) WithSaved(saved bool) *Post {
	c := p.Clone()
	c.Saved = saved
	return c
}

func (p *Post) WithEdit(e Edit) *Post {
	c := p.Clone()
	if e.Title != "" {
		c.Title = e.Title
	}
	c.Body = e.Body
	return c
}

// Merge keeps Saved and the viewer's reactions, everything else comes from shared.
func (p *Post) Merge(shared *Post) *Post {
	c := shared.Clone()
	c.Saved = p.Saved
	c.Reactions = p.Reactions.Merge(shared.Reactions)
	return c
}
