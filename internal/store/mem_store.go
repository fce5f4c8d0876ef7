package store

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
)

type reactionKey struct {
	entityID string
	user     string
	kind     string
}

type saveKey struct {
	postID string
	user   string
}

type memStore struct {
	mu        sync.RWMutex
	posts     map[string]*model.Post
	comments  map[string]*model.Comment
	reactions map[reactionKey]time.Time
	saves     map[saveKey]time.Time
}

func NewMemStore() Store {
	return &memStore{
		posts:     map[string]*model.Post{},
		comments:  map[string]*model.Comment{},
		reactions: map[reactionKey]time.Time{},
		saves:     map[saveKey]time.Time{},
	}
}

func (m *memStore) CreatePost(ctx context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// храним только общее состояние, зрительские поля считаются при чтении
	p := post.Clone()
	p.Saved = false
	p.CommentsCount = 0
	p.Reactions = model.Reactions{}
	m.posts[p.ID] = p
	return nil
}

func (m *memStore) GetPost(ctx context.Context, id, viewer string) (*model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	post, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.viewPostLocked(post, viewer), nil
}

func (m *memStore) viewPostLocked(p *model.Post, viewer string) *model.Post {
	out := p.Clone()
	out.Reactions = m.reactionsLocked(p.ID, viewer)
	if viewer != "" {
		_, out.Saved = m.saves[saveKey{p.ID, viewer}]
	}
	return out
}

func (m *memStore) reactionsLocked(entityID, viewer string) model.Reactions {
	byKind := map[string]*reactionRow{}
	for k := range m.reactions {
		if k.entityID != entityID {
			continue
		}
		row := byKind[k.kind]
		if row == nil {
			row = &reactionRow{kind: k.kind}
			byKind[k.kind] = row
		}
		row.count++
		if viewer != "" && k.user == viewer {
			row.mine = true
		}
	}
	rows := make([]reactionRow, 0, len(byKind))
	for _, r := range byKind {
		rows = append(rows, *r)
	}
	return buildReactions(rows)
}

func (m *memStore) ListPosts(ctx context.Context, q PostQuery) ([]*model.Post, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type ranked struct {
		post    *model.Post
		score   int
		savedAt time.Time
		hash    uint64
	}

	var all []ranked
	for _, p := range m.posts {
		if q.CommunityID != "" && p.CommunityID != q.CommunityID {
			continue
		}
		r := ranked{post: p}
		if q.SavedBy != "" {
			at, ok := m.saves[saveKey{p.ID, q.SavedBy}]
			if !ok {
				continue
			}
			r.savedAt = at
		}
		switch q.Order {
		case OrderPopular:
			r.score = m.reactionsLocked(p.ID, "").Total
		case OrderShuffled:
			r.hash = shuffleKey(q.Seed, p.ID)
		}
		all = append(all, r)
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		switch {
		case q.SavedBy != "" && !a.savedAt.Equal(b.savedAt):
			return a.savedAt.After(b.savedAt)
		case q.Order == OrderPopular && a.score != b.score:
			return a.score > b.score
		case q.Order == OrderShuffled && a.hash != b.hash:
			return a.hash < b.hash
		case !a.post.CreatedAt.Equal(b.post.CreatedAt):
			return a.post.CreatedAt.After(b.post.CreatedAt)
		}
		return a.post.ID < b.post.ID
	})

	start, end := clampWindow(q.Offset, q.Limit, len(all))
	out := make([]*model.Post, 0, end-start)
	for _, r := range all[start:end] {
		out = append(out, m.viewPostLocked(r.post, q.Viewer))
	}
	return out, len(all), nil
}

// shuffleKey gives every (session seed, post) pair a stable position.
func shuffleKey(seed, id string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(seed))
	h.Write([]byte{0})
	h.Write([]byte(id))
	return h.Sum64()
}

func (m *memStore) UpdatePost(ctx context.Context, id string, e model.Edit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.posts[id]
	if !ok {
		return ErrNotFound
	}
	m.posts[id] = post.WithEdit(e)
	return nil
}

func (m *memStore) DeletePost(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[id]; !ok {
		return ErrNotFound
	}
	delete(m.posts, id)

	gone := map[string]bool{id: true}
	for cid, c := range m.comments {
		if c.PostID == id {
			gone[cid] = true
			delete(m.comments, cid)
		}
	}
	for k := range m.reactions {
		if gone[k.entityID] {
			delete(m.reactions, k)
		}
	}
	for k := range m.saves {
		if k.postID == id {
			delete(m.saves, k)
		}
	}
	return nil
}

func (m *memStore) CloseComments(ctx context.Context, id string, closed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.posts[id]
	if !ok {
		return ErrNotFound
	}
	post.CommentsClosed = closed
	return nil
}

func (m *memStore) SetSaved(ctx context.Context, postID, viewer string, saved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[postID]; !ok {
		return ErrNotFound
	}
	k := saveKey{postID, viewer}
	if !saved {
		delete(m.saves, k)
		return nil
	}
	if _, ok := m.saves[k]; !ok {
		m.saves[k] = time.Now().UTC()
	}
	return nil
}

func (m *memStore) ToggleReaction(ctx context.Context, entityID, viewer, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := reactionKey{entityID, viewer, kind}
	if _, ok := m.reactions[k]; ok {
		delete(m.reactions, k)
		return nil
	}
	m.reactions[k] = time.Now().UTC()
	return nil
}

func (m *memStore) CreateComment(ctx context.Context, comment *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[comment.PostID]; !ok {
		return ErrNotFound
	}
	if comment.ParentID != nil && *comment.ParentID == "" {
		comment.ParentID = nil
	}

	comment.Depth = 0
	if comment.ParentID != nil {
		parent := m.comments[*comment.ParentID]
		if parent == nil || parent.PostID != comment.PostID {
			return ErrNotFound
		}
		comment.Depth = parent.Depth + 1
	}

	c := comment.Clone()
	c.Reactions = model.Reactions{}
	m.comments[c.ID] = c
	return nil
}

func (m *memStore) GetComment(ctx context.Context, id, viewer string) (*model.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := c.Clone()
	out.Reactions = m.reactionsLocked(id, viewer)
	return out, nil
}

func (m *memStore) ListComments(ctx context.Context, postID, viewer string, offset, limit int) ([]*model.Comment, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []*model.Comment
	for _, comment := range m.comments {
		if comment.PostID == postID {
			items = append(items, comment)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	start, end := clampWindow(offset, limit, len(items))
	out := make([]*model.Comment, 0, end-start)
	for _, c := range items[start:end] {
		v := c.Clone()
		v.Reactions = m.reactionsLocked(c.ID, viewer)
		out = append(out, v)
	}
	return out, len(items), nil
}

func (m *memStore) UpdateComment(ctx context.Context, id, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok {
		return ErrNotFound
	}
	c.Body = body
	return nil
}

func (m *memStore) MarkCommentDeleted(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok {
		return ErrNotFound
	}
	m.comments[id] = c.WithDeleted()
	return nil
}

func (m *memStore) BatchCommentsCount(ctx context.Context, postIDs []string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int, len(postIDs))
	for _, id := range postIDs {
		out[id] = 0
	}
	for _, c := range m.comments {
		if _, ok := out[c.PostID]; ok {
			out[c.PostID]++
		}
	}
	return out, nil
}
