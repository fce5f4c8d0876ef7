package store

import (
	"context"
	"errors"
	"sort"

	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
)

var ErrNotFound = errors.New("not found")

type Order string

const (
	OrderNewest   Order = "newest"
	OrderPopular  Order = "popular"
	OrderShuffled Order = "shuffled"
)

// PostQuery selects one window of a post listing. Viewer fills Saved and
// Reactions.Mine; an empty Viewer is a guest.
type PostQuery struct {
	Viewer      string
	Order       Order
	Seed        string
	CommunityID string
	SavedBy     string
	Offset      int
	Limit       int
}

type Store interface {
	// Posts
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, id, viewer string) (*model.Post, error)
	ListPosts(ctx context.Context, q PostQuery) ([]*model.Post, int, error)
	UpdatePost(ctx context.Context, id string, e model.Edit) error
	DeletePost(ctx context.Context, id string) error
	CloseComments(ctx context.Context, id string, closed bool) error
	SetSaved(ctx context.Context, postID, viewer string, saved bool) error

	// Comments
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, id, viewer string) (*model.Comment, error)
	ListComments(ctx context.Context, postID, viewer string, offset, limit int) ([]*model.Comment, int, error)
	UpdateComment(ctx context.Context, id, body string) error
	MarkCommentDeleted(ctx context.Context, id string) error
	BatchCommentsCount(ctx context.Context, postIDs []string) (map[string]int, error)

	// ToggleReaction works for posts and comments alike; the caller checks the entity exists.
	ToggleReaction(ctx context.Context, entityID, viewer, kind string) error
}

// reactionRow is one (kind, count) of an entity plus whether the viewer is among them.
type reactionRow struct {
	kind  string
	count int
	mine  bool
}

func buildReactions(rows []reactionRow) model.Reactions {
	var r model.Reactions
	for _, row := range rows {
		if row.count <= 0 {
			continue
		}
		if r.Counts == nil {
			r.Counts = map[string]int{}
		}
		r.Counts[row.kind] = row.count
		r.Total += row.count
		if row.mine {
			r.Mine = append(r.Mine, row.kind)
		}
	}
	sort.Strings(r.Mine)
	return r
}

func clampWindow(offset, limit, total int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return offset, end
}
