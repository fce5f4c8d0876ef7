package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bilyardvmetro/posts-feed-sync/internal/model"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema.sql
var schema string

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &PostgresStore{db: db}, nil
}

// Migrate creates missing tables and indexes.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) CreatePost(ctx context.Context, post *model.Post) error {
	const q = `insert into posts (id, community_id, title, body, author, comments_closed, created_at)
	values ($1, $2, $3, $4, $5, $6, $7)`

	_, err := p.db.ExecContext(ctx, q, post.ID, post.CommunityID, post.Title, post.Body, post.Author, post.CommentsClosed, post.CreatedAt)
	return err
}

const postColumns = `p.id, p.community_id, p.title, p.body, p.author, p.comments_closed, p.created_at`

func scanPost(row interface{ Scan(...any) error }) (*model.Post, error) {
	var res model.Post
	if err := row.Scan(&res.ID, &res.CommunityID, &res.Title, &res.Body, &res.Author, &res.CommentsClosed, &res.CreatedAt); err != nil {
		return nil, err
	}
	return &res, nil
}

func (p *PostgresStore) GetPost(ctx context.Context, id, viewer string) (*model.Post, error) {
	q := `select ` + postColumns + ` from posts p where p.id = $1`

	res, err := scanPost(p.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := p.decoratePosts(ctx, []*model.Post{res}, viewer); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *PostgresStore) ListPosts(ctx context.Context, q PostQuery) ([]*model.Post, int, error) {
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	from := `posts p`
	where := `true`
	if q.SavedBy != "" {
		from += ` join saves s on s.post_id = p.id and s.user_name = ` + arg(q.SavedBy)
	}
	if q.CommunityID != "" {
		where += ` and p.community_id = ` + arg(q.CommunityID)
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `select count(*) from `+from+` where `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := `p.created_at desc, p.id`
	switch q.Order {
	case OrderPopular:
		order = `(select count(*) from reactions r where r.entity_id = p.id) desc, ` + order
	case OrderShuffled:
		order = `md5(` + arg(q.Seed) + ` || p.id), p.id`
	}
	if q.SavedBy != "" {
		order = `s.created_at desc, ` + order
	}

	limit := "all"
	if q.Limit > 0 {
		limit = strconv.Itoa(q.Limit)
	}
	query := fmt.Sprintf(`select %s from %s where %s order by %s limit %s offset %d`,
		postColumns, from, where, order, limit, max(q.Offset, 0))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []*model.Post
	for rows.Next() {
		row, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := p.decoratePosts(ctx, res, q.Viewer); err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

// decoratePosts fills the viewer-dependent fields: reactions and Saved.
func (p *PostgresStore) decoratePosts(ctx context.Context, posts []*model.Post, viewer string) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}

	reactions, err := p.batchReactions(ctx, ids, viewer)
	if err != nil {
		return err
	}
	saved := map[string]bool{}
	if viewer != "" {
		const q = `select post_id from saves where user_name = $1 and post_id = any($2)`
		rows, err := p.db.QueryContext(ctx, q, viewer, pgArray(ids))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			saved[id] = true
		}
		if err := rows.Err(); err != nil {
			return err
		}
	}

	for _, post := range posts {
		post.Reactions = reactions[post.ID]
		post.Saved = saved[post.ID]
	}
	return nil
}

func (p *PostgresStore) batchReactions(ctx context.Context, ids []string, viewer string) (map[string]model.Reactions, error) {
	const q = `select entity_id, kind, count(*), coalesce(bool_or(user_name = $2), false)
	from reactions where entity_id = any($1) group by entity_id, kind`

	rows, err := p.db.QueryContext(ctx, q, pgArray(ids), viewer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byEntity := map[string][]reactionRow{}
	for rows.Next() {
		var id string
		var r reactionRow
		if err := rows.Scan(&id, &r.kind, &r.count, &r.mine); err != nil {
			return nil, err
		}
		if viewer == "" {
			r.mine = false
		}
		byEntity[id] = append(byEntity[id], r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]model.Reactions, len(byEntity))
	for id, rs := range byEntity {
		out[id] = buildReactions(rs)
	}
	return out, nil
}

func (p *PostgresStore) UpdatePost(ctx context.Context, id string, e model.Edit) error {
	const q = `update posts set title = coalesce(nullif($2, ''), title), body = $3 where id = $1`
	return p.execOne(ctx, q, id, e.Title, e.Body)
}

func (p *PostgresStore) DeletePost(ctx context.Context, id string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const dropReactions = `delete from reactions where entity_id = $1
	or entity_id in (select id from comments where post_id = $1)`
	if _, err := tx.ExecContext(ctx, dropReactions, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from posts where id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (p *PostgresStore) CloseComments(ctx context.Context, id string, closed bool) error {
	return p.execOne(ctx, `update posts set comments_closed = $2 where id = $1`, id, closed)
}

func (p *PostgresStore) SetSaved(ctx context.Context, postID, viewer string, saved bool) error {
	if !saved {
		_, err := p.db.ExecContext(ctx, `delete from saves where post_id = $1 and user_name = $2`, postID, viewer)
		return err
	}
	const q = `insert into saves (post_id, user_name) select $1, $2
	where exists (select 1 from posts where id = $1)
	on conflict do nothing`
	res, err := p.db.ExecContext(ctx, q, postID, viewer)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// либо поста нет, либо он уже сохранён
		var exists bool
		if err := p.db.QueryRowContext(ctx, `select exists(select 1 from posts where id = $1)`, postID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (p *PostgresStore) ToggleReaction(ctx context.Context, entityID, viewer, kind string) error {
	const q = `with removed as (
		delete from reactions where entity_id = $1 and user_name = $2 and kind = $3 returning 1
	)
	insert into reactions (entity_id, user_name, kind)
	select $1, $2, $3 where not exists (select 1 from removed)`

	_, err := p.db.ExecContext(ctx, q, entityID, viewer, kind)
	return err
}

func (p *PostgresStore) CreateComment(ctx context.Context, comment *model.Comment) error {
	if comment.ParentID != nil && *comment.ParentID == "" {
		comment.ParentID = nil
	}

	depth := 0
	if comment.ParentID != nil {
		const getDepth = `select depth from comments where id = $1 and post_id = $2`
		if err := p.db.QueryRowContext(ctx, getDepth, *comment.ParentID, comment.PostID).Scan(&depth); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		depth++
	}

	const q = `insert into comments(id, post_id, parent_id, body, author, depth, created_at)
	select $1, $2, $3, $4, $5, $6, $7 where exists (select 1 from posts where id = $2)`
	res, err := p.db.ExecContext(ctx, q, comment.ID, comment.PostID, comment.ParentID, comment.Body, comment.Author, depth, comment.CreatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	comment.Depth = depth
	return nil
}

const commentColumns = `c.id, c.post_id, c.parent_id, c.body, c.author, c.depth, c.deleted, c.created_at`

func scanComment(row interface{ Scan(...any) error }) (*model.Comment, error) {
	var cm model.Comment
	if err := row.Scan(&cm.ID, &cm.PostID, &cm.ParentID, &cm.Body, &cm.Author, &cm.Depth, &cm.Deleted, &cm.CreatedAt); err != nil {
		return nil, err
	}
	return &cm, nil
}

func (p *PostgresStore) GetComment(ctx context.Context, id, viewer string) (*model.Comment, error) {
	cm, err := scanComment(p.db.QueryRowContext(ctx, `select `+commentColumns+` from comments c where c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	reactions, err := p.batchReactions(ctx, []string{id}, viewer)
	if err != nil {
		return nil, err
	}
	cm.Reactions = reactions[id]
	return cm, nil
}

func (p *PostgresStore) ListComments(ctx context.Context, postID, viewer string, offset, limit int) ([]*model.Comment, int, error) {
	var total int
	if err := p.db.QueryRowContext(ctx, `select count(*) from comments where post_id = $1`, postID).Scan(&total); err != nil {
		return nil, 0, err
	}

	lim := "all"
	if limit > 0 {
		lim = strconv.Itoa(limit)
	}
	q := fmt.Sprintf(`select %s from comments c where c.post_id = $1
	order by c.created_at asc, c.id asc limit %s offset %d`, commentColumns, lim, max(offset, 0))

	rows, err := p.db.QueryContext(ctx, q, postID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*model.Comment
	var ids []string
	for rows.Next() {
		cm, err := scanComment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, cm)
		ids = append(ids, cm.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(ids) > 0 {
		reactions, err := p.batchReactions(ctx, ids, viewer)
		if err != nil {
			return nil, 0, err
		}
		for _, cm := range items {
			cm.Reactions = reactions[cm.ID]
		}
	}
	return items, total, nil
}

func (p *PostgresStore) UpdateComment(ctx context.Context, id, body string) error {
	return p.execOne(ctx, `update comments set body = $2 where id = $1`, id, body)
}

func (p *PostgresStore) MarkCommentDeleted(ctx context.Context, id string) error {
	return p.execOne(ctx, `update comments set deleted = true, body = '' where id = $1`, id)
}

func (p *PostgresStore) BatchCommentsCount(ctx context.Context, postIDs []string) (map[string]int, error) {
	if len(postIDs) == 0 {
		return map[string]int{}, nil
	}

	const q = `select post_id, count(*) from comments where post_id = any($1) group by post_id`
	rows, err := p.db.QueryContext(ctx, q, pgArray(postIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int, len(postIDs))
	for _, id := range postIDs {
		out[id] = 0
	}

	for rows.Next() {
		var pid string
		var cnt int
		if err := rows.Scan(&pid, &cnt); err != nil {
			return nil, err
		}
		out[pid] = cnt
	}
	return out, rows.Err()
}

func (p *PostgresStore) execOne(ctx context.Context, q string, args ...any) error {
	res, err := p.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// обертка для pgx: stdlib-драйвер сам кодирует []string в text[]
func pgArray(ss []string) any { return ss }
