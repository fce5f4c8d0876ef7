package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/bilyardvmetro/posts-feed-sync/internal/feed"
	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
	"github.com/bilyardvmetro/posts-feed-sync/internal/pubsub"
	"github.com/bilyardvmetro/posts-feed-sync/internal/remote"
	"github.com/bilyardvmetro/posts-feed-sync/internal/settings"
	"github.com/bilyardvmetro/posts-feed-sync/internal/strategy"

	"github.com/urfave/cli/v2"
)

var pagesFlag = &cli.IntFlag{
	Name:    "pages",
	Aliases: []string{"n"},
	Usage:   "number of pages to load",
	Value:   1,
}

var loginCmd = &cli.Command{
	Name:      "login",
	Usage:     "remember the user name sent as bearer token",
	ArgsUsage: "<name>",
	Action: withEnv(func(cctx *cli.Context, e *env) error {
		name, err := argOrErr(cctx, 0, "name")
		if err != nil {
			return err
		}
		if err := e.state.SetToken(name); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "logged in as %s\n", name)
		return nil
	}),
}

var logoutCmd = &cli.Command{
	Name:  "logout",
	Usage: "forget the saved token",
	Action: withEnv(func(cctx *cli.Context, e *env) error {
		if err := e.state.ClearToken(); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "logged out")
		return nil
	}),
}

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "show or change saved settings",
	Subcommands: []*cli.Command{
		{
			Name:  "show",
			Usage: "print current settings",
			Action: withEnv(func(cctx *cli.Context, e *env) error {
				tok, err := e.state.Token()
				if err != nil {
					return err
				}
				if tok == "" {
					tok = "(guest)"
				}
				fmt.Fprintf(e.out, "api-url:  %s\npage-size: %d\nstrategy: %s\nuser:     %s\n",
					e.prefs.APIURL, e.prefs.PageSize, e.prefs.DefaultStrategy, tok)
				return nil
			}),
		},
		{
			Name:      "set",
			Usage:     "set one of api-url, page-size, strategy",
			ArgsUsage: "<key> <value>",
			Action: withEnv(func(cctx *cli.Context, e *env) error {
				key, err := argOrErr(cctx, 0, "key")
				if err != nil {
					return err
				}
				val, err := argOrErr(cctx, 1, "value")
				if err != nil {
					return err
				}
				// сохраняем сохранённые значения, а не переопределённые флагом
				prefs, err := settings.Load(e.state)
				if err != nil {
					return err
				}
				switch key {
				case "api-url":
					prefs.APIURL = val
				case "page-size":
					n, err := strconv.Atoi(val)
					if err != nil || n < 1 {
						return fmt.Errorf("page-size must be a positive number")
					}
					prefs.PageSize = n
				case "strategy":
					s, err := strategy.Parse(val)
					if err != nil {
						return err
					}
					if cfg, _ := strategy.ConfigOf(s); cfg.Scoped() {
						return fmt.Errorf("strategy %s needs a scope and cannot be the default", s)
					}
					prefs.DefaultStrategy = s
				default:
					return fmt.Errorf("unknown setting %q", key)
				}
				if err := e.state.SaveSettings(prefs); err != nil {
					return err
				}
				fmt.Fprintf(e.out, "%s = %s\n", key, val)
				return nil
			}),
		},
	},
}

// target resolves the optional navigation path argument, falling back to the saved default.
func (e *env) target(path string) strategy.Target {
	if path == "" {
		return strategy.Target{Strategy: e.prefs.DefaultStrategy}
	}
	return strategy.Resolve(e.log, path)
}

func loadPages[T model.Entity[T]](ctx context.Context, s *feed.Store[T], t strategy.Target, pages int) error {
	if _, err := s.LoadInitial(ctx, t); err != nil {
		return err
	}
	for i := 1; i < pages && s.HasMore(); i++ {
		if _, err := s.LoadNext(ctx); err != nil {
			return err
		}
	}
	return nil
}

var feedCmd = &cli.Command{
	Name:      "feed",
	Usage:     "list posts for a navigation path (home, popular, explore, saved, c/<id>, p/<id>)",
	ArgsUsage: "[path]",
	Flags:     []cli.Flag{pagesFlag},
	Action: withEnv(func(cctx *cli.Context, e *env) error {
		t := e.target(cctx.Args().First())
		if t.Strategy == strategy.Comments {
			return showComments(cctx.Context, e, t, cctx.Int("pages"))
		}
		s := e.posts.Store()
		if err := loadPages(cctx.Context, s, t, cctx.Int("pages")); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%s\n", t)
		for _, p := range s.Items() {
			printPost(e.out, p)
		}
		if md := s.Metadata(); len(md) > 0 {
			fmt.Fprintf(e.out, "-- %s\n", md)
		}
		printFooter(e.out, s.Cursor())
		return nil
	}),
}

func showComments(ctx context.Context, e *env, t strategy.Target, pages int) error {
	s := e.comments.Store()
	if err := loadPages(ctx, s, t, pages); err != nil {
		return err
	}
	for _, c := range s.Items() {
		printComment(e.out, c)
	}
	printFooter(e.out, s.Cursor())
	return nil
}

var commentsCmd = &cli.Command{
	Name:      "comments",
	Usage:     "list comments of a post",
	ArgsUsage: "<post-id>",
	Flags:     []cli.Flag{pagesFlag},
	Action: withEnv(func(cctx *cli.Context, e *env) error {
		id, err := argOrErr(cctx, 0, "post-id")
		if err != nil {
			return err
		}
		return showComments(cctx.Context, e, strategy.Target{Strategy: strategy.Comments, Scope: id}, cctx.Int("pages"))
	}),
}

var showCmd = &cli.Command{
	Name:      "show",
	Usage:     "show one post",
	ArgsUsage: "<post-id>",
	Action: withEnv(func(cctx *cli.Context, e *env) error {
		id, err := argOrErr(cctx, 0, "post-id")
		if err != nil {
			return err
		}
		p, err := e.posts.Store().LoadDetail(cctx.Context, id)
		if err != nil {
			return err
		}
		printPostDetail(e.out, p)
		return nil
	}),
}

var postCmd = &cli.Command{
	Name:  "post",
	Usage: "create a post",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "title", Required: true},
		&cli.StringFlag{Name: "body", Required: true},
		&cli.StringFlag{Name: "community"},
	},
	Action: withEnv(func(cctx *cli.Context, e *env) error {
		path := "/posts"
		if c := cctx.String("community"); c != "" {
			cfg, _ := strategy.ConfigOf(strategy.Community)
			path = cfg.Path(c)
		}
		p, err := remote.Posts(e.client).Create(cctx.Context, path, remote.NewPost{
			Title: cctx.String("title"),
			Body:  cctx.String("body"),
		})
		if err != nil {
			return err
		}
		printPost(e.out, p)
		return nil
	}),
}

// postAction loads the post into the detail slot and runs one optimistic action on it.
func postAction(build func(cctx *cli.Context) (feed.Action, error)) cli.ActionFunc {
	return withEnv(func(cctx *cli.Context, e *env) error {
		id, err := argOrErr(cctx, 0, "post-id")
		if err != nil {
			return err
		}
		a, err := build(cctx)
		if err != nil {
			return err
		}
		if _, err := e.posts.Store().LoadDetail(cctx.Context, id); err != nil {
			return err
		}
		p, err := e.posts.Do(cctx.Context, id, a)
		if err != nil {
			return err
		}
		if _, ok := a.(feed.Delete); ok {
			fmt.Fprintf(e.out, "deleted %s\n", id)
			return nil
		}
		printPost(e.out, p)
		return nil
	})
}

func constAction(a feed.Action) func(*cli.Context) (feed.Action, error) {
	return func(*cli.Context) (feed.Action, error) { return a, nil }
}

var saveCmd = &cli.Command{
	Name:      "save",
	Usage:     "save a post",
	ArgsUsage: "<post-id>",
	Action:    postAction(constAction(feed.Save{})),
}

var unsaveCmd = &cli.Command{
	Name:      "unsave",
	Usage:     "remove a post from saved",
	ArgsUsage: "<post-id>",
	Action:    postAction(constAction(feed.Unsave{})),
}

func reactAction(cctx *cli.Context) (feed.Action, error) {
	kind, err := argOrErr(cctx, 1, "reaction")
	if err != nil {
		return nil, err
	}
	return feed.React{Kind: kind}, nil
}

var reactCmd = &cli.Command{
	Name:      "react",
	Usage:     "toggle a reaction on a post",
	ArgsUsage: "<post-id> <reaction>",
	Action:    postAction(reactAction),
}

var editCmd = &cli.Command{
	Name:      "edit",
	Usage:     "edit your post",
	ArgsUsage: "<post-id>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "title", Usage: "new title, keeps the old one when empty"},
		&cli.StringFlag{Name: "body", Required: true},
	},
	Action: postAction(func(cctx *cli.Context) (feed.Action, error) {
		return feed.Edit{Change: model.Edit{Title: cctx.String("title"), Body: cctx.String("body")}}, nil
	}),
}

var deleteCmd = &cli.Command{
	Name:      "delete",
	Usage:     "delete your post",
	ArgsUsage: "<post-id>",
	Action:    postAction(constAction(feed.Delete{})),
}

var commentCmd = &cli.Command{
	Name:      "comment",
	Usage:     "add a comment to a post",
	ArgsUsage: "<post-id> <text>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "parent", Usage: "reply to this comment id"},
	},
	Action: withEnv(func(cctx *cli.Context, e *env) error {
		postID, err := argOrErr(cctx, 0, "post-id")
		if err != nil {
			return err
		}
		body, err := argOrErr(cctx, 1, "text")
		if err != nil {
			return err
		}
		in := remote.NewComment{Body: body}
		if p := cctx.String("parent"); p != "" {
			in.ParentID = &p
		}
		cfg, _ := strategy.ConfigOf(strategy.Comments)
		c, err := remote.Comments(e.client).Create(cctx.Context, cfg.Path(postID), in)
		if err != nil {
			return err
		}
		printComment(e.out, c)
		return nil
	}),
}

// commentAction is postAction for comments.
func commentAction(build func(cctx *cli.Context) (feed.Action, error)) cli.ActionFunc {
	return withEnv(func(cctx *cli.Context, e *env) error {
		id, err := argOrErr(cctx, 0, "comment-id")
		if err != nil {
			return err
		}
		a, err := build(cctx)
		if err != nil {
			return err
		}
		if _, err := e.comments.Store().LoadDetail(cctx.Context, id); err != nil {
			return err
		}
		c, err := e.comments.Do(cctx.Context, id, a)
		if err != nil {
			return err
		}
		printComment(e.out, c)
		return nil
	})
}

var commentReactCmd = &cli.Command{
	Name:      "comment-react",
	Usage:     "toggle a reaction on a comment",
	ArgsUsage: "<comment-id> <reaction>",
	Action:    commentAction(reactAction),
}

var commentDeleteCmd = &cli.Command{
	Name:      "comment-delete",
	Usage:     "delete your comment (it stays in the thread as [deleted])",
	ArgsUsage: "<comment-id>",
	Action:    commentAction(constAction(feed.SoftDelete{})),
}

// followAndPrint loads t into s, keeps it in sync with the bus and prints every
// change to an entity the listing holds.
func followAndPrint[T model.Entity[T]](ctx context.Context, e *env, s *feed.Store[T], t strategy.Target, pages int,
	bus pubsub.Bus, topic string, show func(io.Writer, T)) (pubsub.Unsubscribe, error) {
	if err := loadPages(ctx, s, t, pages); err != nil {
		return nil, err
	}
	unfollow := s.Follow(bus, topic)

	var mu sync.Mutex
	unsub := bus.Subscribe(topic, func(ev model.Event) {
		cur, ok := s.Get(ev.ID)
		if !ok && !ev.Deleted() {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if ev.Deleted() {
			fmt.Fprintf(e.out, "removed %s\n", ev.ID)
			return
		}
		var shared T
		if err := json.Unmarshal(ev.Data, &shared); err != nil {
			e.log.Warn().Err(err).Str("id", ev.ID).Msg("bad event payload")
			return
		}
		// порядок обработчиков шины не задан, поэтому сливаем сами
		show(e.out, cur.Merge(shared))
	})
	return func() { unsub(); unfollow() }, nil
}

var watchCmd = &cli.Command{
	Name:      "watch",
	Usage:     "load a listing and print live updates to it",
	ArgsUsage: "[path]",
	Flags: []cli.Flag{
		pagesFlag,
		&cli.DurationFlag{Name: "for", Usage: "stop after this long, 0 waits for Ctrl-C"},
	},
	Action: withEnv(func(cctx *cli.Context, e *env) error {
		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if d := cctx.Duration("for"); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		t := e.target(cctx.Args().First())
		bus := pubsub.NewMemoryBus()

		var (
			unsub pubsub.Unsubscribe
			err   error
		)
		if t.Strategy == strategy.Comments {
			unsub, err = followAndPrint(ctx, e, e.comments.Store(), t, cctx.Int("pages"), bus, model.TopicComments, printComment)
		} else {
			unsub, err = followAndPrint(ctx, e, e.posts.Store(), t, cctx.Int("pages"), bus, model.TopicPosts, printPost)
		}
		if err != nil {
			return err
		}
		defer unsub()
		fmt.Fprintf(e.out, "watching %s\n", t)

		err = e.client.Watch(ctx, bus)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}),
}
