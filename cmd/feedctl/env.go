package main

import (
	"io"

	"github.com/bilyardvmetro/posts-feed-sync/internal/feed"
	"github.com/bilyardvmetro/posts-feed-sync/internal/logger"
	"github.com/bilyardvmetro/posts-feed-sync/internal/model"
	"github.com/bilyardvmetro/posts-feed-sync/internal/remote"
	"github.com/bilyardvmetro/posts-feed-sync/internal/settings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// env is what every command needs: local state, the API client and the two stores.
type env struct {
	state    settings.Store
	prefs    settings.Settings
	client   *remote.Client
	posts    *feed.Mutator[*model.Post]
	comments *feed.Mutator[*model.Comment]
	out      io.Writer
	log      zerolog.Logger
}

func (e *env) Close() error { return e.state.Close() }

func openEnv(cctx *cli.Context) (*env, error) {
	st, err := settings.Open(cctx.String("state"))
	if err != nil {
		return nil, err
	}
	prefs, err := settings.Load(st)
	if err != nil {
		st.Close()
		return nil, err
	}
	if u := cctx.String("api-url"); u != "" {
		prefs.APIURL = u
	}

	l := logger.Log
	client := remote.NewClient(prefs.APIURL,
		remote.WithAuth(st),
		remote.WithLogger(l),
		remote.WithUserAgent("feedctl"),
	)

	postsRes := remote.Posts(client)
	commentsRes := remote.Comments(client)
	e := &env{
		state:  st,
		prefs:  prefs,
		client: client,
		posts: feed.NewMutator(
			feed.NewStore[*model.Post](postsRes, feed.WithName("posts"), feed.WithPageSize(prefs.PageSize), feed.WithLogger(l)),
			postsRes),
		comments: feed.NewMutator(
			feed.NewStore[*model.Comment](commentsRes, feed.WithName("comments"), feed.WithPageSize(prefs.PageSize), feed.WithLogger(l)),
			commentsRes),
		out: cctx.App.Writer,
		log: l,
	}
	return e, nil
}

// withEnv opens the state file for the duration of one command.
func withEnv(fn func(cctx *cli.Context, e *env) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		e, err := openEnv(cctx)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cctx, e)
	}
}
