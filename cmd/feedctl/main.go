package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bilyardvmetro/posts-feed-sync/internal/logger"
	"github.com/bilyardvmetro/posts-feed-sync/internal/notify"
	"github.com/bilyardvmetro/posts-feed-sync/internal/settings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	if notify.Report(notify.WriterSink{W: os.Stderr}, newApp(os.Stdout, os.Stderr).Run(os.Args)) {
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	app := &cli.App{
		Name:      "feedctl",
		Usage:     "browse and act on the posts feed from the terminal",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "feed API base url, overrides the saved setting",
				EnvVars: []string{"FEED_API_URL"},
			},
			&cli.StringFlag{
				Name:    "state",
				Usage:   "path of the local state file (token and settings)",
				Value:   settings.DefaultPath(),
				EnvVars: []string{"FEED_STATE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(cctx *cli.Context) error {
			logger.InitTo(stderr, cctx.String("log-level"))
			return nil
		},
	}

	app.Commands = []*cli.Command{
		loginCmd,
		logoutCmd,
		configCmd,
		feedCmd,
		showCmd,
		postCmd,
		saveCmd,
		unsaveCmd,
		reactCmd,
		editCmd,
		deleteCmd,
		commentsCmd,
		commentCmd,
		commentReactCmd,
		commentDeleteCmd,
		watchCmd,
	}
	return app
}

func argOrErr(cctx *cli.Context, i int, name string) (string, error) {
	v := cctx.Args().Get(i)
	if v == "" {
		return "", fmt.Errorf("missing argument: %s", name)
	}
	return v, nil
}
