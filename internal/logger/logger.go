package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var Log = zerolog.Nop()

// Init настраивает глобальный логгер. Пустой или неизвестный level означает debug.
func Init(level string) {
	InitTo(os.Stdout, level)
}

func InitTo(out io.Writer, level string) {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    false,
	}

	Log = zerolog.New(output).With().
		Timestamp().
		Caller().
		Logger()

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
