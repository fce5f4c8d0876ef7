package strategy

import (
	"strings"

	"github.com/rs/zerolog"
)

// Resolve maps a navigation path to a listing target. Unknown paths fall back
// to the default strategy.
func Resolve(l zerolog.Logger, path string) Target {
	p := strings.TrimSpace(path)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.Trim(p, "/")
	parts := strings.Split(p, "/")

	switch len(parts) {
	case 1:
		switch parts[0] {
		case "", "home", "feed":
			return Target{Strategy: Regular}
		case "popular":
			return Target{Strategy: Popular}
		case "explore":
			return Target{Strategy: Explore}
		case "saved":
			return Target{Strategy: Saved}
		}
	case 2:
		if parts[1] == "" {
			break
		}
		switch parts[0] {
		case "c", "communities":
			return Target{Strategy: Community, Scope: parts[1]}
		case "p", "posts":
			return Target{Strategy: Comments, Scope: parts[1]}
		}
	}

	l.Warn().Str("path", path).Str("fallback", string(Default)).Msg("unknown navigation path")
	return Target{Strategy: Default}
}
