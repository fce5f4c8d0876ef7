package strategy

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		path string
		want Target
	}{
		{"/", Target{Strategy: Regular}},
		{"", Target{Strategy: Regular}},
		{"/home", Target{Strategy: Regular}},
		{"/popular", Target{Strategy: Popular}},
		{"/explore?tab=1", Target{Strategy: Explore}},
		{"/saved/", Target{Strategy: Saved}},
		{"/c/golang", Target{Strategy: Community, Scope: "golang"}},
		{"/communities/rust#top", Target{Strategy: Community, Scope: "rust"}},
		{"/posts/42", Target{Strategy: Comments, Scope: "42"}},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(zerolog.Nop(), tc.path))
		})
	}
}

func TestResolve_UnknownFallsBackAndLogs(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	got := Resolve(l, "/settings/profile/avatar")
	assert.Equal(t, Target{Strategy: Default}, got)
	assert.Contains(t, buf.String(), "unknown navigation path")

	buf.Reset()
	assert.Equal(t, Target{Strategy: Default}, Resolve(l, "/c/"))
	assert.Contains(t, buf.String(), "unknown navigation path")
}

func TestConfigOf_SessionStrategies(t *testing.T) {
	for _, s := range []Strategy{Popular, Explore} {
		cfg, ok := ConfigOf(s)
		require.True(t, ok)
		assert.True(t, cfg.UsesSessionToken, s)
	}
	for _, s := range []Strategy{Regular, Saved, Community, Comments} {
		cfg, ok := ConfigOf(s)
		require.True(t, ok)
		assert.False(t, cfg.UsesSessionToken, s)
	}
	_, ok := ConfigOf("trending")
	assert.False(t, ok)
}

func TestTarget_Endpoint(t *testing.T) {
	_, path, err := Target{Strategy: Community, Scope: "go lang"}.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "/communities/go%20lang/posts", path)

	_, _, err = Target{Strategy: Comments}.Endpoint()
	assert.Error(t, err)

	_, _, err = Target{Strategy: "nope"}.Endpoint()
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestParse(t *testing.T) {
	s, err := Parse(" Popular ")
	require.NoError(t, err)
	assert.Equal(t, Popular, s)

	_, err = Parse("hot")
	assert.ErrorIs(t, err, ErrUnknown)
}
