package toml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyword struct {
	Site    string `toml:"site" fake:"example.com"`
	Keyword string `toml:"keyword" fake:"seo audit"`
}

func TestEncoder(t *testing.T) {
	enc := NewEncoder(keyword{})

	fi := enc.GetFormatInstructions()
	assert.Contains(t, fi, "Respond with TOML")
	assert.Contains(t, fi, `site = "example.com"`)
	assert.Contains(t, fi, `keyword = "seo audit"`)

	var k keyword
	require.NoError(t, enc.Unmarshal([]byte("```toml\nsite = \"a.com\"\nkeyword = \"b\"\n```"), &k))
	assert.Equal(t, keyword{Site: "a.com", Keyword: "b"}, k)
}
