package yaml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyword struct {
	Site    string `json:"site" fake:"example.com"`
	Keyword string `json:"keyword" fake:"seo audit"`
	Volume  int    `json:"volume" fake:"1200"`
}

func TestEncoder(t *testing.T) {
	enc := NewEncoder(keyword{})

	fi := enc.GetFormatInstructions()
	assert.Contains(t, fi, "Respond with YAML")
	assert.Contains(t, fi, "site: example.com\n")
	assert.Contains(t, fi, "keyword: seo audit\n")
	assert.Contains(t, fi, "volume: 1200\n")

	var k keyword
	require.NoError(t, enc.Unmarshal([]byte("```yaml\nsite: a.com\nkeyword: b\nvolume: 3\n```"), &k))
	assert.Equal(t, keyword{Site: "a.com", Keyword: "b", Volume: 3}, k)

	bs, err := enc.Marshal(k)
	require.NoError(t, err)
	assert.Equal(t, "keyword: b\nsite: a.com\nvolume: 3\n", string(bs))
}
