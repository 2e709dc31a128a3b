package scan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStringStart(t *testing.T) {
	s := `a="x\"y";`
	assert.True(t, IsStringStart(s, 2))
	assert.False(t, IsStringStart(s, 5)) // escaped
	assert.True(t, IsStringStart(s, 7))
	assert.False(t, IsStringStart(s, 0))
	assert.False(t, IsStringStart(s, 100))
}

func TestEscapedBackslashDoesNotEscapeQuote(t *testing.T) {
	s := `"a\\";b`
	assert.True(t, IsStringStart(s, 4))
	assert.False(t, InString(s, 5))
}

func TestScannerAgreement(t *testing.T) {
	s := `x={"{",{1,"}"},2};y="a\"{";z={}`
	for pos := 0; pos <= len(s); pos++ {
		parity := QuoteParity(s, pos)
		assert.Equal(t, parity&1 == 1, InString(s, pos), "pos %d", pos)
	}
	assert.Equal(t, 0, BraceDepth(s, len(s)))
	assert.Equal(t, 1, BraceDepth(s, strings.Index(s, `"{"`)))
	assert.Equal(t, 2, BraceDepth(s, strings.Index(s, "1")))
}

func TestCursorMatchesStateless(t *testing.T) {
	s := `a={1,{2,"}"}};b="{";`
	c := NewCursor(s)
	for pos := 0; pos <= len(s); pos++ {
		c.AdvanceTo(pos)
		require.Equal(t, BraceDepth(s, pos), c.Depth(), "pos %d", pos)
		require.Equal(t, QuoteParity(s, pos), c.Quotes(), "pos %d", pos)
	}
	c.AdvanceTo(0)
	assert.Equal(t, len(s), c.Pos())
}

func TestFindTopLevel(t *testing.T) {
	s := `{1,";"},{2};rest`
	assert.Equal(t, strings.LastIndex(s, ";"), FindTopLevel(s, 0, ';'))
	assert.Equal(t, 7, FindTopLevel(s, 0, ','))
	assert.Equal(t, -1, FindTopLevel("1,2}", 3, ','))
	assert.Equal(t, 6, MatchBrace(s, 0))
	assert.Equal(t, -1, MatchBrace(s, 1))
}

func TestSplitTopLevel(t *testing.T) {
	s := `1,{2,3},"a,b"`
	spans, ok := SplitTopLevel(s, ',')
	require.True(t, ok)
	var parts []string
	for _, sp := range spans {
		parts = append(parts, s[sp.Start:sp.End])
	}
	assert.Equal(t, []string{"1", "{2,3}", `"a,b"`}, parts)

	spans, ok = SplitTopLevel("", ',')
	assert.True(t, ok)
	assert.Empty(t, spans)

	_, ok = SplitTopLevel("1,{2", ',')
	assert.False(t, ok)
	_, ok = SplitTopLevel("1},2", ',')
	assert.False(t, ok)
}
