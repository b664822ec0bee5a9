package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	out, err = RenderTemplate(`Q: {{.query}} A: {{truncate 3 .answer}} {{default "x" .missing}}`, map[string]any{
		"query":  "<b>hi</b>",
		"answer": "你好世界",
	})
	require.NoError(t, err)
	assert.Equal(t, "Q: <b>hi</b> A: 你好世 x", out, "no html escaping")

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate(5, "abc"))
	assert.Equal(t, "ab", Truncate(2, "abc"))
	assert.Equal(t, "", Truncate(-1, "abc"))
}
