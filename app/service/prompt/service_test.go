package prompt

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEmbedded(t *testing.T) {
	s := NewService("", time.Minute)

	for _, name := range []string{Classifier, Extractor, Chat, Protocol, Edit} {
		text, err := s.Get(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, text, name)
	}

	_, err := s.Get("missing")
	assert.Error(t, err)
}

func TestOverrideAndInvalidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Chat+".txt")
	require.NoError(t, os.WriteFile(path, []byte("v1 {messages}"), 0644))

	s := NewService(dir, time.Hour)

	text, err := s.Get(Chat)
	require.NoError(t, err)
	assert.Equal(t, "v1 {messages}", text)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))

	text, _ = s.Get(Chat)
	assert.Equal(t, "v1 {messages}", text, "cached value is served until invalidated")

	s.Invalidate(Chat)
	text, _ = s.Get(Chat)
	assert.Equal(t, "v2", text)

	require.NoError(t, os.Remove(path))
	s.Invalidate("")
	text, _ = s.Get(Chat)
	assert.Contains(t, text, "{messages}", "falls back to the embedded default")
}

func TestRender(t *testing.T) {
	got := Render("{a} и {b}, снова {a}", map[string]any{"a": 1, "b": "два"})
	assert.Equal(t, "1 и два, снова 1", got)
}
