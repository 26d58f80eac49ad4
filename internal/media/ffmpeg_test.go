package media

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteConcatFileEscapesSingleQuotes(t *testing.T) {
	path, err := WriteConcatFile([]string{"/x/it's a clip.mp4", "/x/plain.mp4"})
	require.NoError(t, err)
	defer os.Remove(path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `file '/x/it'\''s a clip.mp4'`)
	assert.Contains(t, string(content), `file '/x/plain.mp4'`)
}
