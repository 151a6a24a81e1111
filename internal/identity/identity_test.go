package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
users:
  - id: 9f8e7d6c5b4a
    display_name: Diego
  - id: user-2
    display_name: Sara
    is_active: false
  - id: supervisor
    is_system_generated: true
`

func TestFileListUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	users, err := File{Path: path}.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)

	assert.Equal(t, "Diego", users[0].DisplayName)
	assert.True(t, users[0].IsActive)
	assert.False(t, users[1].IsActive)
	assert.True(t, users[2].IsSystemGenerated)
	assert.Empty(t, users[2].DisplayName)
}

func TestParseRequiresID(t *testing.T) {
	_, err := Parse([]byte("users:\n  - display_name: nobody\n"))
	require.Error(t, err)
}

func TestFileMissing(t *testing.T) {
	_, err := File{Path: filepath.Join(t.TempDir(), "nope.yaml")}.ListUsers(context.Background())
	require.Error(t, err)
}
