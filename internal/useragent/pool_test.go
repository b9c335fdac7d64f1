package useragent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPool(t *testing.T) {
	t.Parallel()

	p := Default()
	require.Positive(t, p.Len())
	assert.NotEmpty(t, p.Random())
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "agents.json")
	require.NoError(t, os.WriteFile(path, []byte(`["agent-a","agent-b"]`), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
	assert.Contains(t, []string{"agent-a", "agent-b"}, p.Random())
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	t.Parallel()

	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Len(), p.Len())
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
}
