package sessiondata

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saiid2001/login-security-landscape/internal/domain"
)

func writeBlob(t *testing.T, dir, name, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0o644)
	require.NoError(t, err)
}

func TestFileStore_Load(t *testing.T) {
	dir := t.TempDir()
	writeBlob(t, dir, "session-1", `{"cookies":[{"name":"sid","value":"abc"}]}`)
	store := NewFileStore(dir)

	data, err := store.Load(context.Background(), "session-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cookies":[{"name":"sid","value":"abc"}]}`, string(data))
}

func TestFileStore_MissingBlob(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, err := store.Load(context.Background(), "session-1")
	assert.ErrorIs(t, err, domain.ErrSessionDataMissing)
}

func TestFileStore_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeBlob(t, dir, "session-1", `{"cookies":`)
	store := NewFileStore(dir)

	_, err := store.Load(context.Background(), "session-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSessionDataMissing,
		"a corrupt blob is a different failure than a missing one")
}
