package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeAccountsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistry_LoadNormalizesHandles(t *testing.T) {
	t.Parallel()

	path := writeAccountsFile(t, "username\n@Creator\n  dancer  \nmusician\n")
	accounts, err := New(path, zap.NewNop()).Load()
	require.NoError(t, err)
	require.Equal(t, []Account{
		{Handle: "creator"},
		{Handle: "dancer"},
		{Handle: "musician"},
	}, accounts)
}

func TestRegistry_LoadSkipsBlanksAndComments(t *testing.T) {
	t.Parallel()

	path := writeAccountsFile(t, "creator\n\n# paused for now\n#dancer\nmusician\n")
	accounts, err := New(path, zap.NewNop()).Load()
	require.NoError(t, err)
	require.Equal(t, []Account{{Handle: "creator"}, {Handle: "musician"}}, accounts)
}

func TestRegistry_LoadDeduplicatesPreservingOrder(t *testing.T) {
	t.Parallel()

	path := writeAccountsFile(t, "creator\n@CREATOR\ndancer\ncreator\n")
	accounts, err := New(path, zap.NewNop()).Load()
	require.NoError(t, err)
	require.Equal(t, []Account{{Handle: "creator"}, {Handle: "dancer"}}, accounts)
}

func TestRegistry_LoadRejectsEntriesWithWhitespace(t *testing.T) {
	t.Parallel()

	path := writeAccountsFile(t, "creator\nbad handle\ndancer\n")
	accounts, err := New(path, zap.NewNop()).Load()
	require.NoError(t, err)
	require.Equal(t, []Account{{Handle: "creator"}, {Handle: "dancer"}}, accounts)
}

func TestRegistry_EmptyListIsConfigError(t *testing.T) {
	t.Parallel()

	path := writeAccountsFile(t, "username\n\n# nothing enabled\n")
	_, err := New(path, zap.NewNop()).Load()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, path, cfgErr.Path)
}

func TestRegistry_MissingFileIsConfigError(t *testing.T) {
	t.Parallel()

	_, err := New(filepath.Join(t.TempDir(), "absent.csv"), zap.NewNop()).Load()
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRegistry_HeaderOnlyOnFirstLine(t *testing.T) {
	t.Parallel()

	// "username" on a later line is a real handle, not a header.
	path := writeAccountsFile(t, "creator\nusername\n")
	accounts, err := New(path, zap.NewNop()).Load()
	require.NoError(t, err)
	require.Equal(t, []Account{{Handle: "creator"}, {Handle: "username"}}, accounts)
}
