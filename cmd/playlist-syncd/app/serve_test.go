package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterline/playlist-sync-server/internal/config"
)

func TestLoadAdminToken(t *testing.T) {
	t.Parallel()

	t.Run("reads and trims token file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "admin-token")
		require.NoError(t, os.WriteFile(path, []byte("  secret-token\n"), 0600))

		cfg := &config.Config{Server: config.ServerConfig{AdminTokenFile: path}}
		assert.Equal(t, "secret-token", loadAdminToken(cfg))
	})

	t.Run("unset path disables admin routes", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{}
		assert.Empty(t, loadAdminToken(cfg))
	})

	t.Run("unreadable file disables admin routes", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{Server: config.ServerConfig{AdminTokenFile: "/nonexistent/token"}}
		assert.Empty(t, loadAdminToken(cfg))
	})
}
