package sysprompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skilltypes "github.com/openskills/skillagent/pkg/types/skills"
)

func TestRendererFromDir(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		renderer, err := RendererFromDir("  ")
		require.NoError(t, err)
		assert.Same(t, Default(), renderer)
	})

	t.Run("overrides by file name", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "capability_hint.tmpl"), []byte("Custom:{{ range . }} {{ .Name }}{{ end }}"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

		renderer, err := RendererFromDir(dir)
		require.NoError(t, err)

		out, err := renderer.CapabilityHint([]skilltypes.Metadata{{Name: "a"}}, 5)
		require.NoError(t, err)
		assert.Equal(t, "Custom: a", out)

		catalog, err := renderer.Catalog(nil)
		require.NoError(t, err)
		assert.Contains(t, catalog, "## Available Skills")
	})

	t.Run("invalid template falls back", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.tmpl"), []byte("{{ if }}"), 0o644))

		renderer, err := RendererFromDir(dir)
		require.Error(t, err)
		assert.Same(t, Default(), renderer)
	})

	t.Run("unknown template name", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "greeting.tmpl"), []byte("hi"), 0o644))

		renderer, err := RendererFromDir(dir)
		assert.ErrorContains(t, err, "unknown prompt templates")
		assert.Same(t, Default(), renderer)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.tmpl"), []byte{0xff, 0xfe}, 0o644))

		_, err := RendererFromDir(dir)
		assert.ErrorContains(t, err, "not valid UTF-8")
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := RendererFromDir(filepath.Join(t.TempDir(), "absent"))
		assert.ErrorContains(t, err, "failed to read template directory")
	})
}
