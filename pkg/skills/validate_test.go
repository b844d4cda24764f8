package skills

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	root := t.TempDir()
	good := writeSkill(t, root, "good", skillDoc("good", "Valid skill", "body",
		"scripts:\n  - name: run\n    path: run.sh\n"))
	writeFile(t, filepath.Join(root, "good", "run.sh"), "echo ok")
	writeSkill(t, root, "missing-script", skillDoc("missing-script", "Declares a missing script", "body",
		"scripts:\n  - name: run\n    path: run.sh\n"))
	writeSkill(t, root, "missing-ref", skillDoc("missing-ref", "Declares a missing reference", "body",
		"references:\n  - references/nope.md\n"))
	writeSkill(t, root, "no-description", "---\nname: no-description\n---\n")

	t.Run("root directory", func(t *testing.T) {
		valid, err := Validate(root)
		require.Error(t, err)
		require.Len(t, valid, 1)
		assert.Equal(t, "good", valid[0].Name())
		assert.True(t, valid[0].IsInstructionLoaded())

		msg := err.Error()
		assert.Contains(t, msg, `missing-script: script "run": run.sh missing`)
		assert.Contains(t, msg, "missing-ref: reference references/nope.md missing")
		assert.Contains(t, msg, "skill description is required")
	})

	t.Run("single file", func(t *testing.T) {
		valid, err := Validate(good)
		require.NoError(t, err)
		require.Len(t, valid, 1)
	})

	t.Run("skill directory", func(t *testing.T) {
		valid, err := Validate(filepath.Join(root, "good"))
		require.NoError(t, err)
		require.Len(t, valid, 1)
	})

	t.Run("nothing found", func(t *testing.T) {
		_, err := Validate(t.TempDir(), filepath.Join(root, "absent"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no SKILL.md found")
		assert.Contains(t, err.Error(), "cannot access")
	})
}
