package sysprompt

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// RendererFromDir returns a renderer whose templates are overridden by the
// *.tmpl files in dir, matched by file name (e.g. catalog.tmpl). An empty
// dir yields the default renderer.
func RendererFromDir(dir string) (*Renderer, error) {
	if strings.TrimSpace(dir) == "" {
		return defaultRenderer, nil
	}

	resolved, err := resolveTemplateDir(dir)
	if err != nil {
		return defaultRenderer, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return defaultRenderer, errors.Wrapf(err, "failed to read template directory %s", resolved)
	}

	overrides := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".tmpl" {
			continue
		}
		content, err := loadTemplateContent(filepath.Join(resolved, entry.Name()))
		if err != nil {
			return defaultRenderer, err
		}
		overrides["templates/"+entry.Name()] = content
	}

	renderer := NewRendererWithTemplateOverride(TemplateFS, overrides)
	if renderer.parseErr != nil {
		return defaultRenderer, errors.Wrapf(renderer.parseErr, "failed to parse templates in %s", resolved)
	}
	return renderer, nil
}

func resolveTemplateDir(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if strings.ContainsRune(trimmed, '\x00') {
		return "", errors.New("template path contains null byte")
	}

	expanded, err := expandHomePath(trimmed)
	if err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve template path %s", trimmed)
	}
	return filepath.Clean(absPath), nil
}

func loadTemplateContent(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to stat template %s", path)
	}
	if !info.Mode().IsRegular() {
		return "", errors.Errorf("template %s must be a regular file", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read template %s", path)
	}
	if !utf8.Valid(content) {
		return "", errors.Errorf("template %s is not valid UTF-8", path)
	}
	return string(content), nil
}

func expandHomePath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve home directory for template path")
	}

	if path == "~" {
		return homeDir, nil
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:]), nil
	}
	return "", errors.Errorf("unsupported template path format: %s", path)
}
