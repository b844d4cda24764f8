package skills

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// FrontMatterParser splits a definition document into its structured header
// and free-text body. A document without a header yields empty fields.
type FrontMatterParser interface {
	Parse(content []byte) (fields map[string]any, body string, err error)
}

// GoldmarkFrontMatter reads YAML front matter through goldmark-meta.
type GoldmarkFrontMatter struct {
	md goldmark.Markdown
}

// NewGoldmarkFrontMatter creates the default front-matter parser.
func NewGoldmarkFrontMatter() *GoldmarkFrontMatter {
	return &GoldmarkFrontMatter{
		md: goldmark.New(goldmark.WithExtensions(meta.Meta)),
	}
}

// Parse implements FrontMatterParser.
func (g *GoldmarkFrontMatter) Parse(content []byte) (map[string]any, string, error) {
	doc := strings.ReplaceAll(string(content), "\r\n", "\n")
	doc = strings.TrimLeft(doc, "\ufeff \t\n")

	pctx := parser.NewContext()
	g.md.Parser().Parse(text.NewReader([]byte(doc)), parser.WithContext(pctx))

	raw, err := meta.TryGet(pctx)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to parse front matter")
	}

	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[k] = normalize(v)
	}
	return fields, strings.TrimSpace(extractBodyContent(doc)), nil
}

// extractBodyContent removes the front matter block and returns the body.
func extractBodyContent(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[i+1:], "\n")
		}
	}
	return content
}

// normalize turns the map[interface{}]interface{} values produced by the YAML
// decoder into map[string]any, recursively.
func normalize(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
