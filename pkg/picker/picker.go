// Package picker is how the flow controllers obtain a path from the user,
// either through an interactive prompt or a drop gesture.
package picker

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type Kind int

const (
	File Kind = iota
	Directory
)

func (k Kind) String() string {
	if k == Directory {
		return "directory"
	}
	return "file"
}

// Filter is a named group of accepted extensions, without the leading dot.
type Filter struct {
	Name       string
	Extensions []string
}

// Constraints describe what a prompt may return.
type Constraints struct {
	Kind    Kind
	Title   string
	Filters []Filter
}

// DefaultFileConstraints accepts the file types offered by the share dialog.
func DefaultFileConstraints() Constraints {
	return Constraints{
		Kind:  File,
		Title: "Select a file to share",
		Filters: []Filter{
			{Name: "Documents", Extensions: []string{"txt", "pdf", "doc", "docx", "xls", "xlsx", "csv"}},
			{Name: "Images", Extensions: []string{"jpg", "jpeg", "png", "gif"}},
			{Name: "Audio", Extensions: []string{"mp3"}},
			{Name: "Video", Extensions: []string{"mp4"}},
			{Name: "Archives", Extensions: []string{"zip", "rar", "7z", "tar", "gz"}},
		},
	}
}

// DirectoryConstraints asks for a destination directory.
func DirectoryConstraints() Constraints {
	return Constraints{
		Kind:  Directory,
		Title: "Select a destination folder",
	}
}

// WithExtensions replaces the filters with a single group. An empty list accepts every file.
func (c Constraints) WithExtensions(exts []string) Constraints {
	if len(exts) == 0 {
		c.Filters = nil
		return c
	}
	c.Filters = []Filter{{Name: "Accepted", Extensions: exts}}
	return c
}

// Extensions flattens all filter groups.
func (c Constraints) Extensions() []string {
	var out []string
	for _, f := range c.Filters {
		out = append(out, f.Extensions...)
	}
	return out
}

// Accepts reports whether path may be returned under c. Files whose extension is not
// listed are sniffed, so a renamed PDF still matches.
func (c Constraints) Accepts(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if c.Kind == Directory {
		return info.IsDir()
	}
	if info.IsDir() {
		return false
	}
	exts := c.Extensions()
	if len(exts) == 0 {
		return true
	}
	if matchExtension(filepath.Ext(path), exts) {
		return true
	}
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	return matchExtension(mime.Extension(), exts)
}

func matchExtension(ext string, exts []string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}

// Source yields a single absolute path. ok is false when the user cancelled,
// which is not an error.
type Source interface {
	SelectPath(ctx context.Context, c Constraints) (path string, ok bool, err error)
}

// StaticSource always answers with Path. An empty Path behaves like a cancelled prompt.
type StaticSource struct {
	Path string
}

func (s StaticSource) SelectPath(ctx context.Context, _ Constraints) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if s.Path == "" {
		return "", false, nil
	}
	abs, err := filepath.Abs(s.Path)
	if err != nil {
		return "", false, err
	}
	return abs, true, nil
}
