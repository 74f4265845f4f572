// Package artifact defines generated-output references and the workspace
// store that persists them.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Kind string

const (
	KindMarkdown Kind = "markdown"
	KindImage    Kind = "image"
	KindFile     Kind = "file"
	KindJSON     Kind = "json"
)

// Ref points at one generated output file.
type Ref struct {
	Kind     Kind   `json:"kind"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	MIMEType string `json:"mime_type,omitempty"`
}

// IsMarkdown reports whether the ref is a markdown artifact, using the kind
// first and falling back to mime and filename hints.
func IsMarkdown(a Ref) bool {
	if a.Kind == KindMarkdown {
		return true
	}
	if strings.Contains(strings.ToLower(a.MIMEType), "markdown") {
		return true
	}
	if strings.HasSuffix(strings.ToLower(a.Path), ".md") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(a.Name), ".md")
}

// Store writes artifacts under <workspace>/artifacts with timestamped,
// filesystem-safe names.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(workspace string) *Store {
	return &Store{
		dir: filepath.Join(workspace, "artifacts"),
		now: time.Now,
	}
}

// NewStoreAt is like NewStore but takes the artifacts directory directly and
// a clock, for tests.
func NewStoreAt(dir string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{dir: dir, now: now}
}

func (s *Store) Dir() string { return s.dir }

// SaveMarkdown writes body to a new .md file and returns its ref.
func (s *Store) SaveMarkdown(title, body string) (Ref, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Ref{}, err
	}
	name := fmt.Sprintf("%s__%s.md", Timestamp(s.now()), SafeFilename(title))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return Ref{}, err
	}
	return Ref{Kind: KindMarkdown, Name: name, Path: path, MIMEType: "text/markdown"}, nil
}

// Timestamp formats t the way all run outputs name themselves.
func Timestamp(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// SafeFilename strips characters that are unsafe on common filesystems.
func SafeFilename(name string) string {
	bad := []string{"<", ">", ":", "\"", "/", "\\", "|", "?", "*"}
	for _, b := range bad {
		name = strings.ReplaceAll(name, b, "_")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "file"
	}
	return name
}
