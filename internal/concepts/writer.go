package concepts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ppiankov/aclarai/internal/model"
)

// FileWriter writes one Markdown file per concept into a directory
type FileWriter struct {
	dir string
}

// NewFileWriter creates a writer for dir, created on first write
func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{dir: dir}
}

// Dir returns the target directory
func (w *FileWriter) Dir() string { return w.dir }

// Write renders c and writes it atomically. An existing file for a different
// concept with the same title gets a suffixed name instead of being replaced.
func (w *FileWriter) Write(c model.Concept) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("create concepts dir: %w", err)
	}

	path := filepath.Join(w.dir, Slug(c.Text)+".md")
	if existing, err := os.ReadFile(path); err == nil && !strings.Contains(string(existing), "id="+c.ID+" ") {
		path = filepath.Join(w.dir, fmt.Sprintf("%s-%s.md", Slug(c.Text), shortID(c.ID)))
	}

	if err := writeFileAtomic(path, []byte(RenderConcept(c))); err != nil {
		return "", fmt.Errorf("write concept %s: %w", c.ID, err)
	}
	return path, nil
}

// RenderConcept returns the Markdown for a concept file. The trailing
// version comment makes the file a file-level block for vault sync.
func RenderConcept(c model.Concept) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", c.Text)
	fmt.Fprintf(&sb, "Concept promoted from a %s node.\n\n", c.SourceNodeType)
	fmt.Fprintf(&sb, "- Source node: `%s`\n", c.SourceNodeID)
	fmt.Fprintf(&sb, "- Candidate: `%s`\n", c.SourceCandidateID)
	if c.AclaraiID != "" {
		fmt.Fprintf(&sb, "- Document: `%s`\n", c.AclaraiID)
	}
	fmt.Fprintf(&sb, "- Created: %s\n", c.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&sb, "\n<!-- aclarai:id=%s ver=%d -->\n", c.ID, max(c.Version, 1))
	return sb.String()
}

// Slug turns a concept title into a file name stem
func Slug(text string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			dash = false
		case !dash && sb.Len() > 0:
			sb.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(sb.String(), "-")
	if r := []rune(s); len(r) > 80 {
		s = strings.TrimSuffix(string(r[:80]), "-")
	}
	if s == "" {
		s = "concept"
	}
	return s
}

func shortID(id string) string {
	id = strings.TrimPrefix(id, "concept_")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// writeFileAtomic writes to a temp file in the same directory and renames it over path
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
