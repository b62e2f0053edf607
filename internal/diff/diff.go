// Package diff parses unified diffs into structured per-file change records.
package diff

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/arturoeanton/go-diff-auditor/internal/port"
)

// ChangeKind classifies how a file was changed.
type ChangeKind string

const (
	KindAdded    ChangeKind = "added"
	KindModified ChangeKind = "modified"
	KindDeleted  ChangeKind = "deleted"
	KindRenamed  ChangeKind = "renamed"
)

// Change is one file's change within a diff. Immutable once parsed.
type Change struct {
	Path     string
	OldPath  string
	Kind     ChangeKind
	Added    int
	Removed  int
	Language string
	Text     string // the file's diff section, headers included
}

// ParsedDiff is the ordered result of parsing one unified diff.
type ParsedDiff struct {
	Files        []Change
	TotalAdded   int
	TotalRemoved int
	Languages    []string // distinct known languages, sorted
}

// Limits bounds what the parser will accept. Zero values disable a limit.
type Limits struct {
	MaxBytes   int
	MaxLines   int
	MaxLineLen int
	MaxFiles   int
}

var languageByExt = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".go":    "go",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".c":     "c",
	".cpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".kt":    "kotlin",
	".sql":   "sql",
	".sh":    "bash",
	".yml":   "yaml",
	".yaml":  "yaml",
	".json":  "json",
	".html":  "html",
	".css":   "css",
}

// Parse turns raw unified-diff text into a ParsedDiff. The size guards run
// before any parsing so oversized input fails fast.
func Parse(raw string, limits Limits) (*ParsedDiff, error) {
	if limits.MaxBytes > 0 && len(raw) > limits.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", port.ErrDiffTooLarge, len(raw), limits.MaxBytes)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, port.ErrEmptyDiff
	}
	if limits.MaxLines > 0 || limits.MaxLineLen > 0 {
		lines := strings.Split(raw, "\n")
		if limits.MaxLines > 0 && len(lines) > limits.MaxLines {
			return nil, fmt.Errorf("%w: %d lines (max %d)", port.ErrTooManyLines, len(lines), limits.MaxLines)
		}
		if limits.MaxLineLen > 0 {
			for i, line := range lines {
				if len(line) > limits.MaxLineLen {
					return nil, fmt.Errorf("%w: line %d has %d chars (max %d)", port.ErrLineTooLong, i+1, len(line), limits.MaxLineLen)
				}
			}
		}
	}

	files, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrMalformedDiff, err)
	}
	if len(files) == 0 {
		return nil, port.ErrEmptyDiff
	}
	if limits.MaxFiles > 0 && len(files) > limits.MaxFiles {
		return nil, fmt.Errorf("%w: %d files (max %d)", port.ErrTooManyFiles, len(files), limits.MaxFiles)
	}

	parsed := &ParsedDiff{Files: make([]Change, 0, len(files))}
	langs := make(map[string]bool)
	for _, f := range files {
		c := buildChange(f)
		parsed.TotalAdded += c.Added
		parsed.TotalRemoved += c.Removed
		if c.Language != "unknown" {
			langs[c.Language] = true
		}
		parsed.Files = append(parsed.Files, c)
	}
	for lang := range langs {
		parsed.Languages = append(parsed.Languages, lang)
	}
	sort.Strings(parsed.Languages)

	return parsed, nil
}

func buildChange(f *gitdiff.File) Change {
	c := Change{
		Path:    f.NewName,
		OldPath: f.OldName,
		Kind:    KindModified,
	}
	switch {
	case f.IsNew:
		c.Kind = KindAdded
	case f.IsDelete:
		c.Kind = KindDeleted
		c.Path = f.OldName
	case f.IsRename:
		c.Kind = KindRenamed
	}
	if c.Path == "" {
		c.Path = f.OldName
	}
	c.Language = detectLanguage(c.Path)

	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", headerPath(f.OldName, c.Path), headerPath(f.NewName, c.Path))
	for _, frag := range f.TextFragments {
		b.WriteString(fragmentHeader(frag))
		for _, line := range frag.Lines {
			switch line.Op {
			case gitdiff.OpAdd:
				b.WriteString("+")
				c.Added++
			case gitdiff.OpDelete:
				b.WriteString("-")
				c.Removed++
			default:
				b.WriteString(" ")
			}
			b.WriteString(line.Line)
			if !strings.HasSuffix(line.Line, "\n") {
				b.WriteString("\n")
			}
		}
	}
	c.Text = b.String()
	return c
}

func headerPath(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

func fragmentHeader(frag *gitdiff.TextFragment) string {
	old := fmt.Sprintf("-%d", frag.OldPosition)
	if frag.OldLines != 1 {
		old += fmt.Sprintf(",%d", frag.OldLines)
	}
	updated := fmt.Sprintf("+%d", frag.NewPosition)
	if frag.NewLines != 1 {
		updated += fmt.Sprintf(",%d", frag.NewLines)
	}
	header := fmt.Sprintf("@@ %s %s @@", old, updated)
	if frag.Comment != "" {
		header += " " + frag.Comment
	}
	return header + "\n"
}

func detectLanguage(path string) string {
	if lang, ok := languageByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "unknown"
}
