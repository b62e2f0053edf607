package diff

import "strings"

// Chunk is a portion of a diff small enough to audit in one inference call.
// Chunks contain whole files only; a file is never split across chunks.
type Chunk struct {
	Index int
	Files []string
	Text  string
}

// Split divides a parsed diff into chunks whose concatenated text stays
// under maxChars, cutting only at file boundaries. A single file larger
// than maxChars forms its own oversized chunk rather than being split or
// dropped. Splitting is deterministic and preserves file order.
func Split(parsed *ParsedDiff, maxChars int) []Chunk {
	total := 0
	for _, f := range parsed.Files {
		total += len(f.Text)
	}
	if maxChars <= 0 || total <= maxChars {
		return []Chunk{wholeChunk(parsed)}
	}

	var chunks []Chunk
	var text strings.Builder
	var files []string

	flush := func() {
		if text.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Files: files, Text: text.String()})
		text.Reset()
		files = nil
	}

	for _, f := range parsed.Files {
		if text.Len() > 0 && text.Len()+len(f.Text) > maxChars {
			flush()
		}
		text.WriteString(f.Text)
		files = append(files, f.Path)
	}
	flush()

	return chunks
}

func wholeChunk(parsed *ParsedDiff) Chunk {
	var text strings.Builder
	files := make([]string, 0, len(parsed.Files))
	for _, f := range parsed.Files {
		text.WriteString(f.Text)
		files = append(files, f.Path)
	}
	return Chunk{Index: 0, Files: files, Text: text.String()}
}
