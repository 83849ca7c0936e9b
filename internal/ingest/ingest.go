// Package ingest parses flattened repository dumps ("ingest files") into
// an ordered path-to-content mapping.
//
// The ingest format is produced by an external flattening tool: a marker
// line of the form "FILE: <path>" introduces each file, followed by the
// file's content until the next marker or end of input. Separator lines of
// repeated '=' characters and the directory-structure preamble are
// skipped. The parser preserves marker order because downstream chunk IDs
// and vector-index positions depend on a stable file enumeration order.
package ingest

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"coderag/pkg/types"
)

const (
	fileMarker         = "FILE: "
	directoryPreamble  = "Directory structure:"
	minSeparatorLength = 10
)

// Repository is the parsed form of one ingest file: an immutable mapping
// from POSIX-style relative file path to raw text content, enumerable in
// the order markers appeared in the source text.
type Repository struct {
	paths []string
	files map[string]string
}

// Paths returns file paths in marker order. The returned slice must not be
// modified.
func (r *Repository) Paths() []string {
	return r.paths
}

// Content returns the raw content for a path.
func (r *Repository) Content(path string) (string, bool) {
	content, ok := r.files[path]
	return content, ok
}

// Len returns the number of parsed files.
func (r *Repository) Len() int {
	return len(r.paths)
}

// ParseFile reads and parses an ingest file from disk. Undecodable bytes
// are substituted rather than failing the whole parse.
func ParseFile(path string) (*Repository, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ingest file: %w", err)
	}
	return Parse(string(raw))
}

// Parse extracts all file sections from ingest text. Empty sections are
// dropped and the directory-structure preamble is skipped. Returns
// types.ErrNoFileMarkers when the text contains no recognizable markers.
func Parse(content string) (*Repository, error) {
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, string(utf8.RuneError))
	}

	repo := &Repository{files: make(map[string]string)}

	var (
		currentFile string
		currentBody []string
		inFile      bool
	)

	flush := func() {
		if currentFile == "" || len(currentBody) == 0 {
			return
		}
		// Trim trailing blank lines from the section body.
		body := currentBody
		for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
			body = body[:len(body)-1]
		}
		if len(body) == 0 {
			return
		}
		if _, seen := repo.files[currentFile]; !seen {
			repo.paths = append(repo.paths, currentFile)
		}
		repo.files[currentFile] = strings.Join(body, "\n")
	}

	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, fileMarker):
			flush()
			currentFile = strings.TrimSpace(strings.TrimPrefix(line, fileMarker))
			currentBody = currentBody[:0]
			inFile = true

		case isSeparator(line):
			// Marker framing, not content.

		case strings.HasPrefix(line, directoryPreamble):
			flush()
			currentFile = ""
			inFile = false

		case inFile && currentFile != "":
			currentBody = append(currentBody, line)
		}
	}
	flush()

	if len(repo.paths) == 0 {
		return nil, types.ErrNoFileMarkers
	}
	return repo, nil
}

func isSeparator(line string) bool {
	if len(line) <= minSeparatorLength || !strings.HasPrefix(line, "=") {
		return false
	}
	return strings.TrimRight(line, "=") == ""
}
