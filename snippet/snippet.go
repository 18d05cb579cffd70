// Package snippet locates the SQL statement under the cursor. A statement is
// the contiguous block of non-blank lines bounded by blank lines or the
// document edges.
package snippet

import (
	"errors"
	"strings"
)

// ErrSnippetEmpty reports that the selected range contains no executable text.
var ErrSnippetEmpty = errors.New("no statement at cursor")

// Range is an inclusive line range within a document.
type Range struct {
	Start int
	End   int
}

// StatementAt returns the line range of the statement surrounding the cursor
// line. The cursor is clamped to the document bounds. A cursor on a blank
// line selects just that line; Extract will reject it as empty.
func StatementAt(lines []string, cursor int) Range {
	if len(lines) == 0 {
		return Range{}
	}
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(lines) {
		cursor = len(lines) - 1
	}
	if blank(lines[cursor]) {
		return Range{Start: cursor, End: cursor}
	}
	start := cursor
	for start > 0 && !blank(lines[start-1]) {
		start--
	}
	end := cursor
	for end < len(lines)-1 && !blank(lines[end+1]) {
		end++
	}
	return Range{Start: start, End: end}
}

// Extract joins the ranged lines back into statement text. It fails with
// ErrSnippetEmpty when the range holds nothing but whitespace.
func Extract(lines []string, rng Range) (string, error) {
	if len(lines) == 0 || rng.Start > rng.End {
		return "", ErrSnippetEmpty
	}
	start, end := rng.Start, rng.End
	if start < 0 {
		start = 0
	}
	if end >= len(lines) {
		end = len(lines) - 1
	}
	text := strings.Join(lines[start:end+1], "\n")
	if strings.TrimSpace(text) == "" {
		return "", ErrSnippetEmpty
	}
	return text, nil
}

// Split breaks document text into lines without treating a trailing newline
// as an extra empty line.
func Split(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

func blank(line string) bool {
	return strings.TrimSpace(line) == ""
}
