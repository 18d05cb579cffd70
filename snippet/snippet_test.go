package snippet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatementAt(t *testing.T) {
	lines := []string{"a", "b", "", "c"}

	require.Equal(t, Range{Start: 0, End: 1}, StatementAt(lines, 0))
	require.Equal(t, Range{Start: 0, End: 1}, StatementAt(lines, 1))
	require.Equal(t, Range{Start: 3, End: 3}, StatementAt(lines, 3))
}

func TestStatementAtBlankLine(t *testing.T) {
	lines := []string{"a", "b", "", "c"}
	require.Equal(t, Range{Start: 2, End: 2}, StatementAt(lines, 2))

	_, err := Extract(lines, Range{Start: 2, End: 2})
	require.ErrorIs(t, err, ErrSnippetEmpty)
}

func TestStatementAtClampsCursor(t *testing.T) {
	lines := []string{"select 1;"}
	require.Equal(t, Range{Start: 0, End: 0}, StatementAt(lines, -5))
	require.Equal(t, Range{Start: 0, End: 0}, StatementAt(lines, 99))
	require.Equal(t, Range{}, StatementAt(nil, 0))
}

func TestStatementAtWhitespaceBoundary(t *testing.T) {
	lines := []string{"select *", "from t;", "  \t", "select 2;"}
	require.Equal(t, Range{Start: 0, End: 1}, StatementAt(lines, 1))
	require.Equal(t, Range{Start: 3, End: 3}, StatementAt(lines, 3))
}

func TestExtract(t *testing.T) {
	lines := []string{"select *", "from t;", "", "select 2;"}

	text, err := Extract(lines, Range{Start: 0, End: 1})
	require.NoError(t, err)
	require.Equal(t, "select *\nfrom t;", text)

	_, err = Extract(nil, Range{})
	require.ErrorIs(t, err, ErrSnippetEmpty)

	_, err = Extract(lines, Range{Start: 2, End: 1})
	require.ErrorIs(t, err, ErrSnippetEmpty)
}

func TestSplit(t *testing.T) {
	require.Nil(t, Split(""))
	require.Equal(t, []string{"a", "b"}, Split("a\nb\n"))
	require.Equal(t, []string{"a", "", "b"}, Split("a\n\nb"))
}
