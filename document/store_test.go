package document

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenUpdateClose(t *testing.T) {
	store, err := NewStore("")
	require.NoError(t, err)
	defer store.Close()

	doc, err := store.Open("file:///a.sql", "select 1;")
	require.NoError(t, err)
	require.Empty(t, doc.Connection)

	require.NoError(t, store.UpdateText("file:///a.sql", "select 2;"))
	text, err := store.Text("file:///a.sql")
	require.NoError(t, err)
	require.Equal(t, "select 2;", text)

	store.CloseDocument("file:///a.sql")
	_, err = store.Text("file:///a.sql")
	require.ErrorIs(t, err, ErrNotTracked)

	require.ErrorIs(t, store.UpdateText("file:///a.sql", "x"), ErrNotTracked)
}

func TestChooseAndForget(t *testing.T) {
	store, err := NewStore("")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Open("doc", "")
	require.NoError(t, err)

	_, ok := store.Connection("doc")
	require.False(t, ok)

	require.NoError(t, store.Choose("doc", "app@prod"))
	name, ok := store.Connection("doc")
	require.True(t, ok)
	require.Equal(t, "app@prod", name)

	require.NoError(t, store.Forget("doc"))
	_, ok = store.Connection("doc")
	require.False(t, ok)

	require.Error(t, store.Choose("", "x"))
	require.Error(t, store.Choose("doc", ""))
}

func TestChoicePersistsAcrossSessions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	store, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Choose("file:///a.sql", "scott@orcl"))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	// without opening the document first
	name, ok := reopened.Connection("file:///a.sql")
	require.True(t, ok)
	require.Equal(t, "scott@orcl", name)

	// restored on open too
	doc, err := reopened.Open("file:///a.sql", "")
	require.NoError(t, err)
	require.Equal(t, "scott@orcl", doc.Connection)
}
