package dialect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	d, err := Parse(" Oracle ")
	require.NoError(t, err)
	require.Equal(t, Oracle, d)

	_, err = Parse("sqlite")
	require.Error(t, err)
}

func TestBuildArgsSuffixesLastElement(t *testing.T) {
	args, err := BuildArgs([]string{"sqlplus", "-s", "scott/tiger@db", "@"}, "/tmp/q.sql")
	require.NoError(t, err)
	require.Equal(t, []string{"sqlplus", "-s", "scott/tiger@db", "@/tmp/q.sql"}, args)

	args, err = BuildArgs([]string{"mysql", "-B", "-D", "app", "-e source "}, "/tmp/q.sql")
	require.NoError(t, err)
	require.Equal(t, "-e source /tmp/q.sql", args[len(args)-1])

	_, err = BuildArgs(nil, "/tmp/q.sql")
	require.Error(t, err)
}

func TestBuildArgsCopiesTemplate(t *testing.T) {
	template := []string{"psql", "-f "}
	_, err := BuildArgs(template, "a.sql")
	require.NoError(t, err)
	// template must stay reusable across runs
	require.Equal(t, []string{"psql", "-f "}, template)
}

func TestWrapExplain(t *testing.T) {
	oracle := WrapExplain(Oracle, "select * from emp")
	require.Contains(t, oracle, "explain plan for select * from emp")
	require.Contains(t, oracle, "dbms_xplan.display")

	require.Equal(t, "explain select 1", WrapExplain(Postgres, "select 1"))
	require.Equal(t, "explain select 1", WrapExplain(MySQL, "select 1"))
}
