// Package dialect captures the argument and explain-plan conventions of the
// supported command-line database clients.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect identifies a database CLI family.
type Dialect string

const (
	Oracle   Dialect = "oracle"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// Known lists the supported dialects.
func Known() []Dialect {
	return []Dialect{Oracle, Postgres, MySQL}
}

// Parse validates a dialect tag from configuration.
func Parse(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case Oracle:
		return Oracle, nil
	case Postgres:
		return Postgres, nil
	case MySQL:
		return MySQL, nil
	default:
		return "", fmt.Errorf("unknown dialect %q", s)
	}
}

// BuildArgs produces the argv for running inputPath through the client. The
// path is suffixed to the last template element rather than appended as a new
// argument: sqlplus wants "@file", psql "-f file" works either way, and mysql
// needs the path inside its "-e source " string.
func BuildArgs(template []string, inputPath string) ([]string, error) {
	if len(template) == 0 {
		return nil, fmt.Errorf("empty command template")
	}
	args := make([]string, len(template))
	copy(args, template)
	args[len(args)-1] = args[len(args)-1] + inputPath
	return args, nil
}

// WrapExplain rewrites a statement into the dialect's explain-plan form.
// Oracle needs the dbms_xplan epilogue to print the plan; the other clients
// return it directly from EXPLAIN.
func WrapExplain(d Dialect, stmt string) string {
	switch d {
	case Oracle:
		var b strings.Builder
		b.WriteString("explain plan for ")
		b.WriteString(stmt)
		b.WriteString("\nset heading off")
		b.WriteString("\nselect * from table(dbms_xplan.display);")
		return b.String()
	default:
		return "explain " + stmt
	}
}
