package workflow

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// StripFences removes fenced code block markup that model-backed services
// tend to wrap their output in.
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```sql", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// renormalize re-parses a rewritten candidate and, when parsing succeeds,
// replaces it with the statement-by-statement serialized form, canonicalizing
// whitespace and formatting. When parsing fails the stripped raw text is
// returned unchanged: the next review/verify cycle surfaces the problem
// through its own error path.
func renormalize(sqlText string) (string, bool) {
	parsed, err := pg_query.Parse(sqlText)
	if err != nil {
		return sqlText, false
	}

	var parts []string
	for _, raw := range parsed.Stmts {
		stmt := raw.GetStmt()
		if stmt == nil {
			continue
		}
		out, err := pg_query.Deparse(&pg_query.ParseResult{
			Stmts: []*pg_query.RawStmt{{Stmt: stmt}},
		})
		if err != nil {
			return sqlText, false
		}
		parts = append(parts, out+";")
	}
	if len(parts) == 0 {
		return sqlText, false
	}
	return strings.Join(parts, "\n"), true
}
