package verifier

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Category is the closed set of execution-safety classes a statement can
// fall into. Classification is a pure function of the parsed statement, so
// the same statement always lands in the same class.
type Category int

const (
	// CategorySafe covers read-only statements, primarily queries.
	CategorySafe Category = iota
	// CategoryDangerous covers schema- or data-mutating statements.
	CategoryDangerous
	// CategoryProcedural covers stored procedure and code block invocations.
	CategoryProcedural
)

func (c Category) String() string {
	switch c {
	case CategorySafe:
		return "safe"
	case CategoryDangerous:
		return "dangerous"
	case CategoryProcedural:
		return "procedural"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ClassifiedStatement is one statement of a script with its safety class.
type ClassifiedStatement struct {
	Text     string
	Category Category
}

// Classify determines the safety class of one parsed statement. The node kind
// decides for everything the parser models explicitly; a leading-keyword check
// backstops constructs that surface as generic utility nodes.
func Classify(text string, stmt *pg_query.Node) Category {
	if stmt != nil {
		switch {
		case stmt.GetCallStmt() != nil,
			stmt.GetDoStmt() != nil,
			stmt.GetExecuteStmt() != nil:
			return CategoryProcedural

		case stmt.GetInsertStmt() != nil,
			stmt.GetUpdateStmt() != nil,
			stmt.GetDeleteStmt() != nil,
			stmt.GetMergeStmt() != nil,
			stmt.GetTruncateStmt() != nil,
			stmt.GetCreateStmt() != nil,
			stmt.GetCreateTableAsStmt() != nil,
			stmt.GetCreateSchemaStmt() != nil,
			stmt.GetCreateSeqStmt() != nil,
			stmt.GetCreateFunctionStmt() != nil,
			stmt.GetCreateTrigStmt() != nil,
			stmt.GetViewStmt() != nil,
			stmt.GetIndexStmt() != nil,
			stmt.GetAlterTableStmt() != nil,
			stmt.GetRenameStmt() != nil,
			stmt.GetDropStmt() != nil,
			stmt.GetGrantStmt() != nil,
			stmt.GetCopyStmt() != nil,
			stmt.GetVacuumStmt() != nil,
			stmt.GetReindexStmt() != nil,
			stmt.GetClusterStmt() != nil,
			stmt.GetLockStmt() != nil:
			return CategoryDangerous
		}
	}
	return classifyKeyword(text)
}

// classifyKeyword is the fallback for statements the node switch does not
// cover, keyed on the first word of the statement text.
func classifyKeyword(text string) Category {
	fields := strings.Fields(strings.ToUpper(text))
	if len(fields) == 0 {
		return CategorySafe
	}
	switch fields[0] {
	case "CALL", "EXEC", "EXECUTE", "DO":
		return CategoryProcedural
	case "INSERT", "UPDATE", "DELETE", "MERGE", "TRUNCATE", "DROP", "ALTER", "CREATE", "GRANT", "REVOKE",
		"VACUUM", "REINDEX", "CLUSTER", "LOCK", "ANALYZE":
		return CategoryDangerous
	}
	return CategorySafe
}

// splitAndClassify parses the script, splits it into individually
// re-serializable statements, and classifies each one. A parse failure aborts
// the whole script; no partial statement list is produced.
func splitAndClassify(script string) ([]ClassifiedStatement, error) {
	texts, err := pg_query.SplitWithParser(script, true)
	if err != nil {
		return nil, fmt.Errorf("SQL parse error: %w", err)
	}

	parsed, err := pg_query.Parse(script)
	if err != nil {
		return nil, fmt.Errorf("SQL parse error: %w", err)
	}

	var statements []ClassifiedStatement
	raw := parsed.Stmts
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		var node *pg_query.Node
		if i < len(raw) {
			node = raw[i].GetStmt()
		}
		statements = append(statements, ClassifiedStatement{
			Text:     strings.TrimSpace(text),
			Category: Classify(text, node),
		})
	}
	if len(statements) == 0 {
		return nil, fmt.Errorf("no executable statements found in SQL script")
	}
	return statements, nil
}
