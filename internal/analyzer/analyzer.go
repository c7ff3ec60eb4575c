// Package analyzer extracts the database objects referenced by a SQL script.
//
// References are resolved lexically: a name introduced by a WITH clause
// (a common table expression) shadows any real table of the same name within
// its own scope and all nested scopes, so it is not reported as a dependency.
// Function and procedure invocations are always reported since CTE names can
// never shadow a callable.
package analyzer

import (
	"log/slog"
	"sort"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Result holds the object names and schema qualifiers referenced by a script.
// Names are case-normalized to lower case, matching PostgreSQL identifier
// folding, so they can be used directly as lookup keys.
type Result struct {
	Names   map[string]struct{}
	Schemas map[string]struct{}
}

func newResult() Result {
	return Result{
		Names:   make(map[string]struct{}),
		Schemas: make(map[string]struct{}),
	}
}

// SortedNames returns the referenced names in deterministic order.
func (r Result) SortedNames() []string {
	names := make([]string, 0, len(r.Names))
	for name := range r.Names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedSchemas returns the referenced schema qualifiers in deterministic order.
func (r Result) SortedSchemas() []string {
	schemas := make([]string, 0, len(r.Schemas))
	for schema := range r.Schemas {
		schemas = append(schemas, schema)
	}
	sort.Strings(schemas)
	return schemas
}

// Analyzer walks parsed SQL statements and collects table, view and function
// references. It never fails: scripts that do not parse yield an empty result
// and a logged warning, since missing context only degrades the quality of a
// corrective rewrite.
type Analyzer struct {
	dialect string
	logger  *slog.Logger
}

// New creates an Analyzer. The source dialect is recorded for diagnostics;
// parsing itself uses the PostgreSQL grammar, with the flat fallback walk
// absorbing constructs that grammar cannot scope.
func New(sourceDialect string, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{dialect: sourceDialect, logger: logger}
}

// ExtractReferences returns every table/view name referenced outside of CTE
// scope plus every invoked function name, and the set of schema qualifiers
// seen on those references.
func (a *Analyzer) ExtractReferences(sql string) Result {
	res := newResult()

	parsed, err := pg_query.Parse(sql)
	if err != nil {
		a.logger.Warn("failed to parse SQL for reference extraction",
			"dialect", a.dialect,
			"error", err,
		)
		return res
	}

	for _, raw := range parsed.Stmts {
		stmt := raw.GetStmt()
		if stmt == nil {
			continue
		}
		a.collectStatement(stmt, &res)
	}
	return res
}

// collectStatement dispatches one top-level statement. Query statements get a
// lexical scope so CTE names can shadow table references; everything else
// (DDL, utility statements) is walked flat, counting every table reference
// unconditionally. The flat walk trades precision for availability.
func (a *Analyzer) collectStatement(stmt *pg_query.Node, res *Result) {
	var scope *lexicalScope
	switch {
	case stmt.GetSelectStmt() != nil,
		stmt.GetInsertStmt() != nil,
		stmt.GetUpdateStmt() != nil,
		stmt.GetDeleteStmt() != nil:
		scope = &lexicalScope{}
	}
	a.walkMessage(stmt.ProtoReflect(), scope, res)
}

// lexicalScope tracks CTE names visible at one nesting level. A nil
// *lexicalScope disables shadowing entirely (flat mode).
type lexicalScope struct {
	parent *lexicalScope
	ctes   map[string]struct{}
}

func (s *lexicalScope) child() *lexicalScope {
	return &lexicalScope{parent: s}
}

func (s *lexicalScope) define(name string) {
	if s.ctes == nil {
		s.ctes = make(map[string]struct{})
	}
	s.ctes[strings.ToLower(name)] = struct{}{}
}

// shadowed reports whether name is bound to a CTE in this scope or any
// ancestor scope.
func (s *lexicalScope) shadowed(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.ctes[name]; ok {
			return true
		}
	}
	return false
}

// walkMessage traverses the parse tree via protobuf reflection, intercepting
// the node kinds that matter: query nodes open a child scope and register
// their CTE names, range variables record table references subject to
// shadowing, and function calls record callable references unconditionally.
func (a *Analyzer) walkMessage(m protoreflect.Message, scope *lexicalScope, res *Result) {
	switch node := m.Interface().(type) {
	case *pg_query.SelectStmt:
		scope = a.enterQueryScope(scope, node.GetWithClause())
	case *pg_query.InsertStmt:
		scope = a.enterQueryScope(scope, node.GetWithClause())
	case *pg_query.UpdateStmt:
		scope = a.enterQueryScope(scope, node.GetWithClause())
	case *pg_query.DeleteStmt:
		scope = a.enterQueryScope(scope, node.GetWithClause())

	case *pg_query.RangeVar:
		a.recordTable(node, scope, res)
		return

	case *pg_query.FuncCall:
		if name := funcName(node); name != "" {
			res.Names[name] = struct{}{}
		}
		// Arguments may contain subqueries; keep walking.
	}

	a.walkFields(m, scope, res)
}

// enterQueryScope opens a nested scope and registers the query's CTE names in
// it. The names are registered before any body is walked so that recursive
// CTEs resolve to themselves rather than to an outer table.
func (a *Analyzer) enterQueryScope(scope *lexicalScope, with *pg_query.WithClause) *lexicalScope {
	if scope == nil {
		return nil
	}
	child := scope.child()
	if with == nil {
		return child
	}
	for _, cteNode := range with.Ctes {
		cte := cteNode.GetCommonTableExpr()
		if cte == nil || cte.Ctename == "" {
			continue
		}
		child.define(cte.Ctename)
	}
	return child
}

func (a *Analyzer) recordTable(rv *pg_query.RangeVar, scope *lexicalScope, res *Result) {
	name := strings.ToLower(rv.Relname)
	if name == "" {
		return
	}
	if rv.Schemaname != "" {
		// A qualified reference can never resolve to a CTE.
		res.Names[name] = struct{}{}
		res.Schemas[strings.ToLower(rv.Schemaname)] = struct{}{}
		return
	}
	if scope != nil && scope.shadowed(name) {
		return
	}
	res.Names[name] = struct{}{}
}

// walkFields descends into every populated message-valued field of m.
func (a *Analyzer) walkFields(m protoreflect.Message, scope *lexicalScope, res *Result) {
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		switch {
		case fd.IsList() && fd.Kind() == protoreflect.MessageKind:
			list := v.List()
			for i := 0; i < list.Len(); i++ {
				a.walkMessage(list.Get(i).Message(), scope, res)
			}
		case fd.IsMap():
			// The pg_query schema has no map fields; nothing to do.
		case fd.Kind() == protoreflect.MessageKind:
			a.walkMessage(v.Message(), scope, res)
		}
		return true
	})
}

// funcName extracts the unqualified, case-folded function name from a call.
// Funcname holds the qualified name parts; the last one is the function.
func funcName(fc *pg_query.FuncCall) string {
	parts := fc.GetFuncname()
	if len(parts) == 0 {
		return ""
	}
	last := parts[len(parts)-1].GetString_()
	if last == nil {
		return ""
	}
	return strings.ToLower(last.Sval)
}
