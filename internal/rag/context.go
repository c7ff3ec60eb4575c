// Package rag builds the schema context document handed to the rewrite
// service. It resolves the objects a script references through the dependency
// analyzer, fetches their stored definitions from the metadata store, and
// renders them into a single deterministic text block.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlport/sqlport/internal/analyzer"
	"github.com/sqlport/sqlport/internal/metastore"
)

// ObjectSource is the read-only metadata lookup the builder depends on.
// *metastore.Store satisfies it.
type ObjectSource interface {
	LookupObjects(ctx context.Context, names []string) ([]metastore.SchemaObject, error)
}

// Result carries the rendered context document plus the raw reference sets,
// which the workflow persists alongside the asset for auditing.
type Result struct {
	Text    string
	Names   []string
	Schemas []string
}

// Builder assembles schema context for one porting project.
type Builder struct {
	analyzer *analyzer.Analyzer
	source   ObjectSource
	logger   *slog.Logger
}

// New creates a Builder on top of the given analyzer and metadata source.
func New(a *analyzer.Analyzer, source ObjectSource, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{analyzer: a, source: source, logger: logger}
}

// Build renders the context document for a SQL script. A script with no
// resolvable references yields an empty document. Lookup failures are
// downgraded to an empty document with a logged error, because a corrective
// rewrite without schema hints is still worth attempting.
func (b *Builder) Build(ctx context.Context, sqlScript string) (Result, error) {
	refs := b.analyzer.ExtractReferences(sqlScript)
	res := Result{
		Names:   refs.SortedNames(),
		Schemas: refs.SortedSchemas(),
	}
	if len(res.Names) == 0 {
		return res, nil
	}

	objects, err := b.source.LookupObjects(ctx, res.Names)
	if err != nil {
		b.logger.Error("schema context lookup failed", "error", err)
		return res, nil
	}
	if len(objects) == 0 {
		b.logger.Debug("no stored definitions matched script references",
			"references", strings.Join(res.Names, ","))
		return res, nil
	}

	res.Text = render(objects)
	b.logger.Debug("schema context built",
		"references", len(res.Names),
		"matched", len(objects),
	)
	return res, nil
}

// render concatenates object definitions in store order. The store already
// sorts tables before views before routines, so rendering is a plain fold and
// the output is byte-identical across calls for unchanged metadata.
func render(objects []metastore.SchemaObject) string {
	var sb strings.Builder
	sb.WriteString("--- [Related Schema Information] ---\n")

	for _, obj := range objects {
		fullName := fmt.Sprintf("%s.%s", obj.Schema, obj.Name)
		switch obj.Kind {
		case "TABLE", "VIEW":
			if obj.DDL == "" {
				continue
			}
			sb.WriteString(fmt.Sprintf("-- Table/View: %s\n", fullName))
			sb.WriteString(strings.TrimRight(obj.DDL, "\n"))
			sb.WriteString("\n")
		default:
			if obj.Source == "" {
				continue
			}
			sb.WriteString(fmt.Sprintf("-- Routine Source: %s\n", fullName))
			sb.WriteString(strings.TrimRight(obj.Source, "\n"))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("------------------------------------\n")
	return sb.String()
}
