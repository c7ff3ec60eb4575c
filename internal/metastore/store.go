// Package metastore is the SQLite-backed metadata store for a porting
// project: extracted schema objects from the source database, the source SQL
// assets selected for porting, rendered target SQL, and per-asset migration
// records. The context builder reads schema_objects; the batch runner owns
// the rest.
package metastore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Store wraps the metadata database for a single project namespace.
type Store struct {
	db      *sql.DB
	project string
	logger  *slog.Logger
}

// Open opens (creating if necessary) the metadata database at path and
// initializes the schema.
func Open(path, project string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if project == "" {
		project = "default"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	// SQLite handles one writer at a time; the batch runner may persist
	// results from several workers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, project: project, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize metadata schema: %w", err)
		}
	}
	s.logger.Debug("metadata store initialized", "project", s.project)
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Project returns the project namespace this store is scoped to.
func (s *Store) Project() string {
	return s.project
}

// SchemaObject is one extracted source-database object: tables and views
// carry DDL, routines carry source text.
type SchemaObject struct {
	Schema string
	Name   string
	Kind   string // TABLE, VIEW, FUNCTION, PROCEDURE, PACKAGE, ...
	DDL    string
	Source string
}

// UpsertSchemaObject stores or replaces one extracted object definition.
func (s *Store) UpsertSchemaObject(ctx context.Context, obj SchemaObject) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schema_objects (project_name, schema_name, obj_name, obj_type, ddl_script, source_code)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_name, schema_name, obj_name, obj_type) DO UPDATE SET
			ddl_script = excluded.ddl_script,
			source_code = excluded.source_code,
			extracted_at = CURRENT_TIMESTAMP`,
		s.project, obj.Schema, obj.Name, obj.Kind, obj.DDL, obj.Source)
	if err != nil {
		return fmt.Errorf("failed to upsert schema object %s.%s: %w", obj.Schema, obj.Name, err)
	}
	return nil
}

// LookupObjects returns stored definitions for the given object names within
// the project namespace. Matching is case-insensitive. Ordering is
// deterministic: tables first, then views, then every other kind, each group
// sorted by schema and name, so the rendered context document is stable.
func (s *Store) LookupObjects(ctx context.Context, names []string) ([]SchemaObject, error) {
	if len(names) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		placeholders[i] = "?"
		args = append(args, strings.ToLower(name))
	}
	args = append(args, s.project)

	query := fmt.Sprintf(`
		SELECT schema_name, obj_name, obj_type, COALESCE(ddl_script, ''), COALESCE(source_code, '')
		FROM schema_objects
		WHERE lower(obj_name) IN (%s) AND project_name = ?
		ORDER BY
			CASE obj_type WHEN 'TABLE' THEN 0 WHEN 'VIEW' THEN 1 ELSE 2 END,
			schema_name,
			obj_name`,
		strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema objects: %w", err)
	}
	defer rows.Close()

	var objects []SchemaObject
	for rows.Next() {
		var obj SchemaObject
		if err := rows.Scan(&obj.Schema, &obj.Name, &obj.Kind, &obj.DDL, &obj.Source); err != nil {
			return nil, fmt.Errorf("failed to scan schema object: %w", err)
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

// SourceAsset is one unit of source SQL registered for porting.
type SourceAsset struct {
	ID            int64
	FileName      string
	FilePath      string
	SQLText       string
	ContentHash   string
	ParsedSchemas string
	Selected      bool
	LastStatus    string // status of the most recent rendered output, if any
}

// HashSQL returns the content hash used for change detection.
func HashSQL(sqlText string) string {
	sum := sha256.Sum256([]byte(sqlText))
	return hex.EncodeToString(sum[:])
}

// SyncSourceAsset registers or refreshes one source file. The selection flag
// is preserved on update so re-syncing a directory does not undo choices.
func (s *Store) SyncSourceAsset(ctx context.Context, filePath, sqlText, parsedSchemas string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source_assets (project_name, file_name, file_path, sql_text, content_hash, parsed_schemas)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_name, file_path) DO UPDATE SET
			sql_text = excluded.sql_text,
			content_hash = excluded.content_hash,
			parsed_schemas = COALESCE(excluded.parsed_schemas, source_assets.parsed_schemas),
			updated_at = CURRENT_TIMESTAMP`,
		s.project, filepath.Base(filePath), filePath, sqlText, HashSQL(sqlText), parsedSchemas)
	if err != nil {
		return fmt.Errorf("failed to sync source asset %s: %w", filePath, err)
	}
	return nil
}

// ListSourceAssets returns registered assets. With onlySelected, assets
// deselected for porting are omitted; with onlyChanged, assets whose content
// hash matches their last rendered output are omitted.
func (s *Store) ListSourceAssets(ctx context.Context, onlySelected, onlyChanged bool) ([]SourceAsset, error) {
	query := `
		SELECT sa.asset_id, sa.file_name, sa.file_path, sa.sql_text, sa.content_hash,
			COALESCE(sa.parsed_schemas, ''), sa.selected_for_port, COALESCE(ro.status, '')
		FROM source_assets sa
		LEFT JOIN rendered_outputs ro
			ON sa.project_name = ro.project_name AND sa.file_path = ro.file_path
		WHERE sa.project_name = ?`
	if onlySelected {
		query += " AND sa.selected_for_port = 1"
	}
	if onlyChanged {
		query += " AND (ro.source_hash IS NULL OR ro.source_hash != sa.content_hash)"
	}
	query += " ORDER BY sa.file_name"

	rows, err := s.db.QueryContext(ctx, query, s.project)
	if err != nil {
		return nil, fmt.Errorf("failed to list source assets: %w", err)
	}
	defer rows.Close()

	var assets []SourceAsset
	for rows.Next() {
		var a SourceAsset
		var selected int
		if err := rows.Scan(&a.ID, &a.FileName, &a.FilePath, &a.SQLText, &a.ContentHash,
			&a.ParsedSchemas, &selected, &a.LastStatus); err != nil {
			return nil, fmt.Errorf("failed to scan source asset: %w", err)
		}
		a.Selected = selected != 0
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// SetSelection marks the named assets as selected or deselected for porting.
func (s *Store) SetSelection(ctx context.Context, fileNames []string, selected bool) (int64, error) {
	if len(fileNames) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(fileNames))
	args := []any{boolToInt(selected), s.project}
	for i, name := range fileNames {
		placeholders[i] = "?"
		args = append(args, name)
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE source_assets
		SET selected_for_port = ?, updated_at = CURRENT_TIMESTAMP
		WHERE project_name = ? AND file_name IN (%s)`,
		strings.Join(placeholders, ",")), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update selection: %w", err)
	}
	return res.RowsAffected()
}

// RenderedOutput is the current best target SQL for one asset.
type RenderedOutput struct {
	FileName   string
	FilePath   string
	SQLText    string
	SourceHash string
	Status     string
	Verified   bool
	LastError  string
}

// SaveRenderedOutput stores or replaces the rendered SQL for one asset.
func (s *Store) SaveRenderedOutput(ctx context.Context, out RenderedOutput) error {
	var contentHash string
	if out.SQLText != "" {
		contentHash = HashSQL(out.SQLText)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rendered_outputs (project_name, file_name, file_path, sql_text, content_hash, source_hash, status, verified, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_name, file_path) DO UPDATE SET
			sql_text = excluded.sql_text,
			content_hash = excluded.content_hash,
			source_hash = excluded.source_hash,
			status = excluded.status,
			verified = excluded.verified,
			last_error = excluded.last_error,
			updated_at = CURRENT_TIMESTAMP`,
		s.project, filepath.Base(out.FilePath), out.FilePath, out.SQLText, contentHash,
		out.SourceHash, out.Status, boolToInt(out.Verified), out.LastError)
	if err != nil {
		return fmt.Errorf("failed to save rendered output %s: %w", out.FilePath, err)
	}
	return nil
}

// ListRenderedOutputs returns stored outputs, most recently updated first.
// A limit of zero or less means no limit.
func (s *Store) ListRenderedOutputs(ctx context.Context, limit int) ([]RenderedOutput, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_name, file_path, COALESCE(sql_text, ''), COALESCE(source_hash, ''),
			COALESCE(status, ''), verified, COALESCE(last_error, '')
		FROM rendered_outputs
		WHERE project_name = ?
		ORDER BY updated_at DESC, file_name
		LIMIT ?`, s.project, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rendered outputs: %w", err)
	}
	defer rows.Close()

	var outputs []RenderedOutput
	for rows.Next() {
		var out RenderedOutput
		var verified int
		if err := rows.Scan(&out.FileName, &out.FilePath, &out.SQLText, &out.SourceHash,
			&out.Status, &verified, &out.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan rendered output: %w", err)
		}
		out.Verified = verified != 0
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}

// MigrationRecord is the persisted terminal state of one asset's workflow run.
type MigrationRecord struct {
	FilePath          string
	Status            string
	RetryCount        int
	LastError         string
	DetectedSchemas   []string
	SkippedStatements []string
	ExecutedCount     int
}

// SaveMigrationRecord stores or replaces the migration record for one asset.
func (s *Store) SaveMigrationRecord(ctx context.Context, rec MigrationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO migration_logs (project_name, file_path, detected_schemas, status, retry_count, last_error_msg, skipped_statements, executed_statements)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_name, file_path) DO UPDATE SET
			detected_schemas = excluded.detected_schemas,
			status = excluded.status,
			retry_count = excluded.retry_count,
			last_error_msg = excluded.last_error_msg,
			skipped_statements = excluded.skipped_statements,
			executed_statements = excluded.executed_statements,
			updated_at = CURRENT_TIMESTAMP`,
		s.project, rec.FilePath, strings.Join(rec.DetectedSchemas, ","), rec.Status,
		rec.RetryCount, rec.LastError, strings.Join(rec.SkippedStatements, "\n"), rec.ExecutedCount)
	if err != nil {
		return fmt.Errorf("failed to save migration record %s: %w", rec.FilePath, err)
	}
	return nil
}

// SummarizeMigrations returns per-status asset counts for reporting.
func (s *Store) SummarizeMigrations(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM migration_logs
		WHERE project_name = ?
		GROUP BY status`, s.project)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize migrations: %w", err)
	}
	defer rows.Close()

	summary := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary[status] = count
	}
	return summary, rows.Err()
}

// ExecutionLogEntry is one recorded run event.
type ExecutionLogEntry struct {
	RunID     string
	Level     string
	Event     string
	Detail    string
	CreatedAt string
}

// RecentExecutionLogs returns the newest run events, most recent first.
// A limit of zero or less means no limit.
func (s *Store) RecentExecutionLogs(ctx context.Context, limit int) ([]ExecutionLogEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(run_id, ''), level, event, COALESCE(detail, ''), created_at
		FROM execution_logs
		WHERE project_name = ?
		ORDER BY log_id DESC
		LIMIT ?`, s.project, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	defer rows.Close()

	var entries []ExecutionLogEntry
	for rows.Next() {
		var e ExecutionLogEntry
		if err := rows.Scan(&e.RunID, &e.Level, &e.Event, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddExecutionLog appends one event to the run log.
func (s *Store) AddExecutionLog(ctx context.Context, runID, level, event, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_logs (project_name, run_id, level, event, detail)
		VALUES (?, ?, ?, ?, ?)`,
		s.project, runID, strings.ToUpper(level), event, detail)
	if err != nil {
		return fmt.Errorf("failed to append execution log: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
