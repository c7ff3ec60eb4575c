package metastore

// Schema DDL for the metadata database. Everything is keyed by project_name
// so one store file can back multiple porting projects.

const schemaObjectsDDL = `
CREATE TABLE IF NOT EXISTS schema_objects (
	obj_id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_name TEXT NOT NULL,
	schema_name TEXT NOT NULL,
	obj_name TEXT NOT NULL,
	obj_type TEXT NOT NULL,
	ddl_script TEXT,
	source_code TEXT,
	extracted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(project_name, schema_name, obj_name, obj_type)
);`

const sourceAssetsDDL = `
CREATE TABLE IF NOT EXISTS source_assets (
	asset_id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_name TEXT NOT NULL,
	file_name TEXT NOT NULL,
	file_path TEXT NOT NULL,
	sql_text TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	parsed_schemas TEXT,
	selected_for_port INTEGER DEFAULT 1,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(project_name, file_path)
);`

const renderedOutputsDDL = `
CREATE TABLE IF NOT EXISTS rendered_outputs (
	output_id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_name TEXT NOT NULL,
	file_name TEXT NOT NULL,
	file_path TEXT NOT NULL,
	sql_text TEXT,
	content_hash TEXT,
	source_hash TEXT,
	status TEXT,
	verified INTEGER DEFAULT 0,
	last_error TEXT,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(project_name, file_path)
);`

const migrationLogsDDL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	project_name TEXT NOT NULL,
	file_path TEXT NOT NULL,
	detected_schemas TEXT,
	status TEXT NOT NULL,
	retry_count INTEGER DEFAULT 0,
	last_error_msg TEXT,
	skipped_statements TEXT,
	executed_statements INTEGER DEFAULT 0,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(project_name, file_path)
);`

const executionLogsDDL = `
CREATE TABLE IF NOT EXISTS execution_logs (
	log_id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_name TEXT NOT NULL,
	run_id TEXT,
	level TEXT NOT NULL,
	event TEXT NOT NULL,
	detail TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

var schemaStatements = []string{
	schemaObjectsDDL,
	sourceAssetsDDL,
	renderedOutputsDDL,
	migrationLogsDDL,
	executionLogsDDL,
	`CREATE INDEX IF NOT EXISTS idx_schema_name ON schema_objects(obj_name);`,
	`CREATE INDEX IF NOT EXISTS idx_schema_project ON schema_objects(project_name, schema_name);`,
	`CREATE INDEX IF NOT EXISTS idx_log_status ON migration_logs(status);`,
	`CREATE INDEX IF NOT EXISTS idx_log_project ON migration_logs(project_name, status);`,
}
