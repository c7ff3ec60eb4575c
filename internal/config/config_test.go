package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqlport.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "general:\n  project_name: demo\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.General.ProjectName != "demo" {
		t.Errorf("ProjectName = %q", cfg.General.ProjectName)
	}
	if cfg.General.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.General.MaxRetries)
	}
	if cfg.Database.Target.Driver != "pgx" {
		t.Errorf("Driver = %q, want default pgx", cfg.Database.Target.Driver)
	}
	if cfg.Database.Target.StatementTimeoutMS != 5000 {
		t.Errorf("StatementTimeoutMS = %d, want default 5000", cfg.Database.Target.StatementTimeoutMS)
	}
	if cfg.Verification.AllowDangerousStatements || cfg.Verification.AllowProcedureExecution {
		t.Error("verification policy must default to closed")
	}
}

func TestLoadFullFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
general:
  project_name: legacy_port
  metadata_path: /var/lib/sqlport/meta.db
  max_retries: 5
  workers: 4
database:
  source:
    type: oracle
  target:
    type: postgres
    uri: postgres://app:secret@db:5432/target
    driver: postgres
    statement_timeout_ms: 15000
verification:
  allow_dangerous_statements: true
llm:
  base_url: http://ollama:11434
  model: codellama:13b
  temperature: 0.2
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.General.Workers != 4 || cfg.General.MaxRetries != 5 {
		t.Errorf("general = %+v", cfg.General)
	}
	if cfg.Database.Target.URI != "postgres://app:secret@db:5432/target" {
		t.Errorf("URI = %q", cfg.Database.Target.URI)
	}
	if cfg.Database.Target.Driver != "postgres" {
		t.Errorf("Driver = %q", cfg.Database.Target.Driver)
	}
	if !cfg.Verification.AllowDangerousStatements {
		t.Error("AllowDangerousStatements not set")
	}
	if cfg.Verification.AllowProcedureExecution {
		t.Error("AllowProcedureExecution must stay false unless set")
	}
	if cfg.LLM.Model != "codellama:13b" || cfg.LLM.Temperature != 0.2 {
		t.Errorf("llm = %+v", cfg.LLM)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SQLPORT_GENERAL_MAX_RETRIES", "7")

	cfg, err := Load(writeConfig(t, "general:\n  max_retries: 2\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.General.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want env override 7", cfg.General.MaxRetries)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero retries", "general:\n  max_retries: 0\n"},
		{"negative workers", "general:\n  workers: -1\n"},
		{"unknown driver", "database:\n  target:\n    driver: mysql\n"},
		{"negative timeout", "database:\n  target:\n    statement_timeout_ms: -5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
