package verifier

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestVerifyRollsBackOnSuccess(t *testing.T) {
	b, connect := installFake("", nil)
	v := New(connect, Options{}, nil)

	res := v.Verify(context.Background(), "SELECT 1; SELECT 2;")
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if res.ExecutedCount != 2 {
		t.Errorf("expected 2 executed statements, got %d", res.ExecutedCount)
	}
	if !b.has("ROLLBACK") {
		t.Errorf("expected transaction rollback, events: %v", b.Events())
	}
	if b.has("COMMIT") {
		t.Errorf("verify mode must never commit, events: %v", b.Events())
	}
}

func TestVerifyRollsBackOnFailure(t *testing.T) {
	b, connect := installFake("missing_table", &pgconn.PgError{
		Message: `relation "missing_table" does not exist`,
	})
	v := New(connect, Options{}, nil)

	res := v.Verify(context.Background(), "SELECT 1; SELECT * FROM missing_table;")
	if res.Success {
		t.Fatal("expected failure")
	}
	if !b.has("ROLLBACK") {
		t.Errorf("expected transaction rollback, events: %v", b.Events())
	}
	if b.has("COMMIT") {
		t.Errorf("failed verify must never commit, events: %v", b.Events())
	}
	if res.ExecutedCount != 1 {
		t.Errorf("expected 1 executed statement before the failure, got %d", res.ExecutedCount)
	}
}

func TestVerifyFailureDiagnostic(t *testing.T) {
	_, connect := installFake("missing_table", &pgconn.PgError{
		Message: `relation "missing_table" does not exist`,
		Where:   "SQL statement",
	})
	v := New(connect, Options{}, nil)

	res := v.Verify(context.Background(), "SELECT 1; SELECT * FROM missing_table;")
	if res.Success {
		t.Fatal("expected failure")
	}
	for _, want := range []string{
		"Statement #2 failed",
		`relation "missing_table" does not exist`,
		"Context: SQL statement",
		"SQL: SELECT * FROM missing_table",
	} {
		if !strings.Contains(res.Error, want) {
			t.Errorf("diagnostic missing %q:\n%s", want, res.Error)
		}
	}
}

func TestPolicyFiltering(t *testing.T) {
	b, connect := installFake("", nil)
	v := New(connect, Options{}, nil)

	res := v.Verify(context.Background(), "SELECT 1; DROP TABLE foo; CALL proc();")
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if res.ExecutedCount != 1 {
		t.Errorf("expected exactly the safe statement to execute, got %d", res.ExecutedCount)
	}
	want := []string{"DROP TABLE foo", "CALL proc()"}
	if diff := cmp.Diff(want, res.SkippedStatements); diff != "" {
		t.Errorf("skipped statements mismatch (-want +got):\n%s", diff)
	}
	for _, e := range b.Events() {
		if strings.Contains(e, "DROP") || strings.Contains(e, "CALL") {
			t.Errorf("filtered statement reached the database: %s", e)
		}
	}
}

func TestPolicyFiltersAdministrativeStatements(t *testing.T) {
	b, connect := installFake("", nil)
	v := New(connect, Options{}, nil)

	res := v.Verify(context.Background(), "VACUUM accounts; REINDEX TABLE accounts; LOCK TABLE accounts; SELECT 1;")
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if res.ExecutedCount != 1 {
		t.Errorf("expected only the query to execute, got %d", res.ExecutedCount)
	}
	want := []string{"VACUUM accounts", "REINDEX TABLE accounts", "LOCK TABLE accounts"}
	if diff := cmp.Diff(want, res.SkippedStatements); diff != "" {
		t.Errorf("skipped statements mismatch (-want +got):\n%s", diff)
	}
	for _, e := range b.Events() {
		if strings.Contains(e, "VACUUM") || strings.Contains(e, "REINDEX") || strings.Contains(e, "LOCK TABLE") {
			t.Errorf("administrative statement reached the database: %s", e)
		}
	}
}

func TestPolicyFlagsEnableExecution(t *testing.T) {
	b, connect := installFake("", nil)
	v := New(connect, Options{
		Policy: Policy{AllowDangerousStatements: true, AllowProcedureExecution: true},
	}, nil)

	res := v.Verify(context.Background(), "DROP TABLE foo; CALL proc();")
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if res.ExecutedCount != 2 {
		t.Errorf("expected both statements to execute, got %d", res.ExecutedCount)
	}
	if len(res.SkippedStatements) != 0 {
		t.Errorf("expected nothing skipped, got %v", res.SkippedStatements)
	}
	if !b.has("ROLLBACK") {
		t.Errorf("verify mode still rolls back, events: %v", b.Events())
	}
}

func TestVerifyPartialSkipNotesParity(t *testing.T) {
	_, connect := installFake("", nil)
	v := New(connect, Options{}, nil)

	res := v.Verify(context.Background(), "INSERT INTO t VALUES (1); SELECT 1;")
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if res.ExecutedCount != 1 {
		t.Errorf("expected 1 executed statement, got %d", res.ExecutedCount)
	}
	if len(res.SkippedStatements) != 1 {
		t.Errorf("expected 1 skipped statement, got %v", res.SkippedStatements)
	}
	if !strings.Contains(res.Notes, "parity") {
		t.Errorf("expected data parity caveat in notes, got %q", res.Notes)
	}
}

func TestVerifyAllFilteredIsSuccess(t *testing.T) {
	b, connect := installFake("", nil)
	v := New(connect, Options{}, nil)

	res := v.Verify(context.Background(), "DROP TABLE a; DELETE FROM b;")
	if !res.Success {
		t.Fatalf("expected success for fully filtered script, got error: %s", res.Error)
	}
	if len(res.SkippedStatements) != 2 {
		t.Errorf("expected 2 skipped statements, got %v", res.SkippedStatements)
	}
	if res.Notes == "" {
		t.Error("expected explanatory note for fully filtered script")
	}
	if len(b.Events()) != 0 {
		t.Errorf("expected no database interaction, events: %v", b.Events())
	}
}

func TestApplyCommitsOnSuccess(t *testing.T) {
	b, connect := installFake("", nil)
	v := New(connect, Options{Policy: Policy{AllowDangerousStatements: true}}, nil)

	res := v.Apply(context.Background(), "INSERT INTO t VALUES (1);")
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if !b.has("COMMIT") {
		t.Errorf("expected commit, events: %v", b.Events())
	}
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	b, connect := installFake("bad_table", &pgconn.PgError{Message: "no such table"})
	v := New(connect, Options{Policy: Policy{AllowDangerousStatements: true}}, nil)

	res := v.Apply(context.Background(), "INSERT INTO t VALUES (1); INSERT INTO bad_table VALUES (2);")
	if res.Success {
		t.Fatal("expected failure")
	}
	if b.has("COMMIT") {
		t.Errorf("failed apply must not commit, events: %v", b.Events())
	}
	if !b.has("ROLLBACK") {
		t.Errorf("expected rollback, events: %v", b.Events())
	}
}

func TestStatementTimeoutIsSet(t *testing.T) {
	b, connect := installFake("", nil)
	v := New(connect, Options{StatementTimeoutMS: 5000}, nil)

	res := v.Verify(context.Background(), "SELECT 1;")
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if !b.has("EXEC SET statement_timeout = 5000") {
		t.Errorf("expected statement timeout to be applied, events: %v", b.Events())
	}
}

func TestParseFailureAborts(t *testing.T) {
	b, connect := installFake("", nil)
	v := New(connect, Options{}, nil)

	res := v.Verify(context.Background(), "SELECT * FROM (")
	if res.Success {
		t.Fatal("expected failure for unparsable script")
	}
	if !strings.Contains(res.Error, "parse error") {
		t.Errorf("expected structured parse error, got %q", res.Error)
	}
	if len(b.Events()) != 0 {
		t.Errorf("parse failure must not touch the database, events: %v", b.Events())
	}
}

func TestEmptyScript(t *testing.T) {
	_, connect := installFake("", nil)
	v := New(connect, Options{}, nil)

	res := v.Verify(context.Background(), "   \n")
	if res.Success {
		t.Fatal("expected failure for empty script")
	}
}
