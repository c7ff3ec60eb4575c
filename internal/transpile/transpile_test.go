package transpile

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeFallback struct {
	out    string
	err    error
	called bool
}

func (f *fakeFallback) Transpile(_ context.Context, sqlText, _, _ string) (string, error) {
	f.called = true
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func TestTranspilePostgresSource(t *testing.T) {
	tr := New(nil, nil)

	got, err := tr.Transpile(context.Background(), "select   a,b FROM t  where a>1", "postgres", "postgres")
	if err != nil {
		t.Fatalf("Transpile: %v", err)
	}
	if got != "SELECT a, b FROM t WHERE a > 1;" {
		t.Errorf("normalized = %q", got)
	}
}

func TestTranspileMultiStatement(t *testing.T) {
	tr := New(nil, nil)

	got, err := tr.Transpile(context.Background(), "SELECT 1; SELECT 2;", "postgresql", "postgres")
	if err != nil {
		t.Fatalf("Transpile: %v", err)
	}
	want := "SELECT 1;\nSELECT 2;"
	if got != want {
		t.Errorf("normalized = %q, want %q", got, want)
	}
}

func TestTranspileParseErrorIsReturned(t *testing.T) {
	tr := New(nil, nil)

	_, err := tr.Transpile(context.Background(), "SELEC 1", "postgres", "postgres")
	if err == nil || !strings.Contains(err.Error(), "SQL parse error") {
		t.Fatalf("err = %v, want parse error", err)
	}
}

func TestTranspileEmptyScript(t *testing.T) {
	tr := New(nil, nil)

	if _, err := tr.Transpile(context.Background(), "-- only a comment\n", "postgres", "postgres"); err == nil {
		t.Fatal("expected error for a script with no statements")
	}
}

func TestForeignDialectUsesFallback(t *testing.T) {
	fb := &fakeFallback{out: "SELECT coalesce(a, 0) FROM t;"}
	tr := New(fb, nil)

	got, err := tr.Transpile(context.Background(), "SELECT NVL(a, 0) FROM t;", "oracle", "postgres")
	if err != nil {
		t.Fatalf("Transpile: %v", err)
	}
	if !fb.called {
		t.Error("fallback was not consulted")
	}
	if got != fb.out {
		t.Errorf("got %q", got)
	}
}

func TestForeignDialectWithoutFallbackFails(t *testing.T) {
	tr := New(nil, nil)

	_, err := tr.Transpile(context.Background(), "SELECT 1 FROM dual;", "oracle", "postgres")
	if err == nil || !strings.Contains(err.Error(), "oracle") {
		t.Fatalf("err = %v, want dialect named", err)
	}
}

func TestFallbackErrorPropagates(t *testing.T) {
	sentinel := errors.New("model unavailable")
	tr := New(&fakeFallback{err: sentinel}, nil)

	_, err := tr.Transpile(context.Background(), "SELECT 1", "db2", "postgres")
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want %v", err, sentinel)
	}
}
