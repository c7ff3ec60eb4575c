package verifier

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
	"sync"
)

// A minimal recording driver. It captures the transaction lifecycle and every
// executed statement so tests can assert the rollback/commit discipline
// without a live database.

type fakeBehavior struct {
	mu           sync.Mutex
	failContains string
	failErr      error
	events       []string
}

func (b *fakeBehavior) record(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBehavior) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

func (b *fakeBehavior) has(event string) bool {
	for _, e := range b.Events() {
		if e == event {
			return true
		}
	}
	return false
}

type fakeDriver struct {
	mu      sync.Mutex
	current *fakeBehavior
}

var theFakeDriver = &fakeDriver{}

func init() {
	sql.Register("fakepg", theFakeDriver)
}

// installFake arms the driver with fresh behavior and returns it together
// with a ConnectFunc for the verifier under test.
func installFake(failContains string, failErr error) (*fakeBehavior, ConnectFunc) {
	b := &fakeBehavior{failContains: failContains, failErr: failErr}
	theFakeDriver.mu.Lock()
	theFakeDriver.current = b
	theFakeDriver.mu.Unlock()

	connect := func(ctx context.Context) (*sql.DB, error) {
		return sql.Open("fakepg", "fake-dsn")
	}
	return b, connect
}

func (d *fakeDriver) Open(name string) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &fakeConn{b: d.current}, nil
}

type fakeConn struct {
	b *fakeBehavior
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return nil, driver.ErrSkip
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	c.b.record("BEGIN")
	return &fakeTx{b: c.b}, nil
}

func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if c.b.failContains != "" && strings.Contains(query, c.b.failContains) {
		return nil, c.b.failErr
	}
	c.b.record("EXEC " + query)
	return driver.RowsAffected(0), nil
}

type fakeTx struct {
	b *fakeBehavior
}

func (t *fakeTx) Commit() error {
	t.b.record("COMMIT")
	return nil
}

func (t *fakeTx) Rollback() error {
	t.b.record("ROLLBACK")
	return nil
}
