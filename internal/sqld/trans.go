package sqld

import (
	"log/slog"
)

// Trans tracks one transaction on a Conn.
//
// The engine is never asked to nest: Begin on an active Trans and
// Commit/Abort on an inactive one are usage errors. Close aborts a
// transaction that is still active.
type Trans struct {
	conn   *Conn
	active bool
}

// NewTrans returns an inactive Trans on conn.
func NewTrans(conn *Conn) *Trans {
	return &Trans{conn: conn}
}

// Active reports whether BEGIN has been issued without a matching COMMIT
// or ROLLBACK.
func (t *Trans) Active() bool {
	return t.active
}

// Begin issues BEGIN.
func (t *Trans) Begin() error {
	if t.active {
		return usageError("begin", "transaction already active")
	}
	if err := t.run("BEGIN;"); err != nil {
		return err
	}
	t.active = true
	slog.Debug("transaction begun")
	return nil
}

// Commit issues COMMIT.
func (t *Trans) Commit() error {
	if !t.active {
		return usageError("commit", "transaction not active")
	}
	if err := t.run("COMMIT;"); err != nil {
		return err
	}
	t.active = false
	slog.Debug("transaction committed")
	return nil
}

// Abort issues ROLLBACK.
func (t *Trans) Abort() error {
	if !t.active {
		return usageError("abort", "transaction not active")
	}
	if err := t.run("ROLLBACK;"); err != nil {
		return err
	}
	t.active = false
	slog.Debug("transaction aborted")
	return nil
}

// Close aborts the transaction if it is still active. A failed rollback
// is logged and not returned.
func (t *Trans) Close() {
	if !t.active {
		return
	}
	if err := t.Abort(); err != nil {
		slog.Warn("rollback on close failed", "error", err)
		t.active = false
	}
}

func (t *Trans) run(sql string) error {
	s := NewStream(t.conn)
	defer s.Close()

	s.Append(sql)
	return s.Exec()
}
