// Package sqld is a small access layer over an embedded SQLite engine.
//
// It has three pieces:
//   - Conn: one engine connection opened from a URI (https://sqlite.org/uri.html)
//   - Stream: a buffer of SQL statements compiled and stepped one at a time
//   - Trans: BEGIN/COMMIT/ROLLBACK bookkeeping with abort on Close
//
// # Statement Streams
//
// A Stream holds an append-only script and a byte offset into it. ExecSelect
// compiles statements starting at the offset, runs the ones that produce no
// rows, and stops on the first statement that yields a row:
//
//	s := sqld.NewStream(conn)
//	defer s.Close()
//
//	s.Append(
//		"create table t(a TEXT, b INT);",
//		"insert into t values('hello!', 1);",
//		"select * from t;",
//	)
//	for n, err := s.ExecSelect(); n > 0; n, err = s.NextRow() {
//		...
//	}
//
// After NextRow returns 0 more statements may remain; call ExecSelect again
// to continue. Exec runs everything and discards rows.
//
// # Errors
//
// Failures reported by the engine are *EngineError. Calls that break a
// documented precondition (reading a column with no current row, committing
// an inactive transaction) are *UsageError. Nothing is retried.
//
// # Concurrency
//
// An open Conn may be shared by goroutines that each drive their own Stream.
// Close and Reopen are not safe against anything else running on the same
// Conn. Stream and Trans are single-goroutine objects.
//
// Lock conflicts between connections to one database file fail at once with
// an EngineError coded SQLITE_BUSY; nothing is retried.
//
// Connections on one shared-cache database (DefaultURI and other
// cache=shared URIs) lock per table instead. A Stream that needs a table
// another such Conn holds locked in an open transaction waits until that
// transaction commits or aborts. One goroutine doing both deadlocks, so run
// the waiting Stream elsewhere or end the transaction first.
package sqld
