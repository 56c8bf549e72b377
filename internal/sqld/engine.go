package sqld

import (
	"strings"
	"sync"

	"zombiezen.com/go/sqlite"
)

// engineConn is an open engine handle.
type engineConn interface {
	// prepare compiles the first statement of sql. It returns the number of
	// bytes of sql consumed, which is authoritative for the caller's offset.
	// A nil statement means nothing but whitespace, semicolons or comments
	// was consumed.
	prepare(sql string) (engineStmt, int, error)
	close() error
}

// engineStmt is a compiled statement handle.
type engineStmt interface {
	// step reports true when a row is available, false when the statement
	// has run to completion.
	step() (bool, error)
	columnCount() int
	columnName(col int) string
	columnText(col int) string
	columnInt64(col int) int64
	columnFloat(col int) float64
	columnBlob(col int) []byte
	finalize() error
}

// openEngine opens an engine handle for a URI. Tests replace it.
var openEngine = openSQLite

// Statements from several goroutines may interleave on one SQLite handle,
// but the Go binding is single-goroutine, so every call into it holds mu.
// live holds every statement not yet finalized; close finalizes them first.
type sqliteConn struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	live map[*sqliteStmt]struct{}
}

// stmt is nil once finalized, by the caller or by close.
type sqliteStmt struct {
	c    *sqliteConn
	stmt *sqlite.Stmt
}

func openSQLite(uri string) (engineConn, error) {
	// No OpenWAL: a file-backed database stays a single file.
	conn, err := sqlite.OpenConn(uri, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenURI)
	if err != nil {
		return nil, sqliteError(err)
	}
	// OpenConn installs a busy handler that waits without limit. Lock
	// conflicts must surface as SQLITE_BUSY instead.
	conn.SetBusyTimeout(0)
	return &sqliteConn{conn: conn, live: make(map[*sqliteStmt]struct{})}, nil
}

func (c *sqliteConn) prepare(sql string) (engineStmt, int, error) {
	lead := leadingBlank(sql)
	if lead == len(sql) {
		return nil, len(sql), nil
	}

	// Trailing space is trimmed so the reported tail length means the same
	// thing whether or not the binding trims the query itself.
	query := strings.TrimRight(sql[lead:], sqlSpace)

	c.mu.Lock()
	defer c.mu.Unlock()

	stmt, trailing, err := c.conn.PrepareTransient(query)
	if err != nil {
		return nil, 0, sqliteError(err)
	}
	// query starts with a token, so a successful compile is never empty.
	st := &sqliteStmt{c: c, stmt: stmt}
	c.live[st] = struct{}{}
	return st, lead + len(query) - trailing, nil
}

func (c *sqliteConn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for st := range c.live {
		// The handle goes away regardless; a finalize error here only
		// repeats the statement's last step error.
		st.stmt.Finalize()
		st.stmt = nil
	}
	clear(c.live)
	if err := c.conn.Close(); err != nil {
		return sqliteError(err)
	}
	return nil
}

func (s *sqliteStmt) step() (bool, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	row, err := s.stmt.Step()
	if err != nil {
		return false, sqliteError(err)
	}
	return row, nil
}

func (s *sqliteStmt) columnCount() int {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.stmt.ColumnCount()
}

func (s *sqliteStmt) columnName(col int) string {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.stmt.ColumnName(col)
}

func (s *sqliteStmt) columnText(col int) string {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.stmt.ColumnText(col)
}

func (s *sqliteStmt) columnInt64(col int) int64 {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.stmt.ColumnInt64(col)
}

func (s *sqliteStmt) columnFloat(col int) float64 {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.stmt.ColumnFloat(col)
}

func (s *sqliteStmt) columnBlob(col int) []byte {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	buf := make([]byte, s.stmt.ColumnLen(col))
	s.stmt.ColumnBytes(col, buf)
	return buf
}

func (s *sqliteStmt) finalize() error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.stmt == nil {
		return nil
	}
	stmt := s.stmt
	s.stmt = nil
	delete(s.c.live, s)
	if err := stmt.Finalize(); err != nil {
		return sqliteError(err)
	}
	return nil
}

func sqliteError(err error) *EngineError {
	return &EngineError{
		Code: sqlite.ErrCode(err).String(),
		Msg:  err.Error(),
		Err:  err,
	}
}

// leadingBlank returns the length of the prefix of sql that compiles to no
// statement: whitespace, semicolons, and -- or /* */ comments.
func leadingBlank(sql string) int {
	i := 0
	for i < len(sql) {
		switch {
		case isBlank(sql[i]):
			i++
		case strings.HasPrefix(sql[i:], "--"):
			nl := strings.IndexByte(sql[i:], '\n')
			if nl < 0 {
				return len(sql)
			}
			i += nl + 1
		case strings.HasPrefix(sql[i:], "/*"):
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return len(sql)
			}
			i += end + 4
		default:
			return i
		}
	}
	return i
}

// sqlSpace is the whitespace SQLite's tokenizer skips. Vertical tab is not
// part of it.
const sqlSpace = " \t\n\f\r"

func isBlank(b byte) bool {
	return b == ';' || strings.IndexByte(sqlSpace, b) >= 0
}
