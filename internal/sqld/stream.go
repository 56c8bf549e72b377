package sqld

import (
	"fmt"
	"strings"
)

// Stream compiles and steps the statements of a script one at a time.
//
// The script is an append-only buffer. An offset marks where the next
// statement starts; at most one compiled statement is held at a time.
// A Stream borrows its Conn and must not outlive it. Close releases the
// compiled statement.
type Stream struct {
	conn   *Conn
	buf    strings.Builder
	offset int
	stmt   engineStmt
	cols   int
	handle engineConn // handle stmt was compiled on
}

// NewStream returns an empty Stream bound to conn.
func NewStream(conn *Conn) *Stream {
	return &Stream{conn: conn}
}

// Append adds sql to the end of the script.
func (s *Stream) Append(sql ...string) {
	for _, q := range sql {
		s.buf.WriteString(q)
	}
}

// Printf formats according to a format specifier and appends the result
// to the script.
func (s *Stream) Printf(format string, args ...any) {
	fmt.Fprintf(&s.buf, format, args...)
}

// Write appends p to the script. It never fails.
func (s *Stream) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

// WriteString appends str to the script. It never fails.
func (s *Stream) WriteString(str string) (int, error) {
	return s.buf.WriteString(str)
}

// SQL returns the script.
func (s *Stream) SQL() string {
	return s.buf.String()
}

// Offset returns the byte offset of the next statement to compile.
// At the end of the script it may be past len(SQL()).
func (s *Stream) Offset() int {
	return s.offset
}

// Columns returns the column count of the current row, or 0 with no row.
func (s *Stream) Columns() int {
	return s.cols
}

// Clear releases any compiled statement, empties the script and rewinds.
func (s *Stream) Clear() error {
	err := s.finalize()
	s.buf.Reset()
	s.offset = 0
	s.cols = 0
	return err
}

// Reset releases any compiled statement and rewinds to the start of the
// script, which is kept and can be run again.
func (s *Stream) Reset() error {
	err := s.finalize()
	s.offset = 0
	s.cols = 0
	return err
}

// Close releases any compiled statement. The script is kept.
func (s *Stream) Close() error {
	err := s.finalize()
	s.cols = 0
	return err
}

// ExecSelect runs statements from the current offset until one produces a
// row or the script is exhausted. Statements without rows (DDL, DML) are
// run and passed over in order.
//
// It returns the column count of the row, or 0 when no statements remain.
// A row must not be current: drain it with NextRow, or Reset/Clear first.
func (s *Stream) ExecSelect() (int, error) {
	if s.cols != 0 {
		return 0, usageError("exec select", "called with current row data")
	}

	for {
		ok, err := s.compileNext()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}

		row, err := s.stmt.step()
		if err != nil {
			s.finalize()
			return 0, engineError("step", err)
		}
		if !row {
			continue
		}

		s.cols = s.stmt.columnCount()
		return s.cols, nil
	}
}

// NextRow steps the current statement. It returns the column count when
// another row is available, or 0 when the statement is done. More
// statements may follow; call ExecSelect to continue with them.
func (s *Stream) NextRow() (int, error) {
	if s.stmt == nil {
		return 0, usageError("next row", "called with invalid statement")
	}
	if s.cols == 0 {
		return 0, usageError("next row", "called without current row data")
	}
	if err := s.checkHandle("next row"); err != nil {
		return 0, err
	}

	row, err := s.stmt.step()
	if err != nil {
		s.cols = 0
		s.finalize()
		return 0, engineError("step", err)
	}
	if !row {
		s.cols = 0
		return 0, nil
	}
	return s.stmt.columnCount(), nil
}

// Exec runs every remaining statement, discarding any rows, so that
// statements after an incidental SELECT still run.
func (s *Stream) Exec() error {
	if s.cols != 0 {
		return usageError("exec", "called with current row data")
	}

	for {
		n, err := s.ExecSelect()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		for n > 0 {
			if n, err = s.NextRow(); err != nil {
				return err
			}
		}
	}
}

// ColName returns the name of column col (zero-indexed) of the current row.
func (s *Stream) ColName(col int) (string, error) {
	if err := s.checkColumn(col); err != nil {
		return "", err
	}
	return s.stmt.columnName(col), nil
}

// ColText returns column col of the current row as UTF-8 text.
func (s *Stream) ColText(col int) (string, error) {
	if err := s.checkColumn(col); err != nil {
		return "", err
	}
	return s.stmt.columnText(col), nil
}

// ColInt returns column col of the current row as a 32-bit integer.
// Wider values keep their low 32 bits.
func (s *Stream) ColInt(col int) (int32, error) {
	if err := s.checkColumn(col); err != nil {
		return 0, err
	}
	return int32(s.stmt.columnInt64(col)), nil
}

// ColInt64 returns column col of the current row as a 64-bit integer.
func (s *Stream) ColInt64(col int) (int64, error) {
	if err := s.checkColumn(col); err != nil {
		return 0, err
	}
	return s.stmt.columnInt64(col), nil
}

// ColReal returns column col of the current row as a 64-bit float.
func (s *Stream) ColReal(col int) (float64, error) {
	if err := s.checkColumn(col); err != nil {
		return 0, err
	}
	return s.stmt.columnFloat(col), nil
}

// ColBlob returns a copy of column col of the current row as bytes.
func (s *Stream) ColBlob(col int) ([]byte, error) {
	if err := s.checkColumn(col); err != nil {
		return nil, err
	}
	return s.stmt.columnBlob(col), nil
}

func (s *Stream) checkColumn(col int) error {
	if s.stmt == nil {
		return usageError("column", "called with invalid statement")
	}
	if s.cols == 0 {
		return usageError("column", "called when row not available")
	}
	if err := s.checkHandle("column"); err != nil {
		return err
	}
	if col < 0 || col >= s.cols {
		return usageError("column", fmt.Sprintf("invalid column number %d (have %d)", col, s.cols))
	}
	return nil
}

// checkHandle fails when the Conn was closed or reopened under the current
// statement. Closing the Conn already finalized it.
func (s *Stream) checkHandle(op string) error {
	if s.conn != nil && s.conn.handle != nil && s.conn.handle == s.handle {
		return nil
	}
	s.finalize()
	s.cols = 0
	return usageError(op, "connection closed while statement was live")
}

// compileNext releases the current statement and compiles the next one.
// It reports false once the script is exhausted.
func (s *Stream) compileNext() (bool, error) {
	if err := s.finalize(); err != nil {
		return false, err
	}
	if s.conn == nil || !s.conn.IsOpen() {
		return false, usageError("prepare", "connection is not open")
	}

	for {
		if s.offset >= s.buf.Len() {
			return false, nil
		}

		stmt, consumed, err := s.conn.handle.prepare(s.buf.String()[s.offset:])
		if err != nil {
			return false, engineError("prepare", err)
		}

		// The engine's advance is trusted as is, even past the end.
		s.offset += consumed

		if stmt != nil {
			s.stmt = stmt
			s.handle = s.conn.handle
			return true, nil
		}
		if consumed <= 0 {
			return false, nil
		}
	}
}

func (s *Stream) finalize() error {
	if s.stmt == nil {
		return nil
	}
	stmt := s.stmt
	s.stmt = nil
	if err := stmt.finalize(); err != nil {
		return engineError("finalize", err)
	}
	return nil
}
