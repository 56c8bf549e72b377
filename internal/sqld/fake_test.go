package sqld

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
)

// fakeEngine is a scripted engine. Each ';'-terminated statement is one of:
//
//	rows N C   yields N rows of C columns
//	fail       fails on the first step
//	bad        fails to compile
//	anything   runs with no rows
//
// A script holding only whitespace reports one byte more than it has, the
// way a C engine counts its terminating NUL.
type fakeEngine struct {
	opened    []string
	openErr   error
	closed    int
	prepared  []string
	live      int
	finalized int
	doubles   int
}

func useFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	fe := &fakeEngine{}
	prev := openEngine
	openEngine = func(uri string) (engineConn, error) {
		if fe.openErr != nil {
			return nil, fe.openErr
		}
		fe.opened = append(fe.opened, uri)
		return &fakeConn{fe: fe}, nil
	}
	t.Cleanup(func() { openEngine = prev })
	return fe
}

type fakeConn struct {
	fe *fakeEngine
}

func (c *fakeConn) prepare(sql string) (engineStmt, int, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, len(sql) + 1, nil
	}

	end := strings.IndexByte(sql, ';')
	if end < 0 {
		end = len(sql) - 1
	}
	text := strings.TrimSpace(sql[:end])
	consumed := end + 1

	if text == "bad" {
		return nil, 0, &EngineError{Code: "SQLITE_ERROR", Msg: "near \"bad\": syntax error"}
	}

	st := &fakeStmt{fe: c.fe, text: text}
	switch {
	case text == "fail":
		st.fail = true
	case strings.HasPrefix(text, "rows "):
		var err error
		if _, err = fmt.Sscanf(text, "rows %d %d", &st.rows, &st.cols); err != nil {
			return nil, 0, err
		}
	}
	c.fe.prepared = append(c.fe.prepared, text)
	c.fe.live++
	return st, consumed, nil
}

func (c *fakeConn) close() error {
	c.fe.closed++
	return nil
}

type fakeStmt struct {
	fe        *fakeEngine
	text      string
	rows      int
	cols      int
	fail      bool
	cur       int
	finalized bool
}

func (s *fakeStmt) step() (bool, error) {
	if s.fail {
		return false, errors.New("constraint failed")
	}
	if s.cur >= s.rows {
		return false, nil
	}
	s.cur++
	return true, nil
}

func (s *fakeStmt) columnCount() int          { return s.cols }
func (s *fakeStmt) columnName(col int) string { return "c" + strconv.Itoa(col) }
func (s *fakeStmt) columnText(col int) string {
	return fmt.Sprintf("r%dc%d", s.cur, col)
}
func (s *fakeStmt) columnInt64(col int) int64   { return int64(s.cur*100 + col) }
func (s *fakeStmt) columnFloat(col int) float64 { return float64(s.cur) + float64(col)/10 }
func (s *fakeStmt) columnBlob(col int) []byte   { return []byte{byte(s.cur), byte(col)} }

func (s *fakeStmt) finalize() error {
	if s.finalized {
		s.fe.doubles++
		return nil
	}
	s.finalized = true
	s.fe.live--
	s.fe.finalized++
	return nil
}
