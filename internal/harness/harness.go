package harness

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/roach88/sqld/internal/sqld"
)

// NameGenerator names the in-memory database of a run.
type NameGenerator interface {
	Generate() string
}

// UUIDv7Generator names databases with time-sortable UUIDv7 strings.
// It is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 in hyphenated form.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Harness executes the steps of one scenario against one connection.
type Harness struct {
	conn   *sqld.Conn
	tx     *sqld.Trans
	logger *slog.Logger
}

// Run executes scenario against a fresh database named by a UUIDv7.
func Run(scenario *Scenario) (*Result, error) {
	return RunWith(scenario, UUIDv7Generator{})
}

// RunWith executes scenario against a fresh database named by names.
// It returns an error only if the database cannot be opened; step
// mismatches are reported in the Result.
func RunWith(scenario *Scenario, names NameGenerator) (*Result, error) {
	uri := scenario.URI
	if uri == "" {
		uri = sqld.MemoryURI(names.Generate())
	}

	conn, err := sqld.Open(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	h := &Harness{
		conn:   conn,
		tx:     sqld.NewTrans(conn),
		logger: slog.Default().With("scenario", scenario.Name),
	}
	// An open transaction at the end of a run is rolled back.
	defer h.tx.Close()

	result := NewResult()
	result.Database = uri
	for i, step := range scenario.Steps {
		h.executeStep(i+1, step, result)
	}

	h.logger.Debug("scenario finished", "pass", result.Pass, "steps", len(scenario.Steps))
	return result, nil
}

func (h *Harness) executeStep(n int, step Step, result *Result) {
	var (
		ev  TraceEvent
		err error
	)
	if step.Tx != "" {
		ev = TraceEvent{Type: "tx", Tx: step.Tx}
		err = h.executeTx(step.Tx)
	} else {
		ev = TraceEvent{Type: "sql", SQL: strings.TrimSpace(step.SQL)}
		ev.Results, err = h.executeSQL(step.SQL)
	}

	if err != nil {
		ev.Error = errorKind(err)
		ev.Message = err.Error()
	}
	result.addEvent(ev)

	switch {
	case err != nil && step.Error == "":
		result.AddError(fmt.Sprintf("step %d: unexpected %s error: %v", n, ev.Error, err))
	case err == nil && step.Error != "":
		result.AddError(fmt.Sprintf("step %d: expected %s error, step succeeded", n, step.Error))
	case err != nil && ev.Error != step.Error:
		result.AddError(fmt.Sprintf("step %d: expected %s error, got %s error: %v", n, step.Error, ev.Error, err))
	}

	if step.Expect != nil {
		for _, msg := range compareResults(step.Expect, ev.Results) {
			result.AddError(fmt.Sprintf("step %d: %s", n, msg))
		}
	}

	h.logger.Debug("step executed", "step", n, "type", ev.Type, "error", ev.Error)
}

func (h *Harness) executeTx(op string) error {
	switch op {
	case TxBegin:
		return h.tx.Begin()
	case TxCommit:
		return h.tx.Commit()
	case TxAbort:
		return h.tx.Abort()
	}
	return fmt.Errorf("unknown tx %q", op)
}

func (h *Harness) executeSQL(script string) ([]ResultSet, error) {
	s := sqld.NewStream(h.conn)
	defer s.Close()

	s.Append(script)
	return Collect(s)
}

// Collect drives s to the end of its buffer and returns every result set
// it produces. Result sets collected before an error are returned with it.
func Collect(s *sqld.Stream) ([]ResultSet, error) {
	var sets []ResultSet
	for {
		n, err := s.ExecSelect()
		if err != nil {
			return sets, err
		}
		if n == 0 {
			return sets, nil
		}

		rs := ResultSet{Columns: make([]string, n), Rows: [][]string{}}
		for i := 0; i < n; i++ {
			if rs.Columns[i], err = s.ColName(i); err != nil {
				return sets, err
			}
		}

		for n > 0 {
			row := make([]string, n)
			for i := 0; i < n; i++ {
				if row[i], err = renderCell(s, i); err != nil {
					return sets, err
				}
			}
			rs.Rows = append(rs.Rows, row)

			if n, err = s.NextRow(); err != nil {
				sets = append(sets, rs)
				return sets, err
			}
		}
		sets = append(sets, rs)
	}
}

// renderCell returns the text of column i, or x'hex' of its bytes when the
// text is not valid UTF-8.
func renderCell(s *sqld.Stream, i int) (string, error) {
	text, err := s.ColText(i)
	if err != nil {
		return "", err
	}
	if utf8.ValidString(text) {
		return text, nil
	}
	b, err := s.ColBlob(i)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("x'%x'", b), nil
}

func errorKind(err error) string {
	switch {
	case sqld.IsUsageError(err):
		return ErrorUsage
	case sqld.IsEngineError(err):
		return ErrorEngine
	}
	return "internal"
}

func compareResults(want, got []ResultSet) []string {
	var errs []string
	if len(want) != len(got) {
		errs = append(errs, fmt.Sprintf("expected %d result sets, got %d", len(want), len(got)))
	}

	for i := 0; i < min(len(want), len(got)); i++ {
		w, g := want[i], got[i]
		if !slices.Equal(w.Columns, g.Columns) {
			errs = append(errs, fmt.Sprintf("result set %d: columns = %q, want %q", i+1, g.Columns, w.Columns))
		}
		if len(w.Rows) != len(g.Rows) {
			errs = append(errs, fmt.Sprintf("result set %d: %d rows, want %d", i+1, len(g.Rows), len(w.Rows)))
			continue
		}
		for j := range w.Rows {
			if !slices.Equal(w.Rows[j], g.Rows[j]) {
				errs = append(errs, fmt.Sprintf("result set %d row %d: %q, want %q", i+1, j+1, g.Rows[j], w.Rows[j]))
			}
		}
	}
	return errs
}
