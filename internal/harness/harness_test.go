package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqld/internal/sqld"
	"github.com/roach88/sqld/internal/testutil"
)

func runScenario(t *testing.T, s *Scenario) *Result {
	t.Helper()
	result, err := Run(s)
	require.NoError(t, err)
	return result
}

func TestRun_Pass(t *testing.T) {
	result := runScenario(t, &Scenario{
		Name:        "pass",
		Description: "d",
		Steps: []Step{
			{SQL: "create table t(a INTEGER); insert into t values (7);"},
			{SQL: "select a from t;", Expect: []ResultSet{{Columns: []string{"a"}, Rows: [][]string{{"7"}}}}},
		},
	})

	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, "sql", result.Trace[0].Type)
	assert.Empty(t, result.Trace[0].Results)
	assert.Equal(t, int64(2), result.Trace[1].Seq)
}

func TestRun_ResultMismatch(t *testing.T) {
	result := runScenario(t, &Scenario{
		Name:        "mismatch",
		Description: "d",
		Steps: []Step{
			{SQL: "select 1 as a;", Expect: []ResultSet{{Columns: []string{"b"}, Rows: [][]string{{"2"}}}}},
			{SQL: "select 1 as a;", Expect: []ResultSet{}},
			{SQL: "select 1 as a union all select 2;", Expect: []ResultSet{{Columns: []string{"a"}, Rows: [][]string{{"1"}}}}},
		},
	})

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "step 1: result set 1: columns")
	assert.Contains(t, result.Errors[1], "step 1: result set 1 row 1")
	assert.Contains(t, result.Errors[2], "step 2: expected 0 result sets, got 1")
	assert.Contains(t, result.Errors[3], "step 3: result set 1: 2 rows, want 1")
}

func TestRun_ErrorExpectations(t *testing.T) {
	result := runScenario(t, &Scenario{
		Name:        "errors",
		Description: "d",
		Steps: []Step{
			{SQL: "select * from missing;", Error: ErrorEngine},
			{SQL: "select * from missing;"},
			{SQL: "select 1;", Error: ErrorEngine},
			{Tx: TxCommit, Error: ErrorEngine},
		},
	})

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "step 2: unexpected engine error")
	assert.Contains(t, result.Errors[1], "step 3: expected engine error, step succeeded")
	assert.Contains(t, result.Errors[2], "step 4: expected engine error, got usage error")

	assert.Equal(t, ErrorEngine, result.Trace[0].Error)
	assert.NotEmpty(t, result.Trace[0].Message)
	assert.Empty(t, result.Trace[2].Error)
	assert.Equal(t, ErrorUsage, result.Trace[3].Error)
}

func TestRun_ResultsBeforeError(t *testing.T) {
	result := runScenario(t, &Scenario{
		Name:        "partial",
		Description: "d",
		Steps: []Step{
			{
				SQL:   "select 'x' as a; select * from missing; select 'y' as b;",
				Error: ErrorEngine,
				Expect: []ResultSet{
					{Columns: []string{"a"}, Rows: [][]string{{"x"}}},
				},
			},
		},
	})

	assert.True(t, result.Pass, result.Errors)
}

func TestRun_OpenTransactionRolledBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	uri := testutil.FileURI(t, path, "rwc")

	result := runScenario(t, &Scenario{
		Name:        "open_tx",
		Description: "d",
		URI:         uri,
		Steps: []Step{
			{SQL: "create table t(a INTEGER);"},
			{Tx: TxBegin},
			{SQL: "insert into t values (1);"},
		},
	})
	require.True(t, result.Pass, result.Errors)
	assert.Equal(t, uri, result.Database)

	result = runScenario(t, &Scenario{
		Name:        "after",
		Description: "d",
		URI:         uri,
		Steps: []Step{
			{SQL: "select count(*) as n from t;", Expect: []ResultSet{{Columns: []string{"n"}, Rows: [][]string{{"0"}}}}},
		},
	})
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_NullAndBlobCells(t *testing.T) {
	result := runScenario(t, &Scenario{
		Name:        "cells",
		Description: "d",
		Steps: []Step{
			{SQL: "select null as n, x'00ff' as b, x'6869' as h, 2.5 as r;"},
		},
	})
	require.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace[0].Results, 1)
	assert.Equal(t, [][]string{{"", "x'00ff'", "hi", "2.5"}}, result.Trace[0].Results[0].Rows)
}

func TestRunWith_NamesDatabase(t *testing.T) {
	names := testutil.NewSequenceNameGenerator("harness-" + t.Name())
	s := &Scenario{Name: "n", Description: "d", Steps: []Step{{SQL: "select 1;"}}}

	first, err := RunWith(s, names)
	require.NoError(t, err)
	second, err := RunWith(s, names)
	require.NoError(t, err)

	assert.Equal(t, testutil.MemoryURI("harness-"+t.Name()+"-1"), first.Database)
	assert.Equal(t, testutil.MemoryURI("harness-"+t.Name()+"-2"), second.Database)
}

func TestRun_FreshDatabaseEachRun(t *testing.T) {
	s := &Scenario{Name: "fresh", Description: "d", Steps: []Step{{SQL: "create table t(a);"}}}

	for i := 0; i < 2; i++ {
		result := runScenario(t, s)
		assert.True(t, result.Pass, result.Errors)
	}
}

func TestRun_OpenFailure(t *testing.T) {
	uri := testutil.FileURI(t, filepath.Join(t.TempDir(), "missing", "db"), "ro")
	_, err := Run(&Scenario{Name: "n", Description: "d", URI: uri, Steps: []Step{{SQL: "select 1;"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestCollect(t *testing.T) {
	c, err := sqld.Open(testutil.UniqueMemoryURI(t))
	require.NoError(t, err)
	defer c.Close()

	s := sqld.NewStream(c)
	defer s.Close()
	s.Append("create table t(a); insert into t values ('p'), ('q'); select a from t order by a; select count(*) as n from t;")

	sets, err := Collect(s)
	require.NoError(t, err)
	assert.Equal(t, []ResultSet{
		{Columns: []string{"a"}, Rows: [][]string{{"p"}, {"q"}}},
		{Columns: []string{"n"}, Rows: [][]string{{"2"}}},
	}, sets)

	// The stream is exhausted.
	n, err := s.ExecSelect()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRunWith_FixedNameStartsEmptyEachRun(t *testing.T) {
	names := testutil.NewFixedNameGenerator("harness-fixed-" + t.Name())
	s := &Scenario{Name: "fixed", Description: "d", Steps: []Step{{SQL: "create table t(a);"}}}

	// The in-memory database is dropped when the run closes its connection,
	// so the same name can be reused.
	for i := 0; i < 2; i++ {
		result, err := RunWith(s, names)
		require.NoError(t, err)
		assert.True(t, result.Pass, result.Errors)
	}
}
