// Package harness runs SQL scenarios against a fresh database and checks the
// result sets they produce.
//
// A scenario is a YAML file:
//
//	name: insert_and_select
//	description: rows written in a transaction are visible after commit
//	steps:
//	  - tx: begin
//	  - sql: |
//	      create table t(a INTEGER, b TEXT);
//	      insert into t values (1, 'one');
//	  - tx: commit
//	  - sql: select a, b from t;
//	    expect:
//	      - columns: [a, b]
//	        rows: [["1", "one"]]
//	  - sql: select * from missing;
//	    error: engine
//
// Every step is executed through sqld: sql steps through a Stream, tx steps
// through a Trans shared by the whole scenario. Result sets are collected
// with ExecSelect and NextRow and each cell is rendered as text. Cells that
// are not valid UTF-8 render as x'hex'.
//
// Each run uses its own shared-cache in-memory database unless the scenario
// names a uri. The trace of a run can be snapshotted as canonical JSON and
// compared against golden files with RunWithGolden.
package harness
