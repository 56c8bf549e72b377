package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is a named list of steps run against one database.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// URI overrides the database the scenario runs against.
	// If empty, a fresh shared-cache in-memory database is used.
	URI string `yaml:"uri,omitempty"`

	// Steps run in order. A failing step does not stop the run.
	Steps []Step `yaml:"steps"`
}

// Step is either a SQL script or a transaction control.
type Step struct {
	// SQL is a script of one or more statements.
	SQL string `yaml:"sql,omitempty"`

	// Tx is one of begin, commit or abort.
	Tx string `yaml:"tx,omitempty"`

	// Expect lists the result sets the script must produce, in order.
	// Nil means result sets are not checked; an empty list means the script
	// must produce none.
	Expect []ResultSet `yaml:"expect,omitempty"`

	// Error is the kind of error the step must fail with: engine or usage.
	// Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`
}

// ResultSet is the rows of one row-producing statement, rendered as text.
type ResultSet struct {
	Columns []string   `yaml:"columns" json:"columns"`
	Rows    [][]string `yaml:"rows" json:"rows"`
}

// Transaction controls.
const (
	TxBegin  = "begin"
	TxCommit = "commit"
	TxAbort  = "abort"
)

// Error kinds.
const (
	ErrorEngine = "engine"
	ErrorUsage  = "usage"
)

// LoadScenario reads and validates a scenario file.
// Unknown fields are rejected so typos do not silently disable a check.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// ScenarioFiles lists the *.yaml and *.yml files in dir, sorted by path.
func ScenarioFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}

	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list scenarios: %w", err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadScenarios loads every scenario file in dir, sorted by path.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := ScenarioFiles(dir)
	if err != nil {
		return nil, err
	}

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	return nil
}

func validateStep(step Step) error {
	switch {
	case step.SQL == "" && step.Tx == "":
		return fmt.Errorf("one of sql or tx is required")
	case step.SQL != "" && step.Tx != "":
		return fmt.Errorf("sql and tx are mutually exclusive")
	}

	if step.Tx != "" {
		switch step.Tx {
		case TxBegin, TxCommit, TxAbort:
		default:
			return fmt.Errorf("unknown tx %q (want begin, commit or abort)", step.Tx)
		}
		if step.Expect != nil {
			return fmt.Errorf("expect is only valid on sql steps")
		}
	}

	switch step.Error {
	case "", ErrorEngine, ErrorUsage:
	default:
		return fmt.Errorf("unknown error kind %q (want engine or usage)", step.Error)
	}

	for j, rs := range step.Expect {
		for k, row := range rs.Rows {
			if len(row) != len(rs.Columns) {
				return fmt.Errorf("expect[%d] row %d has %d cells, want %d", j, k, len(row), len(rs.Columns))
			}
		}
	}

	return nil
}
