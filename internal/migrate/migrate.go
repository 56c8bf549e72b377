package migrate

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/roach88/sqld/internal/sqld"
)

// Migration is one versioned script.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

var fileNamePattern = regexp.MustCompile(`^(\d+)_([A-Za-z0-9_-]+)\.sql$`)

// Load reads the migrations in dir of fsys, sorted by version.
// Files without a .sql extension are ignored. A .sql file whose name does
// not match NNNN_name.sql, a zero version or a repeated version is an error.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		m := fileNamePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			return nil, fmt.Errorf("migration %q: name must look like 0001_name.sql", entry.Name())
		}
		version, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", entry.Name(), err)
		}
		if version == 0 {
			return nil, fmt.Errorf("migration %q: version must be positive", entry.Name())
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration %q: version %d already used by %q", entry.Name(), version, prev)
		}
		seen[version] = entry.Name()

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: version,
			Name:    m[2],
			SQL:     string(data),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Current returns the schema version recorded in the database.
func Current(conn *sqld.Conn) (int, error) {
	s := sqld.NewStream(conn)
	defer s.Close()

	s.Append("PRAGMA user_version;")
	n, err := s.ExecSelect()
	if err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("get user_version: no row returned")
	}
	v, err := s.ColInt64(0)
	if err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return int(v), nil
}

// Apply runs every migration newer than the database's version, in order.
// It returns the version the database is at afterwards. On failure the
// failing migration is rolled back and earlier ones stay applied.
func Apply(conn *sqld.Conn, migrations []Migration) (int, error) {
	version, err := Current(conn)
	if err != nil {
		return 0, err
	}

	for _, m := range migrations {
		if m.Version <= version {
			continue
		}
		if err := applyOne(conn, m); err != nil {
			return version, fmt.Errorf("migrate to v%d (%s): %w", m.Version, m.Name, err)
		}
		version = m.Version
		slog.Info("migration applied", "version", m.Version, "name", m.Name)
	}

	return version, nil
}

func applyOne(conn *sqld.Conn, m Migration) error {
	tx := sqld.NewTrans(conn)
	defer tx.Close()

	if err := tx.Begin(); err != nil {
		return err
	}

	s := sqld.NewStream(conn)
	defer s.Close()

	// The newline ends a trailing line comment, the semicolon an unterminated
	// last statement.
	s.Append(m.SQL, "\n;\n")
	s.Printf("PRAGMA user_version = %d;", m.Version)
	if err := s.Exec(); err != nil {
		return err
	}

	return tx.Commit()
}
