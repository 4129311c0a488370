package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Catalog tables carried alongside the data tables. Libraries produced by
// transport conversion populate them; when absent, Describe falls back to
// PRAGMA table_info and labels/formats are empty.
const (
	variablesTable = "_variables"
	datasetsTable  = "_datasets"
)

// SQLLibrary is a dataset library stored in a single SQLite database file.
type SQLLibrary struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) a SQLite dataset library.
func Open(path string) (*SQLLibrary, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create library directory: %w", err)
	}

	// WAL keeps concurrent readers out of the writer's way.
	connStr := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("could not open library %s: %w", path, err)
	}

	lib := &SQLLibrary{db: db, path: path}
	if err := lib.ensureCatalog(); err != nil {
		db.Close()
		return nil, err
	}
	return lib, nil
}

func (l *SQLLibrary) ensureCatalog() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + variablesTable + ` (
			dataset TEXT NOT NULL,
			name    TEXT NOT NULL,
			label   TEXT NOT NULL DEFAULT '',
			format  TEXT NOT NULL DEFAULT '',
			ord     INTEGER NOT NULL,
			PRIMARY KEY (dataset, name)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + datasetsTable + ` (
			name  TEXT NOT NULL PRIMARY KEY,
			label TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("could not prepare library catalog: %w", err)
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Datasets lists the data tables in the library, sorted by name. Catalog
// tables and other underscore-prefixed tables are not datasets.
func (l *SQLLibrary) Datasets() ([]string, error) {
	rows, err := l.db.Query(
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE '\_%' ESCAPE '\' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("could not list datasets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// resolve maps a case-insensitive dataset name to its stored table name.
func (l *SQLLibrary) resolve(dataset string) (string, error) {
	names, err := l.Datasets()
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if strings.EqualFold(n, dataset) {
			return n, nil
		}
	}
	return "", fmt.Errorf("dataset %s not found in %s", dataset, l.path)
}

// Describe returns the ordered variable metadata for a dataset, preferring
// the catalog and falling back to the table schema itself.
func (l *SQLLibrary) Describe(dataset string) ([]VariableMeta, error) {
	table, err := l.resolve(dataset)
	if err != nil {
		return nil, err
	}

	rows, err := l.db.Query(
		`SELECT name, label, format FROM `+variablesTable+` WHERE dataset = ? ORDER BY ord`, table)
	if err != nil {
		return nil, fmt.Errorf("could not read variable catalog for %s: %w", dataset, err)
	}
	defer rows.Close()

	var vars []VariableMeta
	for rows.Next() {
		var v VariableMeta
		if err := rows.Scan(&v.Name, &v.Label, &v.Format); err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(vars) > 0 {
		return vars, nil
	}

	// No catalog entries: names from the schema, no labels or formats.
	prows, err := l.db.Query(`PRAGMA table_info(` + quoteIdent(table) + `)`)
	if err != nil {
		return nil, fmt.Errorf("could not describe %s: %w", dataset, err)
	}
	defer prows.Close()

	for prows.Next() {
		var (
			cid     int
			name    string
			colType sql.NullString
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := prows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		vars = append(vars, VariableMeta{Name: name})
	}
	return vars, prows.Err()
}

func (l *SQLLibrary) RowCount(dataset string) (int, error) {
	table, err := l.resolve(dataset)
	if err != nil {
		return 0, err
	}
	var n int
	err = l.db.QueryRow(`SELECT COUNT(*) FROM ` + quoteIdent(table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("could not count rows of %s: %w", dataset, err)
	}
	return n, nil
}

func (l *SQLLibrary) Label(dataset string) (string, error) {
	table, err := l.resolve(dataset)
	if err != nil {
		return "", err
	}
	var label string
	err = l.db.QueryRow(`SELECT label FROM `+datasetsTable+` WHERE name = ?`, table).Scan(&label)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("could not read label of %s: %w", dataset, err)
	}
	return label, nil
}

// ReadRows returns every record of a dataset in storage order.
func (l *SQLLibrary) ReadRows(dataset string) ([]Row, error) {
	vars, err := l.Describe(dataset)
	if err != nil {
		return nil, err
	}
	table, err := l.resolve(dataset)
	if err != nil {
		return nil, err
	}

	cols := make([]string, len(vars))
	for i, v := range vars {
		cols[i] = quoteIdent(v.Name)
	}
	query := `SELECT ` + strings.Join(cols, ", ") + ` FROM ` + quoteIdent(table)

	rows, err := l.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", dataset, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		values := make([]sql.NullString, len(vars))
		ptrs := make([]any, len(vars))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(Row, len(vars))
		for i, v := range vars {
			r[v.Name] = values[i].String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WriteDataset writes a dataset and its catalog entries, replacing any
// previous dataset of the same name.
func (l *SQLLibrary) WriteDataset(ds *Dataset) error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("could not write %s: %w", ds.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DROP TABLE IF EXISTS ` + quoteIdent(ds.Name)); err != nil {
		return fmt.Errorf("could not replace %s: %w", ds.Name, err)
	}
	if _, err := tx.Exec(`DELETE FROM `+variablesTable+` WHERE dataset = ?`, ds.Name); err != nil {
		return err
	}

	cols := make([]string, len(ds.Variables))
	marks := make([]string, len(ds.Variables))
	for i, v := range ds.Variables {
		cols[i] = quoteIdent(v.Name) + " TEXT"
		marks[i] = "?"
	}
	create := `CREATE TABLE ` + quoteIdent(ds.Name) + ` (` + strings.Join(cols, ", ") + `)`
	if _, err := tx.Exec(create); err != nil {
		return fmt.Errorf("could not create %s: %w", ds.Name, err)
	}

	for i, v := range ds.Variables {
		if _, err := tx.Exec(
			`INSERT INTO `+variablesTable+` (dataset, name, label, format, ord) VALUES (?, ?, ?, ?, ?)`,
			ds.Name, v.Name, v.Label, v.Format, i); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO `+datasetsTable+` (name, label) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET label = excluded.label`,
		ds.Name, ds.Label); err != nil {
		return err
	}

	if len(ds.Rows) > 0 {
		insert := `INSERT INTO ` + quoteIdent(ds.Name) + ` VALUES (` + strings.Join(marks, ", ") + `)`
		stmt, err := tx.Prepare(insert)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range ds.Rows {
			args := make([]any, len(ds.Variables))
			for i, v := range ds.Variables {
				args[i] = r[v.Name]
			}
			if _, err := stmt.Exec(args...); err != nil {
				return fmt.Errorf("could not insert into %s: %w", ds.Name, err)
			}
		}
	}

	return tx.Commit()
}

func (l *SQLLibrary) Path() string { return l.path }

func (l *SQLLibrary) Close() error { return l.db.Close() }
