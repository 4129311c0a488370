package store

import (
	"fmt"
	"sort"
	"strings"
)

// VariableMeta describes one dataset variable as recorded in the library
// catalog: its name, descriptive label, and display format.
type VariableMeta struct {
	Name   string
	Label  string
	Format string
}

// Row is a single dataset record keyed by variable name. Cell values keep
// TEXT affinity; a missing value is the empty string.
type Row map[string]string

// Dataset is a named table with ordered variable metadata and its records.
type Dataset struct {
	Name      string
	Label     string
	Variables []VariableMeta
	Rows      []Row
}

// VariableNames returns the dataset's variable names in declared order.
func (d *Dataset) VariableNames() []string {
	names := make([]string, len(d.Variables))
	for i, v := range d.Variables {
		names[i] = v.Name
	}
	return names
}

// FindVariable returns the metadata for the named variable, matched
// case-insensitively, or false if the dataset does not carry it.
func (d *Dataset) FindVariable(name string) (VariableMeta, bool) {
	for _, v := range d.Variables {
		if strings.EqualFold(v.Name, name) {
			return v, true
		}
	}
	return VariableMeta{}, false
}

// Reflector exposes dataset metadata without touching record data.
type Reflector interface {
	// Datasets lists the dataset names in the library, sorted.
	Datasets() ([]string, error)
	// Describe returns the ordered variable metadata for a dataset.
	Describe(dataset string) ([]VariableMeta, error)
	// RowCount returns the number of records in a dataset.
	RowCount(dataset string) (int, error)
}

// Library is full read/write access to a dataset library. The SQLite
// implementation backs real runs; MemLibrary backs tests.
type Library interface {
	Reflector

	// Label returns the dataset's descriptive label, empty if none recorded.
	Label(dataset string) (string, error)
	// ReadRows returns every record of a dataset.
	ReadRows(dataset string) ([]Row, error)
	// WriteDataset writes a dataset, replacing any previous one of that name.
	WriteDataset(ds *Dataset) error
	// Path identifies the library's storage location.
	Path() string
	Close() error
}

// MemLibrary is an in-memory Library used as a test fixture.
type MemLibrary struct {
	path     string
	datasets map[string]*Dataset
	order    []string
}

// NewMemLibrary creates an empty in-memory library identified by path.
func NewMemLibrary(path string) *MemLibrary {
	return &MemLibrary{
		path:     path,
		datasets: make(map[string]*Dataset),
	}
}

// Add stores a dataset in the library, replacing any previous one.
func (m *MemLibrary) Add(ds *Dataset) {
	key := strings.ToUpper(ds.Name)
	if _, ok := m.datasets[key]; !ok {
		m.order = append(m.order, ds.Name)
	}
	m.datasets[key] = ds
}

// Get returns a stored dataset by name, matched case-insensitively.
func (m *MemLibrary) Get(name string) (*Dataset, bool) {
	ds, ok := m.datasets[strings.ToUpper(name)]
	return ds, ok
}

func (m *MemLibrary) lookup(name string) (*Dataset, error) {
	ds, ok := m.datasets[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("dataset %s not found in %s", name, m.path)
	}
	return ds, nil
}

func (m *MemLibrary) Datasets() ([]string, error) {
	names := make([]string, len(m.order))
	copy(names, m.order)
	sort.Strings(names)
	return names, nil
}

func (m *MemLibrary) Describe(dataset string) ([]VariableMeta, error) {
	ds, err := m.lookup(dataset)
	if err != nil {
		return nil, err
	}
	vars := make([]VariableMeta, len(ds.Variables))
	copy(vars, ds.Variables)
	return vars, nil
}

func (m *MemLibrary) RowCount(dataset string) (int, error) {
	ds, err := m.lookup(dataset)
	if err != nil {
		return 0, err
	}
	return len(ds.Rows), nil
}

func (m *MemLibrary) Label(dataset string) (string, error) {
	ds, err := m.lookup(dataset)
	if err != nil {
		return "", err
	}
	return ds.Label, nil
}

func (m *MemLibrary) ReadRows(dataset string) ([]Row, error) {
	ds, err := m.lookup(dataset)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, len(ds.Rows))
	for i, r := range ds.Rows {
		cp := make(Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		rows[i] = cp
	}
	return rows, nil
}

func (m *MemLibrary) WriteDataset(ds *Dataset) error {
	m.Add(ds)
	return nil
}

func (m *MemLibrary) Path() string { return m.path }

func (m *MemLibrary) Close() error { return nil }
