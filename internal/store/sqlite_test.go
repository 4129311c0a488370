package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLibrary(t *testing.T) *SQLLibrary {
	t.Helper()
	lib, err := Open(filepath.Join(t.TempDir(), "study.db"))
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })
	return lib
}

func sampleAE() *Dataset {
	return &Dataset{
		Name:  "AE",
		Label: "Adverse Events",
		Variables: []VariableMeta{
			{Name: "USUBJID", Label: "Unique Subject Identifier"},
			{Name: "AESDT", Label: "Start Date", Format: "DATE9."},
			{Name: "AETERM", Label: "Reported Term"},
		},
		Rows: []Row{
			{"USUBJID": "001", "AESDT": "2020-01-15", "AETERM": "HEADACHE"},
			{"USUBJID": "002", "AESDT": "", "AETERM": "NAUSEA"},
		},
	}
}

func TestSQLLibraryRoundTrip(t *testing.T) {
	lib := openTestLibrary(t)
	require.NoError(t, lib.WriteDataset(sampleAE()))

	names, err := lib.Datasets()
	require.NoError(t, err)
	assert.Equal(t, []string{"AE"}, names, "catalog tables are not datasets")

	vars, err := lib.Describe("AE")
	require.NoError(t, err)
	require.Len(t, vars, 3)
	assert.Equal(t, "AESDT", vars[1].Name)
	assert.Equal(t, "Start Date", vars[1].Label)
	assert.Equal(t, "DATE9.", vars[1].Format)

	label, err := lib.Label("AE")
	require.NoError(t, err)
	assert.Equal(t, "Adverse Events", label)

	n, err := lib.RowCount("AE")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := lib.ReadRows("AE")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "HEADACHE", rows[0]["AETERM"])
	assert.Equal(t, "", rows[1]["AESDT"], "missing values come back as empty strings")
}

func TestSQLLibraryCaseInsensitiveLookup(t *testing.T) {
	lib := openTestLibrary(t)
	require.NoError(t, lib.WriteDataset(sampleAE()))

	n, err := lib.RowCount("ae")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = lib.Describe("VS")
	assert.Error(t, err)
}

func TestSQLLibraryWriteReplacesPreviousDataset(t *testing.T) {
	lib := openTestLibrary(t)
	require.NoError(t, lib.WriteDataset(sampleAE()))

	replacement := &Dataset{
		Name:  "AE",
		Label: "Adverse Events (Deidentified)",
		Variables: []VariableMeta{
			{Name: "RANDID", Label: "Random Subject Identifier"},
			{Name: "AETERM", Label: "Reported Term"},
		},
		Rows: []Row{{"RANDID": "R1", "AETERM": "HEADACHE"}},
	}
	require.NoError(t, lib.WriteDataset(replacement))

	vars, err := lib.Describe("AE")
	require.NoError(t, err)
	require.Len(t, vars, 2, "old catalog entries are gone")
	assert.Equal(t, "RANDID", vars[0].Name)

	label, err := lib.Label("AE")
	require.NoError(t, err)
	assert.Equal(t, "Adverse Events (Deidentified)", label)

	n, err := lib.RowCount("AE")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLLibraryDescribeFallsBackToTableSchema(t *testing.T) {
	lib := openTestLibrary(t)

	// A table created outside the conversion pipeline has no catalog rows.
	_, err := lib.db.Exec(`CREATE TABLE DM (USUBJID TEXT, SEX TEXT)`)
	require.NoError(t, err)

	vars, err := lib.Describe("DM")
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Equal(t, "USUBJID", vars[0].Name)
	assert.Empty(t, vars[0].Label)
	assert.Empty(t, vars[0].Format)

	label, err := lib.Label("DM")
	require.NoError(t, err)
	assert.Empty(t, label)
}

func TestSQLLibraryEmptyDataset(t *testing.T) {
	lib := openTestLibrary(t)
	require.NoError(t, lib.WriteDataset(&Dataset{
		Name:      "CM",
		Variables: []VariableMeta{{Name: "USUBJID"}, {Name: "CMTRT"}},
	}))

	n, err := lib.RowCount("CM")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	rows, err := lib.ReadRows("CM")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
