package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetFindVariable(t *testing.T) {
	ds := &Dataset{
		Variables: []VariableMeta{
			{Name: "USUBJID", Label: "Unique Subject Identifier"},
			{Name: "AESDT", Label: "Start Date"},
		},
	}

	v, ok := ds.FindVariable("aesdt")
	require.True(t, ok)
	assert.Equal(t, "AESDT", v.Name)

	_, ok = ds.FindVariable("AETERM")
	assert.False(t, ok)
}

func TestMemLibraryReadRowsCopies(t *testing.T) {
	lib := NewMemLibrary("mem")
	lib.Add(&Dataset{
		Name:      "AE",
		Variables: []VariableMeta{{Name: "USUBJID"}},
		Rows:      []Row{{"USUBJID": "001"}},
	})

	rows, err := lib.ReadRows("AE")
	require.NoError(t, err)
	rows[0]["USUBJID"] = "mutated"

	again, err := lib.ReadRows("ae")
	require.NoError(t, err)
	assert.Equal(t, "001", again[0]["USUBJID"], "callers get copies, not the stored rows")
}

func TestMemLibraryUnknownDataset(t *testing.T) {
	lib := NewMemLibrary("mem")
	_, err := lib.ReadRows("AE")
	assert.Error(t, err)
	_, err = lib.Describe("AE")
	assert.Error(t, err)
}
