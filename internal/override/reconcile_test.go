package override

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-deid/internal/classify"
	"study-deid/internal/store"
)

var testParams = classify.Params{
	SubjectKey:  "USUBJID",
	RandomIDVar: "RANDID",
	AgeGroupVar: "AGEGRP",
	RefDateVar:  "RFSTDT",
}

func aeVars() []store.VariableMeta {
	return []store.VariableMeta{
		{Name: "STUDYID", Label: "Study Identifier"},
		{Name: "USUBJID", Label: "Unique Subject Identifier"},
		{Name: "SITEID", Label: "Study Site Identifier"},
		{Name: "AGE", Label: "Age"},
		{Name: "BRTHDT", Label: "Date of Birth"},
		{Name: "AESDT", Label: "Start Date"},
		{Name: "AEENDT", Label: "End Date", Format: "DATE9."},
		{Name: "AESDTM", Label: "Start Date/Time"},
		{Name: "AETERM", Label: "Reported Term"},
		{Name: "AESEV", Label: "Severity"},
	}
}

func names(vars []store.VariableMeta) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = v.Name
	}
	return out
}

func reconcileAE(t *testing.T, ov Set) (*Resolution, error) {
	t.Helper()
	vars := aeVars()
	res := classify.Classify(vars, testParams)
	return Reconcile(res, ov, names(vars), testParams)
}

func TestOverlap(t *testing.T) {
	assert.Empty(t, Overlap(Set{Keep: []string{"SITEID"}, Drop: []string{"AETERM"}}))
	assert.Equal(t, []string{"siteid"}, Overlap(Set{Keep: []string{"SITEID"}, Drop: []string{"siteid"}}))
	assert.Empty(t, Overlap(Set{}))
}

func TestReconcileNoOverrides(t *testing.T) {
	r, err := reconcileAE(t, Set{})
	require.NoError(t, err)

	// Heuristic candidates drop; AEENDT is format-protected and survives.
	assert.Equal(t, []string{"AESDT", "AESDTM", "AGE", "SITEID"}, r.DropList)
	assert.Contains(t, r.Dates, "AESDT")
	assert.Contains(t, r.Dates, "AEENDT")
}

func TestDropListNeverContainsProtectedVariables(t *testing.T) {
	// Regardless of override input, the subject key and the birth date
	// never travel on the drop list; the transform handles them itself.
	sets := []Set{
		{},
		{Drop: []string{"USUBJID", "BRTHDT"}},
		{Keep: []string{"USUBJID"}, Drop: []string{"BRTHDT", "AETERM"}},
	}
	for _, ov := range sets {
		r, err := reconcileAE(t, ov)
		require.NoError(t, err)
		assert.NotContains(t, r.DropList, "USUBJID")
		assert.NotContains(t, r.DropList, "BRTHDT")
	}
}

func TestReconcileOverlapIsFatal(t *testing.T) {
	// Scenario: SITEID in both lists.
	r, err := reconcileAE(t, Set{Keep: []string{"SITEID"}, Drop: []string{"SITEID"}})
	assert.Nil(t, r)

	var overlap *OverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, []string{"SITEID"}, overlap.Variables)
}

func TestReconcileStripsProtectedKeepsBeforeOverlapCheck(t *testing.T) {
	// USUBJID leaves the keep list in step one, so keeping and dropping it
	// at once is not an overlap.
	r, err := reconcileAE(t, Set{Keep: []string{"USUBJID"}, Drop: []string{"USUBJID"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"USUBJID"}, r.StrippedKeeps)
}

func TestReconcileKeepExemptsVariables(t *testing.T) {
	r, err := reconcileAE(t, Set{Keep: []string{"SITEID", "AGE", "AESDT"}})
	require.NoError(t, err)

	assert.NotContains(t, r.DropList, "SITEID")
	assert.NotContains(t, r.DropList, "AGE")
	assert.NotContains(t, r.DropList, "AESDT")
	// A kept date variable leaves the date set, so no day derivation.
	assert.NotContains(t, r.Dates, "AESDT")
	assert.Contains(t, r.Dates, "AEENDT")
}

func TestReconcileKeepOfProtectedDateIsMoot(t *testing.T) {
	r, err := reconcileAE(t, Set{Keep: []string{"AEENDT"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"AEENDT"}, r.ProtectedKeeps)
	assert.Contains(t, r.Dates, "AEENDT", "stays classified as a date variable")
	assert.NotContains(t, r.DropList, "AEENDT")
}

func TestReconcileDropOfProtectedDateIsRefused(t *testing.T) {
	r, err := reconcileAE(t, Set{Drop: []string{"AEENDT"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"AEENDT"}, r.ProtectedDrops)
	assert.NotContains(t, r.DropList, "AEENDT")
	assert.Contains(t, r.Dates, "AEENDT")
}

func TestReconcileDropIntersectsActualVariables(t *testing.T) {
	r, err := reconcileAE(t, Set{Drop: []string{"AETERM", "NOTHERE", "aesev"}})
	require.NoError(t, err)

	assert.Contains(t, r.DropList, "AETERM")
	assert.Contains(t, r.DropList, "AESEV")
	assert.NotContains(t, r.DropList, "NOTHERE")
}

func TestAllIDSuffixedVariablesDropAbsentOverride(t *testing.T) {
	vars := []store.VariableMeta{
		{Name: "STUDYID"},
		{Name: "USUBJID"},
		{Name: "RANDID"},
		{Name: "SITEID"},
		{Name: "INVID"},
		{Name: "SPDEVID"},
		{Name: "AETERM"},
	}
	res := classify.Classify(vars, testParams)
	r, err := Reconcile(res, Set{}, names(vars), testParams)
	require.NoError(t, err)

	assert.Equal(t, []string{"INVID", "SITEID", "SPDEVID"}, r.DropList)
}
