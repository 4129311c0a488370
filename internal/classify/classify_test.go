package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-deid/internal/store"
)

var testParams = Params{
	SubjectKey:  "USUBJID",
	RandomIDVar: "RANDID",
	AgeGroupVar: "AGEGRP",
	RefDateVar:  "RFSTDT",
}

func adslVars() []store.VariableMeta {
	return []store.VariableMeta{
		{Name: "STUDYID", Label: "Study Identifier"},
		{Name: "USUBJID", Label: "Unique Subject Identifier"},
		{Name: "RANDID", Label: "Random Subject Identifier"},
		{Name: "AGEGRP", Label: "Age Group"},
		{Name: "RFSTDT", Label: "Reference Start Date", Format: "DATE9."},
		{Name: "SITEID", Label: "Study Site Identifier"},
		{Name: "AGE", Label: "Age"},
		{Name: "AGEU", Label: "Age Units"},
		{Name: "BRTHDT", Label: "Date of Birth", Format: "DATE9."},
		{Name: "SEX", Label: "Sex"},
	}
}

func TestClassifyExcludesAnchorVariables(t *testing.T) {
	res := Classify(adslVars(), testParams)

	// The subject key, the substitute fields, and STUDYID are never
	// candidates, no matter how strongly their names and labels match.
	for _, name := range []string{"USUBJID", "RANDID", "AGEGRP", "STUDYID", "RFSTDT"} {
		assert.NotContains(t, res.Identifiers, name)
		assert.NotContains(t, res.AgeVars, name)
		assert.NotContains(t, res.DateVars, name)
		assert.NotContains(t, res.Other, name)
	}
}

func TestClassifyBucketsAndProvenance(t *testing.T) {
	res := Classify(adslVars(), testParams)

	require.Contains(t, res.Identifiers, "SITEID")
	assert.Equal(t, BasisBoth, res.Identifiers["SITEID"].Basis)

	require.Contains(t, res.AgeVars, "AGE")
	assert.Equal(t, BasisBoth, res.AgeVars["AGE"].Basis)
	require.Contains(t, res.AgeVars, "AGEU")
	assert.Equal(t, BasisBoth, res.AgeVars["AGEU"].Basis)

	assert.NotContains(t, res.Identifiers, "SEX")
	assert.NotContains(t, res.AgeVars, "SEX")
}

func TestClassifyBirthDateIsOtherNotDate(t *testing.T) {
	res := Classify(adslVars(), testParams)

	require.Contains(t, res.Other, "BRTHDT")
	assert.NotContains(t, res.DateVars, "BRTHDT")
}

func TestClassifyDatetimesAreOtherRegardlessOfLabel(t *testing.T) {
	vars := []store.VariableMeta{
		{Name: "USUBJID", Label: "Unique Subject Identifier"},
		{Name: "VISITDTM", Label: "Visit Date and Time"},
	}
	res := Classify(vars, testParams)

	require.Contains(t, res.Other, "VISITDTM")
	assert.NotContains(t, res.DateVars, "VISITDTM")
}

func TestClassifyDateVariables(t *testing.T) {
	vars := []store.VariableMeta{
		{Name: "USUBJID", Label: "Unique Subject Identifier"},
		{Name: "AESDT", Label: "Start Date"},
		{Name: "AEENDT", Label: "", Format: "DATE9."},
		{Name: "LBDAT", Label: "Collection Visit", Format: "YYMMDD10."},
		{Name: "AETERM", Label: "Reported Term"},
	}
	res := Classify(vars, testParams)

	require.Contains(t, res.DateVars, "AESDT")
	assert.Equal(t, BasisBoth, res.DateVars["AESDT"].Basis)
	assert.Equal(t, "Start Date", res.DateVars["AESDT"].Label, "label retained verbatim")
	assert.False(t, res.DateVars["AESDT"].ProtectedFormat)

	require.Contains(t, res.DateVars, "AEENDT")
	assert.Equal(t, BasisName, res.DateVars["AEENDT"].Basis)
	assert.True(t, res.DateVars["AEENDT"].ProtectedFormat)

	// Matched by format alone: neither the name nor the label says date.
	require.Contains(t, res.DateVars, "LBDAT")
	assert.Equal(t, BasisFormat, res.DateVars["LBDAT"].Basis)
	assert.True(t, res.DateVars["LBDAT"].ProtectedFormat)

	assert.NotContains(t, res.DateVars, "AETERM")
}

func TestReportFlagsNameOnlyMatches(t *testing.T) {
	vars := []store.VariableMeta{
		{Name: "USUBJID", Label: "Unique Subject Identifier"},
		{Name: "SITEID", Label: "Study Site Identifier"}, // both: no note
		{Name: "RAPID", Label: "Response Score"},         // name only: note
		{Name: "AGEU", Label: "Units"},                   // name only: note
		{Name: "AEENDT", Label: "End of Event"},          // name only: note
	}
	res := Classify(vars, testParams)
	notes := Report("AE", res)

	require.Len(t, notes, 3)
	byVar := make(map[string]ReviewNote)
	for _, n := range notes {
		byVar[n.Variable] = n
	}
	assert.Equal(t, "identifier", byVar["RAPID"].Category)
	assert.Equal(t, "age", byVar["AGEU"].Category)
	assert.Equal(t, "date", byVar["AEENDT"].Category)
	assert.Equal(t, "AE", byVar["RAPID"].Dataset)
	assert.Contains(t, byVar["RAPID"].Message(), "force-keep")
}

func TestReportNeverAltersClassification(t *testing.T) {
	vars := []store.VariableMeta{
		{Name: "USUBJID", Label: "Unique Subject Identifier"},
		{Name: "RAPID", Label: "Response Score"},
	}
	res := Classify(vars, testParams)
	_ = Report("AE", res)

	assert.Contains(t, res.Identifiers, "RAPID")
}
