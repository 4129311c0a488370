package classify

import "fmt"

// ReviewNote flags a variable that matched a category by name alone. The
// name heuristics are blunt (any *ID, AGE*, *DT), so a variable without a
// corroborating label match deserves a human look before it is stripped.
// Notes are advisory: they never change the classification.
type ReviewNote struct {
	Dataset  string
	Variable string
	Category string
}

// Message renders the note the way it appears in the run log.
func (n ReviewNote) Message() string {
	return fmt.Sprintf("%s.%s matched the %s rules by name only; if it should be retained, list it in the force-keep overrides",
		n.Dataset, n.Variable, n.Category)
}

// Report diffs the name-based matches against the label-based ones for the
// identifier, age, and date categories.
func Report(dataset string, res *Result) []ReviewNote {
	var notes []ReviewNote

	categories := []struct {
		name string
		set  map[string]*Match
	}{
		{"identifier", res.Identifiers},
		{"age", res.AgeVars},
		{"date", res.DateVars},
	}

	for _, cat := range categories {
		for _, name := range sortedNames(cat.set) {
			if cat.set[name].Basis == BasisName {
				notes = append(notes, ReviewNote{
					Dataset:  dataset,
					Variable: name,
					Category: cat.name,
				})
			}
		}
	}

	return notes
}
