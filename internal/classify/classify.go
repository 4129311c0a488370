// Package classify decides which variables of a clinical dataset could
// reveal subject identity. It buckets candidates into identifier, age,
// date, and other-sensitive sets from name, label, and display-format
// heuristics, keeping the match provenance so downstream review and
// override handling can reason about how each decision was made.
package classify

import (
	"sort"
	"strings"

	"study-deid/internal/store"
)

// DefaultBirthDateVar is the conventional birth-date variable name.
const DefaultBirthDateVar = "BRTHDT"

// MatchBasis records which heuristic claimed a variable.
type MatchBasis string

const (
	BasisName   MatchBasis = "name"
	BasisLabel  MatchBasis = "label"
	BasisBoth   MatchBasis = "both"
	BasisFormat MatchBasis = "format"
)

// Match is one classified variable with its provenance. For date variables
// the original label is retained verbatim for later day-label derivation,
// and ProtectedFormat marks a fixed date-only display format.
type Match struct {
	Basis           MatchBasis
	Label           string
	ProtectedFormat bool
}

// Result holds the per-dataset candidate sets, keyed by variable name as it
// appears in the dataset. A Result is built fresh for every dataset and
// discarded after its transform completes.
type Result struct {
	Identifiers map[string]*Match
	AgeVars     map[string]*Match
	DateVars    map[string]*Match
	Other       map[string]*Match
}

// Params names the variables that anchor classification. The subject key,
// the substitute fields, and STUDYID are never candidates themselves.
type Params struct {
	SubjectKey   string
	RandomIDVar  string
	AgeGroupVar  string
	RefDateVar   string
	BirthDateVar string
}

func (p *Params) birthDateVar() string {
	if p.BirthDateVar == "" {
		return DefaultBirthDateVar
	}
	return p.BirthDateVar
}

// IsBirthDate reports whether name is the birth-date variable.
func (p *Params) IsBirthDate(name string) bool {
	return strings.EqualFold(name, p.birthDateVar())
}

func (p *Params) isExcluded(name string) bool {
	return strings.EqualFold(name, p.SubjectKey) ||
		strings.EqualFold(name, p.RandomIDVar) ||
		strings.EqualFold(name, p.AgeGroupVar) ||
		strings.EqualFold(name, "STUDYID")
}

func basisOf(byName, byLabel bool) MatchBasis {
	switch {
	case byName && byLabel:
		return BasisBoth
	case byName:
		return BasisName
	default:
		return BasisLabel
	}
}

// Classify applies the heuristic rules to every variable of a dataset.
func Classify(vars []store.VariableMeta, p Params) *Result {
	res := &Result{
		Identifiers: make(map[string]*Match),
		AgeVars:     make(map[string]*Match),
		DateVars:    make(map[string]*Match),
		Other:       make(map[string]*Match),
	}

	for _, v := range vars {
		if p.isExcluded(v.Name) {
			continue
		}

		// Birth dates and date-times are always sensitive, whatever the
		// label says.
		if p.IsBirthDate(v.Name) || NameSaysDatetime(v.Name) {
			res.Other[v.Name] = &Match{Basis: BasisName, Label: v.Label}
		}

		if byName, byLabel := NameSaysIdentifier(v.Name), LabelSaysIdentifier(v.Label); byName || byLabel {
			res.Identifiers[v.Name] = &Match{Basis: basisOf(byName, byLabel), Label: v.Label}
		}

		if byName, byLabel := NameSaysAge(v.Name), LabelSaysAge(v.Label); byName || byLabel {
			res.AgeVars[v.Name] = &Match{Basis: basisOf(byName, byLabel), Label: v.Label}
		}

		// Date candidacy excludes the birth-date variable (other-sensitive),
		// the reference date (consumed by day derivation), and date-times.
		if p.IsBirthDate(v.Name) || strings.EqualFold(v.Name, p.RefDateVar) || NameSaysDatetime(v.Name) {
			continue
		}
		byName := NameSaysDate(v.Name)
		byLabel := LabelSaysDate(v.Label)
		byFormat := HasDateFormat(v.Format)
		if byName || byLabel || byFormat {
			m := &Match{Label: v.Label, ProtectedFormat: byFormat}
			if byName || byLabel {
				m.Basis = basisOf(byName, byLabel)
			} else {
				m.Basis = BasisFormat
			}
			res.DateVars[v.Name] = m
		}
	}

	return res
}

// sortedNames returns the keys of a candidate set in stable order.
func sortedNames(set map[string]*Match) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
