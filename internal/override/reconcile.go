// Package override reconciles user-supplied force-keep and force-drop
// lists with the heuristic classification of a dataset, producing the
// final list of variables the transform will strip.
package override

import (
	"fmt"
	"sort"
	"strings"

	"study-deid/internal/classify"
)

// Set holds the user's force-keep and force-drop variable lists. The same
// set applies to every dataset in a run; names absent from a particular
// dataset are ignored for that dataset.
type Set struct {
	Keep []string
	Drop []string
}

// OverlapError reports variables named in both the keep and drop lists.
// The request is contradictory, so the whole run aborts.
type OverlapError struct {
	Variables []string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("force-keep and force-drop overlap on: %s", strings.Join(e.Variables, ", "))
}

// Overlap returns the case-insensitive intersection of the keep and drop
// lists, sorted. Callers check it once up front so a conflicting request
// aborts before any dataset is touched.
func Overlap(ov Set) []string {
	keep := make(map[string]bool, len(ov.Keep))
	for _, k := range ov.Keep {
		keep[strings.ToUpper(k)] = true
	}
	seen := make(map[string]bool)
	var both []string
	for _, d := range ov.Drop {
		u := strings.ToUpper(d)
		if keep[u] && !seen[u] {
			seen[u] = true
			both = append(both, d)
		}
	}
	sort.Strings(both)
	return both
}

// Resolution is the reconciled outcome for one dataset.
type Resolution struct {
	// DropList is the final, sorted set of variables to strip.
	DropList []string
	// Dates is the surviving date-variable set driving day derivation.
	Dates map[string]*classify.Match
	// StrippedKeeps are protected variables removed from the keep list.
	StrippedKeeps []string
	// ProtectedKeeps are keep requests on fixed-date-format variables;
	// the protection rule already governs them, so the request is moot.
	ProtectedKeeps []string
	// ProtectedDrops are drop requests on fixed-date-format variables;
	// the protection rule wins and the variable is not removed.
	ProtectedDrops []string
}

func containsFold(names []string, want string) bool {
	for _, n := range names {
		if strings.EqualFold(n, want) {
			return true
		}
	}
	return false
}

func findFold(set map[string]*classify.Match, want string) (string, *classify.Match, bool) {
	for name, m := range set {
		if strings.EqualFold(name, want) {
			return name, m, true
		}
	}
	return "", nil, false
}

// Reconcile merges the override set into a dataset's classification. The
// classification result is the per-dataset working context and is modified
// in place; it must not be reused across datasets.
func Reconcile(res *classify.Result, ov Set, actual []string, p classify.Params) (*Resolution, error) {
	r := &Resolution{}

	// The subject key and the birth date can never be retained.
	var keep []string
	for _, k := range ov.Keep {
		if strings.EqualFold(k, p.SubjectKey) || p.IsBirthDate(k) {
			r.StrippedKeeps = append(r.StrippedKeeps, k)
			continue
		}
		keep = append(keep, k)
	}

	if both := Overlap(Set{Keep: keep, Drop: ov.Drop}); len(both) > 0 {
		return nil, &OverlapError{Variables: both}
	}

	// Keep requests against the date set: protected formats stay classified,
	// everything else leaves the set so day derivation skips it.
	for _, k := range keep {
		name, m, ok := findFold(res.DateVars, k)
		if !ok {
			continue
		}
		if m.ProtectedFormat {
			r.ProtectedKeeps = append(r.ProtectedKeeps, name)
			continue
		}
		delete(res.DateVars, name)
	}

	for _, set := range []map[string]*classify.Match{res.Identifiers, res.AgeVars, res.Other} {
		for _, k := range keep {
			if name, _, ok := findFold(set, k); ok {
				delete(set, name)
			}
		}
	}

	// Assemble the final drop list. Force-drops not present in this dataset
	// are silently ignored; protected date variables are never dropped; the
	// subject key and birth date are handled by the transform itself and
	// never travel on the drop list.
	drop := make(map[string]string)
	add := func(name string) {
		if strings.EqualFold(name, p.SubjectKey) || p.IsBirthDate(name) {
			return
		}
		if dateName, m, ok := findFold(res.DateVars, name); ok && m.ProtectedFormat {
			if !containsFold(r.ProtectedDrops, dateName) {
				r.ProtectedDrops = append(r.ProtectedDrops, dateName)
			}
			return
		}
		if _, ok := drop[strings.ToUpper(name)]; !ok {
			drop[strings.ToUpper(name)] = name
		}
	}

	for _, d := range ov.Drop {
		for _, a := range actual {
			if strings.EqualFold(a, d) {
				add(a)
			}
		}
	}
	for name := range res.Identifiers {
		add(name)
	}
	for name := range res.AgeVars {
		add(name)
	}
	for name, m := range res.DateVars {
		if !m.ProtectedFormat {
			add(name)
		}
	}
	for name := range res.Other {
		add(name)
	}

	for _, name := range drop {
		r.DropList = append(r.DropList, name)
	}
	sort.Strings(r.DropList)
	sort.Strings(r.ProtectedDrops)
	r.Dates = res.DateVars

	return r, nil
}
