// Package reference loads and validates the subject-level reference
// dataset that supplies every subject's random id, age-group bucket, and
// reference date.
package reference

import (
	"fmt"
	"sort"
	"strings"

	"study-deid/internal/store"
)

// subjectLevelNames is the naming convention searched when no explicit
// reference dataset is given, in preference order.
var subjectLevelNames = []string{"ADSL", "DM"}

// Record carries one subject's deidentification substitutes.
type Record struct {
	Key      string
	RandomID string
	AgeGroup string
	RefDate  string
}

// Fields names the reference dataset fields consumed by the run.
type Fields struct {
	SubjectKey  string
	RandomIDVar string
	AgeGroupVar string
	RefDateVar  string
}

// DuplicateKeyError reports subject keys with more than one reference
// record. The reference must be one record per subject, so this is fatal.
type DuplicateKeyError struct {
	Dataset string
	Rows    map[string][]store.Row
}

func (e *DuplicateKeyError) Error() string {
	keys := make([]string, 0, len(e.Rows))
	for k := range e.Rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("reference dataset %s has duplicate subject keys: %s",
		e.Dataset, strings.Join(keys, ", "))
}

// Infer searches the dataset list for a reference candidate following the
// subject-level naming convention.
func Infer(datasets []string) (string, bool) {
	for _, want := range subjectLevelNames {
		for _, name := range datasets {
			if strings.EqualFold(name, want) {
				return name, true
			}
		}
	}
	return "", false
}

// IsSubjectLevel reports whether a dataset name follows the subject-level
// naming convention.
func IsSubjectLevel(name string) bool {
	for _, want := range subjectLevelNames {
		if strings.EqualFold(name, want) {
			return true
		}
	}
	return false
}

// Load validates the reference dataset and indexes it by subject key.
// Validation runs once, before any target dataset is processed: the
// required fields must exist, and each subject key must appear exactly
// once.
func Load(lib store.Library, dataset string, f Fields) (map[string]Record, error) {
	vars, err := lib.Describe(dataset)
	if err != nil {
		return nil, fmt.Errorf("reference dataset %s: %w", dataset, err)
	}

	find := func(want string) (string, bool) {
		for _, v := range vars {
			if strings.EqualFold(v.Name, want) {
				return v.Name, true
			}
		}
		return "", false
	}

	keyVar, ok := find(f.SubjectKey)
	if !ok {
		return nil, fmt.Errorf("reference dataset %s is missing the subject key %s", dataset, f.SubjectKey)
	}
	for _, want := range []string{f.RandomIDVar, f.AgeGroupVar, f.RefDateVar} {
		if _, ok := find(want); !ok {
			return nil, fmt.Errorf("reference dataset %s is missing required field %s", dataset, want)
		}
	}
	randVar, _ := find(f.RandomIDVar)
	ageVar, _ := find(f.AgeGroupVar)
	dateVar, _ := find(f.RefDateVar)

	rows, err := lib.ReadRows(dataset)
	if err != nil {
		return nil, fmt.Errorf("reference dataset %s: %w", dataset, err)
	}

	index := make(map[string]Record, len(rows))
	grouped := make(map[string][]store.Row, len(rows))
	for _, row := range rows {
		key := strings.TrimSpace(row[keyVar])
		grouped[key] = append(grouped[key], row)
		index[key] = Record{
			Key:      key,
			RandomID: row[randVar],
			AgeGroup: row[ageVar],
			RefDate:  row[dateVar],
		}
	}

	dup := make(map[string][]store.Row)
	for key, group := range grouped {
		if len(group) > 1 {
			dup[key] = group
		}
	}
	if len(dup) > 0 {
		return nil, &DuplicateKeyError{Dataset: dataset, Rows: dup}
	}

	return index, nil
}
