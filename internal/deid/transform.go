package deid

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"study-deid/internal/classify"
	"study-deid/internal/reference"
	"study-deid/internal/store"
)

var dayLabelPattern = regexp.MustCompile(`(?i)\bDate\b`)

// DayVariable is a derived study-day column replacing an absolute date.
type DayVariable struct {
	Source string
	Name   string
	Label  string
}

// DayVarName derives the day variable name: the date variable name with a
// trailing "DT" removed, plus "DY". AESDT becomes AESDY.
func DayVarName(name string) string {
	if len(name) >= 2 && strings.EqualFold(name[len(name)-2:], "DT") {
		name = name[:len(name)-2]
	}
	return name + "DY"
}

// DayVarLabel derives the day variable label by substituting "Day" for the
// word "Date" in the original label.
func DayVarLabel(label string) string {
	return dayLabelPattern.ReplaceAllString(label, "Day")
}

// StudyDay computes the CDISC study day of value relative to refDate:
// day = date - refDate + 1, and since there is no day zero, results below
// one are decremented once more. ok is false when either date is missing
// or unparseable.
func StudyDay(value, refDate string) (day int, ok bool) {
	d, err := parseDate(value)
	if err != nil {
		return 0, false
	}
	r, err := parseDate(refDate)
	if err != nil {
		return 0, false
	}

	day = int(d.Sub(r).Hours()/24) + 1
	if day < 1 {
		day--
	}
	return day, true
}

func parseDate(value string) (time.Time, error) {
	t, err := dateparse.ParseAny(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	// Calendar-date precision only; clock time never shifts a study day.
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// TransformInput carries everything the merge needs for one dataset.
type TransformInput struct {
	Name  string
	Label string
	// Variables and Rows are the target dataset, untouched.
	Variables []store.VariableMeta
	Rows      []store.Row
	// Reference is the validated subject index.
	Reference map[string]reference.Record
	// DropList is the reconciled final drop list.
	DropList []string
	// Dates is the surviving date-variable set.
	Dates map[string]*classify.Match

	SubjectKey   string
	RandomIDVar  string
	AgeGroupVar  string
	RefDateVar   string
	BirthDateVar string

	// Labels for the substitute columns, taken from the reference dataset.
	RandomIDLabel string
	AgeGroupLabel string
}

// Transform performs the one-to-one keyed merge of a target dataset with
// the reference: drops the reconciled variables, substitutes the random id
// and age group, derives study days for surviving date variables, and
// routes records without a reference match to the unmatched side output.
func Transform(in TransformInput) (*store.Dataset, []store.Row) {
	dropSet := make(map[string]bool, len(in.DropList))
	for _, name := range in.DropList {
		dropSet[strings.ToUpper(name)] = true
	}

	// The subject key and any age-group column the dataset already carries
	// are replaced by the substitute columns, not carried through.
	omitted := func(name string) bool {
		return dropSet[strings.ToUpper(name)] ||
			strings.EqualFold(name, in.SubjectKey) ||
			strings.EqualFold(name, in.RefDateVar) ||
			strings.EqualFold(name, in.BirthDateVar) ||
			strings.EqualFold(name, in.RandomIDVar) ||
			strings.EqualFold(name, in.AgeGroupVar)
	}

	// Day variables follow the dataset's own variable order.
	var dayVars []DayVariable
	for _, v := range in.Variables {
		if m, ok := in.Dates[v.Name]; ok {
			dayVars = append(dayVars, DayVariable{
				Source: v.Name,
				Name:   DayVarName(v.Name),
				Label:  DayVarLabel(m.Label),
			})
		}
	}

	outVars := []store.VariableMeta{
		{Name: in.RandomIDVar, Label: in.RandomIDLabel},
	}
	for _, v := range in.Variables {
		if !omitted(v.Name) {
			outVars = append(outVars, v)
		}
	}
	outVars = append(outVars, store.VariableMeta{Name: in.AgeGroupVar, Label: in.AgeGroupLabel})
	for _, dv := range dayVars {
		outVars = append(outVars, store.VariableMeta{Name: dv.Name, Label: dv.Label})
	}

	out := &store.Dataset{
		Name:      in.Name,
		Label:     outputLabel(in.Name, in.Label),
		Variables: outVars,
	}

	keyCol := subjectKeyColumn(in.Variables, in.SubjectKey)

	var unmatched []store.Row
	for _, row := range in.Rows {
		key := strings.TrimSpace(row[keyCol])
		ref, ok := in.Reference[key]
		if !ok {
			unmatched = append(unmatched, row)
			continue
		}

		outRow := make(store.Row, len(outVars))
		outRow[in.RandomIDVar] = ref.RandomID
		outRow[in.AgeGroupVar] = ref.AgeGroup
		for _, v := range in.Variables {
			if !omitted(v.Name) {
				outRow[v.Name] = row[v.Name]
			}
		}
		for _, dv := range dayVars {
			if day, ok := StudyDay(row[dv.Source], ref.RefDate); ok {
				outRow[dv.Name] = strconv.Itoa(day)
			} else {
				outRow[dv.Name] = ""
			}
		}
		out.Rows = append(out.Rows, outRow)
	}

	return out, unmatched
}

// subjectKeyColumn maps the configured subject key to the dataset's actual
// spelling of it.
func subjectKeyColumn(vars []store.VariableMeta, key string) string {
	for _, v := range vars {
		if strings.EqualFold(v.Name, key) {
			return v.Name
		}
	}
	return key
}

// outputLabel derives the deidentified dataset's descriptive label,
// distinguishing subject-level datasets from general ones.
func outputLabel(name, label string) string {
	if reference.IsSubjectLevel(name) {
		return "Subject-Level Analysis Dataset (Deidentified)"
	}
	if label == "" {
		return "Deidentified " + strings.ToUpper(name)
	}
	return label + " (Deidentified)"
}

// sortedUpper uppercases and sorts a name list; used for log lines.
func sortedUpper(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToUpper(n)
	}
	sort.Strings(out)
	return out
}
