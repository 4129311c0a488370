// Package deid drives the deidentification run: reference validation once,
// then classification, override reconciliation, and the merge transform
// for each target dataset in turn. Datasets are independent; a dataset-
// local problem skips that dataset while parameter, reference, and
// override-conflict problems abort the whole run.
package deid

import (
	"fmt"
	"strings"

	"study-deid/internal/classify"
	"study-deid/internal/diag"
	"study-deid/internal/override"
	"study-deid/internal/reference"
	"study-deid/internal/store"
)

// Defaults for the conventional CDISC variable names.
const (
	DefaultSubjectKey = "USUBJID"
	DefaultRefDateVar = "RFSTDT"
)

// ParameterError reports an invalid or missing invocation parameter.
// Always fatal, before any dataset is touched.
type ParameterError struct {
	Msg string
}

func (e *ParameterError) Error() string { return "parameter error: " + e.Msg }

// Config holds the run configuration.
type Config struct {
	Source store.Library
	Output store.Library

	// Datasets are the explicit targets; empty means every dataset in the
	// source library.
	Datasets []string

	// Reference names the reference dataset; empty means infer it from the
	// target list by the subject-level naming convention.
	Reference string

	SubjectKey   string // defaults to USUBJID
	RandomIDVar  string // required
	AgeGroupVar  string // required
	RefDateVar   string // defaults to RFSTDT
	BirthDateVar string // defaults to BRTHDT

	Overrides override.Set

	// DryRun classifies and reconciles but writes nothing.
	DryRun bool

	Log *diag.Logger
}

// Stats summarizes a completed run.
type Stats struct {
	Processed int
	Skipped   int
	Unmatched int // records routed to unmatched side outputs, all datasets
}

func (cfg *Config) applyDefaults() {
	if cfg.SubjectKey == "" {
		cfg.SubjectKey = DefaultSubjectKey
	}
	if cfg.RefDateVar == "" {
		cfg.RefDateVar = DefaultRefDateVar
	}
	if cfg.BirthDateVar == "" {
		cfg.BirthDateVar = classify.DefaultBirthDateVar
	}
}

func (cfg *Config) validate() error {
	if cfg.Source == nil || cfg.Output == nil {
		return &ParameterError{Msg: "source and output libraries are required"}
	}
	if cfg.RandomIDVar == "" {
		return &ParameterError{Msg: "the random-id field name is required"}
	}
	if cfg.AgeGroupVar == "" {
		return &ParameterError{Msg: "the age-group field name is required"}
	}
	if cfg.Log == nil {
		return &ParameterError{Msg: "a diagnostic logger is required"}
	}
	return nil
}

// Run executes the deidentification over every target dataset.
func Run(cfg Config) (*Stats, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := cfg.Log

	params := classify.Params{
		SubjectKey:   cfg.SubjectKey,
		RandomIDVar:  cfg.RandomIDVar,
		AgeGroupVar:  cfg.AgeGroupVar,
		RefDateVar:   cfg.RefDateVar,
		BirthDateVar: cfg.BirthDateVar,
	}

	// A contradictory override set aborts before any dataset is touched.
	// Protected variables leave the keep list first, mirroring reconcile.
	var keep []string
	for _, k := range cfg.Overrides.Keep {
		if strings.EqualFold(k, cfg.SubjectKey) || params.IsBirthDate(k) {
			continue
		}
		keep = append(keep, k)
	}
	if both := override.Overlap(override.Set{Keep: keep, Drop: cfg.Overrides.Drop}); len(both) > 0 {
		err := &override.OverlapError{Variables: both}
		log.For("override").Errorf("%v", err)
		return nil, err
	}

	targets, err := resolveTargets(cfg.Source, cfg.Datasets)
	if err != nil {
		log.Errorf("%v", err)
		return nil, err
	}

	refName := cfg.Reference
	if refName == "" {
		name, ok := reference.Infer(targets)
		if !ok {
			err := fmt.Errorf("no reference dataset specified and none of the targets follows the subject-level naming convention")
			log.For("reference").Errorf("%v", err)
			return nil, err
		}
		refName = name
		log.For("reference").Notef("using %s as the reference dataset", refName)
	}

	refIndex, err := reference.Load(cfg.Source, refName, reference.Fields{
		SubjectKey:  cfg.SubjectKey,
		RandomIDVar: cfg.RandomIDVar,
		AgeGroupVar: cfg.AgeGroupVar,
		RefDateVar:  cfg.RefDateVar,
	})
	if err != nil {
		log.For("reference").Errorf("%v", err)
		return nil, err
	}
	log.For("reference").Notef("reference %s validated: %d subjects", refName, len(refIndex))

	randLabel, ageLabel := substituteLabels(cfg.Source, refName, cfg.RandomIDVar, cfg.AgeGroupVar)

	stats := &Stats{}
	for _, name := range targets {
		processed, unmatched, err := processDataset(cfg, params, name, refIndex, randLabel, ageLabel)
		if err != nil {
			return nil, err
		}
		if processed {
			stats.Processed++
			stats.Unmatched += unmatched
		} else {
			stats.Skipped++
		}
	}

	log.Notef("run complete: %d processed, %d skipped, %d unmatched record(s)",
		stats.Processed, stats.Skipped, stats.Unmatched)
	return stats, nil
}

func resolveTargets(src store.Library, requested []string) ([]string, error) {
	available, err := src.Datasets()
	if err != nil {
		return nil, fmt.Errorf("could not list source datasets: %w", err)
	}
	if len(requested) == 0 {
		if len(available) == 0 {
			return nil, &ParameterError{Msg: "the source library contains no datasets"}
		}
		return available, nil
	}

	var targets []string
	for _, want := range requested {
		found := ""
		for _, name := range available {
			if strings.EqualFold(name, want) {
				found = name
				break
			}
		}
		if found == "" {
			return nil, &ParameterError{Msg: fmt.Sprintf("dataset %s not found in the source library", want)}
		}
		targets = append(targets, found)
	}
	return targets, nil
}

// substituteLabels pulls the substitute columns' labels from the reference
// dataset so they carry through to every output.
func substituteLabels(src store.Library, refName, randVar, ageVar string) (string, string) {
	randLabel, ageLabel := "Random Subject Identifier", "Age Group"
	vars, err := src.Describe(refName)
	if err != nil {
		return randLabel, ageLabel
	}
	for _, v := range vars {
		if strings.EqualFold(v.Name, randVar) && v.Label != "" {
			randLabel = v.Label
		}
		if strings.EqualFold(v.Name, ageVar) && v.Label != "" {
			ageLabel = v.Label
		}
	}
	return randLabel, ageLabel
}

// processDataset runs the per-dataset pipeline. It reports whether the
// dataset was processed and how many records went to the unmatched side
// output; only run-fatal conditions return an error.
func processDataset(cfg Config, params classify.Params, name string,
	refIndex map[string]reference.Record, randLabel, ageLabel string) (bool, int, error) {

	log := cfg.Log
	log.Notef("processing dataset %s", name)

	if cfg.Output.Path() == cfg.Source.Path() {
		log.Warnf("skipping %s: output location equals the source location and would overwrite the input", name)
		return false, 0, nil
	}

	vars, err := cfg.Source.Describe(name)
	if err != nil {
		return false, 0, err
	}
	varNames := make([]string, len(vars))
	hasKey := false
	for i, v := range vars {
		varNames[i] = v.Name
		if strings.EqualFold(v.Name, cfg.SubjectKey) {
			hasKey = true
		}
	}
	if !hasKey {
		log.Warnf("skipping %s: no subject key variable %s", name, cfg.SubjectKey)
		return false, 0, nil
	}

	nobs, err := cfg.Source.RowCount(name)
	if err != nil {
		return false, 0, err
	}
	if nobs == 0 {
		log.Warnf("skipping %s: dataset has no records", name)
		return false, 0, nil
	}
	log.Debugf("%s: %d variables, %d records", name, len(vars), nobs)

	res := classify.Classify(vars, params)
	clog := log.For("classify")
	clog.Debugf("%s: %d identifier, %d age, %d date, %d other candidate(s)",
		name, len(res.Identifiers), len(res.AgeVars), len(res.DateVars), len(res.Other))
	for _, note := range classify.Report(name, res) {
		clog.Notef("%s", note.Message())
	}

	olog := log.For("override")
	resolution, err := override.Reconcile(res, cfg.Overrides, varNames, params)
	if err != nil {
		olog.Errorf("%v", err)
		return false, 0, err
	}
	for _, v := range resolution.StrippedKeeps {
		olog.Warnf("%s is protected and can never be retained; removed from the force-keep list", v)
	}
	for _, v := range resolution.ProtectedKeeps {
		olog.Warnf("%s.%s has a fixed date display format and is never removed; the force-keep request has no effect", name, v)
	}
	for _, v := range resolution.ProtectedDrops {
		olog.Warnf("%s.%s has a fixed date display format and cannot be removed", name, v)
	}

	if len(resolution.DropList) > 0 {
		log.Notef("%s: dropping %s", name, strings.Join(sortedUpper(resolution.DropList), ", "))
	}

	if cfg.DryRun {
		log.Notef("%s: dry run, no output written", name)
		return true, 0, nil
	}

	label, err := cfg.Source.Label(name)
	if err != nil {
		return false, 0, err
	}
	rows, err := cfg.Source.ReadRows(name)
	if err != nil {
		return false, 0, err
	}

	out, unmatched := Transform(TransformInput{
		Name:          name,
		Label:         label,
		Variables:     vars,
		Rows:          rows,
		Reference:     refIndex,
		DropList:      resolution.DropList,
		Dates:         resolution.Dates,
		SubjectKey:    cfg.SubjectKey,
		RandomIDVar:   cfg.RandomIDVar,
		AgeGroupVar:   cfg.AgeGroupVar,
		RefDateVar:    cfg.RefDateVar,
		BirthDateVar:  cfg.BirthDateVar,
		RandomIDLabel: randLabel,
		AgeGroupLabel: ageLabel,
	})

	if err := cfg.Output.WriteDataset(out); err != nil {
		return false, 0, fmt.Errorf("could not write %s: %w", name, err)
	}
	log.For("transform").Notef("%s: wrote %d record(s), %d variable(s)", name, len(out.Rows), len(out.Variables))

	if len(unmatched) > 0 {
		side := &store.Dataset{
			Name:      name + "_unmatched",
			Label:     "Records of " + strings.ToUpper(name) + " without a reference match",
			Variables: vars,
			Rows:      unmatched,
		}
		if err := cfg.Output.WriteDataset(side); err != nil {
			return false, 0, fmt.Errorf("could not write %s: %w", side.Name, err)
		}
		log.For("transform").Warnf("%s: %d record(s) had no reference match and were routed to %s",
			name, len(unmatched), side.Name)
	}

	return true, len(unmatched), nil
}
