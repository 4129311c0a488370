package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"study-deid/internal/deid"
	"study-deid/internal/diag"
	"study-deid/internal/override"
	"study-deid/internal/store"
)

// Options holds CLI configuration options
type Options struct {
	Library     string
	Output      string
	Datasets    []string
	All         bool
	Reference   string
	RandomIDVar string
	AgeGroupVar string
	RefDateVar  string
	Keep        []string
	Drop        []string
	ConfigFile  string
	DryRun      bool
	Debug       bool
}

// Run executes the deidentification process
func Run(opts Options) error {
	if opts.ConfigFile != "" {
		cfg, err := LoadConfig(opts.ConfigFile)
		if err != nil {
			return err
		}
		opts.merge(cfg)
	}

	if err := validate(opts); err != nil {
		return err
	}

	printHeader(opts)

	src, err := store.Open(opts.Library)
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := store.Open(opts.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	log, err := diag.New(os.Stderr, runLogPath(opts.Output), opts.Debug)
	if err != nil {
		return err
	}
	defer log.Close()

	if opts.DryRun {
		fmt.Println("\n[DRY RUN MODE]")
	}
	fmt.Println()

	stats, err := deid.Run(deid.Config{
		Source:      src,
		Output:      out,
		Datasets:    opts.Datasets,
		Reference:   opts.Reference,
		RandomIDVar: opts.RandomIDVar,
		AgeGroupVar: opts.AgeGroupVar,
		RefDateVar:  opts.RefDateVar,
		Overrides:   override.Set{Keep: opts.Keep, Drop: opts.Drop},
		DryRun:      opts.DryRun,
		Log:         log,
	})
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	printSummary(stats, log, opts.Output)
	return nil
}

func validate(opts Options) error {
	if opts.Library == "" {
		return &deid.ParameterError{Msg: "the source library path is required"}
	}
	if opts.Output == "" {
		return &deid.ParameterError{Msg: "the output library path is required"}
	}
	if len(opts.Datasets) > 0 && opts.All {
		return &deid.ParameterError{Msg: "give either a dataset list or -all, not both"}
	}
	if len(opts.Datasets) == 0 && !opts.All {
		return &deid.ParameterError{Msg: "give either a dataset list or -all"}
	}
	if opts.RandomIDVar == "" {
		return &deid.ParameterError{Msg: "the random-id field name is required"}
	}
	if opts.AgeGroupVar == "" {
		return &deid.ParameterError{Msg: "the age-group field name is required"}
	}
	return nil
}

// runLogPath places the run log next to the output library.
func runLogPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".log"
}

// SplitList splits a comma-separated flag value into trimmed names.
func SplitList(value string) []string {
	if value == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// PrintUsage prints CLI usage information
func PrintUsage() {
	fmt.Println(`Study Dataset Deidentifier

USAGE:
  study-deid -lib <path> -out <path> -randid <var> -agegrp <var> (-data <list> | -all) [flags]

Deidentifies clinical study datasets for external sharing: identifier, age,
date, and birth-date variables are stripped and replaced with a random
subject id, an age-group bucket, and study-day offsets relative to each
subject's reference date. Substitutes come from a subject-level reference
dataset validated to carry exactly one record per subject.

FLAGS:
  -lib <path>         Source dataset library (SQLite file, required)
  -out, -o <path>     Output library for deidentified datasets (required)
  -data <list>        Comma-separated target dataset names
  -all                Process every dataset in the source library
                      (give exactly one of -data / -all)
  -randid <var>       Reference field supplying the random subject id (required)
  -agegrp <var>       Reference field supplying the age-group bucket (required)
  -refdt <var>        Reference field anchoring study-day offsets (default: RFSTDT)
  -ref <dataset>      Explicit reference dataset; default: inferred from the
                      targets by the subject-level naming convention (ADSL, DM)
  -keep <list>        Variables to exempt from removal
  -drop <list>        Variables to force removal beyond the heuristics
  -c, -config <path>  YAML config file; explicit flags win
  -n, -dry-run        Classify and reconcile only, write nothing
  -v, -debug          Full diagnostic tracing
  -h, -help           Show this help message

EXAMPLES:
  # Preview what would be removed (recommended first)
  study-deid -lib study.db -out deid.db -all -randid RANDID -agegrp AGEGRP -n

  # Deidentify two datasets, keeping a site identifier the heuristics flagged
  study-deid -lib study.db -out deid.db -data ae,cm -randid RANDID -agegrp AGEGRP -keep SITEID

  # Drive a recurring run from a config file
  study-deid -c deid.yaml

OUTPUT:
  Deidentified datasets:  written to the output library under the same names
  Unmatched records:      <dataset>_unmatched side datasets, only when present
  Run log:                <output>.log (NOTE / WARNING / ERROR lines)

A fatal condition (bad parameters, invalid reference, conflicting overrides)
aborts the whole run with a non-zero exit. Dataset-local problems (missing
subject key, no records) skip that dataset and the run continues.`)
}

// printHeader prints the run header with configuration
func printHeader(opts Options) {
	fmt.Println("Study Dataset Deidentifier")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Library:   %s\n", opts.Library)
	fmt.Printf("Output:    %s\n", opts.Output)
	if opts.All {
		fmt.Println("Datasets:  all")
	} else {
		fmt.Printf("Datasets:  %s\n", strings.Join(opts.Datasets, ", "))
	}
	if opts.Reference != "" {
		fmt.Printf("Reference: %s\n", opts.Reference)
	}

	var options []string
	if len(opts.Keep) > 0 {
		options = append(options, fmt.Sprintf("keep %s", strings.Join(opts.Keep, ",")))
	}
	if len(opts.Drop) > 0 {
		options = append(options, fmt.Sprintf("drop %s", strings.Join(opts.Drop, ",")))
	}
	if opts.DryRun {
		options = append(options, "dry run")
	}
	if opts.Debug {
		options = append(options, "debug")
	}
	if len(options) > 0 {
		fmt.Printf("Options:   %s\n", strings.Join(options, ", "))
	}
}

// printSummary prints the processing summary
func printSummary(stats *deid.Stats, log *diag.Logger, output string) {
	notes, warnings, errors := log.Counts()

	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Complete! %d processed, %d skipped\n", stats.Processed, stats.Skipped)
	if stats.Unmatched > 0 {
		fmt.Printf("Unmatched: %d record(s) routed to side outputs\n", stats.Unmatched)
	}
	fmt.Printf("Log:       %d note(s), %d warning(s), %d error(s)\n", notes, warnings, errors)
	fmt.Printf("Output:    %s\n", output)
}
