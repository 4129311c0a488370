package main

import (
	"flag"
	"fmt"
	"os"

	"study-deid/internal/cli"
)

func main() {
	// Define flags
	lib := flag.String("lib", "", "Source dataset library (SQLite file)")

	out := flag.String("out", "", "Output library for deidentified datasets")
	outShort := flag.String("o", "", "Output library (shorthand)")

	data := flag.String("data", "", "Comma-separated target dataset names")
	all := flag.Bool("all", false, "Process every dataset in the source library")

	randid := flag.String("randid", "", "Reference field supplying the random subject id")
	agegrp := flag.String("agegrp", "", "Reference field supplying the age-group bucket")
	refdt := flag.String("refdt", "", "Reference field anchoring study-day offsets (default RFSTDT)")

	ref := flag.String("ref", "", "Explicit reference dataset name")

	keep := flag.String("keep", "", "Comma-separated variables to exempt from removal")
	drop := flag.String("drop", "", "Comma-separated variables to force removal")

	config := flag.String("config", "", "YAML config file")
	configShort := flag.String("c", "", "Config file (shorthand)")

	dryRun := flag.Bool("dry-run", false, "Preview only, no datasets written")
	dryRunShort := flag.Bool("n", false, "Dry run (shorthand)")

	debug := flag.Bool("debug", false, "Full diagnostic tracing")
	debugShort := flag.Bool("v", false, "Debug (shorthand)")

	help := flag.Bool("help", false, "Show help message")
	helpShort := flag.Bool("h", false, "Help (shorthand)")

	// Custom usage message
	flag.Usage = func() {
		cli.PrintUsage()
	}

	flag.Parse()

	// Handle help flag
	if *help || *helpShort {
		cli.PrintUsage()
		return
	}

	// Merge short and long flags (prefer long if both specified)
	output := *out
	if output == "" {
		output = *outShort
	}

	configFile := *config
	if configFile == "" {
		configFile = *configShort
	}

	opts := cli.Options{
		Library:     *lib,
		Output:      output,
		Datasets:    cli.SplitList(*data),
		All:         *all,
		Reference:   *ref,
		RandomIDVar: *randid,
		AgeGroupVar: *agegrp,
		RefDateVar:  *refdt,
		Keep:        cli.SplitList(*keep),
		Drop:        cli.SplitList(*drop),
		ConfigFile:  configFile,
		DryRun:      *dryRun || *dryRunShort,
		Debug:       *debug || *debugShort,
	}

	if err := cli.Run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
