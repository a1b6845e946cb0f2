// labdigitize is a command-line tool for turning scanned lab reports into
// structured patient and test data.
//
// Reports (PDF, PNG, JPEG or TIFF) are cleaned, recognized, parsed into
// patient fields and test observations, and scored against the corrections
// reviewers have submitted so far. Fields with low confidence are flagged
// for review.
//
// Usage:
//
//	labdigitize <command> [options]
//
// Commands:
//
//	digitize  Digitize one or more reports and print the results as JSON
//	correct   Submit a reviewed correction for a previous result
//	status    Show whether the field classifier is trained
//	stats     Show corpus and result counts
//	retrain   Rebuild the field classifier from all stored corrections
//
// Common options:
//
//	-config string  Path to the YAML configuration file
//	-v              Enable debug logging
//
// Options of correct:
//
//	-original string   Path to the result JSON that was reviewed
//	-corrected string  Path to the corrected JSON (required)
//	-id string         Correction id (default: next corr_NNNN)
//
// Examples:
//
//	labdigitize digitize -config config.yml report.pdf
//	labdigitize correct -original outputs/result_20240301_093000_1.json -corrected fixed.json
//	labdigitize stats
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: labdigitize <digitize|correct|status|stats|retrain> [options]")
	fmt.Fprintln(os.Stderr, "Run 'labdigitize <command> -h' for the options of a command.")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "digitize":
		err = runDigitize(ctx, args)
	case "correct":
		err = runCorrect(ctx, args)
	case "status":
		err = runStatus(ctx, args)
	case "stats":
		err = runStats(ctx, args)
	case "retrain":
		err = runRetrain(ctx, args)
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// commonFlags registers the options shared by every command.
type commonFlags struct {
	config  *string
	verbose *bool
}

func newFlagSet(name string) (*flag.FlagSet, commonFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs, commonFlags{
		config:  fs.String("config", "", "Path to the config YAML file"),
		verbose: fs.Bool("v", false, "Enable debug logging"),
	}
}

func runDigitize(ctx context.Context, args []string) error {
	fs, common := newFlagSet("digitize")
	fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one report file is required")
		fs.PrintDefaults()
		os.Exit(2)
	}

	a, err := newApp(ctx, *common.config, *common.verbose)
	if err != nil {
		return err
	}
	defer a.Close()

	failed := 0
	for _, path := range fs.Args() {
		res, err := a.service.Digitize(ctx, path)
		if err != nil {
			a.log.Error("digitization failed", "document", path, "error", err)
			failed++
			continue
		}
		if err := printJSON(res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, fs.NArg())
	}
	return nil
}

func runCorrect(ctx context.Context, args []string) error {
	fs, common := newFlagSet("correct")
	originalPath := fs.String("original", "", "Path to the result JSON that was reviewed")
	correctedPath := fs.String("corrected", "", "Path to the corrected JSON (required)")
	id := fs.String("id", "", "Correction id (default: next corr_NNNN)")
	fs.Parse(args)

	if *correctedPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -corrected flag is required")
		fs.PrintDefaults()
		os.Exit(2)
	}

	original := map[string]any{}
	if *originalPath != "" {
		if err := readJSON(*originalPath, &original); err != nil {
			return err
		}
	}
	var corrected map[string]any
	if err := readJSON(*correctedPath, &corrected); err != nil {
		return err
	}

	a, err := newApp(ctx, *common.config, *common.verbose)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.service.SubmitCorrection(ctx, original, corrected, *id)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runStatus(ctx context.Context, args []string) error {
	fs, common := newFlagSet("status")
	fs.Parse(args)

	a, err := newApp(ctx, *common.config, *common.verbose)
	if err != nil {
		return err
	}
	defer a.Close()
	return printJSON(a.service.Status())
}

func runStats(ctx context.Context, args []string) error {
	fs, common := newFlagSet("stats")
	fs.Parse(args)

	a, err := newApp(ctx, *common.config, *common.verbose)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.service.Stats(ctx)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runRetrain(ctx context.Context, args []string) error {
	fs, common := newFlagSet("retrain")
	fs.Parse(args)

	a, err := newApp(ctx, *common.config, *common.verbose)
	if err != nil {
		return err
	}
	defer a.Close()

	scores, err := a.service.Retrain(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Classifier retrained on %d fields\n", len(scores))
	return printJSON(scores)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(verbose bool, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
