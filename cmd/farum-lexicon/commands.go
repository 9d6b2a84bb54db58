package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PabloGalante/farum-triage/internal/app/analysis"
	"github.com/PabloGalante/farum-triage/internal/app/crisis"
	"github.com/PabloGalante/farum-triage/internal/app/selection"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
)

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: farum-lexicon check <file>\n\nValidate a lexicon file and report every problem found.\n")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("check needs exactly one file")
	}

	path := fs.Arg(0)
	t, err := lexicon.LoadFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: ok (%d emotions, %d distortions, %d interventions)\n",
		path, len(t.Emotions), len(t.Distortions), len(t.Interventions))
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	lexPath := fs.String("lexicon", "", "lexicon file to dump (default: embedded)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: farum-lexicon dump [--lexicon file] [toml|yaml]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	format := lexicon.FormatTOML
	switch fs.NArg() {
	case 0:
	case 1:
		format = lexicon.Format(strings.ToLower(fs.Arg(0)))
		if format != lexicon.FormatTOML && format != lexicon.FormatYAML {
			return fmt.Errorf("unknown format %q (want toml or yaml)", fs.Arg(0))
		}
	default:
		fs.Usage()
		return errors.New("dump takes at most one format argument")
	}

	// The embedded source is printed as written, comments included.
	if *lexPath == "" && format == lexicon.FormatTOML {
		_, err := stdout.Write(lexicon.DefaultSource())
		return err
	}

	t, err := loadTables(*lexPath)
	if err != nil {
		return err
	}
	out, err := lexicon.Encode(t, format)
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	_, err = stdout.Write(out)
	return err
}

// analyzeReport is what analyze prints.
type analyzeReport struct {
	Analysis       domain.Analysis         `json:"analysis"`
	Crisis         domain.CrisisAssessment `json:"crisis"`
	Recommendation *domain.Recommendation  `json:"recommendation,omitempty"`
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	lexPath := fs.String("lexicon", "", "lexicon file to use (default: embedded)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: farum-lexicon analyze [--lexicon file] <text>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	text := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(text) == "" {
		fs.Usage()
		return errors.New("analyze needs a message")
	}

	t, err := loadTables(*lexPath)
	if err != nil {
		return err
	}

	a := analysis.Analyze(text, nil, t)
	report := analyzeReport{
		Analysis: a,
		Crisis:   crisis.Detect(text, a, t),
	}
	// Crisis turns never reach selection.
	if !report.Crisis.IsCrisis {
		rec := selection.Select(selection.Input{Text: text, Analysis: a}, t)
		report.Recommendation = &rec
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func loadTables(path string) (*lexicon.Tables, error) {
	if path == "" {
		return lexicon.Default()
	}
	return lexicon.LoadFile(path)
}
