package check_templates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmplcheck/pkg/analyzer"
	"github.com/walteh/tmplcheck/pkg/archive"
	"github.com/walteh/tmplcheck/pkg/check"
	"github.com/walteh/tmplcheck/pkg/checks"
	"github.com/walteh/tmplcheck/pkg/config"
	"github.com/walteh/tmplcheck/pkg/diff"
	"github.com/walteh/tmplcheck/pkg/finder"
	"github.com/walteh/tmplcheck/pkg/offense"
	"github.com/walteh/tmplcheck/pkg/source"
)

// ErrOffenses is returned when an offense of error severity was found.
var ErrOffenses = errors.Base("offenses found")

type Handler struct {
	fs afero.Fs
	// templates is the filesystem templates are read from, fs unless an archive is checked
	templates afero.Fs

	configPath  string
	archivePath string
	strip       int
	fix         bool
	dryRun      bool
	trace       bool
	timeout     time.Duration
	format      string // text, json
	concurrency int
	noColor     bool

	out    io.Writer
	errOut io.Writer
}

func NewCheckCommand(fs afero.Fs) *cobra.Command {
	me := &Handler{fs: fs, templates: fs}

	cmd := &cobra.Command{
		Use:   "check [paths or globs...]",
		Short: "check liquid templates for offenses",
	}

	cmd.Flags().StringVar(&me.configPath, "config", config.DefaultPath, "the config file to load, if it exists")
	cmd.Flags().StringVar(&me.archivePath, "archive", "", "check the templates of a packaged theme (.tar.gz)")
	cmd.Flags().IntVar(&me.strip, "strip-components", 0, "with --archive, strip that many leading path components")
	cmd.Flags().BoolVar(&me.fix, "fix", false, "apply the fixes of correctable offenses")
	cmd.Flags().BoolVar(&me.dryRun, "dry-run", false, "with --fix, print the diff instead of writing files")
	cmd.Flags().BoolVar(&me.trace, "trace", false, "log every check call at trace level")
	cmd.Flags().DurationVar(&me.timeout, "timeout", check.DefaultTimeout, "the time budget of a single check call")
	cmd.Flags().StringVar(&me.format, "format", "text", "the output format (text, json)")
	cmd.Flags().IntVar(&me.concurrency, "concurrency", 4, "the number of templates checked at once")
	cmd.Flags().BoolVar(&me.noColor, "no-color", false, "disable colored output")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.out = cmd.OutOrStdout()
		me.errOut = cmd.ErrOrStderr()

		cfg, err := config.LoadOrDefault(me.fs, me.configPath, checks.Names())
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("trace") {
			cfg.Engine.Trace = me.trace
		}
		if cmd.Flags().Changed("timeout") {
			cfg.Engine.Timeout = me.timeout
		}
		if cmd.Flags().Changed("concurrency") {
			cfg.Engine.Concurrency = me.concurrency
		}
		if me.archivePath != "" {
			if err := me.loadArchive(); err != nil {
				return err
			}
		}
		return me.Run(cmd.Context(), cfg, args)
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, cfg *config.Config, paths []string) error {
	if me.format != "text" && me.format != "json" {
		return errors.Errorf("unknown format %q", me.format)
	}
	if _, err := cfg.Apply(checks.All()); err != nil {
		return err
	}

	files, err := finder.New(me.templates, "").FindTemplates(ctx, paths)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Int("templates", len(files)).Msg("discovered templates")

	newChecks := func() []check.Check {
		cs, _ := cfg.Apply(checks.All())
		return cs
	}
	opts := []analyzer.Option{
		analyzer.WithTimeout(cfg.Engine.Timeout),
		analyzer.WithTrace(cfg.Engine.Trace),
		analyzer.WithConcurrency(cfg.Engine.Concurrency),
	}

	var (
		results []*analyzer.Result
		fileErr error
	)
	if me.fix {
		results, fileErr = me.fixFiles(ctx, files, newChecks, opts)
	} else {
		results, fileErr = analyzer.AnalyzeFiles(ctx, files, newChecks, opts...)
	}

	if err := me.report(results); err != nil {
		return err
	}
	if fileErr != nil {
		return fileErr
	}

	for _, res := range results {
		for _, o := range res.Offenses {
			if o.Severity == offense.SeverityError {
				return ErrOffenses
			}
		}
	}
	return nil
}

func (me *Handler) loadArchive() error {
	if me.fix && !me.dryRun {
		return errors.Errorf("cannot fix templates inside %s, use --dry-run", me.archivePath)
	}

	f, err := me.fs.Open(me.archivePath)
	if err != nil {
		return errors.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	templates, err := archive.LoadTarGz(f, archive.Options{StripComponents: me.strip})
	if err != nil {
		return errors.Errorf("loading %s: %w", me.archivePath, err)
	}
	me.templates = templates
	return nil
}

// fixFiles fixes files one after the other and reports what is left on the fixed sources.
func (me *Handler) fixFiles(ctx context.Context, files []*source.File, newChecks func() []check.Check, opts []analyzer.Option) ([]*analyzer.Result, error) {
	var fixedFiles []*source.File
	for _, file := range files {
		fixed, _, _, err := analyzer.Fix(ctx, file, newChecks(), opts...)
		if err != nil {
			fixedFiles = append(fixedFiles, file)
			continue
		}

		if fixed != file.Source() {
			if me.dryRun {
				fmt.Fprint(me.out, diff.Source(file.RelativePath(), file.Source(), fixed))
			} else if err := afero.WriteFile(me.templates, file.RelativePath(), []byte(fixed), 0o644); err != nil {
				return nil, errors.Errorf("writing %s: %w", file.RelativePath(), err)
			}
		}

		if me.dryRun {
			fixedFiles = append(fixedFiles, file)
		} else {
			fixedFiles = append(fixedFiles, source.NewFile(file.RelativePath(), fixed))
		}
	}

	return analyzer.AnalyzeFiles(ctx, fixedFiles, newChecks, opts...)
}

type jsonOffense struct {
	Check       string   `json:"check"`
	Severity    string   `json:"severity"`
	Categories  []string `json:"categories"`
	Path        string   `json:"path"`
	Message     string   `json:"message"`
	StartRow    int      `json:"start_row"`
	StartColumn int      `json:"start_column"`
	EndRow      int      `json:"end_row"`
	EndColumn   int      `json:"end_column"`
	Correctable bool     `json:"correctable"`
}

func (me *Handler) report(results []*analyzer.Result) error {
	for _, res := range results {
		for _, f := range res.Faults {
			fmt.Fprintln(me.errOut, f.Report())
		}
	}

	if me.format == "json" {
		out := []jsonOffense{}
		for _, res := range results {
			for _, o := range res.Offenses {
				out = append(out, jsonOffense{
					Check:       o.Check,
					Severity:    o.Severity.String(),
					Categories:  o.Categories,
					Path:        o.File.RelativePath(),
					Message:     o.Message,
					StartRow:    o.Position.StartRow,
					StartColumn: o.Position.StartColumn,
					EndRow:      o.Position.EndRow,
					EndColumn:   o.Position.EndColumn,
					Correctable: o.Correctable(),
				})
			}
		}
		enc := json.NewEncoder(me.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return errors.Errorf("encoding offenses: %w", err)
		}
		return nil
	}

	total := 0
	for _, res := range results {
		for _, o := range res.Offenses {
			total++
			fmt.Fprintf(me.out, "%s:%d:%d: %s: %s %s\n",
				o.File.RelativePath(), o.Position.StartRow, o.Position.StartColumn,
				me.severity(o.Severity), o.Message, me.faint("["+o.Check+"]"))
		}
	}
	fmt.Fprintf(me.out, "%d templates inspected, %d offenses found\n", len(results), total)
	return nil
}

func (me *Handler) severity(s offense.Severity) string {
	c := color.New(color.FgBlue)
	switch s {
	case offense.SeverityError:
		c = color.New(color.FgRed, color.Bold)
	case offense.SeveritySuggestion:
		c = color.New(color.FgYellow)
	}
	if me.noColor {
		c.DisableColor()
	}
	return c.Sprint(s.String())
}

func (me *Handler) faint(s string) string {
	c := color.New(color.Faint)
	if me.noColor {
		c.DisableColor()
	}
	return c.Sprint(s)
}
