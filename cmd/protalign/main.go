package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nemanja-m/protalign/internal/scheduler"
	"github.com/nemanja-m/protalign/internal/shared/config"
	"github.com/nemanja-m/protalign/internal/shared/logging"
	"github.com/nemanja-m/protalign/pkg/align"
	"github.com/nemanja-m/protalign/pkg/consolidate"
	"github.com/nemanja-m/protalign/pkg/core"
	"github.com/nemanja-m/protalign/pkg/fasta"
	"github.com/nemanja-m/protalign/pkg/pipeline"
	"github.com/nemanja-m/protalign/pkg/results"
	"github.com/nemanja-m/protalign/pkg/scoring"
	"github.com/nemanja-m/protalign/pkg/split"

	_ "github.com/nemanja-m/protalign/pkg/scoring/nw"
	_ "github.com/nemanja-m/protalign/pkg/scoring/wfa"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = -1
)

type options struct {
	configPath      string
	recordsPerSplit int
	workers         int
	reducers        int
	maxAttempts     int
	taskTimeout     time.Duration
	progress        bool
	logLevel        string
	logFormat       string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI and returns the process exit code: -1 for malformed
// arguments or a help request, 1 for a failed run and 0 on success.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var ran bool
	root := newRootCommand(stdout, stderr, &ran)
	root.SetArgs(normalizeArgs(args, longFlags(root)))
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if !ran {
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n\n", err)
			if cmd.Long != "" {
				fmt.Fprintf(stderr, "%s\n\n", cmd.Long)
			}
			fmt.Fprint(stderr, cmd.UsageString())
		}
		return exitUsage
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func newRootCommand(stdout, stderr io.Writer, ran *bool) *cobra.Command {
	root := &cobra.Command{
		Use:           "protalign",
		Short:         "Distributed top-K protein sequence search and multiple alignment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(newRunCommand(stdout, stderr, ran))
	return root
}

func newRunCommand(stdout, stderr io.Writer, ran *bool) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "run <queryFile> <datasetFile> <scoringConfigFile> <k> <outputFolder>",
		Short: "Select the K dataset sequences closest to the query and align them",
		Long: `Score every dataset sequence against the query, keep the K best and write
a multiple alignment of the query and the selected sequences.

Arguments:
  queryFile          FASTA/FASTQ file; its first record is the query
  datasetFile        FASTA/FASTQ file or glob (e.g. "db/**/*.fa.gz")
  scoringConfigFile  YAML/JSON/TOML scoring config, or a substitution matrix
  k                  number of top candidates to retain (positive integer)
  outputFolder       receives topk.tsv and report`,
		Args: validateRunArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			*ran = true
			return run(cmd.Context(), cmd.Flags(), opts, args, stdout, stderr)
		},
	}

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.IntVar(&opts.recordsPerSplit, "recordsPerSplit", 0, "records per score task (default: spread over workers)")
	flags.StringVar(&opts.configPath, "config", "", "run config file (default: ./config/protalign.yaml if present)")
	flags.IntVar(&opts.workers, "workers", 0, "number of worker goroutines (default: number of CPUs)")
	flags.IntVar(&opts.reducers, "reducers", 1, "number of reduce tasks")
	flags.IntVar(&opts.maxAttempts, "max-attempts", 3, "attempts per task before the run fails")
	flags.DurationVar(&opts.taskTimeout, "task-timeout", 0, "timeout of a single task attempt (0 disables)")
	flags.BoolVar(&opts.progress, "progress", false, "show progress bars on stderr")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "records-per-split" {
			name = "recordsPerSplit"
		}
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	return cmd
}

func validateRunArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(5)(cmd, args); err != nil {
		return err
	}
	if _, err := parseK(args[3]); err != nil {
		return err
	}
	return nil
}

func parseK(s string) (int, error) {
	k, err := strconv.Atoi(s)
	if err != nil || k <= 0 {
		return 0, fmt.Errorf("k must be a positive integer, got %q", s)
	}
	return k, nil
}

func (o *options) validate() error {
	var errs []error
	if o.recordsPerSplit < 0 {
		errs = append(errs, fmt.Errorf("recordsPerSplit must be positive, got %d", o.recordsPerSplit))
	}
	if o.workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", o.workers))
	}
	if o.reducers < 1 {
		errs = append(errs, fmt.Errorf("reducers must be at least 1, got %d", o.reducers))
	}
	if o.maxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max-attempts must be at least 1, got %d", o.maxAttempts))
	}
	return errors.Join(errs...)
}

// applyFlags overrides config values with explicitly set flags.
func applyFlags(cfg *config.RunConfig, flags *pflag.FlagSet, opts *options) {
	if flags.Changed("recordsPerSplit") {
		cfg.RecordsPerSplit = opts.recordsPerSplit
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("reducers") {
		cfg.Reducers = opts.reducers
	}
	if flags.Changed("max-attempts") {
		cfg.MaxAttempts = opts.maxAttempts
	}
	if flags.Changed("task-timeout") {
		cfg.TaskTimeout = opts.taskTimeout
	}
	if flags.Changed("progress") {
		cfg.Progress = opts.progress
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}
}

func run(ctx context.Context, flags *pflag.FlagSet, opts *options, args []string, stdout, stderr io.Writer) error {
	queryPath, datasetPattern, scoringPath, output := args[0], args[1], args[2], args[4]
	k, err := parseK(args[3])
	if err != nil {
		return err
	}

	cfg, err := config.LoadRun(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, flags, opts)
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, stderr)

	query, err := fasta.ReadFirst(queryPath)
	if err != nil {
		return fmt.Errorf("reading query: %w", err)
	}
	files, err := results.FindFiles(datasetPattern)
	if err != nil {
		return fmt.Errorf("finding dataset files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no dataset files match %s", datasetPattern)
	}

	scoringConfig, err := config.LoadScoring(scoringPath)
	if err != nil {
		return err
	}
	method, err := scoring.New(scoringConfig.Algorithm, scoringConfig.Options)
	if err != nil {
		return err
	}

	logger.Info("Starting run",
		"query", query.ID,
		"dataset_files", len(files),
		"scoring", method.Name(),
		"k", k,
		"output", output,
	)

	rt := scheduler.NewLocal(scheduler.Config{
		Workers:     cfg.Workers,
		MaxAttempts: cfg.MaxAttempts,
		TaskTimeout: cfg.TaskTimeout,
	}, logger)
	rt.Start(ctx)
	defer rt.Close()

	var bars *progressBars
	if cfg.Progress {
		bars = newProgressBars(stderr)
	}

	engine, err := pipeline.NewEngine(pipeline.Config{
		Query: query,
		Open: func() (split.Decoder, error) {
			r, err := fasta.Open(files...)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
		Source:          datasetPattern,
		Output:          output,
		K:               k,
		RecordsPerSplit: cfg.RecordsPerSplit,
		Parallelism:     cfg.Workers,
		Reducers:        cfg.Reducers,
		Scorer:          method,
		Runtime:         rt,
		Logger:          logger,
		Progress:        bars.Update,
	})
	if err != nil {
		return err
	}

	res, err := engine.Run(ctx)
	bars.Wait(err != nil)
	logTaskSummary(logger, rt)
	if err != nil {
		return err
	}

	consolidator, err := consolidate.New(consolidate.Config{
		Output:  output,
		Query:   query,
		Aligner: align.NewCenterStar(alignmentScoring(method)),
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	report, err := consolidator.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s\n%s\n", res.Path, report.Path)
	return nil
}

func logTaskSummary(logger logging.Logger, rt *scheduler.Local) {
	for _, kind := range []core.TaskKind{core.TaskKindScore, core.TaskKindReduce} {
		p, err := rt.Progress(kind)
		if err != nil {
			logger.Warn("Failed to read task progress", "kind", kind, "error", err)
			continue
		}
		logger.Info("Task summary",
			"kind", kind,
			"total", p.Total,
			"completed", p.Completed,
			"failed", p.Failed,
			"pending", p.Pending+p.Running,
		)
	}
}

// alignmentScoring reuses the scorer's matrix and gap penalties for the
// report when the scorer has them.
func alignmentScoring(method scoring.Method) align.Scoring {
	if s, ok := method.(interface{ Scoring() align.Scoring }); ok {
		return s.Scoring()
	}
	return align.DefaultScoring()
}

// normalizeArgs rewrites single-dash long flags such as -recordsPerSplit
// to their double-dash form. Arguments after "--" are left alone.
func normalizeArgs(args []string, long map[string]bool) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i:]...)
		}
		if len(arg) > 2 && arg[0] == '-' && arg[1] != '-' {
			name, _, _ := strings.Cut(arg[1:], "=")
			if long[name] {
				arg = "-" + arg
			}
		}
		out = append(out, arg)
	}
	return out
}

func longFlags(root *cobra.Command) map[string]bool {
	names := map[string]bool{"help": true}
	var visit func(*cobra.Command)
	visit = func(c *cobra.Command) {
		c.Flags().VisitAll(func(f *pflag.Flag) { names[f.Name] = true })
		c.PersistentFlags().VisitAll(func(f *pflag.Flag) { names[f.Name] = true })
		for _, sub := range c.Commands() {
			visit(sub)
		}
	}
	visit(root)
	names["records-per-split"] = true
	return names
}
