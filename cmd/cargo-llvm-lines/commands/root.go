// Package commands implements the cargo-llvm-lines command tree.
package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sumatoshi-tech/llvmlines/internal/config"
	"github.com/Sumatoshi-tech/llvmlines/internal/observability"
	"github.com/Sumatoshi-tech/llvmlines/pkg/cargo"
	"github.com/Sumatoshi-tech/llvmlines/pkg/llvmir"
	"github.com/Sumatoshi-tech/llvmlines/pkg/report"
	"github.com/Sumatoshi-tech/llvmlines/pkg/version"
)

const (
	sourceCargo = "cargo"
	sourceFiles = "files"
)

var (
	// ErrUnexpectedArgument indicates a positional argument before "--".
	ErrUnexpectedArgument = errors.New("unexpected argument; pass rustc flags after --")
	// ErrInvalidLimit indicates a negative --limit.
	ErrInvalidLimit = errors.New("--limit must be non-negative")
	// ErrInvalidFilter indicates a --filter that is not a valid regular expression.
	ErrInvalidFilter = errors.New("invalid --filter")
)

type buildFunc func(ctx context.Context, opts cargo.Options, env cargo.Env) ([]byte, error)

type configLoader func(path string) (*config.Config, error)

// RootCommand holds flags and dependencies of the line-count command.
type RootCommand struct {
	sort        string
	filter      string
	files       []string
	format      string
	limit       int
	configFile  string
	metricsFile string
	verbose     bool

	cargo cargo.Options

	build      buildFunc
	loadConfig configLoader
}

// NewRootCommand creates the cargo-llvm-lines root command with its
// subcommands.
func NewRootCommand() *cobra.Command {
	return newRootCommandWithDeps(cargo.Run, config.LoadConfig)
}

func newRootCommandWithDeps(build buildFunc, loadConfig configLoader) *cobra.Command {
	rc := &RootCommand{
		build:      build,
		loadConfig: loadConfig,
	}

	cmd := &cobra.Command{
		Use:   "cargo-llvm-lines [flags] [-- <rustc args>...]",
		Short: "Count the lines of LLVM IR across all instantiations of a generic function",
		Long: `Build the current crate with rustc emitting unoptimized LLVM IR and report,
per function, how many IR lines and how many monomorphized copies it produced.

Run as "cargo llvm-lines" or directly. With --files, existing .ll files are
analyzed instead of building.`,
		Version:       version.String(),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          rc.run,
	}

	cmd.Flags().StringVarP(&rc.sort, "sort", "s", config.DefaultReportSort, "Sort order: lines, copies, name")
	cmd.Flags().StringVar(&rc.filter, "filter", "", "Only show functions whose name matches this regular expression")
	cmd.Flags().StringArrayVarP(&rc.files, "files", "f", nil, "Analyze existing .ll files instead of building (repeatable)")
	cmd.Flags().StringVar(&rc.format, "format", config.DefaultReportFormat, "Output format: text, table, json, yaml, plot")
	cmd.Flags().IntVar(&rc.limit, "limit", config.DefaultReportLimit, "Show at most N functions (0 = all)")
	cmd.Flags().StringVar(&rc.configFile, "config-file", "", "Config file (default: .llvmlines.yaml in CWD or $HOME)")
	cmd.Flags().StringVar(&rc.metricsFile, "metrics-file", "", "Write run metrics to this file in Prometheus text format")
	cmd.Flags().BoolVarP(&rc.verbose, "verbose", "v", false, "Print the build command and debug logs")

	registerCargoFlags(cmd, &rc.cargo)

	cmd.AddCommand(NewMCPCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func registerCargoFlags(cmd *cobra.Command, opts *cargo.Options) {
	flags := cmd.Flags()

	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "Do not print cargo log messages")
	flags.StringVarP(&opts.Package, "package", "p", "", "Package to build")
	flags.BoolVar(&opts.Lib, "lib", false, "Build only this package's library")
	flags.StringVar(&opts.Bin, "bin", "", "Build only the specified binary")
	flags.StringVar(&opts.Example, "example", "", "Build only the specified example")
	flags.StringVar(&opts.Test, "test", "", "Build only the specified test target")
	flags.StringVar(&opts.Bench, "bench", "", "Build only the specified bench target")
	flags.StringVarP(&opts.Features, "features", "F", "", "Space or comma separated list of features to activate")
	flags.BoolVar(&opts.AllFeatures, "all-features", false, "Activate all available features")
	flags.BoolVar(&opts.NoDefaultFeatures, "no-default-features", false, "Do not activate the default feature")
	flags.IntVarP(&opts.Jobs, "jobs", "j", 0, "Number of parallel jobs (0 = cargo default)")
	flags.BoolVar(&opts.Release, "release", false, "Build artifacts in release mode")
	flags.StringVar(&opts.Profile, "profile", "", "Build artifacts with the specified profile")
	flags.StringVar(&opts.Target, "target", "", "Target triple to build for")
	flags.StringVar(&opts.TargetDir, "target-dir", "", "Directory for all generated artifacts")
	flags.StringVar(&opts.ManifestPath, "manifest-path", "", "Path to Cargo.toml")
	flags.BoolVar(&opts.Frozen, "frozen", false, "Require Cargo.lock and cache are up to date")
	flags.BoolVar(&opts.Locked, "locked", false, "Require Cargo.lock is up to date")
	flags.BoolVar(&opts.Offline, "offline", false, "Run without accessing the network")
	flags.StringVar(&opts.Color, "color", config.DefaultCargoColor, "Coloring: auto, always, never")
	flags.StringArrayVar(&opts.Config, "config", nil, "Override a cargo configuration value (KEY=VALUE)")
	flags.StringArrayVarP(&opts.Unstable, "unstable-flag", "Z", nil, "Unstable (nightly-only) flags to cargo")
}

func (rc *RootCommand) run(cmd *cobra.Command, args []string) error {
	rest, err := restArgs(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := rc.loadConfig(rc.configFile)
	if err != nil {
		return err
	}

	rc.applyConfig(cmd, cfg)
	rc.cargo.Rest = rest

	opts, err := rc.reportOptions()
	if err != nil {
		return err
	}

	maxSize, err := cfg.MaxInputBytes()
	if err != nil {
		return err
	}

	providers, err := initCLIObservability(cfg, rc.verbose, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	ctx, span := providers.Tracer.Start(cmd.Context(), "llvmlines.run")
	defer span.End()

	start := time.Now()
	read := llvmir.ReadOptions{MaxSize: maxSize}
	agg := llvmir.NewAggregate()

	stats, source, err := rc.count(ctx, cmd, agg, read, providers.Logger)

	var out bytes.Buffer
	if err == nil {
		err = report.Render(&out, agg, opts)
	}

	runStats := observability.RunStats{
		Source:     source,
		Status:     observability.StatusOK,
		Duration:   time.Since(start),
		Functions:  stats.Functions,
		Distinct:   agg.Len(),
		Lines:      agg.Total().TotalLines,
		InputBytes: stats.InputBytes,
		InputLines: stats.InputLines,
		Anonymous:  stats.Anonymous,
		Files:      stats.Files,
	}

	if err != nil {
		runStats.Status = observability.StatusError

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("llvmlines.source", source),
		attribute.Int("llvmlines.files", runStats.Files),
		attribute.Int("llvmlines.input_lines", runStats.InputLines),
		attribute.Int("llvmlines.functions", runStats.Functions),
		attribute.Int("llvmlines.distinct", runStats.Distinct),
		attribute.Int("llvmlines.anonymous", runStats.Anonymous),
	)

	if runStats.Anonymous > 0 {
		providers.Logger.WarnContext(ctx, "function bodies without a symbol were skipped",
			"count", runStats.Anonymous)
	}

	providers.Logger.DebugContext(ctx, "run finished",
		"source", source, "files", runStats.Files, "input_lines", runStats.InputLines,
		"functions", runStats.Functions, "distinct", runStats.Distinct,
		"lines", runStats.Lines, "duration", runStats.Duration)

	if rc.metricsFile != "" {
		metricsErr := writeRunMetrics(ctx, rc.metricsFile, runStats)
		if metricsErr != nil {
			return errors.Join(err, metricsErr)
		}
	}

	if err != nil {
		return err
	}

	// The report goes out last so a failed metrics write leaves stdout empty.
	_, err = out.WriteTo(cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

// count fills agg from --files or from a fresh build.
func (rc *RootCommand) count(
	ctx context.Context, cmd *cobra.Command, agg *llvmir.Aggregate, read llvmir.ReadOptions, logger *slog.Logger,
) (llvmir.FileStats, string, error) {
	if len(rc.files) > 0 {
		stats, err := llvmir.CountFiles(agg, rc.files, read)

		return stats, sourceFiles, err
	}

	env := cargo.Env{
		Stdout:      cmd.OutOrStdout(),
		Stderr:      cmd.ErrOrStderr(),
		StderrIsTTY: StderrIsTTY(),
		Verbose:     rc.verbose,
		Read:        read,
		Logger:      logger,
	}

	ir, err := rc.build(ctx, rc.cargo, env)
	if err != nil {
		return llvmir.FileStats{}, sourceCargo, err
	}

	stats := llvmir.FileStats{
		Stats:      llvmir.Count(agg, ir),
		Files:      1,
		InputBytes: len(ir),
	}

	return stats, sourceCargo, nil
}

// applyConfig fills every flag the user did not set from cfg.
func (rc *RootCommand) applyConfig(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if !changed("sort") && cfg.Report.Sort != "" {
		rc.sort = cfg.Report.Sort
	}

	if !changed("format") && cfg.Report.Format != "" {
		rc.format = cfg.Report.Format
	}

	if !changed("filter") {
		rc.filter = cfg.Report.Filter
	}

	if !changed("limit") {
		rc.limit = cfg.Report.Limit
	}

	if !changed("color") && cfg.Cargo.Color != "" {
		rc.cargo.Color = cfg.Cargo.Color
	}

	if !changed("metrics-file") {
		rc.metricsFile = cfg.Telemetry.MetricsFile
	}

	rc.cargo.Program = cfg.Cargo.Program
}

func (rc *RootCommand) reportOptions() (report.Options, error) {
	order, err := report.ParseSortOrder(rc.sort)
	if err != nil {
		return report.Options{}, err
	}

	format, err := report.ParseFormat(rc.format)
	if err != nil {
		return report.Options{}, err
	}

	if rc.limit < 0 {
		return report.Options{}, fmt.Errorf("%w: %d", ErrInvalidLimit, rc.limit)
	}

	opts := report.Options{Sort: order, Format: format, Limit: rc.limit}

	if rc.filter != "" {
		re, compileErr := regexp.Compile(rc.filter)
		if compileErr != nil {
			return report.Options{}, fmt.Errorf("%w: %w", ErrInvalidFilter, compileErr)
		}

		opts.Filter = re
	}

	return opts, nil
}

// restArgs returns the arguments after "--". Anything before it is rejected.
func restArgs(cmd *cobra.Command, args []string) ([]string, error) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		dash = len(args)
	}

	if dash > 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedArgument, args[0])
	}

	return args[dash:], nil
}

func initCLIObservability(cfg *config.Config, verbose bool, logOutput io.Writer) (observability.Providers, error) {
	level, err := observability.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return observability.Providers{}, err
	}

	if verbose {
		level = slog.LevelDebug
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = observability.ModeCLI
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Log.JSON
	obsCfg.LogOutput = logOutput

	return observability.Init(obsCfg)
}

// writeRunMetrics records stats into a fresh registry and writes it to path.
func writeRunMetrics(ctx context.Context, path string, stats observability.RunStats) error {
	textfile, err := observability.NewTextfile()
	if err != nil {
		return err
	}

	defer func() { _ = textfile.Shutdown(context.WithoutCancel(ctx)) }()

	runs, err := observability.NewRunMetrics(textfile.Meter())
	if err != nil {
		return err
	}

	runs.RecordRun(ctx, stats)

	return textfile.WriteFile(path)
}
