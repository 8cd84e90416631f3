package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/llvmlines/internal/config"
	"github.com/Sumatoshi-tech/llvmlines/pkg/cargo"
	"github.com/Sumatoshi-tech/llvmlines/pkg/report"
)

const (
	symFooBar   = "_ZN3foo3bar17h0123456789abcdefE"
	symBazQuux  = "_ZN3baz4quux17hfedcba9876543210E"
	stubCrateIR = "; ModuleID = 'crate'\n"
)

func defineBlock(symbol string, lines int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "define internal void @%s() unnamed_addr #0 {\n", symbol)
	sb.WriteString("start:\n")

	for range lines {
		sb.WriteString("  call void @llvm.trap()\n")
	}

	sb.WriteString("}\n")

	return sb.String()
}

func sampleIR() string {
	return stubCrateIR + defineBlock(symFooBar, 3) + defineBlock(symBazQuux, 1) + defineBlock(symFooBar, 3)
}

func defaultConfig() *config.Config {
	return &config.Config{
		Report: config.ReportConfig{Sort: config.DefaultReportSort, Format: config.DefaultReportFormat},
		Cargo:  config.CargoConfig{Color: config.DefaultCargoColor},
		Log:    config.LogConfig{Level: config.DefaultLogLevel},
		Input:  config.InputConfig{MaxSize: config.DefaultInputMaxSize},
	}
}

func stubConfig(mutate func(*config.Config)) configLoader {
	return func(string) (*config.Config, error) {
		cfg := defaultConfig()
		if mutate != nil {
			mutate(cfg)
		}

		return cfg, nil
	}
}

type recordingBuild struct {
	ir   string
	err  error
	opts cargo.Options
	env  cargo.Env
	runs int
}

func (b *recordingBuild) build(_ context.Context, opts cargo.Options, env cargo.Env) ([]byte, error) {
	b.runs++
	b.opts = opts
	b.env = env

	if b.err != nil {
		return nil, b.err
	}

	return []byte(b.ir), nil
}

func execute(t *testing.T, build buildFunc, loader configLoader, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	cmd := newRootCommandWithDeps(build, loader)

	var out, errOut bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err = cmd.ExecuteContext(context.Background())

	return out.String(), errOut.String(), err
}

func writeIR(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "crate.ll")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func decodeDocument(t *testing.T, out string) report.Document {
	t.Helper()

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	return doc
}

func TestRootCommand_BuildsAndRendersText(t *testing.T) {
	t.Parallel()

	build := &recordingBuild{ir: sampleIR()}

	out, _, err := execute(t, build.build, stubConfig(nil))
	require.NoError(t, err)

	assert.Equal(t, 1, build.runs)
	assert.Contains(t, out, "(TOTAL)")
	assert.Contains(t, out, "foo::bar")
	assert.Contains(t, out, "baz::quux")
	assert.Less(t, strings.Index(out, "foo::bar"), strings.Index(out, "baz::quux"))
}

func TestRootCommand_ForwardsCargoFlags(t *testing.T) {
	t.Parallel()

	build := &recordingBuild{ir: sampleIR()}

	_, _, err := execute(t, build.build, stubConfig(nil),
		"-p", "mycrate", "--release", "--lib", "-F", "serde,std", "-j", "4",
		"--config", "build.rustflags=[]", "-Z", "build-std", "-Z", "unstable-options",
		"--target", "x86_64-unknown-linux-gnu", "--color", "never", "-q",
		"--", "-Cdebuginfo=0", "--cfg", "foo")
	require.NoError(t, err)

	opts := build.opts
	assert.Equal(t, "mycrate", opts.Package)
	assert.True(t, opts.Release)
	assert.True(t, opts.Lib)
	assert.True(t, opts.Quiet)
	assert.Equal(t, "serde,std", opts.Features)
	assert.Equal(t, 4, opts.Jobs)
	assert.Equal(t, []string{"build.rustflags=[]"}, opts.Config)
	assert.Equal(t, []string{"build-std", "unstable-options"}, opts.Unstable)
	assert.Equal(t, "x86_64-unknown-linux-gnu", opts.Target)
	assert.Equal(t, cargo.ColorNever, opts.Color)
	assert.Equal(t, []string{"-Cdebuginfo=0", "--cfg", "foo"}, opts.Rest)
	assert.False(t, build.env.Verbose)
	assert.Zero(t, build.env.Read.MaxSize)
}

func TestRootCommand_VerboseReachesBuild(t *testing.T) {
	t.Parallel()

	build := &recordingBuild{ir: sampleIR()}

	_, _, err := execute(t, build.build, stubConfig(nil), "--verbose")
	require.NoError(t, err)

	assert.True(t, build.env.Verbose)
}

func TestRootCommand_ProgramFromConfig(t *testing.T) {
	t.Parallel()

	build := &recordingBuild{ir: sampleIR()}

	_, _, err := execute(t, build.build, stubConfig(func(cfg *config.Config) {
		cfg.Cargo.Program = "/opt/cargo"
	}))
	require.NoError(t, err)

	assert.Equal(t, "/opt/cargo", build.opts.Program)
}

func TestRootCommand_BuildFailurePropagatesExitCode(t *testing.T) {
	t.Parallel()

	build := &recordingBuild{err: &cargo.ExitError{Code: 101}}

	out, _, err := execute(t, build.build, stubConfig(nil))
	require.Error(t, err)

	assert.Empty(t, out)
	assert.Equal(t, 101, ExitCode(err))
}

func TestRootCommand_MissingOutputIsGenericFailure(t *testing.T) {
	t.Parallel()

	build := &recordingBuild{err: cargo.ErrMissingOutput}

	_, _, err := execute(t, build.build, stubConfig(nil))
	require.ErrorIs(t, err, cargo.ErrMissingOutput)

	assert.Equal(t, 1, ExitCode(err))
}

func TestRootCommand_FilesSkipBuild(t *testing.T) {
	t.Parallel()

	build := &recordingBuild{}
	first := writeIR(t, stubCrateIR+defineBlock(symFooBar, 3))
	second := writeIR(t, defineBlock(symFooBar, 3)+defineBlock(symBazQuux, 1))

	out, _, err := execute(t, build.build, stubConfig(nil), "-f", first, "--files", second, "--format", "json")
	require.NoError(t, err)

	assert.Zero(t, build.runs)

	doc := decodeDocument(t, out)
	assert.Equal(t, 7, doc.Total.TotalLines)
	assert.Equal(t, 3, doc.Total.Copies)
	require.Len(t, doc.Rows, 2)
	assert.Equal(t, "foo::bar", doc.Rows[0].Name)
	assert.Equal(t, 6, doc.Rows[0].Lines)
	assert.Equal(t, 2, doc.Rows[0].Copies)
}

func TestRootCommand_MissingFileNamesPath(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "absent.ll")

	out, _, err := execute(t, (&recordingBuild{}).build, stubConfig(nil), "--files", missing)
	require.Error(t, err)

	assert.Empty(t, out)
	assert.Contains(t, err.Error(), missing)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 1, ExitCode(err))
}

func TestRootCommand_FilterSortLimit(t *testing.T) {
	t.Parallel()

	path := writeIR(t, sampleIR())

	out, _, err := execute(t, (&recordingBuild{}).build, stubConfig(nil),
		"--files", path, "--format", "json", "--sort", "name", "--filter", "::", "--limit", "1")
	require.NoError(t, err)

	doc := decodeDocument(t, out)
	assert.Equal(t, "name", doc.Sort)
	assert.Equal(t, "::", doc.Filter)
	require.Len(t, doc.Rows, 1)
	assert.Equal(t, "baz::quux", doc.Rows[0].Name)
	assert.Equal(t, 7, doc.Total.TotalLines)
}

func TestRootCommand_ConfigDefaultsAndFlagOverride(t *testing.T) {
	t.Parallel()

	path := writeIR(t, sampleIR())
	loader := stubConfig(func(cfg *config.Config) {
		cfg.Report.Format = "json"
		cfg.Report.Sort = "copies"
		cfg.Report.Limit = 1
	})

	out, _, err := execute(t, (&recordingBuild{}).build, loader, "--files", path)
	require.NoError(t, err)

	doc := decodeDocument(t, out)
	assert.Equal(t, "copies", doc.Sort)
	assert.Len(t, doc.Rows, 1)

	out, _, err = execute(t, (&recordingBuild{}).build, loader, "--files", path, "--limit", "0", "-s", "lines")
	require.NoError(t, err)

	doc = decodeDocument(t, out)
	assert.Equal(t, "lines", doc.Sort)
	assert.Len(t, doc.Rows, 2)
}

func TestRootCommand_ConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "llvmlines.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("report:\n  format: yaml\n"), 0o600))

	path := writeIR(t, sampleIR())

	out, _, err := execute(t, (&recordingBuild{}).build, config.LoadConfig, "--config-file", cfgPath, "--files", path)
	require.NoError(t, err)

	assert.Contains(t, out, "rows:")
	assert.Contains(t, out, "foo::bar")
}

func TestRootCommand_InvalidConfigFile(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("report:\n  sort: size\n"), 0o600))

	build := &recordingBuild{}

	_, _, err := execute(t, build.build, config.LoadConfig, "--config-file", cfgPath)
	require.ErrorIs(t, err, config.ErrInvalidSort)

	assert.Zero(t, build.runs)
}

func TestRootCommand_RejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "positional", args: []string{"extra"}, want: ErrUnexpectedArgument},
		{name: "positional before dash", args: []string{"extra", "--", "-Copt-level=0"}, want: ErrUnexpectedArgument},
		{name: "filter", args: []string{"--filter", "("}, want: ErrInvalidFilter},
		{name: "limit", args: []string{"--limit", "-1"}, want: ErrInvalidLimit},
		{name: "sort", args: []string{"--sort", "size"}, want: report.ErrUnknownSortOrder},
		{name: "format", args: []string{"--format", "html"}, want: report.ErrUnknownFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			build := &recordingBuild{ir: sampleIR()}

			out, _, err := execute(t, build.build, stubConfig(nil), tt.args...)
			require.ErrorIs(t, err, tt.want)

			assert.Empty(t, out)
			assert.Zero(t, build.runs)
		})
	}
}

func TestRootCommand_WritesMetricsFile(t *testing.T) {
	t.Parallel()

	metricsPath := filepath.Join(t.TempDir(), "llvmlines.prom")
	build := &recordingBuild{ir: sampleIR()}

	_, _, err := execute(t, build.build, stubConfig(nil), "--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)

	assert.Contains(t, string(data), "llvmlines_runs")
	assert.Contains(t, string(data), `source="cargo"`)
}

func TestRootCommand_MetricsFileFromConfigOnFailure(t *testing.T) {
	t.Parallel()

	metricsPath := filepath.Join(t.TempDir(), "llvmlines.prom")
	build := &recordingBuild{err: &cargo.ExitError{Code: 2}}

	_, _, err := execute(t, build.build, stubConfig(func(cfg *config.Config) {
		cfg.Telemetry.MetricsFile = metricsPath
	}))
	require.Error(t, err)

	assert.Equal(t, 2, ExitCode(err))

	data, readErr := os.ReadFile(metricsPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), `status="error"`)
}

func TestRootCommand_AnonymousBodiesReported(t *testing.T) {
	t.Parallel()

	path := writeIR(t, defineBlock(symFooBar, 2)+"define void {\n  ret void\n}\n")
	metricsPath := filepath.Join(t.TempDir(), "llvmlines.prom")
	build := &recordingBuild{}

	out, errOut, err := execute(t, build.build, stubConfig(nil), "--files", path, "--metrics-file", metricsPath)
	require.NoError(t, err)

	assert.Contains(t, out, "foo::bar")
	assert.Contains(t, errOut, "function bodies without a symbol were skipped")

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "llvmlines_functions_anonymous")
	assert.Contains(t, text, "llvmlines_ir_input_lines")
	assert.Contains(t, text, "llvmlines_files")
}

func TestRootCommand_MetricsFailureSuppressesReport(t *testing.T) {
	t.Parallel()

	metricsPath := filepath.Join(t.TempDir(), "missing", "llvmlines.prom")
	build := &recordingBuild{ir: sampleIR()}

	out, _, err := execute(t, build.build, stubConfig(nil), "--metrics-file", metricsPath)
	require.Error(t, err)

	assert.Empty(t, out)
	assert.Equal(t, 1, ExitCode(err))
}

func TestRootCommand_ConfiguredMaxSizeReachesBuild(t *testing.T) {
	t.Parallel()

	build := &recordingBuild{ir: sampleIR()}

	_, _, err := execute(t, build.build, stubConfig(func(cfg *config.Config) {
		cfg.Input.MaxSize = "1MB"
	}))
	require.NoError(t, err)

	assert.Equal(t, uint64(1_000_000), build.env.Read.MaxSize)
}

func TestRootCommand_Subcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCommand()

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Contains(t, names, "mcp")
	assert.Contains(t, names, "version")
	assert.NotNil(t, cmd.Flags().ShorthandLookup("Z"))
	assert.NotNil(t, cmd.Flags().ShorthandLookup("F"))
}
