// Package cargo drives `cargo rustc` to emit textual LLVM IR for a crate and
// relays the build's diagnostics with known noise removed.
package cargo

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// Color choices accepted by cargo's --color flag.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

const (
	defaultProgram = "cargo"
	programEnv     = "CARGO"
	noColorEnv     = "NO_COLOR"
	incrementalEnv = "CARGO_INCREMENTAL"
)

// ErrInvalidColor indicates a --color value other than auto, always or never.
var ErrInvalidColor = errors.New("invalid color choice")

// emitFlags make rustc write unoptimized textual IR.
var emitFlags = []string{
	"--emit=llvm-ir",
	"-Cno-prepopulate-passes",
	"-Cpasses=name-anon-globals",
}

// Options are passed through to `cargo rustc` unchanged.
type Options struct {
	// Program overrides both $CARGO and the default "cargo".
	Program string

	Quiet   bool
	Package string

	Lib     bool
	Bin     string
	Example string
	Test    string
	Bench   string

	Features          string
	AllFeatures       bool
	NoDefaultFeatures bool

	Jobs      int
	Release   bool
	Profile   string
	Target    string
	TargetDir string

	ManifestPath string
	Frozen       bool
	Locked       bool
	Offline      bool

	// Color is auto, always, never or empty (auto).
	Color string
	// Config holds KEY=VALUE overrides for --config.
	Config []string
	// Unstable holds -Z flags.
	Unstable []string

	// Rest is appended verbatim after the IR emission flags.
	Rest []string
}

// Validate checks option values that cargo would otherwise reject late.
func (o Options) Validate() error {
	if !slices.Contains([]string{"", ColorAuto, ColorAlways, ColorNever}, o.Color) {
		return fmt.Errorf("%w: %q (want auto, always or never)", ErrInvalidColor, o.Color)
	}

	return nil
}

// Program returns the build tool to run: $CARGO when set, else "cargo".
func Program(getenv func(string) string) string {
	if p := getenv(programEnv); p != "" {
		return p
	}

	return defaultProgram
}

// ColorChoice resolves the --color value handed to cargo. Auto becomes
// always only when NO_COLOR is unset and stderr is a terminal.
func ColorChoice(opt string, noColorSet, stderrIsTTY bool) string {
	switch opt {
	case ColorAlways, ColorNever:
		return opt
	default:
		if !noColorSet && stderrIsTTY {
			return ColorAlways
		}

		return ColorNever
	}
}

// Args builds the cargo argument list that emits IR to outfile.
func Args(opts Options, outfile, color string) []string {
	args := []string{"rustc"}

	flag := func(on bool, name string) {
		if on {
			args = append(args, name)
		}
	}

	value := func(name, v string) {
		if v != "" {
			args = append(args, name, v)
		}
	}

	flag(opts.Quiet, "--quiet")
	value("--package", opts.Package)
	flag(opts.Lib, "--lib")
	value("--bin", opts.Bin)
	value("--example", opts.Example)
	value("--test", opts.Test)
	value("--bench", opts.Bench)
	flag(opts.Release, "--release")
	value("--profile", opts.Profile)
	value("--features", opts.Features)
	flag(opts.AllFeatures, "--all-features")
	flag(opts.NoDefaultFeatures, "--no-default-features")

	if opts.Jobs > 0 {
		args = append(args, "--jobs", strconv.Itoa(opts.Jobs))
	}

	args = append(args, "--color", color)

	flag(opts.Frozen, "--frozen")
	flag(opts.Locked, "--locked")
	flag(opts.Offline, "--offline")

	for _, kv := range opts.Config {
		args = append(args, "--config", kv)
	}

	for _, z := range opts.Unstable {
		args = append(args, "-Z", z)
	}

	value("--target", opts.Target)
	value("--target-dir", opts.TargetDir)
	value("--manifest-path", opts.ManifestPath)

	args = append(args, "--")
	args = append(args, emitFlags...)
	args = append(args, "-o", outfile)
	args = append(args, opts.Rest...)

	return args
}
