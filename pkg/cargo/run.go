package cargo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/llvmlines/pkg/llvmir"
)

const (
	tempDirPattern = "cargo-llvm-lines"
	outputStem     = "crate"
	irExt          = ".ll"
)

var (
	// ErrMissingOutput indicates cargo succeeded but wrote no .ll file.
	ErrMissingOutput = errors.New("ran --emit=llvm-ir but did not find output IR")
	// ErrUnquotable indicates an argument that cannot be echoed as a shell word.
	ErrUnquotable = errors.New("argument cannot be shell-quoted")
)

// ExitError reports a non-zero exit of the build tool. The tool has already
// printed its own diagnostics.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("cargo exited with status %d", e.Code)
}

// Env is the process environment a build runs in. Zero fields fall back to
// the current process.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer

	Getenv    func(string) string
	LookupEnv func(string) (string, bool)

	// StderrIsTTY enables color for --color=auto.
	StderrIsTTY bool
	// Verbose echoes the shell-quoted command before running it.
	Verbose bool

	Read   llvmir.ReadOptions
	Logger *slog.Logger
}

func (e Env) stdout() io.Writer {
	if e.Stdout == nil {
		return os.Stdout
	}

	return e.Stdout
}

func (e Env) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}

	return e.Stderr
}

func (e Env) getenv(key string) string {
	if e.Getenv == nil {
		return os.Getenv(key)
	}

	return e.Getenv(key)
}

func (e Env) lookupEnv(key string) (string, bool) {
	if e.LookupEnv == nil {
		return os.LookupEnv(key)
	}

	return e.LookupEnv(key)
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}

	return e.Logger
}

// Command prepares the cargo invocation that writes IR into outdir. Stdout
// is relayed untouched; stderr is left for the caller.
func Command(ctx context.Context, opts Options, outdir string, env Env) *exec.Cmd {
	program := opts.Program
	if program == "" {
		program = Program(env.getenv)
	}

	_, noColor := env.lookupEnv(noColorEnv)
	colorChoice := ColorChoice(opts.Color, noColor, env.StderrIsTTY)

	cmd := exec.CommandContext(ctx, program, Args(opts, filepath.Join(outdir, outputStem), colorChoice)...)
	cmd.Env = append(os.Environ(), incrementalEnv+"=")
	cmd.Stdin = os.Stdin
	cmd.Stdout = env.stdout()

	return cmd
}

// Run builds the crate and returns the emitted IR. A failing build yields
// an *ExitError carrying the tool's exit code.
func Run(ctx context.Context, opts Options, env Env) ([]byte, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", tempDirPattern)
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	defer os.RemoveAll(dir)

	cmd := Command(ctx, opts, dir, env)

	if env.Verbose {
		err = echo(env.stderr(), cmd.Args)
		if err != nil {
			return nil, err
		}
	}

	err = run(cmd, env)
	if err != nil {
		return nil, err
	}

	return FindIR(dir, env.Read)
}

func run(cmd *exec.Cmd, env Env) error {
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("pipe stderr: %w", err)
	}

	start := time.Now()
	log := env.logger()
	log.Debug("starting build", "program", cmd.Path, "args", len(cmd.Args)-1)

	err = cmd.Start()
	if err != nil {
		return fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	relayErr := FilterStream(stderr, env.stderr())
	waitErr := cmd.Wait()

	log.Debug("build finished", "duration", time.Since(start), "state", cmd.ProcessState.String())

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code := exitErr.ExitCode()
			if code <= 0 {
				code = 1
			}

			return &ExitError{Code: code}
		}

		return fmt.Errorf("wait for %s: %w", cmd.Path, waitErr)
	}

	if relayErr != nil {
		return fmt.Errorf("relay build output: %w", relayErr)
	}

	return nil
}

// FindIR returns the contents of the first .ll file in dir.
func FindIR(dir string, opts llvmir.ReadOptions) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	for _, entry := range entries {
		if entry.Type().IsRegular() && filepath.Ext(entry.Name()) == irExt {
			return llvmir.ReadFile(filepath.Join(dir, entry.Name()), opts)
		}
	}

	return nil, ErrMissingOutput
}

// Quote renders args as a single shell command line.
func Quote(args []string) (string, error) {
	for _, arg := range args {
		if strings.ContainsRune(arg, 0) {
			return "", fmt.Errorf("%w: %q", ErrUnquotable, arg)
		}
	}

	return shellescape.QuoteCommand(args), nil
}

func echo(w io.Writer, args []string) error {
	line, err := Quote(args)
	if err != nil {
		return err
	}

	color.New(color.FgGreen, color.Bold).Fprint(w, "     Running ")
	fmt.Fprintf(w, "`%s`\n", line)

	return nil
}
