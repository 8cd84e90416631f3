package commands

import (
	"errors"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/Sumatoshi-tech/llvmlines/pkg/cargo"
)

// subcommandName is the argument cargo inserts when run as `cargo llvm-lines`.
const subcommandName = "llvm-lines"

// NormalizeArgs drops the leading "llvm-lines" cargo passes to external
// subcommands.
func NormalizeArgs(args []string) []string {
	if len(args) > 0 && args[0] == subcommandName {
		return args[1:]
	}

	return args
}

// ExitCode maps a command error to the process exit status: 0 on success,
// the build tool's own status when it failed, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *cargo.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return 1
}

// StderrIsTTY reports whether stderr is a terminal.
func StderrIsTTY() bool {
	fd := os.Stderr.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// StderrColor reports whether diagnostics on stderr should be colored.
func StderrColor() bool {
	_, noColor := os.LookupEnv("NO_COLOR")

	return !noColor && StderrIsTTY()
}
