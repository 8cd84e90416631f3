// Package main provides the entry point for cargo-llvm-lines, usable
// directly or as `cargo llvm-lines`.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/llvmlines/cmd/cargo-llvm-lines/commands"
	"github.com/Sumatoshi-tech/llvmlines/pkg/cargo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	color.NoColor = !commands.StderrColor()

	rootCmd := commands.NewRootCommand()
	rootCmd.SetArgs(commands.NormalizeArgs(os.Args[1:]))

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		var exitErr *cargo.ExitError
		if !errors.As(err, &exitErr) {
			color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error")
			color.New(color.Bold).Fprintf(os.Stderr, ": %v\n", err)
		}
	}

	os.Exit(commands.ExitCode(err))
}
