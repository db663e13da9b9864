// Command ruleware compiles, validates and runs declarative rule programs
// and inspects their dispatch journals.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/ruleware/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		// Errors without an exit code come from cobra itself (bad flags or args).
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			return cli.ExitCommandError
		}
		return exitErr.Code
	}
	return cli.ExitSuccess
}
