// Command fsx runs the stochastic file-system correctness tester against
// a single target file.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fsxtest/fsx/internal/cli"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	exitCode := cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, os.Getenv, sigCh)

	os.Exit(exitCode)
}
