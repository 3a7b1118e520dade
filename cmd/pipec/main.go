// Command pipec compiles CI pipeline configuration.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pipec/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		code := cli.GetExitCode(err)
		if code == cli.ExitCommandError {
			fmt.Fprintln(os.Stderr, "pipec:", err)
		}
		os.Exit(code)
	}
}
