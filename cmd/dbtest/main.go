package main

import (
	"fmt"
	"os"

	"github.com/weblate/abrechnung/internal/cli"
)

func main() {
	cmd := cli.Standalone(cli.NewDBTestCommand)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
