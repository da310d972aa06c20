package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/sheetimport/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SilenceErrors = true
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrorMessage(err))
		os.Exit(cli.GetExitCode(err))
	}
}
