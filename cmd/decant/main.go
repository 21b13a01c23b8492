package main

import (
	"os"

	"github.com/decantio/decant/cmd"
	"github.com/decantio/decant/cmd/clean"
	"github.com/decantio/decant/cmd/dump"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	rootCmd.AddCommand(dump.NewDumpCommand())
	rootCmd.AddCommand(clean.NewCleanCommand())
	rootCmd.AddCommand(cmd.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
