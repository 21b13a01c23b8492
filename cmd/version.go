package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/decantio/decant/internal/build"
)

// NewVersionCommand returns the command to get the decant version.
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Return the decant version",
		Long:  "Return the decant version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}

	return cmd
}

// print out the built version
func version(_ *cobra.Command, _ []string) error {
	log.Printf("decant version %s date %s commit id %s", build.Version, build.Date, build.Commit)
	return nil
}
