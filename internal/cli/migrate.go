package cli

import (
	"github.com/spf13/cobra"
)

func newRunCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Import every configured table, then resolve every configured reference",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runMigration(c.Context(), opts, phaseImport|phaseReplace)
		},
	}
}

func newImportCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import the tables listed in WHAT_2_IMPORT",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runMigration(c.Context(), opts, phaseImport)
		},
	}
}

func newReplaceCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "replace",
		Short: "Resolve the cross-collection references listed in REPLACES",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runMigration(c.Context(), opts, phaseReplace)
		},
	}
}
