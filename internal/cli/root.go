// Package cli handles the command-line interface logic
// using the Cobra library.
package cli

import (
	"github.com/BartekS5/sql2mongo/pkg/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Options are the flags shared by every sub-command.
type Options struct {
	ConfigPath string
	Env        string
	LogFile    string
	LogLevel   string
	DryRun     bool
}

func NewRootCmd() *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "sql2mongo",
		Short: "sql2mongo - one-shot migration of relational tables into MongoDB",
		Long: `sql2mongo copies relational tables into MongoDB collections page by page,
applying per-table field mappings and type conversions, and then rewrites
foreign-key fields into references to the migrated documents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.InitLogger(opts.LogFile, logger.ParseLevel(opts.LogLevel)); err != nil {
				return err
			}
			logger.WithRun(uuid.NewString())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to the settings file (default _config/config[-<env>].json)")
	flags.StringVarP(&opts.Env, "env", "e", "", "Environment name selecting _config/config-<env>.json")
	flags.StringVar(&opts.LogFile, "log-file", "", "Also append log lines to this file")
	flags.StringVar(&opts.LogLevel, "log-level", "info", "Minimum log level (debug, info, warn, error)")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "Read and transform without writing to MongoDB")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newImportCmd(opts),
		newReplaceCmd(opts),
		newValidateCmd(opts),
	)

	return rootCmd
}
