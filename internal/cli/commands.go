package cli

import (
	"fmt"
	"io"

	"github.com/BartekS5/sql2mongo/internal/etl"
	"github.com/BartekS5/sql2mongo/pkg/logger"
	"github.com/spf13/cobra"
)

func newValidateCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration and print what a run would do",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			p, err := loadPlan(opts, phaseImport|phaseReplace)
			if err != nil {
				return err
			}
			printPlan(c.OutOrStdout(), p)
			logger.Infof("Configuration is valid.")
			return nil
		},
	}
}

func printPlan(w io.Writer, p *plan) {
	fmt.Fprintf(w, "Source: %s\n", p.cfg.Dialect())
	fmt.Fprintf(w, "Target database: %s\n", p.cfg.MongoDatabase())

	fmt.Fprintf(w, "Imports (%d):\n", len(p.imports))
	for _, job := range p.imports {
		mode := fmt.Sprintf("async, concurrency %d", job.Concurrency)
		if job.Sync {
			mode = "sync"
		}
		if job.Concurrency == 0 && !job.Sync {
			mode = fmt.Sprintf("async, concurrency %d", etl.DefaultConcurrency)
		}
		fmt.Fprintf(w, "  %s -> %s: %d fields, page size %d from page %d, %s\n",
			job.TableName, job.CollectionName, len(job.Fields), job.PageSize, job.Page, mode)
	}

	fmt.Fprintf(w, "Replaces (%d):\n", len(p.replaces))
	for _, job := range p.replaces {
		fmt.Fprintf(w, "  %s, %s strategy, concurrency %d\n", job, job.Strategy, job.Concurrency)
	}
}
