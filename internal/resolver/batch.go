package resolver

import (
	"context"
	"sync/atomic"

	"github.com/BartekS5/sql2mongo/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// runBatch resolves once per distinct value of the field and updates all
// documents sharing that value with a single multi-document update. Any
// failure restarts the job from the distinct query; the job's cache keeps
// values resolved before the restart.
func (r *Resolver) runBatch(ctx context.Context, run *jobRun) error {
	job := run.job
	limit := job.Concurrency
	if limit <= 0 {
		limit = DefaultBatchConcurrency
	}

	return r.Retry.Do(ctx, "replace "+job.String(), func(ctx context.Context, attempt int) error {
		run.updated.Store(0)

		if err := r.Store.EnsureIndex(ctx, job.SearchCollection, job.SearchField); err != nil {
			return err
		}
		if err := r.Store.EnsureIndex(ctx, job.Collection, job.Field); err != nil {
			return err
		}

		values, err := r.Store.Distinct(ctx, job.Collection, job.Field)
		if err != nil {
			return err
		}
		run.distinct.Store(int64(len(values)))
		logger.Infof("Updating collection %s, field %s: %d distinct values of %s",
			job.Collection, job.NewField, len(values), job.Field)

		var remaining atomic.Int64
		remaining.Store(int64(len(values)))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for _, value := range values {
			g.Go(func() error {
				resolved, err := run.resolve(gctx, value)
				if err != nil {
					return err
				}
				n, err := r.Store.SetWhere(gctx, job.Collection, job.Field, value, job.NewField, resolved)
				if err != nil {
					return err
				}
				run.updated.Add(n)
				logger.Infof("Updated %d documents on collection %s, field %s for %v / %d values remaining",
					n, job.Collection, job.NewField, value, remaining.Add(-1))
				return nil
			})
		}
		return g.Wait()
	})
}
