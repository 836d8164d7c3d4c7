package resolver

import (
	"context"
	"fmt"

	"github.com/BartekS5/sql2mongo/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// runRows pages through the collection in migration order and updates each
// document by _id. Lookups still go through the job cache, so the number of
// lookups follows the distinct values, not the rows.
func (r *Resolver) runRows(ctx context.Context, run *jobRun) error {
	job := run.job
	size := job.PageSize
	if size <= 0 {
		size = DefaultRowPageSize
	}
	limit := job.Concurrency
	if limit <= 0 {
		limit = DefaultRowConcurrency
	}

	for page := 1; ; page++ {
		var fetched int
		op := fmt.Sprintf("collection %s, page %d (size: %d)", job.Collection, page, size)
		err := r.Retry.Do(ctx, op, func(ctx context.Context, attempt int) error {
			logger.Infof("Updating collection %s, field %s / page %d, size: %d", job.Collection, job.NewField, page, size)

			rows, err := r.Store.Page(ctx, job.Collection, job.Field, page, size)
			if err != nil {
				return err
			}
			fetched = len(rows)

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(limit)
			for _, row := range rows {
				g.Go(func() error {
					resolved, err := run.resolve(gctx, row.Value)
					if err != nil {
						return err
					}
					return r.Store.SetByID(gctx, job.Collection, row.ID, job.NewField, resolved)
				})
			}
			return g.Wait()
		})
		if err != nil {
			return err
		}
		run.updated.Add(int64(fetched))
		if fetched < size {
			return nil
		}
	}
}
