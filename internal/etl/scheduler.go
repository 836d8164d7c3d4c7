package etl

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/BartekS5/sql2mongo/internal/retry"
	"github.com/BartekS5/sql2mongo/pkg/logger"
	"github.com/BartekS5/sql2mongo/pkg/models"
	"golang.org/x/sync/errgroup"
)

// ErrCouldNotImport means the source gave no usable record count for a table.
var ErrCouldNotImport = errors.New("could not import table")

// DefaultConcurrency bounds in-flight pages when a job does not set one.
const DefaultConcurrency = 10

// TotalPages is the number of pages of size pageSize needed for count rows.
func TotalPages(count int64, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 0
	}
	return int((count + int64(pageSize) - 1) / int64(pageSize))
}

// Scheduler runs import jobs one after another, fanning pages of each job out
// under the job's concurrency limit.
type Scheduler struct {
	Source   Source
	Importer *Importer
	Retry    *retry.Policy
}

func NewScheduler(src Source, im *Importer, policy *retry.Policy) *Scheduler {
	return &Scheduler{Source: src, Importer: im, Retry: policy}
}

// RunAll runs jobs in order and stops at the first failed job.
func (s *Scheduler) RunAll(ctx context.Context, jobs []*models.ImportJob) error {
	for _, job := range jobs {
		if _, err := s.Run(ctx, job); err != nil {
			return fmt.Errorf("couldn't import table %s: %w", job.TableName, err)
		}
	}
	return nil
}

// Run imports one job.
func (s *Scheduler) Run(ctx context.Context, job *models.ImportJob) (Result, error) {
	started := time.Now()
	first := job.Page
	if first < 1 {
		first = 1
	}

	var (
		res Result
		err error
	)
	if job.Sync {
		res, err = s.Importer.Import(ctx, job, first, FollowPages)
	} else {
		res, err = s.runPages(ctx, job, first)
	}
	if err != nil {
		return res, err
	}

	logger.Infof("Table %s imported into %s: %d documents in %d page(s), %s",
		job.TableName, job.CollectionName, res.Documents, res.Pages, time.Since(started).Round(time.Millisecond))
	return res, nil
}

func (s *Scheduler) runPages(ctx context.Context, job *models.ImportJob, first int) (Result, error) {
	count, err := s.count(ctx, job)
	if err != nil {
		return Result{}, err
	}

	last := TotalPages(count, job.PageSize)
	if first > last {
		logger.Infof("The table %s's %d records need no pages from page %d.", job.TableName, count, first)
		return Result{}, nil
	}
	logger.Infof("The table %s's %d records will be imported in %d page(s).", job.TableName, count, last-first+1)
	if job.OrderBy == "" && last-first > 0 {
		logger.Warnf("Table %s has neither order_by nor key_field: concurrent pages are ordered by the first column, "+
			"which must be unique or rows may be skipped or duplicated.", job.TableName)
	}

	limit := job.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var pages, docs atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for page := first; page <= last; page++ {
		g.Go(func() error {
			r, err := s.Importer.Import(gctx, job, page, SinglePage)
			pages.Add(int64(r.Pages))
			docs.Add(r.Documents)
			return err
		})
	}
	err = g.Wait()
	return Result{Pages: int(pages.Load()), Documents: docs.Load()}, err
}

func (s *Scheduler) count(ctx context.Context, job *models.ImportJob) (int64, error) {
	if job.Count != nil {
		return *job.Count, nil
	}

	logger.Infof("Counting table %s's records...", job.TableName)
	var n int64
	err := s.Retry.Do(ctx, "count of table "+job.TableName, func(ctx context.Context, attempt int) error {
		c, err := s.Source.Count(ctx, job.TableName)
		if err != nil {
			return err
		}
		n = c
		return nil
	})
	return n, err
}
