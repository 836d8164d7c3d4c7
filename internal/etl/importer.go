package etl

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/BartekS5/sql2mongo/internal/retry"
	"github.com/BartekS5/sql2mongo/pkg/logger"
	"github.com/BartekS5/sql2mongo/pkg/models"
	"golang.org/x/time/rate"
)

// Mode decides what Import does after a page is written.
type Mode int

const (
	// SinglePage imports one page and returns; the scheduler drives the rest.
	SinglePage Mode = iota
	// FollowPages keeps going until a short or empty page.
	FollowPages
)

// Result counts the pages fetched and documents written by an import.
type Result struct {
	Pages     int
	Documents int64
}

func (r *Result) add(o Result) {
	r.Pages += o.Pages
	r.Documents += o.Documents
}

// Importer copies pages from a Source into a Sink, retrying each page until it lands.
type Importer struct {
	Source Source
	Sink   Sink
	Retry  *retry.Policy
	DryRun bool

	mu       sync.Mutex
	limiters map[*models.ImportJob]*rate.Limiter
}

func NewImporter(src Source, sink Sink, policy *retry.Policy, dryRun bool) *Importer {
	return &Importer{
		Source:   src,
		Sink:     sink,
		Retry:    policy,
		DryRun:   dryRun,
		limiters: make(map[*models.ImportJob]*rate.Limiter),
	}
}

// Import imports job starting at page. In SinglePage mode exactly one page is
// fetched; in FollowPages mode pages are fetched in order until one returns
// fewer than PageSize rows.
func (im *Importer) Import(ctx context.Context, job *models.ImportJob, page int, mode Mode) (Result, error) {
	t := NewTransformer(job)
	var res Result
	for {
		n, err := im.importPage(ctx, job, t, page)
		if err != nil {
			return res, err
		}
		res.add(Result{Pages: 1, Documents: int64(n)})
		if mode == SinglePage || n < job.PageSize {
			return res, nil
		}
		page++
	}
}

func (im *Importer) importPage(ctx context.Context, job *models.ImportJob, t *Transformer, page int) (int, error) {
	req := PageRequest{Table: job.TableName, OrderBy: job.OrderBy, Page: page, Size: job.PageSize}
	op := fmt.Sprintf("table %s, page %d (size: %d)", job.TableName, page, job.PageSize)

	var written int
	err := im.Retry.Do(ctx, op, func(ctx context.Context, attempt int) error {
		logger.Infof("Importing table %s to collection %s / page %d, size: %d",
			job.TableName, job.CollectionName, page, job.PageSize)

		if l := im.limiter(job); l != nil {
			if err := l.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
		}

		rows, err := im.Source.FetchPage(ctx, req)
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		if len(rows) == 0 {
			written = 0
			return nil
		}

		docs := make([]models.Document, 0, len(rows))
		for i, row := range rows {
			doc, err := t.Transform(row)
			if err != nil {
				if errors.Is(err, ErrMissingKey) || job.StrictTypes {
					return retry.Permanent(fmt.Errorf("table %s, page %d, row %d: %w", job.TableName, page, i, err))
				}
				logger.Debugf("Table %s, page %d, row %d written with nulls: %v", job.TableName, page, i, err)
			}
			docs = append(docs, doc)
		}

		if im.DryRun {
			logger.Infof("[DRY RUN] Would load %d documents into %s", len(docs), job.CollectionName)
			written = len(docs)
			return nil
		}

		if job.KeyField != "" {
			_, err = im.Sink.Upsert(ctx, job.CollectionName, docs)
		} else {
			_, err = im.Sink.Insert(ctx, job.CollectionName, docs)
		}
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		written = len(docs)
		return nil
	})
	return written, err
}

func (im *Importer) limiter(job *models.ImportJob) *rate.Limiter {
	if job.PagesPerSecond <= 0 {
		return nil
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	if im.limiters == nil {
		im.limiters = make(map[*models.ImportJob]*rate.Limiter)
	}
	l, ok := im.limiters[job]
	if !ok {
		l = rate.NewLimiter(rate.Limit(job.PagesPerSecond), 1)
		im.limiters[job] = l
	}
	return l
}
