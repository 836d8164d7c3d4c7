// Package resolver rewrites migrated foreign-key fields into references to
// documents of other, already migrated, collections.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/BartekS5/sql2mongo/internal/retry"
	"github.com/BartekS5/sql2mongo/pkg/logger"
	"github.com/BartekS5/sql2mongo/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBatchConcurrency = 5
	DefaultRowConcurrency   = 10
	DefaultRowPageSize      = 1000
)

// Stats summarizes one ReplaceJob execution.
type Stats struct {
	Distinct  int
	Lookups   int64
	CacheHits int64
	Updated   int64
}

// Resolver runs ReplaceJobs against a Store.
type Resolver struct {
	Store    Store
	Retry    *retry.Policy
	NewCache CacheFactory
}

func New(store Store, policy *retry.Policy, caches CacheFactory) *Resolver {
	if caches == nil {
		caches = MemoryCacheFactory()
	}
	return &Resolver{Store: store, Retry: policy, NewCache: caches}
}

// Validate checks a ReplaceJob before it runs.
func Validate(job *models.ReplaceJob) error {
	var errs []error
	required := []struct{ name, value string }{
		{"collection", job.Collection},
		{"field", job.Field},
		{"search_collection", job.SearchCollection},
		{"search_field", job.SearchField},
		{"search_new_field", job.SearchNewField},
		{"new_field", job.NewField},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}
	if job.NewField != "" && job.NewField == job.Field {
		errs = append(errs, errors.New("new_field must differ from field"))
	}
	switch job.Strategy {
	case "", models.StrategyBatch, models.StrategyRow:
	default:
		errs = append(errs, fmt.Errorf("unknown strategy %q", job.Strategy))
	}
	if job.Concurrency < 0 || job.PageSize < 0 {
		errs = append(errs, errors.New("concurrency and page_size must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("replace job %s: %w", job, err)
	}
	return nil
}

// RunAll runs jobs one at a time, stopping at the first failure.
func (r *Resolver) RunAll(ctx context.Context, jobs []*models.ReplaceJob) error {
	for _, job := range jobs {
		if _, err := r.Run(ctx, job); err != nil {
			return fmt.Errorf("couldn't update %s: %w", job, err)
		}
	}
	return nil
}

// Run executes one job with a cache that lives exactly as long as the job.
func (r *Resolver) Run(ctx context.Context, job *models.ReplaceJob) (Stats, error) {
	started := time.Now()

	var cache Cache
	err := r.Retry.Do(ctx, "open resolution cache", func(ctx context.Context, attempt int) error {
		c, err := r.NewCache(ctx)
		cache = c
		return err
	})
	if err != nil {
		return Stats{}, err
	}
	defer func() {
		if err := cache.Clear(context.Background()); err != nil {
			logger.Warnf("Could not discard resolution cache of %s: %v", job, err)
		}
	}()

	run := &jobRun{job: job, store: r.Store, cache: cache}
	if job.Strategy == models.StrategyRow {
		err = r.runRows(ctx, run)
	} else {
		err = r.runBatch(ctx, run)
	}

	stats := run.stats()
	if err != nil {
		return stats, err
	}
	logger.Infof("Updated collection %s, field %s: %d distinct values, %d lookups, %d cache hits, %d documents in %s",
		job.Collection, job.NewField, stats.Distinct, stats.Lookups, stats.CacheHits, stats.Updated,
		time.Since(started).Round(time.Millisecond))
	return stats, nil
}

// jobRun is the state of one job execution.
type jobRun struct {
	job   *models.ReplaceJob
	store Store
	cache Cache
	group singleflight.Group

	distinct  atomic.Int64
	lookups   atomic.Int64
	cacheHits atomic.Int64
	updated   atomic.Int64
}

func (j *jobRun) stats() Stats {
	return Stats{
		Distinct:  int(j.distinct.Load()),
		Lookups:   j.lookups.Load(),
		CacheHits: j.cacheHits.Load(),
		Updated:   j.updated.Load(),
	}
}

// resolve maps a field value onto the referenced value. A null key or a key
// with no matching document resolves to nil. Each key is looked up at most
// once per job, even when requested concurrently.
func (j *jobRun) resolve(ctx context.Context, key interface{}) (interface{}, error) {
	if key == nil {
		return nil, nil
	}
	if v, ok, err := j.cache.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		j.cacheHits.Add(1)
		return v, nil
	}

	v, err, _ := j.group.Do(keyOf(key), func() (interface{}, error) {
		if v, ok, err := j.cache.Get(ctx, key); err != nil {
			return nil, err
		} else if ok {
			return v, nil
		}

		j.lookups.Add(1)
		v, found, err := j.store.Lookup(ctx, j.job.SearchCollection, j.job.SearchField, key, j.job.SearchNewField)
		if err != nil {
			return nil, err
		}
		if !found {
			v = nil
		}
		v = j.reference(v)
		if err := j.cache.Set(ctx, key, v); err != nil {
			return nil, err
		}
		return v, nil
	})
	return v, err
}

func (j *jobRun) reference(v interface{}) interface{} {
	if !j.job.ObjectID {
		return v
	}
	s, ok := v.(string)
	if !ok {
		return v
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		logger.Debugf("Value %q of %s.%s is not an ObjectID, storing null", s, j.job.SearchCollection, j.job.SearchNewField)
		return nil
	}
	return id
}
