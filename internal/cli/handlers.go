package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/sql2mongo/internal/config"
	"github.com/BartekS5/sql2mongo/internal/etl"
	"github.com/BartekS5/sql2mongo/internal/resolver"
	"github.com/BartekS5/sql2mongo/pkg/database"
	"github.com/BartekS5/sql2mongo/pkg/logger"
	"github.com/BartekS5/sql2mongo/pkg/models"
	"go.mongodb.org/mongo-driver/mongo"
)

type phase int

const (
	phaseImport phase = 1 << iota
	phaseReplace
)

type plan struct {
	cfg      *config.Config
	imports  []*models.ImportJob
	replaces []*models.ReplaceJob
}

func loadPlan(opts *Options, phases phase) (*plan, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath(opts.Env)
	}
	logger.Infof("Loading configuration from %s", path)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	p := &plan{cfg: cfg}
	if phases&phaseImport != 0 {
		if p.imports, err = cfg.ImportJobs(); err != nil {
			return nil, err
		}
	}
	if phases&phaseReplace != 0 {
		if p.replaces, err = cfg.ReplaceJobs(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func runMigration(ctx context.Context, opts *Options, phases phase) error {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()

	p, err := loadPlan(opts, phases)
	if err != nil {
		return err
	}
	cfg := p.cfg
	policy := cfg.RetryPolicy()

	var mongoDB *mongo.Database
	if !opts.DryRun && (len(p.imports) > 0 || len(p.replaces) > 0) {
		client, err := database.ConnectMongo(ctx, cfg.MongoConnString)
		if err != nil {
			return err
		}
		defer database.DisconnectMongo(client)
		mongoDB = client.Database(cfg.MongoDatabase())
	}

	if len(p.imports) > 0 {
		sqlDB, err := database.ConnectSQL(ctx, string(cfg.Dialect()), cfg.SQLConnString)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		src := etl.NewSQLSource(sqlDB, cfg.Dialect())
		var sink etl.Sink
		if mongoDB != nil {
			sink = etl.NewMongoSink(mongoDB)
		}
		importer := etl.NewImporter(src, sink, policy, opts.DryRun)
		if err := etl.NewScheduler(src, importer, policy).RunAll(ctx, p.imports); err != nil {
			return err
		}
	}

	if len(p.replaces) > 0 {
		if opts.DryRun {
			for _, job := range p.replaces {
				logger.Infof("[DRY RUN] Would resolve %s", job)
			}
		} else {
			caches, closeCache, err := cacheFactory(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeCache()

			r := resolver.New(resolver.NewMongoStore(mongoDB), policy, caches)
			if err := r.RunAll(ctx, p.replaces); err != nil {
				return err
			}
		}
	}

	logger.Infof("Migration finished successfully in %s (%d retries).",
		time.Since(started).Round(time.Millisecond), policy.Retries())
	return nil
}

func cacheFactory(ctx context.Context, cfg *config.Config) (resolver.CacheFactory, func(), error) {
	if cfg.Cache.Driver != "redis" {
		return resolver.MemoryCacheFactory(), func() {}, nil
	}
	client, err := database.ConnectRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPass, cfg.Cache.RedisDB)
	if err != nil {
		return nil, nil, fmt.Errorf("resolution cache: %w", err)
	}
	prefix := cfg.Cache.KeyPrefix
	if prefix == "" {
		prefix = "sql2mongo"
	}
	return resolver.RedisCacheFactory(client, prefix), func() { client.Close() }, nil
}
