// Package config handles loading and parsing of configuration files
// for the application: the main settings file and the per-table field mappings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BartekS5/sql2mongo/internal/etl"
	"github.com/BartekS5/sql2mongo/internal/resolver"
	"github.com/BartekS5/sql2mongo/internal/retry"
	"github.com/BartekS5/sql2mongo/pkg/models"
	"github.com/BartekS5/sql2mongo/pkg/utils"
)

// ErrInvalidConfig wraps every problem found in the settings file.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultDir       = "_config"
	DefaultTablesDir = "_tables"
	DefaultPageSize  = 10000
	EnvName          = "SQL2MONGO_ENV"
)

type SQLSettings struct {
	Driver string      `json:"DB_DRIVER" yaml:"DB_DRIVER"`
	Host   string      `json:"DB_HOST" yaml:"DB_HOST"`
	Port   interface{} `json:"DB_PORT" yaml:"DB_PORT"`
	User   string      `json:"DB_USER" yaml:"DB_USER"`
	Name   string      `json:"DB_NAME" yaml:"DB_NAME"`
	// Pass is a pointer so that an empty password can be told apart from a missing key.
	Pass   *string     `json:"DB_PASS" yaml:"DB_PASS"`
}

// Password is the configured password, empty when unset.
func (s *SQLSettings) Password() string {
	if s.Pass == nil {
		return ""
	}
	return *s.Pass
}

type MongoSettings struct {
	Host string      `json:"DB_HOST" yaml:"DB_HOST"`
	Port interface{} `json:"DB_PORT" yaml:"DB_PORT"`
	Name string      `json:"DB_NAME" yaml:"DB_NAME"`
	User string      `json:"DB_USER" yaml:"DB_USER"`
	Pass string      `json:"DB_PASS" yaml:"DB_PASS"`
}

// ImportSpec is one WHAT_2_IMPORT entry. Numeric settings may be written as
// numbers or numeric strings.
type ImportSpec struct {
	TableName      string      `json:"table_name" yaml:"table_name"`
	MappingFile    string      `json:"mapping_file" yaml:"mapping_file"`
	CollectionName string      `json:"collection_name" yaml:"collection_name"`
	PageSize       interface{} `json:"page_size" yaml:"page_size"`
	Page           interface{} `json:"page" yaml:"page"`
	Sync           bool        `json:"sync" yaml:"sync"`
	Concurrency    interface{} `json:"concurrency" yaml:"concurrency"`
	Count          interface{} `json:"count" yaml:"count"`
	OrderBy        string      `json:"order_by" yaml:"order_by"`
	KeyField       string      `json:"key_field" yaml:"key_field"`
	StrictTypes    bool        `json:"strict_types" yaml:"strict_types"`
	PagesPerSecond float64     `json:"pages_per_second" yaml:"pages_per_second"`
}

// ReplaceSpec is one REPLACES entry.
type ReplaceSpec struct {
	Collection       string      `json:"collection" yaml:"collection"`
	Field            string      `json:"field" yaml:"field"`
	SearchCollection string      `json:"search_collection" yaml:"search_collection"`
	SearchField      string      `json:"search_field" yaml:"search_field"`
	SearchNewField   string      `json:"search_new_field" yaml:"search_new_field"`
	NewField         string      `json:"new_field" yaml:"new_field"`
	Strategy         string      `json:"strategy" yaml:"strategy"`
	Concurrency      interface{} `json:"concurrency" yaml:"concurrency"`
	PageSize         interface{} `json:"page_size" yaml:"page_size"`
	ObjectID         bool        `json:"object_id" yaml:"object_id"`
}

type CacheSettings struct {
	Driver    string `json:"DRIVER" yaml:"DRIVER"`
	RedisAddr string `json:"REDIS_ADDR" yaml:"REDIS_ADDR"`
	RedisPass string `json:"REDIS_PASS" yaml:"REDIS_PASS"`
	RedisDB   int    `json:"REDIS_DB" yaml:"REDIS_DB"`
	KeyPrefix string `json:"KEY_PREFIX" yaml:"KEY_PREFIX"`
}

type RetrySettings struct {
	DelayMS int `json:"DELAY_MS" yaml:"DELAY_MS"`
}

// Config holds all configuration for the application.
type Config struct {
	SQL      *SQLSettings   `json:"SQL_SETTINGS" yaml:"SQL_SETTINGS"`
	MySQL    *SQLSettings   `json:"MYSQL_SETTINGS" yaml:"MYSQL_SETTINGS"`
	Mongo    *MongoSettings `json:"MONGODB_SETTINGS" yaml:"MONGODB_SETTINGS"`
	Imports  []ImportSpec   `json:"WHAT_2_IMPORT" yaml:"WHAT_2_IMPORT"`
	Replaces []ReplaceSpec  `json:"REPLACES" yaml:"REPLACES"`
	Cache    CacheSettings  `json:"CACHE_SETTINGS" yaml:"CACHE_SETTINGS"`
	Retry    RetrySettings  `json:"RETRY_SETTINGS" yaml:"RETRY_SETTINGS"`

	// Filled by Load from the file and the environment.
	SQLConnString   string `json:"-" yaml:"-"`
	MongoConnString string `json:"-" yaml:"-"`
	TablesDir       string `json:"-" yaml:"-"`
}

// DefaultPath is the settings file used when no --config flag is given.
func DefaultPath(env string) string {
	if env == "" {
		env = os.Getenv(EnvName)
	}
	if env == "" {
		return filepath.Join(DefaultDir, "config.json")
	}
	return filepath.Join(DefaultDir, "config-"+env+".json")
}

// Load reads the settings file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := decodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.TablesDir = DefaultTablesDir
	if cfg.SQL == nil {
		cfg.SQL = cfg.MySQL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// Validate checks the connection, cache and retry sections. Job descriptors
// are checked when they are turned into jobs.
func (c *Config) Validate() error {
	var errs []error
	sqlOverride := os.Getenv(EnvSQLConn) != ""
	mongoOverride := os.Getenv(EnvMongoConn) != ""

	if c.SQL == nil {
		errs = append(errs, errors.New("SQL_SETTINGS (or MYSQL_SETTINGS) is required"))
	} else {
		if !c.Dialect().Valid() {
			errs = append(errs, fmt.Errorf("SQL_SETTINGS.DB_DRIVER %q is not supported", c.SQL.Driver))
		}
		if !sqlOverride {
			errs = append(errs, required("SQL_SETTINGS", map[string]string{
				"DB_HOST": c.SQL.Host, "DB_USER": c.SQL.User, "DB_NAME": c.SQL.Name,
			}, "DB_HOST", "DB_USER", "DB_NAME")...)
			if c.SQL.Pass == nil {
				errs = append(errs, errors.New("SQL_SETTINGS.DB_PASS is required"))
			}
		}
		if _, err := utils.IntOrDefault(c.SQL.Port, 0); err != nil {
			errs = append(errs, fmt.Errorf("SQL_SETTINGS.DB_PORT: %w", err))
		}
	}

	if c.Mongo == nil {
		errs = append(errs, errors.New("MONGODB_SETTINGS is required"))
	} else {
		if c.Mongo.Name == "" {
			errs = append(errs, errors.New("MONGODB_SETTINGS.DB_NAME is required"))
		}
		if !mongoOverride {
			errs = append(errs, required("MONGODB_SETTINGS", map[string]string{
				"DB_HOST": c.Mongo.Host, "DB_PORT": portString(c.Mongo.Port),
			}, "DB_HOST", "DB_PORT")...)
		}
		if _, err := utils.IntOrDefault(c.Mongo.Port, 0); err != nil {
			errs = append(errs, fmt.Errorf("MONGODB_SETTINGS.DB_PORT: %w", err))
		}
	}

	if c.Imports == nil {
		errs = append(errs, errors.New("WHAT_2_IMPORT is required (it may be an empty list)"))
	}

	switch c.Cache.Driver {
	case "", "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("CACHE_SETTINGS.REDIS_ADDR is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_SETTINGS.DRIVER %q is not supported", c.Cache.Driver))
	}

	if c.Retry.DelayMS < 0 {
		errs = append(errs, errors.New("RETRY_SETTINGS.DELAY_MS must not be negative"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func required(section string, values map[string]string, keys ...string) []error {
	var errs []error
	for _, k := range keys {
		if values[k] == "" {
			errs = append(errs, fmt.Errorf("%s.%s is required", section, k))
		}
	}
	return errs
}

// Dialect is the configured source dialect, MySQL when unset.
func (c *Config) Dialect() etl.Dialect {
	if c.SQL == nil || c.SQL.Driver == "" {
		return etl.MySQL
	}
	return etl.Dialect(c.SQL.Driver)
}

// MongoDatabase is the target database name.
func (c *Config) MongoDatabase() string {
	if c.Mongo == nil {
		return ""
	}
	return c.Mongo.Name
}

// RetryPolicy builds the policy shared by every job of the run.
func (c *Config) RetryPolicy() *retry.Policy {
	return retry.New(time.Duration(c.Retry.DelayMS) * time.Millisecond)
}

// ImportJobs turns the WHAT_2_IMPORT entries into validated jobs, loading
// each entry's field mappings.
func (c *Config) ImportJobs() ([]*models.ImportJob, error) {
	var (
		jobs []*models.ImportJob
		errs []error
	)
	for i, entry := range c.Imports {
		job, err := c.importJob(entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("WHAT_2_IMPORT[%d] (%s): %w", i, entry.TableName, err))
			continue
		}
		jobs = append(jobs, job)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return jobs, nil
}

func (c *Config) importJob(entry ImportSpec) (*models.ImportJob, error) {
	if entry.TableName == "" {
		return nil, errors.New("table_name is required")
	}
	pageSize, err := utils.IntOrDefault(entry.PageSize, DefaultPageSize)
	if err != nil {
		return nil, fmt.Errorf("page_size: %w", err)
	}
	page, err := utils.IntOrDefault(entry.Page, 1)
	if err != nil {
		return nil, fmt.Errorf("page: %w", err)
	}
	concurrency, err := utils.IntOrDefault(entry.Concurrency, etl.DefaultConcurrency)
	if err != nil {
		return nil, fmt.Errorf("concurrency: %w", err)
	}
	if entry.PagesPerSecond < 0 {
		return nil, errors.New("pages_per_second must not be negative")
	}

	fields, err := LoadFieldMappings(c.mappingPath(entry))
	if err != nil {
		return nil, err
	}

	job := &models.ImportJob{
		TableName:      entry.TableName,
		CollectionName: entry.CollectionName,
		Fields:         fields,
		PageSize:       pageSize,
		Page:           page,
		Concurrency:    concurrency,
		Sync:           entry.Sync,
		OrderBy:        entry.OrderBy,
		KeyField:       entry.KeyField,
		StrictTypes:    entry.StrictTypes,
		PagesPerSecond: entry.PagesPerSecond,
	}
	if job.OrderBy == "" {
		job.OrderBy = entry.KeyField
	}
	if entry.Count != nil {
		n, err := utils.ConvertToInt(entry.Count)
		if err != nil {
			return nil, fmt.Errorf("count: %w", err)
		}
		job.Count = &n
	}
	if err := etl.ValidateJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

func (c *Config) mappingPath(entry ImportSpec) string {
	if entry.MappingFile != "" {
		return entry.MappingFile
	}
	dir := c.TablesDir
	if dir == "" {
		dir = DefaultTablesDir
	}
	return filepath.Join(dir, entry.TableName+".json")
}

// ReplaceJobs turns the REPLACES entries into validated jobs with defaults applied.
func (c *Config) ReplaceJobs() ([]*models.ReplaceJob, error) {
	var (
		jobs []*models.ReplaceJob
		errs []error
	)
	for i, entry := range c.Replaces {
		job, err := replaceJob(entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("REPLACES[%d]: %w", i, err))
			continue
		}
		jobs = append(jobs, job)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return jobs, nil
}

func replaceJob(entry ReplaceSpec) (*models.ReplaceJob, error) {
	job := &models.ReplaceJob{
		Collection:       entry.Collection,
		Field:            entry.Field,
		SearchCollection: entry.SearchCollection,
		SearchField:      entry.SearchField,
		SearchNewField:   entry.SearchNewField,
		NewField:         entry.NewField,
		Strategy:         models.Strategy(entry.Strategy),
		ObjectID:         entry.ObjectID,
	}
	if job.Strategy == "" {
		job.Strategy = models.StrategyBatch
	}

	defConcurrency := resolver.DefaultBatchConcurrency
	if job.Strategy == models.StrategyRow {
		defConcurrency = resolver.DefaultRowConcurrency
	}
	var err error
	if job.Concurrency, err = utils.IntOrDefault(entry.Concurrency, defConcurrency); err != nil {
		return nil, fmt.Errorf("concurrency: %w", err)
	}
	if job.PageSize, err = utils.IntOrDefault(entry.PageSize, resolver.DefaultRowPageSize); err != nil {
		return nil, fmt.Errorf("page_size: %w", err)
	}
	if err := resolver.Validate(job); err != nil {
		return nil, err
	}
	return job, nil
}
