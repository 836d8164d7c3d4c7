package etl

import (
	"errors"
	"fmt"

	"github.com/BartekS5/sql2mongo/pkg/models"
)

// ValidateJob checks an import job before anything is read.
func ValidateJob(job *models.ImportJob) error {
	var errs []error
	if job.TableName == "" {
		errs = append(errs, errors.New("table_name is required"))
	}
	if job.CollectionName == "" {
		errs = append(errs, errors.New("collection_name is required"))
	}
	if job.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page_size must be positive, got %d", job.PageSize))
	}
	if job.Page < 1 {
		errs = append(errs, fmt.Errorf("page must be at least 1, got %d", job.Page))
	}
	if job.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", job.Concurrency))
	}
	if job.Count != nil && *job.Count < 0 {
		errs = append(errs, fmt.Errorf("count must not be negative, got %d", *job.Count))
	}
	if len(job.Fields) == 0 {
		errs = append(errs, errors.New("field mapping is empty"))
	}

	seen := make(map[string]bool, len(job.Fields))
	for i, f := range job.Fields {
		if f.OldName == "" || f.NewName == "" {
			errs = append(errs, fmt.Errorf("field %d: old_name and new_name are required", i))
		}
		if !f.Type.Valid() {
			errs = append(errs, fmt.Errorf("field %s: unknown type %q", f.OldName, f.Type))
		}
		if seen[f.NewName] {
			errs = append(errs, fmt.Errorf("field %s: new_name %q mapped twice", f.OldName, f.NewName))
		}
		if f.NewName == models.MigratedField || (job.KeyField != "" && f.NewName == "_id") {
			errs = append(errs, fmt.Errorf("field %s: new_name %q is reserved", f.OldName, f.NewName))
		}
		seen[f.NewName] = true
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("import job %s: %w", job.TableName, err)
	}
	return nil
}
