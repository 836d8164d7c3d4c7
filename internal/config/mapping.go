package config

import (
	"errors"
	"fmt"

	"github.com/BartekS5/sql2mongo/pkg/models"
)

// LoadFieldMappings reads a table's field mapping list from filePath.
// Unknown types are rejected here rather than when the first row arrives.
func LoadFieldMappings(filePath string) ([]models.FieldMapping, error) {
	var fields []models.FieldMapping
	if err := decodeFile(filePath, &fields); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("mapping file '%s' has no fields", filePath)
	}

	var errs []error
	for i, f := range fields {
		if f.OldName == "" || f.NewName == "" {
			errs = append(errs, fmt.Errorf("field %d: old_name and new_name are required", i))
		}
		if !f.Type.Valid() {
			errs = append(errs, fmt.Errorf("field %s: unknown type %q", f.OldName, f.Type))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("mapping file '%s': %w", filePath, err)
	}
	return fields, nil
}
