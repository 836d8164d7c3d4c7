package etl

import (
	"errors"
	"fmt"
	"time"

	"github.com/BartekS5/sql2mongo/pkg/models"
	"github.com/BartekS5/sql2mongo/pkg/utils"
)

var (
	// ErrCoercion is matched by every *CoercionError.
	ErrCoercion = errors.New("coercion failed")
	// ErrMissingKey means a row has no value for the job's key field.
	ErrMissingKey = errors.New("missing key field")
)

// CoercionError reports a mapped value that could not be converted to its type.
// The field is written as null.
type CoercionError struct {
	Field string
	Type  models.FieldType
	Value interface{}
	Err   error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("field %s: cannot coerce %v to %s: %v", e.Field, e.Value, e.Type, e.Err)
}

func (e *CoercionError) Unwrap() []error {
	return []error{ErrCoercion, e.Err}
}

// Transformer turns source rows into documents according to a job's field mappings.
type Transformer struct {
	Fields   []models.FieldMapping
	KeyField string
	Now      func() time.Time
}

func NewTransformer(job *models.ImportJob) *Transformer {
	return &Transformer{
		Fields:   job.Fields,
		KeyField: job.KeyField,
		Now:      time.Now,
	}
}

// Transform maps one row. Every mapped field is present in the result; absent,
// null and uncoercible values are null. The returned error, if any, joins the
// coercion failures of this row, except for ErrMissingKey which yields no document.
func (t *Transformer) Transform(row models.Record) (models.Document, error) {
	doc := make(models.Document, 0, len(t.Fields)+2)

	if t.KeyField != "" {
		id, ok := row[t.KeyField]
		if !ok || id == nil {
			return nil, fmt.Errorf("%w %q", ErrMissingKey, t.KeyField)
		}
		doc = append(doc, models.DocElem("_id", normalize(id)))
	}

	var errs []error
	for _, f := range t.Fields {
		raw, ok := row[f.OldName]
		if !ok || raw == nil {
			doc = append(doc, models.DocElem(f.NewName, nil))
			continue
		}
		val, err := coerce(raw, f.Type)
		if err != nil {
			errs = append(errs, &CoercionError{Field: f.OldName, Type: f.Type, Value: raw, Err: err})
			val = nil
		}
		doc = append(doc, models.DocElem(f.NewName, val))
	}

	doc = append(doc, models.DocElem(models.MigratedField, t.Now()))
	return doc, errors.Join(errs...)
}

func coerce(raw interface{}, typ models.FieldType) (interface{}, error) {
	switch typ {
	case models.TypeInt:
		return utils.ConvertToInt(raw)
	case models.TypeFloat:
		return utils.ConvertToFloat(raw)
	case models.TypeDate:
		return utils.ConvertDateTime(raw)
	case models.TypeBoolean:
		return utils.ConvertToBool(raw), nil
	default:
		return normalize(raw), nil
	}
}

func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
