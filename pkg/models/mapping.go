package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// MigratedField is stamped on every document written by the importer.
const MigratedField = "migrated"

// FieldType selects the coercion applied to a mapped column.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInt     FieldType = "int"
	TypeFloat   FieldType = "float"
	TypeDate    FieldType = "date"
	TypeBoolean FieldType = "boolean"
)

// Valid reports whether t is a known type. The empty type is the untyped string case.
func (t FieldType) Valid() bool {
	switch t {
	case "", TypeString, TypeInt, TypeFloat, TypeDate, TypeBoolean:
		return true
	}
	return false
}

// FieldMapping maps one source column onto one document field.
type FieldMapping struct {
	OldName string    `json:"old_name" yaml:"old_name"`
	NewName string    `json:"new_name" yaml:"new_name"`
	Type    FieldType `json:"type,omitempty" yaml:"type,omitempty"`
}

// ImportJob describes copying one table into one collection.
type ImportJob struct {
	TableName      string
	CollectionName string
	Fields         []FieldMapping
	PageSize       int
	Page           int
	// Count is the pre-supplied record count; nil means it must be queried.
	Count          *int64
	Concurrency    int
	Sync           bool
	OrderBy        string
	KeyField       string
	StrictTypes    bool
	PagesPerSecond float64
}

// Strategy selects how a ReplaceJob resolves references.
type Strategy string

const (
	StrategyBatch Strategy = "batch"
	StrategyRow   Strategy = "row"
)

// ReplaceJob: for every document in Collection, look up its Field value as
// SearchField in SearchCollection and store the match's SearchNewField into NewField.
type ReplaceJob struct {
	Collection       string
	Field            string
	SearchCollection string
	SearchField      string
	SearchNewField   string
	NewField         string
	Strategy         Strategy
	Concurrency      int
	PageSize         int
	ObjectID         bool
}

func (r ReplaceJob) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s (%s into %s)",
		r.Collection, r.Field, r.SearchCollection, r.SearchField, r.SearchNewField, r.NewField)
}

// Record is one source row keyed by column name.
type Record map[string]interface{}

// Document is a transformed record in mapping order.
type Document bson.D

// Get returns the value stored under key.
func (d Document) Get(key string) (interface{}, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// DocElem builds one document element.
func DocElem(key string, value interface{}) bson.E {
	return bson.E{Key: key, Value: value}
}
