package etl

import (
	"context"

	"github.com/BartekS5/sql2mongo/pkg/models"
)

// PageRequest addresses one 1-indexed page of a source table.
type PageRequest struct {
	Table   string
	OrderBy string
	Page    int
	Size    int
}

// Offset is the number of rows before this page.
func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.Size
}

// Source reads a relational table by count and by page.
type Source interface {
	Count(ctx context.Context, table string) (int64, error)
	FetchPage(ctx context.Context, req PageRequest) ([]models.Record, error)
}

// Sink writes transformed pages into a document collection.
type Sink interface {
	Insert(ctx context.Context, collection string, docs []models.Document) (int, error)
	// Upsert replaces documents by _id, inserting those that do not exist.
	Upsert(ctx context.Context, collection string, docs []models.Document) (int, error)
}
