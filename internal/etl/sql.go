package etl

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/BartekS5/sql2mongo/internal/retry"
	"github.com/BartekS5/sql2mongo/pkg/models"
)

// Dialect names a supported source database and its driver.
type Dialect string

const (
	MySQL     Dialect = "mysql"
	SQLServer Dialect = "sqlserver"
	Postgres  Dialect = "postgres"
)

// Valid reports whether d is a supported dialect.
func (d Dialect) Valid() bool {
	switch d {
	case MySQL, SQLServer, Postgres:
		return true
	}
	return false
}

// SQLSource reads pages of a table with LIMIT/OFFSET (OFFSET/FETCH on SQL Server).
type SQLSource struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewSQLSource(db *sql.DB, dialect Dialect) *SQLSource {
	return &SQLSource{DB: db, Dialect: dialect}
}

// Count returns the table's row count. A NULL or negative count wraps
// ErrCouldNotImport and is not retried.
func (s *SQLSource) Count(ctx context.Context, table string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.quote(table))

	var n sql.NullInt64
	if err := s.DB.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	if !n.Valid || n.Int64 < 0 {
		return 0, retry.Permanent(fmt.Errorf("%w %s: no usable count", ErrCouldNotImport, table))
	}
	return n.Int64, nil
}

// FetchPage reads one page. Rows are ordered by req.OrderBy, or by the first
// column when it is empty, so that concurrent pages never overlap.
func (s *SQLSource) FetchPage(ctx context.Context, req PageRequest) ([]models.Record, error) {
	query, args := s.pageQuery(req)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []models.Record
	for rows.Next() {
		columns := make([]interface{}, len(cols))
		columnPointers := make([]interface{}, len(cols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}
		if err := rows.Scan(columnPointers...); err != nil {
			return nil, err
		}

		m := make(models.Record, len(cols))
		for i, colName := range cols {
			if b, ok := columns[i].([]byte); ok {
				m[colName] = string(b)
			} else {
				m[colName] = columns[i]
			}
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (s *SQLSource) pageQuery(req PageRequest) (string, []interface{}) {
	orderBy := "1"
	if req.OrderBy != "" {
		orderBy = s.quote(req.OrderBy)
	}
	limit, offset := int64(req.Size), int64(req.Offset())

	switch s.Dialect {
	case SQLServer:
		return fmt.Sprintf("SELECT * FROM %s ORDER BY %s OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY",
			s.quote(req.Table), orderBy), []interface{}{offset, limit}
	case Postgres:
		return fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT $1 OFFSET $2",
			s.quote(req.Table), orderBy), []interface{}{limit, offset}
	default:
		return fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT ? OFFSET ?",
			s.quote(req.Table), orderBy), []interface{}{limit, offset}
	}
}

// quote quotes each dot-separated part of an identifier for the dialect.
func (s *SQLSource) quote(ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		switch s.Dialect {
		case SQLServer:
			parts[i] = "[" + strings.ReplaceAll(p, "]", "]]") + "]"
		case Postgres:
			parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
		default:
			parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
		}
	}
	return strings.Join(parts, ".")
}
