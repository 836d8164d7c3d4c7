package etl

import (
	"context"
	"testing"

	"github.com/BartekS5/sql2mongo/internal/retry"
	"github.com/BartekS5/sql2mongo/pkg/models"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockSource(t *testing.T, dialect Dialect) (*SQLSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLSource(db, dialect), mock
}

func TestSQLSourceFetchPageMySQL(t *testing.T) {
	src, mock := newMockSource(t, MySQL)

	mock.ExpectQuery("SELECT * FROM `shop`.`users` ORDER BY `id` LIMIT ? OFFSET ?").
		WithArgs(int64(2), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status"}).
			AddRow(int64(3), []byte("carol"), int64(1)).
			AddRow(int64(4), nil, int64(0)))

	rows, err := src.FetchPage(context.Background(), PageRequest{Table: "shop.users", OrderBy: "id", Page: 2, Size: 2})
	require.NoError(t, err)

	assert.Equal(t, []models.Record{
		{"id": int64(3), "name": "carol", "status": int64(1)},
		{"id": int64(4), "name": nil, "status": int64(0)},
	}, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSourcePageQueryDialects(t *testing.T) {
	req := PageRequest{Table: "users", Page: 3, Size: 50}

	cases := []struct {
		dialect Dialect
		query   string
		args    []interface{}
	}{
		{MySQL, "SELECT * FROM `users` ORDER BY 1 LIMIT ? OFFSET ?", []interface{}{int64(50), int64(100)}},
		{Postgres, `SELECT * FROM "users" ORDER BY 1 LIMIT $1 OFFSET $2`, []interface{}{int64(50), int64(100)}},
		{SQLServer, "SELECT * FROM [users] ORDER BY 1 OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY", []interface{}{int64(100), int64(50)}},
	}
	for _, c := range cases {
		src := NewSQLSource(nil, c.dialect)
		query, args := src.pageQuery(req)
		assert.Equal(t, c.query, query, string(c.dialect))
		assert.Equal(t, c.args, args, string(c.dialect))
	}
}

func TestSQLSourceQuoteEscapes(t *testing.T) {
	assert.Equal(t, "`we``ird`", NewSQLSource(nil, MySQL).quote("we`ird"))
	assert.Equal(t, "[dbo].[a]]b]", NewSQLSource(nil, SQLServer).quote("dbo.a]b"))
	assert.Equal(t, `"a""b"`, NewSQLSource(nil, Postgres).quote(`a"b`))
}

func TestSQLSourceCount(t *testing.T) {
	src, mock := newMockSource(t, MySQL)

	mock.ExpectQuery("SELECT COUNT(*) FROM `orders`").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(1000)))

	n, err := src.Count(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSourceCountNullIsPermanent(t *testing.T) {
	src, mock := newMockSource(t, MySQL)

	mock.ExpectQuery("SELECT COUNT(*) FROM `orders`").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(nil))

	_, err := src.Count(context.Background(), "orders")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCouldNotImport)
	assert.True(t, retry.IsPermanent(err))
}

func TestSQLSourceCountQueryErrorIsTransient(t *testing.T) {
	src, mock := newMockSource(t, MySQL)

	mock.ExpectQuery("SELECT COUNT(*) FROM `orders`").WillReturnError(errTransient)

	_, err := src.Count(context.Background(), "orders")
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.False(t, retry.IsPermanent(err))
}
