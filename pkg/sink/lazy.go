package sink

import (
	"context"
	"fmt"

	"github.com/Sternrassler/igdump/pkg/client"
	"github.com/jmoiron/sqlx"
)

// LazyTableSink is a TableSink that connects on the first Emit. A run that
// fails before it has profiles to write leaves no database file behind.
type LazyTableSink struct {
	driver string
	dsn    string
	table  string

	db   *sqlx.DB
	sink *TableSink
}

// NewLazyTableSink checks driver, dsn and table without connecting.
func NewLazyTableSink(driver, dsn, table string) (*LazyTableSink, error) {
	driver, dsn, err := resolveDriver(driver, dsn)
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = DefaultTable
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &LazyTableSink{driver: driver, dsn: dsn, table: table}, nil
}

// Table returns the target table name.
func (s *LazyTableSink) Table() string {
	return s.table
}

// DB returns the connection opened by Emit, or nil before the first Emit.
func (s *LazyTableSink) DB() *sqlx.DB {
	return s.db
}

// Emit connects if needed and writes profiles like TableSink.Emit.
func (s *LazyTableSink) Emit(ctx context.Context, profiles []client.Profile) error {
	if s.sink == nil {
		db, err := OpenTable(ctx, s.driver, s.dsn)
		if err != nil {
			return err
		}
		ts, err := NewTableSink(db, s.table)
		if err != nil {
			db.Close()
			return err
		}
		s.db, s.sink = db, ts
	}
	return s.sink.Emit(ctx, profiles)
}

// Close releases the connection if one was opened.
func (s *LazyTableSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
