// Package sqldb provides a SQL-table-backed source. One Source reads one
// table; the schema's field names double as the selected column names.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/decantio/decant/pkg/logger"
	"github.com/decantio/decant/pkg/pipeline"
	"github.com/decantio/decant/pkg/telemetry"
)

var tracer = otel.Tracer("decant/pkg/source/sqldb")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sqldb."+name)
}

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
	DriverMySQL    = "mysql"
)

// Source reads raw tuples from one SQL table.
type Source struct {
	db               *sql.DB
	stbl             sq.StatementBuilderType
	table            string
	schema           pipeline.Schema
	logger           logger.Logger
	exportMetrics    bool
	dbStatsCollector prometheus.Collector
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger used while waiting for the database.
func WithLogger(l logger.Logger) Option {
	return func(s *Source) {
		s.logger = l
	}
}

// WithDBStatsCollection registers a prometheus collector exposing the
// connection pool's sql.DBStats.
func WithDBStatsCollection() Option {
	return func(s *Source) {
		s.exportMetrics = true
	}
}

// New opens a connection pool for the given driver and returns a Source over
// table. Remote drivers are pinged with backoff until the database answers;
// the file-local sqlite driver stays lazy.
func New(driver, dsn, table string, schema pipeline.Schema, opts ...Option) (*Source, error) {
	switch driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	if table == "" {
		return nil, fmt.Errorf("table name must not be empty")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("initialize %s connection: %w", driver, err)
	}

	s := &Source{
		db:     db,
		table:  table,
		schema: schema,
		logger: logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if driver != DriverSQLite {
		policy := backoff.NewExponentialBackOff()
		policy.MaxElapsedTime = 1 * time.Minute
		attempt := 1
		err = backoff.Retry(func() error {
			err := db.PingContext(context.Background())
			if err != nil {
				s.logger.Info("waiting for database", zap.String("driver", driver), zap.Int("attempt", attempt))
				attempt++
				return err
			}
			return nil
		}, policy)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping %s: %w", driver, err)
		}
	}

	if s.exportMetrics {
		collector := collectors.NewDBStatsCollector(db, "decant")
		if err := prometheus.Register(collector); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
		s.dbStatsCollector = collector
	}

	stbl := sq.StatementBuilder.RunWith(db)
	if driver == DriverPostgres {
		stbl = stbl.PlaceholderFormat(sq.Dollar)
	}
	s.stbl = stbl

	return s, nil
}

// Close releases the connection pool.
func (s *Source) Close() {
	if s.dbStatsCollector != nil {
		prometheus.Unregister(s.dbStatsCollector)
	}
	_ = s.db.Close()
}

func (s *Source) Schema() pipeline.Schema {
	return s.schema
}

// Read issues a SELECT over the schema's columns and streams the rows.
func (s *Source) Read(ctx context.Context) (pipeline.TupleIterator, error) {
	ctx, span := startTrace(ctx, "Read")
	defer span.End()

	fields := s.schema.Fields()
	columns := make([]string, 0, len(fields))
	for _, field := range fields {
		columns = append(columns, field.Name)
	}

	rows, err := s.stbl.Select(columns...).From(s.table).QueryContext(ctx)
	if err != nil {
		err = fmt.Errorf("query table %q: %w", s.table, err)
		telemetry.TraceError(span, err)
		return nil, err
	}

	return &rowIterator{rows: rows, width: len(columns)}, nil
}

type rowIterator struct {
	rows  *sql.Rows
	width int
}

var _ pipeline.TupleIterator = (*rowIterator)(nil)

func (i *rowIterator) Next(ctx context.Context) ([]any, error) {
	select {
	case <-ctx.Done():
		return nil, pipeline.ErrIteratorDone
	default:
	}

	if !i.rows.Next() {
		if err := i.rows.Err(); err != nil {
			return nil, fmt.Errorf("scan rows: %w", err)
		}
		return nil, pipeline.ErrIteratorDone
	}

	values := make([]any, i.width)
	ptrs := make([]any, i.width)
	for j := range values {
		ptrs[j] = &values[j]
	}
	if err := i.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return values, nil
}

func (i *rowIterator) Stop() {
	_ = i.rows.Close()
}
