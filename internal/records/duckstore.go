// Package records stores flattened element records in a per-session DuckDB
// file so large exports can be paged and filtered without holding every
// record in memory.
package records

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/ifc-simplifier/backend/internal/extract"
	"github.com/marcboeker/go-duckdb"
	"github.com/zeebo/xxh3"
)

const defaultBatchSize = 5000

// Options tunes the DuckDB connection.
type Options struct {
	Threads     int
	MemoryLimit string
}

// DefaultOptions mirrors the Advanced section defaults of the XML config.
func DefaultOptions() Options {
	return Options{Threads: 4, MemoryLimit: "1GB"}
}

// QueryParams filters record queries. Empty fields do not filter.
type QueryParams struct {
	Class  string // case-insensitive exact match on the Class attribute
	Search string // case-insensitive substring match on the record's JSON text
}

// DuckStore holds the records of one simplification session.
type DuckStore struct {
	db     *sql.DB
	dbPath string

	mu        sync.Mutex
	count     int
	batch     []extract.Record
	batchSize int
	finalized bool

	// Semaphore to limit concurrent queries
	querySem chan struct{}
}

// NewDuckStore creates a new DuckDB-backed store in tempDir for a session.
func NewDuckStore(tempDir, sessionID string, opts Options) (*DuckStore, error) {
	dbPath := filepath.Join(tempDir, fmt.Sprintf("records_%s.duckdb", sessionID))
	return NewDuckStoreAtPath(dbPath, opts)
}

// NewDuckStoreAtPath creates a new DuckDB-backed store at a specific path.
func NewDuckStoreAtPath(dbPath string, opts Options) (*DuckStore, error) {
	if opts.Threads <= 0 {
		opts.Threads = DefaultOptions().Threads
	}
	if opts.MemoryLimit == "" {
		opts.MemoryLimit = DefaultOptions().MemoryLimit
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", strings.ReplaceAll(opts.MemoryLimit, "'", "")),
			fmt.Sprintf("PRAGMA threads=%d", opts.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE records (
			idx       INTEGER PRIMARY KEY,
			record_id VARCHAR NOT NULL,
			class     VARCHAR NOT NULL,
			name      VARCHAR NOT NULL,
			global_id VARCHAR NOT NULL,
			attrs     VARCHAR NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &DuckStore{
		db:        db,
		dbPath:    dbPath,
		batchSize: defaultBatchSize,
		batch:     make([]extract.Record, 0, defaultBatchSize),
		querySem:  make(chan struct{}, 3),
	}, nil
}

// Append queues records for insertion, flushing full batches.
func (ds *DuckStore) Append(ctx context.Context, recs ...extract.Record) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.finalized {
		return fmt.Errorf("append after finalize")
	}

	for _, r := range recs {
		ds.batch = append(ds.batch, r)
		if len(ds.batch) >= ds.batchSize {
			if err := ds.flushLocked(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// flushLocked writes the pending batch with the DuckDB Appender.
func (ds *DuckStore) flushLocked(ctx context.Context) error {
	if len(ds.batch) == 0 {
		return nil
	}

	conn, err := ds.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "records")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, r := range ds.batch {
			attrs, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to encode record %d: %w", ds.count+i, err)
			}
			err = appender.AppendRow(
				int32(ds.count+i),
				RecordID(r),
				r["Class"],
				r["Name"],
				r["GlobalId"],
				string(attrs),
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", ds.count+i, err)
			}
		}

		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	ds.count += len(ds.batch)
	ds.batch = ds.batch[:0]
	return nil
}

// Finalize flushes remaining records and builds the lookup index.
// The store is read-only afterwards.
func (ds *DuckStore) Finalize(ctx context.Context) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.finalized {
		return nil
	}
	if err := ds.flushLocked(ctx); err != nil {
		return err
	}
	if _, err := ds.db.ExecContext(ctx, "CREATE INDEX idx_class ON records(class)"); err != nil {
		return fmt.Errorf("idx_class creation failed: %w", err)
	}
	ds.finalized = true
	return nil
}

// Len returns the number of flushed records.
func (ds *DuckStore) Len() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.count
}

// Query returns a filtered page of records in input order, plus the total
// number of matches. page is 1-based.
func (ds *DuckStore) Query(ctx context.Context, params QueryParams, page, pageSize int) ([]extract.Record, int, error) {
	if err := ds.acquire(ctx); err != nil {
		return nil, 0, err
	}
	defer ds.release()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}

	where, args := buildWhereClause(params)

	var total int
	countQuery := "SELECT COUNT(*) FROM records" + where
	if err := ds.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count query failed: %w", err)
	}
	if total == 0 {
		return []extract.Record{}, 0, nil
	}

	query := "SELECT attrs FROM records" + where + " ORDER BY idx LIMIT ? OFFSET ?"
	args = append(args, pageSize, (page-1)*pageSize)

	recs, err := ds.scanRecords(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// All returns every record in input order.
func (ds *DuckStore) All(ctx context.Context) ([]extract.Record, error) {
	if err := ds.acquire(ctx); err != nil {
		return nil, err
	}
	defer ds.release()

	return ds.scanRecords(ctx, "SELECT attrs FROM records ORDER BY idx")
}

// Classes returns the distinct non-empty element classes, sorted.
func (ds *DuckStore) Classes(ctx context.Context) ([]string, error) {
	if err := ds.acquire(ctx); err != nil {
		return nil, err
	}
	defer ds.release()

	rows, err := ds.db.QueryContext(ctx, "SELECT DISTINCT class FROM records WHERE class <> '' ORDER BY class")
	if err != nil {
		return nil, fmt.Errorf("classes query failed: %w", err)
	}
	defer rows.Close()

	classes := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// Close closes the database and removes its file.
func (ds *DuckStore) Close() error {
	err := ds.db.Close()
	os.Remove(ds.dbPath)
	os.Remove(ds.dbPath + ".wal")
	return err
}

func (ds *DuckStore) scanRecords(ctx context.Context, query string, args ...any) ([]extract.Record, error) {
	rows, err := ds.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("records query failed: %w", err)
	}
	defer rows.Close()

	recs := []extract.Record{}
	for rows.Next() {
		var attrs string
		if err := rows.Scan(&attrs); err != nil {
			return nil, err
		}
		r := extract.Record{}
		if err := json.Unmarshal([]byte(attrs), &r); err != nil {
			return nil, fmt.Errorf("decoding stored record: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (ds *DuckStore) acquire(ctx context.Context) error {
	select {
	case ds.querySem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ds *DuckStore) release() { <-ds.querySem }

func buildWhereClause(params QueryParams) (string, []any) {
	var conds []string
	var args []any

	if c := strings.TrimSpace(params.Class); c != "" {
		conds = append(conds, "lower(class) = lower(?)")
		args = append(args, c)
	}
	if s := strings.TrimSpace(params.Search); s != "" {
		conds = append(conds, `attrs ILIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(s)+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike neutralises LIKE wildcards for use with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// RecordID returns the record's GlobalId, or a content hash when it has none.
// Identical records without a GlobalId share an ID; no deduplication happens.
func RecordID(r extract.Record) string {
	if id := strings.TrimSpace(r["GlobalId"]); id != "" {
		return id
	}
	return "h" + strconv.FormatUint(xxh3.HashString(r.Text()), 16)
}
