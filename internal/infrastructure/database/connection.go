package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	appErrors "github.com/nexuscrm/persist/pkg/errors"
	"github.com/nexuscrm/persist/pkg/query"
)

// Options tune the diagnostics of a Connection
type Options struct {
	// SlowQueryThreshold raises a warning for a single slower statement. Zero disables it.
	SlowQueryThreshold time.Duration
	// TotalQueryThreshold raises a warning once the summed statement time exceeds it. Zero disables it.
	TotalQueryThreshold time.Duration
	HistoryLimit        int
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		SlowQueryThreshold:  5 * time.Second,
		TotalQueryThreshold: 60 * time.Second,
		HistoryLimit:        DefaultHistoryLimit,
	}
}

// Result is the outcome of a statement. Row-producing statements fill
// Columns and Rows; all others report RowsAffected and LastInsertID.
type Result struct {
	Columns      []string
	Rows         []query.Row
	RowsAffected int64
	LastInsertID int64
}

// HasRows reports whether the statement produced a result set
func (r *Result) HasRows() bool {
	return r != nil && r.Columns != nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Connection owns one database session. All calls are serialised, so a
// Connection can be shared but never runs statements in parallel.
type Connection struct {
	mu         sync.Mutex
	db         *sql.DB
	conn       *sql.Conn
	tx         *sql.Tx
	ownsDB     bool
	database   string
	options    Options
	classifier *StatementClassifier

	history      *history
	total        time.Duration
	totalWarned  bool
	warnings     []string
	lastInsertID int64
}

// NewConnection pins a session from an existing pool
func NewConnection(ctx context.Context, db *sql.DB, database string, opts Options) (*Connection, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, appErrors.NewEngineError("", err)
	}
	return &Connection{
		db:         db,
		conn:       conn,
		database:   database,
		options:    opts,
		classifier: NewStatementClassifier(),
		history:    newHistory(opts.HistoryLimit),
	}, nil
}

// Query executes one statement. Transaction control statements are routed to
// TransactionBegin, TransactionCommit and TransactionRollback and are not
// recorded in the history.
func (c *Connection) Query(ctx context.Context, statement string, args ...interface{}) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, appErrors.ErrNotConnected
	}

	kind := c.classifier.Classify(statement)
	switch kind {
	case StatementBegin:
		return &Result{}, c.beginLocked(ctx)
	case StatementCommit:
		return &Result{}, c.commitLocked()
	case StatementRollback:
		return &Result{}, c.rollbackLocked()
	}

	startedAt := time.Now()
	result, err := c.run(ctx, kind, statement, args)
	c.record(statement, startedAt, time.Since(startedAt), err)

	if err != nil {
		return nil, appErrors.NewEngineError(statement, err)
	}
	return result, nil
}

func (c *Connection) run(ctx context.Context, kind StatementKind, statement string, args []interface{}) (*Result, error) {
	var q queryer = c.conn
	if c.tx != nil {
		q = c.tx
	}

	if kind == StatementRows {
		rows, err := q.QueryContext(ctx, statement, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		columns, records, err := query.ScanRows(rows)
		if err != nil {
			return nil, err
		}
		return &Result{Columns: columns, Rows: records}, nil
	}

	res, err := q.ExecContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if lastID != 0 {
		c.lastInsertID = lastID
	}
	return &Result{RowsAffected: affected, LastInsertID: lastID}, nil
}

func (c *Connection) record(statement string, startedAt time.Time, elapsed time.Duration, err error) {
	c.total += elapsed

	entry := HistoryEntry{
		Statement:          statement,
		StartedAt:          startedAt,
		Duration:           elapsed.Seconds(),
		CumulativeDuration: c.total.Seconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	c.history.add(entry)

	if c.options.SlowQueryThreshold > 0 && elapsed > c.options.SlowQueryThreshold {
		c.warn(fmt.Sprintf("slow query took %.3fs (threshold %.3fs): %s",
			elapsed.Seconds(), c.options.SlowQueryThreshold.Seconds(), statement))
	}
	if c.options.TotalQueryThreshold > 0 && !c.totalWarned && c.total > c.options.TotalQueryThreshold {
		c.totalWarned = true
		c.warn(fmt.Sprintf("total query time %.3fs exceeds %.3fs",
			c.total.Seconds(), c.options.TotalQueryThreshold.Seconds()))
	}
}

func (c *Connection) warn(message string) {
	log.Printf("⚠️ %s", message)
	c.warnings = append(c.warnings, message)
}

// TransactionBegin starts a transaction on the pinned session
func (c *Connection) TransactionBegin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return appErrors.ErrNotConnected
	}
	return c.beginLocked(ctx)
}

// TransactionCommit commits the active transaction
func (c *Connection) TransactionCommit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitLocked()
}

// TransactionRollback rolls back the active transaction
func (c *Connection) TransactionRollback(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollbackLocked()
}

func (c *Connection) beginLocked(ctx context.Context) error {
	if c.tx != nil {
		return appErrors.ErrTransactionActive
	}
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return appErrors.NewEngineError("START TRANSACTION", err)
	}
	c.tx = tx
	return nil
}

func (c *Connection) commitLocked() error {
	if c.tx == nil {
		return appErrors.ErrNoTransaction
	}
	err := c.tx.Commit()
	c.tx = nil
	if err != nil {
		return appErrors.NewEngineError("COMMIT", err)
	}
	return nil
}

func (c *Connection) rollbackLocked() error {
	if c.tx == nil {
		return appErrors.ErrNoTransaction
	}
	err := c.tx.Rollback()
	c.tx = nil
	if err != nil {
		return appErrors.NewEngineError("ROLLBACK", err)
	}
	return nil
}

// InTransaction reports whether a transaction is active
func (c *Connection) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx != nil
}

// UseDatabase switches the session to another schema
func (c *Connection) UseDatabase(ctx context.Context, name string) error {
	if _, err := c.Query(ctx, "USE "+query.QuoteIdentifier(name)); err != nil {
		return err
	}
	c.mu.Lock()
	c.database = name
	c.mu.Unlock()
	return nil
}

// LastInsertID returns the auto-increment value generated by the latest insert
func (c *Connection) LastInsertID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastInsertID
}

// SelectedDatabase returns the schema the session works in
func (c *Connection) SelectedDatabase() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.database
}

// History returns a copy of the statement history, oldest first
func (c *Connection) History() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.snapshot()
}

// TotalDuration returns the summed time of every recorded statement
func (c *Connection) TotalDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Warnings returns the non-fatal warnings raised so far
func (c *Connection) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// Disconnect releases the session and clears every in-memory diagnostic.
// An open transaction is rolled back.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return appErrors.ErrNotConnected
	}

	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil {
			log.Printf("⚠️ Rollback on disconnect failed: %v", err)
		}
		c.tx = nil
	}

	err := c.conn.Close()
	if c.ownsDB {
		if dbErr := c.db.Close(); err == nil {
			err = dbErr
		}
	}

	c.conn = nil
	c.db = nil
	c.database = ""
	c.lastInsertID = 0
	c.total = 0
	c.totalWarned = false
	c.warnings = nil
	c.history.reset()
	return err
}
