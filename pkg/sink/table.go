package sink

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/Sternrassler/igdump/pkg/client"
	"github.com/Sternrassler/igdump/pkg/logging"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	// DefaultTable is the table written by the table sink.
	DefaultTable = "following"

	// DriverSQLite is the default database driver.
	DriverSQLite = "sqlite3"

	// DriverPostgres selects lib/pq.
	DriverPostgres = "postgres"

	// DefaultDSN is the sqlite database file.
	DefaultDSN = "following.sqlite3"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Row is one stored profile in column order.
type Row struct {
	Name      string `db:"name"`
	Username  string `db:"username"`
	Bio       string `db:"bio"`
	Followers int64  `db:"followers"`
	Following int64  `db:"following"`
	Category  string `db:"category"`
}

// RowFromProfile maps a profile to its stored columns.
func RowFromProfile(p client.Profile) Row {
	return Row{
		Name:      p.FullName,
		Username:  p.Username,
		Bio:       p.Biography,
		Followers: p.FollowerCount,
		Following: p.FollowingCount,
		Category:  p.Category,
	}
}

// OpenTable connects to a database. An empty driver means sqlite3 and an empty
// dsn means DefaultDSN for sqlite.
func OpenTable(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	driver, dsn, err := resolveDriver(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	return db, nil
}

func resolveDriver(driver, dsn string) (string, string, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = DefaultDSN
		}
	case DriverPostgres:
		if dsn == "" {
			return "", "", &StorageError{Op: "open", Err: fmt.Errorf("postgres dsn is required")}
		}
	default:
		return "", "", &StorageError{Op: "open", Err: fmt.Errorf("unsupported driver %q", driver)}
	}
	return driver, dsn, nil
}

// TableSink writes profiles into a freshly created table.
type TableSink struct {
	DB     *sqlx.DB
	Table  string
	logger zerolog.Logger
}

// NewTableSink creates a sink writing to table in db. Empty table means
// DefaultTable.
func NewTableSink(db *sqlx.DB, table string) (*TableSink, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &TableSink{
		DB:     db,
		Table:  table,
		logger: logging.NewLogger("sink").With().Str("table", table).Logger(),
	}, nil
}

// Emit creates the table and inserts every profile in one transaction. The
// table must not exist yet. Any failure rolls the transaction back.
func (s *TableSink) Emit(ctx context.Context, profiles []client.Profile) (err error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "begin", Err: err}
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Warn().Err(rbErr).Msg("Rollback failed")
			}
		}
	}()

	create := fmt.Sprintf(`CREATE TABLE %s (
		name text,
		username text,
		bio text,
		followers integer,
		following integer,
		category text
	)`, s.Table)
	if _, err = tx.ExecContext(ctx, create); err != nil {
		return &StorageError{Op: "create table", Err: err}
	}

	insert := tx.Rebind(fmt.Sprintf(
		"INSERT INTO %s (name, username, bio, followers, following, category) VALUES (?, ?, ?, ?, ?, ?)",
		s.Table))
	stmt, err := tx.PreparexContext(ctx, insert)
	if err != nil {
		return &StorageError{Op: "prepare", Err: err}
	}
	defer stmt.Close()

	for _, p := range profiles {
		r := RowFromProfile(p)
		category := sql.NullString{String: r.Category, Valid: r.Category != ""}
		if _, err = stmt.ExecContext(ctx, r.Name, r.Username, r.Bio, r.Followers, r.Following, category); err != nil {
			return &StorageError{Op: "insert", Err: fmt.Errorf("row %q: %w", r.Username, err)}
		}
	}

	if err = tx.Commit(); err != nil {
		return &StorageError{Op: "commit", Err: err}
	}

	rowsWrittenTotal.WithLabelValues(string(KindTable)).Add(float64(len(profiles)))
	s.logger.Info().Int("rows", len(profiles)).Msg("Rows written")
	return nil
}

// ReadTable returns every row of table in column order. A NULL category reads
// back as "".
func ReadTable(ctx context.Context, db *sqlx.DB, table string) ([]Row, error) {
	if !identPattern.MatchString(table) {
		return nil, &StorageError{Op: "read", Err: fmt.Errorf("invalid table name %q", table)}
	}
	var rows []Row
	query := fmt.Sprintf(
		"SELECT name, username, bio, followers, following, COALESCE(category, '') AS category FROM %s",
		table)
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	return rows, nil
}
