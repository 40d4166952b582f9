// Package leads serves rows of the CRM leads table from PostgreSQL.
package leads

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dennisdiepolder/callboard/internal/metrics"
	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

const (
	DefaultLimit = 10
	MaxLimit     = 1000
)

// Repository reads leads
type Repository struct {
	conn   *sql.DB
	query  string
	logger zerolog.Logger
}

// Connect opens the database and prepares the query for table
// ("schema.table", either part optionally double-quoted).
func Connect(ctx context.Context, dsn, table string, logger zerolog.Logger) (*Repository, error) {
	ident, err := ParseIdentifier(table)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(20 * time.Minute)

	logger.Info().Str("table", ident.Sanitize()).Msg("Leads database connected")

	return &Repository{
		conn:   conn,
		query:  "SELECT * FROM " + ident.Sanitize() + " LIMIT $1",
		logger: logger.With().Str("component", "leads").Logger(),
	}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.conn.Close()
}

// ClampLimit applies the default and maximum page size
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// List returns up to limit rows as column -> value maps
func (r *Repository) List(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	start := time.Now()
	rows, err := r.conn.QueryContext(ctx, r.query, ClampLimit(limit))
	metrics.ObserveUpstream("postgres", "leads", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query leads: %v", types.ErrUpstreamUnavailable, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	out := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}

		rec := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			rec[c] = normalize(values[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read leads: %v", types.ErrUpstreamUnavailable, err)
	}
	return out, nil
}

func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// ParseIdentifier splits "schema.table" into a pgx identifier
func ParseIdentifier(s string) (pgx.Identifier, error) {
	var parts []string
	var cur strings.Builder
	quoted := false

	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == '"':
			quoted = !quoted
		case r == '.' && !quoted:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	parts = append(parts, cur.String())

	if quoted || len(parts) > 2 {
		return nil, fmt.Errorf("%w: invalid table name %q", types.ErrConfigurationMissing, s)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: invalid table name %q", types.ErrConfigurationMissing, s)
		}
	}
	return pgx.Identifier(parts), nil
}
