package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"
)

// CampusStore is a read-only connection to the campus dining database
// (menus, prices, nutrition). The only statements ever submitted are those
// that passed the SQL guard; read-only mode at the driver level is a second
// line of defense.
type CampusStore struct {
	db *sql.DB
}

// OpenCampus opens the campus database at path in read-only mode.
func OpenCampus(path string) (*CampusStore, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro", url.PathEscape(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening campus database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging campus database: %w", err)
	}
	return &CampusStore{db: db}, nil
}

// Close closes the underlying database connection.
func (c *CampusStore) Close() error {
	return c.db.Close()
}

// Ping reports whether the database is reachable.
func (c *CampusStore) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Query runs a guarded SELECT and returns column names plus at most maxRows
// rows, with values rendered as strings (NULL becomes "").
func (c *CampusStore) Query(ctx context.Context, query string, maxRows int) ([]string, [][]string, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("reading columns: %w", err)
	}

	var out [][]string
	scan := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range scan {
		ptrs[i] = &scan[i]
	}

	for rows.Next() {
		if maxRows > 0 && len(out) >= maxRows {
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range scan {
			if v.Valid {
				row[i] = v.String
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating rows: %w", err)
	}

	return cols, out, nil
}

// SchemaDDL returns the CREATE statements of all user tables, used as the
// schema hint for the SQL-generating model.
func (c *CampusStore) SchemaDDL(ctx context.Context) (string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	defer rows.Close()

	var ddls []string
	for rows.Next() {
		var ddl string
		if err := rows.Scan(&ddl); err != nil {
			return "", fmt.Errorf("scanning schema row: %w", err)
		}
		ddls = append(ddls, ddl+";")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterating schema rows: %w", err)
	}

	return strings.Join(ddls, "\n"), nil
}
