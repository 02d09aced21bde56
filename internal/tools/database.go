package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RowSource serves read-only table lookups for the database tool.
type RowSource interface {
	// Query returns up to limit rows from the named table. Unknown tables
	// return an error that the tool converts into an error payload for the
	// model rather than a hard failure.
	Query(ctx context.Context, table string, limit int) ([]map[string]any, error)
	// Tables lists the tables the source exposes.
	Tables() []string
}

const defaultQueryLimit = 10

// Database exposes table lookups to the model. Results and "unknown table"
// errors are both returned as JSON strings so the model can recover.
type Database struct {
	source RowSource
}

func NewDatabase(source RowSource) *Database {
	return &Database{source: source}
}

func (d *Database) Name() string { return "database" }

func (d *Database) Description() string {
	return "Query a read-only database table. Available tables: " + strings.Join(d.source.Tables(), ", ") + "."
}

func (d *Database) Run(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Table string `json:"table"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("tools.Database.Run: decoding input: %w", err)
	}

	limit := args.Limit
	if limit <= 0 || limit > 100 {
		limit = defaultQueryLimit
	}

	rows, err := d.source.Query(ctx, strings.ToLower(strings.TrimSpace(args.Table)), limit)
	if err != nil {
		// Give the model something it can read back to the user instead of
		// aborting the turn.
		out, merr := json.Marshal(map[string]string{"error": err.Error()})
		if merr != nil {
			return "", fmt.Errorf("tools.Database.Run: %w", merr)
		}
		return string(out), nil
	}

	out, err := json.Marshal(map[string]any{
		"table": args.Table,
		"rows":  rows,
		"count": len(rows),
	})
	if err != nil {
		return "", fmt.Errorf("tools.Database.Run: %w", err)
	}
	return string(out), nil
}

// StaticSource serves in-memory demo tables. It backs the database tool when
// no PostgreSQL connection is configured.
type StaticSource struct {
	tables map[string][]map[string]any
}

func NewStaticSource() *StaticSource {
	return &StaticSource{
		tables: map[string][]map[string]any{
			"users": {
				{"id": 1, "name": "Alice Chen", "email": "alice@example.com", "plan": "pro"},
				{"id": 2, "name": "Bob Park", "email": "bob@example.com", "plan": "free"},
				{"id": 3, "name": "Carol Diaz", "email": "carol@example.com", "plan": "pro"},
			},
			"products": {
				{"id": 1, "name": "Standing Desk", "price": 499.00, "stock": 12},
				{"id": 2, "name": "Ergonomic Chair", "price": 329.00, "stock": 4},
				{"id": 3, "name": "Monitor Arm", "price": 89.00, "stock": 31},
			},
		},
	}
}

func (s *StaticSource) Query(_ context.Context, table string, limit int) ([]map[string]any, error) {
	rows, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q, available: %s", table, strings.Join(s.Tables(), ", "))
	}
	if limit > len(rows) {
		limit = len(rows)
	}
	return rows[:limit], nil
}

func (s *StaticSource) Tables() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PostgresSource serves allowlisted tables from a live database.
type PostgresSource struct {
	pool    *pgxpool.Pool
	allowed []string
}

func NewPostgresSource(pool *pgxpool.Pool, tables []string) *PostgresSource {
	allowed := make([]string, len(tables))
	copy(allowed, tables)
	sort.Strings(allowed)
	return &PostgresSource{pool: pool, allowed: allowed}
}

func (s *PostgresSource) Query(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	if !s.allows(table) {
		return nil, fmt.Errorf("unknown table %q, available: %s", table, strings.Join(s.allowed, ", "))
	}

	// Table name is validated against the allowlist, so interpolation here
	// cannot carry user-controlled SQL.
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT $1", table), limit)
	if err != nil {
		return nil, fmt.Errorf("tools.PostgresSource.Query: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	fields := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("tools.PostgresSource.Query: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, field := range fields {
			row[field.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tools.PostgresSource.Query: %w", err)
	}
	return out, nil
}

func (s *PostgresSource) Tables() []string { return s.allowed }

func (s *PostgresSource) allows(table string) bool {
	for _, name := range s.allowed {
		if name == table {
			return true
		}
	}
	return false
}
