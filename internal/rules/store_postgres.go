package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Postgres driver, registered for database/sql.
	_ "github.com/lib/pq"
)

// PostgresStore persists rule sets so a restart can serve the last fetched
// snapshot before the first refresh completes. Rule sets are replaced
// wholesale inside one transaction; readers only ever see a full set.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a Postgres-backed rule persistence.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS rule_sets (
    id         INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS rules (
    identifier  TEXT PRIMARY KEY,
    logic_type  TEXT NOT NULL,
    country     TEXT NOT NULL,
    region      TEXT NOT NULL DEFAULT '',
    payload     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS rules_scope_idx ON rules (logic_type, country, region);
`

// EnsureSchema creates the rule tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure rules schema: %w", err)
	}
	return nil
}

// SaveSet replaces the persisted rule set in one transaction.
func (s *PostgresStore) SaveSet(ctx context.Context, all []Rule, updatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rule-set save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rules`); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}
	for _, r := range all {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal rule %s: %w", r.Identifier, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rules (identifier, logic_type, country, region, payload)
			 VALUES ($1, $2, $3, $4, $5)`,
			r.Identifier, string(r.Type), r.Country, r.Region, payload)
		if err != nil {
			return fmt.Errorf("insert rule %s: %w", r.Identifier, err)
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO rule_sets (id, updated_at) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		updatedAt)
	if err != nil {
		return fmt.Errorf("record rule-set update time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rule-set save: %w", err)
	}
	return nil
}

// Load reads the persisted rule set into a fresh snapshot. Returns nil when
// nothing was ever persisted.
func (s *PostgresStore) Load(ctx context.Context) (*Set, error) {
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM rule_sets WHERE id = 1`).Scan(&updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load rule-set metadata: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM rules ORDER BY identifier`)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	defer rows.Close()

	var all []Rule
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		var r Rule
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("decode rule: %w", err)
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return NewSet(all, updatedAt), nil
}
