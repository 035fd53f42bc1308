package build

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hazyhaar/climmo/pkg/frame"
)

// PostgresSink publishes each table to PostgreSQL. Tables are dropped and
// recreated on every build, all in one transaction, so readers see either
// the previous build or the new one.
type PostgresSink struct {
	db     *sql.DB
	prefix string
}

// OpenPostgres connects to dsn. Table names are prefixed with prefix
// (e.g. "climmo_").
func OpenPostgres(dsn, prefix string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(4)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &PostgresSink{db: db, prefix: prefix}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

// Close closes the connection pool.
func (s *PostgresSink) Close() error { return s.db.Close() }

func (s *PostgresSink) Write(ctx context.Context, tables []Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		if err := s.writeTable(ctx, tx, t); err != nil {
			return fmt.Errorf("postgres: %s: %w", t.Name, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresSink) writeTable(ctx context.Context, tx *sql.Tx, t Table) error {
	name := s.prefix + t.Name
	cols := t.Frame.Columns()
	types := columnTypes(t.Frame)

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+pq.QuoteIdentifier(name)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, createTable(name, cols, types)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(name, cols...))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for r := 0; r < t.Frame.Len(); r++ {
		for c, v := range t.Frame.Row(r) {
			if v == "" && types[c] == "DOUBLE PRECISION" {
				args[c] = nil
			} else {
				args[c] = v
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	_, err = stmt.ExecContext(ctx)
	return err
}

// columnTypes maps each column to DOUBLE PRECISION when all its non-empty
// cells are numbers and it is not a code (leading zero), TEXT otherwise.
func columnTypes(f *frame.Frame) []string {
	cols := f.Columns()
	types := make([]string, len(cols))
	for i, c := range cols {
		types[i] = "TEXT"
		raw, _ := f.Column(c)
		numeric, seen := true, false
		for _, v := range raw {
			if v == "" {
				continue
			}
			seen = true
			if !frame.ParseNum(v).Valid || !plainNumber(v) {
				numeric = false
				break
			}
		}
		if numeric && seen {
			types[i] = "DOUBLE PRECISION"
		}
	}
	return types
}

func plainNumber(s string) bool {
	if len(s) > 1 && s[0] == '0' && s[1] != '.' {
		return false
	}
	return !strings.ContainsAny(s, " ,;")
}

func createTable(name string, cols, types []string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pq.QuoteIdentifier(c) + " " + types[i]
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", pq.QuoteIdentifier(name), strings.Join(defs, ", "))
}
