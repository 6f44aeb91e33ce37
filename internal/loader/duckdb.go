package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
	"go.uber.org/zap"
)

// ErrEmptyStatement is returned when there is nothing to execute.
var ErrEmptyStatement = errors.New("empty sql statement")

// DuckDB executes load statements against a local DuckDB database file.
type DuckDB struct {
	path   string
	logger *zap.Logger
}

// NewDuckDB creates a loader for the database at path.
func NewDuckDB(path string, logger *zap.Logger) *DuckDB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuckDB{path: path, logger: logger}
}

// Path returns the database file path.
func (d *DuckDB) Path() string {
	return d.path
}

// Load opens a connection, executes stmt and closes the connection on every
// exit path. What stmt does (upsert, append, dedupe) is up to the template.
func (d *DuckDB) Load(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return ErrEmptyStatement
	}
	if dir := filepath.Dir(d.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("duckdb", d.path)
	if err != nil {
		return fmt.Errorf("open duckdb %s: %w", d.path, err)
	}
	defer db.Close()

	d.logger.Info("executing query", zap.String("database", d.path), zap.String("sql", stmt))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("execute load: %w", err)
	}
	d.logger.Info("query done", zap.String("database", d.path))
	return nil
}
