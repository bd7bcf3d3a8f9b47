// Package journal records committed settlement events in SQLite so every
// sale keeps an audit trail.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"token_sales/internal/sales"
)

//go:embed schema.sql
var schemaSQL string

// Journal is an append-only event log. It implements sales.Emitter.
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the journal database at path. Use ":memory:" for a
// throwaway journal.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Journal{db: db, logger: logger}, nil
}

// Append stores evt.
func (j *Journal) Append(ctx context.Context, evt sales.Event) error {
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO sale_events (sale, type, tx_id, timestamp, attributes) VALUES (?, ?, ?, ?, ?)`,
		evt.Sale.String(), evt.Type, evt.TxID, evt.Timestamp, string(attrs),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Emit appends evt. The state change it describes is already committed, so
// a journal failure is logged rather than returned.
func (j *Journal) Emit(evt sales.Event) {
	if err := j.Append(context.Background(), evt); err != nil {
		j.logger.Error("failed to journal event",
			zap.String("type", evt.Type),
			zap.String("sale", evt.Sale.String()),
			zap.Error(err),
		)
	}
}

// List returns the events of sale in the order they were recorded.
func (j *Journal) List(ctx context.Context, sale solana.PublicKey) ([]sales.Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT type, tx_id, timestamp, attributes FROM sale_events WHERE sale = ? ORDER BY id`,
		sale.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]sales.Event, 0)
	for rows.Next() {
		var (
			evt   = sales.Event{Sale: sale}
			attrs string
		)
		if err := rows.Scan(&evt.Type, &evt.TxID, &evt.Timestamp, &attrs); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &evt.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

var _ sales.Emitter = (*Journal)(nil)
