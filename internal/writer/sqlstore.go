// SQL persistence for the writer, grounded on r3e-network-service_layer's
// internal/platform/database.Open (dial + ping) and its migrations
// package (embedded, lexically-ordered, idempotent DDL). Postgres/lib/pq
// stands in for the original's SQLite/SQLAlchemy persistence layer, since
// no corpus example carries a SQLite driver to ground that choice on.
package writer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/baikal/syswatch/internal/event"
)

// SQLStore owns the unified_events table: batch inserts from the writer
// actor, and the read-only query API the RPC layer consumes.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore dials Postgres, verifies connectivity, and applies pending
// migrations, mirroring r3e-network-service_layer's dial-then-migrate
// startup sequence.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sql dsn is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

// InsertBatch writes every event in one transaction, preserving enqueue
// order within the batch (spec.md §4.4 "Ordering"). A single constraint
// violation or marshal failure aborts the whole batch — the writer's
// batch-level failure policy treats that as transient-per-batch and drops it.
func (s *SQLStore) InsertBatch(ctx context.Context, events []event.UnifiedEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO unified_events (timestamp, event_type, details, metadata_fields) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		detailsJSON, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		metadataJSON, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, e.Timestamp.UTC(), string(e.Type), detailsJSON, metadataJSON); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

// GetRecentEvents returns the newest `limit` events of the given type,
// each flattened to {timestamp, ...details, ...metadata}, per spec.md
// §4.4's query API.
func (s *SQLStore) GetRecentEvents(ctx context.Context, eventType event.Type, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, details, metadata_fields FROM unified_events WHERE event_type = $1 ORDER BY timestamp DESC LIMIT $2`,
		string(eventType), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var ts time.Time
		var detailsRaw, metadataRaw []byte
		if err := rows.Scan(&ts, &detailsRaw, &metadataRaw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		var details map[string]any
		if err := json.Unmarshal(detailsRaw, &details); err != nil {
			continue
		}
		var metadata map[string]string
		if err := json.Unmarshal(metadataRaw, &metadata); err != nil {
			metadata = map[string]string{}
		}

		flat := make(map[string]any, len(details)+len(metadata)+1)
		for k, v := range details {
			flat[k] = v
		}
		for k, v := range metadata {
			flat[k] = v
		}
		flat["timestamp"] = ts.UTC().Format(time.RFC3339Nano)
		out = append(out, flat)
	}
	return out, rows.Err()
}
