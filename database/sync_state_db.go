package database

import (
	"database/sql"
	"fmt"
	"log"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// InitSyncStateDB opens the sync-state store and creates its tables. The
// resolved-session cache must survive a crash between resolution and use, so
// it lives here rather than only in process memory.
func InitSyncStateDB(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sync state database: %w", err)
	}

	// enable write-ahead logging for better concurrency
	_, err = db.Exec("PRAGMA journal_mode=WAL;")
	if err != nil {
		log.Printf("warning: failed to set WAL mode: %v", err)
	}

	sqlStmt := `
	CREATE TABLE IF NOT EXISTS sync_sessions (
		session_client_id TEXT PRIMARY KEY,
		server_session_id TEXT NOT NULL,
		resolved_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS sync_watermark (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		since INTEGER NOT NULL
	);
	`
	_, err = db.Exec(sqlStmt)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sync state tables: %w", err)
	}

	log.Println("sync state database initialized successfully at", dataSourceName)
	return db, nil
}

// GetSessionServerID returns the cached server-side session id for a session
// client id, or sql.ErrNoRows when the session was never resolved.
func GetSessionServerID(db *sql.DB, sessionClientID string) (string, error) {
	queryBuilder := psql.Select("server_session_id").
		From("sync_sessions").
		Where(sq.Eq{"session_client_id": sessionClientID}).
		Limit(1)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build SQL query for GetSessionServerID: %w", err)
	}

	var serverID string
	err = db.QueryRow(sqlStr, args...).Scan(&serverID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", sql.ErrNoRows
		}
		return "", fmt.Errorf("failed to query session server id for %s: %w", sessionClientID, err)
	}
	return serverID, nil
}

// SetSessionServerID inserts or updates the resolved server session id.
func SetSessionServerID(db *sql.DB, sessionClientID, serverSessionID string, resolvedAt int64) error {
	queryBuilder := psql.Insert("sync_sessions").
		Columns("session_client_id", "server_session_id", "resolved_at").
		Values(sessionClientID, serverSessionID, resolvedAt).
		Suffix("ON CONFLICT(session_client_id) DO UPDATE SET").
		Suffix("server_session_id = excluded.server_session_id,").
		Suffix("resolved_at = excluded.resolved_at")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for SetSessionServerID: %w", err)
	}

	_, err = db.Exec(sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to store session server id for %s: %w", sessionClientID, err)
	}
	return nil
}

// GetSyncWatermark returns the delta-pull `since` watermark, zero if unset.
func GetSyncWatermark(db *sql.DB) (int64, error) {
	queryBuilder := psql.Select("since").
		From("sync_watermark").
		Where(sq.Eq{"id": 1}).
		Limit(1)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for GetSyncWatermark: %w", err)
	}

	var since int64
	err = db.QueryRow(sqlStr, args...).Scan(&since)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query sync watermark: %w", err)
	}
	return since, nil
}

// SetSyncWatermark advances the delta-pull watermark. Callers must only do so
// after a fully successful pull phase.
func SetSyncWatermark(db *sql.DB, since int64) error {
	queryBuilder := psql.Insert("sync_watermark").
		Columns("id", "since").
		Values(1, since).
		Suffix("ON CONFLICT(id) DO UPDATE SET").
		Suffix("since = excluded.since")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for SetSyncWatermark: %w", err)
	}

	_, err = db.Exec(sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to set sync watermark: %w", err)
	}
	return nil
}

// ClearSyncState wipes the session cache and the watermark (used on purge).
func ClearSyncState(db *sql.DB) error {
	if _, err := db.Exec("DELETE FROM sync_sessions"); err != nil {
		return fmt.Errorf("failed to clear sync sessions: %w", err)
	}
	if _, err := db.Exec("DELETE FROM sync_watermark"); err != nil {
		return fmt.Errorf("failed to clear sync watermark: %w", err)
	}
	return nil
}
