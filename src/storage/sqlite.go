package storage

import (
	"database/sql"
	"fmt"
	"time"

	"finlink/src/helpers"
	"finlink/src/logger"
	"finlink/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

// HistoryDB is a local, best-effort mirror of the server-side chat history.
// It lets LoadHistory serve cached turns when the backend is unreachable.
type HistoryDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewHistoryDB(cfg *models.MConfig, log *logger.Logger) *HistoryDB {
	return &HistoryDB{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *HistoryDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewStorageError("failed to open history db", err)
	}

	if err := db.Ping(); err != nil {
		return helpers.NewStorageError("failed to ping history db", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *HistoryDB) createTables() error {
	// SQLite types: INTEGER for int64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS chat_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create chat_history: %w", err)
	}

	query = `
		CREATE INDEX IF NOT EXISTS idx_chat_history_user_ts
		ON chat_history (user_id, timestamp);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to index chat_history: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

// SaveTurns appends turns for a user inside one transaction.
func (d *HistoryDB) SaveTurns(userID string, turns []models.MChatTurn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewStorageError("failed to begin transaction", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chat_history (user_id, role, content, timestamp)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return helpers.NewStorageError("failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, turn := range turns {
		ts := turn.Timestamp
		if ts == 0 {
			ts = time.Now().Unix()
		}
		if _, err := stmt.Exec(userID, turn.Role, turn.Content, ts); err != nil {
			tx.Rollback()
			return helpers.NewStorageError("failed to insert turn", err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

// LoadTurns returns up to limit recent turns in conversation order
// (oldest of the window first).
func (d *HistoryDB) LoadTurns(userID string, limit int) ([]models.MChatTurn, error) {
	rows, err := d.DB.Query(`
		SELECT role, content, timestamp FROM (
			SELECT id, role, content, timestamp FROM chat_history
			WHERE user_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, userID, limit)
	if err != nil {
		return nil, helpers.NewStorageError("failed to query turns", err)
	}
	defer rows.Close()

	var turns []models.MChatTurn
	for rows.Next() {
		var t models.MChatTurn
		if err := rows.Scan(&t.Role, &t.Content, &t.Timestamp); err != nil {
			return nil, helpers.NewStorageError("failed to scan turn", err)
		}
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

// -----------------------------------------------------------------------------

// CleanupOldTurns removes turns older than the retention policy.
func (d *HistoryDB) CleanupOldTurns() error {
	cutoff := time.Now().AddDate(0, 0, -d.Config.Storage.RetentionDays).Unix()

	res, err := d.DB.Exec("DELETE FROM chat_history WHERE timestamp < ?", cutoff)
	if err != nil {
		return helpers.NewStorageError("failed to cleanup history", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		d.Logger.Info("Removed %d expired history turns", n)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *HistoryDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
