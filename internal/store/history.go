package store

import (
	"fmt"

	"github.com/zeticontents/zetisync/internal/domain"
)

type historyRow struct {
	ClientID string `db:"client_id"`
	domain.HistoryEntry
}

// ReplaceHistory swaps the cached list for clientID wholesale inside one
// transaction. Entries from a previous refresh are never merged with the
// new list.
func (db *DB) ReplaceHistory(clientID string, entries []domain.HistoryEntry) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin history replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM history WHERE client_id = ?", clientID); err != nil {
		return fmt.Errorf("failed to clear cached history: %w", err)
	}

	for _, e := range entries {
		row := historyRow{ClientID: clientID, HistoryEntry: e}
		_, err := tx.NamedExec(`INSERT INTO history (id, client_id, content, content_id, success, timestamp)
			VALUES (:id, :client_id, :content, :content_id, :success, :timestamp)`, row)
		if err != nil {
			return fmt.Errorf("failed to insert history entry %d: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// ListHistory returns the cached list for clientID, newest first.
func (db *DB) ListHistory(clientID string) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	err := db.Select(&entries, `SELECT id, content, content_id, success, timestamp
		FROM history WHERE client_id = ? ORDER BY timestamp DESC, id DESC`, clientID)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
