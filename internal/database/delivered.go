package database

// The delivered table is the idempotency store the notification
// collaborator checks before alerting: the core decides whether a
// cluster is deliverable, this records which idempotency keys already
// went out.

// HasBeenDelivered reports whether an idempotency key was already
// delivered.
func (db *DB) HasBeenDelivered(key string) (bool, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM delivered WHERE key = ?", key,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkDelivered records an idempotency key as delivered. Re-marking an
// existing key is a no-op.
func (db *DB) MarkDelivered(key string) error {
	_, err := db.conn.Exec(
		"INSERT OR IGNORE INTO delivered (key) VALUES (?)", key,
	)
	return err
}
