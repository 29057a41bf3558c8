package database

import (
	"database/sql"
	"strings"
)

// InsertDigest inserts or replaces the digest for a period.
func (db *DB) InsertDigest(periodID, tldr, bodyMarkdown string, eventCount, clusterCount int) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT OR REPLACE INTO digests
		(period_id, tldr, body_markdown, event_count, cluster_count)
		VALUES (?, ?, ?, ?, ?)`,
		periodID, tldr, bodyMarkdown, eventCount, clusterCount,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetDigest returns the digest for a period, or nil if none exists.
func (db *DB) GetDigest(periodID string) (*Digest, error) {
	row := db.conn.QueryRow(
		`SELECT id, period_id, tldr, body_markdown, event_count, cluster_count, generated_at
		FROM digests WHERE period_id = ?`, periodID,
	)

	var d Digest
	if err := row.Scan(&d.ID, &d.PeriodID, &d.TLDR, &d.BodyMarkdown,
		&d.EventCount, &d.ClusterCount, &d.GeneratedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// GetAllDigests returns all digests ordered by period_id DESC.
func (db *DB) GetAllDigests() ([]Digest, error) {
	rows, err := db.conn.Query(
		"SELECT id, period_id, tldr, body_markdown, event_count, cluster_count, generated_at FROM digests ORDER BY period_id DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var digests []Digest
	for rows.Next() {
		var d Digest
		if err := rows.Scan(&d.ID, &d.PeriodID, &d.TLDR, &d.BodyMarkdown,
			&d.EventCount, &d.ClusterCount, &d.GeneratedAt); err != nil {
			return nil, err
		}
		digests = append(digests, d)
	}
	return digests, rows.Err()
}

// InsertReport inserts or replaces a run report.
func (db *DB) InsertReport(periodID string, recordCount, clusterCount int) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT OR REPLACE INTO run_reports (period_id, record_count, cluster_count)
		VALUES (?, ?, ?)`,
		periodID, recordCount, clusterCount,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetLastRunDate returns the end date from the most recent run report.
// Returns empty string if no runs exist.
func (db *DB) GetLastRunDate() (string, error) {
	row := db.conn.QueryRow(
		"SELECT period_id FROM run_reports ORDER BY period_id DESC LIMIT 1",
	)

	var periodID string
	if err := row.Scan(&periodID); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}

	if strings.Contains(periodID, "..") {
		parts := strings.SplitN(periodID, "..", 2)
		if len(parts) == 2 {
			return parts[1], nil
		}
	}
	return periodID, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM records", &s.TotalRecords},
		{"SELECT COUNT(DISTINCT period_id) FROM records", &s.PeriodsWithRecords},
		{"SELECT COUNT(*) FROM watchlist", &s.WatchedTickers},
		{"SELECT COUNT(*) FROM reads", &s.ReadEvents},
		{"SELECT COUNT(*) FROM delivered", &s.DeliveredKeys},
		{"SELECT COUNT(*) FROM digests", &s.Digests},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
