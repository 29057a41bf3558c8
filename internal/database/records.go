package database

import (
	"database/sql"
	"strings"
	"time"

	"github.com/mkurosawa/kaiji/internal/event"
)

const timeLayout = time.RFC3339

// InsertRecord stores a raw record for a period. Returns false if the
// record was a duplicate (same id or URL already seen), which is how
// repeated ingestion cycles stay idempotent.
func (db *DB) InsertRecord(r event.RawRecord, periodID string) (bool, error) {
	_, err := db.conn.Exec(
		`INSERT INTO records
		(id, source_id, source_name, tier, title, url, published_at, fetched_at, tickers, excerpt, period_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SourceID, r.SourceName, string(r.Tier), r.Title, r.URL,
		r.PublishedAt.Format(timeLayout), r.FetchedAt.Format(timeLayout),
		strings.Join(r.Tickers, ","), r.Excerpt, periodID,
	)
	if err != nil {
		// Duplicate id/URL constraint
		return false, nil //nolint: nilerr
	}
	return true, nil
}

// GetRecordsForPeriod returns raw records for a period, newest first.
func (db *DB) GetRecordsForPeriod(periodID string) ([]event.RawRecord, error) {
	rows, err := db.conn.Query(
		`SELECT id, source_id, source_name, tier, title, url, published_at, fetched_at, tickers, excerpt
		FROM records WHERE period_id = ? ORDER BY published_at DESC, id`, periodID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetRecordsNeedingExcerpt returns records with no excerpt where a
// fetch has not been attempted yet.
func (db *DB) GetRecordsNeedingExcerpt(periodID string) ([]event.RawRecord, error) {
	rows, err := db.conn.Query(
		`SELECT id, source_id, source_name, tier, title, url, published_at, fetched_at, tickers, excerpt
		FROM records
		WHERE period_id = ? AND (excerpt IS NULL OR excerpt = '') AND excerpt_fetched = 0
		ORDER BY published_at DESC, id`, periodID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// UpdateRecordExcerpt stores a fetched excerpt.
func (db *DB) UpdateRecordExcerpt(id, excerpt string) error {
	_, err := db.conn.Exec(
		"UPDATE records SET excerpt = ?, excerpt_fetched = 1 WHERE id = ?", excerpt, id,
	)
	return err
}

// MarkExcerptAttempted marks that an excerpt fetch was tried.
func (db *DB) MarkExcerptAttempted(id string) error {
	_, err := db.conn.Exec(
		"UPDATE records SET excerpt_fetched = 1 WHERE id = ?", id,
	)
	return err
}

func scanRecords(rows *sql.Rows) ([]event.RawRecord, error) {
	var records []event.RawRecord
	for rows.Next() {
		var r event.RawRecord
		var tier, published, fetched string
		var tickers, excerpt sql.NullString
		if err := rows.Scan(&r.ID, &r.SourceID, &r.SourceName, &tier, &r.Title, &r.URL,
			&published, &fetched, &tickers, &excerpt); err != nil {
			return nil, err
		}
		r.Tier = event.Tier(tier)
		r.PublishedAt, _ = time.Parse(timeLayout, published)
		r.FetchedAt, _ = time.Parse(timeLayout, fetched)
		if tickers.Valid && tickers.String != "" {
			r.Tickers = strings.Split(tickers.String, ",")
		}
		if excerpt.Valid {
			r.Excerpt = excerpt.String
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
