package database

import (
	"github.com/mkurosawa/kaiji/internal/event"
)

// LoadProfile assembles the user profile from the watchlist, category
// weight, and read tables. The profile object is the single-writer
// in-memory view the core operates on; persistence lives here.
func (db *DB) LoadProfile() (*event.UserProfile, error) {
	p := event.NewUserProfile()

	rows, err := db.conn.Query("SELECT ticker, position FROM watchlist ORDER BY ticker")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ticker string
		var position float64
		if err := rows.Scan(&ticker, &position); err != nil {
			return nil, err
		}
		p.Watchlist = append(p.Watchlist, ticker)
		if position > 0 {
			p.Positions[ticker] = position
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	wrows, err := db.conn.Query("SELECT category, weight FROM category_weights")
	if err != nil {
		return nil, err
	}
	defer wrows.Close()
	for wrows.Next() {
		var cat string
		var weight float64
		if err := wrows.Scan(&cat, &weight); err != nil {
			return nil, err
		}
		p.CategoryWeights[event.Category(cat)] = weight
	}
	if err := wrows.Err(); err != nil {
		return nil, err
	}

	rrows, err := db.conn.Query("SELECT event_id FROM reads")
	if err != nil {
		return nil, err
	}
	defer rrows.Close()
	for rrows.Next() {
		var id string
		if err := rrows.Scan(&id); err != nil {
			return nil, err
		}
		p.ReadIDs[id] = true
	}
	return p, rrows.Err()
}

// AddWatch adds or updates a watchlist entry with an optional position
// size.
func (db *DB) AddWatch(ticker string, position float64) error {
	_, err := db.conn.Exec(
		`INSERT INTO watchlist (ticker, position) VALUES (?, ?)
		ON CONFLICT(ticker) DO UPDATE SET position = excluded.position`,
		ticker, position,
	)
	return err
}

// RemoveWatch removes a ticker from the watchlist.
func (db *DB) RemoveWatch(ticker string) error {
	_, err := db.conn.Exec("DELETE FROM watchlist WHERE ticker = ?", ticker)
	return err
}

// SetCategoryWeight stores a per-category preference override.
func (db *DB) SetCategoryWeight(cat event.Category, weight float64) error {
	_, err := db.conn.Exec(
		`INSERT INTO category_weights (category, weight) VALUES (?, ?)
		ON CONFLICT(category) DO UPDATE SET weight = excluded.weight`,
		string(cat), weight,
	)
	return err
}

// MarkRead persists read event or cluster ids. Existing ids are kept;
// the read set only grows until ResetReads.
func (db *DB) MarkRead(ids ...string) error {
	for _, id := range ids {
		if _, err := db.conn.Exec(
			"INSERT OR IGNORE INTO reads (event_id) VALUES (?)", id,
		); err != nil {
			return err
		}
	}
	return nil
}

// ResetReads clears the read history (daily rollover).
func (db *DB) ResetReads() error {
	_, err := db.conn.Exec("DELETE FROM reads")
	return err
}
