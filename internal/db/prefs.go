package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/welldash/internal/purge"
)

// Get implements prefs.Store.
func (db *DB) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := db.QueryRow(`SELECT value FROM preferences WHERE pref_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements prefs.Store.
func (db *DB) Set(key string, value []byte) error {
	_, err := db.Exec(`
		INSERT INTO preferences (pref_key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(pref_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, db.now().Unix())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Preference is one stored key.
type Preference struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Preferences lists the stored keys starting with prefix, ordered by key.
func (db *DB) Preferences(prefix string) ([]Preference, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := db.Query(`
		SELECT pref_key, value, updated_at FROM preferences
		WHERE pref_key LIKE ? ESCAPE '\' ORDER BY pref_key`, escaped+"%")
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	var out []Preference
	for rows.Next() {
		var (
			p       Preference
			value   []byte
			updated int64
		)
		if err := rows.Scan(&p.Key, &value, &updated); err != nil {
			return nil, err
		}
		p.Value = json.RawMessage(value)
		p.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// ExclusionChange is one recorded change of a well's excluded cycle set.
type ExclusionChange struct {
	ID        string    `json:"id"`
	WellID    string    `json:"well_id"`
	Excluded  []string  `json:"excluded"`
	ChangedAt time.Time `json:"changed_at"`
}

// RecordExclusionChange appends the new set to the change log.
func (db *DB) RecordExclusionChange(c purge.ExclusionChange) error {
	ids := c.Excluded
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT INTO exclusion_changes (change_id, well_id, excluded, changed_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), c.WellID, string(raw), db.now().UnixNano())
	if err != nil {
		return fmt.Errorf("record exclusion change: %w", err)
	}
	return nil
}

// ExclusionHistory returns up to limit changes for a well, newest first.
func (db *DB) ExclusionHistory(wellID string, limit int) ([]ExclusionChange, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT change_id, well_id, excluded, changed_at FROM exclusion_changes
		WHERE well_id = ? ORDER BY changed_at DESC, rowid DESC LIMIT ?`, wellID, limit)
	if err != nil {
		return nil, fmt.Errorf("exclusion history: %w", err)
	}
	defer rows.Close()

	var out []ExclusionChange
	for rows.Next() {
		var (
			c       ExclusionChange
			raw     string
			changed int64
		)
		if err := rows.Scan(&c.ID, &c.WellID, &raw, &changed); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &c.Excluded); err != nil {
			return nil, fmt.Errorf("decode change %s: %w", c.ID, err)
		}
		c.ChangedAt = time.Unix(0, changed).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
