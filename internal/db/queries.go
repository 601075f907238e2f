package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hpungsan/keepsake/internal/capsule"
	"github.com/hpungsan/keepsake/internal/store"
)

// SaveSnapshot replaces the file's contents with snap in a single transaction.
func SaveSnapshot(db *sql.DB, snap store.Snapshot) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"items", "capsules", "contributors", "merges"} {
		if _, err = tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, c := range snap.Contributors {
		if err = insertContributor(tx, c); err != nil {
			return err
		}
	}
	for _, c := range snap.Capsules {
		if err = insertCapsule(tx, c); err != nil {
			return err
		}
	}
	for _, it := range snap.Items {
		if err = insertItem(tx, it); err != nil {
			return err
		}
	}
	for _, m := range snap.Merges {
		if err = insertMerge(tx, m); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func insertContributor(tx *sql.Tx, c capsule.Contributor) error {
	ids, err := marshalIDs(c.CapsuleIDs)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT INTO contributors (id, name, email, capsule_ids_json) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, ids)
	if err != nil {
		return fmt.Errorf("failed to insert contributor %d: %w", c.ID, err)
	}
	return nil
}

func insertCapsule(tx *sql.Tx, c capsule.Capsule) error {
	ids, err := marshalIDs(c.ItemIDs)
	if err != nil {
		return err
	}
	var changed sql.NullInt64
	if c.TimeChanged != nil {
		changed = sql.NullInt64{Int64: c.TimeChanged.UnixNano(), Valid: true}
	}
	_, err = tx.Exec(`
		INSERT INTO capsules (
			id, contributor_id, name, description, time_created, time_changed,
			time_open, time_until_changed, item_ids_json, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ContributorID, c.Name, c.Description, c.TimeCreated.UnixNano(), changed,
		c.TimeOpen.UnixNano(), c.TimeUntilChanged.UnixNano(), ids, c.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert capsule %d: %w", c.ID, err)
	}
	return nil
}

func insertItem(tx *sql.Tx, it capsule.Item) error {
	meta, err := json.Marshal(it.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata of item %d: %w", it.ID, err)
	}
	_, err = tx.Exec(`
		INSERT INTO items (
			id, capsule_id, type, description, size, path, metadata_json, time_added, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.CapsuleID, it.Type, it.Description, it.Size, it.Path, string(meta),
		it.TimeAdded.UnixNano(), it.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item %d: %w", it.ID, err)
	}
	return nil
}

func insertMerge(tx *sql.Tx, m capsule.MergeRecord) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode merge %s: %w", m.ID, err)
	}
	_, err = tx.Exec(`INSERT INTO merges (id, merged_at, record_json) VALUES (?, ?, ?)`,
		m.ID, m.MergedAt.UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("failed to insert merge %s: %w", m.ID, err)
	}
	return nil
}

// LoadSnapshot reads every collection back out of the file, each in id order
// (merges in insertion order).
func LoadSnapshot(db *sql.DB) (*store.Snapshot, error) {
	snap := &store.Snapshot{}

	if err := queryRows(db, `SELECT id, name, email, capsule_ids_json FROM contributors ORDER BY id`, func(rows *sql.Rows) error {
		var c capsule.Contributor
		var ids string
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &ids); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(ids), &c.CapsuleIDs); err != nil {
			return fmt.Errorf("contributor %d capsule_ids: %w", c.ID, err)
		}
		snap.Contributors = append(snap.Contributors, c)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := queryRows(db, `
		SELECT id, contributor_id, name, description, time_created, time_changed,
		       time_open, time_until_changed, item_ids_json, version
		FROM capsules ORDER BY id`, func(rows *sql.Rows) error {
		var (
			c                    capsule.Capsule
			created, open, until int64
			changed              sql.NullInt64
			ids                  string
		)
		if err := rows.Scan(&c.ID, &c.ContributorID, &c.Name, &c.Description, &created, &changed,
			&open, &until, &ids, &c.Version); err != nil {
			return err
		}
		c.TimeCreated = fromNanos(created)
		c.TimeOpen = fromNanos(open)
		c.TimeUntilChanged = fromNanos(until)
		if changed.Valid {
			t := fromNanos(changed.Int64)
			c.TimeChanged = &t
		}
		if err := json.Unmarshal([]byte(ids), &c.ItemIDs); err != nil {
			return fmt.Errorf("capsule %d item_ids: %w", c.ID, err)
		}
		snap.Capsules = append(snap.Capsules, c)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := queryRows(db, `
		SELECT id, capsule_id, type, description, size, path, metadata_json, time_added, version
		FROM items ORDER BY id`, func(rows *sql.Rows) error {
		var (
			it    capsule.Item
			meta  string
			added int64
		)
		if err := rows.Scan(&it.ID, &it.CapsuleID, &it.Type, &it.Description, &it.Size, &it.Path,
			&meta, &added, &it.Version); err != nil {
			return err
		}
		it.TimeAdded = fromNanos(added)
		if err := json.Unmarshal([]byte(meta), &it.Metadata); err != nil {
			return fmt.Errorf("item %d metadata: %w", it.ID, err)
		}
		snap.Items = append(snap.Items, it)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := queryRows(db, `SELECT record_json FROM merges ORDER BY seq`, func(rows *sql.Rows) error {
		var data string
		if err := rows.Scan(&data); err != nil {
			return err
		}
		var m capsule.MergeRecord
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return fmt.Errorf("merge record: %w", err)
		}
		snap.Merges = append(snap.Merges, m)
		return nil
	}); err != nil {
		return nil, err
	}

	return snap, nil
}

func queryRows(db *sql.DB, query string, scan func(*sql.Rows) error) error {
	rows, err := db.Query(query)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func marshalIDs(ids []uint32) (string, error) {
	if ids == nil {
		ids = []uint32{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
