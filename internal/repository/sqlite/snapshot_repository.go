package sqlite

import (
	"fmt"

	"firewatch/internal/model"
	"firewatch/internal/service/ai"
)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert stores a snapshot and its detections in one transaction.
func (r *SnapshotRepository) Insert(s *model.Snapshot, detections []ai.Detection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO snapshots (filename, source, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?)
	`, s.Filename, s.Source, s.Timestamp, s.FilePath, s.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if len(detections) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO snapshot_detections (snapshot_id, label, score, x, y, width, height)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return 0, fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, d := range detections {
			if _, err := stmt.Exec(id, d.Label, d.Score, d.Box.X, d.Box.Y, d.Box.W, d.Box.H); err != nil {
				return 0, fmt.Errorf("failed to insert snapshot detection: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	s.ID = id
	return id, nil
}

// GetAll returns snapshots newest first; limit <= 0 means no limit.
func (r *SnapshotRepository) GetAll(limit int) ([]model.Snapshot, error) {
	return r.list(`ORDER BY timestamp DESC, id DESC`, limit)
}

func (r *SnapshotRepository) Oldest(limit int) ([]model.Snapshot, error) {
	return r.list(`ORDER BY timestamp ASC, id ASC`, limit)
}

func (r *SnapshotRepository) list(order string, limit int) ([]model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT id, filename, source, timestamp, filepath, filesize FROM snapshots ` + order
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []model.Snapshot
	for rows.Next() {
		var s model.Snapshot
		if err := rows.Scan(&s.ID, &s.Filename, &s.Source, &s.Timestamp, &s.FilePath, &s.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// GetLabels returns the distinct labels recorded for a snapshot.
func (r *SnapshotRepository) GetLabels(snapshotID int64) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT DISTINCT label FROM snapshot_detections
		WHERE snapshot_id = ? ORDER BY label
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	labels := []string{}
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// GetDirectorySize sums the recorded file sizes.
func (r *SnapshotRepository) GetDirectorySize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM snapshots`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum snapshot sizes: %w", err)
	}
	return size, nil
}

func (r *SnapshotRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshot_detections WHERE snapshot_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete snapshot detections: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshot_detections`); err != nil {
		return fmt.Errorf("failed to delete snapshot detections: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return nil
}
