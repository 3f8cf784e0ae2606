package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"firewatch/internal/model"
)

// ContactRepository implements repository.ContactRepository for SQLite.
type ContactRepository struct {
	db *DB
}

func NewContactRepository(db *DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Create inserts a contact and fills in its ID and creation time.
func (r *ContactRepository) Create(c *model.Contact) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	createdAt := time.Now().UTC().Truncate(time.Second)
	result, err := r.db.Conn().Exec(`
		INSERT INTO contacts (full_name, phone, email, created_at)
		VALUES (?, ?, ?, ?)
	`, c.FullName, c.Phone, c.Email, createdAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert contact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to insert contact: %w", err)
	}
	c.ID, c.CreatedAt = id, createdAt
	return id, nil
}

// GetByID returns nil without error when the contact does not exist.
func (r *ContactRepository) GetByID(id int64) (*model.Contact, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var c model.Contact
	err := r.db.Conn().QueryRow(`
		SELECT id, full_name, phone, email, created_at
		FROM contacts WHERE id = ?
	`, id).Scan(&c.ID, &c.FullName, &c.Phone, &c.Email, &c.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &c, nil
}

func (r *ContactRepository) GetAll() ([]model.Contact, error) {
	return r.Recipients(context.Background())
}

func (r *ContactRepository) Recipients(ctx context.Context) ([]model.Contact, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, full_name, phone, email, created_at
		FROM contacts ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.FullName, &c.Phone, &c.Email, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *ContactRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var n int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return n, nil
}

func (r *ContactRepository) Delete(id int64) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	res, err := r.db.Conn().Exec(`DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete contact: %w", err)
	}
	return n > 0, nil
}
