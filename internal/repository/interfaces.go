package repository

import (
	"context"

	"firewatch/internal/model"
	"firewatch/internal/service/ai"
)

// ContactRepository defines the interface for notification recipients.
type ContactRepository interface {
	Create(c *model.Contact) (int64, error)

	GetByID(id int64) (*model.Contact, error)
	GetAll() ([]model.Contact, error)
	Count() (int, error)
	// Recipients yields the current recipient list for alert fan-out.
	Recipients(ctx context.Context) ([]model.Contact, error)

	// Delete reports false when no contact had the id.
	Delete(id int64) (bool, error)
}

// SnapshotRepository defines the interface for stored annotated frames.
type SnapshotRepository interface {
	Insert(s *model.Snapshot, detections []ai.Detection) (int64, error)

	GetAll(limit int) ([]model.Snapshot, error)
	GetLabels(snapshotID int64) ([]string, error)
	GetDirectorySize() (int64, error)
	// Oldest returns up to limit snapshots, oldest first.
	Oldest(limit int) ([]model.Snapshot, error)

	Delete(id int64) error
	DeleteAll() error
}
