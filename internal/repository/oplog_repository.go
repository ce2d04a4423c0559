package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gradworks/thesis-flow-api/internal/models"
)

// OplogRepository appends operation-step records for multi-entity sequences.
type OplogRepository struct {
	col *Collection
}

// NewOplogRepository constructs an OplogRepository.
func NewOplogRepository(db *sqlx.DB) *OplogRepository {
	return &OplogRepository{col: NewCollection(db, "operation_logs")}
}

// Append persists one step record, assigning it an id.
func (r *OplogRepository) Append(ctx context.Context, entry *models.OperationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return r.col.Put(ctx, entry.ID, entry)
}
