package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/gradworks/thesis-flow-api/internal/models"
)

// StaffRepository manages persistence for staff profile documents.
type StaffRepository struct {
	col *Collection
}

// NewStaffRepository constructs a StaffRepository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{col: NewCollection(db, "staff_profiles")}
}

// Get fetches a staff profile by id.
func (r *StaffRepository) Get(ctx context.Context, id string) (*models.StaffProfile, error) {
	var staff models.StaffProfile
	if err := r.col.Get(ctx, id, &staff); err != nil {
		return nil, err
	}
	return &staff, nil
}

// Put replaces the staff profile document.
func (r *StaffRepository) Put(ctx context.Context, staff *models.StaffProfile) error {
	return r.col.Put(ctx, staff.ID, staff)
}
