package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gradworks/thesis-flow-api/internal/models"
)

// StudentRepository manages persistence for student profile documents.
type StudentRepository struct {
	col *Collection
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{col: NewCollection(db, "student_profiles")}
}

// Get fetches a student profile by id.
func (r *StudentRepository) Get(ctx context.Context, id string) (*models.StudentProfile, error) {
	var student models.StudentProfile
	if err := r.col.Get(ctx, id, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

// Put replaces the student profile document.
func (r *StudentRepository) Put(ctx context.Context, student *models.StudentProfile) error {
	return r.col.Put(ctx, student.ID, student)
}

// Patch merges partial fields into the student profile document.
func (r *StudentRepository) Patch(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.col.Patch(ctx, id, fields)
}

// All returns every student profile, used by the reconciliation pass.
func (r *StudentRepository) All(ctx context.Context) ([]models.StudentProfile, error) {
	raws, err := r.col.All(ctx)
	if err != nil {
		return nil, err
	}
	students := make([]models.StudentProfile, 0, len(raws))
	for _, raw := range raws {
		var student models.StudentProfile
		if err := json.Unmarshal(raw, &student); err != nil {
			return nil, fmt.Errorf("decode student profile: %w", err)
		}
		students = append(students, student)
	}
	return students, nil
}
