package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gradworks/thesis-flow-api/internal/models"
)

// ThesisRepository manages persistence for thesis documents.
type ThesisRepository struct {
	col *Collection
}

// NewThesisRepository constructs a ThesisRepository.
func NewThesisRepository(db *sqlx.DB) *ThesisRepository {
	return &ThesisRepository{col: NewCollection(db, "theses")}
}

// Get fetches a thesis by id.
func (r *ThesisRepository) Get(ctx context.Context, id string) (*models.Thesis, error) {
	var thesis models.Thesis
	if err := r.col.Get(ctx, id, &thesis); err != nil {
		return nil, err
	}
	return &thesis, nil
}

// FindByStudent fetches the student's current thesis. Returns sql.ErrNoRows
// when the student has none.
func (r *ThesisRepository) FindByStudent(ctx context.Context, studentID string) (*models.Thesis, error) {
	raws, err := r.col.Where(ctx, "student", studentID)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, sql.ErrNoRows
	}
	var thesis models.Thesis
	if err := json.Unmarshal(raws[0], &thesis); err != nil {
		return nil, fmt.Errorf("decode thesis: %w", err)
	}
	return &thesis, nil
}

// Put replaces the thesis document.
func (r *ThesisRepository) Put(ctx context.Context, thesis *models.Thesis) error {
	return r.col.Put(ctx, thesis.ID, thesis)
}

// Delete removes the thesis document.
func (r *ThesisRepository) Delete(ctx context.Context, id string) error {
	return r.col.Delete(ctx, id)
}
