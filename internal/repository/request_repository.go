package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gradworks/thesis-flow-api/internal/models"
)

// RequestRepository manages persistence for supervisor request documents.
type RequestRepository struct {
	col *Collection
}

// NewRequestRepository constructs a RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{col: NewCollection(db, "supervisor_requests")}
}

// Get fetches a request by id.
func (r *RequestRepository) Get(ctx context.Context, id string) (*models.SupervisorRequest, error) {
	var req models.SupervisorRequest
	if err := r.col.Get(ctx, id, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Put replaces the request document.
func (r *RequestRepository) Put(ctx context.Context, req *models.SupervisorRequest) error {
	return r.col.Put(ctx, req.ID, req)
}

// ListByStudent returns every request the student has created.
func (r *RequestRepository) ListByStudent(ctx context.Context, studentID string) ([]models.SupervisorRequest, error) {
	raws, err := r.col.Where(ctx, "student", studentID)
	if err != nil {
		return nil, err
	}
	requests := make([]models.SupervisorRequest, 0, len(raws))
	for _, raw := range raws {
		var req models.SupervisorRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decode supervisor request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, nil
}
