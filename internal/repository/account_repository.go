package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gradworks/thesis-flow-api/internal/models"
)

// AccountRepository manages persistence for account documents.
type AccountRepository struct {
	col *Collection
}

// NewAccountRepository constructs an AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{col: NewCollection(db, "accounts")}
}

// Get fetches an account by id.
func (r *AccountRepository) Get(ctx context.Context, id string) (*models.AccountDoc, error) {
	var account models.AccountDoc
	if err := r.col.Get(ctx, id, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByEmail fetches an account by email. Returns sql.ErrNoRows when absent.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.AccountDoc, error) {
	raws, err := r.col.Where(ctx, "email", email)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, sql.ErrNoRows
	}
	var account models.AccountDoc
	if err := json.Unmarshal(raws[0], &account); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &account, nil
}

// Put replaces the account document.
func (r *AccountRepository) Put(ctx context.Context, account *models.AccountDoc) error {
	return r.col.Put(ctx, account.ID, account)
}
