package handler

import (
	"context"
	"database/sql"

	"github.com/gradworks/thesis-flow-api/internal/models"
)

// Minimal in-memory stores for wiring real services behind handlers.

type memAccounts struct {
	items map[string]*models.AccountDoc
}

func (m *memAccounts) Get(_ context.Context, id string) (*models.AccountDoc, error) {
	if a, ok := m.items[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*models.AccountDoc, error) {
	for _, a := range m.items {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memAccounts) Put(_ context.Context, account *models.AccountDoc) error {
	if m.items == nil {
		m.items = make(map[string]*models.AccountDoc)
	}
	m.items[account.ID] = account
	return nil
}

type memStudents struct {
	items map[string]*models.StudentProfile
}

func (m *memStudents) Get(_ context.Context, id string) (*models.StudentProfile, error) {
	if s, ok := m.items[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memStudents) Put(_ context.Context, student *models.StudentProfile) error {
	if m.items == nil {
		m.items = make(map[string]*models.StudentProfile)
	}
	m.items[student.ID] = student
	return nil
}

type memStaff struct {
	items map[string]*models.StaffProfile
}

func (m *memStaff) Get(_ context.Context, id string) (*models.StaffProfile, error) {
	if s, ok := m.items[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memStaff) Put(_ context.Context, staff *models.StaffProfile) error {
	if m.items == nil {
		m.items = make(map[string]*models.StaffProfile)
	}
	m.items[staff.ID] = staff
	return nil
}

type memTheses struct {
	items map[string]*models.Thesis
}

func (m *memTheses) Get(_ context.Context, id string) (*models.Thesis, error) {
	if th, ok := m.items[id]; ok {
		return th, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memTheses) FindByStudent(_ context.Context, studentID string) (*models.Thesis, error) {
	for _, th := range m.items {
		if th.Student == studentID {
			return th, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memTheses) Put(_ context.Context, thesis *models.Thesis) error {
	if m.items == nil {
		m.items = make(map[string]*models.Thesis)
	}
	m.items[thesis.ID] = thesis
	return nil
}

func (m *memTheses) Delete(_ context.Context, id string) error {
	delete(m.items, id)
	return nil
}

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
