package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/gradworks/thesis-flow-api/internal/events"
	"github.com/gradworks/thesis-flow-api/internal/models"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
)

// The fakes copy documents in and out so a service mutation only becomes
// visible through Put, mirroring the JSONB document store.

func cloneDoc[T any](src *T) *T {
	raw, err := json.Marshal(src)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		panic(err)
	}
	return out
}

type fakeStudents struct {
	items  map[string]*models.StudentProfile
	putErr error
	puts   int
}

func newFakeStudents(students ...*models.StudentProfile) *fakeStudents {
	f := &fakeStudents{items: make(map[string]*models.StudentProfile)}
	for _, st := range students {
		f.items[st.ID] = cloneDoc(st)
	}
	return f
}

func (f *fakeStudents) Get(_ context.Context, id string) (*models.StudentProfile, error) {
	st, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneDoc(st), nil
}

func (f *fakeStudents) Put(_ context.Context, student *models.StudentProfile) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	f.items[student.ID] = cloneDoc(student)
	return nil
}

func (f *fakeStudents) All(_ context.Context) ([]models.StudentProfile, error) {
	out := make([]models.StudentProfile, 0, len(f.items))
	for _, st := range f.items {
		out = append(out, *cloneDoc(st))
	}
	return out, nil
}

type fakeStaff struct {
	items  map[string]*models.StaffProfile
	putErr error
}

func newFakeStaff(members ...*models.StaffProfile) *fakeStaff {
	f := &fakeStaff{items: make(map[string]*models.StaffProfile)}
	for _, m := range members {
		f.items[m.ID] = cloneDoc(m)
	}
	return f
}

func (f *fakeStaff) Get(_ context.Context, id string) (*models.StaffProfile, error) {
	m, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneDoc(m), nil
}

func (f *fakeStaff) Put(_ context.Context, staff *models.StaffProfile) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.items[staff.ID] = cloneDoc(staff)
	return nil
}

type fakeTheses struct {
	items   map[string]*models.Thesis
	putErr  error
	deleted []string
}

func newFakeTheses(theses ...*models.Thesis) *fakeTheses {
	f := &fakeTheses{items: make(map[string]*models.Thesis)}
	for _, th := range theses {
		f.items[th.ID] = cloneDoc(th)
	}
	return f
}

func (f *fakeTheses) Get(_ context.Context, id string) (*models.Thesis, error) {
	th, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneDoc(th), nil
}

func (f *fakeTheses) FindByStudent(_ context.Context, studentID string) (*models.Thesis, error) {
	for _, th := range f.items {
		if th.Student == studentID {
			return cloneDoc(th), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTheses) Put(_ context.Context, thesis *models.Thesis) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.items[thesis.ID] = cloneDoc(thesis)
	return nil
}

func (f *fakeTheses) Delete(_ context.Context, id string) error {
	delete(f.items, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeRequests struct {
	items map[string]*models.SupervisorRequest
}

func newFakeRequests(requests ...*models.SupervisorRequest) *fakeRequests {
	f := &fakeRequests{items: make(map[string]*models.SupervisorRequest)}
	for _, r := range requests {
		f.items[r.ID] = cloneDoc(r)
	}
	return f
}

func (f *fakeRequests) Get(_ context.Context, id string) (*models.SupervisorRequest, error) {
	r, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneDoc(r), nil
}

func (f *fakeRequests) Put(_ context.Context, req *models.SupervisorRequest) error {
	f.items[req.ID] = cloneDoc(req)
	return nil
}

func (f *fakeRequests) ListByStudent(_ context.Context, studentID string) ([]models.SupervisorRequest, error) {
	var out []models.SupervisorRequest
	for _, r := range f.items {
		if r.Student == studentID {
			out = append(out, *cloneDoc(r))
		}
	}
	return out, nil
}

type fakeOplog struct {
	entries []models.OperationLog
}

func (f *fakeOplog) Append(_ context.Context, entry *models.OperationLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeOplog) byOperation(op string) []models.OperationLog {
	var out []models.OperationLog
	for _, e := range f.entries {
		if e.Operation == op {
			out = append(out, e)
		}
	}
	return out
}

type fakeCache struct {
	store   map[string][]byte
	deletes []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := f.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.store[key] = raw
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) {
	delete(f.store, key)
	f.deletes = append(f.deletes, key)
}

type fakeEvents struct {
	published []events.Event
}

func (f *fakeEvents) Publish(_ context.Context, event events.Event) {
	f.published = append(f.published, event)
}

func (f *fakeEvents) ofType(eventType string) []events.Event {
	var out []events.Event
	for _, e := range f.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

const (
	testFaculty    = "engineering"
	testDepartment = "software-engineering"
)

func studentFixture(id string) *models.StudentProfile {
	return &models.StudentProfile{
		ID:           id,
		Email:        id + "@uni.test",
		FullName:     "Student " + id,
		Faculty:      testFaculty,
		Department:   testDepartment,
		DegreeLevel:  "bachelor",
		ThesisStatus: models.ThesisStatusNotSubmitted,
	}
}

func staffFixture(id string, role models.Role) *models.StaffProfile {
	return &models.StaffProfile{
		ID:         id,
		Email:      id + "@uni.test",
		FullName:   "Staff " + id,
		Faculty:    testFaculty,
		Department: testDepartment,
		Role:       role,
	}
}

func thesisFixture(id, studentID string) *models.Thesis {
	return &models.Thesis{
		ID:                id,
		Student:           studentID,
		Title:             "Adaptive Query Planning",
		Status:            models.ThesisStatusSubmitted,
		SubmissionFileURL: "uploads/" + id + ".pdf",
	}
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	sent []sentMail
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) {
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
}
