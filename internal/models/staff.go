package models

import "time"

// StaffProfile is the per-staff aggregate for supervisors, consultants and
// reviewers. A thesis id lives in exactly one of AssignedTheses or
// ReviewedTheses at any time.
type StaffProfile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	Faculty    string `json:"faculty"`
	Department string `json:"department"`
	Role       Role   `json:"role"`

	AssignedStudents []string `json:"assignedStudents"`
	AssignedTheses   []string `json:"assignedTheses"`
	ReviewedTheses   []string `json:"reviewedTheses"`

	ApprovedReviews  int `json:"approvedReviews"`
	RevisionRequests int `json:"revisionRequests"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AddAssignedStudent adds the student id if not already present.
func (s *StaffProfile) AddAssignedStudent(id string) {
	s.AssignedStudents = addID(s.AssignedStudents, id)
}

// RemoveAssignedStudent drops the student id if present.
func (s *StaffProfile) RemoveAssignedStudent(id string) {
	s.AssignedStudents = removeID(s.AssignedStudents, id)
}

// AddAssignedThesis adds the thesis id to the assigned set, guaranteeing it is
// absent from the reviewed set.
func (s *StaffProfile) AddAssignedThesis(id string) {
	s.ReviewedTheses = removeID(s.ReviewedTheses, id)
	s.AssignedTheses = addID(s.AssignedTheses, id)
}

// RemoveAssignedThesis drops the thesis id from the assigned set.
func (s *StaffProfile) RemoveAssignedThesis(id string) {
	s.AssignedTheses = removeID(s.AssignedTheses, id)
}

// MarkThesisReviewed moves the thesis id from the assigned to the reviewed set.
func (s *StaffProfile) MarkThesisReviewed(id string) {
	s.AssignedTheses = removeID(s.AssignedTheses, id)
	s.ReviewedTheses = addID(s.ReviewedTheses, id)
}

// ReopenThesisReview moves the thesis id from the reviewed back to the
// assigned set.
func (s *StaffProfile) ReopenThesisReview(id string) {
	s.ReviewedTheses = removeID(s.ReviewedTheses, id)
	s.AssignedTheses = addID(s.AssignedTheses, id)
}

// UnlinkThesis drops the thesis id from both the assigned and reviewed sets.
func (s *StaffProfile) UnlinkThesis(id string) {
	s.AssignedTheses = removeID(s.AssignedTheses, id)
	s.ReviewedTheses = removeID(s.ReviewedTheses, id)
}

// HasAssignedStudent reports membership of the student id.
func (s *StaffProfile) HasAssignedStudent(id string) bool {
	return containsID(s.AssignedStudents, id)
}

func addID(set []string, id string) []string {
	if id == "" || containsID(set, id) {
		return set
	}
	return append(set, id)
}

func removeID(set []string, id string) []string {
	for i, v := range set {
		if v == id {
			return append(set[:i], set[i+1:]...)
		}
	}
	return set
}

func containsID(set []string, id string) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}
