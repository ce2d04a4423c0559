package models

import "time"

// TopicOrigin records who proposed the thesis topic.
type TopicOrigin string

const (
	TopicProposedByStudent    TopicOrigin = "student"
	TopicProposedBySupervisor TopicOrigin = "supervisor"
)

// TopicResponse is the student's answer to a supervisor-proposed topic.
type TopicResponse string

const (
	TopicResponsePending  TopicResponse = "pending"
	TopicResponseAccepted TopicResponse = "accepted"
	TopicResponseRejected TopicResponse = "rejected"
)

// FeedbackSnapshot mirrors the latest role feedback onto the student profile.
type FeedbackSnapshot struct {
	Comments        string       `json:"comments"`
	ReviewIteration int          `json:"reviewIteration"`
	Status          ReviewStatus `json:"status"`
	IsSigned        bool         `json:"isSigned,omitempty"`
}

// StudentProfile is the per-student aggregate. Its Supervisor/Consultant/
// Reviewer fields must always agree with the corresponding staff member's
// AssignedStudents membership.
type StudentProfile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"fullName"`
	Faculty     string `json:"faculty"`
	Department  string `json:"department,omitempty"`
	DegreeLevel string `json:"degreeLevel"`

	ThesisTopic          string         `json:"thesisTopic,omitempty"`
	IsTopicApproved      bool           `json:"isTopicApproved"`
	TopicProposedBy      TopicOrigin    `json:"topicProposedBy,omitempty"`
	StudentTopicResponse TopicResponse  `json:"studentTopicResponse,omitempty"`

	Supervisor string `json:"supervisor,omitempty"`
	Consultant string `json:"consultant,omitempty"`
	Reviewer   string `json:"reviewer,omitempty"`

	ThesisID     string       `json:"thesisId,omitempty"`
	ThesisStatus ThesisStatus `json:"thesisStatus"`

	ConsultantFeedback *FeedbackSnapshot `json:"consultantFeedback,omitempty"`
	SupervisorFeedback *FeedbackSnapshot `json:"supervisorFeedback,omitempty"`

	TotalReviewAttempts int `json:"totalReviewAttempts"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RoleHolder returns the staff id the student has for the given role.
func (s *StudentProfile) RoleHolder(role Role) string {
	switch role {
	case RoleSupervisor:
		return s.Supervisor
	case RoleConsultant:
		return s.Consultant
	case RoleReviewer:
		return s.Reviewer
	}
	return ""
}

// SetRoleHolder writes the staff id the student has for the given role.
func (s *StudentProfile) SetRoleHolder(role Role, id string) {
	switch role {
	case RoleSupervisor:
		s.Supervisor = id
	case RoleConsultant:
		s.Consultant = id
	case RoleReviewer:
		s.Reviewer = id
	}
}

// SetFeedback mirrors a role's feedback snapshot onto the profile. Reviewer
// feedback is not mirrored; the reviewer communicates through the review
// document only.
func (s *StudentProfile) SetFeedback(role Role, fb *FeedbackSnapshot) {
	switch role {
	case RoleConsultant:
		s.ConsultantFeedback = fb
	case RoleSupervisor:
		s.SupervisorFeedback = fb
	}
}
