package models

import "time"

// ThesisStatus captures the workflow state of a thesis.
type ThesisStatus string

const (
	ThesisStatusNotSubmitted       ThesisStatus = "not_submitted"
	ThesisStatusSubmitted          ThesisStatus = "submitted"
	ThesisStatusWithConsultant     ThesisStatus = "with_consultant"
	ThesisStatusWithSupervisor     ThesisStatus = "with_supervisor"
	ThesisStatusUnderReview        ThesisStatus = "under_review"
	ThesisStatusRevisionsRequested ThesisStatus = "revisions_requested"
	ThesisStatusEvaluated          ThesisStatus = "evaluated"
)

// IsActiveReview reports whether the thesis is currently being reviewed.
func (s ThesisStatus) IsActiveReview() bool {
	switch s {
	case ThesisStatusWithConsultant, ThesisStatusWithSupervisor, ThesisStatusUnderReview:
		return true
	}
	return false
}

// ReviewStatus captures the state of a single role review.
type ReviewStatus string

const (
	ReviewStatusPending            ReviewStatus = "pending"
	ReviewStatusApproved           ReviewStatus = "approved"
	ReviewStatusRevisionsRequested ReviewStatus = "revisions_requested"
	ReviewStatusSigned             ReviewStatus = "signed"
)

// IterationStatus captures the state of one review round.
type IterationStatus string

const (
	IterationStatusUnderReview        IterationStatus = "under_review"
	IterationStatusRevisionsRequested IterationStatus = "revisions_requested"
	IterationStatusCompleted          IterationStatus = "completed"
)

// SimilarityThreshold is the single place the plagiarism approval cutoff is
// defined. A check result is approved when its score does not exceed it.
const SimilarityThreshold = 15.0

// PlagiarismCheck stores the externally produced check result for the latest
// submission. IsApproved is decided when the result is recorded; consumers
// must not re-derive it from the score.
type PlagiarismCheck struct {
	IsChecked       bool    `json:"isChecked"`
	IsApproved      bool    `json:"isApproved"`
	SimilarityScore float64 `json:"similarityScore"`
	CheckedFileURL  string  `json:"checkedFileUrl,omitempty"`
}

// RoleReview records one role's submission into an iteration.
type RoleReview struct {
	Comments        string       `json:"comments"`
	SubmittedDate   time.Time    `json:"submittedDate"`
	Status          ReviewStatus `json:"status"`
	IsFinalApproval bool         `json:"isFinalApproval"`
	SignedDate      *time.Time   `json:"signedDate,omitempty"`
}

// ReviewIteration is one full round of review-and-revision, numbered from 1.
// Iteration must always equal its 1-based position in Thesis.ReviewIterations.
type ReviewIteration struct {
	Iteration        int             `json:"iteration"`
	Status           IterationStatus `json:"status"`
	ConsultantReview *RoleReview     `json:"consultantReview,omitempty"`
	SupervisorReview *RoleReview     `json:"supervisorReview,omitempty"`
	ReviewerReview   *RoleReview     `json:"reviewerReview,omitempty"`
}

// ReviewFor returns the iteration's review slot for the given role.
func (it *ReviewIteration) ReviewFor(role Role) *RoleReview {
	switch role {
	case RoleConsultant:
		return it.ConsultantReview
	case RoleSupervisor:
		return it.SupervisorReview
	case RoleReviewer:
		return it.ReviewerReview
	}
	return nil
}

// SetReviewFor writes the iteration's review slot for the given role.
func (it *ReviewIteration) SetReviewFor(role Role, review *RoleReview) {
	switch role {
	case RoleConsultant:
		it.ConsultantReview = review
	case RoleSupervisor:
		it.SupervisorReview = review
	case RoleReviewer:
		it.ReviewerReview = review
	}
}

// Thesis is the workflow aggregate for one student's graduation thesis.
// Artifact path fields hold opaque handles into the artifact store.
type Thesis struct {
	ID      string `json:"id"`
	Student string `json:"student"`
	Title   string `json:"title"`

	Status ThesisStatus `json:"status"`

	AssignedSupervisor string `json:"assignedSupervisor,omitempty"`
	AssignedConsultant string `json:"assignedConsultant,omitempty"`
	AssignedReviewer   string `json:"assignedReviewer,omitempty"`

	Plagiarism PlagiarismCheck `json:"plagiarismCheck"`

	SubmissionFileURL string     `json:"submissionFileUrl,omitempty"`
	IsStudentSigned   bool       `json:"isStudentSigned"`
	StudentSignedDate *time.Time `json:"studentSignedDate,omitempty"`

	CurrentIteration int               `json:"currentIteration"`
	TotalReviewCount int               `json:"totalReviewCount"`
	ReviewIterations []ReviewIteration `json:"reviewIterations"`

	ReviewPdfConsultant string `json:"reviewPdfConsultant,omitempty"`
	ReviewPdfSupervisor string `json:"reviewPdfSupervisor,omitempty"`
	ReviewPdfReviewer   string `json:"reviewPdfReviewer,omitempty"`

	ConsultantSignedReviewPath string `json:"consultantSignedReviewPath,omitempty"`
	SupervisorSignedReviewPath string `json:"supervisorSignedReviewPath,omitempty"`
	ReviewerSignedReviewPath   string `json:"reviewerSignedReviewPath,omitempty"`

	HodSignedSupervisorPath string `json:"hodSignedSupervisorPath,omitempty"`
	HodSignedReviewerPath   string `json:"hodSignedReviewerPath,omitempty"`

	DeanSignedSupervisorPath string `json:"deanSignedSupervisorPath,omitempty"`
	DeanSignedReviewerPath   string `json:"deanSignedReviewerPath,omitempty"`

	HodSignedDate  *time.Time `json:"hodSignedDate,omitempty"`
	DeanSignedDate *time.Time `json:"deanSignedDate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AssignedRoleID returns the staff id holding the role on this thesis.
func (t *Thesis) AssignedRoleID(role Role) string {
	switch role {
	case RoleSupervisor:
		return t.AssignedSupervisor
	case RoleConsultant:
		return t.AssignedConsultant
	case RoleReviewer:
		return t.AssignedReviewer
	}
	return ""
}

// SetAssignedRole writes the staff id holding the role on this thesis.
func (t *Thesis) SetAssignedRole(role Role, id string) {
	switch role {
	case RoleSupervisor:
		t.AssignedSupervisor = id
	case RoleConsultant:
		t.AssignedConsultant = id
	case RoleReviewer:
		t.AssignedReviewer = id
	}
}

// CurrentReview returns the iteration indexed by CurrentIteration, nil when
// review has not started.
func (t *Thesis) CurrentReview() *ReviewIteration {
	if t.CurrentIteration < 1 || t.CurrentIteration > len(t.ReviewIterations) {
		return nil
	}
	return &t.ReviewIterations[t.CurrentIteration-1]
}

// UnsignedPathFor returns the unsigned artifact handle for the role.
func (t *Thesis) UnsignedPathFor(role Role) string {
	switch role {
	case RoleConsultant:
		return t.ReviewPdfConsultant
	case RoleSupervisor:
		return t.ReviewPdfSupervisor
	case RoleReviewer:
		return t.ReviewPdfReviewer
	}
	return ""
}

// SetUnsignedPathFor writes the unsigned artifact handle for the role.
func (t *Thesis) SetUnsignedPathFor(role Role, path string) {
	switch role {
	case RoleConsultant:
		t.ReviewPdfConsultant = path
	case RoleSupervisor:
		t.ReviewPdfSupervisor = path
	case RoleReviewer:
		t.ReviewPdfReviewer = path
	}
}

// SignedPathFor returns the party-signed artifact handle for the role.
func (t *Thesis) SignedPathFor(role Role) string {
	switch role {
	case RoleConsultant:
		return t.ConsultantSignedReviewPath
	case RoleSupervisor:
		return t.SupervisorSignedReviewPath
	case RoleReviewer:
		return t.ReviewerSignedReviewPath
	}
	return ""
}

// SetSignedPathFor writes the party-signed artifact handle for the role.
func (t *Thesis) SetSignedPathFor(role Role, path string) {
	switch role {
	case RoleConsultant:
		t.ConsultantSignedReviewPath = path
	case RoleSupervisor:
		t.SupervisorSignedReviewPath = path
	case RoleReviewer:
		t.ReviewerSignedReviewPath = path
	}
}
