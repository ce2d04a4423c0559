package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/internal/dto"
	"github.com/gradworks/thesis-flow-api/internal/events"
	"github.com/gradworks/thesis-flow-api/internal/models"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
	"github.com/gradworks/thesis-flow-api/pkg/export"
	"github.com/gradworks/thesis-flow-api/pkg/storage"
)

type reviewRenderer interface {
	Render(doc export.ReviewDocument) ([]byte, error)
}

// ReviewResult summarises the state after a role review submission.
type ReviewResult struct {
	ThesisID        string              `json:"thesisId"`
	Role            models.Role         `json:"role"`
	ReviewStatus    models.ReviewStatus `json:"reviewStatus"`
	ThesisStatus    models.ThesisStatus `json:"thesisStatus"`
	Iteration       int                 `json:"iteration"`
	UnsignedPdfPath string              `json:"unsignedPdfPath,omitempty"`
}

// ReviewService owns the thesis status state machine: role review submissions,
// the revision/approval branching, the supervisor prechecks and the re-review
// retraction. Approvals hand an unsigned review document to the signing chain.
type ReviewService struct {
	students  studentStore
	staff     staffStore
	theses    thesisStore
	artifacts artifactStore
	cache     statusCache
	events    eventPublisher
	mail      mailer
	renderer  reviewRenderer
	logger    *zap.Logger
}

// NewReviewService creates a service instance.
func NewReviewService(
	students studentStore,
	staff staffStore,
	theses thesisStore,
	artifacts artifactStore,
	cache statusCache,
	publisher eventPublisher,
	mail mailer,
	renderer reviewRenderer,
	logger *zap.Logger,
) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		students:  students,
		staff:     staff,
		theses:    theses,
		artifacts: artifacts,
		cache:     cache,
		events:    publisher,
		mail:      mail,
		renderer:  renderer,
		logger:    logger,
	}
}

// SubmitRoleReview records one role's review into the current iteration.
// Comments without an assessment request revisions; an assessment finalises
// the role's approval and produces the unsigned review document.
func (s *ReviewService) SubmitRoleReview(ctx context.Context, actor models.Actor, thesisID string, role models.Role, req dto.SubmitReviewRequest) (*ReviewResult, error) {
	if req.Comments == "" && req.Assessment == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a review requires comments or an assessment")
	}

	thesis, staffMember, student, err := s.loadReviewContext(ctx, actor, thesisID, role)
	if err != nil {
		return nil, err
	}

	if !thesis.Status.IsActiveReview() {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("thesis is not under active review (status %s)", thesis.Status))
	}
	iteration := thesis.CurrentReview()
	if iteration == nil || iteration.Status != models.IterationStatusUnderReview {
		return nil, appErrors.Clone(appErrors.ErrConflict, "no review iteration is currently open")
	}
	if iteration.ReviewFor(role) != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s already submitted a review for iteration %d; retract it first", role, iteration.Iteration))
	}

	// Supervisor gates apply before any transition, for both branches.
	if role == models.RoleSupervisor {
		if err := s.supervisorPrechecks(thesis); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	var review *models.RoleReview

	if req.Assessment == "" {
		review = &models.RoleReview{
			Comments:        req.Comments,
			SubmittedDate:   now,
			Status:          models.ReviewStatusRevisionsRequested,
			IsFinalApproval: false,
		}
		iteration.SetReviewFor(role, review)
		iteration.Status = models.IterationStatusRevisionsRequested
		thesis.Status = models.ThesisStatusRevisionsRequested
		staffMember.RevisionRequests++
	} else {
		review = &models.RoleReview{
			Comments:        req.Comments,
			SubmittedDate:   now,
			Status:          models.ReviewStatusApproved,
			IsFinalApproval: true,
		}
		if role == models.RoleSupervisor && s.consultantSignedCurrent(thesis, iteration) {
			// The consultant and supervisor review the same content; a valid
			// signed consultant document supersedes generating a fresh one.
			dst := s.artifacts.Key(thesis.ID, string(role), storage.TierUnsigned)
			if err := s.artifacts.Copy(thesis.ConsultantSignedReviewPath, dst); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to reuse consultant-signed review document")
			}
			thesis.SetUnsignedPathFor(role, dst)
		} else {
			pdf, err := s.renderer.Render(export.ReviewDocument{
				Title:         thesis.Title,
				StudentName:   student.FullName,
				Faculty:       student.Faculty,
				DegreeLevel:   student.DegreeLevel,
				ReviewerName:  staffMember.FullName,
				ReviewerRole:  string(role),
				Iteration:     iteration.Iteration,
				Comments:      req.Comments,
				Assessment:    req.Assessment,
				SubmittedDate: now,
			})
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render review document")
			}
			key := s.artifacts.Key(thesis.ID, string(role), storage.TierUnsigned)
			if err := s.artifacts.Save(key, pdf); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store review document")
			}
			thesis.SetUnsignedPathFor(role, key)
		}
		iteration.SetReviewFor(role, review)
		staffMember.MarkThesisReviewed(thesis.ID)
		staffMember.ApprovedReviews++
		s.applyApprovalTransition(thesis, iteration, role)
	}

	student.SetFeedback(role, &models.FeedbackSnapshot{
		Comments:        req.Comments,
		ReviewIteration: iteration.Iteration,
		Status:          review.Status,
	})
	student.TotalReviewAttempts++
	student.ThesisStatus = thesis.Status

	if err := s.persistReview(ctx, thesis, staffMember, student); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, events.Event{
		Type:      events.TypeReviewSubmitted,
		ThesisID:  thesis.ID,
		StudentID: student.ID,
		Status:    thesis.Status,
		Role:      role,
	})
	s.notifyStudent(ctx, student, thesis, role, review)

	return &ReviewResult{
		ThesisID:        thesis.ID,
		Role:            role,
		ReviewStatus:    review.Status,
		ThesisStatus:    thesis.Status,
		Iteration:       iteration.Iteration,
		UnsignedPdfPath: thesis.UnsignedPathFor(role),
	}, nil
}

// ReReview retracts the role's submission in the current iteration so the
// cycle can restart without counting as a new attempt. Blocked once the HOD
// has countersigned.
func (s *ReviewService) ReReview(ctx context.Context, actor models.Actor, thesisID string, role models.Role) error {
	thesis, staffMember, student, err := s.loadReviewContext(ctx, actor, thesisID, role)
	if err != nil {
		return err
	}
	if thesis.HodSignedDate != nil {
		return appErrors.Clone(appErrors.ErrConflict, "review cannot be retracted after the head of department has signed")
	}
	iteration := thesis.CurrentReview()
	if iteration == nil || iteration.ReviewFor(role) == nil {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no %s review exists in the current iteration", role))
	}

	for _, key := range []string{thesis.UnsignedPathFor(role), thesis.SignedPathFor(role)} {
		if key == "" {
			continue
		}
		if err := s.artifacts.Delete(key); err != nil {
			s.logger.Warn("superseded artifact cleanup failed",
				zap.String("thesis_id", thesis.ID),
				zap.String("key", key),
				zap.Error(err))
		}
	}
	thesis.SetUnsignedPathFor(role, "")
	thesis.SetSignedPathFor(role, "")
	iteration.SetReviewFor(role, nil)
	iteration.Status = models.IterationStatusUnderReview
	thesis.Status = preApprovalStatus(role)
	staffMember.ReopenThesisReview(thesis.ID)
	student.SetFeedback(role, nil)
	student.ThesisStatus = thesis.Status

	if err := s.persistReview(ctx, thesis, staffMember, student); err != nil {
		return err
	}
	s.events.Publish(ctx, events.Event{
		Type:      events.TypeStatusChanged,
		ThesisID:  thesis.ID,
		StudentID: student.ID,
		Status:    thesis.Status,
		Role:      role,
	})
	return nil
}

func (s *ReviewService) loadReviewContext(ctx context.Context, actor models.Actor, thesisID string, role models.Role) (*models.Thesis, *models.StaffProfile, *models.StudentProfile, error) {
	thesis, err := s.theses.Get(ctx, thesisID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "thesis not found")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thesis")
	}
	holderID := thesis.AssignedRoleID(role)
	if holderID == "" {
		return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("thesis has no assigned %s", role))
	}
	if actor.Role != models.RoleAdmin && actor.UserID != holderID {
		return nil, nil, nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("only the assigned %s may act on this review", role))
	}
	staffMember, err := s.staff.Get(ctx, holderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("assigned %s not found", role))
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff profile")
	}
	student, err := s.students.Get(ctx, thesis.Student)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "thesis owner not found")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return thesis, staffMember, student, nil
}

func (s *ReviewService) supervisorPrechecks(thesis *models.Thesis) error {
	pc := thesis.Plagiarism
	if !pc.IsChecked || !pc.IsApproved || pc.CheckedFileURL == "" {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrPrecheckFailed, "plagiarism check is not satisfied"),
			map[string]interface{}{
				"isChecked":       pc.IsChecked,
				"isApproved":      pc.IsApproved,
				"similarityScore": pc.SimilarityScore,
				"threshold":       models.SimilarityThreshold,
				"checkedFileUrl":  pc.CheckedFileURL != "",
				"requiredAction":  "submit the thesis for plagiarism checking and record an approved result",
			})
	}
	if thesis.SubmissionFileURL == "" || !thesis.IsStudentSigned {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrPrecheckFailed, "student submission is not counter-signed"),
			map[string]interface{}{
				"submissionPresent": thesis.SubmissionFileURL != "",
				"isStudentSigned":   thesis.IsStudentSigned,
				"requiredAction":    "await_student_signature",
			})
	}
	return nil
}

func (s *ReviewService) consultantSignedCurrent(thesis *models.Thesis, iteration *models.ReviewIteration) bool {
	cr := iteration.ConsultantReview
	return cr != nil && cr.IsFinalApproval && cr.Status == models.ReviewStatusSigned &&
		thesis.ConsultantSignedReviewPath != ""
}

// applyApprovalTransition advances the thesis status after a final approval.
func (s *ReviewService) applyApprovalTransition(thesis *models.Thesis, iteration *models.ReviewIteration, role models.Role) {
	switch role {
	case models.RoleConsultant:
		thesis.Status = models.ThesisStatusWithSupervisor
	case models.RoleSupervisor:
		if thesis.AssignedReviewer != "" {
			thesis.Status = models.ThesisStatusUnderReview
		}
	case models.RoleReviewer:
		if thesis.AssignedSupervisor == "" && thesis.AssignedConsultant == "" {
			// Reviewer-only track has no countersigning chain.
			thesis.Status = models.ThesisStatusEvaluated
			iteration.Status = models.IterationStatusCompleted
		}
	}
}

func (s *ReviewService) persistReview(ctx context.Context, thesis *models.Thesis, staffMember *models.StaffProfile, student *models.StudentProfile) error {
	now := time.Now().UTC()
	thesis.UpdatedAt = now
	if err := s.theses.Put(ctx, thesis); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist thesis")
	}
	staffMember.UpdatedAt = now
	if err := s.staff.Put(ctx, staffMember); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist staff profile")
	}
	student.UpdatedAt = now
	if err := s.students.Put(ctx, student); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist student profile")
	}
	s.cache.Delete(ctx, statusCacheKey(thesis.ID))
	return nil
}

func (s *ReviewService) notifyStudent(ctx context.Context, student *models.StudentProfile, thesis *models.Thesis, role models.Role, review *models.RoleReview) {
	if s.mail == nil || student.Email == "" {
		return
	}
	subject := fmt.Sprintf("Thesis review update: %s", thesis.Title)
	var body string
	if review.Status == models.ReviewStatusRevisionsRequested {
		body = fmt.Sprintf("Your %s has requested revisions:\n\n%s", role, review.Comments)
	} else {
		body = fmt.Sprintf("Your %s has approved the thesis. Current status: %s.", role, thesis.Status)
	}
	s.mail.Send(ctx, student.Email, subject, body)
}

// preApprovalStatus is the status a role's approval departed from.
func preApprovalStatus(role models.Role) models.ThesisStatus {
	switch role {
	case models.RoleConsultant:
		return models.ThesisStatusWithConsultant
	case models.RoleSupervisor:
		return models.ThesisStatusWithSupervisor
	}
	return models.ThesisStatusUnderReview
}
