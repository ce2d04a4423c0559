package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/internal/dto"
	"github.com/gradworks/thesis-flow-api/internal/events"
	"github.com/gradworks/thesis-flow-api/internal/models"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
)

const statusCacheTTL = 5 * time.Minute

// StatusSnapshot is the cached read model for a thesis's workflow position.
type StatusSnapshot struct {
	ThesisID         string                 `json:"thesisId"`
	Status           models.ThesisStatus    `json:"status"`
	CurrentIteration int                    `json:"currentIteration"`
	TotalReviewCount int                    `json:"totalReviewCount"`
	IsStudentSigned  bool                   `json:"isStudentSigned"`
	Plagiarism       models.PlagiarismCheck `json:"plagiarismCheck"`
	HodSignedDate    *time.Time             `json:"hodSignedDate,omitempty"`
	DeanSignedDate   *time.Time             `json:"deanSignedDate,omitempty"`
}

// ThesisService owns the thesis document lifecycle around the review state
// machine: submission, student counter-signature, resubmission after a
// revision request, and deletion with cascading cleanup.
type ThesisService struct {
	students  studentStore
	staff     staffStore
	theses    thesisStore
	artifacts artifactStore
	oplog     oplogStore
	cache     statusCache
	events    eventPublisher
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewThesisService creates a service instance.
func NewThesisService(
	students studentStore,
	staff staffStore,
	theses thesisStore,
	artifacts artifactStore,
	oplog oplogStore,
	cache statusCache,
	publisher eventPublisher,
	logger *zap.Logger,
) *ThesisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThesisService{
		students:  students,
		staff:     staff,
		theses:    theses,
		artifacts: artifacts,
		oplog:     oplog,
		cache:     cache,
		events:    publisher,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Submit creates the thesis document for the student, mirrors the current
// team onto it and into each staff member's assigned set.
func (s *ThesisService) Submit(ctx context.Context, actor models.Actor, req dto.SubmitThesisRequest) (*models.Thesis, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	student, err := s.students.Get(ctx, actor.UserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.ThesisID != "" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a thesis")
	}
	if !student.IsTopicApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "thesis topic is not approved")
	}

	now := time.Now().UTC()
	thesis := &models.Thesis{
		ID:                 uuid.NewString(),
		Student:            student.ID,
		Title:              req.Title,
		Status:             models.ThesisStatusSubmitted,
		SubmissionFileURL:  req.FileURL,
		AssignedSupervisor: student.Supervisor,
		AssignedConsultant: student.Consultant,
		AssignedReviewer:   student.Reviewer,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if derived := deriveTeamStatus(thesis); derived != "" {
		thesis.Status = derived
		thesis.ReviewIterations = []models.ReviewIteration{{Iteration: 1, Status: models.IterationStatusUnderReview}}
		thesis.CurrentIteration = 1
		thesis.TotalReviewCount = 1
	}

	if err := s.theses.Put(ctx, thesis); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist thesis")
	}
	s.linkTeamTheses(ctx, thesis, student)

	student.ThesisID = thesis.ID
	student.ThesisStatus = thesis.Status
	student.UpdatedAt = now
	if err := s.students.Put(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist student profile")
	}

	s.events.Publish(ctx, events.Event{
		Type:      events.TypeStatusChanged,
		ThesisID:  thesis.ID,
		StudentID: student.ID,
		Status:    thesis.Status,
	})
	return thesis, nil
}

// CounterSign records the student's signature over their own submission,
// required before a supervisor final approval.
func (s *ThesisService) CounterSign(ctx context.Context, actor models.Actor, thesisID string) (*models.Thesis, error) {
	thesis, err := s.getOwnedThesis(ctx, actor, thesisID)
	if err != nil {
		return nil, err
	}
	if thesis.SubmissionFileURL == "" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "thesis has no submission to sign")
	}
	if thesis.IsStudentSigned {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission is already counter-signed")
	}
	now := time.Now().UTC()
	thesis.IsStudentSigned = true
	thesis.StudentSignedDate = &now
	thesis.UpdatedAt = now
	if err := s.theses.Put(ctx, thesis); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist thesis")
	}
	s.cache.Delete(ctx, statusCacheKey(thesis.ID))
	return thesis, nil
}

// Resubmit uploads a revised submission after a revision request, closing the
// current iteration and opening the next one.
func (s *ThesisService) Resubmit(ctx context.Context, actor models.Actor, thesisID string, req dto.ResubmitThesisRequest) (*models.Thesis, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resubmission payload")
	}
	thesis, err := s.getOwnedThesis(ctx, actor, thesisID)
	if err != nil {
		return nil, err
	}
	if thesis.Status != models.ThesisStatusRevisionsRequested {
		return nil, appErrors.Clone(appErrors.ErrConflict, "thesis has no open revision request")
	}

	if current := thesis.CurrentReview(); current != nil {
		current.Status = models.IterationStatusCompleted
	}
	next := len(thesis.ReviewIterations) + 1
	thesis.ReviewIterations = append(thesis.ReviewIterations, models.ReviewIteration{
		Iteration: next,
		Status:    models.IterationStatusUnderReview,
	})
	thesis.CurrentIteration = next
	thesis.TotalReviewCount++

	thesis.SubmissionFileURL = req.FileURL
	thesis.IsStudentSigned = false
	thesis.StudentSignedDate = nil
	thesis.Plagiarism = models.PlagiarismCheck{}

	if derived := deriveTeamStatus(thesis); derived != "" {
		thesis.Status = derived
	} else {
		thesis.Status = models.ThesisStatusSubmitted
	}
	thesis.UpdatedAt = time.Now().UTC()
	if err := s.theses.Put(ctx, thesis); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist thesis")
	}
	s.cache.Delete(ctx, statusCacheKey(thesis.ID))
	s.mirrorStatus(ctx, thesis)
	s.events.Publish(ctx, events.Event{
		Type:      events.TypeStatusChanged,
		ThesisID:  thesis.ID,
		StudentID: thesis.Student,
		Status:    thesis.Status,
	})
	return thesis, nil
}

// Delete removes the thesis with cascading cleanup: every stored artifact,
// every staff link and the student's thesis fields.
func (s *ThesisService) Delete(ctx context.Context, actor models.Actor, thesisID string) error {
	thesis, err := s.getOwnedThesis(ctx, actor, thesisID)
	if err != nil {
		return err
	}

	step := 0
	for _, key := range []string{
		thesis.ReviewPdfConsultant, thesis.ReviewPdfSupervisor, thesis.ReviewPdfReviewer,
		thesis.ConsultantSignedReviewPath, thesis.SupervisorSignedReviewPath, thesis.ReviewerSignedReviewPath,
		thesis.HodSignedSupervisorPath, thesis.HodSignedReviewerPath,
		thesis.DeanSignedSupervisorPath, thesis.DeanSignedReviewerPath,
	} {
		if key == "" {
			continue
		}
		if err := s.artifacts.Delete(key); err != nil {
			s.logger.Warn("artifact cleanup failed",
				zap.String("thesis_id", thesis.ID),
				zap.String("key", key),
				zap.Error(err))
		}
	}

	for _, staffID := range []string{thesis.AssignedSupervisor, thesis.AssignedConsultant, thesis.AssignedReviewer} {
		if staffID == "" {
			continue
		}
		member, err := s.staff.Get(ctx, staffID)
		if err != nil {
			s.logger.Warn("staff unlink failed", zap.String("staff_id", staffID), zap.Error(err))
			continue
		}
		member.UnlinkThesis(thesis.ID)
		member.UpdatedAt = time.Now().UTC()
		if err := s.staff.Put(ctx, member); err != nil {
			s.logger.Warn("staff unlink failed", zap.String("staff_id", staffID), zap.Error(err))
			continue
		}
		s.logDeleteStep(ctx, thesis.ID, &step, "unlinked staff "+staffID)
	}

	student, err := s.students.Get(ctx, thesis.Student)
	if err == nil {
		student.ThesisID = ""
		student.ThesisStatus = models.ThesisStatusNotSubmitted
		student.ConsultantFeedback = nil
		student.SupervisorFeedback = nil
		student.TotalReviewAttempts = 0
		student.UpdatedAt = time.Now().UTC()
		if err := s.students.Put(ctx, student); err != nil {
			s.logger.Warn("student reset failed", zap.String("student_id", student.ID), zap.Error(err))
		} else {
			s.logDeleteStep(ctx, thesis.ID, &step, "reset student "+student.ID)
		}
	}

	if err := s.theses.Delete(ctx, thesis.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete thesis")
	}
	s.cache.Delete(ctx, statusCacheKey(thesis.ID))
	s.events.Publish(ctx, events.Event{
		Type:      events.TypeStatusChanged,
		ThesisID:  thesis.ID,
		StudentID: thesis.Student,
		Status:    models.ThesisStatusNotSubmitted,
	})
	return nil
}

// Status returns the cached workflow snapshot, reading through to the store
// on a miss.
func (s *ThesisService) Status(ctx context.Context, thesisID string) (*StatusSnapshot, error) {
	var snapshot StatusSnapshot
	if err := s.cache.Get(ctx, statusCacheKey(thesisID), &snapshot); err == nil {
		return &snapshot, nil
	}

	thesis, err := s.theses.Get(ctx, thesisID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thesis not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thesis")
	}
	snapshot = StatusSnapshot{
		ThesisID:         thesis.ID,
		Status:           thesis.Status,
		CurrentIteration: thesis.CurrentIteration,
		TotalReviewCount: thesis.TotalReviewCount,
		IsStudentSigned:  thesis.IsStudentSigned,
		Plagiarism:       thesis.Plagiarism,
		HodSignedDate:    thesis.HodSignedDate,
		DeanSignedDate:   thesis.DeanSignedDate,
	}
	if err := s.cache.Set(ctx, statusCacheKey(thesisID), snapshot, statusCacheTTL); err != nil {
		s.logger.Debug("status cache write failed", zap.String("thesis_id", thesisID), zap.Error(err))
	}
	return &snapshot, nil
}

func (s *ThesisService) getOwnedThesis(ctx context.Context, actor models.Actor, thesisID string) (*models.Thesis, error) {
	thesis, err := s.theses.Get(ctx, thesisID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thesis not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thesis")
	}
	if actor.Role != models.RoleAdmin && thesis.Student != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "thesis belongs to another student")
	}
	return thesis, nil
}

func (s *ThesisService) linkTeamTheses(ctx context.Context, thesis *models.Thesis, student *models.StudentProfile) {
	for _, staffID := range []string{thesis.AssignedSupervisor, thesis.AssignedConsultant, thesis.AssignedReviewer} {
		if staffID == "" {
			continue
		}
		member, err := s.staff.Get(ctx, staffID)
		if err != nil {
			s.logger.Warn("staff thesis link failed", zap.String("staff_id", staffID), zap.Error(err))
			continue
		}
		member.AddAssignedStudent(student.ID)
		member.AddAssignedThesis(thesis.ID)
		member.UpdatedAt = time.Now().UTC()
		if err := s.staff.Put(ctx, member); err != nil {
			s.logger.Warn("staff thesis link failed", zap.String("staff_id", staffID), zap.Error(err))
		}
	}
}

func (s *ThesisService) mirrorStatus(ctx context.Context, thesis *models.Thesis) {
	student, err := s.students.Get(ctx, thesis.Student)
	if err != nil {
		s.logger.Warn("student status mirror failed", zap.String("thesis_id", thesis.ID), zap.Error(err))
		return
	}
	student.ThesisStatus = thesis.Status
	student.UpdatedAt = time.Now().UTC()
	if err := s.students.Put(ctx, student); err != nil {
		s.logger.Warn("student status mirror failed", zap.String("thesis_id", thesis.ID), zap.Error(err))
	}
}

func (s *ThesisService) logDeleteStep(ctx context.Context, thesisID string, step *int, detail string) {
	*step++
	entry := &models.OperationLog{
		Operation: "delete_thesis",
		Entity:    "thesis",
		EntityID:  thesisID,
		Step:      *step,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.oplog.Append(ctx, entry); err != nil {
		s.logger.Warn("operation log append failed", zap.String("thesis_id", thesisID), zap.Error(err))
	}
}
