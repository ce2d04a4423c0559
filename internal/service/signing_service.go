package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/internal/events"
	"github.com/gradworks/thesis-flow-api/internal/models"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
	"github.com/gradworks/thesis-flow-api/pkg/storage"
)

// SignedPair carries the two dean-countersigned documents.
type SignedPair struct {
	Supervisor *os.File
	Reviewer   *os.File
}

// SigningService orchestrates the chain of custody for the review documents:
// unsigned, party-signed, HOD-signed, dean-signed. The thesis record is
// updated only after the file operation succeeds, and the HOD/dean tiers are
// all-or-nothing per pair.
type SigningService struct {
	students  studentStore
	staff     staffStore
	theses    thesisStore
	artifacts artifactStore
	oplog     oplogStore
	cache     statusCache
	events    eventPublisher
	logger    *zap.Logger
}

// NewSigningService creates a service instance.
func NewSigningService(
	students studentStore,
	staff staffStore,
	theses thesisStore,
	artifacts artifactStore,
	oplog oplogStore,
	cache statusCache,
	publisher eventPublisher,
	logger *zap.Logger,
) *SigningService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SigningService{
		students:  students,
		staff:     staff,
		theses:    theses,
		artifacts: artifacts,
		oplog:     oplog,
		cache:     cache,
		events:    publisher,
		logger:    logger,
	}
}

// UploadPartySigned stores the reviewing party's own signed copy of their
// review document and marks the iteration's role review as signed.
func (s *SigningService) UploadPartySigned(ctx context.Context, actor models.Actor, thesisID string, role models.Role, file io.Reader) error {
	if file == nil {
		return appErrors.Clone(appErrors.ErrValidation, "a signed document file is required")
	}
	thesis, err := s.getThesis(ctx, thesisID)
	if err != nil {
		return err
	}
	holderID := thesis.AssignedRoleID(role)
	if actor.Role != models.RoleAdmin && actor.UserID != holderID {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("only the assigned %s may upload their signed review", role))
	}
	if thesis.SignedPathFor(role) != "" {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s review is already signed", role))
	}

	unsignedKey := thesis.UnsignedPathFor(role)
	checks := map[string]interface{}{
		"unsignedDocumentExists": unsignedKey != "" && s.artifacts.Exists(unsignedKey),
		"activeReviewStatus":     thesis.Status.IsActiveReview(),
	}
	if !allSatisfied(checks) {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrPrecheckFailed, fmt.Sprintf("%s review is not ready for signing", role)), checks)
	}

	iteration := thesis.CurrentReview()
	review := iteration.ReviewFor(role)
	if review == nil || !review.IsFinalApproval {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s has no final approval to sign in the current iteration", role))
	}

	signedKey := s.artifacts.Key(thesis.ID, string(role), storage.TierPartySigned)
	if err := s.artifacts.SaveStream(signedKey, file); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store signed review document")
	}

	now := time.Now().UTC()
	thesis.SetSignedPathFor(role, signedKey)
	review.Status = models.ReviewStatusSigned
	review.SignedDate = &now

	if err := s.putThesis(ctx, thesis); err != nil {
		return err
	}
	s.markFeedbackSigned(ctx, thesis, role)
	s.events.Publish(ctx, events.Event{
		Type:     events.TypeSigningAdvanced,
		ThesisID: thesis.ID,
		Status:   thesis.Status,
		Role:     role,
	})
	return nil
}

// UploadHodSigned stores the head of department's countersigned pair and marks
// the thesis evaluated. Both files must be supplied together.
func (s *SigningService) UploadHodSigned(ctx context.Context, actor models.Actor, thesisID string, supervisorFile, reviewerFile io.Reader) error {
	if supervisorFile == nil || reviewerFile == nil {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "both the supervisor-side and reviewer-side signed files are required"),
			map[string]interface{}{
				"supervisorFile": supervisorFile != nil,
				"reviewerFile":   reviewerFile != nil,
			})
	}
	thesis, err := s.getThesis(ctx, thesisID)
	if err != nil {
		return err
	}
	if err := s.scopeToStudentFaculty(ctx, actor, thesis); err != nil {
		return err
	}

	checks := map[string]interface{}{
		"notYetEvaluated":        thesis.Status != models.ThesisStatusEvaluated,
		"supervisorSignedExists": thesis.SupervisorSignedReviewPath != "" && s.artifacts.Exists(thesis.SupervisorSignedReviewPath),
		"reviewerSignedExists":   thesis.ReviewerSignedReviewPath != "" && s.artifacts.Exists(thesis.ReviewerSignedReviewPath),
	}
	if thesis.HodSignedSupervisorPath != "" || thesis.HodSignedReviewerPath != "" {
		return appErrors.Clone(appErrors.ErrConflict, "head of department has already signed this thesis")
	}
	if !allSatisfied(checks) {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrPrecheckFailed, "thesis is not ready for head of department signing"), checks)
	}

	supKey := s.artifacts.Key(thesis.ID, string(models.RoleSupervisor), storage.TierHOD)
	revKey := s.artifacts.Key(thesis.ID, string(models.RoleReviewer), storage.TierHOD)
	if err := s.savePair(supKey, revKey, supervisorFile, reviewerFile); err != nil {
		return err
	}

	now := time.Now().UTC()
	thesis.HodSignedSupervisorPath = supKey
	thesis.HodSignedReviewerPath = revKey
	thesis.HodSignedDate = &now
	thesis.Status = models.ThesisStatusEvaluated
	if iteration := thesis.CurrentReview(); iteration != nil {
		iteration.Status = models.IterationStatusCompleted
	}

	if err := s.putThesis(ctx, thesis); err != nil {
		return err
	}
	s.logSigningSteps(ctx, "sign_hod", thesis.ID, supKey, revKey)
	s.mirrorStudentStatus(ctx, thesis)
	s.events.Publish(ctx, events.Event{
		Type:     events.TypeStatusChanged,
		ThesisID: thesis.ID,
		Status:   thesis.Status,
		Role:     models.RoleHOD,
	})
	return nil
}

// UploadDeanSigned stores the dean's final countersigned pair. On success all
// earlier tiers' artifacts are deleted and their path fields cleared; the dean
// pair is the sole authoritative record from then on.
func (s *SigningService) UploadDeanSigned(ctx context.Context, actor models.Actor, thesisID string, supervisorFile, reviewerFile io.Reader) error {
	if supervisorFile == nil || reviewerFile == nil {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "both the supervisor-side and reviewer-side signed files are required"),
			map[string]interface{}{
				"supervisorFile": supervisorFile != nil,
				"reviewerFile":   reviewerFile != nil,
			})
	}
	thesis, err := s.getThesis(ctx, thesisID)
	if err != nil {
		return err
	}
	if err := s.scopeToStudentFaculty(ctx, actor, thesis); err != nil {
		return err
	}

	if thesis.DeanSignedSupervisorPath != "" || thesis.DeanSignedReviewerPath != "" {
		return appErrors.Clone(appErrors.ErrConflict, "dean has already signed this thesis")
	}
	checks := map[string]interface{}{
		"thesisEvaluated":   thesis.Status == models.ThesisStatusEvaluated,
		"hodSupervisorFile": thesis.HodSignedSupervisorPath != "" && s.artifacts.Exists(thesis.HodSignedSupervisorPath),
		"hodReviewerFile":   thesis.HodSignedReviewerPath != "" && s.artifacts.Exists(thesis.HodSignedReviewerPath),
	}
	if !allSatisfied(checks) {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrPrecheckFailed, "thesis is not ready for dean signing"), checks)
	}

	supKey := s.artifacts.Key(thesis.ID, string(models.RoleSupervisor), storage.TierDean)
	revKey := s.artifacts.Key(thesis.ID, string(models.RoleReviewer), storage.TierDean)
	if err := s.savePair(supKey, revKey, supervisorFile, reviewerFile); err != nil {
		return err
	}

	superseded := []string{
		thesis.ReviewPdfConsultant,
		thesis.ReviewPdfSupervisor,
		thesis.ReviewPdfReviewer,
		thesis.ConsultantSignedReviewPath,
		thesis.SupervisorSignedReviewPath,
		thesis.ReviewerSignedReviewPath,
		thesis.HodSignedSupervisorPath,
		thesis.HodSignedReviewerPath,
	}

	now := time.Now().UTC()
	thesis.DeanSignedSupervisorPath = supKey
	thesis.DeanSignedReviewerPath = revKey
	thesis.DeanSignedDate = &now
	thesis.ReviewPdfConsultant = ""
	thesis.ReviewPdfSupervisor = ""
	thesis.ReviewPdfReviewer = ""
	thesis.ConsultantSignedReviewPath = ""
	thesis.SupervisorSignedReviewPath = ""
	thesis.ReviewerSignedReviewPath = ""
	thesis.HodSignedSupervisorPath = ""
	thesis.HodSignedReviewerPath = ""

	if err := s.putThesis(ctx, thesis); err != nil {
		return err
	}
	for _, key := range superseded {
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
	s.logSigningSteps(ctx, "sign_dean", thesis.ID, supKey, revKey)
	s.events.Publish(ctx, events.Event{
		Type:     events.TypeSigningAdvanced,
		ThesisID: thesis.ID,
		Status:   thesis.Status,
		Role:     models.RoleDean,
	})
	return nil
}

// GetUnsigned opens the system-generated review document for the role. The
// caller closes the file.
func (s *SigningService) GetUnsigned(ctx context.Context, thesisID string, role models.Role) (*os.File, error) {
	thesis, err := s.getThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	key := thesis.UnsignedPathFor(role)
	if key == "" || !s.artifacts.Exists(key) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no unsigned %s review document exists", role))
	}
	f, err := s.artifacts.Open(key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to open review document")
	}
	return f, nil
}

// GetFinalSigned opens the dean-countersigned pair. The caller closes both
// files.
func (s *SigningService) GetFinalSigned(ctx context.Context, thesisID string) (*SignedPair, error) {
	thesis, err := s.getThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	checks := map[string]interface{}{
		"deanSupervisorFile": thesis.DeanSignedSupervisorPath != "" && s.artifacts.Exists(thesis.DeanSignedSupervisorPath),
		"deanReviewerFile":   thesis.DeanSignedReviewerPath != "" && s.artifacts.Exists(thesis.DeanSignedReviewerPath),
	}
	if !allSatisfied(checks) {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrPrecheckFailed, "final signed documents are not available"), checks)
	}
	sup, err := s.artifacts.Open(thesis.DeanSignedSupervisorPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to open supervisor document")
	}
	rev, err := s.artifacts.Open(thesis.DeanSignedReviewerPath)
	if err != nil {
		sup.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to open reviewer document")
	}
	return &SignedPair{Supervisor: sup, Reviewer: rev}, nil
}

// savePair writes both files of a tier, undoing the first write when the
// second fails so a half-written pair never survives.
func (s *SigningService) savePair(supKey, revKey string, supervisorFile, reviewerFile io.Reader) error {
	if err := s.artifacts.SaveStream(supKey, supervisorFile); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store supervisor-side document")
	}
	if err := s.artifacts.SaveStream(revKey, reviewerFile); err != nil {
		if delErr := s.artifacts.Delete(supKey); delErr != nil {
			s.logger.Warn("pair rollback failed", zap.String("key", supKey), zap.Error(delErr))
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store reviewer-side document")
	}
	return nil
}

func (s *SigningService) getThesis(ctx context.Context, thesisID string) (*models.Thesis, error) {
	thesis, err := s.theses.Get(ctx, thesisID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thesis not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thesis")
	}
	return thesis, nil
}

func (s *SigningService) putThesis(ctx context.Context, thesis *models.Thesis) error {
	thesis.UpdatedAt = time.Now().UTC()
	if err := s.theses.Put(ctx, thesis); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist thesis")
	}
	s.cache.Delete(ctx, statusCacheKey(thesis.ID))
	return nil
}

func (s *SigningService) scopeToStudentFaculty(ctx context.Context, actor models.Actor, thesis *models.Thesis) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	student, err := s.students.Get(ctx, thesis.Student)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "thesis owner not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Faculty != actor.Faculty {
		return appErrors.Clone(appErrors.ErrForbidden, "thesis is outside the signer's faculty")
	}
	return nil
}

// mirrorStudentStatus is best effort; the reconciliation pass repairs a missed
// mirror write.
func (s *SigningService) mirrorStudentStatus(ctx context.Context, thesis *models.Thesis) {
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

func (s *SigningService) markFeedbackSigned(ctx context.Context, thesis *models.Thesis, role models.Role) {
	if role == models.RoleReviewer {
		return
	}
	student, err := s.students.Get(ctx, thesis.Student)
	if err != nil {
		s.logger.Warn("feedback signature mirror failed", zap.String("thesis_id", thesis.ID), zap.Error(err))
		return
	}
	var fb *models.FeedbackSnapshot
	switch role {
	case models.RoleConsultant:
		fb = student.ConsultantFeedback
	case models.RoleSupervisor:
		fb = student.SupervisorFeedback
	}
	if fb == nil {
		return
	}
	fb.IsSigned = true
	fb.Status = models.ReviewStatusSigned
	student.UpdatedAt = time.Now().UTC()
	if err := s.students.Put(ctx, student); err != nil {
		s.logger.Warn("feedback signature mirror failed", zap.String("thesis_id", thesis.ID), zap.Error(err))
	}
}

func (s *SigningService) logSigningSteps(ctx context.Context, operation, thesisID string, keys ...string) {
	for i, key := range keys {
		entry := &models.OperationLog{
			Operation: operation,
			Entity:    "thesis",
			EntityID:  thesisID,
			Step:      i + 1,
			Detail:    "stored " + key,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.oplog.Append(ctx, entry); err != nil {
			s.logger.Warn("operation log append failed",
				zap.String("operation", operation),
				zap.String("thesis_id", thesisID),
				zap.Error(err))
		}
	}
}

func allSatisfied(checks map[string]interface{}) bool {
	for _, v := range checks {
		if ok, isBool := v.(bool); isBool && !ok {
			return false
		}
	}
	return true
}
