package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/internal/dto"
	"github.com/gradworks/thesis-flow-api/internal/events"
	"github.com/gradworks/thesis-flow-api/internal/models"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
)

// AssignmentResult summarises the team and thesis state after an assignment.
type AssignmentResult struct {
	StudentID         string              `json:"studentId"`
	Supervisor        string              `json:"supervisor,omitempty"`
	Consultant        string              `json:"consultant,omitempty"`
	Reviewer          string              `json:"reviewer,omitempty"`
	ThesisID          string              `json:"thesisId,omitempty"`
	ThesisStatus      models.ThesisStatus `json:"thesisStatus"`
	ReviewInitialized bool                `json:"reviewInitialized"`
}

// AssignmentService assigns supervisors, consultants and reviewers to a
// student and keeps the bidirectional links between the student profile, the
// staff profiles and the thesis consistent. Per role the previous holder is
// unlinked before the new holder is linked; across roles there is no ordering
// guarantee and no cross-entity transaction.
type AssignmentService struct {
	students studentStore
	staff    staffStore
	theses   thesisStore
	oplog    oplogStore
	cache    statusCache
	events   eventPublisher
	logger   *zap.Logger
}

// NewAssignmentService creates a service instance.
func NewAssignmentService(
	students studentStore,
	staff staffStore,
	theses thesisStore,
	oplog oplogStore,
	cache statusCache,
	publisher eventPublisher,
	logger *zap.Logger,
) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		students: students,
		staff:    staff,
		theses:   theses,
		oplog:    oplog,
		cache:    cache,
		events:   publisher,
		logger:   logger,
	}
}

// AssignTeam assigns the provided roles to the student. Re-assigning the id
// that already holds a role is a no-op for that role; other provided roles
// still proceed.
func (s *AssignmentService) AssignTeam(ctx context.Context, actor models.Actor, studentID string, req dto.AssignTeamRequest) (*AssignmentResult, error) {
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one of supervisorId, consultantId, reviewerId is required")
	}

	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if actor.Role != models.RoleAdmin && student.Faculty != actor.Faculty {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is outside the assigner's faculty")
	}

	thesis, err := s.theses.FindByStudent(ctx, studentID)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thesis")
	}

	requested := map[models.Role]string{
		models.RoleSupervisor: req.SupervisorID,
		models.RoleConsultant: req.ConsultantID,
		models.RoleReviewer:   req.ReviewerID,
	}

	// Resolve and validate every candidate before the first mutation so
	// validation failures never leave partial state behind.
	candidates := make(map[models.Role]*models.StaffProfile)
	for _, role := range models.ReviewingRoles() {
		id := requested[role]
		if id == "" {
			continue
		}
		candidate, err := s.resolveCandidate(ctx, role, id)
		if err != nil {
			return nil, err
		}
		if candidate.Faculty != student.Faculty {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s faculty does not match the student's faculty", role))
		}
		if actor.Role == models.RoleHOD && actor.Department != "" && candidate.Department != actor.Department {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is outside the assigner's department", role))
		}
		candidates[role] = candidate
	}

	opID := uuid.NewString()
	step := 0
	for _, role := range models.ReviewingRoles() {
		candidate, ok := candidates[role]
		if !ok {
			continue
		}
		if student.RoleHolder(role) == candidate.ID {
			continue // idempotent re-assignment
		}
		if err := s.relink(ctx, opID, &step, student, thesis, role, candidate); err != nil {
			return nil, err
		}
	}

	initialized := false
	if thesis != nil {
		if thesis.Status == models.ThesisStatusSubmitted || thesis.Status == models.ThesisStatusRevisionsRequested {
			if derived := deriveTeamStatus(thesis); derived != "" && derived != thesis.Status {
				thesis.Status = derived
				if len(thesis.ReviewIterations) == 0 {
					thesis.ReviewIterations = []models.ReviewIteration{{Iteration: 1, Status: models.IterationStatusUnderReview}}
					thesis.CurrentIteration = 1
					thesis.TotalReviewCount = 1
					initialized = true
				}
			}
		}
		thesis.UpdatedAt = time.Now().UTC()
		if err := s.theses.Put(ctx, thesis); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist thesis")
		}
		student.ThesisStatus = thesis.Status
		s.cache.Delete(ctx, statusCacheKey(thesis.ID))
	}

	student.UpdatedAt = time.Now().UTC()
	if err := s.students.Put(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist student profile")
	}

	result := &AssignmentResult{
		StudentID:         student.ID,
		Supervisor:        student.Supervisor,
		Consultant:        student.Consultant,
		Reviewer:          student.Reviewer,
		ThesisStatus:      student.ThesisStatus,
		ReviewInitialized: initialized,
	}
	if thesis != nil {
		result.ThesisID = thesis.ID
		s.events.Publish(ctx, events.Event{
			Type:      events.TypeTeamAssigned,
			ThesisID:  thesis.ID,
			StudentID: student.ID,
			Status:    thesis.Status,
		})
	}
	return result, nil
}

// LinkSupervisor performs the supervisor link/unlink/derive-status sequence on
// behalf of a student-accepted supervisor request. Faculty scoping against the
// student still applies; there is no assigner to scope by department.
func (s *AssignmentService) LinkSupervisor(ctx context.Context, studentID, supervisorID string) (*AssignmentResult, error) {
	return s.AssignTeam(ctx, models.Actor{Role: models.RoleAdmin}, studentID, dto.AssignTeamRequest{SupervisorID: supervisorID})
}

func (s *AssignmentService) resolveCandidate(ctx context.Context, role models.Role, id string) (*models.StaffProfile, error) {
	candidate, err := s.staff.Get(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", role))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff profile")
	}
	if candidate.Role != role {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s does not resolve to a %s", id, role))
	}
	return candidate, nil
}

// relink unlinks the previous holder of the role, then links the candidate.
// The ordering bounds the inconsistency window when a crash interrupts the
// sequence; the reconciliation pass repairs what remains.
func (s *AssignmentService) relink(ctx context.Context, opID string, step *int, student *models.StudentProfile, thesis *models.Thesis, role models.Role, candidate *models.StaffProfile) error {
	if prevID := student.RoleHolder(role); prevID != "" {
		prev, err := s.staff.Get(ctx, prevID)
		if err != nil && err != sql.ErrNoRows {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous role holder")
		}
		if prev != nil {
			prev.RemoveAssignedStudent(student.ID)
			if thesis != nil {
				prev.RemoveAssignedThesis(thesis.ID)
			}
			prev.UpdatedAt = time.Now().UTC()
			if err := s.staff.Put(ctx, prev); err != nil {
				return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to unlink previous role holder")
			}
			s.logStep(ctx, opID, step, "staff", prev.ID, fmt.Sprintf("unlinked %s from student %s", role, student.ID))
		}
		if thesis != nil {
			thesis.SetAssignedRole(role, "")
		}
	}

	student.SetRoleHolder(role, candidate.ID)
	candidate.AddAssignedStudent(student.ID)
	if thesis != nil {
		thesis.SetAssignedRole(role, candidate.ID)
		candidate.AddAssignedThesis(thesis.ID)
	}
	candidate.UpdatedAt = time.Now().UTC()
	if err := s.staff.Put(ctx, candidate); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to link new role holder")
	}
	s.logStep(ctx, opID, step, "staff", candidate.ID, fmt.Sprintf("linked %s to student %s", role, student.ID))
	return nil
}

func (s *AssignmentService) logStep(ctx context.Context, opID string, step *int, entity, entityID, detail string) {
	*step++
	entry := &models.OperationLog{
		Operation: "assign_team",
		Entity:    entity,
		EntityID:  entityID,
		Step:      *step,
		Detail:    fmt.Sprintf("op=%s %s", opID, detail),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.oplog.Append(ctx, entry); err != nil {
		s.logger.Warn("operation log append failed",
			zap.String("operation", "assign_team"),
			zap.String("entity_id", entityID),
			zap.Int("step", *step),
			zap.Error(err))
	}
}

// deriveTeamStatus computes the review status implied by the thesis's team
// composition. Empty means the composition does not determine a review state.
func deriveTeamStatus(t *models.Thesis) models.ThesisStatus {
	switch {
	case t.AssignedConsultant != "" && t.AssignedSupervisor != "":
		return models.ThesisStatusWithConsultant
	case t.AssignedSupervisor != "":
		return models.ThesisStatusWithSupervisor
	case t.AssignedReviewer != "":
		return models.ThesisStatusUnderReview
	}
	return ""
}
