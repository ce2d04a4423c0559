package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/internal/dto"
	"github.com/gradworks/thesis-flow-api/internal/models"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
)

type supervisorLinker interface {
	LinkSupervisor(ctx context.Context, studentID, supervisorID string) (*AssignmentResult, error)
}

// RequestService manages supervisor invitations. Acceptance reuses the
// assignment link sequence; a pending request loses the race to whichever
// supervisor link commits first and is cancelled instead.
type RequestService struct {
	requests requestStore
	students studentStore
	staff    staffStore
	linker   supervisorLinker
	mail     mailer
	validate *validator.Validate
	logger   *zap.Logger
}

// NewRequestService creates a service instance.
func NewRequestService(
	requests requestStore,
	students studentStore,
	staff staffStore,
	linker supervisorLinker,
	mail mailer,
	logger *zap.Logger,
) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		requests: requests,
		students: students,
		staff:    staff,
		linker:   linker,
		mail:     mail,
		validate: validator.New(),
		logger:   logger,
	}
}

// Create registers a supervisor's invitation to supervise a student.
func (s *RequestService) Create(ctx context.Context, actor models.Actor, req dto.CreateSupervisorRequest) (*models.SupervisorRequest, error) {
	if actor.Role != models.RoleSupervisor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only supervisors may create supervision requests")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	student, err := s.students.Get(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Faculty != actor.Faculty {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is outside the supervisor's faculty")
	}
	if student.Supervisor == actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "supervisor is already assigned to this student")
	}
	pending, err := s.requests.ListByStudent(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	for _, existing := range pending {
		if existing.Status == models.RequestStatusPending && existing.Supervisor == actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a pending request from this supervisor already exists")
		}
	}

	request := &models.SupervisorRequest{
		ID:         uuid.NewString(),
		Student:    req.StudentID,
		Supervisor: actor.UserID,
		Topic:      req.Topic,
		Message:    req.Message,
		Status:     models.RequestStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.requests.Put(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist request")
	}
	if s.mail != nil && student.Email != "" {
		s.mail.Send(ctx, student.Email, "New supervision request",
			"A supervisor has offered to supervise your thesis. Review the request in your dashboard.")
	}
	return request, nil
}

// Accept resolves a pending request in the student's favour, links the
// supervisor and cancels the student's other pending requests. A student who
// was concurrently assigned a different supervisor loses the race and the
// request is cancelled.
func (s *RequestService) Accept(ctx context.Context, actor models.Actor, requestID string) (*models.SupervisorRequest, error) {
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && actor.UserID != request.Student {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the addressed student may resolve this request")
	}
	if request.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is no longer pending")
	}

	student, err := s.students.Get(ctx, request.Student)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Supervisor != "" && student.Supervisor != request.Supervisor {
		// A committed supervisor link beat this acceptance.
		s.resolve(ctx, request, models.RequestStatusCancelled, "another supervisor assignment committed first")
		return nil, appErrors.Clone(appErrors.ErrConflict, "student was assigned a different supervisor; request cancelled")
	}

	if _, err := s.linker.LinkSupervisor(ctx, request.Student, request.Supervisor); err != nil {
		return nil, err
	}
	s.resolve(ctx, request, models.RequestStatusAccepted, "")
	s.cancelOtherPending(ctx, request)
	return request, nil
}

// Decline resolves a pending request against the supervisor.
func (s *RequestService) Decline(ctx context.Context, actor models.Actor, requestID string, req dto.DeclineSupervisorRequest) (*models.SupervisorRequest, error) {
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && actor.UserID != request.Student {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the addressed student may resolve this request")
	}
	if request.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is no longer pending")
	}
	s.resolve(ctx, request, models.RequestStatusRejected, req.Reason)
	s.notifySupervisor(ctx, request, "Your supervision request was declined: "+req.Reason)
	return request, nil
}

func (s *RequestService) getRequest(ctx context.Context, requestID string) (*models.SupervisorRequest, error) {
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

func (s *RequestService) resolve(ctx context.Context, request *models.SupervisorRequest, status models.RequestStatus, reason string) {
	now := time.Now().UTC()
	request.Status = status
	request.Reason = reason
	request.ResolvedAt = &now
	if err := s.requests.Put(ctx, request); err != nil {
		s.logger.Warn("request resolution write failed",
			zap.String("request_id", request.ID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

func (s *RequestService) cancelOtherPending(ctx context.Context, accepted *models.SupervisorRequest) {
	others, err := s.requests.ListByStudent(ctx, accepted.Student)
	if err != nil {
		s.logger.Warn("pending request sweep failed", zap.String("student_id", accepted.Student), zap.Error(err))
		return
	}
	for i := range others {
		other := &others[i]
		if other.ID == accepted.ID || other.Status != models.RequestStatusPending {
			continue
		}
		s.resolve(ctx, other, models.RequestStatusCancelled, "student accepted a different supervisor")
		s.notifySupervisor(ctx, other, "Your supervision request was cancelled because the student accepted another supervisor.")
	}
}

func (s *RequestService) notifySupervisor(ctx context.Context, request *models.SupervisorRequest, body string) {
	if s.mail == nil {
		return
	}
	supervisor, err := s.staff.Get(ctx, request.Supervisor)
	if err != nil || supervisor.Email == "" {
		return
	}
	s.mail.Send(ctx, supervisor.Email, "Supervision request update", body)
}
