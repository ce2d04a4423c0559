package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/internal/dto"
	"github.com/gradworks/thesis-flow-api/internal/models"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
)

// TopicService handles thesis topic proposal, approval and the student's
// response to supervisor-proposed topics.
type TopicService struct {
	students studentStore
	mail     mailer
	validate *validator.Validate
	logger   *zap.Logger
}

// NewTopicService creates a service instance.
func NewTopicService(students studentStore, mail mailer, logger *zap.Logger) *TopicService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopicService{students: students, mail: mail, validate: validator.New(), logger: logger}
}

// Propose sets or replaces the student's thesis topic. A student proposing
// their own topic awaits supervisor approval; a supervisor proposing awaits
// the student's response.
func (s *TopicService) Propose(ctx context.Context, actor models.Actor, studentID string, req dto.ProposeTopicRequest) (*models.StudentProfile, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}
	student, err := s.getStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case models.RoleStudent:
		if actor.UserID != studentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "a student may only propose their own topic")
		}
		student.TopicProposedBy = models.TopicProposedByStudent
		student.StudentTopicResponse = ""
	case models.RoleSupervisor:
		if student.Supervisor != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned supervisor may propose a topic")
		}
		student.TopicProposedBy = models.TopicProposedBySupervisor
		student.StudentTopicResponse = models.TopicResponsePending
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the student or their supervisor may propose a topic")
	}

	student.ThesisTopic = req.Topic
	student.IsTopicApproved = false
	if err := s.putStudent(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// Approve marks the student's proposed topic as approved.
func (s *TopicService) Approve(ctx context.Context, actor models.Actor, studentID string) (*models.StudentProfile, error) {
	student, err := s.getStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student.ThesisTopic == "" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student has no proposed topic")
	}
	if student.IsTopicApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "topic is already approved")
	}
	switch actor.Role {
	case models.RoleSupervisor:
		if student.Supervisor != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned supervisor may approve the topic")
		}
	case models.RoleHOD, models.RoleAdmin:
		if actor.Role == models.RoleHOD && student.Faculty != actor.Faculty {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "student is outside the approver's faculty")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role may not approve topics")
	}
	if student.TopicProposedBy == models.TopicProposedBySupervisor &&
		student.StudentTopicResponse != models.TopicResponseAccepted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student has not accepted the proposed topic")
	}

	student.IsTopicApproved = true
	if err := s.putStudent(ctx, student); err != nil {
		return nil, err
	}
	if s.mail != nil && student.Email != "" {
		s.mail.Send(ctx, student.Email, "Thesis topic approved",
			"Your thesis topic has been approved: "+student.ThesisTopic)
	}
	return student, nil
}

// Respond records the student's answer to a supervisor-proposed topic.
func (s *TopicService) Respond(ctx context.Context, actor models.Actor, studentID string, req dto.TopicResponseRequest) (*models.StudentProfile, error) {
	if actor.Role != models.RoleAdmin && actor.UserID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "a student may only respond to their own topic proposal")
	}
	student, err := s.getStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student.TopicProposedBy != models.TopicProposedBySupervisor {
		return nil, appErrors.Clone(appErrors.ErrConflict, "no supervisor-proposed topic awaits a response")
	}
	if student.StudentTopicResponse != models.TopicResponsePending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "topic proposal is already resolved")
	}

	if req.Accept {
		student.StudentTopicResponse = models.TopicResponseAccepted
	} else {
		student.StudentTopicResponse = models.TopicResponseRejected
		student.ThesisTopic = ""
		student.TopicProposedBy = ""
	}
	if err := s.putStudent(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *TopicService) getStudent(ctx context.Context, studentID string) (*models.StudentProfile, error) {
	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *TopicService) putStudent(ctx context.Context, student *models.StudentProfile) error {
	student.UpdatedAt = time.Now().UTC()
	if err := s.students.Put(ctx, student); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist student profile")
	}
	return nil
}
