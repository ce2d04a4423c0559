package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/internal/models"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
	"github.com/gradworks/thesis-flow-api/pkg/jobs"
)

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	StudentsScanned int       `json:"studentsScanned"`
	RepairsApplied  int       `json:"repairsApplied"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
}

// ReconcileService detects and repairs dangling links left behind when a
// multi-entity write sequence was interrupted. The student profile is treated
// as the authoritative side of every role link; staff sets and thesis role
// fields are brought into agreement with it.
type ReconcileService struct {
	students studentScanner
	staff    staffStore
	theses   thesisStore
	oplog    oplogStore
	logger   *zap.Logger
}

// NewReconcileService creates a service instance.
func NewReconcileService(students studentScanner, staff staffStore, theses thesisStore, oplog oplogStore, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{students: students, staff: staff, theses: theses, oplog: oplog, logger: logger}
}

// Handler adapts the pass to the background queue.
func (s *ReconcileService) Handler() jobs.Handler {
	return func(ctx context.Context, _ jobs.Job) error {
		_, err := s.Run(ctx)
		return err
	}
}

// Run scans every student profile and repairs inconsistencies.
func (s *ReconcileService) Run(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{StartedAt: time.Now().UTC()}

	students, err := s.students.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan student profiles")
	}

	for i := range students {
		student := &students[i]
		report.StudentsScanned++
		repairs, err := s.reconcileStudent(ctx, student)
		if err != nil {
			s.logger.Error("student reconciliation failed",
				zap.String("student_id", student.ID),
				zap.Error(err))
			continue
		}
		report.RepairsApplied += repairs
	}

	report.FinishedAt = time.Now().UTC()
	s.logger.Info("reconciliation pass finished",
		zap.Int("students_scanned", report.StudentsScanned),
		zap.Int("repairs_applied", report.RepairsApplied),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func (s *ReconcileService) reconcileStudent(ctx context.Context, student *models.StudentProfile) (int, error) {
	repairs := 0

	var thesis *models.Thesis
	if student.ThesisID != "" {
		t, err := s.theses.Get(ctx, student.ThesisID)
		switch {
		case err == sql.ErrNoRows:
			// Thesis was deleted but the student reset never landed.
			student.ThesisID = ""
			student.ThesisStatus = models.ThesisStatusNotSubmitted
			if err := s.putStudent(ctx, student); err != nil {
				return repairs, err
			}
			repairs++
			s.repairLogged(ctx, "student", student.ID, "cleared reference to missing thesis")
		case err != nil:
			return repairs, err
		default:
			thesis = t
		}
	}

	for _, role := range models.ReviewingRoles() {
		holderID := student.RoleHolder(role)
		if holderID == "" {
			continue
		}
		holder, err := s.staff.Get(ctx, holderID)
		if err == sql.ErrNoRows {
			student.SetRoleHolder(role, "")
			if thesis != nil {
				thesis.SetAssignedRole(role, "")
			}
			if err := s.putStudent(ctx, student); err != nil {
				return repairs, err
			}
			repairs++
			s.repairLogged(ctx, "student", student.ID, fmt.Sprintf("cleared %s link to missing staff %s", role, holderID))
			continue
		}
		if err != nil {
			return repairs, err
		}

		changed := false
		if !holder.HasAssignedStudent(student.ID) {
			holder.AddAssignedStudent(student.ID)
			changed = true
		}
		if thesis != nil && !containsThesis(holder, thesis.ID) {
			holder.AddAssignedThesis(thesis.ID)
			changed = true
		}
		if changed {
			holder.UpdatedAt = time.Now().UTC()
			if err := s.staff.Put(ctx, holder); err != nil {
				return repairs, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to repair staff profile")
			}
			repairs++
			s.repairLogged(ctx, "staff", holder.ID, fmt.Sprintf("restored %s link for student %s", role, student.ID))
		}
	}

	if thesis != nil {
		thesisChanged := false
		for _, role := range models.ReviewingRoles() {
			if thesis.AssignedRoleID(role) != student.RoleHolder(role) {
				thesis.SetAssignedRole(role, student.RoleHolder(role))
				thesisChanged = true
			}
		}
		if thesisChanged {
			thesis.UpdatedAt = time.Now().UTC()
			if err := s.theses.Put(ctx, thesis); err != nil {
				return repairs, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to repair thesis links")
			}
			repairs++
			s.repairLogged(ctx, "thesis", thesis.ID, "realigned assigned role fields with student profile")
		}
		if student.ThesisStatus != thesis.Status {
			student.ThesisStatus = thesis.Status
			if err := s.putStudent(ctx, student); err != nil {
				return repairs, err
			}
			repairs++
			s.repairLogged(ctx, "student", student.ID, fmt.Sprintf("mirrored thesis status %s", thesis.Status))
		}
	}

	return repairs, nil
}

func (s *ReconcileService) putStudent(ctx context.Context, student *models.StudentProfile) error {
	student.UpdatedAt = time.Now().UTC()
	if err := s.students.Put(ctx, student); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to repair student profile")
	}
	return nil
}

func (s *ReconcileService) repairLogged(ctx context.Context, entity, entityID, detail string) {
	s.logger.Info("reconciliation repair",
		zap.String("entity", entity),
		zap.String("entity_id", entityID),
		zap.String("detail", detail))
	entry := &models.OperationLog{
		Operation: "reconcile",
		Entity:    entity,
		EntityID:  entityID,
		Step:      1,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.oplog.Append(ctx, entry); err != nil {
		s.logger.Warn("operation log append failed", zap.String("entity_id", entityID), zap.Error(err))
	}
}

func containsThesis(staff *models.StaffProfile, thesisID string) bool {
	for _, id := range staff.AssignedTheses {
		if id == thesisID {
			return true
		}
	}
	for _, id := range staff.ReviewedTheses {
		if id == thesisID {
			return true
		}
	}
	return false
}
