package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/internal/dto"
	"github.com/gradworks/thesis-flow-api/internal/events"
	"github.com/gradworks/thesis-flow-api/internal/models"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
)

func newAssignmentFixture(t *testing.T) (*AssignmentService, *fakeStudents, *fakeStaff, *fakeTheses, *fakeOplog, *fakeCache, *fakeEvents) {
	t.Helper()
	students := newFakeStudents()
	staff := newFakeStaff()
	theses := newFakeTheses()
	oplog := &fakeOplog{}
	cache := newFakeCache()
	publisher := &fakeEvents{}
	svc := NewAssignmentService(students, staff, theses, oplog, cache, publisher, zap.NewNop())
	return svc, students, staff, theses, oplog, cache, publisher
}

func hodActor() models.Actor {
	return models.Actor{UserID: "hod-1", Role: models.RoleHOD, Faculty: testFaculty, Department: testDepartment}
}

func TestAssignTeamLinksAllRolesBidirectionally(t *testing.T) {
	svc, students, staff, theses, _, _, publisher := newAssignmentFixture(t)
	ctx := context.Background()

	student := studentFixture("stu-1")
	student.ThesisID = "th-1"
	require.NoError(t, students.Put(ctx, student))
	require.NoError(t, theses.Put(ctx, thesisFixture("th-1", "stu-1")))
	require.NoError(t, staff.Put(ctx, staffFixture("sup-1", models.RoleSupervisor)))
	require.NoError(t, staff.Put(ctx, staffFixture("con-1", models.RoleConsultant)))
	require.NoError(t, staff.Put(ctx, staffFixture("rev-1", models.RoleReviewer)))

	result, err := svc.AssignTeam(ctx, hodActor(), "stu-1", dto.AssignTeamRequest{
		SupervisorID: "sup-1",
		ConsultantID: "con-1",
		ReviewerID:   "rev-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "sup-1", result.Supervisor)
	assert.Equal(t, "con-1", result.Consultant)
	assert.Equal(t, "rev-1", result.Reviewer)
	assert.True(t, result.ReviewInitialized)

	stored, err := students.Get(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "sup-1", stored.Supervisor)
	assert.Equal(t, "con-1", stored.Consultant)
	assert.Equal(t, "rev-1", stored.Reviewer)
	assert.Equal(t, models.ThesisStatusWithConsultant, stored.ThesisStatus)

	for _, id := range []string{"sup-1", "con-1", "rev-1"} {
		member, err := staff.Get(ctx, id)
		require.NoError(t, err)
		assert.Contains(t, member.AssignedStudents, "stu-1")
		assert.Contains(t, member.AssignedTheses, "th-1")
	}

	thesis, err := theses.Get(ctx, "th-1")
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusWithConsultant, thesis.Status)
	assert.Equal(t, "sup-1", thesis.AssignedSupervisor)
	assert.Equal(t, 1, thesis.CurrentIteration)
	assert.Equal(t, 1, thesis.TotalReviewCount)
	require.Len(t, thesis.ReviewIterations, 1)
	assert.Equal(t, models.IterationStatusUnderReview, thesis.ReviewIterations[0].Status)

	require.Len(t, publisher.ofType(events.TypeTeamAssigned), 1)
}

func TestAssignTeamReplacesPreviousHolder(t *testing.T) {
	svc, students, staff, theses, _, _, _ := newAssignmentFixture(t)
	ctx := context.Background()

	prev := staffFixture("sup-old", models.RoleSupervisor)
	prev.AssignedStudents = []string{"stu-1"}
	prev.AssignedTheses = []string{"th-1"}
	require.NoError(t, staff.Put(ctx, prev))
	require.NoError(t, staff.Put(ctx, staffFixture("sup-new", models.RoleSupervisor)))

	student := studentFixture("stu-1")
	student.Supervisor = "sup-old"
	student.ThesisID = "th-1"
	require.NoError(t, students.Put(ctx, student))

	thesis := thesisFixture("th-1", "stu-1")
	thesis.AssignedSupervisor = "sup-old"
	require.NoError(t, theses.Put(ctx, thesis))

	_, err := svc.AssignTeam(ctx, hodActor(), "stu-1", dto.AssignTeamRequest{SupervisorID: "sup-new"})
	require.NoError(t, err)

	old, err := staff.Get(ctx, "sup-old")
	require.NoError(t, err)
	assert.NotContains(t, old.AssignedStudents, "stu-1")
	assert.NotContains(t, old.AssignedTheses, "th-1")

	cur, err := staff.Get(ctx, "sup-new")
	require.NoError(t, err)
	assert.Contains(t, cur.AssignedStudents, "stu-1")
	assert.Contains(t, cur.AssignedTheses, "th-1")

	stored, err := students.Get(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "sup-new", stored.Supervisor)

	updatedThesis, err := theses.Get(ctx, "th-1")
	require.NoError(t, err)
	assert.Equal(t, "sup-new", updatedThesis.AssignedSupervisor)
}

func TestAssignTeamIdempotentReassignment(t *testing.T) {
	svc, students, staff, _, oplog, _, _ := newAssignmentFixture(t)
	ctx := context.Background()

	holder := staffFixture("sup-1", models.RoleSupervisor)
	holder.AssignedStudents = []string{"stu-1"}
	require.NoError(t, staff.Put(ctx, holder))

	student := studentFixture("stu-1")
	student.Supervisor = "sup-1"
	require.NoError(t, students.Put(ctx, student))

	result, err := svc.AssignTeam(ctx, hodActor(), "stu-1", dto.AssignTeamRequest{SupervisorID: "sup-1"})
	require.NoError(t, err)
	assert.Equal(t, "sup-1", result.Supervisor)

	stored, err := staff.Get(ctx, "sup-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-1"}, stored.AssignedStudents)
	assert.Empty(t, oplog.byOperation("assign_team"))
}

func TestAssignTeamRejectsEmptyRequest(t *testing.T) {
	svc, students, _, _, _, _, _ := newAssignmentFixture(t)
	ctx := context.Background()
	require.NoError(t, students.Put(ctx, studentFixture("stu-1")))

	_, err := svc.AssignTeam(ctx, hodActor(), "stu-1", dto.AssignTeamRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignTeamValidatesBeforeAnyMutation(t *testing.T) {
	svc, students, staff, _, _, _, _ := newAssignmentFixture(t)
	ctx := context.Background()

	require.NoError(t, students.Put(ctx, studentFixture("stu-1")))
	require.NoError(t, staff.Put(ctx, staffFixture("sup-1", models.RoleSupervisor)))

	offFaculty := staffFixture("rev-1", models.RoleReviewer)
	offFaculty.Faculty = "economics"
	require.NoError(t, staff.Put(ctx, offFaculty))

	_, err := svc.AssignTeam(ctx, hodActor(), "stu-1", dto.AssignTeamRequest{
		SupervisorID: "sup-1",
		ReviewerID:   "rev-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// The valid supervisor candidate must not have been linked.
	stored, err := students.Get(ctx, "stu-1")
	require.NoError(t, err)
	assert.Empty(t, stored.Supervisor)
	sup, err := staff.Get(ctx, "sup-1")
	require.NoError(t, err)
	assert.Empty(t, sup.AssignedStudents)
}

func TestAssignTeamRejectsRoleMismatch(t *testing.T) {
	svc, students, staff, _, _, _, _ := newAssignmentFixture(t)
	ctx := context.Background()

	require.NoError(t, students.Put(ctx, studentFixture("stu-1")))
	require.NoError(t, staff.Put(ctx, staffFixture("rev-1", models.RoleReviewer)))

	_, err := svc.AssignTeam(ctx, hodActor(), "stu-1", dto.AssignTeamRequest{SupervisorID: "rev-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssignTeamScopesActorToFaculty(t *testing.T) {
	svc, students, staff, _, _, _, _ := newAssignmentFixture(t)
	ctx := context.Background()

	require.NoError(t, students.Put(ctx, studentFixture("stu-1")))
	require.NoError(t, staff.Put(ctx, staffFixture("sup-1", models.RoleSupervisor)))

	outsider := hodActor()
	outsider.Faculty = "economics"
	_, err := svc.AssignTeam(ctx, outsider, "stu-1", dto.AssignTeamRequest{SupervisorID: "sup-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignTeamScopesHodToDepartment(t *testing.T) {
	svc, students, staff, _, _, _, _ := newAssignmentFixture(t)
	ctx := context.Background()

	require.NoError(t, students.Put(ctx, studentFixture("stu-1")))
	other := staffFixture("sup-1", models.RoleSupervisor)
	other.Department = "data-science"
	require.NoError(t, staff.Put(ctx, other))

	_, err := svc.AssignTeam(ctx, hodActor(), "stu-1", dto.AssignTeamRequest{SupervisorID: "sup-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// A dean is not department scoped.
	dean := models.Actor{UserID: "dean-1", Role: models.RoleDean, Faculty: testFaculty}
	_, err = svc.AssignTeam(context.Background(), dean, "stu-1", dto.AssignTeamRequest{SupervisorID: "sup-1"})
	require.NoError(t, err)
}

func TestAssignTeamSupervisorOnlyDerivesWithSupervisor(t *testing.T) {
	svc, students, staff, theses, _, _, _ := newAssignmentFixture(t)
	ctx := context.Background()

	student := studentFixture("stu-1")
	student.ThesisID = "th-1"
	require.NoError(t, students.Put(ctx, student))
	require.NoError(t, theses.Put(ctx, thesisFixture("th-1", "stu-1")))
	require.NoError(t, staff.Put(ctx, staffFixture("sup-1", models.RoleSupervisor)))

	result, err := svc.AssignTeam(ctx, hodActor(), "stu-1", dto.AssignTeamRequest{SupervisorID: "sup-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusWithSupervisor, result.ThesisStatus)
	assert.True(t, result.ReviewInitialized)
}

func TestAssignTeamLeavesActiveReviewStatusAlone(t *testing.T) {
	svc, students, staff, theses, _, _, _ := newAssignmentFixture(t)
	ctx := context.Background()

	student := studentFixture("stu-1")
	student.ThesisID = "th-1"
	student.Supervisor = "sup-1"
	require.NoError(t, students.Put(ctx, student))

	holder := staffFixture("sup-1", models.RoleSupervisor)
	holder.AssignedStudents = []string{"stu-1"}
	require.NoError(t, staff.Put(ctx, holder))
	require.NoError(t, staff.Put(ctx, staffFixture("rev-1", models.RoleReviewer)))

	thesis := thesisFixture("th-1", "stu-1")
	thesis.Status = models.ThesisStatusWithSupervisor
	thesis.AssignedSupervisor = "sup-1"
	thesis.CurrentIteration = 1
	thesis.TotalReviewCount = 1
	thesis.ReviewIterations = []models.ReviewIteration{{Iteration: 1, Status: models.IterationStatusUnderReview}}
	require.NoError(t, theses.Put(ctx, thesis))

	result, err := svc.AssignTeam(ctx, hodActor(), "stu-1", dto.AssignTeamRequest{ReviewerID: "rev-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusWithSupervisor, result.ThesisStatus)
	assert.False(t, result.ReviewInitialized)

	stored, err := theses.Get(ctx, "th-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalReviewCount)
}

func TestAssignTeamUnknownStudent(t *testing.T) {
	svc, _, _, _, _, _, _ := newAssignmentFixture(t)

	_, err := svc.AssignTeam(context.Background(), hodActor(), "missing", dto.AssignTeamRequest{SupervisorID: "sup-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
