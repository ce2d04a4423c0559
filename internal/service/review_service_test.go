package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/internal/dto"
	"github.com/gradworks/thesis-flow-api/internal/events"
	"github.com/gradworks/thesis-flow-api/internal/models"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
	"github.com/gradworks/thesis-flow-api/pkg/export"
	"github.com/gradworks/thesis-flow-api/pkg/storage"
)

type stubRenderer struct {
	err error
}

func (r *stubRenderer) Render(doc export.ReviewDocument) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("pdf:" + doc.Title + ":" + doc.ReviewerRole), nil
}

type reviewFixture struct {
	svc       *ReviewService
	students  *fakeStudents
	staff     *fakeStaff
	theses    *fakeTheses
	artifacts *storage.ArtifactStore
	publisher *fakeEvents
	mail      *fakeMailer
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	artifacts, err := storage.NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	f := &reviewFixture{
		students:  newFakeStudents(studentFixture("stu-1")),
		staff:     newFakeStaff(),
		theses:    newFakeTheses(),
		artifacts: artifacts,
		publisher: &fakeEvents{},
		mail:      &fakeMailer{},
	}
	f.svc = NewReviewService(f.students, f.staff, f.theses, artifacts, newFakeCache(), f.publisher, f.mail, &stubRenderer{}, zap.NewNop())
	return f
}

// reviewThesis builds a thesis with a full team, an open first iteration and
// every supervisor gate satisfied.
func reviewThesis(status models.ThesisStatus) *models.Thesis {
	th := thesisFixture("th-1", "stu-1")
	th.Status = status
	th.AssignedConsultant = "con-1"
	th.AssignedSupervisor = "sup-1"
	th.AssignedReviewer = "rev-1"
	th.CurrentIteration = 1
	th.TotalReviewCount = 1
	th.ReviewIterations = []models.ReviewIteration{{Iteration: 1, Status: models.IterationStatusUnderReview}}
	th.IsStudentSigned = true
	th.Plagiarism = models.PlagiarismCheck{
		IsChecked:       true,
		IsApproved:      true,
		SimilarityScore: 7.5,
		CheckedFileURL:  "checks/th-1.pdf",
	}
	return th
}

func reviewActor(id string, role models.Role) models.Actor {
	return models.Actor{UserID: id, Role: role, Faculty: testFaculty}
}

func (f *reviewFixture) seed(t *testing.T, th *models.Thesis, roles ...models.Role) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.theses.Put(ctx, th))
	for _, role := range roles {
		id := th.AssignedRoleID(role)
		member := staffFixture(id, role)
		member.AssignedStudents = []string{th.Student}
		member.AssignedTheses = []string{th.ID}
		require.NoError(t, f.staff.Put(ctx, member))
	}
}

func TestSubmitReviewRequiresContent(t *testing.T) {
	f := newReviewFixture(t)
	f.seed(t, reviewThesis(models.ThesisStatusWithConsultant), models.RoleConsultant)

	_, err := f.svc.SubmitRoleReview(context.Background(), reviewActor("con-1", models.RoleConsultant), "th-1", models.RoleConsultant, dto.SubmitReviewRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitReviewCommentsOnlyRequestsRevisions(t *testing.T) {
	f := newReviewFixture(t)
	f.seed(t, reviewThesis(models.ThesisStatusWithConsultant), models.RoleConsultant)
	ctx := context.Background()

	result, err := f.svc.SubmitRoleReview(ctx, reviewActor("con-1", models.RoleConsultant), "th-1", models.RoleConsultant, dto.SubmitReviewRequest{Comments: "chapter 3 needs a rework"})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusRevisionsRequested, result.ReviewStatus)
	assert.Equal(t, models.ThesisStatusRevisionsRequested, result.ThesisStatus)

	th, err := f.theses.Get(ctx, "th-1")
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusRevisionsRequested, th.Status)
	assert.Equal(t, models.IterationStatusRevisionsRequested, th.ReviewIterations[0].Status)
	require.NotNil(t, th.ReviewIterations[0].ConsultantReview)
	assert.False(t, th.ReviewIterations[0].ConsultantReview.IsFinalApproval)

	member, err := f.staff.Get(ctx, "con-1")
	require.NoError(t, err)
	assert.Equal(t, 1, member.RevisionRequests)
	assert.Equal(t, 0, member.ApprovedReviews)

	student, err := f.students.Get(ctx, "stu-1")
	require.NoError(t, err)
	require.NotNil(t, student.ConsultantFeedback)
	assert.Equal(t, "chapter 3 needs a rework", student.ConsultantFeedback.Comments)
	assert.Equal(t, 1, student.TotalReviewAttempts)
	assert.Equal(t, models.ThesisStatusRevisionsRequested, student.ThesisStatus)

	require.Len(t, f.publisher.ofType(events.TypeReviewSubmitted), 1)
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "stu-1@uni.test", f.mail.sent[0].To)
}

func TestSupervisorPrecheckPlagiarismBlocksUnchanged(t *testing.T) {
	f := newReviewFixture(t)
	th := reviewThesis(models.ThesisStatusWithSupervisor)
	th.Plagiarism = models.PlagiarismCheck{IsChecked: true, IsApproved: false, SimilarityScore: 31.2, CheckedFileURL: "checks/th-1.pdf"}
	f.seed(t, th, models.RoleSupervisor)
	ctx := context.Background()

	before, err := f.theses.Get(ctx, "th-1")
	require.NoError(t, err)

	_, err = f.svc.SubmitRoleReview(ctx, reviewActor("sup-1", models.RoleSupervisor), "th-1", models.RoleSupervisor, dto.SubmitReviewRequest{Comments: "ok", Assessment: "excellent"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPrecheckFailed.Code, appErr.Code)
	assert.Equal(t, false, appErr.Details["isApproved"])
	assert.Equal(t, 31.2, appErr.Details["similarityScore"])

	after, err := f.theses.Get(ctx, "th-1")
	require.NoError(t, err)
	beforeJSON, _ := json.Marshal(before)
	afterJSON, _ := json.Marshal(after)
	assert.JSONEq(t, string(beforeJSON), string(afterJSON))
	assert.Empty(t, f.publisher.published)
	assert.Empty(t, f.mail.sent)
}

func TestSupervisorPrecheckRequiresStudentSignature(t *testing.T) {
	f := newReviewFixture(t)
	th := reviewThesis(models.ThesisStatusWithSupervisor)
	th.IsStudentSigned = false
	f.seed(t, th, models.RoleSupervisor)

	_, err := f.svc.SubmitRoleReview(context.Background(), reviewActor("sup-1", models.RoleSupervisor), "th-1", models.RoleSupervisor, dto.SubmitReviewRequest{Comments: "revise"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPrecheckFailed.Code, appErr.Code)
	assert.Equal(t, "await_student_signature", appErr.Details["requiredAction"])
}

func TestConsultantApprovalAdvancesToSupervisor(t *testing.T) {
	f := newReviewFixture(t)
	f.seed(t, reviewThesis(models.ThesisStatusWithConsultant), models.RoleConsultant)
	ctx := context.Background()

	result, err := f.svc.SubmitRoleReview(ctx, reviewActor("con-1", models.RoleConsultant), "th-1", models.RoleConsultant, dto.SubmitReviewRequest{Comments: "solid work", Assessment: "very good"})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusApproved, result.ReviewStatus)
	assert.Equal(t, models.ThesisStatusWithSupervisor, result.ThesisStatus)
	require.NotEmpty(t, result.UnsignedPdfPath)
	assert.True(t, f.artifacts.Exists(result.UnsignedPdfPath))

	member, err := f.staff.Get(ctx, "con-1")
	require.NoError(t, err)
	assert.Equal(t, 1, member.ApprovedReviews)
	assert.Contains(t, member.ReviewedTheses, "th-1")
	assert.NotContains(t, member.AssignedTheses, "th-1")
}

func TestSupervisorApprovalMovesUnderReview(t *testing.T) {
	f := newReviewFixture(t)
	f.seed(t, reviewThesis(models.ThesisStatusWithSupervisor), models.RoleSupervisor)

	result, err := f.svc.SubmitRoleReview(context.Background(), reviewActor("sup-1", models.RoleSupervisor), "th-1", models.RoleSupervisor, dto.SubmitReviewRequest{Assessment: "good"})
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusUnderReview, result.ThesisStatus)
}

func TestSupervisorApprovalWithoutReviewerHolds(t *testing.T) {
	f := newReviewFixture(t)
	th := reviewThesis(models.ThesisStatusWithSupervisor)
	th.AssignedReviewer = ""
	f.seed(t, th, models.RoleSupervisor)

	result, err := f.svc.SubmitRoleReview(context.Background(), reviewActor("sup-1", models.RoleSupervisor), "th-1", models.RoleSupervisor, dto.SubmitReviewRequest{Assessment: "good"})
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusWithSupervisor, result.ThesisStatus)
}

func TestReviewerOnlyApprovalEvaluates(t *testing.T) {
	f := newReviewFixture(t)
	th := reviewThesis(models.ThesisStatusUnderReview)
	th.AssignedConsultant = ""
	th.AssignedSupervisor = ""
	f.seed(t, th, models.RoleReviewer)
	ctx := context.Background()

	result, err := f.svc.SubmitRoleReview(ctx, reviewActor("rev-1", models.RoleReviewer), "th-1", models.RoleReviewer, dto.SubmitReviewRequest{Assessment: "satisfactory"})
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusEvaluated, result.ThesisStatus)

	stored, err := f.theses.Get(ctx, "th-1")
	require.NoError(t, err)
	assert.Equal(t, models.IterationStatusCompleted, stored.ReviewIterations[0].Status)
}

func TestSupervisorReusesConsultantSignedDocument(t *testing.T) {
	f := newReviewFixture(t)
	th := reviewThesis(models.ThesisStatusWithSupervisor)
	signedDate := th.CreatedAt
	th.ReviewIterations[0].ConsultantReview = &models.RoleReview{
		Comments:        "checked",
		Status:          models.ReviewStatusSigned,
		IsFinalApproval: true,
		SignedDate:      &signedDate,
	}
	consultantKey := f.artifacts.Key("th-1", string(models.RoleConsultant), storage.TierPartySigned)
	require.NoError(t, f.artifacts.Save(consultantKey, []byte("consultant signed content")))
	th.ConsultantSignedReviewPath = consultantKey
	f.seed(t, th, models.RoleSupervisor)

	result, err := f.svc.SubmitRoleReview(context.Background(), reviewActor("sup-1", models.RoleSupervisor), "th-1", models.RoleSupervisor, dto.SubmitReviewRequest{Assessment: "good"})
	require.NoError(t, err)

	copied, err := f.artifacts.Open(result.UnsignedPdfPath)
	require.NoError(t, err)
	defer copied.Close()
	buf := make([]byte, 64)
	n, _ := copied.Read(buf)
	assert.Equal(t, "consultant signed content", string(buf[:n]))
}

func TestSubmitReviewTwiceConflicts(t *testing.T) {
	f := newReviewFixture(t)
	f.seed(t, reviewThesis(models.ThesisStatusWithConsultant), models.RoleConsultant)
	ctx := context.Background()
	actor := reviewActor("con-1", models.RoleConsultant)

	_, err := f.svc.SubmitRoleReview(ctx, actor, "th-1", models.RoleConsultant, dto.SubmitReviewRequest{Assessment: "good"})
	require.NoError(t, err)

	_, err = f.svc.SubmitRoleReview(ctx, actor, "th-1", models.RoleConsultant, dto.SubmitReviewRequest{Assessment: "good"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubmitReviewForbiddenForNonHolder(t *testing.T) {
	f := newReviewFixture(t)
	f.seed(t, reviewThesis(models.ThesisStatusWithConsultant), models.RoleConsultant)

	_, err := f.svc.SubmitRoleReview(context.Background(), reviewActor("con-other", models.RoleConsultant), "th-1", models.RoleConsultant, dto.SubmitReviewRequest{Comments: "hi"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReReviewRetractsApproval(t *testing.T) {
	f := newReviewFixture(t)
	f.seed(t, reviewThesis(models.ThesisStatusWithConsultant), models.RoleConsultant)
	ctx := context.Background()
	actor := reviewActor("con-1", models.RoleConsultant)

	result, err := f.svc.SubmitRoleReview(ctx, actor, "th-1", models.RoleConsultant, dto.SubmitReviewRequest{Assessment: "good"})
	require.NoError(t, err)
	attemptsBefore := 1

	require.NoError(t, f.svc.ReReview(ctx, actor, "th-1", models.RoleConsultant))

	th, err := f.theses.Get(ctx, "th-1")
	require.NoError(t, err)
	assert.Nil(t, th.ReviewIterations[0].ConsultantReview)
	assert.Equal(t, models.IterationStatusUnderReview, th.ReviewIterations[0].Status)
	assert.Equal(t, models.ThesisStatusWithConsultant, th.Status)
	assert.Empty(t, th.ReviewPdfConsultant)
	assert.False(t, f.artifacts.Exists(result.UnsignedPdfPath))

	member, err := f.staff.Get(ctx, "con-1")
	require.NoError(t, err)
	assert.Contains(t, member.AssignedTheses, "th-1")
	assert.NotContains(t, member.ReviewedTheses, "th-1")

	student, err := f.students.Get(ctx, "stu-1")
	require.NoError(t, err)
	assert.Nil(t, student.ConsultantFeedback)
	assert.Equal(t, attemptsBefore, student.TotalReviewAttempts)
}

func TestReReviewBlockedAfterHodSignature(t *testing.T) {
	f := newReviewFixture(t)
	th := reviewThesis(models.ThesisStatusEvaluated)
	signed := th.CreatedAt
	th.HodSignedDate = &signed
	th.ReviewIterations[0].SupervisorReview = &models.RoleReview{Status: models.ReviewStatusSigned, IsFinalApproval: true}
	f.seed(t, th, models.RoleSupervisor)

	err := f.svc.ReReview(context.Background(), reviewActor("sup-1", models.RoleSupervisor), "th-1", models.RoleSupervisor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestReReviewWithoutSubmission(t *testing.T) {
	f := newReviewFixture(t)
	f.seed(t, reviewThesis(models.ThesisStatusWithConsultant), models.RoleConsultant)

	err := f.svc.ReReview(context.Background(), reviewActor("con-1", models.RoleConsultant), "th-1", models.RoleConsultant)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubmitReviewRequiresActiveStatus(t *testing.T) {
	f := newReviewFixture(t)
	f.seed(t, reviewThesis(models.ThesisStatusEvaluated), models.RoleConsultant)

	_, err := f.svc.SubmitRoleReview(context.Background(), reviewActor("con-1", models.RoleConsultant), "th-1", models.RoleConsultant, dto.SubmitReviewRequest{Comments: "late"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
