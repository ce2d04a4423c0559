package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/internal/events"
	"github.com/gradworks/thesis-flow-api/internal/models"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
	"github.com/gradworks/thesis-flow-api/pkg/storage"
)

// flakyArtifacts fails writes to a single key so pair atomicity can be
// exercised.
type flakyArtifacts struct {
	*storage.ArtifactStore
	failKey string
}

func (f *flakyArtifacts) SaveStream(key string, r io.Reader) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.ArtifactStore.SaveStream(key, r)
}

type signingFixture struct {
	svc       *SigningService
	students  *fakeStudents
	staff     *fakeStaff
	theses    *fakeTheses
	artifacts *storage.ArtifactStore
	oplog     *fakeOplog
	publisher *fakeEvents
}

func newSigningFixture(t *testing.T) *signingFixture {
	t.Helper()
	artifacts, err := storage.NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	f := &signingFixture{
		students:  newFakeStudents(studentFixture("stu-1")),
		staff:     newFakeStaff(staffFixture("sup-1", models.RoleSupervisor), staffFixture("rev-1", models.RoleReviewer)),
		theses:    newFakeTheses(),
		artifacts: artifacts,
		oplog:     &fakeOplog{},
		publisher: &fakeEvents{},
	}
	f.svc = NewSigningService(f.students, f.staff, f.theses, artifacts, f.oplog, newFakeCache(), f.publisher, zap.NewNop())
	return f
}

func (f *signingFixture) withFlakyWrites(failKey string) {
	f.svc.artifacts = &flakyArtifacts{ArtifactStore: f.artifacts, failKey: failKey}
}

// partySignReady builds a thesis where the supervisor's unsigned review
// document exists and the iteration carries a final approval.
func (f *signingFixture) partySignReady(t *testing.T) *models.Thesis {
	t.Helper()
	th := reviewThesis(models.ThesisStatusUnderReview)
	unsignedKey := f.artifacts.Key(th.ID, string(models.RoleSupervisor), storage.TierUnsigned)
	require.NoError(t, f.artifacts.Save(unsignedKey, []byte("unsigned review")))
	th.ReviewPdfSupervisor = unsignedKey
	th.ReviewIterations[0].SupervisorReview = &models.RoleReview{
		Comments:        "approved",
		Status:          models.ReviewStatusApproved,
		IsFinalApproval: true,
	}
	require.NoError(t, f.theses.Put(context.Background(), th))
	return th
}

// hodSignReady builds a thesis with both party-signed documents on disk.
func (f *signingFixture) hodSignReady(t *testing.T) *models.Thesis {
	t.Helper()
	th := f.partySignReady(t)
	supKey := f.artifacts.Key(th.ID, string(models.RoleSupervisor), storage.TierPartySigned)
	revKey := f.artifacts.Key(th.ID, string(models.RoleReviewer), storage.TierPartySigned)
	require.NoError(t, f.artifacts.Save(supKey, []byte("supervisor signed")))
	require.NoError(t, f.artifacts.Save(revKey, []byte("reviewer signed")))
	th.SupervisorSignedReviewPath = supKey
	th.ReviewerSignedReviewPath = revKey
	require.NoError(t, f.theses.Put(context.Background(), th))
	return th
}

// deanSignReady builds an evaluated thesis with the HOD pair on disk.
func (f *signingFixture) deanSignReady(t *testing.T) *models.Thesis {
	t.Helper()
	th := f.hodSignReady(t)
	hodSup := f.artifacts.Key(th.ID, string(models.RoleSupervisor), storage.TierHOD)
	hodRev := f.artifacts.Key(th.ID, string(models.RoleReviewer), storage.TierHOD)
	require.NoError(t, f.artifacts.Save(hodSup, []byte("hod supervisor")))
	require.NoError(t, f.artifacts.Save(hodRev, []byte("hod reviewer")))
	th.HodSignedSupervisorPath = hodSup
	th.HodSignedReviewerPath = hodRev
	th.Status = models.ThesisStatusEvaluated
	signed := th.CreatedAt
	th.HodSignedDate = &signed
	require.NoError(t, f.theses.Put(context.Background(), th))
	return th
}

func hodSigner() models.Actor {
	return models.Actor{UserID: "hod-1", Role: models.RoleHOD, Faculty: testFaculty}
}

func deanSigner() models.Actor {
	return models.Actor{UserID: "dean-1", Role: models.RoleDean, Faculty: testFaculty}
}

func TestUploadPartySignedStoresDocument(t *testing.T) {
	f := newSigningFixture(t)
	th := f.partySignReady(t)
	ctx := context.Background()

	student, err := f.students.Get(ctx, "stu-1")
	require.NoError(t, err)
	student.SupervisorFeedback = &models.FeedbackSnapshot{Comments: "approved", ReviewIteration: 1, Status: models.ReviewStatusApproved}
	require.NoError(t, f.students.Put(ctx, student))

	err = f.svc.UploadPartySigned(ctx, reviewActor("sup-1", models.RoleSupervisor), th.ID, models.RoleSupervisor, bytes.NewBufferString("signed by supervisor"))
	require.NoError(t, err)

	stored, err := f.theses.Get(ctx, th.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.SupervisorSignedReviewPath)
	assert.True(t, f.artifacts.Exists(stored.SupervisorSignedReviewPath))
	review := stored.ReviewIterations[0].SupervisorReview
	require.NotNil(t, review)
	assert.Equal(t, models.ReviewStatusSigned, review.Status)
	require.NotNil(t, review.SignedDate)

	student, err = f.students.Get(ctx, "stu-1")
	require.NoError(t, err)
	require.NotNil(t, student.SupervisorFeedback)
	assert.True(t, student.SupervisorFeedback.IsSigned)
	assert.Equal(t, models.ReviewStatusSigned, student.SupervisorFeedback.Status)

	require.Len(t, f.publisher.ofType(events.TypeSigningAdvanced), 1)
}

func TestUploadPartySignedRequiresUnsignedDocument(t *testing.T) {
	f := newSigningFixture(t)
	th := reviewThesis(models.ThesisStatusUnderReview)
	th.ReviewIterations[0].SupervisorReview = &models.RoleReview{Status: models.ReviewStatusApproved, IsFinalApproval: true}
	require.NoError(t, f.theses.Put(context.Background(), th))

	err := f.svc.UploadPartySigned(context.Background(), reviewActor("sup-1", models.RoleSupervisor), th.ID, models.RoleSupervisor, bytes.NewBufferString("x"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPrecheckFailed.Code, appErr.Code)
	assert.Equal(t, false, appErr.Details["unsignedDocumentExists"])
}

func TestUploadPartySignedTwiceConflicts(t *testing.T) {
	f := newSigningFixture(t)
	th := f.partySignReady(t)
	ctx := context.Background()
	actor := reviewActor("sup-1", models.RoleSupervisor)

	require.NoError(t, f.svc.UploadPartySigned(ctx, actor, th.ID, models.RoleSupervisor, bytes.NewBufferString("one")))
	err := f.svc.UploadPartySigned(ctx, actor, th.ID, models.RoleSupervisor, bytes.NewBufferString("two"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUploadPartySignedWithoutFinalApproval(t *testing.T) {
	f := newSigningFixture(t)
	th := f.partySignReady(t)
	ctx := context.Background()

	stored, err := f.theses.Get(ctx, th.ID)
	require.NoError(t, err)
	stored.ReviewIterations[0].SupervisorReview.IsFinalApproval = false
	require.NoError(t, f.theses.Put(ctx, stored))

	err = f.svc.UploadPartySigned(ctx, reviewActor("sup-1", models.RoleSupervisor), th.ID, models.RoleSupervisor, bytes.NewBufferString("x"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUploadPartySignedForbiddenForNonHolder(t *testing.T) {
	f := newSigningFixture(t)
	th := f.partySignReady(t)

	err := f.svc.UploadPartySigned(context.Background(), reviewActor("sup-other", models.RoleSupervisor), th.ID, models.RoleSupervisor, bytes.NewBufferString("x"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUploadHodSignedEvaluates(t *testing.T) {
	f := newSigningFixture(t)
	th := f.hodSignReady(t)
	ctx := context.Background()

	err := f.svc.UploadHodSigned(ctx, hodSigner(), th.ID, bytes.NewBufferString("hod sup"), bytes.NewBufferString("hod rev"))
	require.NoError(t, err)

	stored, err := f.theses.Get(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusEvaluated, stored.Status)
	assert.Equal(t, models.IterationStatusCompleted, stored.ReviewIterations[0].Status)
	require.NotNil(t, stored.HodSignedDate)
	assert.True(t, f.artifacts.Exists(stored.HodSignedSupervisorPath))
	assert.True(t, f.artifacts.Exists(stored.HodSignedReviewerPath))

	student, err := f.students.Get(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, models.ThesisStatusEvaluated, student.ThesisStatus)

	assert.Len(t, f.oplog.byOperation("sign_hod"), 2)
}

func TestUploadHodSignedRejectsPartialPair(t *testing.T) {
	f := newSigningFixture(t)
	th := f.hodSignReady(t)
	ctx := context.Background()

	before, err := f.theses.Get(ctx, th.ID)
	require.NoError(t, err)

	err = f.svc.UploadHodSigned(ctx, hodSigner(), th.ID, bytes.NewBufferString("hod sup"), nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, true, appErr.Details["supervisorFile"])
	assert.Equal(t, false, appErr.Details["reviewerFile"])

	after, err := f.theses.Get(ctx, th.ID)
	require.NoError(t, err)
	beforeJSON, _ := json.Marshal(before)
	afterJSON, _ := json.Marshal(after)
	assert.JSONEq(t, string(beforeJSON), string(afterJSON))
}

func TestUploadHodSignedTwiceConflicts(t *testing.T) {
	f := newSigningFixture(t)
	th := f.deanSignReady(t)

	err := f.svc.UploadHodSigned(context.Background(), hodSigner(), th.ID, bytes.NewBufferString("a"), bytes.NewBufferString("b"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUploadHodSignedRequiresPartySignedFiles(t *testing.T) {
	f := newSigningFixture(t)
	th := f.partySignReady(t)

	err := f.svc.UploadHodSigned(context.Background(), hodSigner(), th.ID, bytes.NewBufferString("a"), bytes.NewBufferString("b"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPrecheckFailed.Code, appErr.Code)
	assert.Equal(t, false, appErr.Details["supervisorSignedExists"])
}

func TestHodPairRollbackOnSecondWriteFailure(t *testing.T) {
	f := newSigningFixture(t)
	th := f.hodSignReady(t)
	ctx := context.Background()

	revKey := f.artifacts.Key(th.ID, string(models.RoleReviewer), storage.TierHOD)
	f.withFlakyWrites(revKey)

	before, err := f.theses.Get(ctx, th.ID)
	require.NoError(t, err)

	err = f.svc.UploadHodSigned(ctx, hodSigner(), th.ID, bytes.NewBufferString("hod sup"), bytes.NewBufferString("hod rev"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStorage.Code, appErrors.FromError(err).Code)

	supKey := f.artifacts.Key(th.ID, string(models.RoleSupervisor), storage.TierHOD)
	assert.False(t, f.artifacts.Exists(supKey))

	after, err := f.theses.Get(ctx, th.ID)
	require.NoError(t, err)
	beforeJSON, _ := json.Marshal(before)
	afterJSON, _ := json.Marshal(after)
	assert.JSONEq(t, string(beforeJSON), string(afterJSON))
}

func TestUploadDeanSignedClearsEarlierTiers(t *testing.T) {
	f := newSigningFixture(t)
	th := f.deanSignReady(t)
	ctx := context.Background()

	earlier := []string{
		th.ReviewPdfSupervisor,
		th.SupervisorSignedReviewPath,
		th.ReviewerSignedReviewPath,
		th.HodSignedSupervisorPath,
		th.HodSignedReviewerPath,
	}

	err := f.svc.UploadDeanSigned(ctx, deanSigner(), th.ID, bytes.NewBufferString("dean sup"), bytes.NewBufferString("dean rev"))
	require.NoError(t, err)

	stored, err := f.theses.Get(ctx, th.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DeanSignedDate)
	assert.True(t, f.artifacts.Exists(stored.DeanSignedSupervisorPath))
	assert.True(t, f.artifacts.Exists(stored.DeanSignedReviewerPath))

	assert.Empty(t, stored.ReviewPdfConsultant)
	assert.Empty(t, stored.ReviewPdfSupervisor)
	assert.Empty(t, stored.ReviewPdfReviewer)
	assert.Empty(t, stored.ConsultantSignedReviewPath)
	assert.Empty(t, stored.SupervisorSignedReviewPath)
	assert.Empty(t, stored.ReviewerSignedReviewPath)
	assert.Empty(t, stored.HodSignedSupervisorPath)
	assert.Empty(t, stored.HodSignedReviewerPath)

	for _, key := range earlier {
		assert.False(t, f.artifacts.Exists(key), "superseded artifact %s should be deleted", key)
	}
}

func TestUploadDeanSignedRequiresEvaluated(t *testing.T) {
	f := newSigningFixture(t)
	th := f.hodSignReady(t)

	err := f.svc.UploadDeanSigned(context.Background(), deanSigner(), th.ID, bytes.NewBufferString("a"), bytes.NewBufferString("b"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPrecheckFailed.Code, appErr.Code)
	assert.Equal(t, false, appErr.Details["thesisEvaluated"])
}

func TestUploadDeanSignedTwiceConflicts(t *testing.T) {
	f := newSigningFixture(t)
	th := f.deanSignReady(t)
	ctx := context.Background()

	require.NoError(t, f.svc.UploadDeanSigned(ctx, deanSigner(), th.ID, bytes.NewBufferString("a"), bytes.NewBufferString("b")))
	err := f.svc.UploadDeanSigned(ctx, deanSigner(), th.ID, bytes.NewBufferString("a"), bytes.NewBufferString("b"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSigningScopedToStudentFaculty(t *testing.T) {
	f := newSigningFixture(t)
	th := f.hodSignReady(t)

	outsider := hodSigner()
	outsider.Faculty = "economics"
	err := f.svc.UploadHodSigned(context.Background(), outsider, th.ID, bytes.NewBufferString("a"), bytes.NewBufferString("b"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestGetFinalSignedPair(t *testing.T) {
	f := newSigningFixture(t)
	th := f.deanSignReady(t)
	ctx := context.Background()

	require.NoError(t, f.svc.UploadDeanSigned(ctx, deanSigner(), th.ID, bytes.NewBufferString("dean sup"), bytes.NewBufferString("dean rev")))

	pair, err := f.svc.GetFinalSigned(ctx, th.ID)
	require.NoError(t, err)
	defer pair.Supervisor.Close()
	defer pair.Reviewer.Close()

	sup, err := io.ReadAll(pair.Supervisor)
	require.NoError(t, err)
	assert.Equal(t, "dean sup", string(sup))
}

func TestGetFinalSignedBeforeDeanSigning(t *testing.T) {
	f := newSigningFixture(t)
	th := f.deanSignReady(t)

	_, err := f.svc.GetFinalSigned(context.Background(), th.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPrecheckFailed.Code, appErrors.FromError(err).Code)
}

func TestGetUnsignedMissing(t *testing.T) {
	f := newSigningFixture(t)
	th := reviewThesis(models.ThesisStatusUnderReview)
	require.NoError(t, f.theses.Put(context.Background(), th))

	_, err := f.svc.GetUnsigned(context.Background(), th.ID, models.RoleReviewer)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
