package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/internal/models"
	"github.com/gradworks/thesis-flow-api/internal/service"
	"github.com/gradworks/thesis-flow-api/pkg/export"
	"github.com/gradworks/thesis-flow-api/pkg/storage"
)

func newExportRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	submitted := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	theses := &memTheses{items: map[string]*models.Thesis{
		"th-1": {
			ID:      "th-1",
			Student: "stu-1",
			Title:   "Adaptive Query Planning",
			Status:  models.ThesisStatusUnderReview,
			ReviewIterations: []models.ReviewIteration{
				{
					Iteration: 1,
					Status:    models.IterationStatusUnderReview,
					ConsultantReview: &models.RoleReview{
						Comments:      "looks solid",
						SubmittedDate: submitted,
						Status:        models.ReviewStatusApproved,
					},
				},
			},
		},
	}}

	signer := storage.NewSignedURLSigner("handler-test-secret", time.Hour)
	svc := service.NewExportService(theses, &memStudents{}, export.NewCSVExporter(), export.NewPDFExporter(), signer, t.TempDir(), zap.NewNop())
	h := NewExportHandler(svc)

	r := gin.New()
	r.GET("/theses/:id/history/export", h.ExportHistory)
	r.GET("/exports/download", h.Download)
	return r
}

func TestExportHandlerRoundTrip(t *testing.T) {
	router := newExportRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/theses/th-1/history/export?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	token, _ := envelope.Data["token"].(string)
	require.NotEmpty(t, token)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/exports/download?token="+token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, strings.Contains(rec.Body.String(), "looks solid"))
}

func TestExportHandlerUnknownThesis(t *testing.T) {
	router := newExportRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/theses/ghost/history/export?format=csv", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
}

func TestExportHandlerMissingToken(t *testing.T) {
	router := newExportRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/exports/download", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportHandlerTamperedToken(t *testing.T) {
	router := newExportRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/exports/download?token=a.1.b.c", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
}
