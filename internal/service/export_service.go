package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/internal/models"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
	"github.com/gradworks/thesis-flow-api/pkg/export"
	"github.com/gradworks/thesis-flow-api/pkg/storage"
)

var historyHeaders = []string{"Iteration", "Role", "Status", "Final", "Comments", "Submitted", "Signed"}

// ExportResult points at a rendered export file behind a signed download
// token.
type ExportResult struct {
	ExportID  string    `json:"exportId"`
	Format    string    `json:"format"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExportService renders a thesis's review history as CSV or PDF and serves
// the result through HMAC signed download tokens.
type ExportService struct {
	theses     thesisStore
	students   studentStore
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	signer     *storage.SignedURLSigner
	storageDir string
	logger     *zap.Logger
}

// NewExportService creates a service instance.
func NewExportService(
	theses thesisStore,
	students studentStore,
	csv *export.CSVExporter,
	pdf *export.PDFExporter,
	signer *storage.SignedURLSigner,
	storageDir string,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		theses:     theses,
		students:   students,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		storageDir: storageDir,
		logger:     logger,
	}
}

// ExportHistory renders the thesis's iteration history in the requested
// format and returns a signed download reference.
func (s *ExportService) ExportHistory(ctx context.Context, thesisID, format string) (*ExportResult, error) {
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	thesis, err := s.theses.Get(ctx, thesisID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thesis not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thesis")
	}

	dataset := historyDataset(thesis)
	var content []byte
	if format == "csv" {
		content, err = s.csv.Render(dataset)
	} else {
		content, err = s.pdf.Render(dataset, fmt.Sprintf("Review history: %s", thesis.Title))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := uuid.NewString()
	relPath := filepath.Join("history", fmt.Sprintf("%s.%s", exportID, format))
	absPath := filepath.Join(s.storageDir, relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to prepare export directory")
	}
	if err := os.WriteFile(absPath, content, 0o644); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to write export file")
	}

	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	s.logger.Info("review history exported",
		zap.String("thesis_id", thesis.ID),
		zap.String("export_id", exportID),
		zap.String("format", format))
	return &ExportResult{ExportID: exportID, Format: format, Token: token, ExpiresAt: expiresAt}, nil
}

// Download resolves a signed token to the export file. The caller closes the
// file.
func (s *ExportService) Download(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download token is invalid or expired")
	}
	f, err := os.Open(filepath.Join(s.storageDir, relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to open export file")
	}
	return f, nil
}

func historyDataset(thesis *models.Thesis) export.Dataset {
	rows := make([]map[string]string, 0, len(thesis.ReviewIterations)*3)
	for i := range thesis.ReviewIterations {
		iteration := &thesis.ReviewIterations[i]
		for _, role := range models.ReviewingRoles() {
			review := iteration.ReviewFor(role)
			if review == nil {
				continue
			}
			row := map[string]string{
				"Iteration": fmt.Sprintf("%d", iteration.Iteration),
				"Role":      string(role),
				"Status":    string(review.Status),
				"Final":     fmt.Sprintf("%t", review.IsFinalApproval),
				"Comments":  review.Comments,
				"Submitted": review.SubmittedDate.Format(time.RFC3339),
			}
			if review.SignedDate != nil {
				row["Signed"] = review.SignedDate.Format(time.RFC3339)
			}
			rows = append(rows, row)
		}
	}
	return export.Dataset{Headers: historyHeaders, Rows: rows}
}
