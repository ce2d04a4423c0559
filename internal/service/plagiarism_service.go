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

// PlagiarismService stores and serves externally produced similarity check
// results. Approval is decided once, when the result is recorded; downstream
// consumers trust the stored flag and never re-derive it from the score.
type PlagiarismService struct {
	theses   thesisStore
	cache    statusCache
	validate *validator.Validate
	logger   *zap.Logger
}

// NewPlagiarismService creates a service instance.
func NewPlagiarismService(theses thesisStore, cache statusCache, logger *zap.Logger) *PlagiarismService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlagiarismService{theses: theses, cache: cache, validate: validator.New(), logger: logger}
}

// CheckLatest returns the stored check result for the thesis's latest
// submission.
func (s *PlagiarismService) CheckLatest(ctx context.Context, thesisID string) (*models.PlagiarismCheck, error) {
	thesis, err := s.theses.Get(ctx, thesisID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thesis not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thesis")
	}
	check := thesis.Plagiarism
	return &check, nil
}

// RecordResult stores an external check result against the thesis. The
// approval flag is fixed here against the similarity threshold.
func (s *PlagiarismService) RecordResult(ctx context.Context, thesisID string, req dto.RecordPlagiarismRequest) (*models.PlagiarismCheck, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check result payload")
	}
	thesis, err := s.theses.Get(ctx, thesisID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thesis not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thesis")
	}
	if thesis.SubmissionFileURL == "" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "thesis has no submission to check")
	}

	thesis.Plagiarism = models.PlagiarismCheck{
		IsChecked:       true,
		IsApproved:      req.SimilarityScore <= models.SimilarityThreshold,
		SimilarityScore: req.SimilarityScore,
		CheckedFileURL:  req.CheckedFileURL,
	}
	thesis.UpdatedAt = time.Now().UTC()
	if err := s.theses.Put(ctx, thesis); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist check result")
	}
	s.cache.Delete(ctx, statusCacheKey(thesis.ID))

	s.logger.Info("plagiarism result recorded",
		zap.String("thesis_id", thesis.ID),
		zap.Float64("similarity_score", req.SimilarityScore),
		zap.Bool("approved", thesis.Plagiarism.IsApproved))

	check := thesis.Plagiarism
	return &check, nil
}
