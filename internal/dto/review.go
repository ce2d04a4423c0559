package dto

// SubmitReviewRequest is one role's review submission. Comments without an
// assessment request revisions; an assessment makes it a final approval.
type SubmitReviewRequest struct {
	Comments   string `json:"comments"`
	Assessment string `json:"assessment"`
}

// RecordPlagiarismRequest carries an externally produced check result.
type RecordPlagiarismRequest struct {
	SimilarityScore float64 `json:"similarityScore" validate:"gte=0,lte=100"`
	CheckedFileURL  string  `json:"checkedFileUrl" validate:"required"`
}
