package dto

// SubmitThesisRequest creates the thesis document for a student.
type SubmitThesisRequest struct {
	Title   string `json:"title" validate:"required"`
	FileURL string `json:"fileUrl" validate:"required"`
}

// ResubmitThesisRequest uploads a revised submission after a revision request.
type ResubmitThesisRequest struct {
	FileURL string `json:"fileUrl" validate:"required"`
}
