package dto

// CreateSupervisorRequest is a supervisor's invitation to supervise a student.
type CreateSupervisorRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	Topic     string `json:"topic"`
	Message   string `json:"message"`
}

// DeclineSupervisorRequest carries the student's decline reason.
type DeclineSupervisorRequest struct {
	Reason string `json:"reason" validate:"required"`
}
