package models

import "time"

// RequestStatus captures the lifecycle of a supervisor request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// SupervisorRequest is a supervisor's invitation to supervise a student,
// resolved by the student. Accepting one cancels the student's other pending
// requests; a request loses the race when another supervisor link commits
// first.
type SupervisorRequest struct {
	ID         string        `json:"id"`
	Student    string        `json:"student"`
	Supervisor string        `json:"supervisor"`
	Topic      string        `json:"topic,omitempty"`
	Message    string        `json:"message,omitempty"`
	Status     RequestStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	ResolvedAt *time.Time    `json:"resolvedAt,omitempty"`
}
