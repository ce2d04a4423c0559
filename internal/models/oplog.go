package models

import "time"

// OperationLog records one step of a multi-entity write sequence. The
// reconciliation pass uses these entries to locate interrupted sequences, and
// operators use them to trace partial state after a crash.
type OperationLog struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entityId"`
	Step      int       `json:"step"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
