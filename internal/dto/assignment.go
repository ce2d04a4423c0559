package dto

// AssignTeamRequest carries the role ids to (re)assign to a student. At least
// one id must be provided.
type AssignTeamRequest struct {
	SupervisorID string `json:"supervisorId"`
	ConsultantID string `json:"consultantId"`
	ReviewerID   string `json:"reviewerId"`
}

// Empty reports whether no role id was provided.
func (r AssignTeamRequest) Empty() bool {
	return r.SupervisorID == "" && r.ConsultantID == "" && r.ReviewerID == ""
}
