package dto

// ProposeTopicRequest sets or replaces a student's thesis topic.
type ProposeTopicRequest struct {
	Topic string `json:"topic" validate:"required"`
}

// TopicResponseRequest is the student's answer to a supervisor-proposed topic.
type TopicResponseRequest struct {
	Accept bool `json:"accept"`
}
