package entity

import "time"

// ApprovalHistory is an append-only audit record of one applied action
type ApprovalHistory struct {
	ID             int64     `json:"id"`
	DocumentID     int64     `json:"document_id"`
	LineID         *int64    `json:"line_id,omitempty"`
	ActionType     string    `json:"action_type"`
	ActionBy       int64     `json:"action_by"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Comment        string    `json:"comment,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	ClientIP       string    `json:"client_ip,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
