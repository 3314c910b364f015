package entity

import "time"

// ApprovalDelegation substitutes DelegateID for DelegatorID during [StartDate, EndDate).
// A nil FormID applies to every form.
type ApprovalDelegation struct {
	ID          int64     `json:"id"`
	DelegatorID int64     `json:"delegator_id"`
	DelegateID  int64     `json:"delegate_id"`
	FormID      *int64    `json:"form_id,omitempty"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Reason      string    `json:"reason,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Covers reports whether the delegation applies to formID at instant on
func (d *ApprovalDelegation) Covers(formID int64, on time.Time) bool {
	if !d.IsActive {
		return false
	}
	if d.FormID != nil && *d.FormID != formID {
		return false
	}
	return !on.Before(d.StartDate) && on.Before(d.EndDate)
}
