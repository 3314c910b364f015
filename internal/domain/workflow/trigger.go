package workflow

import "github.com/garyjia/e-approval/internal/domain/entity"

// Trigger represents an action that can cause a state transition
type Trigger string

const (
	TriggerSubmit   Trigger = entity.ActionSubmit
	TriggerApprove  Trigger = entity.ActionApprove
	TriggerReject   Trigger = entity.ActionReject
	TriggerWithdraw Trigger = entity.ActionWithdraw
	TriggerDelegate Trigger = entity.ActionDelegate
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
