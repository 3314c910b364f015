package workflow

import (
	"context"
	"fmt"
)

type lineCompleteKey struct{}

// WithLineComplete records on ctx whether an APPROVE satisfies the final level
func WithLineComplete(ctx context.Context, complete bool) context.Context {
	return context.WithValue(ctx, lineCompleteKey{}, complete)
}

func lineComplete(ctx context.Context) bool {
	complete, _ := ctx.Value(lineCompleteKey{}).(bool)
	return complete
}

func lineIncomplete(ctx context.Context) bool {
	return !lineComplete(ctx)
}

// documentBuilder holds the document lifecycle:
//
//	DRAFT -> PENDING -> IN_PROGRESS -> {APPROVED, REJECTED}
//	DRAFT | PENDING | IN_PROGRESS -> WITHDRAWN
//
// Terminal states have no configuration, so every trigger fails there.
var documentBuilder = newDocumentBuilder()

func newDocumentBuilder() StateMachineBuilder {
	b := NewBuilder()

	b.Configure(StateDraft).
		Permit(TriggerSubmit, StatePending).
		Permit(TriggerWithdraw, StateWithdrawn)

	for _, s := range []State{StatePending, StateInProgress} {
		b.Configure(s).
			PermitIf(TriggerApprove, StateApproved, lineComplete).
			PermitIf(TriggerApprove, StateInProgress, lineIncomplete).
			Permit(TriggerReject, StateRejected).
			Permit(TriggerWithdraw, StateWithdrawn).
			PermitReentry(TriggerDelegate)
	}

	return b
}

// NewDocumentMachine returns a lifecycle machine positioned at status
func NewDocumentMachine(status string) (StateMachine, error) {
	state := State(status)
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, status)
	}
	return documentBuilder.Build(state), nil
}

// Next returns the status reached by firing trigger from status
func Next(ctx context.Context, status string, trigger Trigger) (string, error) {
	machine, err := NewDocumentMachine(status)
	if err != nil {
		return "", err
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return "", err
	}
	return machine.State().String(), nil
}
