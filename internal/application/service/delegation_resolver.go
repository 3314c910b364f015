package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/domain/entity"
)

// DelegationResolver answers who may act for a nominal approver at an instant.
// Results are never cached; every action asks again.
type DelegationResolver interface {
	EffectiveApprover(ctx context.Context, nominalID, formID int64, on time.Time) (int64, error)
}

type delegationResolverImpl struct {
	delegations port.DelegationRepository
}

// NewDelegationResolver creates a new DelegationResolver
func NewDelegationResolver(delegations port.DelegationRepository) DelegationResolver {
	return &delegationResolverImpl{delegations: delegations}
}

func (r *delegationResolverImpl) EffectiveApprover(ctx context.Context, nominalID, formID int64, on time.Time) (int64, error) {
	rows, err := r.delegations.ListByDelegator(ctx, nominalID, true)
	if err != nil {
		return 0, fmt.Errorf("load delegations of %d: %w", nominalID, err)
	}

	if d := SelectDelegation(rows, formID, on); d != nil {
		return d.DelegateID, nil
	}
	return nominalID, nil
}

// SelectDelegation picks the effective delegation among candidates, or nil.
// Form-specific rows beat form-agnostic ones; then the most recently created
// wins, with the higher id breaking identical timestamps.
func SelectDelegation(candidates []*entity.ApprovalDelegation, formID int64, on time.Time) *entity.ApprovalDelegation {
	matches := make([]*entity.ApprovalDelegation, 0, len(candidates))
	for _, d := range candidates {
		if d.Covers(formID, on) {
			matches = append(matches, d)
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if (a.FormID != nil) != (b.FormID != nil) {
			return a.FormID != nil
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return matches[0]
}
