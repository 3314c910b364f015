package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/domain/apperror"
	"github.com/garyjia/e-approval/internal/domain/entity"
	"go.uber.org/zap"
)

// RegisterDelegationInput describes a new delegation window.
// A zero DelegatorID means the caller delegates their own authority.
type RegisterDelegationInput struct {
	DelegatorID int64
	DelegateID  int64
	FormID      *int64
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
}

// DelegationService maintains delegation rows. Rows are soft-deactivated, never deleted.
type DelegationService interface {
	Register(ctx context.Context, caller port.Caller, input RegisterDelegationInput) (*entity.ApprovalDelegation, error)
	Deactivate(ctx context.Context, caller port.Caller, id int64) error
	List(ctx context.Context, caller port.Caller, delegatorID int64, activeOnly bool) ([]*entity.ApprovalDelegation, error)
}

type delegationServiceImpl struct {
	repos  Repositories
	opts   Options
	logger *zap.Logger
}

// NewDelegationService creates a new DelegationService
func NewDelegationService(repos Repositories, opts Options, logger *zap.Logger) DelegationService {
	return &delegationServiceImpl{
		repos:  repos,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

func (s *delegationServiceImpl) Register(ctx context.Context, caller port.Caller, input RegisterDelegationInput) (*entity.ApprovalDelegation, error) {
	if input.DelegatorID == 0 {
		input.DelegatorID = caller.EmployeeID
	}
	fields := []zap.Field{
		zap.Int64("actor_id", caller.EmployeeID),
		zap.Int64("delegator_id", input.DelegatorID),
		zap.Int64("delegate_id", input.DelegateID),
	}

	if err := s.validate(ctx, caller, input); err != nil {
		return nil, classify(s.logger, "register_delegation", err, fields...)
	}

	d := &entity.ApprovalDelegation{
		DelegatorID: input.DelegatorID,
		DelegateID:  input.DelegateID,
		FormID:      input.FormID,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Reason:      input.Reason,
		IsActive:    true,
		CreatedAt:   s.opts.Now(),
	}
	if err := s.repos.Delegations.Create(ctx, d); err != nil {
		return nil, classify(s.logger, "register_delegation", err, fields...)
	}

	s.logger.Info("Delegation registered", append(fields, zap.Int64("delegation_id", d.ID))...)
	return d, nil
}

func (s *delegationServiceImpl) validate(ctx context.Context, caller port.Caller, in RegisterDelegationInput) error {
	if !caller.IsAdmin() && caller.EmployeeID != in.DelegatorID {
		return apperror.New(apperror.KindForbidden, "only the delegator or an administrator can register a delegation")
	}
	if in.DelegateID <= 0 {
		return apperror.Validation("delegate_id is required")
	}
	if in.DelegateID == in.DelegatorID {
		return apperror.Validation("an employee cannot delegate to themselves")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return apperror.Validation("start_date and end_date are required")
	}
	if !in.EndDate.After(in.StartDate) {
		return apperror.Validation("end_date must be after start_date")
	}
	if err := validateComment(in.Reason); err != nil {
		return err
	}

	employees, err := s.repos.Directory.GetEmployees(ctx, []int64{in.DelegatorID, in.DelegateID})
	if err != nil {
		return fmt.Errorf("load employees: %w", err)
	}
	if _, ok := employees[in.DelegatorID]; !ok {
		return apperror.Validation("delegator %d does not exist", in.DelegatorID)
	}
	if delegate, ok := employees[in.DelegateID]; !ok || !delegate.IsActive {
		return apperror.Validation("delegate %d is not an active employee", in.DelegateID)
	}

	if in.FormID != nil {
		form, err := s.repos.Forms.GetByID(ctx, *in.FormID)
		if err != nil {
			return fmt.Errorf("load form: %w", err)
		}
		if form == nil {
			return apperror.Validation("form %d does not exist", *in.FormID)
		}
	}
	return nil
}

func (s *delegationServiceImpl) Deactivate(ctx context.Context, caller port.Caller, id int64) error {
	fields := []zap.Field{zap.Int64("actor_id", caller.EmployeeID), zap.Int64("delegation_id", id)}

	d, err := s.repos.Delegations.GetByID(ctx, id)
	if err != nil {
		return classify(s.logger, "deactivate_delegation", err, fields...)
	}
	if d == nil {
		return classify(s.logger, "deactivate_delegation", apperror.NotFound("delegation", id), fields...)
	}
	if !caller.IsAdmin() && caller.EmployeeID != d.DelegatorID {
		return classify(s.logger, "deactivate_delegation",
			apperror.New(apperror.KindForbidden, "only the delegator or an administrator can deactivate delegation %d", id), fields...)
	}
	if !d.IsActive {
		return nil
	}

	if err := s.repos.Delegations.Deactivate(ctx, id); err != nil {
		return classify(s.logger, "deactivate_delegation", err, fields...)
	}
	s.logger.Info("Delegation deactivated", fields...)
	return nil
}

func (s *delegationServiceImpl) List(ctx context.Context, caller port.Caller, delegatorID int64, activeOnly bool) ([]*entity.ApprovalDelegation, error) {
	if delegatorID == 0 {
		delegatorID = caller.EmployeeID
	}
	if !caller.IsAdmin() && caller.EmployeeID != delegatorID {
		return nil, apperror.New(apperror.KindForbidden, "only the delegator or an administrator can list these delegations")
	}

	rows, err := s.repos.Delegations.ListByDelegator(ctx, delegatorID, activeOnly)
	if err != nil {
		return nil, classify(s.logger, "list_delegations", err, zap.Int64("delegator_id", delegatorID))
	}
	return rows, nil
}
