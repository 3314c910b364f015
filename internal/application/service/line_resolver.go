package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/domain/apperror"
	"github.com/garyjia/e-approval/internal/domain/entity"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// LineSlot is one caller-supplied slot of an explicit approval line.
// A zero SortOrder is assigned after the highest order used at its level.
// A slot decoded from JSON without is_required is required.
type LineSlot struct {
	Level              int    `json:"level"`
	SortOrder          int    `json:"sort_order,omitempty"`
	ApprovalType       string `json:"approval_type"`
	ApproverEmployeeID int64  `json:"approver_employee_id"`
	IsRequired         bool   `json:"is_required"`
}

func (s *LineSlot) UnmarshalJSON(data []byte) error {
	type plain LineSlot
	slot := plain{IsRequired: true}
	if err := json.Unmarshal(data, &slot); err != nil {
		return err
	}
	*s = LineSlot(slot)
	return nil
}

// RequesterContext is the organizational context a line is resolved for
type RequesterContext struct {
	EmployeeID   int64
	CompanyID    int64
	DepartmentID int64
	Amount       *int64
}

// ResolvedLine is an ordered approval line ready to be attached to a document
type ResolvedLine struct {
	Slots      []*entity.ApprovalLine
	TotalLevel int
	SettingID  int64 // 0 for explicit lines
}

// LineResolver turns a form and requester context into a concrete approval line
type LineResolver interface {
	// Resolve validates explicit when it is non-nil, otherwise derives the line
	// from the highest-priority matching approval setting.
	Resolve(ctx context.Context, form *entity.ApprovalForm, requester RequesterContext, explicit []LineSlot) (*ResolvedLine, error)
}

type lineResolverImpl struct {
	settings  port.SettingRepository
	directory port.Directory
	logger    *zap.Logger
}

// NewLineResolver creates a new LineResolver
func NewLineResolver(settings port.SettingRepository, directory port.Directory, logger *zap.Logger) LineResolver {
	return &lineResolverImpl{
		settings:  settings,
		directory: directory,
		logger:    logger,
	}
}

func (r *lineResolverImpl) Resolve(ctx context.Context, form *entity.ApprovalForm, requester RequesterContext, explicit []LineSlot) (*ResolvedLine, error) {
	if explicit != nil {
		return r.resolveExplicit(ctx, form, explicit)
	}
	return r.resolveAutomatic(ctx, form, requester)
}

func (r *lineResolverImpl) resolveExplicit(ctx context.Context, form *entity.ApprovalForm, explicit []LineSlot) (*ResolvedLine, error) {
	if len(explicit) == 0 {
		return nil, apperror.New(apperror.KindEmptyApprovalLine, "explicit approval line has no slots")
	}

	for i, slot := range explicit {
		if slot.Level < 1 {
			return nil, apperror.New(apperror.KindInvalidLineDefinition, "slot %d: level must be >= 1", i+1)
		}
		if !entity.IsValidApprovalType(slot.ApprovalType) {
			return nil, apperror.New(apperror.KindInvalidLineDefinition, "slot %d: unknown approval type %q", i+1, slot.ApprovalType)
		}
		if slot.ApproverEmployeeID <= 0 {
			return nil, apperror.New(apperror.KindInvalidLineDefinition, "slot %d: approver is required", i+1)
		}
		if slot.SortOrder < 0 {
			return nil, apperror.New(apperror.KindInvalidLineDefinition, "slot %d: sort order must not be negative", i+1)
		}
	}

	ids := lo.Uniq(lo.Map(explicit, func(s LineSlot, _ int) int64 { return s.ApproverEmployeeID }))
	employees, err := r.directory.GetEmployees(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load approvers: %w", err)
	}
	for _, id := range ids {
		emp, ok := employees[id]
		if !ok || !emp.IsActive {
			return nil, apperror.New(apperror.KindInvalidLineDefinition, "approver %d is not an active employee", id)
		}
	}

	slots := make([]*entity.ApprovalLine, 0, len(explicit))
	for _, s := range explicit {
		slots = append(slots, &entity.ApprovalLine{
			ApprovalLevel:      s.Level,
			SortOrder:          s.SortOrder,
			ApprovalType:       s.ApprovalType,
			ApproverEmployeeID: s.ApproverEmployeeID,
			IsRequired:         s.IsRequired,
		})
	}

	if err := assignSortOrders(slots); err != nil {
		return nil, err
	}
	return finalizeLine(form, slots, 0)
}

func (r *lineResolverImpl) resolveAutomatic(ctx context.Context, form *entity.ApprovalForm, requester RequesterContext) (*ResolvedLine, error) {
	settings, err := r.settings.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load approval settings: %w", err)
	}

	setting, ok := lo.Find(settings, func(s *entity.ApprovalSetting) bool {
		return settingMatches(s, form.ID, requester)
	})
	if !ok {
		return nil, apperror.New(apperror.KindNoApprovalLineConfigured,
			"no approval setting matches form %s for department %d", form.Code, requester.DepartmentID)
	}

	chain, err := r.directory.ResolveReportingChain(ctx, requester.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("resolve reporting chain: %w", err)
	}

	steps := make([]entity.TemplateStep, len(setting.LineTemplate))
	copy(steps, setting.LineTemplate)
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Level != steps[j].Level {
			return steps[i].Level < steps[j].Level
		}
		return steps[i].SortOrder < steps[j].SortOrder
	})

	var slots []*entity.ApprovalLine
	for _, step := range steps {
		approver, err := r.expandStep(ctx, step, chain)
		if err != nil {
			return nil, err
		}
		if approver == nil || !approver.IsActive || approver.ID == requester.EmployeeID {
			r.logger.Debug("Skipping unresolved template step",
				zap.Int64("setting_id", setting.ID),
				zap.Int("level", step.Level),
				zap.String("ref_kind", step.RefKind))
			continue
		}

		approvalType := step.ApprovalType
		if approvalType == "" {
			approvalType = entity.ApprovalTypeApprove
		}
		if !entity.IsValidApprovalType(approvalType) {
			return nil, apperror.New(apperror.KindInvalidLineDefinition,
				"setting %d: unknown approval type %q", setting.ID, step.ApprovalType)
		}

		duplicate := lo.ContainsBy(slots, func(l *entity.ApprovalLine) bool {
			return l.ApprovalLevel == step.Level && l.ApproverEmployeeID == approver.ID
		})
		if duplicate {
			continue
		}

		slots = append(slots, &entity.ApprovalLine{
			ApprovalLevel:      step.Level,
			SortOrder:          step.SortOrder,
			ApprovalType:       approvalType,
			ApproverEmployeeID: approver.ID,
			IsRequired:         step.Required,
		})
	}

	slots = compactLevels(slots)
	if len(slots) == 0 {
		return nil, apperror.New(apperror.KindEmptyApprovalLine,
			"setting %d resolved to no approvers for employee %d", setting.ID, requester.EmployeeID)
	}

	if err := assignSortOrders(slots); err != nil {
		return nil, err
	}
	return finalizeLine(form, slots, setting.ID)
}

func (r *lineResolverImpl) expandStep(ctx context.Context, step entity.TemplateStep, chain []entity.ChainEntry) (*entity.Employee, error) {
	switch step.RefKind {
	case entity.RefManager:
		depth := step.Depth
		if depth < 1 {
			depth = 1
		}
		entry, ok := lo.Find(chain, func(c entity.ChainEntry) bool { return c.Depth == depth })
		if !ok {
			return nil, nil
		}
		return entry.Employee, nil
	case entity.RefPosition:
		entry, ok := lo.Find(chain, func(c entity.ChainEntry) bool {
			return c.Employee != nil && c.Employee.PositionCode == step.PositionCode
		})
		if !ok {
			return nil, nil
		}
		return entry.Employee, nil
	case entity.RefEmployee:
		emp, err := r.directory.GetEmployee(ctx, step.EmployeeID)
		if err != nil {
			return nil, fmt.Errorf("load employee %d: %w", step.EmployeeID, err)
		}
		return emp, nil
	default:
		return nil, apperror.New(apperror.KindInvalidLineDefinition, "unknown approver reference %q", step.RefKind)
	}
}

// settingMatches treats nil selectors as wildcards. A bounded setting never
// matches a document without an amount.
func settingMatches(s *entity.ApprovalSetting, formID int64, req RequesterContext) bool {
	if s.FormID != nil && *s.FormID != formID {
		return false
	}
	if s.CompanyID != nil && *s.CompanyID != req.CompanyID {
		return false
	}
	if s.DepartmentID != nil && *s.DepartmentID != req.DepartmentID {
		return false
	}
	if s.MinAmount == nil && s.MaxAmount == nil {
		return true
	}
	if req.Amount == nil {
		return false
	}
	if s.MinAmount != nil && *req.Amount < *s.MinAmount {
		return false
	}
	if s.MaxAmount != nil && *req.Amount >= *s.MaxAmount {
		return false
	}
	return true
}

// compactLevels drops levels left without a blocking slot and renumbers the
// remaining levels contiguously from 1.
func compactLevels(slots []*entity.ApprovalLine) []*entity.ApprovalLine {
	byLevel := lo.GroupBy(slots, func(l *entity.ApprovalLine) int { return l.ApprovalLevel })
	levels := lo.Keys(byLevel)
	sort.Ints(levels)

	out := make([]*entity.ApprovalLine, 0, len(slots))
	next := 1
	for _, level := range levels {
		group := byLevel[level]
		if !lo.ContainsBy(group, func(l *entity.ApprovalLine) bool { return l.Blocks() }) {
			continue
		}
		for _, l := range group {
			l.ApprovalLevel = next
			out = append(out, l)
		}
		next++
	}
	return out
}

func assignSortOrders(slots []*entity.ApprovalLine) error {
	byLevel := lo.GroupBy(slots, func(l *entity.ApprovalLine) int { return l.ApprovalLevel })
	for level, group := range byLevel {
		used := map[int]bool{}
		highest := 0
		for _, l := range group {
			if l.SortOrder == 0 {
				continue
			}
			if used[l.SortOrder] {
				return apperror.New(apperror.KindInvalidLineDefinition,
					"level %d: duplicate sort order %d", level, l.SortOrder)
			}
			used[l.SortOrder] = true
			highest = lo.Max([]int{highest, l.SortOrder})
		}
		for _, l := range group {
			if l.SortOrder == 0 {
				highest++
				l.SortOrder = highest
			}
		}
	}
	return nil
}

// finalizeLine checks level structure and sets the parallel flags and ordering
func finalizeLine(form *entity.ApprovalForm, slots []*entity.ApprovalLine, settingID int64) (*ResolvedLine, error) {
	byLevel := lo.GroupBy(slots, func(l *entity.ApprovalLine) int { return l.ApprovalLevel })
	total := lo.Max(lo.Keys(byLevel))

	for level := 1; level <= total; level++ {
		group, ok := byLevel[level]
		if !ok {
			return nil, apperror.New(apperror.KindInvalidLineDefinition, "levels must be contiguous from 1: level %d is missing", level)
		}
		blocking := lo.CountBy(group, func(l *entity.ApprovalLine) bool { return l.Blocks() })
		if blocking == 0 {
			return nil, apperror.New(apperror.KindInvalidLineDefinition, "level %d has no required approver", level)
		}
		for _, l := range group {
			l.IsParallel = blocking >= 2
			l.ApprovalStatus = entity.LineStatusPending
		}
	}

	if form.MaxLevels > 0 && total > form.MaxLevels {
		return nil, apperror.New(apperror.KindInvalidLineDefinition,
			"form %s allows at most %d levels, line has %d", form.Code, form.MaxLevels, total)
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].ApprovalLevel != slots[j].ApprovalLevel {
			return slots[i].ApprovalLevel < slots[j].ApprovalLevel
		}
		return slots[i].SortOrder < slots[j].SortOrder
	})

	return &ResolvedLine{Slots: slots, TotalLevel: total, SettingID: settingID}, nil
}
