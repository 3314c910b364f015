package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/domain/apperror"
)

// NumberingService allocates human-readable document numbers
type NumberingService interface {
	// Allocate returns {FormCode}-{YYYY}{MM}-{seq:04d}. Run it inside the
	// creating transaction so a rollback releases the number.
	Allocate(ctx context.Context, formCode string, date time.Time) (string, error)
}

type numberingServiceImpl struct {
	sequences port.SequenceRepository
	location  *time.Location
}

// NewNumberingService creates a NumberingService whose periods follow loc
func NewNumberingService(sequences port.SequenceRepository, loc *time.Location) NumberingService {
	if loc == nil {
		loc = time.UTC
	}
	return &numberingServiceImpl{
		sequences: sequences,
		location:  loc,
	}
}

func (s *numberingServiceImpl) Allocate(ctx context.Context, formCode string, date time.Time) (string, error) {
	code := strings.TrimSpace(formCode)
	if code == "" {
		return "", apperror.Validation("form code is required for numbering")
	}

	local := date.In(s.location)
	period := fmt.Sprintf("%04d%02d", local.Year(), int(local.Month()))

	seq, err := s.sequences.Next(ctx, code, period)
	if err != nil {
		return "", fmt.Errorf("allocate %s-%s: %w", code, period, err)
	}
	return FormatDocumentNo(code, local, seq), nil
}

// FormatDocumentNo renders a document number for the given period and sequence
func FormatDocumentNo(formCode string, period time.Time, seq int) string {
	return fmt.Sprintf("%s-%04d%02d-%04d", formCode, period.Year(), int(period.Month()), seq)
}
