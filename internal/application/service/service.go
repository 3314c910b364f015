package service

import (
	"time"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/domain/apperror"
	"go.uber.org/zap"
)

// Repositories bundles the persistence ports the services depend on
type Repositories struct {
	Documents   port.DocumentRepository
	Lines       port.LineRepository
	History     port.HistoryRepository
	Delegations port.DelegationRepository
	Settings    port.SettingRepository
	Forms       port.FormRepository
	Attachments port.AttachmentRepository
	Sequences   port.SequenceRepository
	Directory   port.Directory
	Tx          port.TransactionManager
}

// Options tunes time handling and pagination
type Options struct {
	Location        *time.Location // numbering periods and year filters
	DefaultPageSize int
	MaxPageSize     int
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = 20
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = 100
	}
	if o.MaxPageSize < o.DefaultPageSize {
		o.MaxPageSize = o.DefaultPageSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

const internalErrorMessage = "internal error, the operation was not applied"

// classify passes classified errors through and turns anything else into
// KindInternal, logging the full context once.
func classify(logger *zap.Logger, op string, err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}

	kind := apperror.KindOf(err)
	if kind != apperror.KindInternal {
		logger.Debug("Operation rejected",
			append(fields, zap.String("operation", op), zap.String("kind", string(kind)), zap.String("reason", err.Error()))...)
		return err
	}

	logger.Error("Operation failed",
		append(fields, zap.String("operation", op), zap.Time("at", time.Now()), zap.Error(err))...)
	if _, ok := err.(*apperror.Error); ok {
		return err
	}
	return apperror.Wrap(apperror.KindInternal, err, internalErrorMessage)
}
