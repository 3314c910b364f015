package container

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/application/service"
	"github.com/garyjia/e-approval/internal/config"
	"github.com/garyjia/e-approval/internal/infrastructure/export"
	"github.com/garyjia/e-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/e-approval/internal/infrastructure/notification"
	"github.com/garyjia/e-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/e-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/e-approval/migrations"
	"github.com/garyjia/e-approval/pkg/database"
)

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Approval   service.ApprovalService
	Query      service.QueryService
	Delegation service.DelegationService
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// ProvideRepositories creates all repositories over one connection pool.
func ProvideRepositories(db *database.DB, logger *zap.Logger) service.Repositories {
	return service.Repositories{
		Documents:   repository.NewDocumentRepository(db.DB, logger),
		Lines:       repository.NewLineRepository(db.DB, logger),
		History:     repository.NewHistoryRepository(db.DB, logger),
		Delegations: repository.NewDelegationRepository(db.DB, logger),
		Settings:    repository.NewSettingRepository(db.DB, logger),
		Forms:       repository.NewFormRepository(db.DB, logger),
		Attachments: repository.NewAttachmentRepository(db.DB, logger),
		Sequences:   repository.NewSequenceRepository(db.DB, logger),
		Directory:   repository.NewDirectoryRepository(db.DB, logger),
		Tx:          sqlite.NewDB(db.DB, logger),
	}
}

// ProvideNotifier fans notifications out to the log and, when enabled, to Lark.
func ProvideNotifier(cfg config.LarkConfig, directory port.Directory, logger *zap.Logger) *notification.Dispatcher {
	d := notification.NewDispatcher(logger)
	d.Subscribe(notification.AllEvents, "log", notification.NewLogNotifier(logger))

	if !cfg.Enabled {
		logger.Info("Lark disabled, notifications go to the log only")
		return d
	}

	client := lark.NewClient(lark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		ReceiveIDType: cfg.ReceiveIDType,
	}, logger)
	d.Subscribe(notification.AllEvents, "lark", lark.NewNotifier(client, directory, cfg.ReceiveIDType, logger))
	return d
}

// ProvideServices wires the application services.
func ProvideServices(repos service.Repositories, notifier port.Notifier, cfg config.ApprovalConfig, loc *time.Location, logger *zap.Logger) *ServiceBundle {
	opts := service.Options{
		Location:        loc,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	}
	delegation := service.NewDelegationResolver(repos.Delegations)

	return &ServiceBundle{
		Approval: service.NewApprovalService(repos,
			service.NewLineResolver(repos.Settings, repos.Directory, logger),
			delegation,
			service.NewNumberingService(repos.Sequences, loc),
			notifier, opts, logger),
		Query:      service.NewQueryService(repos, delegation, export.NewXLSXExporter(logger), opts, logger),
		Delegation: service.NewDelegationService(repos, opts, logger),
	}
}
