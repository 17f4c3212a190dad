package postgres

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// ErrNotFound is the sentinel wrapped by every postgres repository lookup miss
var ErrNotFound = interfaces.ErrNotFound

type Postgres struct {
	db          *gorm.DB
	credentials *credentialsRepository
	user        *userRepository
	category    *categoryRepository
	assignment  *assignmentRepository
	webhookLog  *webhookLogRepository
}

var _ interfaces.Repository = &Postgres{}

type config struct {
	tablePrefix string
	gormLogger  logger.Interface
}

type Option func(*config)

// WithTablePrefix prefixes every table name, used to isolate test runs
func WithTablePrefix(prefix string) Option {
	return func(c *config) {
		c.tablePrefix = prefix
	}
}

// WithGormLogger replaces the silent default gorm logger
func WithGormLogger(l logger.Interface) Option {
	return func(c *config) {
		c.gormLogger = l
	}
}

func New(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	cfg := &config{gormLogger: logger.Discard}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger:         cfg.gormLogger,
		NamingStrategy: schema.NamingStrategy{TablePrefix: cfg.tablePrefix},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open postgres")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get sql.DB from gorm")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to ping postgres")
	}

	return &Postgres{
		db:          db,
		credentials: &credentialsRepository{db: db},
		user:        &userRepository{db: db},
		category:    &categoryRepository{db: db},
		assignment:  &assignmentRepository{db: db},
		webhookLog:  &webhookLogRepository{db: db},
	}, nil
}

// Migrate creates or updates every table and index
func (p *Postgres) Migrate(ctx context.Context) error {
	if err := p.db.WithContext(ctx).AutoMigrate(
		&credentialsRecord{},
		&userRecord{},
		&categoryRecord{},
		&assignmentRecord{},
		&webhookLogRecord{},
	); err != nil {
		return goerr.Wrap(err, "failed to migrate postgres schema")
	}
	return nil
}

// DropAll drops every table. Only used to clean up test runs.
func (p *Postgres) DropAll(ctx context.Context) error {
	if err := p.db.WithContext(ctx).Migrator().DropTable(
		&credentialsRecord{},
		&userRecord{},
		&categoryRecord{},
		&assignmentRecord{},
		&webhookLogRecord{},
	); err != nil {
		return goerr.Wrap(err, "failed to drop postgres tables")
	}
	return nil
}

func (p *Postgres) Credentials() interfaces.CredentialsRepository {
	return p.credentials
}

func (p *Postgres) User() interfaces.UserRepository {
	return p.user
}

func (p *Postgres) Category() interfaces.CategoryRepository {
	return p.category
}

func (p *Postgres) Assignment() interfaces.AssignmentRepository {
	return p.assignment
}

func (p *Postgres) WebhookLog() interfaces.WebhookLogRepository {
	return p.webhookLog
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return goerr.Wrap(err, "failed to get sql.DB from gorm")
	}
	return sqlDB.Close()
}
