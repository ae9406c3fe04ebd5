// Package datastore persists succeeded generation records so the generation
// cache survives restarts. SQLite and MySQL are supported through gorm.
package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/generation"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/observability/metrics"
)

// DefaultSlowQueryThreshold is the duration after which a statement is
// logged as slow
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// saveAttempts bounds retries of lock contention on save
const saveAttempts = 2

// Store implements generation.Store on a gorm database.
type Store struct {
	db      *gorm.DB
	dialect string
	metrics *metrics.DatastoreMetrics
	log     logger.Logger
}

var _ generation.Store = (*Store)(nil)

// Open connects to the configured database and migrates the schema.
func Open(settings *conf.DatastoreSettings, m *metrics.DatastoreMetrics, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Global().Module("datastore")
	}

	var (
		dialector gorm.Dialector
		target    string
		err       error
	)
	switch settings.Type {
	case "sqlite", "":
		dialector, target, err = sqliteDialector(settings.SQLite.Path)
	case "mysql":
		dialector, target, err = mysqlDialector(settings.MySQL.DSN)
	default:
		err = errors.Newf("unsupported datastore type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, DefaultSlowQueryThreshold),
	})
	if err != nil {
		return nil, dbError(err, "open", "target", target)
	}
	s := &Store{db: db, dialect: dialector.Name(), metrics: m, log: log}

	if err := db.AutoMigrate(&GeneratedImage{}); err != nil {
		_ = s.Close()
		return nil, dbError(err, "migrate", "dialect", s.dialect)
	}
	log.Info("datastore ready",
		logger.String("dialect", s.dialect),
		logger.String("target", target))
	return s, nil
}

// Dialect returns the gorm dialect name, "sqlite" or "mysql".
func (s *Store) Dialect() string { return s.dialect }

// SaveSucceeded upserts the artifact by its cache key.
func (s *Store) SaveSucceeded(ctx context.Context, a generation.Artifact) error {
	start := time.Now()
	var err error
	for attempt := range saveAttempts {
		row := fromArtifact(&a)
		err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"url", "mime_type", "provider", "prompt", "updated_at"}),
		}).Create(&row).Error
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			break
		}
		s.log.Debug("retrying contended save",
			logger.String("key", a.Key),
			logger.Int("attempt", attempt+1),
			logger.Error(err))
	}
	s.record("save", err, start)
	if err != nil {
		return dbError(err, "save", "key", a.Key)
	}
	return nil
}

// LoadSucceeded returns every stored artifact, oldest first.
func (s *Store) LoadSucceeded(ctx context.Context) ([]generation.Artifact, error) {
	start := time.Now()
	var rows []GeneratedImage
	err := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&rows).Error
	s.record("load", err, start)
	if err != nil {
		return nil, dbError(err, "load")
	}

	out := make([]generation.Artifact, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].artifact())
	}
	s.metrics.RecordLoaded(len(out))
	return out, nil
}

// Count returns the number of stored artifacts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&GeneratedImage{}).Count(&n).Error; err != nil {
		return 0, dbError(err, "count")
	}
	return n, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbError(err, "ping")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping")
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	return nil
}

func (s *Store) record(op string, err error, start time.Time) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	s.metrics.RecordOperation(op, status, time.Since(start).Seconds())
}

func isRetryable(err error) bool {
	return isSQLiteBusy(err) || isMySQLRetryable(err)
}

// dbError creates a database error with context pairs
func dbError(err error, operation string, kv ...string) error {
	b := errors.New(fmt.Errorf("datastore %s: %w", operation, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)
	for i := 0; i+1 < len(kv); i += 2 {
		b = b.Context(kv[i], kv[i+1])
	}
	return b.Build()
}
