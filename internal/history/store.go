// SPDX-License-Identifier: MPL-2.0

package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"freezecheck-cli/pkg/types"
)

const busyRetries = 3

// ErrRunNotFound is returned by Get for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

type (
	// Run is one recorded pipeline run.
	Run struct {
		ID          string           `json:"id" yaml:"id" toml:"id"`
		Sample      types.SampleName `json:"sample" yaml:"sample" toml:"sample"`
		PlatformTag string           `json:"platform_tag" yaml:"platform_tag" toml:"platform_tag"`
		Python      string           `json:"python" yaml:"python" toml:"python"`
		Environment string           `json:"environment" yaml:"environment" toml:"environment"`
		DepsMode    string           `json:"deps_mode" yaml:"deps_mode" toml:"deps_mode"`
		ExitCode    types.ExitCode   `json:"exit_code" yaml:"exit_code" toml:"exit_code"`
		Skipped     bool             `json:"skipped,omitempty" yaml:"skipped,omitempty" toml:"skipped,omitempty"`
		Error       string           `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
		StartedAt   time.Time        `json:"started_at" yaml:"started_at" toml:"started_at"`
		FinishedAt  time.Time        `json:"finished_at" yaml:"finished_at" toml:"finished_at"`
		Dirs        []DirResult      `json:"dirs,omitempty" yaml:"dirs,omitempty" toml:"dirs,omitempty"`
	}

	// DirResult is the outcome of one attempted artifact directory.
	DirResult struct {
		Dir      string         `json:"dir" yaml:"dir" toml:"dir"`
		ExitCode types.ExitCode `json:"exit_code" yaml:"exit_code" toml:"exit_code"`
		Records  int            `json:"records" yaml:"records" toml:"records"`
		Skipped  bool           `json:"skipped,omitempty" yaml:"skipped,omitempty" toml:"skipped,omitempty"`
		Error    string         `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
	}

	// Filter narrows List results.
	Filter struct {
		Sample types.SampleName
		Limit  int
	}

	// Option configures a Store.
	Option func(*Store)

	// Store persists runs in a SQLite database.
	Store struct {
		db     *gorm.DB
		now    func() time.Time
		logger *log.Logger
		debug  bool
	}

	// gormLogger routes GORM diagnostics through the harness logger.
	gormLogger struct {
		level  logger.LogLevel
		logger *log.Logger
	}
)

// Duration returns how long the run took.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// WithNow sets the clock used for default timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithDebug logs every SQL statement at debug level.
func WithDebug(debug bool) Option {
	return func(s *Store) { s.debug = debug }
}

// Open opens (creating if needed) the history database at path.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		now:    time.Now,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	level := logger.Silent
	if s.debug {
		level = logger.Info
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		NowFunc: func() time.Time { return s.now().UTC() },
		Logger:  (&gormLogger{logger: s.logger}).LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA foreign_keys=ON")

	if err := db.AutoMigrate(&runModel{}, &dirModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	s.db = db
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record stores run and returns its id. A missing id is generated; missing
// timestamps default to the store clock.
func (s *Store) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = s.now().UTC()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	m := toModel(run)
	err := withRetry(func() error {
		return s.db.WithContext(ctx).Create(&m).Error
	}, busyRetries)
	if err != nil {
		return "", fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	s.logger.Debug("run recorded", "id", run.ID, "sample", run.Sample, "code", run.ExitCode)
	return run.ID, nil
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	var m runModel
	err := s.withDirs(s.db.WithContext(ctx)).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return fromModel(m), nil
}

// List returns runs matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Run, error) {
	q := s.withDirs(s.db.WithContext(ctx)).Order("started_at DESC").Order("id")
	if f.Sample != "" {
		q = q.Where("sample = ?", f.Sample.String())
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var models []runModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	runs := make([]Run, 0, len(models))
	for _, m := range models {
		runs = append(runs, fromModel(m))
	}
	return runs, nil
}

func (s *Store) withDirs(db *gorm.DB) *gorm.DB {
	return db.Preload("Dirs", func(db *gorm.DB) *gorm.DB { return db.Order("position") })
}

// withRetry retries fn while SQLite reports the database busy or locked.
func withRetry(fn func() error, maxRetries int) error {
	var err error
	for i := range maxRetries {
		err = fn()
		if err == nil {
			return nil
		}
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
			time.Sleep(time.Millisecond * time.Duration(50*(i+1)))
			continue
		}
		return err
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level, logger: l.logger}
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		l.logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		l.logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Info {
		return
	}
	sql, rows := fc()
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.logger.Error("history query failed", "err", err, "sql", sql, "rows", rows)
		return
	}
	l.logger.Debug("history query", "duration", time.Since(begin), "sql", sql, "rows", rows)
}
