package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dat-progress-api/internal/ledger"
	"github.com/noah-isme/dat-progress-api/internal/models"
	"github.com/noah-isme/dat-progress-api/internal/repository"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
)

const ledgerKeyPrefix = "dat_app_data_"

type ledgerBlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, blob []byte) error
}

// LedgerServiceConfig seeds the default course of new accounts.
type LedgerServiceConfig struct {
	CourseName   string
	AcademicYear string
}

// LedgerService hosts one progress ledger per account. Every operation on an
// account runs under that account's lock, then persists the full state.
type LedgerService struct {
	store        ledgerBlobStore
	requirements models.Requirements
	cache        *CacheService
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          LedgerServiceConfig
	now          func() time.Time

	mu       sync.Mutex
	accounts map[string]*accountLedger
}

type accountLedger struct {
	mu       sync.Mutex
	ledger   *ledger.Ledger
	degraded bool
}

// NewLedgerService constructs the service. It fails when the requirements
// table does not cover every license class.
func NewLedgerService(store ledgerBlobStore, requirements models.Requirements, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg LedgerServiceConfig) (*LedgerService, error) {
	if err := requirements.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.CourseName == "" {
		cfg.CourseName = "Khóa đào tạo sát hạch"
	}
	return &LedgerService{
		store:        store,
		requirements: requirements,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
		accounts:     make(map[string]*accountLedger),
	}, nil
}

// LedgerKey is the blob key of an account's ledger.
func LedgerKey(accountID string) string {
	return ledgerKeyPrefix + accountID
}

// Open hydrates the account's ledger if it is not already open.
func (s *LedgerService) Open(ctx context.Context, accountID string) error {
	return s.read(ctx, accountID, func(*ledger.Ledger) error { return nil })
}

// Close drops the in-memory ledger of an account. The entry stays in the map
// so requests already holding it keep sharing one lock with later ones.
func (s *LedgerService) Close(accountID string) {
	s.mu.Lock()
	entry, ok := s.accounts[accountID]
	s.mu.Unlock()
	if !ok {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.degraded {
		s.metrics.RecordPersistenceRecovered()
	}
	entry.ledger = nil
	entry.degraded = false
}

// Reload discards the in-memory ledger and hydrates it again from storage.
func (s *LedgerService) Reload(ctx context.Context, accountID string) error {
	entry := s.entry(accountID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.degraded {
		s.metrics.RecordPersistenceRecovered()
	}
	entry.ledger = nil
	entry.degraded = false
	if err := s.hydrate(ctx, accountID, entry); err != nil {
		return err
	}
	if err := s.cache.InvalidateAccount(ctx, accountID); err != nil {
		s.logger.Debug("dashboard cache invalidation skipped", zap.String("account_id", accountID), zap.Error(err))
	}
	return nil
}

// Degraded reports whether the account runs without persistence.
func (s *LedgerService) Degraded(accountID string) bool {
	s.mu.Lock()
	entry, ok := s.accounts[accountID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.degraded
}

// ListStudents returns the filtered roster page with derived status and badges.
func (s *LedgerService) ListStudents(ctx context.Context, accountID string, filter models.StudentFilter) ([]models.StudentView, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
	}
	if filter.LicenseClass != "" && !filter.LicenseClass.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid license class filter")
	}
	page, size := normalisePage(filter.Page, filter.PageSize)

	var views []models.StudentView
	var total int
	err := s.read(ctx, accountID, func(l *ledger.Ledger) error {
		matched := ledger.Filter(l.Students(), filter)
		total = len(matched)
		start := (page - 1) * size
		if start > total {
			start = total
		}
		end := start + size
		if end > total {
			end = total
		}
		course := l.Course()
		today := s.now()
		views = make([]models.StudentView, 0, end-start)
		for _, student := range matched[start:end] {
			views = append(views, ledger.View(student, course, today))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetStudent returns one student view.
func (s *LedgerService) GetStudent(ctx context.Context, accountID, studentID string) (*models.StudentView, error) {
	var view models.StudentView
	err := s.read(ctx, accountID, func(l *ledger.Ledger) error {
		student, ok := l.Student(studentID)
		if !ok {
			return studentNotFound(studentID)
		}
		view = ledger.View(student, l.Course(), s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// StudentSnapshot returns a detached copy of one student.
func (s *LedgerService) StudentSnapshot(ctx context.Context, accountID, studentID string) (models.Student, error) {
	var student models.Student
	err := s.read(ctx, accountID, func(l *ledger.Ledger) error {
		found, ok := l.Student(studentID)
		if !ok {
			return studentNotFound(studentID)
		}
		student = found
		return nil
	})
	return student, err
}

// Snapshot returns a detached copy of the whole ledger state.
func (s *LedgerService) Snapshot(ctx context.Context, accountID string) (models.LedgerState, error) {
	var state models.LedgerState
	err := s.read(ctx, accountID, func(l *ledger.Ledger) error {
		state = l.State()
		return nil
	})
	return state, err
}

// AddStudent validates and adds a student.
func (s *LedgerService) AddStudent(ctx context.Context, accountID string, in models.StudentInput) (*models.StudentView, error) {
	if err := s.validate(in, "invalid student payload"); err != nil {
		return nil, err
	}
	var view models.StudentView
	err := s.mutate(ctx, accountID, "add_student", func(l *ledger.Ledger) (bool, error) {
		student, err := l.AddStudent(in)
		if err != nil {
			return false, err
		}
		view = ledger.View(student, l.Course(), s.now())
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// EditStudent replaces identity, class and contact fields of a student.
func (s *LedgerService) EditStudent(ctx context.Context, accountID, studentID string, in models.StudentInput) (*models.StudentView, error) {
	if err := s.validate(in, "invalid student payload"); err != nil {
		return nil, err
	}
	var view models.StudentView
	err := s.mutate(ctx, accountID, "edit_student", func(l *ledger.Ledger) (bool, error) {
		student, err := l.EditStudent(studentID, in)
		if err != nil {
			return false, err
		}
		view = ledger.View(student, l.Course(), s.now())
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// DeleteStudent removes a student; absent students are a no-op.
func (s *LedgerService) DeleteStudent(ctx context.Context, accountID, studentID string) error {
	return s.mutate(ctx, accountID, "delete_student", func(l *ledger.Ledger) (bool, error) {
		return l.DeleteStudent(studentID), nil
	})
}

// ListSessions returns a student's sessions, newest first.
func (s *LedgerService) ListSessions(ctx context.Context, accountID, studentID string) ([]models.Session, error) {
	var sessions []models.Session
	err := s.read(ctx, accountID, func(l *ledger.Ledger) error {
		found, ok := l.Sessions(studentID)
		if !ok {
			return studentNotFound(studentID)
		}
		sessions = found
		return nil
	})
	return sessions, err
}

// AddSession records a drive for a student.
func (s *LedgerService) AddSession(ctx context.Context, accountID, studentID string, in models.SessionInput) (*models.Session, error) {
	if err := s.validate(in, "invalid session payload"); err != nil {
		return nil, err
	}
	var session models.Session
	err := s.mutate(ctx, accountID, "add_session", func(l *ledger.Ledger) (bool, error) {
		created, err := l.AddSession(studentID, in)
		if err != nil {
			return false, err
		}
		session = created
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes a session; absent records are a no-op.
func (s *LedgerService) DeleteSession(ctx context.Context, accountID, studentID, sessionID string) error {
	return s.mutate(ctx, accountID, "delete_session", func(l *ledger.Ledger) (bool, error) {
		return l.DeleteSession(studentID, sessionID), nil
	})
}

// Course returns the current course.
func (s *LedgerService) Course(ctx context.Context, accountID string) (*models.CourseInfo, error) {
	var course models.CourseInfo
	err := s.read(ctx, accountID, func(l *ledger.Ledger) error {
		course = l.Course()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// UpdateCourse replaces the editable fields of the current course.
func (s *LedgerService) UpdateCourse(ctx context.Context, accountID string, in models.CourseInput) (*models.CourseInfo, error) {
	if err := s.validate(in, "invalid course payload"); err != nil {
		return nil, err
	}
	var course models.CourseInfo
	err := s.mutate(ctx, accountID, "update_course", func(l *ledger.Ledger) (bool, error) {
		updated, err := l.UpdateCourse(in)
		if err != nil {
			return false, err
		}
		course = updated
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// ArchiveCourse snapshots the current course and roster into history.
func (s *LedgerService) ArchiveCourse(ctx context.Context, accountID string) (*models.CourseInfo, error) {
	var entry models.CourseInfo
	err := s.mutate(ctx, accountID, "archive_course", func(l *ledger.Ledger) (bool, error) {
		entry = l.ArchiveCourse()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// History lists archived courses without their rosters.
func (s *LedgerService) History(ctx context.Context, accountID string) ([]models.HistorySummary, error) {
	var rows []models.HistorySummary
	err := s.read(ctx, accountID, func(l *ledger.Ledger) error {
		history := l.History()
		rows = make([]models.HistorySummary, 0, len(history))
		for _, entry := range history {
			rows = append(rows, models.HistorySummary{
				ID:           entry.ID,
				Name:         entry.Name,
				AcademicYear: entry.AcademicYear,
				StartDate:    entry.StartDate,
				EndDate:      entry.EndDate,
				ArchivedAt:   entry.ArchivedAt,
				StudentCount: len(entry.Students),
			})
		}
		return nil
	})
	return rows, err
}

// HistoryEntry returns one archived course with its frozen roster.
func (s *LedgerService) HistoryEntry(ctx context.Context, accountID, id string) (*models.CourseInfo, error) {
	var entry models.CourseInfo
	err := s.read(ctx, accountID, func(l *ledger.Ledger) error {
		found, ok := l.HistoryEntry(id)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "history entry not found")
		}
		entry = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteHistory removes an archived course; absent entries are a no-op.
func (s *LedgerService) DeleteHistory(ctx context.Context, accountID, id string) error {
	return s.mutate(ctx, accountID, "delete_history", func(l *ledger.Ledger) (bool, error) {
		return l.DeleteHistory(id), nil
	})
}

// Notifications computes the course banner for today.
func (s *LedgerService) Notifications(ctx context.Context, accountID string) ([]models.Notification, error) {
	var notes []models.Notification
	err := s.read(ctx, accountID, func(l *ledger.Ledger) error {
		notes = ledger.CourseNotifications(l.Course(), s.now())
		return nil
	})
	return notes, err
}

func (s *LedgerService) entry(accountID string) *accountLedger {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.accounts[accountID]
	if !ok {
		entry = &accountLedger{}
		s.accounts[accountID] = entry
	}
	return entry
}

func (s *LedgerService) read(ctx context.Context, accountID string, fn func(*ledger.Ledger) error) error {
	if accountID == "" {
		return appErrors.ErrUnauthorized
	}
	entry := s.entry(accountID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := s.hydrate(ctx, accountID, entry); err != nil {
		return err
	}
	return fn(entry.ledger)
}

// mutate runs fn and persists when it reports a change. fn must leave the
// ledger untouched when it returns an error.
func (s *LedgerService) mutate(ctx context.Context, accountID, operation string, fn func(*ledger.Ledger) (bool, error)) error {
	if accountID == "" {
		return appErrors.ErrUnauthorized
	}
	entry := s.entry(accountID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := s.hydrate(ctx, accountID, entry); err != nil {
		return err
	}

	changed, err := fn(entry.ledger)
	s.metrics.RecordLedgerOperation(operation, err)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	s.persist(ctx, accountID, entry)
	if err := s.cache.InvalidateAccount(ctx, accountID); err != nil {
		s.logger.Debug("dashboard cache invalidation skipped", zap.String("account_id", accountID), zap.Error(err))
	}
	return nil
}

func (s *LedgerService) hydrate(ctx context.Context, accountID string, entry *accountLedger) error {
	if entry.ledger != nil {
		return nil
	}
	state := s.loadState(ctx, accountID, entry)
	l, err := ledger.New(state, s.requirements, ledger.WithClock(s.now))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open ledger")
	}
	entry.ledger = l
	return nil
}

// loadState never fails: unreadable data falls back to the default state.
func (s *LedgerService) loadState(ctx context.Context, accountID string, entry *accountLedger) models.LedgerState {
	defaultCourse := ledger.DefaultCourse(s.now(), s.cfg.CourseName, s.cfg.AcademicYear)
	start := time.Now()
	raw, err := s.store.Get(ctx, LedgerKey(accountID))
	if errors.Is(err, repository.ErrBlobNotFound) {
		s.metrics.ObserveBlobOperation("get", nil, time.Since(start))
		return ledger.DefaultState(defaultCourse)
	}
	s.metrics.ObserveBlobOperation("get", err, time.Since(start))
	if err != nil {
		s.logger.Warn("ledger read failed, continuing in memory", zap.String("account_id", accountID), zap.Error(err))
		s.markDegraded(entry)
		return ledger.DefaultState(defaultCourse)
	}
	state, err := ledger.Migrate(raw, s.requirements, defaultCourse)
	if err != nil {
		s.logger.Warn("ledger blob unreadable, using defaults", zap.String("account_id", accountID), zap.Error(err))
		return ledger.DefaultState(defaultCourse)
	}
	return state
}

func (s *LedgerService) persist(ctx context.Context, accountID string, entry *accountLedger) {
	if entry.degraded {
		return
	}
	payload, err := json.Marshal(entry.ledger.State())
	if err != nil {
		s.logger.Error("ledger encode failed", zap.String("account_id", accountID), zap.Error(err))
		s.markDegraded(entry)
		return
	}
	start := time.Now()
	err = s.store.Set(ctx, LedgerKey(accountID), payload)
	s.metrics.ObserveBlobOperation("set", err, time.Since(start))
	if err != nil {
		s.logger.Warn("ledger write failed, continuing in memory", zap.String("account_id", accountID), zap.Error(err))
		s.markDegraded(entry)
	}
}

func (s *LedgerService) markDegraded(entry *accountLedger) {
	if entry.degraded {
		return
	}
	entry.degraded = true
	s.metrics.RecordPersistenceFailure()
}

func (s *LedgerService) validate(payload interface{}, message string) error {
	if err := s.validator.Struct(payload); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	return nil
}

func studentNotFound(id string) error {
	return appErrors.Clone(appErrors.ErrStudentNotFound, fmt.Sprintf("student %q not found", id))
}

func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

// PersistenceMeta is the response meta describing the account's storage mode.
func (s *LedgerService) PersistenceMeta(accountID string) map[string]interface{} {
	if s.Degraded(accountID) {
		return map[string]interface{}{"persistence": "degraded"}
	}
	return nil
}
