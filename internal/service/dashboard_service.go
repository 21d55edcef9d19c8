package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dat-progress-api/internal/dto"
	"github.com/noah-isme/dat-progress-api/internal/ledger"
	"github.com/noah-isme/dat-progress-api/internal/models"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
)

type dashboardSource interface {
	Snapshot(ctx context.Context, accountID string) (models.LedgerState, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the account overview.
type DashboardService struct {
	ledgers dashboardSource
	cache   *CacheService
	logger  *zap.Logger
	now     func() time.Time
	cfg     DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(ledgers dashboardSource, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{ledgers: ledgers, cache: cache, logger: logger, now: time.Now, cfg: cfg}
}

// Summary returns the dashboard of an account and indicates cache utilisation.
// Entries are keyed by day because notifications depend on today's date.
func (s *DashboardService) Summary(ctx context.Context, accountID string) (*dto.DashboardResponse, bool, error) {
	if accountID == "" {
		return nil, false, appErrors.ErrUnauthorized
	}
	today := s.now()
	cacheKey := DashboardKey(accountID, today)
	if summary, hit := s.tryCache(ctx, cacheKey); hit {
		return summary, true, nil
	}

	state, err := s.ledgers.Snapshot(ctx, accountID)
	if err != nil {
		return nil, false, err
	}
	summary := ComposeDashboard(state, today)
	s.persistCache(ctx, cacheKey, summary)
	return summary, false, nil
}

// ComposeDashboard aggregates a ledger state as seen on today.
func ComposeDashboard(state models.LedgerState, today time.Time) *dto.DashboardResponse {
	resp := &dto.DashboardResponse{
		Date:          today.Format(ledger.DateLayout),
		ByClass:       make([]dto.ClassCount, 0, len(models.LicenseClasses)),
		Progress:      make([]dto.StudentProgressItem, 0, len(state.Students)),
		Course:        state.CourseInfo,
		Notifications: ledger.CourseNotifications(state.CourseInfo, today),
		HistoryCount:  len(state.CourseHistory),
	}
	resp.Course.Students = nil

	perClass := make(map[models.LicenseClass]int, len(models.LicenseClasses))
	for _, student := range state.Students {
		resp.Totals.Students++
		switch ledger.ClassifyStatus(student) {
		case models.StatusCompleted:
			resp.Totals.Completed++
		case models.StatusAlmostDone:
			resp.Totals.Almost++
		default:
			resp.Totals.InProgress++
		}
		perClass[student.LicenseClass]++
		resp.Progress = append(resp.Progress, dto.StudentProgressItem{
			StudentID:   student.ID,
			DisplayName: displayName(student.FullName),
			CurrentKm:   student.CurrentKm,
			TargetKm:    student.TargetKm,
		})
	}
	for _, class := range models.LicenseClasses {
		resp.ByClass = append(resp.ByClass, dto.ClassCount{LicenseClass: class, Label: "Hạng " + class.Label(), Count: perClass[class]})
	}
	return resp
}

// displayName is the last word of a full name, which is the given name in Vietnamese.
func displayName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func (s *DashboardService) tryCache(ctx context.Context, key string) (*dto.DashboardResponse, bool) {
	if !s.cache.Enabled() {
		return nil, false
	}
	var cached dto.DashboardResponse
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Debug("dashboard cache read skipped", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !hit {
		return nil, false
	}
	return &cached, true
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}
