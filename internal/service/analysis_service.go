package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/noah-isme/dat-progress-api/internal/models"
	"github.com/noah-isme/dat-progress-api/pkg/advisor"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
	"github.com/noah-isme/dat-progress-api/pkg/jobs"
)

// AnalysisJobType labels advisor jobs on the worker queue.
const AnalysisJobType = "student_analysis"

const (
	advisorEmptyText    = "Không thể tạo nhận xét vào lúc này."
	advisorFallbackText = "Đã xảy ra lỗi khi phân tích dữ liệu. Vui lòng thử lại sau."
	analysisRetention   = time.Hour
	sanitizePasses      = 4
)

type studentSource interface {
	StudentSnapshot(ctx context.Context, accountID, studentID string) (models.Student, error)
}

type textGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type analysisPayload struct {
	AccountID string
	Student   models.Student
}

// AnalysisService runs narrative advisor requests in the background. The
// ledger stays usable while a request is outstanding.
type AnalysisService struct {
	ledgers    studentSource
	advisor    textGenerator
	dispatcher jobDispatcher
	metrics    *MetricsService
	logger     *zap.Logger
	language   string
	policy     *bluemonday.Policy
	now        func() time.Time

	mu   sync.Mutex
	jobs map[string]*models.AnalysisJob
}

// NewAnalysisService constructs the service. SetDispatcher must be called
// before Request when dispatcher is nil.
func NewAnalysisService(ledgers studentSource, generator textGenerator, dispatcher jobDispatcher, metrics *MetricsService, logger *zap.Logger, language string) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{
		ledgers:    ledgers,
		advisor:    generator,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		language:   language,
		policy:     bluemonday.StrictPolicy(),
		now:        time.Now,
		jobs:       make(map[string]*models.AnalysisJob),
	}
}

// SetDispatcher attaches the queue whose handler calls Process.
func (s *AnalysisService) SetDispatcher(dispatcher jobDispatcher) {
	s.dispatcher = dispatcher
}

// Request snapshots the student and queues an advisor call.
func (s *AnalysisService) Request(ctx context.Context, accountID, studentID string) (*models.AnalysisJob, error) {
	student, err := s.ledgers.StudentSnapshot(ctx, accountID, studentID)
	if err != nil {
		return nil, err
	}
	if s.dispatcher == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "analysis queue not configured")
	}

	now := s.now().UTC()
	job := &models.AnalysisJob{
		ID:        uuid.NewString(),
		AccountID: accountID,
		StudentID: student.ID,
		Status:    models.AnalysisQueued,
		CreatedAt: now,
	}

	s.mu.Lock()
	s.pruneLocked(now)
	s.jobs[job.ID] = job
	snapshot := *job
	s.mu.Unlock()

	err = s.dispatcher.Enqueue(jobs.Job{
		ID:       job.ID,
		Type:     AnalysisJobType,
		Payload:  analysisPayload{AccountID: accountID, Student: student},
		Enqueued: now,
	})
	if err != nil {
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue analysis")
	}

	s.logger.Info("analysis queued", zap.String("job_id", job.ID), zap.String("account_id", accountID), zap.String("student_id", student.ID))
	return &snapshot, nil
}

// Get returns a job owned by the account.
func (s *AnalysisService) Get(ctx context.Context, accountID, jobID string) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.AccountID != accountID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "analysis not found")
	}
	snapshot := *job
	return &snapshot, nil
}

// Process is the queue handler. Transport failures are returned so the
// queue can retry; GiveUp records the fallback once retries run out.
func (s *AnalysisService) Process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(analysisPayload)
	if !ok {
		return fmt.Errorf("unexpected analysis payload %T", job.Payload)
	}
	s.setStatus(job.ID, models.AnalysisProcessing)

	start := time.Now()
	text, err := s.advisor.Generate(ctx, BuildPrompt(payload.Student, s.language))
	s.metrics.ObserveAdvisorCall(err, time.Since(start))

	switch {
	case err == nil:
		s.finish(ctx, job.ID, payload, s.sanitize(text), "")
	case errors.Is(err, advisor.ErrEmptyResponse):
		s.finish(ctx, job.ID, payload, advisorEmptyText, "")
	case errors.Is(err, advisor.ErrNotConfigured):
		s.logger.Warn("advisor not configured", zap.String("job_id", job.ID))
		s.finish(ctx, job.ID, payload, advisorFallbackText, appErrors.ErrAdvisorUnavailable.Code)
	default:
		s.logger.Warn("advisor call failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		return err
	}
	return nil
}

// GiveUp records the fallback text for a job whose retries are exhausted.
func (s *AnalysisService) GiveUp(job jobs.Job, err error) {
	payload, ok := job.Payload.(analysisPayload)
	if !ok {
		return
	}
	s.logger.Warn("analysis abandoned", zap.String("job_id", job.ID), zap.Error(err))
	s.finish(context.Background(), job.ID, payload, advisorFallbackText, appErrors.ErrAdvisorUnavailable.Code)
}

// finish applies a result only when the student still exists.
func (s *AnalysisService) finish(ctx context.Context, jobID string, payload analysisPayload, text, code string) {
	status := models.AnalysisFinished
	if _, err := s.ledgers.StudentSnapshot(ctx, payload.AccountID, payload.Student.ID); err != nil {
		if !errors.Is(err, appErrors.ErrStudentNotFound) {
			s.logger.Warn("analysis owner check failed", zap.String("job_id", jobID), zap.Error(err))
		} else {
			s.logger.Warn("analysis discarded, student removed", zap.String("job_id", jobID), zap.String("student_id", payload.Student.ID))
		}
		status = models.AnalysisDiscarded
		text = ""
		code = appErrors.ErrStudentNotFound.Code
	}

	finishedAt := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	job.Status = status
	job.Text = text
	job.ErrorCode = code
	job.FinishedAt = &finishedAt
}

func (s *AnalysisService) setStatus(jobID string, status models.AnalysisStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		job.Status = status
	}
}

func (s *AnalysisService) pruneLocked(now time.Time) {
	for id, job := range s.jobs {
		if job.FinishedAt != nil && now.Sub(*job.FinishedAt) > analysisRetention {
			delete(s.jobs, id)
		}
	}
}

// sanitize strips markup from advisor output and returns plain text.
// Decoded entities are sanitized again until nothing changes, so an escaped
// tag cannot survive while a literal "<" in prose does.
func (s *AnalysisService) sanitize(text string) string {
	out := text
	for i := 0; i < sanitizePasses; i++ {
		decoded := html.UnescapeString(s.policy.Sanitize(out))
		if decoded == out {
			return strings.TrimSpace(out)
		}
		out = decoded
	}
	return strings.TrimSpace(s.policy.Sanitize(out))
}

// BuildPrompt renders the advisor request for one student.
func BuildPrompt(student models.Student, language string) string {
	if language == "" || strings.EqualFold(language, "vietnamese") {
		language = "tiếng Việt"
	}

	var b strings.Builder
	b.WriteString("Bạn là một trợ lý ảo thông minh chuyên phân tích dữ liệu đào tạo lái xe (DAT).\n")
	fmt.Fprintf(&b, "Hãy phân tích tiến độ của học viên sau đây và đưa ra nhận xét ngắn gọn, hữu ích (dưới 150 từ) bằng %s.\n\n", language)
	b.WriteString("Thông tin học viên:\n")
	fmt.Fprintf(&b, "- Tên: %s\n", student.FullName)
	fmt.Fprintf(&b, "- Hạng bằng: %s\n", student.LicenseClass.Label())
	fmt.Fprintf(&b, "- Mục tiêu chung: %s km và %s giờ.\n", formatNumber(student.TargetKm), formatNumber(student.TargetHours))
	fmt.Fprintf(&b, "- Hiện tại chung: %s km và %s giờ.\n", formatNumber(student.CurrentKm), formatNumber(student.CurrentHours))
	fmt.Fprintf(&b, "- Giờ ban đêm: %s/%s giờ.\n", formatNumber(student.CurrentNightHours), formatNumber(student.TargetNightHours))
	if student.TargetAutomaticHours > 0 {
		fmt.Fprintf(&b, "- Giờ xe số tự động: %s/%s giờ.\n", formatNumber(student.CurrentAutomaticHours), formatNumber(student.TargetAutomaticHours))
	}
	b.WriteString("\nHãy đưa ra lời khuyên cụ thể. Nếu họ thiếu giờ đêm hoặc giờ tự động (đối với B2/C1), hãy nhắc nhở ưu tiên.\n")
	b.WriteString("Định dạng kết quả trả về dưới dạng Markdown.")
	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
