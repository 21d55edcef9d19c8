package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/dat-progress-api/internal/models"
	"github.com/noah-isme/dat-progress-api/pkg/advisor"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
	"github.com/noah-isme/dat-progress-api/pkg/jobs"
)

type stubStudentSource struct {
	students map[string]models.Student
}

func (s *stubStudentSource) StudentSnapshot(ctx context.Context, accountID, studentID string) (models.Student, error) {
	student, ok := s.students[accountID+"/"+studentID]
	if !ok {
		return models.Student{}, appErrors.ErrStudentNotFound
	}
	return student, nil
}

type stubGenerator struct {
	text    string
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.text, g.err
}

type recordingDispatcher struct {
	jobs []jobs.Job
	err  error
}

func (d *recordingDispatcher) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func newAnalysisFixture() (*AnalysisService, *stubStudentSource, *stubGenerator, *recordingDispatcher) {
	source := &stubStudentSource{students: map[string]models.Student{
		"acc/SV1": {ID: "SV1", FullName: "Trần Văn Nam", LicenseClass: models.LicenseB2, TargetKm: 810, TargetHours: 20, TargetNightHours: 1, TargetAutomaticHours: 1, CurrentKm: 120.5, CurrentHours: 4},
	}}
	generator := &stubGenerator{text: "Tiến độ tốt."}
	dispatcher := &recordingDispatcher{}
	svc := NewAnalysisService(source, generator, dispatcher, NewMetricsService(), zap.NewNop(), "Vietnamese")
	return svc, source, generator, dispatcher
}

func TestAnalysisServiceRequestAndProcess(t *testing.T) {
	svc, _, generator, dispatcher := newAnalysisFixture()
	ctx := context.Background()

	job, err := svc.Request(ctx, "acc", "SV1")
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisQueued, job.Status)
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, AnalysisJobType, dispatcher.jobs[0].Type)

	require.NoError(t, svc.Process(ctx, dispatcher.jobs[0]))

	done, err := svc.Get(ctx, "acc", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisFinished, done.Status)
	assert.Equal(t, "Tiến độ tốt.", done.Text)
	assert.Empty(t, done.ErrorCode)
	assert.NotNil(t, done.FinishedAt)

	require.Len(t, generator.prompts, 1)
	assert.Contains(t, generator.prompts[0], "Trần Văn Nam")
	assert.Contains(t, generator.prompts[0], "B cơ khí")
	assert.Contains(t, generator.prompts[0], "120.5 km")
}

func TestAnalysisServiceRequestUnknownStudent(t *testing.T) {
	svc, _, _, dispatcher := newAnalysisFixture()

	_, err := svc.Request(context.Background(), "acc", "SV404")
	assert.ErrorIs(t, err, appErrors.ErrStudentNotFound)
	assert.Empty(t, dispatcher.jobs)
}

func TestAnalysisServiceQueueRejection(t *testing.T) {
	svc, _, _, dispatcher := newAnalysisFixture()
	dispatcher.err = jobs.ErrQueueFull

	_, err := svc.Request(context.Background(), "acc", "SV1")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Empty(t, svc.jobs)
}

func TestAnalysisServiceGetChecksOwnership(t *testing.T) {
	svc, _, _, _ := newAnalysisFixture()
	job, err := svc.Request(context.Background(), "acc", "SV1")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "other", job.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAnalysisServiceDiscardsWhenStudentRemoved(t *testing.T) {
	svc, source, _, dispatcher := newAnalysisFixture()
	ctx := context.Background()
	job, err := svc.Request(ctx, "acc", "SV1")
	require.NoError(t, err)

	delete(source.students, "acc/SV1")
	require.NoError(t, svc.Process(ctx, dispatcher.jobs[0]))

	done, err := svc.Get(ctx, "acc", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisDiscarded, done.Status)
	assert.Equal(t, "STUDENT_NOT_FOUND", done.ErrorCode)
	assert.Empty(t, done.Text)
}

func TestAnalysisServiceEmptyResponse(t *testing.T) {
	svc, _, generator, dispatcher := newAnalysisFixture()
	generator.text, generator.err = "", advisor.ErrEmptyResponse
	job, err := svc.Request(context.Background(), "acc", "SV1")
	require.NoError(t, err)

	require.NoError(t, svc.Process(context.Background(), dispatcher.jobs[0]))
	done, _ := svc.Get(context.Background(), "acc", job.ID)
	assert.Equal(t, advisorEmptyText, done.Text)
	assert.Empty(t, done.ErrorCode)
}

func TestAnalysisServiceFailureRetriesThenFallsBack(t *testing.T) {
	svc, _, generator, dispatcher := newAnalysisFixture()
	generator.err = errors.New("503 from upstream")
	job, err := svc.Request(context.Background(), "acc", "SV1")
	require.NoError(t, err)

	procErr := svc.Process(context.Background(), dispatcher.jobs[0])
	require.Error(t, procErr)
	pending, _ := svc.Get(context.Background(), "acc", job.ID)
	assert.Equal(t, models.AnalysisProcessing, pending.Status)

	svc.GiveUp(dispatcher.jobs[0], procErr)
	done, _ := svc.Get(context.Background(), "acc", job.ID)
	assert.Equal(t, models.AnalysisFinished, done.Status)
	assert.Equal(t, advisorFallbackText, done.Text)
	assert.Equal(t, "ADVISOR_UNAVAILABLE", done.ErrorCode)
}

type blockingGenerator struct {
	started chan struct{}
}

func (g *blockingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func TestAnalysisServiceShutdownFinishesQueuedJobs(t *testing.T) {
	source := &stubStudentSource{students: map[string]models.Student{"acc/SV1": {ID: "SV1", FullName: "An", LicenseClass: models.LicenseB1}}}
	generator := &blockingGenerator{started: make(chan struct{}, 1)}
	svc := NewAnalysisService(source, generator, nil, NewMetricsService(), zap.NewNop(), "")
	queue := jobs.NewQueue("analysis", svc.Process, jobs.QueueConfig{Workers: 1, MaxRetries: 2, GiveUp: svc.GiveUp})
	svc.SetDispatcher(queue)
	queue.Start(context.Background())
	ctx := context.Background()

	running, err := svc.Request(ctx, "acc", "SV1")
	require.NoError(t, err)
	<-generator.started
	buffered, err := svc.Request(ctx, "acc", "SV1")
	require.NoError(t, err)

	queue.Stop()

	for _, id := range []string{running.ID, buffered.ID} {
		job, err := svc.Get(ctx, "acc", id)
		require.NoError(t, err)
		assert.Equal(t, models.AnalysisFinished, job.Status)
		assert.Equal(t, advisorFallbackText, job.Text)
		assert.Equal(t, "ADVISOR_UNAVAILABLE", job.ErrorCode)
	}
}

func TestAnalysisServiceNotConfiguredFallsBackImmediately(t *testing.T) {
	svc, _, generator, dispatcher := newAnalysisFixture()
	generator.err = advisor.ErrNotConfigured
	job, err := svc.Request(context.Background(), "acc", "SV1")
	require.NoError(t, err)

	require.NoError(t, svc.Process(context.Background(), dispatcher.jobs[0]))
	done, _ := svc.Get(context.Background(), "acc", job.ID)
	assert.Equal(t, advisorFallbackText, done.Text)
	assert.Equal(t, "ADVISOR_UNAVAILABLE", done.ErrorCode)
}

func TestAnalysisServiceSanitizesMarkup(t *testing.T) {
	svc, _, generator, dispatcher := newAnalysisFixture()
	generator.text = "**Tốt** <script>alert(1)</script><b>chăm chỉ</b> & đều đặn"
	job, err := svc.Request(context.Background(), "acc", "SV1")
	require.NoError(t, err)

	require.NoError(t, svc.Process(context.Background(), dispatcher.jobs[0]))
	done, _ := svc.Get(context.Background(), "acc", job.ID)
	assert.NotContains(t, done.Text, "<")
	assert.NotContains(t, done.Text, "alert")
	assert.Contains(t, done.Text, "**Tốt**")
	assert.Contains(t, done.Text, "chăm chỉ & đều đặn")
}

func TestAnalysisServiceSanitizeKeepsLiteralComparisons(t *testing.T) {
	svc, _, _, _ := newAnalysisFixture()

	assert.Equal(t, "Quãng đường < 80% mục tiêu, cần > 100 km", svc.sanitize("Quãng đường < 80% mục tiêu, cần > 100 km"))
	assert.Equal(t, "Giờ đêm: 0.5 \"chưa đủ\"", svc.sanitize("Giờ đêm: 0.5 \"chưa đủ\""))

	escaped := svc.sanitize("&lt;b&gt;chú ý&lt;/b&gt; &lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, escaped, "<")
	assert.NotContains(t, escaped, "&lt;")
	assert.NotContains(t, escaped, "alert")
	assert.Contains(t, escaped, "chú ý")
}

func TestBuildPromptAutomaticHoursOnlyWithTarget(t *testing.T) {
	b1 := models.Student{FullName: "An", LicenseClass: models.LicenseB1, TargetKm: 710, TargetHours: 12, TargetNightHours: 1}
	b2 := models.Student{FullName: "Bình", LicenseClass: models.LicenseB2, TargetAutomaticHours: 1, CurrentAutomaticHours: 0.5}

	assert.NotContains(t, BuildPrompt(b1, ""), "tự động:")
	assert.Contains(t, BuildPrompt(b1, ""), "bằng tiếng Việt")
	assert.Contains(t, BuildPrompt(b2, "English"), "Giờ xe số tự động: 0.5/1 giờ.")
	assert.True(t, strings.HasSuffix(BuildPrompt(b2, "English"), "Markdown."))
	assert.Contains(t, BuildPrompt(b2, "English"), "bằng English")
}
