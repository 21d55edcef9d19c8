package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/dat-progress-api/internal/models"
	appErrors "github.com/noah-isme/dat-progress-api/pkg/errors"
	"github.com/noah-isme/dat-progress-api/pkg/storage"
)

type rosterStub struct {
	state models.LedgerState
	err   error
}

func (r rosterStub) Snapshot(ctx context.Context, accountID string) (models.LedgerState, error) {
	return r.state, r.err
}

func exportRoster() models.LedgerState {
	return models.LedgerState{Students: []models.Student{
		{ID: "SV001", FullName: "Nguyễn Văn An", LicenseClass: models.LicenseB2, DateOfBirth: "2000-05-01", Phone: "0901",
			TargetKm: 810, TargetHours: 20, TargetNightHours: 1, TargetAutomaticHours: 1, CurrentKm: 450.5, CurrentHours: 9, CurrentAutomaticHours: 0.5},
		{ID: "SV002", FullName: "Lê Thị Hoa", LicenseClass: models.LicenseB1, TargetKm: 710, TargetHours: 12, TargetNightHours: 1, CurrentKm: 10},
	}}
}

func newExportServiceForTest(t *testing.T, roster rosterSource) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(roster, store, signer, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop(), nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestBuildRosterDataset(t *testing.T) {
	dataset := BuildRosterDataset(exportRoster().Students, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, []string{"Ma HV", "Ho Ten", "Hang", "Ngay Sinh", "SDT", "Km", "Gio", "Dem", "Auto"}, dataset.Headers)
	assert.Equal(t, "Ngày xuất: 5/3/2024", dataset.Subtitle)
	require.Len(t, dataset.Rows, 2)
	assert.Equal(t, "450.5/810", dataset.Rows[0]["Km"])
	assert.Equal(t, "0.5/1", dataset.Rows[0]["Auto"])
	assert.Equal(t, "B cơ khí", dataset.Rows[0]["Hang"])
	assert.Equal(t, "N/A", dataset.Rows[1]["Auto"])
	assert.Equal(t, "0/1", dataset.Rows[1]["Dem"])
}

func TestExportServiceCSVRoundTrip(t *testing.T) {
	svc := newExportServiceForTest(t, rosterStub{state: exportRoster()})
	ctx := context.Background()

	result, err := svc.Export(ctx, "acc-1", models.StudentFilter{LicenseClass: models.LicenseB2}, models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)
	assert.Equal(t, "danh-sach-hoc-vien_20240305_100000.csv", result.Filename)
	require.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))

	token := strings.TrimPrefix(result.URL, "/api/v1/export/")
	download, err := svc.ResolveDownload(ctx, token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, models.ExportFormatCSV, download.Format)

	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(body), "SV001,Nguyễn Văn An,B cơ khí")
	assert.NotContains(t, string(body), "SV002")
}

func TestExportServicePDF(t *testing.T) {
	svc := newExportServiceForTest(t, rosterStub{state: exportRoster()})

	result, err := svc.Export(context.Background(), "acc-1", models.StudentFilter{}, models.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)

	download, err := svc.ResolveDownload(context.Background(), strings.TrimPrefix(result.URL, "/api/v1/export/"))
	require.NoError(t, err)
	defer download.File.Close()
	head := make([]byte, 4)
	_, err = io.ReadFull(download.File, head)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(head, []byte("%PDF")))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := newExportServiceForTest(t, rosterStub{state: exportRoster()})

	_, err := svc.Export(context.Background(), "acc-1", models.StudentFilter{}, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportServiceRejectsBadToken(t *testing.T) {
	svc := newExportServiceForTest(t, rosterStub{state: exportRoster()})

	_, err := svc.ResolveDownload(context.Background(), "not.a.valid.token")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "a-b_c", sanitizeFilename("a/b c"))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 150)), 100)
}
