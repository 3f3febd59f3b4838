package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-workflow-api/internal/dto"
	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/pkg/clock"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
	"github.com/noah-isme/classroom-workflow-api/pkg/export"
	"github.com/noah-isme/classroom-workflow-api/pkg/storage"
)

func newExportFixture(t *testing.T) (*harness, *ExportService) {
	t.Helper()
	h := newHarness(t)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	svc := NewExportService(h.coord, h.coord, files, signer, h.clock, ExportConfig{APIPrefix: "/api/v1", ResultTTL: 2 * time.Hour}, zap.NewNop())
	return h, svc
}

func tokenFromURL(t *testing.T, url string) string {
	t.Helper()
	const prefix = "/api/v1/exports/"
	require.True(t, strings.HasPrefix(url, prefix), url)
	return strings.TrimPrefix(url, prefix)
}

func TestGradebookExportAndDownload(t *testing.T) {
	h, svc := newExportFixture(t)
	ctx := context.Background()
	class := h.seedClass("t1")
	h.admit(t, class.ID, "s1")
	h.admit(t, class.ID, "s2")
	assignment := h.seedAssignment(class.ID, t0.Add(time.Hour), 10)
	_, err := h.coord.SubmitAssignment(ctx, student("s1"), assignment.ID, "work", nil)
	require.NoError(t, err)

	_, err = svc.Generate(ctx, teacher("t2"), dto.ExportRequest{Kind: ExportKindGradebook, ResourceID: assignment.ID, Format: "csv"})
	assert.ErrorIs(t, err, appErrors.ErrNotAuthorized)

	res, err := svc.Generate(ctx, teacher("t1"), dto.ExportRequest{Kind: ExportKindGradebook, ResourceID: assignment.ID, Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "csv", res.Format)
	assert.Equal(t, t0.Add(time.Hour), res.ExpiresAt)

	file, err := svc.Open(tokenFromURL(t, res.DownloadURL))
	require.NoError(t, err)
	defer file.Content.Close()
	assert.Equal(t, export.FormatCSV, file.Format)
	body, err := io.ReadAll(file.Content)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Student ID")
	assert.Contains(t, lines[1], "SUBMITTED")
	assert.Contains(t, lines[2], "PENDING")
}

func TestExamResultsExportXLSX(t *testing.T) {
	h, svc := newExportFixture(t)
	ctx := context.Background()
	class := h.seedClass("t1")
	h.admit(t, class.ID, "s1")
	exam := h.seedExam(class.ID, 30*time.Minute)
	_, err := h.coord.StartExam(ctx, student("s1"), exam.ID, nil)
	require.NoError(t, err)

	res, err := svc.Generate(ctx, teacher("t1"), dto.ExportRequest{Kind: ExportKindExamResults, ResourceID: exam.ID, Format: "xlsx"})
	require.NoError(t, err)
	file, err := svc.Open(tokenFromURL(t, res.DownloadURL))
	require.NoError(t, err)
	defer file.Content.Close()
	assert.Equal(t, export.FormatXLSX, file.Format)
	assert.True(t, strings.HasSuffix(file.Name, ".xlsx"))
}

func TestExamResultsExportExpiresOverdueAttempts(t *testing.T) {
	h, svc := newExportFixture(t)
	ctx := context.Background()
	class := h.seedClass("t1")
	h.admit(t, class.ID, "s1")
	exam := h.seedExam(class.ID, 30*time.Minute)
	_, err := h.coord.StartExam(ctx, student("s1"), exam.ID, nil)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	res, err := svc.Generate(ctx, teacher("t1"), dto.ExportRequest{Kind: ExportKindExamResults, ResourceID: exam.ID, Format: "csv"})
	require.NoError(t, err)
	file, err := svc.Open(tokenFromURL(t, res.DownloadURL))
	require.NoError(t, err)
	defer file.Content.Close()

	body, err := io.ReadAll(file.Content)
	require.NoError(t, err)
	assert.Contains(t, string(body), string(models.AttemptStatusExpiredSubmitted))
	assert.NotContains(t, string(body), string(models.AttemptStatusInProgress))
}

func TestExportLinkExpiresAndFilesAreCleaned(t *testing.T) {
	h, svc := newExportFixture(t)
	ctx := context.Background()
	class := h.seedClass("t1")
	assignment := h.seedAssignment(class.ID, t0.Add(time.Hour), 10)

	res, err := svc.Generate(ctx, teacher("t1"), dto.ExportRequest{Kind: ExportKindGradebook, ResourceID: assignment.ID, Format: "pdf"})
	require.NoError(t, err)
	token := tokenFromURL(t, res.DownloadURL)

	_, err = svc.Open(token + "x")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	h.clock.Advance(90 * time.Minute)
	_, err = svc.Open(token)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	svc.clock = clock.Fixed(time.Now().Add(3 * time.Hour))
	assert.Len(t, svc.Cleanup(), 1)
}

func TestExportRejectsUnknownKind(t *testing.T) {
	_, svc := newExportFixture(t)
	_, err := svc.Generate(context.Background(), teacher("t1"), dto.ExportRequest{Kind: "attendance", ResourceID: "x", Format: "csv"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Generate(context.Background(), teacher("t1"), dto.ExportRequest{Kind: ExportKindGradebook, ResourceID: "x", Format: "docx"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
