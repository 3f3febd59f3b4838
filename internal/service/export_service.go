package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-workflow-api/internal/dto"
	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/pkg/clock"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
	"github.com/noah-isme/classroom-workflow-api/pkg/export"
	"github.com/noah-isme/classroom-workflow-api/pkg/storage"
)

// Export kinds.
const (
	ExportKindGradebook   = "gradebook"
	ExportKindExamResults = "exam_results"
)

const exportPageSize = 100

type gradebookSource interface {
	ListSubmissions(ctx context.Context, actor Actor, assignmentID string, now *time.Time) ([]models.SubmissionView, error)
}

type examResultSource interface {
	ListAttempts(ctx context.Context, actor Actor, filter models.AttemptFilter, now *time.Time) ([]models.ExamAttempt, *models.Pagination, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (io.ReadSeekCloser, os.FileInfo, error)
	CleanupOlderThan(now time.Time, ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportFile is an opened export ready to stream.
type ExportFile struct {
	Name    string
	Format  export.Format
	Content io.ReadSeekCloser
	Size    int64
	ModTime time.Time
}

// ExportService renders gradebooks and exam results and hands out signed
// download links.
type ExportService struct {
	gradebooks gradebookSource
	results    examResultSource
	storage    fileStorage
	signer     *storage.SignedURLSigner
	clock      clock.Clock
	cfg        ExportConfig
	logger     *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(gradebooks gradebookSource, results examResultSource, files fileStorage, signer *storage.SignedURLSigner, clk clock.Clock, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ExportService{gradebooks: gradebooks, results: results, storage: files, signer: signer, clock: clk, cfg: cfg, logger: logger}
}

// Generate renders the requested dataset, stores it and returns a signed link.
func (s *ExportService) Generate(ctx context.Context, actor Actor, req dto.ExportRequest) (*dto.ExportResponse, error) {
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	now := s.clock.Now()

	var dataset export.Dataset
	switch req.Kind {
	case ExportKindGradebook:
		dataset, err = s.gradebookDataset(ctx, actor, req.ResourceID, now)
	case ExportKindExamResults:
		dataset, err = s.examResultsDataset(ctx, actor, req.ResourceID)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export kind "+req.Kind)
	}
	if err != nil {
		return nil, err
	}

	renderer, err := export.NewRenderer(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("%s_%s_%s.%s", req.Kind, sanitizeFilename(req.ResourceID), now.Format("20060102_150405"), format)
	relPath, err := s.storage.Save(filepath.Join(exportID[:2], filename), payload)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(exportID, relPath, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign export link")
	}
	s.logger.Info("export generated",
		zap.String("export_id", exportID), zap.String("kind", req.Kind), zap.String("format", string(format)), zap.Int("rows", len(dataset.Rows)))

	return &dto.ExportResponse{
		ID:          exportID,
		Format:      string(format),
		DownloadURL: fmt.Sprintf("%s/exports/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		ExpiresAt:   expiresAt,
	}, nil
}

// Open validates a download token and opens the referenced file.
func (s *ExportService) Open(token string) (*ExportFile, error) {
	_, relPath, _, err := s.signer.Parse(token, s.clock.Now())
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export link expired")
	case err != nil:
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid export link")
	}
	content, info, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, appErrors.Internal(err, "failed to open export")
	}
	format, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(relPath), "."))
	if err != nil {
		format = export.FormatCSV
	}
	return &ExportFile{Name: filepath.Base(relPath), Format: format, Content: content, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// StartCleanup removes stale exports every CleanupInterval until ctx is done.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Cleanup deletes files older than the result TTL.
func (s *ExportService) Cleanup() []string {
	deleted, err := s.storage.CleanupOlderThan(s.clock.Now(), s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return nil
	}
	if len(deleted) > 0 {
		s.logger.Info("export cleanup", zap.Int("deleted", len(deleted)))
	}
	return deleted
}

func (s *ExportService) gradebookDataset(ctx context.Context, actor Actor, assignmentID string, now time.Time) (export.Dataset, error) {
	views, err := s.gradebooks.ListSubmissions(ctx, actor, assignmentID, &now)
	if err != nil {
		return export.Dataset{}, err
	}
	headers := []string{"Student ID", "Status", "Submitted At", "Marks", "Total Marks", "Feedback"}
	rows := make([]map[string]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, map[string]string{
			"Student ID":   v.StudentID,
			"Status":       string(v.DisplayStatus),
			"Submitted At": formatTime(v.SubmittedAt),
			"Marks":        formatFloat(v.Marks),
			"Total Marks":  strconv.FormatFloat(v.TotalMarks, 'f', -1, 64),
			"Feedback":     deref(v.Feedback),
		})
	}
	return export.Dataset{Title: "Gradebook " + assignmentID, Headers: headers, Rows: rows}, nil
}

func (s *ExportService) examResultsDataset(ctx context.Context, actor Actor, examID string) (export.Dataset, error) {
	headers := []string{"Attempt ID", "Student ID", "Status", "Started At", "Submitted At", "Obtained", "Max Objective", "Pending Manual"}
	rows := make([]map[string]string, 0)
	now := s.clock.Now()
	for page := 1; ; page++ {
		attempts, pagination, err := s.results.ListAttempts(ctx, actor, models.AttemptFilter{ExamID: examID, Page: page, PageSize: exportPageSize}, &now)
		if err != nil {
			return export.Dataset{}, err
		}
		for _, a := range attempts {
			rows = append(rows, map[string]string{
				"Attempt ID":     a.ID,
				"Student ID":     a.StudentID,
				"Status":         string(a.Status),
				"Started At":     formatTime(a.StartedAt),
				"Submitted At":   formatTime(a.SubmittedAt),
				"Obtained":       formatFloat(a.ObtainedMarks),
				"Max Objective":  strconv.FormatFloat(a.MaxObjectiveMarks, 'f', -1, 64),
				"Pending Manual": strconv.Itoa(len(a.PendingManual)),
			})
		}
		if len(attempts) == 0 || pagination == nil || page*exportPageSize >= pagination.TotalCount {
			break
		}
	}
	return export.Dataset{Title: "Exam results " + examID, Headers: headers, Rows: rows}, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 64 {
		return result[:64]
	}
	return result
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
