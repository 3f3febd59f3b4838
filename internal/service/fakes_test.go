package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/repository"
	"github.com/noah-isme/classroom-workflow-api/pkg/clock"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// memStore is an in-memory stand-in for the Postgres repositories with the
// same compare-and-swap semantics.
type memStore struct {
	mu          sync.Mutex
	seq         int
	classes     map[string]models.Class
	enrollments map[string]models.Enrollment
	assignments map[string]models.Assignment
	submissions map[string]models.Submission
	exams       map[string]models.Exam
	attempts    map[string]models.ExamAttempt
	audits      []models.AuditLog
	examReads   int
}

func newMemStore() *memStore {
	return &memStore{
		classes:     map[string]models.Class{},
		enrollments: map[string]models.Enrollment{},
		assignments: map[string]models.Assignment{},
		submissions: map[string]models.Submission{},
		exams:       map[string]models.Exam{},
		attempts:    map[string]models.ExamAttempt{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func conflict(entity string) error {
	return appErrors.Clone(appErrors.ErrVersionConflict, entity+" was modified concurrently")
}

type memClasses struct{ *memStore }

func (m memClasses) FindByID(_ context.Context, id string) (*models.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (m memClasses) ListByTeacher(_ context.Context, teacherID string) ([]models.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Class
	for _, c := range m.classes {
		if c.TeacherID == teacherID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m memClasses) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.classes {
		if c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m memClasses) Create(_ context.Context, class *models.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if class.ID == "" {
		class.ID = m.nextID("class")
	}
	m.classes[class.ID] = *class
	return nil
}

type memEnrollments struct{ *memStore }

func (m memEnrollments) List(_ context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if filter.ClassID != "" && e.ClassID != filter.ClassID {
			continue
		}
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m memEnrollments) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (m memEnrollments) ListByPair(_ context.Context, classID, studentID string) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.ClassID == classID && e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m memEnrollments) IsApproved(_ context.Context, classID, studentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.ClassID == classID && e.StudentID == studentID && e.Status == models.EnrollmentStatusApproved {
			return true, nil
		}
	}
	return false, nil
}

func (m memEnrollments) ListApprovedStudents(_ context.Context, classID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.enrollments {
		if e.ClassID == classID && e.Status == models.EnrollmentStatusApproved {
			out = append(out, e.StudentID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m memEnrollments) Create(_ context.Context, enrollment *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.ClassID == enrollment.ClassID && e.StudentID == enrollment.StudentID && e.Status != models.EnrollmentStatusRejected {
			return repository.ErrDuplicate
		}
	}
	enrollment.Version = 1
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m memEnrollments) Update(_ context.Context, enrollment *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.enrollments[enrollment.ID]
	if !ok || current.Version != enrollment.Version {
		return conflict("enrollment")
	}
	enrollment.Version++
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m memEnrollments) Delete(_ context.Context, id string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.enrollments[id]
	if !ok || current.Version != version {
		return conflict("enrollment")
	}
	delete(m.enrollments, id)
	return nil
}

type memAssignments struct{ *memStore }

func (m memAssignments) FindByID(_ context.Context, id string) (*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (m memAssignments) ListByClass(_ context.Context, classID string) ([]models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Assignment
	for _, a := range m.assignments {
		if a.ClassID == classID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m memAssignments) Create(_ context.Context, assignment *models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if assignment.ID == "" {
		assignment.ID = m.nextID("asg")
	}
	m.assignments[assignment.ID] = *assignment
	return nil
}

type memSubmissions struct{ *memStore }

func (m memSubmissions) FindByID(_ context.Context, id string) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m memSubmissions) FindByAssignmentAndStudent(_ context.Context, assignmentID, studentID string) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findPair(assignmentID, studentID)
}

func (m memSubmissions) findPair(assignmentID, studentID string) (*models.Submission, error) {
	for _, s := range m.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memSubmissions) Ensure(_ context.Context, sub *models.Submission) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, err := m.findPair(sub.AssignmentID, sub.StudentID); err == nil {
		return existing, nil
	}
	stored := *sub
	stored.ID = m.nextID("sub")
	stored.Version = 1
	m.submissions[stored.ID] = stored
	return &stored, nil
}

func (m memSubmissions) Update(_ context.Context, sub *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.submissions[sub.ID]
	if !ok || current.Version != sub.Version {
		return conflict("submission")
	}
	sub.Version++
	m.submissions[sub.ID] = *sub
	return nil
}

func (m memSubmissions) ListOverdue(_ context.Context, assignmentID string, now time.Time) ([]models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Submission
	for _, s := range m.submissions {
		if s.AssignmentID == assignmentID && s.Status == models.SubmissionStatusPending && s.DueDate.Before(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m memSubmissions) ListByAssignment(_ context.Context, assignmentID string) ([]models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Submission
	for _, s := range m.submissions {
		if s.AssignmentID == assignmentID {
			out = append(out, s)
		}
	}
	return out, nil
}

type memExams struct{ *memStore }

func (m memExams) FindByID(_ context.Context, id string) (*models.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.examReads++
	e, ok := m.exams[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	e.Questions = append([]models.Question(nil), e.Questions...)
	return &e, nil
}

func (m memExams) Create(_ context.Context, exam *models.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exam.ID == "" {
		exam.ID = m.nextID("exam")
	}
	for i := range exam.Questions {
		if exam.Questions[i].ID == "" {
			exam.Questions[i].ID = fmt.Sprintf("q%d", i+1)
		}
		exam.Questions[i].ExamID = exam.ID
	}
	stored := *exam
	stored.Questions = append([]models.Question(nil), exam.Questions...)
	m.exams[exam.ID] = stored
	return nil
}

type memAttempts struct{ *memStore }

func copyAttempt(a models.ExamAttempt) models.ExamAttempt {
	a.Answers = a.Answers.Clone()
	return a
}

func (m memAttempts) FindByID(_ context.Context, id string) (*models.ExamAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	a = copyAttempt(a)
	return &a, nil
}

func (m memAttempts) FindByExamAndStudent(_ context.Context, examID, studentID string) (*models.ExamAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ExamID == examID && a.StudentID == studentID {
			a = copyAttempt(a)
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memAttempts) Create(_ context.Context, attempt *models.ExamAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ExamID == attempt.ExamID && a.StudentID == attempt.StudentID {
			return repository.ErrDuplicate
		}
	}
	attempt.Version = 1
	m.attempts[attempt.ID] = copyAttempt(*attempt)
	return nil
}

func (m memAttempts) Update(_ context.Context, attempt *models.ExamAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.attempts[attempt.ID]
	if !ok || current.Version != attempt.Version {
		return conflict("exam attempt")
	}
	attempt.Version++
	m.attempts[attempt.ID] = copyAttempt(*attempt)
	return nil
}

func (m memAttempts) List(_ context.Context, filter models.AttemptFilter) ([]models.ExamAttempt, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.ExamAttempt
	for _, a := range m.attempts {
		if filter.ExamID != "" && a.ExamID != filter.ExamID {
			continue
		}
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		all = append(all, copyAttempt(a))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StudentID < all[j].StudentID })
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m memAttempts) ListExpired(_ context.Context, now time.Time, limit int) ([]models.ExamAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ExamAttempt
	for _, a := range m.attempts {
		if a.Status == models.AttemptStatusInProgress && !now.Before(a.Deadline) {
			out = append(out, copyAttempt(a))
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memAudits struct{ *memStore }

func (m memAudits) Create(_ context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, *log)
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	effects []models.Effect
}

func (p *recordingPublisher) Publish(_ context.Context, effects []models.Effect) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.effects = append(p.effects, effects...)
}

func (p *recordingPublisher) ofType(effectType string) []models.Effect {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Effect
	for _, e := range p.effects {
		if e.Type == effectType {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	store     *memStore
	clock     *clock.Manual
	publisher *recordingPublisher
	metrics   *MetricsService
	coord     *Coordinator
	exams     *ExamService
	authoring *AuthoringService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newMemStore()
	clk := clock.NewManual(t0)
	publisher := &recordingPublisher{}
	metrics := NewMetricsService()
	logger := zap.NewNop()

	classes := memClasses{store}
	enrollments := memEnrollments{store}
	enrollmentSvc := NewEnrollmentService(enrollments, classes, metrics, logger)
	assignmentSvc := NewAssignmentService(memAssignments{store}, memSubmissions{store}, classes, enrollments, metrics, logger)
	examSvc := NewExamService(memExams{store}, memAttempts{store}, classes, enrollments, nil, 0, metrics, logger)

	return &harness{
		store:     store,
		clock:     clk,
		publisher: publisher,
		metrics:   metrics,
		coord:     NewCoordinator(enrollmentSvc, assignmentSvc, examSvc, publisher, clk, metrics, logger),
		exams:     examSvc,
		authoring: NewAuthoringService(classes, memAssignments{store}, memExams{store}, enrollments, nil, nil, logger),
	}
}

func teacher(id string) Actor { return Actor{ID: id, Role: models.RoleTeacher} }
func student(id string) Actor { return Actor{ID: id, Role: models.RoleStudent} }

func (h *harness) seedClass(teacherID string) models.Class {
	class := models.Class{ID: "class-" + teacherID, Name: "Physics", Code: "PHY12345", TeacherID: teacherID, CreatedAt: t0}
	h.store.classes[class.ID] = class
	return class
}

func (h *harness) admit(t *testing.T, classID, studentID string) {
	t.Helper()
	h.store.enrollments["enr-"+classID+"-"+studentID] = models.Enrollment{
		ID: "enr-" + classID + "-" + studentID, ClassID: classID, StudentID: studentID,
		Status: models.EnrollmentStatusApproved, RequestedAt: t0, Version: 2,
	}
}

func (h *harness) seedAssignment(classID string, due time.Time, total float64) models.Assignment {
	a := models.Assignment{ID: "asg-" + classID, ClassID: classID, Title: "Lab report", DueDate: due, TotalMarks: total, CreatedAt: t0}
	h.store.assignments[a.ID] = a
	return a
}

// seedExam stores a one-hour-window exam with two MCQs worth 2 each and a
// short answer worth 5.
func (h *harness) seedExam(classID string, duration time.Duration) models.Exam {
	exam := models.Exam{
		ID: "exam-" + classID, ClassID: classID, Title: "Midterm",
		WindowStart: t0, WindowEnd: t0.Add(time.Hour), DurationSeconds: int(duration / time.Second),
		Questions: []models.Question{
			{ID: "q1", Type: models.QuestionTypeMCQ, Prompt: "2+2", Options: models.StringList{"3", "4"}, CorrectAnswer: "4", Marks: 2, Position: 1},
			{ID: "q2", Type: models.QuestionTypeMCQ, Prompt: "3+3", Options: models.StringList{"6", "7"}, CorrectAnswer: "6", Marks: 2, Position: 2},
			{ID: "q3", Type: models.QuestionTypeShortAnswer, Prompt: "Explain", Marks: 5, Position: 3},
		},
	}
	exam.ID = "exam-" + classID
	for i := range exam.Questions {
		exam.Questions[i].ExamID = exam.ID
	}
	h.store.exams[exam.ID] = exam
	return exam
}

func at(t time.Time) *time.Time { return &t }

func requireCode(t *testing.T, err error, sentinel *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, sentinel, "got %v", err)
}
