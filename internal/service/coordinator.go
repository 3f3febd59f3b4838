package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/workflow"
	"github.com/noah-isme/classroom-workflow-api/pkg/clock"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

// CommandKind names a workflow command.
type CommandKind string

const (
	CommandRequestJoin        CommandKind = "requestJoin"
	CommandDecideEnrollment   CommandKind = "decideEnrollment"
	CommandWithdrawEnrollment CommandKind = "withdrawEnrollment"
	CommandSubmitAssignment   CommandKind = "submitAssignment"
	CommandGradeSubmission    CommandKind = "gradeSubmission"
	CommandStartExam          CommandKind = "startExam"
	CommandAnswerQuestion     CommandKind = "answerQuestion"
	CommandSubmitExam         CommandKind = "submitExam"
	CommandExpireExam         CommandKind = "expireExam"
)

// Workflow returns the workflow a command belongs to.
func (k CommandKind) Workflow() string {
	switch k {
	case CommandRequestJoin, CommandDecideEnrollment, CommandWithdrawEnrollment:
		return "enrollment"
	case CommandSubmitAssignment, CommandGradeSubmission:
		return "assignment"
	case CommandStartExam, CommandAnswerQuestion, CommandSubmitExam, CommandExpireExam:
		return "exam"
	default:
		return "unknown"
	}
}

// Command is one workflow request. Only the fields relevant to Kind are read.
// Now overrides the clock for this command.
type Command struct {
	Kind  CommandKind
	Actor Actor
	Now   *time.Time

	ClassID      string
	Code         string
	EnrollmentID string
	Decision     models.EnrollmentStatus
	AssignmentID string
	Content      string
	SubmissionID string
	Marks        float64
	Feedback     *string
	ExamID       string
	AttemptID    string
	QuestionID   string
	Value        string
}

// Result carries the updated entity and the effects already handed to the publisher.
type Result struct {
	Entity  interface{}
	Effects []models.Effect
}

// Coordinator routes commands to the workflow services, enforces the
// cross-workflow guards they share and publishes effects once the new state
// is stored.
type Coordinator struct {
	enrollments *EnrollmentService
	assignments *AssignmentService
	exams       *ExamService
	publisher   EffectPublisher
	clock       clock.Clock
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(enrollments *EnrollmentService, assignments *AssignmentService, exams *ExamService, publisher EffectPublisher, clk clock.Clock, metrics *MetricsService, logger *zap.Logger) *Coordinator {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		enrollments: enrollments,
		assignments: assignments,
		exams:       exams,
		publisher:   publisher,
		clock:       clk,
		metrics:     metrics,
		logger:      logger,
	}
}

// Dispatch executes a command. The clock is read at most once per command.
func (c *Coordinator) Dispatch(ctx context.Context, cmd Command) (*Result, error) {
	now := c.resolveNow(cmd.Now)
	res, err := c.route(ctx, cmd, now)
	c.metrics.RecordTransition(cmd.Kind.Workflow(), string(cmd.Kind), err)
	if err != nil {
		if appErrors.FromError(err).Status >= 500 {
			c.logger.Error("workflow command failed",
				zap.String("command", string(cmd.Kind)), zap.String("actor_id", cmd.Actor.ID), zap.Error(err))
		}
		return nil, err
	}
	if c.publisher != nil && len(res.Effects) > 0 {
		c.publisher.Publish(ctx, res.Effects)
	}
	return res, nil
}

func (c *Coordinator) route(ctx context.Context, cmd Command, now time.Time) (*Result, error) {
	var (
		entity  interface{}
		effects []models.Effect
		err     error
	)
	switch cmd.Kind {
	case CommandRequestJoin:
		entity, effects, err = unwrap(c.enrollments.RequestJoin(ctx, cmd.Actor, cmd.ClassID, cmd.Code, now))
	case CommandDecideEnrollment:
		entity, effects, err = unwrap(c.enrollments.Decide(ctx, cmd.Actor, cmd.EnrollmentID, cmd.Decision, now))
	case CommandWithdrawEnrollment:
		entity, effects, err = unwrap(c.enrollments.Withdraw(ctx, cmd.Actor, cmd.EnrollmentID))
	case CommandSubmitAssignment:
		entity, effects, err = unwrap(c.assignments.Submit(ctx, cmd.Actor, cmd.AssignmentID, cmd.Content, now))
	case CommandGradeSubmission:
		entity, effects, err = unwrap(c.assignments.Grade(ctx, cmd.Actor, cmd.SubmissionID, cmd.Marks, cmd.Feedback, now))
	case CommandStartExam:
		entity, effects, err = unwrap(c.exams.Start(ctx, cmd.Actor, cmd.ExamID, now))
	case CommandAnswerQuestion:
		var attempt *models.ExamAttempt
		attempt, err = c.exams.Answer(ctx, cmd.Actor, cmd.AttemptID, cmd.QuestionID, cmd.Value, now)
		entity = attempt
	case CommandSubmitExam:
		entity, effects, err = unwrap(c.exams.Submit(ctx, cmd.Actor, cmd.AttemptID, now))
	case CommandExpireExam:
		entity, effects, err = unwrap(c.exams.Expire(ctx, cmd.Actor, cmd.AttemptID, now))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown command "+string(cmd.Kind))
	}
	if err != nil {
		return nil, err
	}
	return &Result{Entity: entity, Effects: effects}, nil
}

func unwrap[T any](entity *T, effects []models.Effect, err error) (interface{}, []models.Effect, error) {
	if err != nil {
		return nil, nil, err
	}
	return entity, effects, nil
}

func (c *Coordinator) resolveNow(override *time.Time) time.Time {
	if override != nil && !override.IsZero() {
		return override.UTC().Truncate(clock.Precision)
	}
	return c.clock.Now().UTC().Truncate(clock.Precision)
}

// RequestJoin asks to join a class with its code.
func (c *Coordinator) RequestJoin(ctx context.Context, actor Actor, classID, code string, now *time.Time) (*models.Enrollment, error) {
	res, err := c.Dispatch(ctx, Command{Kind: CommandRequestJoin, Actor: actor, Now: now, ClassID: classID, Code: code})
	return entityAs[models.Enrollment](res, err)
}

// DecideEnrollment approves or rejects a pending request.
func (c *Coordinator) DecideEnrollment(ctx context.Context, actor Actor, enrollmentID string, decision models.EnrollmentStatus, now *time.Time) (*models.Enrollment, error) {
	res, err := c.Dispatch(ctx, Command{Kind: CommandDecideEnrollment, Actor: actor, Now: now, EnrollmentID: enrollmentID, Decision: decision})
	return entityAs[models.Enrollment](res, err)
}

// WithdrawEnrollment removes the student's own enrollment.
func (c *Coordinator) WithdrawEnrollment(ctx context.Context, actor Actor, enrollmentID string, now *time.Time) (*models.Enrollment, error) {
	res, err := c.Dispatch(ctx, Command{Kind: CommandWithdrawEnrollment, Actor: actor, Now: now, EnrollmentID: enrollmentID})
	return entityAs[models.Enrollment](res, err)
}

// SubmitAssignment submits the student's work.
func (c *Coordinator) SubmitAssignment(ctx context.Context, actor Actor, assignmentID, content string, now *time.Time) (*models.SubmissionView, error) {
	res, err := c.Dispatch(ctx, Command{Kind: CommandSubmitAssignment, Actor: actor, Now: now, AssignmentID: assignmentID, Content: content})
	return entityAs[models.SubmissionView](res, err)
}

// GradeSubmission grades or regrades a submission.
func (c *Coordinator) GradeSubmission(ctx context.Context, actor Actor, submissionID string, marks float64, feedback *string, now *time.Time) (*models.SubmissionView, error) {
	res, err := c.Dispatch(ctx, Command{Kind: CommandGradeSubmission, Actor: actor, Now: now, SubmissionID: submissionID, Marks: marks, Feedback: feedback})
	return entityAs[models.SubmissionView](res, err)
}

// StartExam opens the student's attempt.
func (c *Coordinator) StartExam(ctx context.Context, actor Actor, examID string, now *time.Time) (*models.ExamAttempt, error) {
	res, err := c.Dispatch(ctx, Command{Kind: CommandStartExam, Actor: actor, Now: now, ExamID: examID})
	return entityAs[models.ExamAttempt](res, err)
}

// AnswerQuestion records one answer.
func (c *Coordinator) AnswerQuestion(ctx context.Context, actor Actor, attemptID, questionID, value string, now *time.Time) (*models.ExamAttempt, error) {
	res, err := c.Dispatch(ctx, Command{Kind: CommandAnswerQuestion, Actor: actor, Now: now, AttemptID: attemptID, QuestionID: questionID, Value: value})
	return entityAs[models.ExamAttempt](res, err)
}

// SubmitExam closes the attempt on the student's request.
func (c *Coordinator) SubmitExam(ctx context.Context, actor Actor, attemptID string, now *time.Time) (*models.ExamAttempt, error) {
	res, err := c.Dispatch(ctx, Command{Kind: CommandSubmitExam, Actor: actor, Now: now, AttemptID: attemptID})
	return entityAs[models.ExamAttempt](res, err)
}

// ExpireExam closes an attempt past its deadline.
func (c *Coordinator) ExpireExam(ctx context.Context, actor Actor, attemptID string, now *time.Time) (*models.ExamAttempt, error) {
	res, err := c.Dispatch(ctx, Command{Kind: CommandExpireExam, Actor: actor, Now: now, AttemptID: attemptID})
	return entityAs[models.ExamAttempt](res, err)
}

func entityAs[T any](res *Result, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	entity, ok := res.Entity.(*T)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInternal, "unexpected command result")
	}
	return entity, nil
}

// GetEnrollment returns one enrollment.
func (c *Coordinator) GetEnrollment(ctx context.Context, actor Actor, id string) (*models.Enrollment, error) {
	return c.enrollments.Get(ctx, actor, id)
}

// ListEnrollments lists enrollments visible to the actor.
func (c *Coordinator) ListEnrollments(ctx context.Context, actor Actor, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	return c.enrollments.List(ctx, actor, filter)
}

// GetSubmission returns a submission with its display status.
func (c *Coordinator) GetSubmission(ctx context.Context, actor Actor, id string, now *time.Time) (*models.SubmissionView, error) {
	return c.assignments.GetSubmission(ctx, actor, id, c.resolveNow(now))
}

// MySubmission returns the actor's own submission for an assignment.
func (c *Coordinator) MySubmission(ctx context.Context, actor Actor, assignmentID string, now *time.Time) (*models.SubmissionView, error) {
	return c.assignments.MySubmission(ctx, actor, assignmentID, c.resolveNow(now))
}

// ListSubmissions lists the roster's submissions for an assignment.
func (c *Coordinator) ListSubmissions(ctx context.Context, actor Actor, assignmentID string, now *time.Time) ([]models.SubmissionView, error) {
	return c.assignments.ListSubmissions(ctx, actor, assignmentID, c.resolveNow(now))
}

// ListOverdue lists submissions that are overdue at now.
func (c *Coordinator) ListOverdue(ctx context.Context, actor Actor, assignmentID string, now *time.Time) ([]models.SubmissionView, error) {
	return c.assignments.ListOverdue(ctx, actor, assignmentID, c.resolveNow(now))
}

// GetExam returns the exam as the actor may see it.
func (c *Coordinator) GetExam(ctx context.Context, actor Actor, examID string) (*models.Exam, error) {
	return c.exams.GetExam(ctx, actor, examID)
}

// ListAttempts lists the attempts of an exam. Listed attempts still
// IN_PROGRESS past their deadline are expired first and the page is read
// again, so statuses, scores and counts reflect the expiry.
func (c *Coordinator) ListAttempts(ctx context.Context, actor Actor, filter models.AttemptFilter, now *time.Time) ([]models.ExamAttempt, *models.Pagination, error) {
	at := c.resolveNow(now)
	attempts, pagination, err := c.exams.ListAttempts(ctx, actor, filter)
	if err != nil {
		return nil, nil, err
	}

	expired := 0
	for _, attempt := range attempts {
		if !workflow.NeedsExpiry(attempt, at) {
			continue
		}
		_, err := c.ExpireExam(ctx, SystemActor, attempt.ID, &at)
		switch {
		case err == nil:
			c.metrics.RecordExpiration("query")
			expired++
		case errors.Is(err, appErrors.ErrAttemptNotActive):
			expired++
		default:
			return nil, nil, err
		}
	}
	if expired == 0 {
		return attempts, pagination, nil
	}
	return c.exams.ListAttempts(ctx, actor, filter)
}

// GetAttempt returns an attempt. An attempt still IN_PROGRESS past its
// deadline is expired through the regular expire command first.
func (c *Coordinator) GetAttempt(ctx context.Context, actor Actor, attemptID string, now *time.Time) (*models.ExamAttempt, error) {
	at := c.resolveNow(now)
	attempt, err := c.exams.GetAttempt(ctx, actor, attemptID)
	if err != nil || !workflow.NeedsExpiry(*attempt, at) {
		return attempt, err
	}

	expired, err := c.ExpireExam(ctx, SystemActor, attemptID, &at)
	switch {
	case err == nil:
		c.metrics.RecordExpiration("query")
		return expired, nil
	case errors.Is(err, appErrors.ErrAttemptNotActive):
		// closed concurrently by submit or the sweeper
		return c.exams.GetAttempt(ctx, actor, attemptID)
	default:
		return nil, err
	}
}
