package workflow

import (
	"time"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

const resourceAttempt = "exam_attempt"

// StartAttempt opens a timed attempt. The window end is inclusive and the
// personal deadline is start plus duration even when that runs past the
// window. existing is the attempt already recorded for the pair, if any.
func StartAttempt(exam models.Exam, attemptID, studentID string, existing *models.ExamAttempt, now time.Time) (models.ExamAttempt, []models.Effect, error) {
	if now.Before(exam.WindowStart) || now.After(exam.WindowEnd) {
		return models.ExamAttempt{}, nil, appErrors.Clone(appErrors.ErrExamNotOpen, "exam is not open at this time")
	}

	attempt := models.ExamAttempt{
		ID:        attemptID,
		ExamID:    exam.ID,
		StudentID: studentID,
	}
	if existing != nil {
		if existing.Status != models.AttemptStatusNotStarted {
			return *existing, nil, appErrors.Clone(appErrors.ErrAttemptExists, "exam already attempted")
		}
		attempt.ID = existing.ID
		attempt.Version = existing.Version
	}

	startedAt := now
	attempt.Status = models.AttemptStatusInProgress
	attempt.StartedAt = &startedAt
	attempt.Deadline = now.Add(exam.Duration())
	attempt.QuestionOrder = QuestionOrder(exam, attempt.ID)
	attempt.Answers = models.AnswerSheet{}

	payload := map[string]interface{}{
		"exam_id":  exam.ID,
		"deadline": attempt.Deadline,
	}
	return attempt, []models.Effect{
		audit(models.AuditActionExamStart, studentID, resourceAttempt, attempt.ID, payload),
	}, nil
}

// AnswerQuestion upserts one answer. The last write for a question wins.
func AnswerQuestion(attempt models.ExamAttempt, exam models.Exam, questionID, value string, now time.Time) (models.ExamAttempt, error) {
	if attempt.Status != models.AttemptStatusInProgress {
		return attempt, appErrors.Clone(appErrors.ErrAttemptNotActive, "attempt is "+string(attempt.Status))
	}
	if !now.Before(attempt.Deadline) {
		return attempt, appErrors.Clone(appErrors.ErrDeadlineExceeded, "attempt deadline has passed")
	}
	if !hasQuestion(exam, questionID) {
		return attempt, appErrors.Clone(appErrors.ErrValidation, "question does not belong to this exam")
	}

	answers := attempt.Answers.Clone()
	answers[questionID] = value
	attempt.Answers = answers
	return attempt, nil
}

// SubmitAttempt closes the attempt on the student's request and scores it.
// Submitting is deadline exempt; SubmittedAt never exceeds the deadline.
func SubmitAttempt(attempt models.ExamAttempt, exam models.Exam, now time.Time) (models.ExamAttempt, []models.Effect, error) {
	if attempt.Status != models.AttemptStatusInProgress {
		return attempt, nil, appErrors.Clone(appErrors.ErrAttemptNotActive, "attempt is "+string(attempt.Status))
	}
	submittedAt := now
	if submittedAt.After(attempt.Deadline) {
		submittedAt = attempt.Deadline
	}
	return finish(attempt, exam, models.AttemptStatusSubmitted, submittedAt, models.AuditActionExamSubmit, attempt.StudentID)
}

// ExpireAttempt closes an attempt whose deadline has elapsed. The attempt is
// recorded as submitted at the deadline regardless of when expiry is noticed.
func ExpireAttempt(attempt models.ExamAttempt, exam models.Exam, now time.Time) (models.ExamAttempt, []models.Effect, error) {
	if attempt.Status != models.AttemptStatusInProgress {
		return attempt, nil, appErrors.Clone(appErrors.ErrAttemptNotActive, "attempt is "+string(attempt.Status))
	}
	if now.Before(attempt.Deadline) {
		return attempt, nil, appErrors.Clone(appErrors.ErrNotYetExpired, "attempt deadline has not passed")
	}
	return finish(attempt, exam, models.AttemptStatusExpiredSubmitted, attempt.Deadline, models.AuditActionExamExpire, "")
}

// NeedsExpiry reports whether an attempt is still open past its deadline.
func NeedsExpiry(attempt models.ExamAttempt, now time.Time) bool {
	return attempt.Status == models.AttemptStatusInProgress && !now.Before(attempt.Deadline)
}

func finish(attempt models.ExamAttempt, exam models.Exam, status models.AttemptStatus, submittedAt time.Time, action, actorID string) (models.ExamAttempt, []models.Effect, error) {
	score := Score(exam.Questions, attempt.Answers)
	obtained := score.Obtained

	attempt.Status = status
	attempt.SubmittedAt = &submittedAt
	attempt.ObtainedMarks = &obtained
	attempt.MaxObjectiveMarks = score.MaxObjective
	attempt.PendingManual = score.PendingManual

	payload := map[string]interface{}{
		"attempt_id":          attempt.ID,
		"exam_id":             attempt.ExamID,
		"status":              string(status),
		"obtained_marks":      obtained,
		"max_objective_marks": score.MaxObjective,
		"pending_manual":      len(score.PendingManual),
	}
	return attempt, []models.Effect{
		notify(models.NotifyExamScored, attempt.StudentID, payload),
		audit(action, actorID, resourceAttempt, attempt.ID, payload),
	}, nil
}

func hasQuestion(exam models.Exam, questionID string) bool {
	for _, q := range exam.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}
