package workflow

import (
	"time"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

const resourceSubmission = "submission"

// SubmitAssignment records the student's work. Submitting exactly at the due
// date is on time; anything after it is LATE, which is still a success.
func SubmitAssignment(sub models.Submission, content, teacherID string, now time.Time) (models.Submission, []models.Effect, error) {
	if sub.Status != models.SubmissionStatusPending {
		return sub, nil, appErrors.Clone(appErrors.ErrAlreadySubmitted, "submission already "+string(sub.Status))
	}

	submittedAt := now
	sub.Content = content
	sub.SubmittedAt = &submittedAt
	if now.After(sub.DueDate) {
		sub.Status = models.SubmissionStatusLate
	} else {
		sub.Status = models.SubmissionStatusSubmitted
	}

	payload := map[string]interface{}{
		"submission_id": sub.ID,
		"assignment_id": sub.AssignmentID,
		"student_id":    sub.StudentID,
		"status":        string(sub.Status),
	}
	effects := []models.Effect{
		audit(models.AuditActionAssignmentSubmit, sub.StudentID, resourceSubmission, sub.ID, payload),
	}
	if teacherID != "" {
		effects = append(effects, notify(models.NotifyAssignmentSubmitted, teacherID, payload))
	}
	return sub, effects, nil
}

// GradeSubmission stores marks and feedback. Regrading a GRADED submission
// overwrites the previous grade; SubmittedAt is never touched.
func GradeSubmission(sub models.Submission, marks float64, feedback *string, graderID string, now time.Time) (models.Submission, []models.Effect, error) {
	switch sub.Status {
	case models.SubmissionStatusSubmitted, models.SubmissionStatusLate, models.SubmissionStatusGraded:
	default:
		return sub, nil, appErrors.Clone(appErrors.ErrNotSubmitted, "submission has not been submitted")
	}
	if marks < 0 || marks > sub.TotalMarks {
		return sub, nil, appErrors.Clone(appErrors.ErrMarksOutOfRange, "marks must be between 0 and total marks")
	}

	regrade := sub.Status == models.SubmissionStatusGraded
	gradedAt := now
	gradedBy := graderID
	m := marks
	sub.Status = models.SubmissionStatusGraded
	sub.Marks = &m
	sub.Feedback = feedback
	sub.GradedAt = &gradedAt
	sub.GradedBy = &gradedBy

	payload := map[string]interface{}{
		"submission_id": sub.ID,
		"assignment_id": sub.AssignmentID,
		"marks":         marks,
		"total_marks":   sub.TotalMarks,
		"regrade":       regrade,
	}
	effects := []models.Effect{
		notify(models.NotifySubmissionGraded, sub.StudentID, payload),
		audit(models.AuditActionSubmissionGrade, graderID, resourceSubmission, sub.ID, payload),
	}
	return sub, effects, nil
}

// DisplayStatus derives the status shown to users. OVERDUE is never stored.
func DisplayStatus(sub models.Submission, now time.Time) models.SubmissionStatus {
	if sub.Status == models.SubmissionStatusPending && now.After(sub.DueDate) {
		return models.SubmissionStatusOverdue
	}
	return sub.Status
}

// View pairs a submission with its display status at now.
func View(sub models.Submission, now time.Time) models.SubmissionView {
	return models.SubmissionView{Submission: sub, DisplayStatus: DisplayStatus(sub, now)}
}
