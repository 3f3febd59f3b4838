package workflow

import (
	"strings"
	"time"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

const resourceEnrollment = "enrollment"

// RequestJoin creates a PENDING enrollment for studentID when code matches the
// class join code. existing holds every enrollment already recorded for the
// (class, student) pair; a PENDING or APPROVED one blocks the request while
// REJECTED ones may be superseded.
func RequestJoin(class models.Class, studentID, code string, existing []models.Enrollment, now time.Time, id string) (models.Enrollment, []models.Effect, error) {
	if !codeMatches(class.Code, code) {
		return models.Enrollment{}, nil, appErrors.Clone(appErrors.ErrInvalidCode, "class code does not match")
	}
	for _, e := range existing {
		if e.ClassID != class.ID || e.StudentID != studentID {
			continue
		}
		if e.Status == models.EnrollmentStatusPending || e.Status == models.EnrollmentStatusApproved {
			return models.Enrollment{}, nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "enrollment already "+strings.ToLower(string(e.Status)))
		}
	}

	enrollment := models.Enrollment{
		ID:          id,
		ClassID:     class.ID,
		StudentID:   studentID,
		Status:      models.EnrollmentStatusPending,
		RequestedAt: now,
	}
	payload := map[string]interface{}{
		"enrollment_id": enrollment.ID,
		"class_id":      class.ID,
		"student_id":    studentID,
	}
	effects := []models.Effect{
		notify(models.NotifyEnrollmentRequested, class.TeacherID, payload),
		audit(models.AuditActionEnrollmentRequest, studentID, resourceEnrollment, enrollment.ID, payload),
	}
	return enrollment, effects, nil
}

// Decide applies the class teacher's decision to a PENDING enrollment.
func Decide(enrollment models.Enrollment, class models.Class, decision models.EnrollmentStatus, deciderID string, now time.Time) (models.Enrollment, []models.Effect, error) {
	if deciderID == "" || deciderID != class.TeacherID {
		return enrollment, nil, appErrors.Clone(appErrors.ErrNotAuthorized, "only the class teacher can decide enrollments")
	}
	if enrollment.Status != models.EnrollmentStatusPending {
		return enrollment, nil, appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment is not pending")
	}
	if !decision.Terminal() {
		return enrollment, nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or REJECTED")
	}

	decidedAt := now
	decidedBy := deciderID
	enrollment.Status = decision
	enrollment.DecidedAt = &decidedAt
	enrollment.DecidedBy = &decidedBy

	payload := map[string]interface{}{
		"enrollment_id": enrollment.ID,
		"class_id":      enrollment.ClassID,
		"decision":      string(decision),
	}
	effects := []models.Effect{
		notify(models.NotifyEnrollmentDecided, enrollment.StudentID, payload),
		audit(models.AuditActionEnrollmentDecision, deciderID, resourceEnrollment, enrollment.ID, payload),
	}
	return enrollment, effects, nil
}

// Withdraw validates that studentID may drop their PENDING or APPROVED
// enrollment. The caller deletes the record; withdrawal is not a state.
func Withdraw(enrollment models.Enrollment, studentID string) ([]models.Effect, error) {
	if studentID == "" || enrollment.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "only the requesting student can withdraw")
	}
	if enrollment.Status == models.EnrollmentStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "rejected enrollments cannot be withdrawn")
	}
	payload := map[string]interface{}{
		"class_id": enrollment.ClassID,
		"status":   string(enrollment.Status),
	}
	return []models.Effect{
		audit(models.AuditActionEnrollmentWithdraw, studentID, resourceEnrollment, enrollment.ID, payload),
	}, nil
}

func codeMatches(expected, given string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return false
	}
	return strings.EqualFold(expected, strings.TrimSpace(given))
}
