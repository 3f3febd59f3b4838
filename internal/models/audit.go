package models

import "time"

// AuditAction constants represent workflow commands recorded in the audit trail.
const (
	AuditActionEnrollmentRequest  = "ENROLLMENT_REQUEST"
	AuditActionEnrollmentDecision = "ENROLLMENT_DECISION"
	AuditActionEnrollmentWithdraw = "ENROLLMENT_WITHDRAW"
	AuditActionAssignmentSubmit   = "ASSIGNMENT_SUBMIT"
	AuditActionSubmissionGrade    = "SUBMISSION_GRADE"
	AuditActionExamStart          = "EXAM_START"
	AuditActionExamSubmit         = "EXAM_SUBMIT"
	AuditActionExamExpire         = "EXAM_EXPIRE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string       `db:"id" json:"id"`
	UserID     *string      `db:"user_id" json:"user_id,omitempty"`
	Action     string       `db:"action" json:"action"`
	Resource   string       `db:"resource" json:"resource"`
	ResourceID *string      `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  JSONDocument `db:"new_values" json:"new_values,omitempty"`
	RequestID  string       `db:"request_id" json:"request_id,omitempty"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}
