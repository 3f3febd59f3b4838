package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment request.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending  EnrollmentStatus = "PENDING"
	EnrollmentStatusApproved EnrollmentStatus = "APPROVED"
	EnrollmentStatusRejected EnrollmentStatus = "REJECTED"
)

// Terminal reports whether no further decision can be applied.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusApproved || s == EnrollmentStatusRejected
}

// Enrollment captures a student's request to join, and membership in, a class.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	ClassID     string           `db:"class_id" json:"class_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	RequestedAt time.Time        `db:"requested_at" json:"requested_at"`
	DecidedAt   *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
	DecidedBy   *string          `db:"decided_by" json:"decided_by,omitempty"`
	Version     int              `db:"version" json:"version"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	ClassID   string
	StudentID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
