package models

import "time"

// SubmissionStatus is the stored state of an assignment submission.
type SubmissionStatus string

const (
	SubmissionStatusPending   SubmissionStatus = "PENDING"
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionStatusLate      SubmissionStatus = "LATE"
	SubmissionStatusGraded    SubmissionStatus = "GRADED"
	// SubmissionStatusOverdue is derived at read time and never persisted.
	SubmissionStatusOverdue SubmissionStatus = "OVERDUE"
)

// Assignment is a piece of coursework owned by a class.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	TotalMarks  float64   `db:"total_marks" json:"total_marks"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Submission is one student's work product and grading record for an assignment.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	DueDate      time.Time        `db:"due_date" json:"due_date"`
	Status       SubmissionStatus `db:"status" json:"status"`
	Content      string           `db:"content" json:"content"`
	SubmittedAt  *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	Marks        *float64         `db:"marks" json:"marks,omitempty"`
	TotalMarks   float64          `db:"total_marks" json:"total_marks"`
	Feedback     *string          `db:"feedback" json:"feedback,omitempty"`
	GradedAt     *time.Time       `db:"graded_at" json:"graded_at,omitempty"`
	GradedBy     *string          `db:"graded_by" json:"graded_by,omitempty"`
	Version      int              `db:"version" json:"version"`
}

// SubmissionView decorates a submission with its display status.
type SubmissionView struct {
	Submission
	DisplayStatus SubmissionStatus `json:"display_status"`
}
