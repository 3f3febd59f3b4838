package dto

import "time"

// CreateClassRequest creates a class owned by the calling teacher.
type CreateClassRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// JoinClassRequest carries the join code a student received from the teacher.
type JoinClassRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

// EnrollmentDecisionRequest approves or rejects a pending enrollment.
type EnrollmentDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
}

// CreateAssignmentRequest describes a new assignment.
type CreateAssignmentRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description *string   `json:"description"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	TotalMarks  float64   `json:"total_marks" validate:"required,gt=0"`
}

// SubmitAssignmentRequest carries the student's work.
type SubmitAssignmentRequest struct {
	Content string `json:"content" validate:"max=100000"`
}

// GradeSubmissionRequest grades or regrades a submission. Range checks
// against the assignment total happen in the workflow engine.
type GradeSubmissionRequest struct {
	Marks    *float64 `json:"marks" validate:"required"`
	Feedback *string  `json:"feedback" validate:"omitempty,max=5000"`
}
