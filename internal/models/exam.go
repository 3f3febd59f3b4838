package models

import "time"

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionTypeMCQ         QuestionType = "MCQ"
	QuestionTypeTrueFalse   QuestionType = "TRUE_FALSE"
	QuestionTypeShortAnswer QuestionType = "SHORT_ANSWER"
)

// Objective reports whether the question is eligible for automatic scoring.
func (t QuestionType) Objective() bool {
	return t == QuestionTypeMCQ || t == QuestionTypeTrueFalse
}

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	return t.Objective() || t == QuestionTypeShortAnswer
}

// Question belongs to an exam and is read-only to attempts.
type Question struct {
	ID            string       `db:"id" json:"id"`
	ExamID        string       `db:"exam_id" json:"exam_id"`
	Type          QuestionType `db:"type" json:"type"`
	Prompt        string       `db:"prompt" json:"prompt"`
	Options       StringList   `db:"options" json:"options,omitempty"`
	CorrectAnswer string       `db:"correct_answer" json:"correct_answer,omitempty"`
	Marks         float64      `db:"marks" json:"marks"`
	Position      int          `db:"position" json:"position"`
}

// Exam is a timed assessment with an availability window.
type Exam struct {
	ID               string     `db:"id" json:"id"`
	ClassID          string     `db:"class_id" json:"class_id"`
	Title            string     `db:"title" json:"title"`
	WindowStart      time.Time  `db:"window_start" json:"window_start"`
	WindowEnd        time.Time  `db:"window_end" json:"window_end"`
	DurationSeconds  int        `db:"duration_seconds" json:"duration_seconds"`
	ShuffleQuestions bool       `db:"shuffle_questions" json:"shuffle_questions"`
	CreatedBy        string     `db:"created_by" json:"created_by"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	Questions        []Question `db:"-" json:"questions"`
}

// Duration returns the allotted time for one attempt.
func (e Exam) Duration() time.Duration {
	return time.Duration(e.DurationSeconds) * time.Second
}

// StudentView strips correct answers so the exam can be shown during an attempt.
func (e Exam) StudentView() Exam {
	questions := make([]Question, len(e.Questions))
	for i, q := range e.Questions {
		q.CorrectAnswer = ""
		questions[i] = q
	}
	e.Questions = questions
	return e
}

// AttemptStatus is the state of a timed exam session.
type AttemptStatus string

const (
	AttemptStatusNotStarted       AttemptStatus = "NOT_STARTED"
	AttemptStatusInProgress       AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted        AttemptStatus = "SUBMITTED"
	AttemptStatusExpiredSubmitted AttemptStatus = "EXPIRED_SUBMITTED"
)

// Terminal reports whether the attempt has been closed and scored.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusExpiredSubmitted
}

// ExamAttempt is one student's timed session against an exam.
type ExamAttempt struct {
	ID                string        `db:"id" json:"id"`
	ExamID            string        `db:"exam_id" json:"exam_id"`
	StudentID         string        `db:"student_id" json:"student_id"`
	Status            AttemptStatus `db:"status" json:"status"`
	StartedAt         *time.Time    `db:"started_at" json:"started_at,omitempty"`
	Deadline          time.Time     `db:"deadline" json:"deadline"`
	QuestionOrder     StringList    `db:"question_order" json:"question_order"`
	Answers           AnswerSheet   `db:"answers" json:"answers"`
	ObtainedMarks     *float64      `db:"obtained_marks" json:"obtained_marks,omitempty"`
	MaxObjectiveMarks float64       `db:"max_objective_marks" json:"max_objective_marks"`
	PendingManual     StringList    `db:"pending_manual" json:"pending_manual,omitempty"`
	SubmittedAt       *time.Time    `db:"submitted_at" json:"submitted_at,omitempty"`
	Version           int           `db:"version" json:"version"`
}

// AttemptFilter provides filters for listing attempts.
type AttemptFilter struct {
	ExamID    string
	StudentID string
	Status    AttemptStatus
	Page      int
	PageSize  int
}
