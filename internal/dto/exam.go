package dto

import "time"

// QuestionRequest describes one exam question.
type QuestionRequest struct {
	Type          string   `json:"type" validate:"required,oneof=MCQ TRUE_FALSE SHORT_ANSWER"`
	Prompt        string   `json:"prompt" validate:"required"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Marks         float64  `json:"marks" validate:"gte=0"`
}

// CreateExamRequest describes a timed exam.
type CreateExamRequest struct {
	Title            string            `json:"title" validate:"required,max=200"`
	WindowStart      time.Time         `json:"window_start" validate:"required"`
	WindowEnd        time.Time         `json:"window_end" validate:"required"`
	DurationSeconds  int               `json:"duration_seconds" validate:"required,gt=0"`
	ShuffleQuestions bool              `json:"shuffle_questions"`
	Questions        []QuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

// AnswerQuestionRequest records an answer during an attempt.
type AnswerQuestionRequest struct {
	Value string `json:"value" validate:"max=10000"`
}

// ExportRequest asks for a gradebook or exam result export.
type ExportRequest struct {
	Kind       string `json:"kind" validate:"required,oneof=gradebook exam_results"`
	ResourceID string `json:"resource_id" validate:"required"`
	Format     string `json:"format" validate:"required,oneof=csv pdf xlsx"`
}

// ExportResponse points at a generated export.
type ExportResponse struct {
	ID          string    `json:"id"`
	Format      string    `json:"format"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}
