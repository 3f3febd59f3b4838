package workflow

import "github.com/noah-isme/classroom-workflow-api/internal/models"

// ScoreResult is the outcome of auto-grading an attempt.
type ScoreResult struct {
	Obtained      float64
	MaxObjective  float64
	PendingManual []string
}

// Score awards full marks for objective questions whose answer equals the
// correct answer exactly and zero otherwise. SHORT_ANSWER questions are never
// auto-scored; they are reported in PendingManual.
func Score(questions []models.Question, answers models.AnswerSheet) ScoreResult {
	var result ScoreResult
	for _, q := range questions {
		if !q.Type.Objective() {
			result.PendingManual = append(result.PendingManual, q.ID)
			continue
		}
		result.MaxObjective += q.Marks
		if given, ok := answers[q.ID]; ok && given == q.CorrectAnswer {
			result.Obtained += q.Marks
		}
	}
	return result
}
