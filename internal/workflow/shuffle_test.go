package workflow

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
)

func tenQuestionExam(shuffle bool) models.Exam {
	exam := models.Exam{ID: "exam-1", ShuffleQuestions: shuffle}
	for i := 10; i >= 1; i-- {
		exam.Questions = append(exam.Questions, models.Question{ID: fmt.Sprintf("q%02d", i), Position: i})
	}
	return exam
}

func TestQuestionOrderFollowsPosition(t *testing.T) {
	order := QuestionOrder(tenQuestionExam(false), "att-1")
	assert.Equal(t, "q01", order[0])
	assert.Equal(t, "q10", order[9])
}

func TestShuffledOrderIsReproducible(t *testing.T) {
	exam := tenQuestionExam(true)
	first := QuestionOrder(exam, "att-1")
	assert.Equal(t, first, QuestionOrder(exam, "att-1"))

	sorted := append([]string(nil), first...)
	sort.Strings(sorted)
	assert.Equal(t, QuestionOrder(tenQuestionExam(false), "att-1"), sorted)
}

func TestShuffledOrderVariesPerAttempt(t *testing.T) {
	exam := tenQuestionExam(true)
	seen := map[string]struct{}{}
	for i := 0; i < 20; i++ {
		order := QuestionOrder(exam, fmt.Sprintf("attempt-%d", i))
		seen[fmt.Sprint(order)] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}
