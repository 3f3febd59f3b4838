package workflow

import (
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
)

// QuestionOrder returns the question IDs presented to an attempt. Without
// shuffling this is position order. With shuffling the permutation is derived
// from the attempt ID alone, so it can be reproduced for review.
func QuestionOrder(exam models.Exam, attemptID string) []string {
	questions := make([]models.Question, len(exam.Questions))
	copy(questions, exam.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Position < questions[j].Position
	})

	order := make([]string, len(questions))
	for i, q := range questions {
		order[i] = q.ID
	}
	if !exam.ShuffleQuestions || len(order) < 2 {
		return order
	}

	rng := rand.New(rand.NewSource(seedFor(attemptID)))
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}

func seedFor(attemptID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(attemptID))
	return int64(h.Sum64())
}
