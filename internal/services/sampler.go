package services

import (
	"math/rand"
	"sync"
	"time"

	"github.com/Saidabdi38/exam-site/internal/models"
)

// QuestionSampler draws uniform random subsets from a subject pool. The rand
// source is injectable so attempt creation can be replayed under test with a
// fixed seed.
type QuestionSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewQuestionSampler() *QuestionSampler {
	return NewQuestionSamplerWithSource(rand.NewSource(time.Now().UnixNano()))
}

func NewQuestionSamplerWithSource(src rand.Source) *QuestionSampler {
	return &QuestionSampler{rng: rand.New(src)}
}

// Sample picks count questions from pool without replacement. The returned
// order is the sampling order; callers freeze it as question numbers 1..N.
// The pool slice is not modified.
func (s *QuestionSampler) Sample(pool []*models.BankQuestion, count int) ([]*models.BankQuestion, error) {
	if count <= 0 || count > len(pool) {
		return nil, ErrInsufficientPool
	}

	picked := make([]*models.BankQuestion, len(pool))
	copy(picked, pool)

	s.mu.Lock()
	s.rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	s.mu.Unlock()

	return picked[:count], nil
}
