package services

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/Saidabdi38/exam-site/internal/models"
)

func makePool(size int) []*models.BankQuestion {
	pool := make([]*models.BankQuestion, size)
	for i := range pool {
		pool[i] = &models.BankQuestion{ID: uint(i + 1)}
	}
	return pool
}

func TestQuestionSampler_Sample(t *testing.T) {
	t.Run("returns requested count without duplicates", func(t *testing.T) {
		sampler := NewQuestionSampler()
		pool := makePool(20)

		sampled, err := sampler.Sample(pool, 5)
		if err != nil {
			t.Fatalf("Sample() error = %v", err)
		}
		if len(sampled) != 5 {
			t.Fatalf("Sample() returned %d questions, want 5", len(sampled))
		}

		seen := make(map[uint]bool)
		for _, q := range sampled {
			if seen[q.ID] {
				t.Errorf("question %d sampled twice", q.ID)
			}
			seen[q.ID] = true
		}
	})

	t.Run("count equal to pool size uses every question", func(t *testing.T) {
		sampler := NewQuestionSampler()
		pool := makePool(7)

		sampled, err := sampler.Sample(pool, 7)
		if err != nil {
			t.Fatalf("Sample() error = %v", err)
		}

		seen := make(map[uint]bool)
		for _, q := range sampled {
			seen[q.ID] = true
		}
		if len(seen) != 7 {
			t.Errorf("Sample() covered %d distinct questions, want 7", len(seen))
		}
	})

	t.Run("insufficient pool", func(t *testing.T) {
		sampler := NewQuestionSampler()

		_, err := sampler.Sample(makePool(3), 4)
		if !errors.Is(err, ErrInsufficientPool) {
			t.Errorf("Sample() error = %v, want ErrInsufficientPool", err)
		}
	})

	t.Run("non-positive count", func(t *testing.T) {
		sampler := NewQuestionSampler()

		for _, count := range []int{0, -1} {
			if _, err := sampler.Sample(makePool(3), count); !errors.Is(err, ErrInsufficientPool) {
				t.Errorf("Sample(count=%d) error = %v, want ErrInsufficientPool", count, err)
			}
		}
	})

	t.Run("does not modify the pool", func(t *testing.T) {
		sampler := NewQuestionSampler()
		pool := makePool(10)

		if _, err := sampler.Sample(pool, 10); err != nil {
			t.Fatalf("Sample() error = %v", err)
		}
		for i, q := range pool {
			if q.ID != uint(i+1) {
				t.Fatalf("pool order changed at index %d: got %d", i, q.ID)
			}
		}
	})

	t.Run("fixed seed is reproducible", func(t *testing.T) {
		first, err := NewQuestionSamplerWithSource(rand.NewSource(42)).Sample(makePool(30), 10)
		if err != nil {
			t.Fatalf("Sample() error = %v", err)
		}
		second, err := NewQuestionSamplerWithSource(rand.NewSource(42)).Sample(makePool(30), 10)
		if err != nil {
			t.Fatalf("Sample() error = %v", err)
		}

		for i := range first {
			if first[i].ID != second[i].ID {
				t.Fatalf("seeded runs diverge at position %d: %d vs %d", i, first[i].ID, second[i].ID)
			}
		}
	})
}
