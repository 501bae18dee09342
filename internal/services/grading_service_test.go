package services

import (
	"context"
	"testing"
	"time"

	"github.com/Saidabdi38/exam-site/internal/models"
)

func seedAttemptRow(t *testing.T, env *testEnv, examID uint) *models.Attempt {
	t.Helper()

	attempt := &models.Attempt{
		ExamID:          examID,
		UserID:          testStudentID,
		AttemptNo:       1,
		StartedAt:       time.Now(),
		DurationSeconds: 1800,
	}
	if err := env.db.Create(attempt).Error; err != nil {
		t.Fatalf("failed to seed attempt: %v", err)
	}
	return attempt
}

func legacyQuestions(t *testing.T, env *testEnv, examID uint) []*models.Question {
	t.Helper()

	var questions []*models.Question
	if err := env.db.Where("exam_id = ?", examID).Order("id ASC").Preload("Choices").Find(&questions).Error; err != nil {
		t.Fatalf("failed to load questions: %v", err)
	}
	return questions
}

// choiceID returns the first choice of the question matching the wanted
// correctness flag.
func choiceID(t *testing.T, choices []models.Choice, correct bool) uint {
	t.Helper()

	for _, c := range choices {
		if c.IsCorrect == correct {
			return c.ID
		}
	}
	t.Fatalf("no choice with is_correct=%v", correct)
	return 0
}

func TestGradingService_LegacyMode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam := seedLegacyExam(t, env.db, 4)
	questions := legacyQuestions(t, env, exam.ID)
	attempt := seedAttemptRow(t, env, exam.ID)

	// Three correct, one wrong, nothing skipped.
	for i, q := range questions {
		selected := choiceID(t, q.Choices, i < 3)
		answer := &models.Answer{
			AttemptID:        attempt.ID,
			QuestionID:       uintPtr(q.ID),
			SelectedChoiceID: uintPtr(selected),
		}
		if err := env.db.Create(answer).Error; err != nil {
			t.Fatalf("failed to seed answer: %v", err)
		}
	}

	result, err := env.grading.ScoreAttempt(ctx, attempt)
	if err != nil {
		t.Fatalf("ScoreAttempt() error = %v", err)
	}

	if result.Score != 3*QuestionWeight {
		t.Errorf("Score = %d, want %d", result.Score, 3*QuestionWeight)
	}
	if result.MaxScore != 4*QuestionWeight {
		t.Errorf("MaxScore = %d, want %d", result.MaxScore, 4*QuestionWeight)
	}
	if !result.Passed {
		t.Errorf("Passed = false at %.0f%%, want true", result.Percent)
	}
}

func TestGradingService_UnansweredScoreZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam := seedLegacyExam(t, env.db, 3)
	attempt := seedAttemptRow(t, env, exam.ID)

	result, err := env.grading.ScoreAttempt(ctx, attempt)
	if err != nil {
		t.Fatalf("ScoreAttempt() error = %v", err)
	}

	if result.Score != 0 {
		t.Errorf("Score = %d, want 0", result.Score)
	}
	if result.MaxScore != 3*QuestionWeight {
		t.Errorf("MaxScore = %d, want %d", result.MaxScore, 3*QuestionWeight)
	}
	if result.Passed {
		t.Error("Passed = true with no answers, want false")
	}
}

func TestGradingService_PassBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Four questions: exactly half correct lands on the 50% threshold.
	exam := seedLegacyExam(t, env.db, 4)
	questions := legacyQuestions(t, env, exam.ID)
	attempt := seedAttemptRow(t, env, exam.ID)

	for i, q := range questions {
		selected := choiceID(t, q.Choices, i < 2)
		answer := &models.Answer{
			AttemptID:        attempt.ID,
			QuestionID:       uintPtr(q.ID),
			SelectedChoiceID: uintPtr(selected),
		}
		if err := env.db.Create(answer).Error; err != nil {
			t.Fatalf("failed to seed answer: %v", err)
		}
	}

	result, err := env.grading.ScoreAttempt(ctx, attempt)
	if err != nil {
		t.Fatalf("ScoreAttempt() error = %v", err)
	}

	if result.Percent != 50 {
		t.Errorf("Percent = %.1f, want 50", result.Percent)
	}
	if !result.Passed {
		t.Error("Passed = false at exactly the pass threshold, want true")
	}
}

func TestGradingService_BankMode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	subject := seedSubjectPool(t, env.db, 5)
	exam := seedBankExam(t, env.db, subject.ID, 3)
	attempt := seedAttemptRow(t, env, exam.ID)

	var pool []*models.BankQuestion
	if err := env.db.Where("subject_id = ?", subject.ID).Order("id ASC").Preload("Choices").Find(&pool).Error; err != nil {
		t.Fatalf("failed to load pool: %v", err)
	}

	// Freeze the first three pool questions into the attempt.
	for i := 0; i < 3; i++ {
		row := &models.AttemptQuestion{
			AttemptID:      attempt.ID,
			BankQuestionID: pool[i].ID,
			Order:          i + 1,
		}
		if err := env.db.Create(row).Error; err != nil {
			t.Fatalf("failed to freeze question: %v", err)
		}
	}

	// First question correct, second wrong, third unanswered.
	answers := []*models.Answer{
		{AttemptID: attempt.ID, BankQuestionID: uintPtr(pool[0].ID), SelectedChoiceID: uintPtr(bankChoiceID(t, pool[0].Choices, true))},
		{AttemptID: attempt.ID, BankQuestionID: uintPtr(pool[1].ID), SelectedChoiceID: uintPtr(bankChoiceID(t, pool[1].Choices, false))},
	}
	for _, answer := range answers {
		if err := env.db.Create(answer).Error; err != nil {
			t.Fatalf("failed to seed answer: %v", err)
		}
	}

	result, err := env.grading.ScoreAttempt(ctx, attempt)
	if err != nil {
		t.Fatalf("ScoreAttempt() error = %v", err)
	}

	if result.Score != QuestionWeight {
		t.Errorf("Score = %d, want %d", result.Score, QuestionWeight)
	}
	if result.MaxScore != 3*QuestionWeight {
		t.Errorf("MaxScore = %d, want %d (frozen set, not pool size)", result.MaxScore, 3*QuestionWeight)
	}
	if result.Passed {
		t.Errorf("Passed = true at %.1f%%, want false", result.Percent)
	}
}

func bankChoiceID(t *testing.T, choices []models.BankChoice, correct bool) uint {
	t.Helper()

	for _, c := range choices {
		if c.IsCorrect == correct {
			return c.ID
		}
	}
	t.Fatalf("no bank choice with is_correct=%v", correct)
	return 0
}
