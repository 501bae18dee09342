package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
)

const (
	// QuestionWeight is the fixed score value of every question.
	QuestionWeight = 2

	// PassPercent is the fixed passing threshold.
	PassPercent = 50.0
)

// gradingService scores attempts from their stored answers.
//
// Bank-mode attempts score over the frozen attempt question set, so the
// maximum is stable regardless of later pool edits. Legacy attempts score
// over the exam's current question list; an exam edited after submission can
// change what a stored result would re-score to, which matches how those
// exams have always behaved.
type gradingService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewGradingService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) GradingService {
	return &gradingService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

func (s *gradingService) ScoreAttempt(ctx context.Context, attempt *models.Attempt) (*ScoreResult, error) {
	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, s.db, attempt.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam for scoring: %w", err)
	}

	answers, err := s.repo.Answer().ListByAttempt(ctx, s.db, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}

	var score, maxScore int
	if exam.BankMode() {
		score, maxScore, err = s.scoreBankMode(ctx, attempt, answers)
		if err != nil {
			return nil, err
		}
	} else {
		score, maxScore = s.scoreLegacyMode(exam, answers)
	}

	result := &ScoreResult{
		Score:    score,
		MaxScore: maxScore,
	}
	if maxScore > 0 {
		result.Percent = float64(score) / float64(maxScore) * 100
	}
	result.Passed = result.Percent >= PassPercent

	s.logger.Info("Attempt scored",
		"attempt_id", attempt.ID,
		"score", score,
		"max_score", maxScore,
		"passed", result.Passed)

	return result, nil
}

func (s *gradingService) scoreBankMode(ctx context.Context, attempt *models.Attempt, answers []*models.Answer) (int, int, error) {
	frozen, err := s.repo.Attempt().GetAttemptQuestions(ctx, s.db, attempt.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load attempt questions: %w", err)
	}

	selected := make(map[uint]uint, len(answers))
	for _, answer := range answers {
		if answer.BankQuestionID != nil && answer.SelectedChoiceID != nil {
			selected[*answer.BankQuestionID] = *answer.SelectedChoiceID
		}
	}

	score := 0
	for _, aq := range frozen {
		choiceID, answered := selected[aq.BankQuestionID]
		if !answered {
			continue
		}
		for _, choice := range aq.BankQuestion.Choices {
			if choice.ID == choiceID && choice.IsCorrect {
				score += QuestionWeight
				break
			}
		}
	}

	return score, QuestionWeight * len(frozen), nil
}

func (s *gradingService) scoreLegacyMode(exam *models.Exam, answers []*models.Answer) (int, int) {
	selected := make(map[uint]uint, len(answers))
	for _, answer := range answers {
		if answer.QuestionID != nil && answer.SelectedChoiceID != nil {
			selected[*answer.QuestionID] = *answer.SelectedChoiceID
		}
	}

	score := 0
	for _, question := range exam.Questions {
		choiceID, answered := selected[question.ID]
		if !answered {
			continue
		}
		for _, choice := range question.Choices {
			if choice.ID == choiceID && choice.IsCorrect {
				score += QuestionWeight
				break
			}
		}
	}

	return score, QuestionWeight * len(exam.Questions)
}
