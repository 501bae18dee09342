package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Saidabdi38/exam-site/internal/cache"
	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
	"github.com/Saidabdi38/exam-site/internal/validator"
)

// bankService manages subjects and the shared question pool behind bank-mode
// exams. All operations are teacher-only.
type bankService struct {
	repo         repositories.Repository
	db           *gorm.DB
	logger       *slog.Logger
	validator    *validator.Validator
	cacheManager *cache.CacheManager
}

func NewBankService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	v *validator.Validator,
	cacheManager *cache.CacheManager,
) BankService {
	return &bankService{
		repo:         repo,
		db:           db,
		logger:       logger,
		validator:    v,
		cacheManager: cacheManager,
	}
}

// ===== SUBJECTS =====

func (s *bankService) CreateSubject(ctx context.Context, req *CreateSubjectRequest, userID string) (*models.Subject, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.requireTeacher(ctx, userID); err != nil {
		return nil, err
	}

	subject := &models.Subject{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   userID,
	}

	if err := s.repo.Bank().CreateSubject(ctx, s.db, subject); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, NewBusinessRuleError("subject_name_unique", "a subject with this name already exists")
		}
		return nil, fmt.Errorf("failed to create subject: %w", err)
	}

	s.logger.Info("Subject created", "subject_id", subject.ID, "name", subject.Name)
	return subject, nil
}

func (s *bankService) GetSubject(ctx context.Context, id uint, userID string) (*models.Subject, error) {
	if err := s.requireTeacher(ctx, userID); err != nil {
		return nil, err
	}

	subject, err := s.repo.Bank().GetSubject(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	return subject, nil
}

func (s *bankService) DeleteSubject(ctx context.Context, id uint, userID string) error {
	if err := s.requireTeacher(ctx, userID); err != nil {
		return err
	}

	count, err := s.repo.Bank().CountBySubject(ctx, s.db, id)
	if err != nil {
		return fmt.Errorf("failed to count subject questions: %w", err)
	}
	if count > 0 {
		return NewBusinessRuleError("subject_not_empty", "subject still has questions")
	}

	if err := s.repo.Bank().DeleteSubject(ctx, s.db, id); err != nil {
		return fmt.Errorf("failed to delete subject: %w", err)
	}

	s.logger.Info("Subject deleted", "subject_id", id, "user_id", userID)
	return nil
}

func (s *bankService) ListSubjects(ctx context.Context, userID string) ([]*models.Subject, error) {
	if err := s.requireTeacher(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.Bank().ListSubjects(ctx, s.db)
}

// ===== BANK QUESTIONS =====

func (s *bankService) CreateQuestion(ctx context.Context, req *CreateBankQuestionRequest, userID string) (*models.BankQuestion, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.requireTeacher(ctx, userID); err != nil {
		return nil, err
	}

	if _, err := s.repo.Bank().GetSubject(ctx, s.db, req.SubjectID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("failed to check subject: %w", err)
	}

	correctCount := 0
	for _, c := range req.Choices {
		if c.IsCorrect {
			correctCount++
		}
	}
	if correctCount > 1 {
		return nil, NewBusinessRuleError("single_correct_choice",
			"a question can have at most one correct choice")
	}

	question := &models.BankQuestion{
		SubjectID: req.SubjectID,
		Text:      req.Text,
		Type:      req.Type,
		CreatedBy: userID,
	}
	question.Choices = make([]models.BankChoice, len(req.Choices))
	for i, c := range req.Choices {
		question.Choices[i] = models.BankChoice{Text: c.Text, IsCorrect: c.IsCorrect}
	}

	if err := s.repo.Bank().CreateQuestion(ctx, s.db, question); err != nil {
		return nil, fmt.Errorf("failed to create bank question: %w", err)
	}

	s.invalidatePool(ctx, req.SubjectID)
	s.logger.Info("Bank question created",
		"question_id", question.ID,
		"subject_id", req.SubjectID,
		"user_id", userID)
	return question, nil
}

func (s *bankService) GetQuestion(ctx context.Context, id uint, userID string) (*models.BankQuestion, error) {
	if err := s.requireTeacher(ctx, userID); err != nil {
		return nil, err
	}

	question, err := s.repo.Bank().GetQuestion(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get bank question: %w", err)
	}
	return question, nil
}

// DeleteQuestion removes a question from the pool. Frozen attempt sets keep
// their own rows, so in-flight attempts are unaffected.
func (s *bankService) DeleteQuestion(ctx context.Context, id uint, userID string) error {
	if err := s.requireTeacher(ctx, userID); err != nil {
		return err
	}

	question, err := s.repo.Bank().GetQuestion(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get bank question: %w", err)
	}

	if err := s.repo.Bank().DeleteQuestion(ctx, s.db, id); err != nil {
		return fmt.Errorf("failed to delete bank question: %w", err)
	}

	s.invalidatePool(ctx, question.SubjectID)
	s.logger.Info("Bank question deleted", "question_id", id, "user_id", userID)
	return nil
}

func (s *bankService) ListQuestions(ctx context.Context, filters repositories.BankQuestionFilters, userID string) ([]*models.BankQuestion, int64, error) {
	if err := s.requireTeacher(ctx, userID); err != nil {
		return nil, 0, err
	}
	return s.repo.Bank().List(ctx, s.db, filters)
}

// SetCorrectChoice marks one choice correct and demotes the rest.
func (s *bankService) SetCorrectChoice(ctx context.Context, questionID, choiceID uint, userID string) error {
	if err := s.requireTeacher(ctx, userID); err != nil {
		return err
	}

	question, err := s.repo.Bank().GetQuestion(ctx, s.db, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get bank question: %w", err)
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Bank().SetChoiceCorrect(ctx, nil, questionID, choiceID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrChoiceNotInQuestion
			}
			return fmt.Errorf("failed to set correct choice: %w", err)
		}
		if err := txRepo.Bank().DemoteOtherCorrectChoices(ctx, nil, questionID, choiceID); err != nil {
			return fmt.Errorf("failed to demote choices: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidatePool(ctx, question.SubjectID)
	return nil
}

// ===== INTERNAL =====

func (s *bankService) requireTeacher(ctx context.Context, userID string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if !user.IsTeacher() {
		return ErrTeacherOnly
	}
	return nil
}

func (s *bankService) invalidatePool(ctx context.Context, subjectID uint) {
	if s.cacheManager == nil {
		return
	}
	if err := s.cacheManager.InvalidateSubjectPool(ctx, subjectID); err != nil {
		s.logger.Warn("Failed to invalidate subject pool cache",
			"subject_id", subjectID,
			"error", err)
	}
}
