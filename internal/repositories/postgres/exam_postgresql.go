package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
)

type ExamPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewExamPostgreSQL(db *gorm.DB) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (e *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}

func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	return db.WithContext(ctx).Create(exam).Error
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)
	var exam models.Exam
	if err := db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)
	var exam models.Exam
	if err := db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("questions.id ASC") }).
		Preload("Questions.Choices").
		Preload("Subject").
		First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	return db.WithContext(ctx).Save(exam).Error
}

func (e *ExamPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := e.getDB(tx)
	return db.WithContext(ctx).Delete(&models.Exam{}, id).Error
}

func (e *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	db := e.getDB(tx)
	var exams []*models.Exam
	var total int64

	query := db.WithContext(ctx).Model(&models.Exam{})
	query = e.helpers.ApplyExamFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = e.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Preload("Subject").Find(&exams).Error; err != nil {
		return nil, 0, err
	}

	return exams, total, nil
}

func (e *ExamPostgreSQL) ListPublished(ctx context.Context, tx *gorm.DB) ([]*models.Exam, error) {
	db := e.getDB(tx)
	var exams []*models.Exam
	if err := db.WithContext(ctx).
		Where("is_published = ?", true).
		Order("created_at DESC").
		Preload("Subject").
		Find(&exams).Error; err != nil {
		return nil, fmt.Errorf("failed to list published exams: %w", err)
	}
	return exams, nil
}

func (e *ExamPostgreSQL) GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	filters.CreatedBy = &creatorID
	return e.List(ctx, tx, filters)
}

func (e *ExamPostgreSQL) CountQuestions(ctx context.Context, tx *gorm.DB, examID uint) (int, error) {
	db := e.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Question{}).
		Where("exam_id = ?", examID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (e *ExamPostgreSQL) HasAttempts(ctx context.Context, tx *gorm.DB, examID uint) (bool, error) {
	db := e.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("exam_id = ?", examID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ===== LEGACY DIRECT-MODE QUESTIONS =====

func (e *ExamPostgreSQL) CreateQuestion(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := e.getDB(tx)
	return db.WithContext(ctx).Create(question).Error
}

func (e *ExamPostgreSQL) GetQuestion(ctx context.Context, tx *gorm.DB, examID, questionID uint) (*models.Question, error) {
	db := e.getDB(tx)
	var question models.Question
	if err := db.WithContext(ctx).
		Where("id = ? AND exam_id = ?", questionID, examID).
		Preload("Choices").
		First(&question).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (e *ExamPostgreSQL) GetQuestions(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error) {
	db := e.getDB(tx)
	var questions []*models.Question
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("id ASC").
		Preload("Choices").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get exam questions: %w", err)
	}
	return questions, nil
}

func (e *ExamPostgreSQL) UpdateQuestion(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := e.getDB(tx)
	return db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(question).Error
}

func (e *ExamPostgreSQL) DeleteQuestion(ctx context.Context, tx *gorm.DB, examID, questionID uint) error {
	db := e.getDB(tx)
	result := db.WithContext(ctx).
		Where("id = ? AND exam_id = ?", questionID, examID).
		Delete(&models.Question{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (e *ExamPostgreSQL) GetChoice(ctx context.Context, tx *gorm.DB, questionID, choiceID uint) (*models.Choice, error) {
	db := e.getDB(tx)
	var choice models.Choice
	if err := db.WithContext(ctx).
		Where("id = ? AND question_id = ?", choiceID, questionID).
		First(&choice).Error; err != nil {
		return nil, err
	}
	return &choice, nil
}

func (e *ExamPostgreSQL) SetChoiceCorrect(ctx context.Context, tx *gorm.DB, questionID, choiceID uint) error {
	db := e.getDB(tx)
	result := db.WithContext(ctx).
		Model(&models.Choice{}).
		Where("id = ? AND question_id = ?", choiceID, questionID).
		Update("is_correct", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (e *ExamPostgreSQL) DemoteOtherCorrectChoices(ctx context.Context, tx *gorm.DB, questionID, keepChoiceID uint) error {
	db := e.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.Choice{}).
		Where("question_id = ? AND id <> ? AND is_correct = ?", questionID, keepChoiceID, true).
		Update("is_correct", false).Error
}
