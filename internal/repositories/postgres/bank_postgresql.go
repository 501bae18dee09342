package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
)

type BankPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewBankPostgreSQL(db *gorm.DB) repositories.BankRepository {
	return &BankPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (b *BankPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return b.db
}

// ===== SUBJECTS =====

func (b *BankPostgreSQL) CreateSubject(ctx context.Context, tx *gorm.DB, subject *models.Subject) error {
	db := b.getDB(tx)
	return db.WithContext(ctx).Create(subject).Error
}

func (b *BankPostgreSQL) GetSubject(ctx context.Context, tx *gorm.DB, id uint) (*models.Subject, error) {
	db := b.getDB(tx)
	var subject models.Subject
	if err := db.WithContext(ctx).First(&subject, id).Error; err != nil {
		return nil, err
	}
	return &subject, nil
}

func (b *BankPostgreSQL) UpdateSubject(ctx context.Context, tx *gorm.DB, subject *models.Subject) error {
	db := b.getDB(tx)
	return db.WithContext(ctx).Save(subject).Error
}

func (b *BankPostgreSQL) DeleteSubject(ctx context.Context, tx *gorm.DB, id uint) error {
	db := b.getDB(tx)
	return db.WithContext(ctx).Delete(&models.Subject{}, id).Error
}

func (b *BankPostgreSQL) ListSubjects(ctx context.Context, tx *gorm.DB) ([]*models.Subject, error) {
	db := b.getDB(tx)
	var subjects []*models.Subject
	if err := db.WithContext(ctx).Order("name ASC").Find(&subjects).Error; err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}

// ===== BANK QUESTIONS =====

func (b *BankPostgreSQL) CreateQuestion(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error {
	db := b.getDB(tx)
	return db.WithContext(ctx).Create(question).Error
}

func (b *BankPostgreSQL) CreateQuestionBatch(ctx context.Context, tx *gorm.DB, questions []*models.BankQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	db := b.getDB(tx)
	return db.WithContext(ctx).Create(&questions).Error
}

func (b *BankPostgreSQL) GetQuestion(ctx context.Context, tx *gorm.DB, id uint) (*models.BankQuestion, error) {
	db := b.getDB(tx)
	var question models.BankQuestion
	if err := db.WithContext(ctx).Preload("Choices").First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (b *BankPostgreSQL) UpdateQuestion(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error {
	db := b.getDB(tx)
	return db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(question).Error
}

func (b *BankPostgreSQL) DeleteQuestion(ctx context.Context, tx *gorm.DB, id uint) error {
	db := b.getDB(tx)
	return db.WithContext(ctx).Delete(&models.BankQuestion{}, id).Error
}

func (b *BankPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.BankQuestionFilters) ([]*models.BankQuestion, int64, error) {
	db := b.getDB(tx)
	var questions []*models.BankQuestion
	var total int64

	query := db.WithContext(ctx).Model(&models.BankQuestion{})
	if filters.SubjectID != nil {
		query = query.Where("subject_id = ?", *filters.SubjectID)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Query != nil {
		query = query.Where("text ILIKE ?", "%"+*filters.Query+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("id ASC").Preload("Choices").Find(&questions).Error; err != nil {
		return nil, 0, err
	}

	return questions, total, nil
}

// ===== SAMPLING SUPPORT =====

func (b *BankPostgreSQL) GetBySubjectWithChoices(ctx context.Context, tx *gorm.DB, subjectID uint) ([]*models.BankQuestion, error) {
	db := b.getDB(tx)
	var questions []*models.BankQuestion
	if err := db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("id ASC").
		Preload("Choices").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get subject pool: %w", err)
	}
	return questions, nil
}

func (b *BankPostgreSQL) CountBySubject(ctx context.Context, tx *gorm.DB, subjectID uint) (int64, error) {
	db := b.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.BankQuestion{}).
		Where("subject_id = ?", subjectID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (b *BankPostgreSQL) GetChoice(ctx context.Context, tx *gorm.DB, bankQuestionID, choiceID uint) (*models.BankChoice, error) {
	db := b.getDB(tx)
	var choice models.BankChoice
	if err := db.WithContext(ctx).
		Where("id = ? AND bank_question_id = ?", choiceID, bankQuestionID).
		First(&choice).Error; err != nil {
		return nil, err
	}
	return &choice, nil
}

func (b *BankPostgreSQL) SetChoiceCorrect(ctx context.Context, tx *gorm.DB, bankQuestionID, choiceID uint) error {
	db := b.getDB(tx)
	result := db.WithContext(ctx).
		Model(&models.BankChoice{}).
		Where("id = ? AND bank_question_id = ?", choiceID, bankQuestionID).
		Update("is_correct", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (b *BankPostgreSQL) DemoteOtherCorrectChoices(ctx context.Context, tx *gorm.DB, bankQuestionID, keepChoiceID uint) error {
	db := b.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.BankChoice{}).
		Where("bank_question_id = ? AND id <> ? AND is_correct = ?", bankQuestionID, keepChoiceID, true).
		Update("is_correct", false).Error
}
