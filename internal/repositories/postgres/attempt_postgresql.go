package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Saidabdi38/exam-site/internal/cache"
	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cacheManager,
	}
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func usedAttemptsCacheKey(userID string, examID uint) string {
	return fmt.Sprintf("attempt_count:%s:%d", userID, examID)
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Create(attempt).Error; err != nil {
		return err
	}
	a.invalidateCountCache(ctx, attempt.UserID, attempt.ExamID)
	return nil
}

func (a *AttemptPostgreSQL) invalidateCountCache(ctx context.Context, userID string, examID uint) {
	if a.cacheManager == nil {
		return
	}
	a.cacheManager.Fast.Delete(ctx, usedAttemptsCacheKey(userID, examID))
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Preload("Exam").
		Preload("Answers").
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Save(attempt).Error
}

// GetOpenAttempt returns the single unsubmitted attempt for a user on an exam,
// or gorm.ErrRecordNotFound when none is open.
func (a *AttemptPostgreSQL) GetOpenAttempt(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Where("user_id = ? AND exam_id = ? AND submitted_at IS NULL", userID, examID).
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetMaxAttemptNo(ctx context.Context, tx *gorm.DB, userID string, examID uint) (int, error) {
	db := a.getDB(tx)
	var maxNo *int
	if err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("user_id = ? AND exam_id = ?", userID, examID).
		Select("MAX(attempt_no)").
		Scan(&maxNo).Error; err != nil {
		return 0, err
	}
	if maxNo == nil {
		return 0, nil
	}
	return *maxNo, nil
}

func (a *AttemptPostgreSQL) CountByUserAndExam(ctx context.Context, tx *gorm.DB, userID string, examID uint) (int64, error) {
	db := a.getDB(tx)

	// Counts only feed the attempt-limit check; invalidated on Create.
	if tx == nil && a.cacheManager != nil {
		var count int64
		err := a.cacheManager.Fast.CacheOrExecute(ctx, usedAttemptsCacheKey(userID, examID), &count, cache.FastCacheConfig.TTL, func() (interface{}, error) {
			var dbCount int64
			if err := db.WithContext(ctx).
				Model(&models.Attempt{}).
				Where("user_id = ? AND exam_id = ?", userID, examID).
				Count(&dbCount).Error; err != nil {
				return nil, err
			}
			return dbCount, nil
		})
		return count, err
	}

	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("user_id = ? AND exam_id = ?", userID, examID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (a *AttemptPostgreSQL) GetLatestByUserAndExam(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Where("user_id = ? AND exam_id = ?", userID, examID).
		Order("attempt_no DESC").
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	var total int64

	query := db.WithContext(ctx).Model(&models.Attempt{})
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	var total int64

	query := db.WithContext(ctx).Model(&models.Attempt{}).Where("exam_id = ?", examID)
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.SortBy == "" {
		filters.SortBy = "started_at"
	}
	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetByStudent(ctx context.Context, tx *gorm.DB, userID string, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	var total int64

	query := db.WithContext(ctx).Model(&models.Attempt{}).Where("user_id = ?", userID)
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.SortBy == "" {
		filters.SortBy = "started_at"
	}
	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

// ===== FROZEN QUESTION SET =====

func (a *AttemptPostgreSQL) CreateAttemptQuestions(ctx context.Context, tx *gorm.DB, questions []*models.AttemptQuestion) error {
	if len(questions) == 0 {
		return errors.New("attempt question set cannot be empty")
	}
	db := a.getDB(tx)
	return db.WithContext(ctx).Create(&questions).Error
}

func (a *AttemptPostgreSQL) GetAttemptQuestions(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptQuestion, error) {
	db := a.getDB(tx)
	var questions []*models.AttemptQuestion
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_order ASC").
		Preload("BankQuestion").
		Preload("BankQuestion.Choices").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get attempt questions: %w", err)
	}
	return questions, nil
}

func (a *AttemptPostgreSQL) CountAttemptQuestions(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error) {
	db := a.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.AttemptQuestion{}).
		Where("attempt_id = ?", attemptID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
