package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
)

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

func (a *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AnswerPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	db := a.getDB(tx)
	return db.WithContext(ctx).Create(&answers).Error
}

func (a *AnswerPostgreSQL) GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.Answer, error) {
	db := a.getDB(tx)
	var answer models.Answer
	if err := db.WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&answer).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

func (a *AnswerPostgreSQL) GetByAttemptAndBankQuestion(ctx context.Context, tx *gorm.DB, attemptID, bankQuestionID uint) (*models.Answer, error) {
	db := a.getDB(tx)
	var answer models.Answer
	if err := db.WithContext(ctx).
		Where("attempt_id = ? AND bank_question_id = ?", attemptID, bankQuestionID).
		First(&answer).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

func (a *AnswerPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	db := a.getDB(tx)

	// The unique indexes on answers are partial, so the conflict target must
	// repeat the index predicate or the database cannot infer the index.
	var conflictColumns []clause.Column
	var targetWhere clause.Where
	switch {
	case answer.BankQuestionID != nil:
		conflictColumns = []clause.Column{{Name: "attempt_id"}, {Name: "bank_question_id"}}
		targetWhere = clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "bank_question_id IS NOT NULL"},
		}}
	case answer.QuestionID != nil:
		conflictColumns = []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}}
		targetWhere = clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "question_id IS NOT NULL"},
		}}
	default:
		return errors.New("answer must reference a question")
	}

	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:     conflictColumns,
		TargetWhere: targetWhere,
		DoUpdates:   clause.AssignmentColumns([]string{"selected_choice_id", "updated_at"}),
	}).Create(answer).Error
}

func (a *AnswerPostgreSQL) ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	db := a.getDB(tx)
	var answers []*models.Answer
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}
