package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
)

type ResitPermissionPostgreSQL struct {
	db *gorm.DB
}

func NewResitPermissionPostgreSQL(db *gorm.DB) repositories.ResitPermissionRepository {
	return &ResitPermissionPostgreSQL{db: db}
}

func (r *ResitPermissionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ResitPermissionPostgreSQL) Get(ctx context.Context, tx *gorm.DB, examID uint, userID string) (*models.ResitPermission, error) {
	db := r.getDB(tx)
	var perm models.ResitPermission
	if err := db.WithContext(ctx).
		Where("exam_id = ? AND user_id = ?", examID, userID).
		First(&perm).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *ResitPermissionPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, perm *models.ResitPermission) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "exam_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"extra_attempts", "can_view", "updated_at"}),
		}).
		Create(perm).Error; err != nil {
		return fmt.Errorf("failed to upsert resit permission: %w", err)
	}
	return nil
}

func (r *ResitPermissionPostgreSQL) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ResitPermission, error) {
	db := r.getDB(tx)
	var perms []*models.ResitPermission
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("user_id ASC").
		Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *ResitPermissionPostgreSQL) ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.ResitPermission, error) {
	db := r.getDB(tx)
	var perms []*models.ResitPermission
	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}
