package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
)

// permissionService resolves visibility and attempt budgets per exam mode.
//
// Bank-mode exams are deny-by-default: without a ResitPermission row the
// student neither sees the exam nor holds any attempts. Legacy exams are
// visible to everyone once published, with a default budget of one attempt.
// Resolution never writes grants; SetResit on the exam service is the only
// write path.
type permissionService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewPermissionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) PermissionService {
	return &permissionService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

func (s *permissionService) CanView(ctx context.Context, exam *models.Exam, userID string) (bool, error) {
	if !exam.IsPublished {
		return false, nil
	}

	if !exam.BankMode() {
		return true, nil
	}

	perm, err := s.repo.ResitPermission().Get(ctx, s.db, exam.ID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to resolve visibility: %w", err)
	}

	return perm.CanView, nil
}

func (s *permissionService) AllowedAttempts(ctx context.Context, exam *models.Exam, userID string) (int, error) {
	perm, err := s.repo.ResitPermission().Get(ctx, s.db, exam.ID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			if exam.BankMode() {
				return 0, nil
			}
			return 1, nil
		}
		return 0, fmt.Errorf("failed to resolve attempt budget: %w", err)
	}

	// A bank-mode grant that revokes visibility carries no attempts either.
	if exam.BankMode() && !perm.CanView {
		return 0, nil
	}

	return perm.AllowedAttempts(), nil
}

func (s *permissionService) UsedAttempts(ctx context.Context, examID uint, userID string) (int, error) {
	count, err := s.repo.Attempt().CountByUserAndExam(ctx, s.db, userID, examID)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return int(count), nil
}

func (s *permissionService) ResolveAccess(ctx context.Context, exam *models.Exam, userID string) (*ExamAccess, error) {
	canView, err := s.CanView(ctx, exam, userID)
	if err != nil {
		return nil, err
	}

	access := &ExamAccess{CanView: canView}
	if !canView {
		return access, nil
	}

	access.AllowedAttempts, err = s.AllowedAttempts(ctx, exam, userID)
	if err != nil {
		return nil, err
	}

	access.UsedAttempts, err = s.UsedAttempts(ctx, exam.ID, userID)
	if err != nil {
		return nil, err
	}

	access.CanStart = access.UsedAttempts < access.AllowedAttempts
	return access, nil
}
