package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Saidabdi38/exam-site/internal/cache"
	"github.com/Saidabdi38/exam-site/internal/events"
	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
	"github.com/Saidabdi38/exam-site/internal/repositories/postgres"
	"github.com/Saidabdi38/exam-site/internal/validator"
)

var testDBSeq atomic.Int64

// openTestDB opens a fresh in-memory database per test. The shared-cache URI
// keeps the database alive across the pool's connections.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Subject{},
		&models.BankQuestion{},
		&models.BankChoice{},
		&models.Exam{},
		&models.Question{},
		&models.Choice{},
		&models.ResitPermission{},
		&models.Attempt{},
		&models.AttemptQuestion{},
		&models.Answer{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubUserRepository serves directory lookups from a fixed map, standing in
// for the identity provider.
type stubUserRepository struct {
	users map[string]*models.User
}

func newStubUserRepository(users ...*models.User) *stubUserRepository {
	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return &stubUserRepository{users: byID}
}

func (s *stubUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUserRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	found := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			found = append(found, user)
		}
	}
	return found, nil
}

func (s *stubUserRepository) ListStudents(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	var students []*models.User
	for _, user := range s.users {
		if user.Role == models.RoleStudent {
			students = append(students, user)
		}
	}
	return students, int64(len(students)), nil
}

func (s *stubUserRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, ok := s.users[id]
	return ok, nil
}

// testRepository wires the real persistence layer over the test database,
// with user lookups stubbed out.
type testRepository struct {
	db      *gorm.DB
	exam    repositories.ExamRepository
	resit   repositories.ResitPermissionRepository
	bank    repositories.BankRepository
	attempt repositories.AttemptRepository
	answer  repositories.AnswerRepository
	user    repositories.UserRepository
}

func newTestRepository(db *gorm.DB, users repositories.UserRepository) *testRepository {
	return &testRepository{
		db:      db,
		exam:    postgres.NewExamPostgreSQL(db),
		resit:   postgres.NewResitPermissionPostgreSQL(db),
		bank:    postgres.NewBankPostgreSQL(db),
		attempt: postgres.NewAttemptPostgreSQL(db, cache.NewCacheManager(nil)),
		answer:  postgres.NewAnswerPostgreSQL(db),
		user:    users,
	}
}

func (r *testRepository) Exam() repositories.ExamRepository                       { return r.exam }
func (r *testRepository) ResitPermission() repositories.ResitPermissionRepository { return r.resit }
func (r *testRepository) Bank() repositories.BankRepository                       { return r.bank }
func (r *testRepository) Attempt() repositories.AttemptRepository                 { return r.attempt }
func (r *testRepository) Answer() repositories.AnswerRepository                   { return r.answer }
func (r *testRepository) User() repositories.UserRepository                       { return r.user }

func (r *testRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newTestRepository(tx, r.user))
	})
}

func (r *testRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *testRepository) Close() error { return nil }

// ===== FIXTURES =====

const (
	testTeacherID = "teacher-1"
	testStudentID = "student-1"
)

func testUsers() repositories.UserRepository {
	return newStubUserRepository(
		&models.User{ID: testTeacherID, Username: "teacher", FullName: "Test Teacher", Role: models.RoleTeacher, IsStaff: true},
		&models.User{ID: testStudentID, Username: "student", FullName: "Test Student", Role: models.RoleStudent},
		&models.User{ID: "student-2", Username: "student2", FullName: "Second Student", Role: models.RoleStudent},
	)
}

// seedSubjectPool creates a subject with poolSize questions of four choices
// each; the first choice of every question is the correct one.
func seedSubjectPool(t *testing.T, db *gorm.DB, poolSize int) *models.Subject {
	t.Helper()

	subject := &models.Subject{Name: fmt.Sprintf("Subject %d", testDBSeq.Add(1)), CreatedBy: testTeacherID}
	if err := db.Create(subject).Error; err != nil {
		t.Fatalf("failed to seed subject: %v", err)
	}

	for i := 0; i < poolSize; i++ {
		question := &models.BankQuestion{
			SubjectID: subject.ID,
			Text:      fmt.Sprintf("Bank question %d", i+1),
			Type:      models.MultipleChoice,
			CreatedBy: testTeacherID,
			Choices: []models.BankChoice{
				{Text: "Correct", IsCorrect: true},
				{Text: "Wrong A"},
				{Text: "Wrong B"},
				{Text: "Wrong C"},
			},
		}
		if err := db.Create(question).Error; err != nil {
			t.Fatalf("failed to seed bank question: %v", err)
		}
	}

	return subject
}

func seedBankExam(t *testing.T, db *gorm.DB, subjectID uint, questionCount int) *models.Exam {
	t.Helper()

	exam := &models.Exam{
		Title:            "Bank Exam",
		DurationMinutes:  30,
		IsPublished:      true,
		UsesQuestionBank: true,
		SubjectID:        &subjectID,
		QuestionCount:    questionCount,
		CreatedBy:        testTeacherID,
	}
	if err := db.Create(exam).Error; err != nil {
		t.Fatalf("failed to seed exam: %v", err)
	}
	return exam
}

// seedLegacyExam creates a published direct-mode exam with questionCount
// questions; every question's first choice is correct.
func seedLegacyExam(t *testing.T, db *gorm.DB, questionCount int) *models.Exam {
	t.Helper()

	exam := &models.Exam{
		Title:           "Legacy Exam",
		DurationMinutes: 30,
		IsPublished:     true,
		CreatedBy:       testTeacherID,
	}
	if err := db.Create(exam).Error; err != nil {
		t.Fatalf("failed to seed exam: %v", err)
	}

	for i := 0; i < questionCount; i++ {
		question := &models.Question{
			ExamID: exam.ID,
			Text:   fmt.Sprintf("Question %d", i+1),
			Type:   models.MultipleChoice,
			Choices: []models.Choice{
				{Text: "Correct", IsCorrect: true},
				{Text: "Wrong A"},
				{Text: "Wrong B"},
			},
		}
		if err := db.Create(question).Error; err != nil {
			t.Fatalf("failed to seed question: %v", err)
		}
	}

	return exam
}

func grantResit(t *testing.T, db *gorm.DB, examID uint, userID string, extraAttempts int, canView bool) {
	t.Helper()

	perm := &models.ResitPermission{
		ExamID:        examID,
		UserID:        userID,
		ExtraAttempts: extraAttempts,
		CanView:       canView,
	}
	if err := db.Create(perm).Error; err != nil {
		t.Fatalf("failed to grant resit: %v", err)
	}
}

// testEnv bundles the wired service layer over one test database.
type testEnv struct {
	db        *gorm.DB
	repo      *testRepository
	publisher *events.MockEventPublisher
	attempts  AttemptService
	grading   GradingService
	perms     PermissionService
	exams     ExamService
	bank      BankService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := openTestDB(t)
	repo := newTestRepository(db, testUsers())
	logger := testLogger()
	publisher := events.NewMockEventPublisher(logger)
	v := validator.New()

	perms := NewPermissionService(repo, db, logger)
	grading := NewGradingService(repo, db, logger)
	sampler := NewQuestionSamplerWithSource(rand.NewSource(1))
	attempts := NewAttemptService(repo, db, logger, v, perms, grading, sampler, publisher)
	exams := NewExamService(repo, db, logger, v, perms, publisher)
	bank := NewBankService(repo, db, logger, v, cache.NewCacheManager(nil))

	return &testEnv{
		db:        db,
		repo:      repo,
		publisher: publisher,
		attempts:  attempts,
		grading:   grading,
		perms:     perms,
		exams:     exams,
		bank:      bank,
	}
}

func uintPtr(v uint) *uint { return &v }
