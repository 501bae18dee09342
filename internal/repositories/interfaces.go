package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Saidabdi38/exam-site/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	IsPublished *bool      `json:"is_published"`
	CreatedBy   *string    `json:"created_by"`
	SubjectID   *uint      `json:"subject_id"`
	DateFrom    *time.Time `json:"date_from"`
	DateTo      *time.Time `json:"date_to"`
	Limit       int        `json:"limit"`
	Offset      int        `json:"offset"`
	SortBy      string     `json:"sort_by"`    // "created_at", "title"
	SortOrder   string     `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	StudentID *string               `json:"student_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type BankQuestionFilters struct {
	SubjectID *uint   `json:"subject_id"`
	CreatedBy *string `json:"created_by"`
	Query     *string `json:"query"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
}

// ===== EXAM DOMAIN =====

type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) // legacy questions + choices
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)
	ListPublished(ctx context.Context, tx *gorm.DB) ([]*models.Exam, error)
	GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters ExamFilters) ([]*models.Exam, int64, error)

	CountQuestions(ctx context.Context, tx *gorm.DB, examID uint) (int, error)
	HasAttempts(ctx context.Context, tx *gorm.DB, examID uint) (bool, error)

	// Legacy direct-mode question management
	CreateQuestion(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetQuestion(ctx context.Context, tx *gorm.DB, examID, questionID uint) (*models.Question, error)
	GetQuestions(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error) // ordered by id, choices preloaded
	UpdateQuestion(ctx context.Context, tx *gorm.DB, question *models.Question) error
	DeleteQuestion(ctx context.Context, tx *gorm.DB, examID, questionID uint) error
	GetChoice(ctx context.Context, tx *gorm.DB, questionID, choiceID uint) (*models.Choice, error)
	// Keeps a single correct choice per question; last write wins.
	SetChoiceCorrect(ctx context.Context, tx *gorm.DB, questionID, choiceID uint) error
	DemoteOtherCorrectChoices(ctx context.Context, tx *gorm.DB, questionID, keepChoiceID uint) error
}

// ===== RESIT / VISIBILITY DOMAIN =====

type ResitPermissionRepository interface {
	Get(ctx context.Context, tx *gorm.DB, examID uint, userID string) (*models.ResitPermission, error)
	// Upsert is the single write path; it is only reachable from explicitly
	// invoked teacher actions, never from read-side permission checks.
	Upsert(ctx context.Context, tx *gorm.DB, perm *models.ResitPermission) error
	ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ResitPermission, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.ResitPermission, error)
}

// ===== QUESTION BANK DOMAIN =====

type BankRepository interface {
	// Subjects
	CreateSubject(ctx context.Context, tx *gorm.DB, subject *models.Subject) error
	GetSubject(ctx context.Context, tx *gorm.DB, id uint) (*models.Subject, error)
	UpdateSubject(ctx context.Context, tx *gorm.DB, subject *models.Subject) error
	DeleteSubject(ctx context.Context, tx *gorm.DB, id uint) error
	ListSubjects(ctx context.Context, tx *gorm.DB) ([]*models.Subject, error)

	// Bank questions
	CreateQuestion(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error
	CreateQuestionBatch(ctx context.Context, tx *gorm.DB, questions []*models.BankQuestion) error
	GetQuestion(ctx context.Context, tx *gorm.DB, id uint) (*models.BankQuestion, error)
	UpdateQuestion(ctx context.Context, tx *gorm.DB, question *models.BankQuestion) error
	DeleteQuestion(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters BankQuestionFilters) ([]*models.BankQuestion, int64, error)

	// Sampling support
	GetBySubjectWithChoices(ctx context.Context, tx *gorm.DB, subjectID uint) ([]*models.BankQuestion, error)
	CountBySubject(ctx context.Context, tx *gorm.DB, subjectID uint) (int64, error)
	GetChoice(ctx context.Context, tx *gorm.DB, bankQuestionID, choiceID uint) (*models.BankChoice, error)
	SetChoiceCorrect(ctx context.Context, tx *gorm.DB, bankQuestionID, choiceID uint) error
	DemoteOtherCorrectChoices(ctx context.Context, tx *gorm.DB, bankQuestionID, keepChoiceID uint) error
}

// ===== ATTEMPT DOMAIN =====

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) // exam + answers preloaded
	Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error

	// Open-attempt and numbering queries
	GetOpenAttempt(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.Attempt, error)
	GetMaxAttemptNo(ctx context.Context, tx *gorm.DB, userID string, examID uint) (int, error)
	CountByUserAndExam(ctx context.Context, tx *gorm.DB, userID string, examID uint) (int64, error)
	GetLatestByUserAndExam(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.Attempt, error)

	// Listings
	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.Attempt, int64, error)
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters AttemptFilters) ([]*models.Attempt, int64, error)
	GetByStudent(ctx context.Context, tx *gorm.DB, userID string, filters AttemptFilters) ([]*models.Attempt, int64, error)

	// Frozen question set (bank mode); written once at creation.
	CreateAttemptQuestions(ctx context.Context, tx *gorm.DB, rows []*models.AttemptQuestion) error
	GetAttemptQuestions(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AttemptQuestion, error) // ordered, bank questions + choices preloaded
	CountAttemptQuestions(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error)
}

// ===== ANSWER DOMAIN =====

type AnswerRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error
	GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.Answer, error)
	GetByAttemptAndBankQuestion(ctx context.Context, tx *gorm.DB, attemptID, bankQuestionID uint) (*models.Answer, error)
	// Upsert serializes concurrent writes for the same (attempt, question)
	// through a single-row conflict update; last committed write wins.
	Upsert(ctx context.Context, tx *gorm.DB, answer *models.Answer) error
	ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error)
}

// ===== USER DOMAIN (read-only directory) =====

type UserFilters struct {
	Query  string
	Limit  int
	Offset int
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	ListStudents(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
}
