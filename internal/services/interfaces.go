package services

import (
	"context"
	"io"
	"time"

	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
	"github.com/Saidabdi38/exam-site/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use shared validator request types
type CreateExamRequest = validator.ExamCreateRequest
type UpdateExamRequest = validator.ExamUpdateRequest
type CreateSubjectRequest = validator.SubjectCreateRequest
type CreateBankQuestionRequest = validator.BankQuestionCreateRequest
type CreateQuestionRequest = validator.QuestionCreateRequest
type ChoiceRequest = validator.ChoiceRequest
type ResitGrantRequest = validator.ResitGrantRequest
type AnswerRequest = validator.AnswerSubmitRequest

type ExamResponse struct {
	*models.Exam
	CanEdit bool `json:"can_edit"`
	CanTake bool `json:"can_take"`
}

type ExamListResponse struct {
	Exams []*ExamResponse `json:"exams"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

// VisibleExam is the student-facing listing entry: the exam plus the
// resolved attempt budget for this user.
type VisibleExam struct {
	*models.Exam
	AllowedAttempts int  `json:"allowed_attempts"`
	UsedAttempts    int  `json:"used_attempts"`
	CanStart        bool `json:"can_start"`
	HasOpenAttempt  bool `json:"has_open_attempt"`
}

// ExamAccess is the resolver verdict for one (exam, user) pair.
type ExamAccess struct {
	CanView         bool `json:"can_view"`
	AllowedAttempts int  `json:"allowed_attempts"`
	UsedAttempts    int  `json:"used_attempts"`
	CanStart        bool `json:"can_start"`
}

// ===== ATTEMPT RELATED DTOs =====

type AttemptResponse struct {
	*models.Attempt
	QuestionCount   int `json:"question_count"`
	TimeLeftSeconds int `json:"time_left_seconds"`
	// 1-based number of the question to show next, first unanswered or 1
	ResumeQuestionNo int `json:"resume_question_no"`
}

// QuestionView is one frozen question as shown during an attempt. Correct
// flags are stripped; SelectedChoiceID echoes the saved answer.
type QuestionView struct {
	AttemptID        uint                `json:"attempt_id"`
	QuestionNo       int                 `json:"question_no"`
	TotalQuestions   int                 `json:"total_questions"`
	Text             string              `json:"text"`
	Type             models.QuestionType `json:"type"`
	Choices          []ChoiceView        `json:"choices"`
	SelectedChoiceID *uint               `json:"selected_choice_id"`
	TimeLeftSeconds  int                 `json:"time_left_seconds"`
	IsFirst          bool                `json:"is_first"`
	IsLast           bool                `json:"is_last"`
}

type ChoiceView struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// AnswerOutcome tells the handler where to send the student after a save.
type AnswerOutcome struct {
	NextQuestionNo int  `json:"next_question_no"`
	Submitted      bool `json:"submitted"`
}

type AttemptResult struct {
	AttemptID   uint       `json:"attempt_id"`
	ExamID      uint       `json:"exam_id"`
	ExamTitle   string     `json:"exam_title"`
	AttemptNo   int        `json:"attempt_no"`
	Score       int        `json:"score"`
	MaxScore    int        `json:"max_score"`
	Percent     float64    `json:"percent"`
	Passed      bool       `json:"passed"`
	EndReason   string     `json:"end_reason"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

// AttemptDetail is the teacher review view: per-question correctness.
type AttemptDetail struct {
	*AttemptResult
	UserID    string           `json:"user_id"`
	StartedAt time.Time        `json:"started_at"`
	Questions []QuestionReview `json:"questions"`
}

type QuestionReview struct {
	QuestionNo       int     `json:"question_no"`
	Text             string  `json:"text"`
	SelectedChoiceID *uint   `json:"selected_choice_id"`
	SelectedText     *string `json:"selected_text"`
	CorrectChoiceID  *uint   `json:"correct_choice_id"`
	CorrectText      *string `json:"correct_text"`
	IsCorrect        bool    `json:"is_correct"`
}

// ===== SCORING DTOs =====

type ScoreResult struct {
	Score    int     `json:"score"`
	MaxScore int     `json:"max_score"`
	Percent  float64 `json:"percent"`
	Passed   bool    `json:"passed"`
}

// ===== IMPORT/EXPORT DTOs =====

type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ===== SERVICE INTERFACES =====

// PermissionService resolves exam visibility and attempt budgets. It is
// strictly read-only: resolving access never creates or mutates grants.
type PermissionService interface {
	CanView(ctx context.Context, exam *models.Exam, userID string) (bool, error)
	AllowedAttempts(ctx context.Context, exam *models.Exam, userID string) (int, error)
	UsedAttempts(ctx context.Context, examID uint, userID string) (int, error)
	ResolveAccess(ctx context.Context, exam *models.Exam, userID string) (*ExamAccess, error)
}

type ExamService interface {
	// Core CRUD operations (teacher side)
	Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error)
	Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	Publish(ctx context.Context, id uint, userID string) error
	Unpublish(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error)

	// Student side
	ListVisible(ctx context.Context, userID string) ([]*VisibleExam, error)

	// Resit and visibility management
	SetResit(ctx context.Context, examID uint, studentID string, req *ResitGrantRequest, teacherID string) (*models.ResitPermission, error)
	ListResits(ctx context.Context, examID uint, teacherID string) ([]*models.ResitPermission, error)

	// Attempt review
	GetExamAttempts(ctx context.Context, examID uint, teacherID string) ([]*AttemptResult, error)
	GetAttemptDetail(ctx context.Context, attemptID uint, teacherID string) (*AttemptDetail, error)

	// Legacy direct-mode question management
	AddQuestion(ctx context.Context, examID uint, req *CreateQuestionRequest, userID string) (*models.Question, error)
	RemoveQuestion(ctx context.Context, examID, questionID uint, userID string) error
	SetCorrectChoice(ctx context.Context, examID, questionID, choiceID uint, userID string) error
}

type BankService interface {
	// Subjects
	CreateSubject(ctx context.Context, req *CreateSubjectRequest, userID string) (*models.Subject, error)
	GetSubject(ctx context.Context, id uint, userID string) (*models.Subject, error)
	DeleteSubject(ctx context.Context, id uint, userID string) error
	ListSubjects(ctx context.Context, userID string) ([]*models.Subject, error)

	// Bank questions
	CreateQuestion(ctx context.Context, req *CreateBankQuestionRequest, userID string) (*models.BankQuestion, error)
	GetQuestion(ctx context.Context, id uint, userID string) (*models.BankQuestion, error)
	DeleteQuestion(ctx context.Context, id uint, userID string) error
	ListQuestions(ctx context.Context, filters repositories.BankQuestionFilters, userID string) ([]*models.BankQuestion, int64, error)
	SetCorrectChoice(ctx context.Context, questionID, choiceID uint, userID string) error
}

type AttemptService interface {
	// Lifecycle
	Start(ctx context.Context, examID uint, userID string) (*AttemptResponse, error)
	GetQuestion(ctx context.Context, attemptID uint, questionNo int, userID string) (*QuestionView, error)
	SubmitAnswer(ctx context.Context, attemptID uint, questionNo int, req *AnswerRequest, userID string) (*AnswerOutcome, error)
	Autosave(ctx context.Context, attemptID uint, questionNo int, req *AnswerRequest, userID string) error
	Submit(ctx context.Context, attemptID uint, userID string) (*AttemptResult, error)
	GetResult(ctx context.Context, attemptID uint, userID string) (*AttemptResult, error)

	// Listings
	GetByStudent(ctx context.Context, userID string) ([]*AttemptResult, error)
}

type GradingService interface {
	// ScoreAttempt computes the final score for an attempt. Idempotent with
	// respect to the stored answers; callers persist the result.
	ScoreAttempt(ctx context.Context, attempt *models.Attempt) (*ScoreResult, error)
}

type ImportExportService interface {
	ImportBankQuestions(ctx context.Context, subjectID uint, r io.Reader, userID string) (*ImportResult, error)
	ExportExamResults(ctx context.Context, examID uint, userID string) ([]byte, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Exam() ExamService
	Bank() BankService
	Attempt() AttemptService
	Grading() GradingService
	Permission() PermissionService
	ImportExport() ImportExportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
