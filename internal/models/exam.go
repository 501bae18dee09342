package models

import (
	"time"

	"gorm.io/gorm"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "MCQ"
	TrueFalse      QuestionType = "TF"
)

// Exam is the unit students attempt. Two operating modes:
//   - legacy/direct mode: the exam owns a fixed Questions list shared by
//     every attempt
//   - bank mode (UsesQuestionBank): a random subset of SubjectID's pool is
//     frozen per attempt at creation time
type Exam struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`

	DurationMinutes int  `json:"duration_minutes" gorm:"not null;default:30" validate:"required,exam_duration"`
	IsPublished     bool `json:"is_published" gorm:"default:false;index"`

	// Bank mode settings. SubjectID is an explicit nullable reference: nil
	// means the exam has no subject attached and must run in legacy mode.
	UsesQuestionBank bool  `json:"uses_question_bank" gorm:"default:false"`
	SubjectID        *uint `json:"subject_id" gorm:"index"`
	QuestionCount    int   `json:"question_count" gorm:"default:0" validate:"omitempty,min=0,max=200"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Subject   *Subject   `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
	Attempts  []Attempt  `json:"-" gorm:"foreignKey:ExamID"`

	// Computed fields (not stored)
	QuestionsTotal int `json:"questions_total" gorm:"-"`
}

// BankMode reports whether attempts against this exam freeze a sampled
// question set. SubjectID presence is checked on the reference itself.
func (e *Exam) BankMode() bool {
	return e.UsesQuestionBank && e.SubjectID != nil
}

// Question is a legacy direct-mode question owned by a single exam.
type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	ExamID uint         `json:"exam_id" gorm:"not null;index"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required"`
	Type   QuestionType `json:"type" gorm:"not null;default:MCQ" validate:"omitempty,oneof=MCQ TF"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam    Exam     `json:"-" gorm:"foreignKey:ExamID"`
	Choices []Choice `json:"choices,omitempty" gorm:"foreignKey:QuestionID"`
}

type Choice struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Text       string `json:"text" gorm:"not null;size:255" validate:"required,max=255"`
	IsCorrect  bool   `json:"is_correct" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResitPermission is the teacher-granted visibility and resit record for one
// (exam, student) pair. Absence of a row carries meaning that differs by exam
// mode; see services.PermissionService.
type ResitPermission struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	ExamID uint   `json:"exam_id" gorm:"not null;uniqueIndex:idx_resit_exam_user"`
	UserID string `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_resit_exam_user"`

	// No column default: a default tag would make GORM omit a false value
	// on insert, and the column default would overwrite an explicit revoke.
	ExtraAttempts int  `json:"extra_attempts" gorm:"not null;default:0" validate:"min=0,max=20"`
	CanView       bool `json:"can_view" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam Exam `json:"-" gorm:"foreignKey:ExamID"`
}

// AllowedAttempts is the total attempt budget this grant encodes.
func (p *ResitPermission) AllowedAttempts() int {
	return 1 + p.ExtraAttempts
}

func (Exam) TableName() string            { return "exams" }
func (Question) TableName() string        { return "questions" }
func (Choice) TableName() string          { return "choices" }
func (ResitPermission) TableName() string { return "resit_permissions" }
