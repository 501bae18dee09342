package models

import (
	"time"
)

// Subject groups a pool of bank questions that bank-mode exams sample from.
type Subject struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"not null;size:200;uniqueIndex" validate:"required,max=200"`
	Description *string `json:"description" gorm:"type:text"`

	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Questions []BankQuestion `json:"questions,omitempty" gorm:"foreignKey:SubjectID"`

	// Computed
	QuestionTotal int `json:"question_total" gorm:"-"`
}

// BankQuestion is static pool content. It carries no exam reference; exams
// only see it through frozen AttemptQuestion rows.
type BankQuestion struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	SubjectID uint         `json:"subject_id" gorm:"not null;index"`
	Text      string       `json:"text" gorm:"type:text;not null" validate:"required"`
	Type      QuestionType `json:"type" gorm:"not null;default:MCQ" validate:"omitempty,oneof=MCQ TF"`

	CreatedBy string    `json:"created_by" gorm:"not null;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Subject Subject      `json:"-" gorm:"foreignKey:SubjectID"`
	Choices []BankChoice `json:"choices,omitempty" gorm:"foreignKey:BankQuestionID"`
}

type BankChoice struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	BankQuestionID uint   `json:"bank_question_id" gorm:"not null;index"`
	Text           string `json:"text" gorm:"not null;size:255" validate:"required,max=255"`
	IsCorrect      bool   `json:"is_correct" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subject) TableName() string      { return "subjects" }
func (BankQuestion) TableName() string { return "bank_questions" }
func (BankChoice) TableName() string   { return "bank_choices" }
