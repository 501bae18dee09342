package services

import (
	"errors"
	"fmt"
)

// ===== EXAM ERRORS =====

var (
	ErrExamNotFound        = errors.New("exam not found")
	ErrExamNotPublished    = errors.New("exam is not published")
	ErrExamNotVisible      = errors.New("exam is not available to this user")
	ErrExamHasAttempts     = errors.New("exam already has attempts")
	ErrSubjectNotFound     = errors.New("subject not found")
	ErrSubjectRequired     = errors.New("question bank exams require a subject")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrChoiceNotFound      = errors.New("choice not found")
	ErrChoiceNotInQuestion = errors.New("choice does not belong to question")
)

// ===== ATTEMPT ERRORS =====

var (
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotSubmitted     = errors.New("attempt not yet submitted")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptLimitExceeded    = errors.New("no attempts remaining")
	ErrAttemptTimeExpired      = errors.New("attempt time expired")
	ErrAttemptNotOwned         = errors.New("attempt belongs to another user")
	ErrQuestionIndexOutOfRange = errors.New("question number out of range")
	ErrInsufficientPool        = errors.New("subject pool smaller than exam question count")
	ErrAnswerQuestionMismatch  = errors.New("answer does not reference a question in this attempt")
)

// ===== USER ERRORS =====

var (
	ErrUserNotFound = errors.New("user not found")
	ErrTeacherOnly  = errors.New("teacher role required")
)

// PermissionError carries who tried what on which resource, for audit logs
// and 403 responses.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d: %s",
		e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError marks a request that is well-formed but violates a
// domain rule, so handlers can map it to 409 instead of 400.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}
