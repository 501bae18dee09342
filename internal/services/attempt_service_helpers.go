package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
)

// questionRef points at one question of an attempt in display order. Exactly
// one of legacy/bank is set, matching the exam's mode.
type questionRef struct {
	legacy *models.Question
	bank   *models.BankQuestion
}

func (r questionRef) text() string {
	if r.bank != nil {
		return r.bank.Text
	}
	return r.legacy.Text
}

func (r questionRef) questionType() models.QuestionType {
	if r.bank != nil {
		return r.bank.Type
	}
	return r.legacy.Type
}

// questionRefs loads the attempt's question list in stable order: the frozen
// set for bank mode, the exam's current questions for legacy mode.
func (s *attemptService) questionRefs(ctx context.Context, attempt *models.Attempt) ([]questionRef, error) {
	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, s.db, attempt.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if exam.BankMode() {
		frozen, err := s.repo.Attempt().GetAttemptQuestions(ctx, s.db, attempt.ID)
		if err != nil {
			return nil, err
		}
		refs := make([]questionRef, len(frozen))
		for i := range frozen {
			refs[i] = questionRef{bank: &frozen[i].BankQuestion}
		}
		return refs, nil
	}

	refs := make([]questionRef, len(exam.Questions))
	for i := range exam.Questions {
		refs[i] = questionRef{legacy: &exam.Questions[i]}
	}
	return refs, nil
}

// answersByRef indexes the attempt's saved answers by question identity.
func (s *attemptService) answersByRef(ctx context.Context, attemptID uint) (map[uint]*models.Answer, map[uint]*models.Answer, error) {
	answers, err := s.repo.Answer().ListByAttempt(ctx, s.db, attemptID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load answers: %w", err)
	}

	legacy := make(map[uint]*models.Answer)
	bank := make(map[uint]*models.Answer)
	for _, answer := range answers {
		if answer.QuestionID != nil {
			legacy[*answer.QuestionID] = answer
		}
		if answer.BankQuestionID != nil {
			bank[*answer.BankQuestionID] = answer
		}
	}
	return legacy, bank, nil
}

func (s *attemptService) savedAnswer(ref questionRef, legacy, bank map[uint]*models.Answer) *models.Answer {
	if ref.bank != nil {
		return bank[ref.bank.ID]
	}
	return legacy[ref.legacy.ID]
}

// firstUnanswered returns the 1-based number of the first question without a
// recorded selection, or len(refs) when everything is answered.
func (s *attemptService) firstUnanswered(refs []questionRef, legacy, bank map[uint]*models.Answer) int {
	for i, ref := range refs {
		answer := s.savedAnswer(ref, legacy, bank)
		if answer == nil || !answer.Answered() {
			return i + 1
		}
	}
	if len(refs) == 0 {
		return 1
	}
	return len(refs)
}

func (s *attemptService) toResponse(ctx context.Context, exam *models.Exam, attempt *models.Attempt) (*AttemptResponse, error) {
	refs, err := s.questionRefs(ctx, attempt)
	if err != nil {
		return nil, err
	}

	legacy, bank, err := s.answersByRef(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	return &AttemptResponse{
		Attempt:          attempt,
		QuestionCount:    len(refs),
		TimeLeftSeconds:  attempt.TimeLeftSeconds(time.Now()),
		ResumeQuestionNo: s.firstUnanswered(refs, legacy, bank),
	}, nil
}

func (s *attemptService) buildQuestionView(ctx context.Context, attempt *models.Attempt, refs []questionRef, questionNo int) (*QuestionView, error) {
	ref := refs[questionNo-1]

	legacy, bank, err := s.answersByRef(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	view := &QuestionView{
		AttemptID:       attempt.ID,
		QuestionNo:      questionNo,
		TotalQuestions:  len(refs),
		Text:            ref.text(),
		Type:            ref.questionType(),
		TimeLeftSeconds: attempt.TimeLeftSeconds(time.Now()),
		IsFirst:         questionNo == 1,
		IsLast:          questionNo == len(refs),
	}

	// Correct flags never leave the service layer during an attempt.
	if ref.bank != nil {
		view.Choices = make([]ChoiceView, len(ref.bank.Choices))
		for i, c := range ref.bank.Choices {
			view.Choices[i] = ChoiceView{ID: c.ID, Text: c.Text}
		}
	} else {
		view.Choices = make([]ChoiceView, len(ref.legacy.Choices))
		for i, c := range ref.legacy.Choices {
			view.Choices[i] = ChoiceView{ID: c.ID, Text: c.Text}
		}
	}

	if answer := s.savedAnswer(ref, legacy, bank); answer != nil {
		view.SelectedChoiceID = answer.SelectedChoiceID
	}

	return view, nil
}

// saveAnswer validates choice membership and upserts the selection. A nil
// choice clears the stored answer.
func (s *attemptService) saveAnswer(ctx context.Context, attempt *models.Attempt, ref questionRef, choiceID *uint) error {
	answer := &models.Answer{
		AttemptID:        attempt.ID,
		SelectedChoiceID: choiceID,
	}

	if ref.bank != nil {
		if choiceID != nil {
			if _, err := s.repo.Bank().GetChoice(ctx, s.db, ref.bank.ID, *choiceID); err != nil {
				if repositories.IsNotFoundError(err) {
					return ErrChoiceNotInQuestion
				}
				return fmt.Errorf("failed to check choice: %w", err)
			}
		}
		id := ref.bank.ID
		answer.BankQuestionID = &id
	} else {
		if choiceID != nil {
			if _, err := s.repo.Exam().GetChoice(ctx, s.db, ref.legacy.ID, *choiceID); err != nil {
				if repositories.IsNotFoundError(err) {
					return ErrChoiceNotInQuestion
				}
				return fmt.Errorf("failed to check choice: %w", err)
			}
		}
		id := ref.legacy.ID
		answer.QuestionID = &id
	}

	if err := s.repo.Answer().Upsert(ctx, s.db, answer); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}

	return nil
}

func (s *attemptService) buildResult(ctx context.Context, attempt *models.Attempt) (*AttemptResult, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, attempt.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	result := &AttemptResult{
		AttemptID:   attempt.ID,
		ExamID:      attempt.ExamID,
		ExamTitle:   exam.Title,
		AttemptNo:   attempt.AttemptNo,
		Score:       attempt.Score,
		MaxScore:    attempt.MaxScore,
		Passed:      attempt.Passed,
		SubmittedAt: attempt.SubmittedAt,
	}
	if attempt.MaxScore > 0 {
		result.Percent = float64(attempt.Score) / float64(attempt.MaxScore) * 100
	}
	if attempt.EndReason != nil {
		result.EndReason = *attempt.EndReason
	}
	return result, nil
}
