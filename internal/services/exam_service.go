package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Saidabdi38/exam-site/internal/events"
	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
	"github.com/Saidabdi38/exam-site/internal/validator"
)

type examService struct {
	repo        repositories.Repository
	db          *gorm.DB
	logger      *slog.Logger
	validator   *validator.Validator
	permissions PermissionService
	publisher   events.EventPublisher
}

func NewExamService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	v *validator.Validator,
	permissions PermissionService,
	publisher events.EventPublisher,
) ExamService {
	return &examService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   v,
		permissions: permissions,
		publisher:   publisher,
	}
}

// ===== CORE CRUD =====

func (s *examService) Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error) {
	s.logger.Info("Creating exam", "title", req.Title, "creator_id", creatorID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.requireTeacher(ctx, creatorID); err != nil {
		return nil, err
	}

	if req.UsesQuestionBank {
		if req.SubjectID == nil {
			return nil, ErrSubjectRequired
		}
		if _, err := s.repo.Bank().GetSubject(ctx, s.db, *req.SubjectID); err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrSubjectNotFound
			}
			return nil, fmt.Errorf("failed to check subject: %w", err)
		}
	}

	exam := &models.Exam{
		Title:            req.Title,
		Description:      req.Description,
		DurationMinutes:  req.DurationMinutes,
		UsesQuestionBank: req.UsesQuestionBank,
		SubjectID:        req.SubjectID,
		QuestionCount:    req.QuestionCount,
		CreatedBy:        creatorID,
	}

	if err := s.repo.Exam().Create(ctx, s.db, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	s.logger.Info("Exam created", "exam_id", exam.ID, "creator_id", creatorID)
	return &ExamResponse{Exam: exam, CanEdit: true}, nil
}

func (s *examService) GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error) {
	exam, err := s.getExam(ctx, id)
	if err != nil {
		return nil, err
	}

	canEdit := exam.CreatedBy == userID
	if !canEdit {
		user, err := s.repo.User().GetByID(ctx, userID)
		if err == nil && user.IsTeacher() {
			canEdit = true
		}
	}

	if !canEdit {
		access, err := s.permissions.ResolveAccess(ctx, exam, userID)
		if err != nil {
			return nil, err
		}
		if !access.CanView {
			return nil, ErrExamNotVisible
		}
		return &ExamResponse{Exam: exam, CanTake: access.CanStart}, nil
	}

	return &ExamResponse{Exam: exam, CanEdit: true}, nil
}

func (s *examService) Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.getOwnedExam(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.DurationMinutes != nil {
		exam.DurationMinutes = *req.DurationMinutes
	}
	if req.SubjectID != nil {
		if _, err := s.repo.Bank().GetSubject(ctx, s.db, *req.SubjectID); err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrSubjectNotFound
			}
			return nil, fmt.Errorf("failed to check subject: %w", err)
		}
		exam.SubjectID = req.SubjectID
	}
	if req.QuestionCount != nil {
		exam.QuestionCount = *req.QuestionCount
	}

	if err := s.repo.Exam().Update(ctx, s.db, exam); err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}

	s.logger.Info("Exam updated", "exam_id", id, "user_id", userID)
	return &ExamResponse{Exam: exam, CanEdit: true}, nil
}

func (s *examService) Delete(ctx context.Context, id uint, userID string) error {
	exam, err := s.getOwnedExam(ctx, id, userID, "delete")
	if err != nil {
		return err
	}

	hasAttempts, err := s.repo.Exam().HasAttempts(ctx, s.db, exam.ID)
	if err != nil {
		return fmt.Errorf("failed to check attempts: %w", err)
	}
	if hasAttempts {
		return ErrExamHasAttempts
	}

	if err := s.repo.Exam().Delete(ctx, s.db, id); err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.logger.Info("Exam deleted", "exam_id", id, "user_id", userID)
	return nil
}

func (s *examService) Publish(ctx context.Context, id uint, userID string) error {
	exam, err := s.getOwnedExam(ctx, id, userID, "publish")
	if err != nil {
		return err
	}

	if exam.BankMode() {
		poolSize, err := s.repo.Bank().CountBySubject(ctx, s.db, *exam.SubjectID)
		if err != nil {
			return fmt.Errorf("failed to count subject pool: %w", err)
		}
		if exam.QuestionCount < 1 || int64(exam.QuestionCount) > poolSize {
			return NewBusinessRuleError("publish_pool_size",
				fmt.Sprintf("exam wants %d questions but subject pool has %d", exam.QuestionCount, poolSize))
		}
	} else {
		count, err := s.repo.Exam().CountQuestions(ctx, s.db, exam.ID)
		if err != nil {
			return fmt.Errorf("failed to count questions: %w", err)
		}
		if count == 0 {
			return NewBusinessRuleError("publish_empty_exam", "exam has no questions")
		}
	}

	exam.IsPublished = true
	if err := s.repo.Exam().Update(ctx, s.db, exam); err != nil {
		return fmt.Errorf("failed to publish exam: %w", err)
	}

	s.publishEvent(ctx, events.NewEvent(events.TypeExamPublished, &events.ExamPublishedEvent{
		ExamID:    exam.ID,
		Title:     exam.Title,
		CreatedBy: exam.CreatedBy,
	}))

	s.logger.Info("Exam published", "exam_id", id, "user_id", userID)
	return nil
}

func (s *examService) Unpublish(ctx context.Context, id uint, userID string) error {
	exam, err := s.getOwnedExam(ctx, id, userID, "unpublish")
	if err != nil {
		return err
	}

	exam.IsPublished = false
	if err := s.repo.Exam().Update(ctx, s.db, exam); err != nil {
		return fmt.Errorf("failed to unpublish exam: %w", err)
	}

	s.logger.Info("Exam unpublished", "exam_id", id, "user_id", userID)
	return nil
}

func (s *examService) List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error) {
	if err := s.requireTeacher(ctx, userID); err != nil {
		return nil, err
	}

	exams, total, err := s.repo.Exam().List(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	responses := make([]*ExamResponse, len(exams))
	for i, exam := range exams {
		responses[i] = &ExamResponse{Exam: exam, CanEdit: exam.CreatedBy == userID}
	}

	page := 1
	if filters.Limit > 0 {
		page = filters.Offset/filters.Limit + 1
	}
	return &ExamListResponse{
		Exams: responses,
		Total: total,
		Page:  page,
		Size:  len(responses),
	}, nil
}

// ===== STUDENT LISTING =====

// ListVisible applies the per-mode visibility policy across all published
// exams and annotates each with the caller's attempt budget.
func (s *examService) ListVisible(ctx context.Context, userID string) ([]*VisibleExam, error) {
	published, err := s.repo.Exam().ListPublished(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to list published exams: %w", err)
	}

	visible := make([]*VisibleExam, 0, len(published))
	for _, exam := range published {
		access, err := s.permissions.ResolveAccess(ctx, exam, userID)
		if err != nil {
			return nil, err
		}
		if !access.CanView {
			continue
		}

		entry := &VisibleExam{
			Exam:            exam,
			AllowedAttempts: access.AllowedAttempts,
			UsedAttempts:    access.UsedAttempts,
			CanStart:        access.CanStart,
		}

		if open, err := s.repo.Attempt().GetOpenAttempt(ctx, s.db, userID, exam.ID); err == nil && open != nil {
			entry.HasOpenAttempt = true
			entry.CanStart = true
		}

		if exam.BankMode() {
			entry.QuestionsTotal = exam.QuestionCount
		} else {
			count, err := s.repo.Exam().CountQuestions(ctx, s.db, exam.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to count questions: %w", err)
			}
			entry.QuestionsTotal = count
		}

		visible = append(visible, entry)
	}

	return visible, nil
}

// ===== RESIT MANAGEMENT =====

func (s *examService) SetResit(ctx context.Context, examID uint, studentID string, req *ResitGrantRequest, teacherID string) (*models.ResitPermission, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.requireTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	if _, err := s.getExam(ctx, examID); err != nil {
		return nil, err
	}

	exists, err := s.repo.User().ExistsByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check student: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	perm := &models.ResitPermission{
		ExamID:        examID,
		UserID:        studentID,
		ExtraAttempts: req.ExtraAttempts,
		CanView:       req.CanView,
	}

	if err := s.repo.ResitPermission().Upsert(ctx, s.db, perm); err != nil {
		return nil, fmt.Errorf("failed to save resit permission: %w", err)
	}

	s.publishEvent(ctx, events.NewEvent(events.TypeResitGranted, &events.ResitGrantedEvent{
		ExamID:        examID,
		UserID:        studentID,
		ExtraAttempts: req.ExtraAttempts,
		CanView:       req.CanView,
		GrantedBy:     teacherID,
	}))

	s.logger.Info("Resit permission saved",
		"exam_id", examID,
		"student_id", studentID,
		"extra_attempts", req.ExtraAttempts,
		"can_view", req.CanView,
		"teacher_id", teacherID)

	return perm, nil
}

func (s *examService) ListResits(ctx context.Context, examID uint, teacherID string) ([]*models.ResitPermission, error) {
	if err := s.requireTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	if _, err := s.getExam(ctx, examID); err != nil {
		return nil, err
	}
	return s.repo.ResitPermission().ListByExam(ctx, s.db, examID)
}

// ===== ATTEMPT REVIEW =====

func (s *examService) GetExamAttempts(ctx context.Context, examID uint, teacherID string) ([]*AttemptResult, error) {
	if err := s.requireTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	attempts, _, err := s.repo.Attempt().GetByExam(ctx, s.db, examID, repositories.AttemptFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	results := make([]*AttemptResult, len(attempts))
	for i, attempt := range attempts {
		results[i] = attemptToResult(exam, attempt)
	}
	return results, nil
}

func (s *examService) GetAttemptDetail(ctx context.Context, attemptID uint, teacherID string) (*AttemptDetail, error) {
	if err := s.requireTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, s.db, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	reviews, err := s.buildReviews(ctx, exam, attempt)
	if err != nil {
		return nil, err
	}

	return &AttemptDetail{
		AttemptResult: attemptToResult(exam, attempt),
		UserID:        attempt.UserID,
		StartedAt:     attempt.StartedAt,
		Questions:     reviews,
	}, nil
}

// ===== LEGACY QUESTION MANAGEMENT =====

func (s *examService) AddQuestion(ctx context.Context, examID uint, req *CreateQuestionRequest, userID string) (*models.Question, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.getOwnedExam(ctx, examID, userID, "add_question")
	if err != nil {
		return nil, err
	}
	if exam.BankMode() {
		return nil, NewBusinessRuleError("direct_questions_on_bank_exam",
			"question bank exams draw from the subject pool")
	}

	correctCount := 0
	for _, c := range req.Choices {
		if c.IsCorrect {
			correctCount++
		}
	}
	if correctCount > 1 {
		return nil, NewBusinessRuleError("single_correct_choice",
			"a question can have at most one correct choice")
	}

	question := &models.Question{
		ExamID: examID,
		Text:   req.Text,
		Type:   req.Type,
	}
	question.Choices = make([]models.Choice, len(req.Choices))
	for i, c := range req.Choices {
		question.Choices[i] = models.Choice{Text: c.Text, IsCorrect: c.IsCorrect}
	}

	if err := s.repo.Exam().CreateQuestion(ctx, s.db, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.logger.Info("Question added", "exam_id", examID, "question_id", question.ID)
	return question, nil
}

func (s *examService) RemoveQuestion(ctx context.Context, examID, questionID uint, userID string) error {
	if _, err := s.getOwnedExam(ctx, examID, userID, "remove_question"); err != nil {
		return err
	}

	if err := s.repo.Exam().DeleteQuestion(ctx, s.db, examID, questionID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return nil
}

// SetCorrectChoice marks one choice correct and demotes the rest; the last
// write wins when teachers race.
func (s *examService) SetCorrectChoice(ctx context.Context, examID, questionID, choiceID uint, userID string) error {
	if _, err := s.getOwnedExam(ctx, examID, userID, "set_correct_choice"); err != nil {
		return err
	}

	if _, err := s.repo.Exam().GetQuestion(ctx, s.db, examID, questionID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}

	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Exam().SetChoiceCorrect(ctx, nil, questionID, choiceID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrChoiceNotInQuestion
			}
			return fmt.Errorf("failed to set correct choice: %w", err)
		}
		if err := txRepo.Exam().DemoteOtherCorrectChoices(ctx, nil, questionID, choiceID); err != nil {
			return fmt.Errorf("failed to demote choices: %w", err)
		}
		return nil
	})
}

// ===== INTERNAL =====

func (s *examService) getExam(ctx context.Context, id uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}

func (s *examService) getOwnedExam(ctx context.Context, id uint, userID, action string) (*models.Exam, error) {
	exam, err := s.getExam(ctx, id)
	if err != nil {
		return nil, err
	}

	if exam.CreatedBy != userID {
		user, err := s.repo.User().GetByID(ctx, userID)
		if err != nil || !user.IsTeacher() {
			return nil, NewPermissionError(userID, id, "exam", action, "not the exam creator")
		}
	}

	return exam, nil
}

func (s *examService) requireTeacher(ctx context.Context, userID string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if !user.IsTeacher() {
		return ErrTeacherOnly
	}
	return nil
}

func (s *examService) publishEvent(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.AttemptTopic, event); err != nil {
		s.logger.Error("Failed to publish event", "type", event.Type, "error", err)
	}
}

func attemptToResult(exam *models.Exam, attempt *models.Attempt) *AttemptResult {
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
	return result
}

// buildReviews reconstructs per-question correctness for the teacher view,
// over the frozen set for bank mode and the live list for legacy exams.
func (s *examService) buildReviews(ctx context.Context, exam *models.Exam, attempt *models.Attempt) ([]QuestionReview, error) {
	answers, err := s.repo.Answer().ListByAttempt(ctx, s.db, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}

	legacySelected := make(map[uint]uint)
	bankSelected := make(map[uint]uint)
	for _, answer := range answers {
		if answer.SelectedChoiceID == nil {
			continue
		}
		if answer.QuestionID != nil {
			legacySelected[*answer.QuestionID] = *answer.SelectedChoiceID
		}
		if answer.BankQuestionID != nil {
			bankSelected[*answer.BankQuestionID] = *answer.SelectedChoiceID
		}
	}

	var reviews []QuestionReview

	if exam.BankMode() {
		frozen, err := s.repo.Attempt().GetAttemptQuestions(ctx, s.db, attempt.ID)
		if err != nil {
			return nil, err
		}
		for _, aq := range frozen {
			review := QuestionReview{
				QuestionNo: aq.Order,
				Text:       aq.BankQuestion.Text,
			}
			for i := range aq.BankQuestion.Choices {
				choice := &aq.BankQuestion.Choices[i]
				if choice.IsCorrect {
					review.CorrectChoiceID = &choice.ID
					review.CorrectText = &choice.Text
				}
				if selected, ok := bankSelected[aq.BankQuestionID]; ok && choice.ID == selected {
					review.SelectedChoiceID = &choice.ID
					review.SelectedText = &choice.Text
					review.IsCorrect = choice.IsCorrect
				}
			}
			reviews = append(reviews, review)
		}
		return reviews, nil
	}

	for i := range exam.Questions {
		question := &exam.Questions[i]
		review := QuestionReview{
			QuestionNo: i + 1,
			Text:       question.Text,
		}
		for j := range question.Choices {
			choice := &question.Choices[j]
			if choice.IsCorrect {
				review.CorrectChoiceID = &choice.ID
				review.CorrectText = &choice.Text
			}
			if selected, ok := legacySelected[question.ID]; ok && choice.ID == selected {
				review.SelectedChoiceID = &choice.ID
				review.SelectedText = &choice.Text
				review.IsCorrect = choice.IsCorrect
			}
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}
