package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Saidabdi38/exam-site/internal/events"
	"github.com/Saidabdi38/exam-site/internal/models"
	"github.com/Saidabdi38/exam-site/internal/repositories"
	"github.com/Saidabdi38/exam-site/internal/validator"
)

// ClientInfo is the request metadata recorded on the attempt row at start.
type ClientInfo struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

type clientInfoKey struct{}

// WithClientInfo returns a context carrying request metadata for Start to
// store in the attempt's session data.
func WithClientInfo(ctx context.Context, info *ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

func clientInfoFrom(ctx context.Context) *ClientInfo {
	info, _ := ctx.Value(clientInfoKey{}).(*ClientInfo)
	return info
}

type attemptService struct {
	repo        repositories.Repository
	db          *gorm.DB
	logger      *slog.Logger
	validator   *validator.Validator
	permissions PermissionService
	grading     GradingService
	sampler     *QuestionSampler
	publisher   events.EventPublisher
}

func NewAttemptService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	v *validator.Validator,
	permissions PermissionService,
	grading GradingService,
	sampler *QuestionSampler,
	publisher events.EventPublisher,
) AttemptService {
	return &attemptService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   v,
		permissions: permissions,
		grading:     grading,
		sampler:     sampler,
		publisher:   publisher,
	}
}

// ===== LIFECYCLE =====

// Start resumes the open attempt when one exists, otherwise creates the next
// numbered attempt. Bank-mode exams get their question set sampled and frozen
// inside the same transaction that creates the attempt row.
func (s *attemptService) Start(ctx context.Context, examID uint, userID string) (*AttemptResponse, error) {
	s.logger.Info("Starting exam attempt",
		"exam_id", examID,
		"user_id", userID)

	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	canView, err := s.permissions.CanView(ctx, exam, userID)
	if err != nil {
		return nil, err
	}
	if !canView {
		return nil, ErrExamNotVisible
	}

	// Resume before counting the budget: an open attempt is already paid for.
	open, err := s.repo.Attempt().GetOpenAttempt(ctx, s.db, userID, examID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check open attempt: %w", err)
	}
	if open != nil {
		if open.IsExpired(time.Now()) {
			if _, err := s.finalize(ctx, open, models.AttemptEndReasonTimeout); err != nil {
				return nil, err
			}
		} else {
			s.logger.Info("Resuming open attempt", "attempt_id", open.ID)
			return s.toResponse(ctx, exam, open)
		}
	}

	allowed, err := s.permissions.AllowedAttempts(ctx, exam, userID)
	if err != nil {
		return nil, err
	}
	used, err := s.permissions.UsedAttempts(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	if used >= allowed {
		return nil, ErrAttemptLimitExceeded
	}

	attempt, err := s.createAttempt(ctx, exam, userID)
	if err != nil {
		if repositories.IsDuplicateError(err) {
			// Lost a concurrent start; the winner's attempt is ours to resume.
			if open, rerr := s.repo.Attempt().GetOpenAttempt(ctx, s.db, userID, examID); rerr == nil {
				s.logger.Info("Concurrent start resolved to existing attempt", "attempt_id", open.ID)
				return s.toResponse(ctx, exam, open)
			}
			return nil, fmt.Errorf("failed to resolve concurrent start: %w", err)
		}
		return nil, err
	}

	s.publishEvent(ctx, events.NewEvent(events.TypeAttemptStarted, &events.AttemptStartedEvent{
		AttemptID: attempt.ID,
		ExamID:    examID,
		UserID:    userID,
		AttemptNo: attempt.AttemptNo,
		StartedAt: attempt.StartedAt,
	}))

	s.logger.Info("Exam attempt started",
		"attempt_id", attempt.ID,
		"attempt_no", attempt.AttemptNo,
		"exam_id", examID,
		"user_id", userID)

	return s.toResponse(ctx, exam, attempt)
}

func (s *attemptService) createAttempt(ctx context.Context, exam *models.Exam, userID string) (*models.Attempt, error) {
	var attempt *models.Attempt

	err := s.db.Transaction(func(tx *gorm.DB) error {
		maxNo, err := s.repo.Attempt().GetMaxAttemptNo(ctx, tx, userID, exam.ID)
		if err != nil {
			return fmt.Errorf("failed to get attempt number: %w", err)
		}

		attempt = &models.Attempt{
			ExamID:          exam.ID,
			UserID:          userID,
			AttemptNo:       maxNo + 1,
			StartedAt:       time.Now(),
			DurationSeconds: exam.DurationMinutes * 60,
		}

		if info := clientInfoFrom(ctx); info != nil {
			raw, err := json.Marshal(info)
			if err != nil {
				return fmt.Errorf("failed to encode session data: %w", err)
			}
			attempt.SessionData = datatypes.JSON(raw)
		}

		if err := s.repo.Attempt().Create(ctx, tx, attempt); err != nil {
			return err
		}

		if exam.BankMode() {
			if err := s.freezeQuestionSet(ctx, tx, exam, attempt); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return attempt, nil
}

// freezeQuestionSet samples the subject pool and writes the per-attempt
// question rows. An undersized pool aborts the enclosing transaction, so no
// partially-built attempt survives.
func (s *attemptService) freezeQuestionSet(ctx context.Context, tx *gorm.DB, exam *models.Exam, attempt *models.Attempt) error {
	pool, err := s.repo.Bank().GetBySubjectWithChoices(ctx, tx, *exam.SubjectID)
	if err != nil {
		return fmt.Errorf("failed to load subject pool: %w", err)
	}

	sampled, err := s.sampler.Sample(pool, exam.QuestionCount)
	if err != nil {
		return err
	}

	rows := make([]*models.AttemptQuestion, len(sampled))
	for i, q := range sampled {
		rows[i] = &models.AttemptQuestion{
			AttemptID:      attempt.ID,
			BankQuestionID: q.ID,
			Order:          i + 1,
		}
	}

	return s.repo.Attempt().CreateAttemptQuestions(ctx, tx, rows)
}

// GetQuestion returns one frozen question for display. Expired attempts are
// finalized before the error is reported.
func (s *attemptService) GetQuestion(ctx context.Context, attemptID uint, questionNo int, userID string) (*QuestionView, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.IsSubmitted() {
		return nil, ErrAttemptAlreadySubmitted
	}
	if attempt.IsExpired(time.Now()) {
		if _, err := s.finalize(ctx, attempt, models.AttemptEndReasonTimeout); err != nil {
			return nil, err
		}
		return nil, ErrAttemptTimeExpired
	}

	refs, err := s.questionRefs(ctx, attempt)
	if err != nil {
		return nil, err
	}
	if questionNo < 1 || questionNo > len(refs) {
		return nil, ErrQuestionIndexOutOfRange
	}

	return s.buildQuestionView(ctx, attempt, refs, questionNo)
}

// SubmitAnswer persists a selection and routes navigation. Action "submit"
// finalizes the attempt after saving.
func (s *attemptService) SubmitAnswer(ctx context.Context, attemptID uint, questionNo int, req *AnswerRequest, userID string) (*AnswerOutcome, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.IsSubmitted() {
		return nil, ErrAttemptAlreadySubmitted
	}
	if attempt.IsExpired(time.Now()) {
		if _, err := s.finalize(ctx, attempt, models.AttemptEndReasonTimeout); err != nil {
			return nil, err
		}
		return nil, ErrAttemptTimeExpired
	}

	refs, err := s.questionRefs(ctx, attempt)
	if err != nil {
		return nil, err
	}
	if questionNo < 1 || questionNo > len(refs) {
		return nil, ErrQuestionIndexOutOfRange
	}

	if err := s.saveAnswer(ctx, attempt, refs[questionNo-1], req.ChoiceID); err != nil {
		return nil, err
	}

	outcome := &AnswerOutcome{NextQuestionNo: questionNo}
	switch req.Action {
	case "next":
		if questionNo < len(refs) {
			outcome.NextQuestionNo = questionNo + 1
		}
	case "prev":
		if questionNo > 1 {
			outcome.NextQuestionNo = questionNo - 1
		}
	case "submit":
		if _, err := s.finalize(ctx, attempt, models.AttemptEndReasonSubmit); err != nil {
			return nil, err
		}
		outcome.Submitted = true
	}

	return outcome, nil
}

// Autosave persists a selection without navigation. Submitted attempts
// reject the write.
func (s *attemptService) Autosave(ctx context.Context, attemptID uint, questionNo int, req *AnswerRequest, userID string) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	if attempt.IsSubmitted() {
		return ErrAttemptAlreadySubmitted
	}
	if attempt.IsExpired(time.Now()) {
		if _, err := s.finalize(ctx, attempt, models.AttemptEndReasonTimeout); err != nil {
			return err
		}
		return ErrAttemptTimeExpired
	}

	refs, err := s.questionRefs(ctx, attempt)
	if err != nil {
		return err
	}
	if questionNo < 1 || questionNo > len(refs) {
		return ErrQuestionIndexOutOfRange
	}

	return s.saveAnswer(ctx, attempt, refs[questionNo-1], req.ChoiceID)
}

// Submit finalizes an attempt. Submitting an already-submitted attempt
// returns the stored result unchanged.
func (s *attemptService) Submit(ctx context.Context, attemptID uint, userID string) (*AttemptResult, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	if attempt.IsSubmitted() {
		return s.buildResult(ctx, attempt)
	}

	endReason := models.AttemptEndReasonSubmit
	if attempt.IsExpired(time.Now()) {
		endReason = models.AttemptEndReasonTimeout
	}

	return s.finalize(ctx, attempt, endReason)
}

// GetResult returns the stored result of a submitted attempt. An expired
// open attempt is finalized on read.
func (s *attemptService) GetResult(ctx context.Context, attemptID uint, userID string) (*AttemptResult, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	if !attempt.IsSubmitted() {
		if attempt.IsExpired(time.Now()) {
			return s.finalize(ctx, attempt, models.AttemptEndReasonTimeout)
		}
		return nil, ErrAttemptNotSubmitted
	}

	return s.buildResult(ctx, attempt)
}

// ===== LISTINGS =====

func (s *attemptService) GetByStudent(ctx context.Context, userID string) ([]*AttemptResult, error) {
	submitted := models.AttemptSubmitted
	attempts, _, err := s.repo.Attempt().GetByStudent(ctx, s.db, userID, repositories.AttemptFilters{
		Status: &submitted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	results := make([]*AttemptResult, 0, len(attempts))
	for _, attempt := range attempts {
		result, err := s.buildResult(ctx, attempt)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// ===== INTERNAL =====

func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID uint, userID string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.UserID != userID {
		return nil, ErrAttemptNotOwned
	}

	return attempt, nil
}

// finalize closes an attempt exactly once. The transaction re-reads the row
// so a concurrent submit and timeout cannot both write a score.
func (s *attemptService) finalize(ctx context.Context, attempt *models.Attempt, endReason string) (*AttemptResult, error) {
	var final *models.Attempt

	err := s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.Attempt().GetByID(ctx, tx, attempt.ID)
		if err != nil {
			return fmt.Errorf("failed to reload attempt: %w", err)
		}
		if current.IsSubmitted() {
			final = current
			return nil
		}

		score, err := s.grading.ScoreAttempt(ctx, current)
		if err != nil {
			return err
		}

		now := time.Now()
		current.SubmittedAt = &now
		current.Score = score.Score
		current.MaxScore = score.MaxScore
		current.Passed = score.Passed
		current.EndReason = &endReason

		if err := s.repo.Attempt().Update(ctx, tx, current); err != nil {
			return fmt.Errorf("failed to finalize attempt: %w", err)
		}

		final = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := events.TypeAttemptSubmitted
	if endReason == models.AttemptEndReasonTimeout {
		eventType = events.TypeAttemptTimedOut
	}
	s.publishEvent(ctx, events.NewEvent(eventType, &events.AttemptSubmittedEvent{
		AttemptID:   final.ID,
		ExamID:      final.ExamID,
		UserID:      final.UserID,
		AttemptNo:   final.AttemptNo,
		Score:       final.Score,
		MaxScore:    final.MaxScore,
		Passed:      final.Passed,
		EndReason:   endReason,
		SubmittedAt: *final.SubmittedAt,
	}))

	*attempt = *final
	return s.buildResult(ctx, final)
}

func (s *attemptService) publishEvent(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.AttemptTopic, event); err != nil {
		s.logger.Error("Failed to publish event",
			"type", event.Type,
			"error", err)
	}
}
