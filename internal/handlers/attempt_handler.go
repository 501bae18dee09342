package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Saidabdi38/exam-site/internal/services"
	"github.com/Saidabdi38/exam-site/internal/utils"
	"github.com/Saidabdi38/exam-site/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt starts a new attempt for an exam, or resumes the open one
// @Summary Start exam attempt
// @Description Starts a new attempt, or resumes an open attempt at the first unanswered question
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 201 {object} services.AttemptResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /exams/{id}/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Starting exam attempt", "exam_id", examID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	ctx := services.WithClientInfo(c.Request.Context(), &services.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	attempt, err := h.attemptService.Start(ctx, examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if attempt.ResumeQuestionNo > 1 {
		status = http.StatusOK
	}
	c.JSON(status, attempt)
}

// GetQuestion returns one question of an attempt for display
// @Summary Get attempt question
// @Description Returns the question at a 1-based position, without correctness flags
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param qno path int true "Question number (1-based)"
// @Success 200 {object} services.QuestionView
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/{id}/questions/{qno} [get]
func (h *AttemptHandler) GetQuestion(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	questionNo := h.parseQuestionNo(c)
	if questionNo == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	view, err := h.attemptService.GetQuestion(c.Request.Context(), attemptID, questionNo, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitAnswer records an answer and navigates
// @Summary Submit answer
// @Description Saves the selected choice for a question and moves per the action (next, prev, submit)
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param qno path int true "Question number (1-based)"
// @Param answer body services.AnswerRequest true "Answer payload"
// @Success 200 {object} services.AnswerOutcome
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/{id}/questions/{qno} [post]
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	questionNo := h.parseQuestionNo(c)
	if questionNo == 0 {
		return
	}

	var req services.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting answer", "attempt_id", attemptID, "question_no", questionNo)

	outcome, err := h.attemptService.SubmitAnswer(c.Request.Context(), attemptID, questionNo, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// Autosave persists an answer without navigation
// @Summary Autosave answer
// @Description Saves the selected choice in the background; a null choice clears the answer
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param qno path int true "Question number (1-based)"
// @Param answer body services.AnswerRequest true "Answer payload"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/{id}/questions/{qno}/autosave [post]
func (h *AttemptHandler) Autosave(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	questionNo := h.parseQuestionNo(c)
	if questionNo == 0 {
		return
	}

	var req services.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.attemptService.Autosave(c.Request.Context(), attemptID, questionNo, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Answer saved",
	})
}

// SubmitAttempt finalizes an attempt
// @Summary Submit attempt
// @Description Scores and closes the attempt; repeating the call returns the same result
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResult
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetResult returns the scored result of a submitted attempt
// @Summary Get attempt result
// @Description Returns score, pass flag and end reason for a finished attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/result [get]
func (h *AttemptHandler) GetResult(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListMyAttempts lists the caller's finished attempts
// @Summary List own attempts
// @Description Lists the authenticated student's submitted attempts with results
// @Tags attempts
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /attempts [get]
func (h *AttemptHandler) ListMyAttempts(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Listing own attempts")

	results, err := h.attemptService.GetByStudent(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"data":  results,
		"total": len(results),
	})
}

func (h *AttemptHandler) parseQuestionNo(c *gin.Context) int {
	questionNo := int(h.parseIDParam(c, "qno"))
	return questionNo
}
