package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Saidabdi38/exam-site/internal/repositories"
	"github.com/Saidabdi38/exam-site/internal/services"
	"github.com/Saidabdi38/exam-site/internal/utils"
	"github.com/Saidabdi38/exam-site/internal/validator"
)

type BankHandler struct {
	BaseHandler
	bankService  services.BankService
	importexport services.ImportExportService
	validator    *validator.Validator
}

func NewBankHandler(
	bankService services.BankService,
	importexport services.ImportExportService,
	validator *validator.Validator,
	logger utils.Logger,
) *BankHandler {
	return &BankHandler{
		BaseHandler:  NewBaseHandler(logger),
		bankService:  bankService,
		importexport: importexport,
		validator:    validator,
	}
}

// CreateSubject creates a question bank subject
// @Summary Create subject
// @Tags bank
// @Accept json
// @Produce json
// @Param subject body services.CreateSubjectRequest true "Subject data"
// @Success 201 {object} models.Subject
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /subjects [post]
func (h *BankHandler) CreateSubject(c *gin.Context) {
	h.LogRequest(c, "Creating subject")

	var req services.CreateSubjectRequest
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

	subject, err := h.bankService.CreateSubject(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, subject)
}

// GetSubject retrieves a subject with its question count
// @Summary Get subject
// @Tags bank
// @Produce json
// @Param id path uint true "Subject ID"
// @Success 200 {object} models.Subject
// @Failure 404 {object} ErrorResponse
// @Router /subjects/{id} [get]
func (h *BankHandler) GetSubject(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	subject, err := h.bankService.GetSubject(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, subject)
}

// DeleteSubject deletes an empty subject
// @Summary Delete subject
// @Tags bank
// @Produce json
// @Param id path uint true "Subject ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /subjects/{id} [delete]
func (h *BankHandler) DeleteSubject(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting subject", "subject_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.bankService.DeleteSubject(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Subject deleted successfully",
	})
}

// ListSubjects lists all subjects
// @Summary List subjects
// @Tags bank
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /subjects [get]
func (h *BankHandler) ListSubjects(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	subjects, err := h.bankService.ListSubjects(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"data":  subjects,
		"total": len(subjects),
	})
}

// CreateQuestion adds a question to the bank
// @Summary Create bank question
// @Tags bank
// @Accept json
// @Produce json
// @Param question body services.CreateBankQuestionRequest true "Question data"
// @Success 201 {object} models.BankQuestion
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /bank/questions [post]
func (h *BankHandler) CreateQuestion(c *gin.Context) {
	h.LogRequest(c, "Creating bank question")

	var req services.CreateBankQuestionRequest
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

	question, err := h.bankService.CreateQuestion(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// GetQuestion retrieves a bank question with choices
// @Summary Get bank question
// @Tags bank
// @Produce json
// @Param id path uint true "Question ID"
// @Success 200 {object} models.BankQuestion
// @Failure 404 {object} ErrorResponse
// @Router /bank/questions/{id} [get]
func (h *BankHandler) GetQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	question, err := h.bankService.GetQuestion(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// DeleteQuestion removes a question from the bank
// @Summary Delete bank question
// @Description Removes the question from the pool; frozen attempt snapshots keep their copy
// @Tags bank
// @Produce json
// @Param id path uint true "Question ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /bank/questions/{id} [delete]
func (h *BankHandler) DeleteQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting bank question", "question_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.bankService.DeleteQuestion(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Question deleted successfully",
	})
}

// ListQuestions lists bank questions with filters
// @Summary List bank questions
// @Tags bank
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Param subject_id query uint false "Filter by subject"
// @Param q query string false "Search in question text"
// @Success 200 {object} map[string]interface{}
// @Router /bank/questions [get]
func (h *BankHandler) ListQuestions(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseBankFilters(c)
	questions, total, err := h.bankService.ListQuestions(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	page := (filters.Offset / max(filters.Limit, 1)) + 1
	c.JSON(http.StatusOK, map[string]interface{}{
		"data":  questions,
		"total": total,
		"page":  page,
		"size":  filters.Limit,
	})
}

// SetCorrectChoice marks one choice of a bank question as correct
// @Summary Set correct bank choice
// @Tags bank
// @Produce json
// @Param id path uint true "Question ID"
// @Param choice_id path uint true "Choice ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /bank/questions/{id}/choices/{choice_id}/correct [put]
func (h *BankHandler) SetCorrectChoice(c *gin.Context) {
	questionID := h.parseIDParam(c, "id")
	if questionID == 0 {
		return
	}
	choiceID := h.parseIDParam(c, "choice_id")
	if choiceID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.bankService.SetCorrectChoice(c.Request.Context(), questionID, choiceID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Correct choice updated",
	})
}

// ImportQuestions imports bank questions from an uploaded spreadsheet
// @Summary Import bank questions
// @Description Imports questions for a subject from an xlsx upload; bad rows are skipped and reported
// @Tags bank
// @Accept multipart/form-data
// @Produce json
// @Param id path uint true "Subject ID"
// @Param file formData file true "xlsx file"
// @Success 200 {object} services.ImportResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /subjects/{id}/questions/import [post]
func (h *BankHandler) ImportQuestions(c *gin.Context) {
	subjectID := h.parseIDParam(c, "id")
	if subjectID == 0 {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "File upload is required",
			Details: err.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Failed to read uploaded file",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Importing bank questions", "subject_id", subjectID, "filename", fileHeader.Filename)

	result, err := h.importexport.ImportBankQuestions(c.Request.Context(), subjectID, file, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *BankHandler) parseBankFilters(c *gin.Context) repositories.BankQuestionFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)

	filters := repositories.BankQuestionFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if subjectIDStr := c.Query("subject_id"); subjectIDStr != "" {
		if subjectID, err := strconv.ParseUint(subjectIDStr, 10, 32); err == nil {
			id := uint(subjectID)
			filters.SubjectID = &id
		}
	}

	if query := strings.TrimSpace(c.Query("q")); query != "" {
		filters.Query = &query
	}

	return filters
}
