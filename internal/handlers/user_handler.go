package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Saidabdi38/exam-site/internal/repositories"
	"github.com/Saidabdi38/exam-site/internal/utils"
)

type UserHandler struct {
	BaseHandler
	userRepo repositories.UserRepository
}

func NewUserHandler(userRepo repositories.UserRepository, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		userRepo:    userRepo,
	}
}

// ListStudents lists students from the directory (for resit grants)
// @Summary List students
// @Description Get a paginated list of students from the identity provider
// @Tags users
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param q query string false "Search query (name or email)"
// @Success 200 {object} map[string]interface{} "Student list response"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /users/students [get]
func (h *UserHandler) ListStudents(c *gin.Context) {
	h.LogRequest(c, "Listing students")

	if _, ok := h.requireUserID(c); !ok {
		return
	}

	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)
	if size > 100 {
		size = 100
	}

	filters := repositories.UserFilters{
		Query:  strings.TrimSpace(c.Query("q")),
		Limit:  size,
		Offset: (page - 1) * size,
	}

	students, total, err := h.userRepo.ListStudents(c.Request.Context(), filters)
	if err != nil {
		h.LogError(c, err, "Failed to list students")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to list students",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"data":  students,
		"total": total,
		"page":  page,
		"size":  size,
	})
}

// GetUser retrieves a single user by ID
// @Summary Get user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid id",
		})
		return
	}

	if _, ok := h.requireUserID(c); !ok {
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "User not found",
		})
		return
	}

	c.JSON(http.StatusOK, user)
}
