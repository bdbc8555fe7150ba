package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"softwarnews/internal/models"
	"softwarnews/internal/utils"

	"github.com/gin-gonic/gin"
)

var statusByCode = map[string]int{
	models.CodeUnauthorized:        http.StatusUnauthorized,
	models.CodeForbidden:           http.StatusForbidden,
	models.CodeNotFound:            http.StatusNotFound,
	models.CodeConflictRetry:       http.StatusConflict,
	models.CodeConstraintViolation: http.StatusConflict,
	models.CodeValidation:          http.StatusBadRequest,
}

// RespondError writes err as JSON with the status matching its code.
func RespondError(c *gin.Context, err error) {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		appErr = models.NewInternalError(err)
	}

	status, ok := statusByCode[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}

	body := gin.H{"code": appErr.Code, "error": appErr.Message}
	if appErr.Code == models.CodeConflictRetry {
		body["retry"] = true
	}
	c.AbortWithStatusJSON(status, body)
}

// paramID parses a positive numeric route parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, ok := utils.StringToID(c.Param(name))
	if !ok {
		RespondError(c, models.NewNotFoundError(name, c.Param(name)))
		return 0, false
	}
	return id, true
}
