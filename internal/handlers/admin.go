package handlers

import (
	"errors"
	"net/http"

	"softwarnews/internal/models"
	"softwarnews/internal/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	curation *services.CurationService
}

func NewAdminHandler(curation *services.CurationService) *AdminHandler {
	return &AdminHandler{curation: curation}
}

// Candidates lists third-party articles worth posting.
func (h *AdminHandler) Candidates(c *gin.Context) {
	if c.Query("refresh") == "1" {
		h.curation.Invalidate()
	}

	items, err := h.curation.Candidates(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"code": models.CodeInternal, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": items})
}

// Preview returns the readable content of a candidate URL.
func (h *AdminHandler) Preview(c *gin.Context) {
	preview, err := h.curation.Preview(c.Request.Context(), c.Query("url"))
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			RespondError(c, err)
			return
		}
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"code": models.CodeInternal, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, preview)
}
