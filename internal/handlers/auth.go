package handlers

import (
	"net/http"

	"softwarnews/internal/middleware"
	"softwarnews/internal/models"
	"softwarnews/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	identity *services.IdentityService
}

func NewAuthHandler(identity *services.IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

type signupRequest struct {
	Email    string `form:"email" json:"email"`
	Name     string `form:"name" json:"name"`
	Password string `form:"password" json:"password"`
}

type loginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBind(&req); err != nil {
		RespondError(c, models.NewValidationError("invalid signup form"))
		return
	}

	user, err := h.identity.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}

	if err := h.startSession(c, user); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		RespondError(c, models.NewValidationError("invalid login form"))
		return
	}

	user, err := h.identity.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}

	if err := h.startSession(c, user); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		RespondError(c, models.NewInternalError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the logged-in user.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentUser(c)})
}

func (h *AuthHandler) startSession(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
