package middleware

import (
	"net/http"

	"softwarnews/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const CheckUserKey = "user"

// SessionUserKey is the session field holding the logged-in user's id.
const SessionUserKey = "user_id"

// LoadUser retrieves user from session and sets to context
func LoadUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(SessionUserKey)

		if userID != nil {
			var user models.User
			result := db.WithContext(c.Request.Context()).First(&user, userID)
			if result.Error == nil {
				c.Set(CheckUserKey, &user)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user loaded by LoadUser, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CheckUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// CurrentActor returns who issued the request; anonymous without a session.
func CurrentActor(c *gin.Context) models.Actor {
	return models.ActorFor(CurrentUser(c))
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  models.CodeUnauthorized,
				"error": "login required",
			})
			return
		}
		c.Next()
	}
}

// AdminRequired ensures the logged-in user is an admin
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  models.CodeUnauthorized,
				"error": "login required",
			})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":  models.CodeForbidden,
				"error": "admin only",
			})
			return
		}
		c.Next()
	}
}
