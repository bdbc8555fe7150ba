// Package testutil provides in-memory database fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"softwarnews/internal/db"
	"softwarnews/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a fresh in-memory SQLite database with the full schema.
// The pool holds a single connection, so transactions run one at a time.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open test database")

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	require.NoError(t, db.Migrate(conn))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return conn
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t *testing.T, conn *gorm.DB, name string) *models.User {
	t.Helper()

	u := &models.User{
		Email:    name + "@example.com",
		Name:     name,
		Password: "$2a$10$placeholderplaceholderplaceholderplaceholderpl",
		Role:     models.RoleUser,
	}
	require.NoError(t, conn.Create(u).Error)
	return u
}

// CreateAdmin inserts a user with the admin role.
func CreateAdmin(t *testing.T, conn *gorm.DB, name string) *models.User {
	t.Helper()

	u := CreateUser(t, conn, name)
	require.NoError(t, conn.Model(u).Update("role", models.RoleAdmin).Error)
	u.Role = models.RoleAdmin
	return u
}

// CreatePost inserts a post by poster. Title and URL are derived from title.
func CreatePost(t *testing.T, conn *gorm.DB, poster *models.User, title string) *models.Post {
	t.Helper()
	return CreatePostAt(t, conn, poster, title, time.Now())
}

// CreatePostAt inserts a post with an explicit creation time.
func CreatePostAt(t *testing.T, conn *gorm.DB, poster *models.User, title string, at time.Time) *models.Post {
	t.Helper()

	p := &models.Post{
		PosterID:  poster.ID,
		Title:     title,
		Date:      at.Format(models.DateLayout),
		Body:      "body of " + title,
		URL:       fmt.Sprintf("https://example.com/%d/%s", at.UnixNano(), title),
		CreatedAt: at,
	}
	require.NoError(t, conn.Create(p).Error)
	return p
}

// CreateComment inserts a comment on post by author.
func CreateComment(t *testing.T, conn *gorm.DB, post *models.Post, author *models.User, text string) *models.Comment {
	t.Helper()

	c := &models.Comment{
		PostID:   post.ID,
		AuthorID: author.ID,
		Text:     text,
	}
	require.NoError(t, conn.Create(c).Error)
	return c
}

// SetPostCounters overwrites a post's denormalised counters.
func SetPostCounters(t *testing.T, conn *gorm.DB, post *models.Post, up, down int) {
	t.Helper()

	require.NoError(t, conn.Model(&models.Post{}).Where("id = ?", post.ID).
		Updates(map[string]interface{}{"upvotes": up, "downvotes": down}).Error)
	post.Upvotes = up
	post.Downvotes = down
}
