package services

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"softwarnews/internal/models"

	"gorm.io/gorm"
)

// ContentService stores posts and comments. Deletion goes through the tally
// engine so votes are removed in the same transaction.
type ContentService struct {
	db    *gorm.DB
	tally *TallyService
	now   func() time.Time
}

func NewContentService(db *gorm.DB, tally *TallyService) *ContentService {
	return &ContentService{db: db, tally: tally, now: time.Now}
}

// CreatePost stores a new post by actor.
func (s *ContentService) CreatePost(ctx context.Context, actor models.Actor, title, link, body string) (*models.Post, error) {
	if !actor.Authenticated() {
		return nil, models.NewUnauthorizedError("must log in to post")
	}

	title = strings.TrimSpace(title)
	link = strings.TrimSpace(link)
	body = strings.TrimSpace(body)
	if title == "" || link == "" || body == "" {
		return nil, models.NewValidationError("title, url and body are required")
	}
	if !isHTTPURL(link) {
		return nil, models.NewValidationError("url must be an http or https address")
	}

	now := s.now()
	post := models.Post{
		PosterID:  actor.UserID,
		Title:     title,
		Date:      now.Format(models.DateLayout),
		Body:      body,
		URL:       link,
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, classifyDBError(err, duplicateAsConstraint("a post with this title or url already exists"))
	}

	slog.InfoContext(ctx, "post created", "post_id", post.ID, "user_id", actor.UserID)
	return &post, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// GetPost loads a post with its poster and comment count.
func (s *ContentService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Preload("Poster").First(&post, id).Error; err != nil {
		return nil, classifyDBError(err, duplicateAsConflict)
	}

	posts := []models.Post{post}
	if err := fillCommentCounts(ctx, s.db, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// GetComment loads a comment with its author.
func (s *ContentService) GetComment(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Preload("Author").First(&comment, id).Error; err != nil {
		return nil, classifyDBError(err, duplicateAsConflict)
	}
	return &comment, nil
}

// ListComments returns the comments of a post in creation order.
func (s *ContentService) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, classifyDBError(err, duplicateAsConflict)
	}
	return comments, nil
}

// CreateComment adds a comment by actor under an existing post.
func (s *ContentService) CreateComment(ctx context.Context, actor models.Actor, postID uint, text string) (*models.Comment, error) {
	if !actor.Authenticated() {
		return nil, models.NewUnauthorizedError("must log in to comment")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("comment text is required")
	}

	comment := models.Comment{
		PostID:    postID,
		AuthorID:  actor.UserID,
		Text:      text,
		CreatedAt: s.now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.NewNotFoundError("post", postID)
		}
		return tx.Create(&comment).Error
	})
	if err != nil {
		return nil, classifyDBError(err, duplicateAsConflict)
	}

	slog.InfoContext(ctx, "comment created", "comment_id", comment.ID, "post_id", postID, "user_id", actor.UserID)
	return &comment, nil
}

// DeletePost removes a post and everything hanging off it. Only the poster
// or an admin may delete.
func (s *ContentService) DeletePost(ctx context.Context, actor models.Actor, id uint) error {
	if !actor.Authenticated() {
		return models.NewUnauthorizedError("must log in to delete")
	}

	var post models.Post
	if err := s.db.WithContext(ctx).Select("id", "poster_id").First(&post, id).Error; err != nil {
		return classifyDBError(err, duplicateAsConflict)
	}
	if post.PosterID != actor.UserID && !actor.Admin {
		return models.NewForbiddenError("only the poster or an admin can delete this post")
	}

	return s.tally.DeletePostCascade(ctx, id)
}
