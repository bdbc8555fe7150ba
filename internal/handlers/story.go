package handlers

import (
	"html/template"
	"net/http"

	"softwarnews/internal/middleware"
	"softwarnews/internal/models"
	"softwarnews/internal/services"
	"softwarnews/internal/utils"

	"github.com/gin-gonic/gin"
)

type StoryHandler struct {
	content *services.ContentService
	feed    *services.FeedService
}

func NewStoryHandler(content *services.ContentService, feed *services.FeedService) *StoryHandler {
	return &StoryHandler{content: content, feed: feed}
}

type postView struct {
	models.Post
	BodyHTML template.HTML `json:"body_html"`
}

type commentView struct {
	models.Comment
	TextHTML template.HTML `json:"text_html"`
	Floor    int           `json:"floor"`
}

type createPostRequest struct {
	Title string `form:"title" json:"title"`
	URL   string `form:"url" json:"url"`
	Body  string `form:"body" json:"body"`
}

type createCommentRequest struct {
	Text string `form:"text" json:"text"`
}

// ListTop 按赞数排序
func (h *StoryHandler) ListTop(c *gin.Context) {
	h.list(c, services.SortTop)
}

// ListNew 按发布时间排序
func (h *StoryHandler) ListNew(c *gin.Context) {
	h.list(c, services.SortNew)
}

// List handles GET /posts?sort=
func (h *StoryHandler) List(c *gin.Context) {
	key, err := services.ParseSortKey(c.Query("sort"))
	if err != nil {
		RespondError(c, err)
		return
	}
	h.list(c, key)
}

func (h *StoryHandler) list(c *gin.Context, key services.SortKey) {
	posts, err := h.feed.ListPosts(c.Request.Context(), key)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sort": key, "posts": posts})
}

func (h *StoryHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	post, err := h.content.GetPost(ctx, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	comments, err := h.content.ListComments(ctx, id)
	if err != nil {
		RespondError(c, err)
		return
	}

	views := make([]commentView, len(comments))
	for i, com := range comments {
		views[i] = commentView{
			Comment:  com,
			TextHTML: utils.RenderMarkdown(com.Text),
			Floor:    i + 1,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"post":     postView{Post: *post, BodyHTML: utils.RenderMarkdown(post.Body)},
		"comments": views,
	})
}

func (h *StoryHandler) Create(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBind(&req); err != nil {
		RespondError(c, models.NewValidationError("invalid post form"))
		return
	}

	post, err := h.content.CreatePost(c.Request.Context(), middleware.CurrentActor(c), req.Title, req.URL, req.Body)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

func (h *StoryHandler) CreateComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req createCommentRequest
	if err := c.ShouldBind(&req); err != nil {
		RespondError(c, models.NewValidationError("invalid comment form"))
		return
	}

	comment, err := h.content.CreateComment(c.Request.Context(), middleware.CurrentActor(c), id, req.Text)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": commentView{Comment: *comment, TextHTML: utils.RenderMarkdown(comment.Text)}})
}

func (h *StoryHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.content.DeletePost(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
