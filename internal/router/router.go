package router

import (
	"net/http"
	"time"

	"softwarnews/internal/handlers"
	"softwarnews/internal/middleware"
	"softwarnews/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the collaborators the routes are wired to.
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client // nil disables rate limiting
	Identity *services.IdentityService
	Content  *services.ContentService
	Feed     *services.FeedService
	Tally    *services.TallyService
	Curation *services.CurationService

	VoteRateLimit  int
	VoteRateWindow time.Duration
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.LoadUser(d.DB))

	// Handlers
	authHandler := handlers.NewAuthHandler(d.Identity)
	storyHandler := handlers.NewStoryHandler(d.Content, d.Feed)
	voteHandler := handlers.NewVoteHandler(d.Tally)
	adminHandler := handlers.NewAdminHandler(d.Curation)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 公共路由 (Public Routes)
	r.GET("/", storyHandler.ListTop)        // 首页 - 按赞数
	r.GET("/new", storyHandler.ListNew)     // 最新文章
	r.GET("/posts", storyHandler.List)      // ?sort=top|new|net|hot
	r.GET("/p/:id", storyHandler.Detail)    // 文章详情
	r.GET("/me", authHandler.Me)            // 当前用户，未登录为 null
	r.POST("/signup", authHandler.Register) // 提交注册
	r.POST("/login", authHandler.Login)     // 提交登录
	r.GET("/logout", authHandler.Logout)    // 退出登录

	// 匿名请求由服务层返回 401
	limit := middleware.RateLimit(d.Redis, "vote", d.VoteRateLimit, d.VoteRateWindow)
	r.POST("/vote/:type/:id", limit, voteHandler.Upvote)        // 点赞
	r.POST("/vote/:type/:id/down", limit, voteHandler.Downvote) // 踩
	r.POST("/p/:id/comment", storyHandler.CreateComment)        // 发表评论

	// 受保护路由 (Protected Routes)
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/submit", storyHandler.Create)  // 提交发布文章
		authorized.DELETE("/p/:id", storyHandler.Delete) // 删除文章（作者或管理员）
	}

	// 管理员路由 (Admin Routes)
	admin := r.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/candidates", adminHandler.Candidates)
		admin.GET("/preview", adminHandler.Preview)
	}
}
