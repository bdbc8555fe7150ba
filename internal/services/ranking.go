package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"softwarnews/internal/models"
	"softwarnews/internal/utils"

	"gorm.io/gorm"
)

// SortKey selects the ordering of the post feed.
type SortKey string

const (
	SortTop SortKey = "top" // 按赞数
	SortNew SortKey = "new" // 按创建时间
	SortNet SortKey = "net" // 按净票数
	SortHot SortKey = "hot" // 时间衰减热度
)

// ParseSortKey maps a query parameter onto a SortKey; empty means top.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortTop, nil
	case SortTop, SortNew, SortNet, SortHot:
		return k, nil
	}
	return "", models.NewValidationError("unknown sort " + s)
}

// orderClauses is the ORDER BY of each SQL-sorted key. id breaks ties.
var orderClauses = map[SortKey]string{
	SortTop: "upvotes DESC, id ASC",
	SortNew: "created_at ASC, id ASC",
	SortNet: "(upvotes - downvotes) DESC, upvotes DESC, id ASC",
	SortHot: "id ASC",
}

// FeedService reads the post feed straight from the denormalised counters,
// so every vote is visible on the next read.
type FeedService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewFeedService(db *gorm.DB) *FeedService {
	return &FeedService{db: db, now: time.Now}
}

// ListPosts returns every post in the order selected by sort.
func (s *FeedService) ListPosts(ctx context.Context, sortKey SortKey) ([]models.Post, error) {
	if sortKey == "" {
		sortKey = SortTop
	}
	order, ok := orderClauses[sortKey]
	if !ok {
		return nil, models.NewValidationError("unknown sort " + string(sortKey))
	}

	var posts []models.Post
	if err := s.db.WithContext(ctx).Preload("Poster").Order(order).Find(&posts).Error; err != nil {
		return nil, classifyDBError(err, duplicateAsConflict)
	}
	if err := fillCommentCounts(ctx, s.db, posts); err != nil {
		return nil, err
	}

	if sortKey == SortHot {
		now := s.now()
		for i := range posts {
			p := &posts[i]
			p.HotScore = utils.CalculateScore(now, p.CreatedAt, p.Upvotes, p.Downvotes, p.CommentCount)
		}
		// 已按 id 排序，稳定排序保证同分时 id 小的在前
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].HotScore > posts[j].HotScore
		})
	}
	return posts, nil
}

// ListRanked orders by upvotes, highest first.
func (s *FeedService) ListRanked(ctx context.Context) ([]models.Post, error) {
	return s.ListPosts(ctx, SortTop)
}

// ListUnranked orders by creation time, oldest first.
func (s *FeedService) ListUnranked(ctx context.Context) ([]models.Post, error) {
	return s.ListPosts(ctx, SortNew)
}

// fillCommentCounts 批量填充帖子的评论数量
func fillCommentCounts(ctx context.Context, db *gorm.DB, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	// 收集所有帖子ID
	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	// 批量查询评论数量
	type CountResult struct {
		PostID uint
		Count  int
	}
	var results []CountResult
	err := db.WithContext(ctx).Model(&models.Comment{}).
		Select("post_id, COUNT(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&results).Error
	if err != nil {
		return classifyDBError(err, duplicateAsConflict)
	}

	// 建立映射
	countMap := make(map[uint]int)
	for _, r := range results {
		countMap[r.PostID] = r.Count
	}

	// 填充到帖子
	for i := range posts {
		posts[i].CommentCount = countMap[posts[i].ID]
	}
	return nil
}
