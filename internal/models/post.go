package models

import (
	"time"
)

// DateLayout is the display format stored in Post.Date.
const DateLayout = "January 02, 2006"

type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PosterID  uint      `gorm:"not null;index" json:"poster_id"`
	Poster    User      `gorm:"foreignKey:PosterID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"poster"`
	Title     string    `gorm:"uniqueIndex;size:250;not null" json:"title"`
	Date      string    `gorm:"size:250;not null" json:"date"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	URL       string    `gorm:"uniqueIndex;size:250;not null" json:"url"`
	Upvotes   int       `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int       `gorm:"not null;default:0" json:"downvotes"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 非数据库字段，用于查询时填充
	CommentCount int     `gorm:"-" json:"comment_count"`
	HotScore     float64 `gorm:"-" json:"hot_score,omitempty"`
}

// NetVotes is upvotes minus downvotes.
func (p *Post) NetVotes() int {
	return p.Upvotes - p.Downvotes
}
