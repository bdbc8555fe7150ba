package models

import (
	"fmt"
	"time"
)

// TargetKind names what a vote is cast on.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// Direction is the side a vote is cast for.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

func ParseTargetKind(s string) (TargetKind, error) {
	switch TargetKind(s) {
	case TargetPost, TargetComment:
		return TargetKind(s), nil
	}
	return "", NewValidationError(fmt.Sprintf("unknown vote target %q", s))
}

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionUp, DirectionDown:
		return Direction(s), nil
	}
	return "", NewValidationError(fmt.Sprintf("unknown vote direction %q", s))
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionUp {
		return DirectionDown
	}
	return DirectionUp
}

// PostVote is one user's ledger row for one post. At most one row exists per
// (post, author); both flags false means the user currently has no vote.
type PostVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_vote_author" json:"post_id"`
	Post      Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	AuthorID  uint      `gorm:"not null;uniqueIndex:idx_post_vote_author;index" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Upvote    bool      `gorm:"not null;default:false" json:"upvote"`
	Downvote  bool      `gorm:"not null;default:false" json:"downvote"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommentVote mirrors PostVote for comments.
type CommentVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_vote_author" json:"comment_id"`
	Comment   Comment   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	AuthorID  uint      `gorm:"not null;uniqueIndex:idx_comment_vote_author;index" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Upvote    bool      `gorm:"not null;default:false" json:"upvote"`
	Downvote  bool      `gorm:"not null;default:false" json:"downvote"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
