package services

import (
	"context"
	"errors"
	"log/slog"

	"softwarnews/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteResult is the ledger row and counters of a target after a vote.
type VoteResult struct {
	Kind      models.TargetKind `json:"kind"`
	TargetID  uint              `json:"target_id"`
	Upvote    bool              `json:"upvote"`
	Downvote  bool              `json:"downvote"`
	Upvotes   int               `json:"upvotes"`
	Downvotes int               `json:"downvotes"`
}

// ledger describes the vote table and counter table of one target kind.
type ledger struct {
	kind      models.TargetKind
	voteTable string
	fkColumn  string
	target    func() interface{}
	newVote   func(targetID, authorID uint, up, down bool) interface{}
}

var ledgers = map[models.TargetKind]ledger{
	models.TargetPost: {
		kind:      models.TargetPost,
		voteTable: "post_votes",
		fkColumn:  "post_id",
		target:    func() interface{} { return &models.Post{} },
		newVote: func(targetID, authorID uint, up, down bool) interface{} {
			return &models.PostVote{PostID: targetID, AuthorID: authorID, Upvote: up, Downvote: down}
		},
	},
	models.TargetComment: {
		kind:      models.TargetComment,
		voteTable: "comment_votes",
		fkColumn:  "comment_id",
		target:    func() interface{} { return &models.Comment{} },
		newVote: func(targetID, authorID uint, up, down bool) interface{} {
			return &models.CommentVote{CommentID: targetID, AuthorID: authorID, Upvote: up, Downvote: down}
		},
	},
}

// voteState is the part of a ledger row the transition needs.
type voteState struct {
	ID       uint
	Upvote   bool
	Downvote bool
}

type counterPair struct {
	Upvotes   int
	Downvotes int
}

// voteChange is the outcome of applying one toggle to a ledger row.
type voteChange struct {
	Upvote   bool
	Downvote bool
	DeltaUp  int
	DeltaDn  int
	Label    string // insert, clear, set, switch
}

// transition applies a toggle in direction dir to prev (nil = no row yet).
// A flag already set is cleared; otherwise it is set and the opposite flag
// cleared. Counter deltas follow the flags that actually changed.
func transition(prev *voteState, dir models.Direction) voteChange {
	up := dir == models.DirectionUp

	if prev == nil {
		ch := voteChange{Upvote: up, Downvote: !up, Label: "insert"}
		if up {
			ch.DeltaUp = 1
		} else {
			ch.DeltaDn = 1
		}
		return ch
	}

	current, other := prev.Upvote, prev.Downvote
	if !up {
		current, other = prev.Downvote, prev.Upvote
	}

	var ch voteChange
	if current {
		// 再次点击同方向：撤销，保留中立记录
		ch = voteChange{Label: "clear"}
		if up {
			ch.DeltaUp = -1
		} else {
			ch.DeltaDn = -1
		}
		return ch
	}

	ch = voteChange{Upvote: up, Downvote: !up, Label: "set"}
	if other {
		ch.Label = "switch"
	}
	if up {
		ch.DeltaUp = 1
		if other {
			ch.DeltaDn = -1
		}
	} else {
		ch.DeltaDn = 1
		if other {
			ch.DeltaUp = -1
		}
	}
	return ch
}

// TallyService owns the vote ledger and the denormalised counters on posts
// and comments. Every mutation runs in a single transaction.
type TallyService struct {
	db *gorm.DB
}

func NewTallyService(db *gorm.DB) *TallyService {
	return &TallyService{db: db}
}

// CastVote toggles actor's vote on a post or comment.
func (s *TallyService) CastVote(ctx context.Context, actor models.Actor, kind models.TargetKind, targetID uint, dir models.Direction) (*VoteResult, error) {
	res, err := s.castVote(ctx, actor, kind, targetID, dir)
	if err != nil {
		voteErrorsTotal.WithLabelValues(errorCode(err)).Inc()
		if errors.Is(err, models.ErrConflictRetry) {
			slog.WarnContext(ctx, "vote conflict", "kind", kind, "target_id", targetID, "user_id", actor.UserID, "error", err)
		}
		return nil, err
	}
	return res, nil
}

func (s *TallyService) castVote(ctx context.Context, actor models.Actor, kind models.TargetKind, targetID uint, dir models.Direction) (*VoteResult, error) {
	if !actor.Authenticated() {
		return nil, models.NewUnauthorizedError("must log in to vote")
	}
	l, ok := ledgers[kind]
	if !ok {
		return nil, models.NewValidationError("unknown vote target " + string(kind))
	}
	if dir != models.DirectionUp && dir != models.DirectionDown {
		return nil, models.NewValidationError("unknown vote direction " + string(dir))
	}

	var (
		result *VoteResult
		change voteChange
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(l.target()).Where("id = ?", targetID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.NewNotFoundError(string(kind), targetID)
		}

		var rows []voteState
		err := tx.Table(l.voteTable).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "upvote", "downvote").
			Where(l.fkColumn+" = ? AND author_id = ?", targetID, actor.UserID).
			Limit(1).
			Find(&rows).Error
		if err != nil {
			return err
		}

		var prev *voteState
		if len(rows) > 0 {
			prev = &rows[0]
		}
		change = transition(prev, dir)

		if prev == nil {
			if err := tx.Create(l.newVote(targetID, actor.UserID, change.Upvote, change.Downvote)).Error; err != nil {
				return err
			}
		} else {
			err := tx.Model(l.newVote(targetID, actor.UserID, false, false)).
				Where("id = ?", prev.ID).
				Updates(map[string]interface{}{"upvote": change.Upvote, "downvote": change.Downvote}).Error
			if err != nil {
				return err
			}
		}

		if err := applyDelta(tx, l, targetID, "upvotes", change.DeltaUp); err != nil {
			return err
		}
		if err := applyDelta(tx, l, targetID, "downvotes", change.DeltaDn); err != nil {
			return err
		}

		var counters counterPair
		if err := tx.Model(l.target()).Select("upvotes", "downvotes").Where("id = ?", targetID).Take(&counters).Error; err != nil {
			return err
		}

		result = &VoteResult{
			Kind:      kind,
			TargetID:  targetID,
			Upvote:    change.Upvote,
			Downvote:  change.Downvote,
			Upvotes:   counters.Upvotes,
			Downvotes: counters.Downvotes,
		}
		return nil
	})
	if err != nil {
		return nil, classifyDBError(err, duplicateAsConflict)
	}

	votesTotal.WithLabelValues(string(kind), string(dir), change.Label).Inc()
	slog.DebugContext(ctx, "vote applied",
		"kind", kind, "target_id", targetID, "user_id", actor.UserID,
		"direction", dir, "transition", change.Label,
		"upvotes", result.Upvotes, "downvotes", result.Downvotes)
	return result, nil
}

// applyDelta moves one counter by ±1. Decrements never take it below zero.
func applyDelta(tx *gorm.DB, l ledger, targetID uint, column string, delta int) error {
	switch {
	case delta > 0:
		return tx.Model(l.target()).Where("id = ?", targetID).
			UpdateColumn(column, gorm.Expr(column+" + 1")).Error
	case delta < 0:
		return tx.Model(l.target()).Where("id = ? AND "+column+" > 0", targetID).
			UpdateColumn(column, gorm.Expr(column+" - 1")).Error
	}
	return nil
}

// DeletePostCascade removes a post, its comments and every vote on either,
// in one transaction. A missing post is NotFound.
func (s *TallyService) DeletePostCascade(ctx context.Context, postID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.NewNotFoundError("post", postID)
		}

		var commentIDs []uint
		if err := tx.Model(&models.Comment{}).Where("post_id = ?", postID).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("comment_id IN ?", commentIDs).Delete(&models.CommentVote{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostVote{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, postID).Error
	})
	if err != nil {
		return classifyDBError(err, duplicateAsConflict)
	}

	slog.InfoContext(ctx, "post deleted", "post_id", postID)
	return nil
}
