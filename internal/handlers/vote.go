package handlers

import (
	"net/http"

	"softwarnews/internal/middleware"
	"softwarnews/internal/models"
	"softwarnews/internal/services"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	tally *services.TallyService
}

func NewVoteHandler(tally *services.TallyService) *VoteHandler {
	return &VoteHandler{tally: tally}
}

// Upvote handles POST /vote/:type/:id
func (h *VoteHandler) Upvote(c *gin.Context) {
	h.cast(c, models.DirectionUp)
}

// Downvote handles POST /vote/:type/:id/down
func (h *VoteHandler) Downvote(c *gin.Context) {
	h.cast(c, models.DirectionDown)
}

func (h *VoteHandler) cast(c *gin.Context, dir models.Direction) {
	kind, err := models.ParseTargetKind(c.Param("type")) // "post" or "comment"
	if err != nil {
		RespondError(c, err)
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.tally.CastVote(c.Request.Context(), middleware.CurrentActor(c), kind, id, dir)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
