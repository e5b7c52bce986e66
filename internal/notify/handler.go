package notify

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ShareVideoRequest is the trigger the video-sharing use case sends after a
// share has been durably persisted.
type ShareVideoRequest struct {
	YoutubeID    string `json:"youtubeId" binding:"required"`
	Title        string `json:"title" binding:"required"`
	SharerEmail  string `json:"sharerEmail" binding:"required"`
	OriginUserID int64  `json:"originUserId" binding:"required"`
}

// RegisterRoutes mounts the internal trigger endpoint. It is not exposed to
// clients; only the (out-of-scope) CRUD backend calls it.
func (p *Publisher) RegisterRoutes(router *gin.Engine) {
	router.POST("/internal/notify/share-video", p.handleShareVideo)
}

// handleShareVideo accepts a share trigger and fans it out. The response is
// always 202 for a well-formed request: notification delivery is
// best-effort and never fails the share action.
func (p *Publisher) handleShareVideo(c *gin.Context) {
	var req ShareVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	p.PublishSharedVideo(c.Request.Context(), SharedVideoPayload{
		YoutubeID:   req.YoutubeID,
		Title:       req.Title,
		SharerEmail: req.SharerEmail,
	}, req.OriginUserID)

	c.Status(http.StatusAccepted)
}
