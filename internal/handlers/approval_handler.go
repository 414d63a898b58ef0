package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"taxtrack/internal/services"
)

type ApprovalHandler struct {
	Service *services.ApprovalService
}

func NewApprovalHandler(service *services.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{Service: service}
}

func (h *ApprovalHandler) Sign(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		UserID int64 `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	doc, err := h.Service.Sign(c.Request.Context(), id, body.UserID, time.Now())
	if err != nil {
		log.Printf("[approval][sign][err] document=%d user=%d: %v", id, body.UserID, err)
		fail(c, err)
		return
	}
	log.Printf("[approval][sign] document=%d user=%d status=%s", id, body.UserID, doc.Status)
	c.JSON(http.StatusOK, doc)
}

func (h *ApprovalHandler) Reject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		UserID  int64  `json:"user_id"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	doc, err := h.Service.Reject(c.Request.Context(), id, body.UserID, body.Comment, time.Now())
	if err != nil {
		log.Printf("[approval][reject][err] document=%d user=%d: %v", id, body.UserID, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *ApprovalHandler) Pending(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	sigs, err := h.Service.PendingForUser(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sigs)
}
