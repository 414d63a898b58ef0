package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"taxtrack/internal/models"
	"taxtrack/internal/services"
)

type TaskHandler struct {
	Service    services.TaskService
	Correction *services.CorrectionService
}

func NewTaskHandler(service services.TaskService, correction *services.CorrectionService) *TaskHandler {
	return &TaskHandler{Service: service, Correction: correction}
}

func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	task, err := h.Service.GetByID(c.Request.Context(), id)
	if err != nil || task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) GetAll(c *gin.Context) {
	groupID, err := strconv.ParseInt(c.Query("group_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_id is required"})
		return
	}

	var filter models.TaskFilter
	if v := c.Query("company_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company_id"})
			return
		}
		filter.CompanyID = &id
	}
	if v := c.Query("obligation_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid obligation_id"})
			return
		}
		filter.ObligationID = &id
	}
	if v := c.Query("responsible_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid responsible_id"})
			return
		}
		filter.ResponsibleID = &id
	}
	if v := c.Query("status"); v != "" {
		status := models.TaskStatus(v)
		filter.Status = &status
	}
	if v := c.Query("archived"); v != "" {
		archived := v == "true"
		filter.Archived = &archived
	}

	tasks, err := h.Service.GetAll(c.Request.Context(), groupID, filter)
	if err != nil {
		log.Printf("[task][list][err] %v", err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) Documents(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	docs, err := h.Service.Documents(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *TaskHandler) Reassign(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		ResponsibleID *int64 `json:"responsible_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.Service.Reassign(c.Request.Context(), id, body.ResponsibleID)
	if err != nil {
		log.Printf("[task][reassign][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Archive(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Service.Archive(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task archived"})
}

func (h *TaskHandler) Unarchive(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Service.Unarchive(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task unarchived"})
}

func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Service.Delete(c.Request.Context(), id); err != nil {
		log.Printf("[task][delete][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

func (h *TaskHandler) Rectify(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		NewDeadline string `json:"new_deadline"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	deadline, err := time.Parse("2006-01-02", body.NewDeadline)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new_deadline must be a YYYY-MM-DD date"})
		return
	}

	replacement, err := h.Correction.Rectify(c.Request.Context(), id, deadline, time.Now())
	if err != nil {
		log.Printf("[task][rectify][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, replacement)
}

func (h *TaskHandler) Chain(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	chain, err := h.Correction.Chain(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chain)
}
