package handlers

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taxtrack/internal/services"
)

type DocumentHandler struct {
	Service  *services.ApprovalService
	FilesDir string
}

func NewDocumentHandler(service *services.ApprovalService, filesDir string) *DocumentHandler {
	return &DocumentHandler{Service: service, FilesDir: filesDir}
}

// UploadFile receives the evidence file as multipart form data, stores it
// under a collision-free name and submits it to the approval workflow.
func (h *DocumentHandler) UploadFile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	if err := os.MkdirAll(h.FilesDir, 0o755); err != nil {
		log.Printf("[document][upload][err] id=%d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store file"})
		return
	}
	stored := uuid.NewString() + filepath.Ext(file.Filename)
	dest := filepath.Join(h.FilesDir, stored)
	if err := c.SaveUploadedFile(file, dest); err != nil {
		log.Printf("[document][upload][err] id=%d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store file"})
		return
	}

	doc, err := h.Service.SubmitFile(c.Request.Context(), id, dest, file.Size, time.Now())
	if err != nil {
		os.Remove(dest)
		log.Printf("[document][upload][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	log.Printf("[document][upload] id=%d file=%s size=%d status=%s", id, stored, file.Size, doc.Status)
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Finish(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.Service.MarkFinished(c.Request.Context(), id, time.Now())
	if err != nil {
		log.Printf("[document][finish][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Reset(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.Service.Reset(c.Request.Context(), id)
	if err != nil {
		log.Printf("[document][reset][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Signatures(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	sigs, err := h.Service.Signatures(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sigs)
}
