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

type ObligationHandler struct {
	Service    services.ObligationService
	Generation *services.GenerationService
}

func NewObligationHandler(service services.ObligationService, generation *services.GenerationService) *ObligationHandler {
	return &ObligationHandler{Service: service, Generation: generation}
}

func (h *ObligationHandler) Create(c *gin.Context) {
	var o models.Obligation
	if err := c.ShouldBindJSON(&o); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.Service.Create(c.Request.Context(), &o)
	if err != nil {
		log.Printf("[obligation][create][err] %v", err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *ObligationHandler) GetByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	o, err := h.Service.GetByID(c.Request.Context(), id)
	if err != nil || o == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "obligation not found"})
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *ObligationHandler) GetAll(c *gin.Context) {
	groupID, err := strconv.ParseInt(c.Query("group_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_id is required"})
		return
	}
	list, err := h.Service.GetAll(c.Request.Context(), groupID)
	if err != nil {
		log.Printf("[obligation][list][err] %v", err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ObligationHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body models.Obligation
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.Service.Update(c.Request.Context(), id, &body)
	if err != nil {
		log.Printf("[obligation][update][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *ObligationHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Service.Delete(c.Request.Context(), id); err != nil {
		log.Printf("[obligation][delete][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "obligation deleted"})
}

func (h *ObligationHandler) SetCompanies(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		Companies []models.ObligationCompany `json:"companies"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i := range body.Companies {
		body.Companies[i].ObligationID = id
	}

	if err := h.Service.SetCompanies(c.Request.Context(), id, body.Companies); err != nil {
		log.Printf("[obligation][companies][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "companies updated"})
}

func (h *ObligationHandler) Companies(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	links, err := h.Service.Companies(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

func (h *ObligationHandler) AddDocumentType(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var dt models.DocumentType
	if err := c.ShouldBindJSON(&dt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dt.ObligationID = id

	created, err := h.Service.AddDocumentType(c.Request.Context(), &dt)
	if err != nil {
		log.Printf("[obligation][doctype][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *ObligationHandler) DocumentTypes(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	types, err := h.Service.DocumentTypes(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

func (h *ObligationHandler) UpdateDocumentType(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var body models.DocumentType
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.Service.UpdateDocumentType(c.Request.Context(), id, &body)
	if err != nil {
		log.Printf("[obligation][doctype][update][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *ObligationHandler) DeactivateDocumentType(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Service.DeactivateDocumentType(c.Request.Context(), id); err != nil {
		log.Printf("[obligation][doctype][deactivate][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "document type deactivated"})
}

func (h *ObligationHandler) AddApprover(c *gin.Context) {
	var a models.Approver
	if err := c.ShouldBindJSON(&a); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if a.DocumentTypeID == 0 || a.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document_type_id and user_id are required"})
		return
	}

	created, err := h.Service.AddApprover(c.Request.Context(), &a)
	if err != nil {
		log.Printf("[obligation][approver][err] %v", err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *ObligationHandler) RemoveApprover(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Service.RemoveApprover(c.Request.Context(), id); err != nil {
		log.Printf("[obligation][approver][remove][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "approver removed"})
}

type generateRequest struct {
	CompanyIDs    []int64  `json:"company_ids"`
	Competencies  []string `json:"competencies"`
	ResponsibleID *int64   `json:"responsible_id"`
}

func (r generateRequest) parsedCompetencies() ([]time.Time, error) {
	out := make([]time.Time, 0, len(r.Competencies))
	for _, s := range r.Competencies {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (h *ObligationHandler) Generate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	competencies, err := req.parsedCompetencies()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "competencies must be YYYY-MM-DD dates"})
		return
	}

	res, err := h.Generation.Generate(c.Request.Context(), id, req.CompanyIDs, competencies, req.ResponsibleID, time.Now())
	if err != nil {
		log.Printf("[obligation][generate][err] id=%d: %v", id, err)
		fail(c, err)
		return
	}
	log.Printf("[obligation][generate] id=%d created=%d skipped=%d", id, len(res.Created), res.Skipped)
	c.JSON(http.StatusCreated, res)
}

func (h *ObligationHandler) GeneratePreview(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	competencies, err := req.parsedCompetencies()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "competencies must be YYYY-MM-DD dates"})
		return
	}

	rows, err := h.Generation.Preview(c.Request.Context(), id, req.CompanyIDs, competencies, req.ResponsibleID, time.Now())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}
