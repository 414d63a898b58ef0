package routes

import (
	"github.com/gin-gonic/gin"

	"taxtrack/internal/handlers"
)

func SetupRoutes(
	r *gin.Engine,
	obligationHandler *handlers.ObligationHandler,
	companyHandler *handlers.CompanyHandler,
	taskHandler *handlers.TaskHandler,
	documentHandler *handlers.DocumentHandler,
	approvalHandler *handlers.ApprovalHandler,
) *gin.Engine {

	// OBLIGATIONS
	obligations := r.Group("/obligations")
	{
		obligations.POST("/", obligationHandler.Create)
		obligations.GET("/", obligationHandler.GetAll)
		obligations.GET("/:id", obligationHandler.GetByID)
		obligations.PUT("/:id", obligationHandler.Update)
		obligations.DELETE("/:id", obligationHandler.Delete)

		obligations.GET("/:id/companies", obligationHandler.Companies)
		obligations.PUT("/:id/companies", obligationHandler.SetCompanies)
		obligations.GET("/:id/document-types", obligationHandler.DocumentTypes)
		obligations.POST("/:id/document-types", obligationHandler.AddDocumentType)

		obligations.POST("/:id/generate", obligationHandler.Generate)
		obligations.POST("/:id/generate/preview", obligationHandler.GeneratePreview)
	}

	// COMPANIES
	companies := r.Group("/companies")
	{
		companies.POST("/", companyHandler.Create)
		companies.GET("/", companyHandler.GetAll)
		companies.GET("/:id", companyHandler.GetByID)
		companies.PUT("/:id", companyHandler.Update)
		companies.DELETE("/:id", companyHandler.Delete)
	}

	// TASKS
	tasks := r.Group("/tasks")
	{
		tasks.GET("/", taskHandler.GetAll)
		tasks.GET("/:id", taskHandler.GetByID)
		tasks.DELETE("/:id", taskHandler.Delete)
		tasks.GET("/:id/documents", taskHandler.Documents)
		tasks.POST("/:id/reassign", taskHandler.Reassign)
		tasks.POST("/:id/archive", taskHandler.Archive)
		tasks.POST("/:id/unarchive", taskHandler.Unarchive)
		tasks.POST("/:id/rectify", taskHandler.Rectify)
		tasks.GET("/:id/chain", taskHandler.Chain)
	}

	// DOCUMENTS
	documents := r.Group("/documents")
	{
		documents.POST("/:id/file", documentHandler.UploadFile)
		documents.POST("/:id/finish", documentHandler.Finish)
		documents.POST("/:id/reset", documentHandler.Reset)
		documents.GET("/:id/signatures", documentHandler.Signatures)
		documents.POST("/:id/sign", approvalHandler.Sign)
		documents.POST("/:id/reject", approvalHandler.Reject)
	}

	// SIGNATURES
	r.GET("/signatures/pending", approvalHandler.Pending)

	// APPROVERS
	r.POST("/approvers", obligationHandler.AddApprover)
	r.DELETE("/approvers/:id", obligationHandler.RemoveApprover)

	// DOCUMENT TYPES
	r.PUT("/document-types/:id", obligationHandler.UpdateDocumentType)
	r.DELETE("/document-types/:id", obligationHandler.DeactivateDocumentType)

	return r
}
