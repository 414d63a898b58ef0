package app

import (
	"database/sql"
	"fmt"
	"log"

	"taxtrack/internal/config"
	"taxtrack/internal/handlers"
	"taxtrack/internal/jobs"
	"taxtrack/internal/notify"
	"taxtrack/internal/pdf"
	"taxtrack/internal/repositories"
	"taxtrack/internal/routes"
	"taxtrack/internal/services"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
)

func Run() {
	cfg := config.LoadConfig()

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	// === Repos ===
	obligationRepo := repositories.NewObligationRepository(db)
	companyRepo := repositories.NewCompanyRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	documentRepo := repositories.NewDocumentRepository(db)
	docTypeRepo := repositories.NewDocumentTypeRepository(db)
	signatureRepo := repositories.NewSignatureRepository(db)
	userRepo := repositories.NewUserRepository(db)

	// === Notifications ===
	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.Email.Enabled {
		emailNotifier := notify.NewEmailNotifier(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromEmail,
			userRepo,
		)
		notifier = notify.Multi{notify.LogNotifier{}, emailNotifier}
	}

	// PDF protocol renderer (put a TTF with full latin coverage at the path)
	pdfGen := pdf.NewProtocolGenerator(cfg.Files.RootDir, "assets/fonts/DejaVuSans.ttf")

	// === Services ===
	obligationService := services.NewObligationService(obligationRepo, docTypeRepo, signatureRepo)
	companyService := services.NewCompanyService(companyRepo)
	taskService := services.NewTaskService(taskRepo, documentRepo)
	generationService := services.NewGenerationService(
		obligationRepo,
		companyRepo,
		taskRepo,
		docTypeRepo,
		notifier,
		cfg.Scheduling.PendingThresholdDays,
		cfg.Scheduling.MonthsAdvanced,
	)
	statusService := services.NewStatusService(taskRepo, notifier, cfg.Scheduling.PendingThresholdDays)
	correctionService := services.NewCorrectionService(taskRepo, notifier, cfg.Scheduling.PendingThresholdDays)
	approvalService := services.NewApprovalService(
		documentRepo,
		taskRepo,
		signatureRepo,
		companyRepo,
		userRepo,
		notifier,
		pdfGen,
	)

	// === Handlers ===
	obligationHandler := handlers.NewObligationHandler(obligationService, generationService)
	companyHandler := handlers.NewCompanyHandler(companyService)
	taskHandler := handlers.NewTaskHandler(taskService, correctionService)
	documentHandler := handlers.NewDocumentHandler(approvalService, cfg.Files.RootDir)
	approvalHandler := handlers.NewApprovalHandler(approvalService)

	// === Scheduler ===
	scheduler := jobs.NewScheduler(
		statusService,
		generationService,
		cfg.Scheduling.StatusSweepCron,
		cfg.Scheduling.GenerationCron,
	)
	if err := scheduler.Start(); err != nil {
		log.Fatal("failed to start scheduler: ", err)
	}
	defer scheduler.Stop()

	// === Gin ===
	router := gin.Default()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	routes.SetupRoutes(
		router,
		obligationHandler,
		companyHandler,
		taskHandler,
		documentHandler,
		approvalHandler,
	)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("server listening on %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("failed to start server: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
