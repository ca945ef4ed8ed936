package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/codetrial/broker-backend-go/internal/config"
	appHTTP "github.com/codetrial/broker-backend-go/internal/handler/http"
	"github.com/codetrial/broker-backend-go/internal/pkg/cron"
	"github.com/codetrial/broker-backend-go/internal/pkg/database"
	"github.com/codetrial/broker-backend-go/internal/pkg/github"
	"github.com/codetrial/broker-backend-go/internal/pkg/opaque"
	"github.com/codetrial/broker-backend-go/internal/repository/postgresql"
	brokerService "github.com/codetrial/broker-backend-go/internal/service/broker"
	"github.com/codetrial/broker-backend-go/internal/service/catalog"
	provisionerService "github.com/codetrial/broker-backend-go/internal/service/provisioner"
	"github.com/codetrial/broker-backend-go/internal/service/tokenstore"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	logFormat := httplog.SchemaECS.Concise(cfg.App.Env == "development")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "broker-backend"),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}
	defer db.Close()

	githubClient, err := github.NewClient(github.Config{
		AppID:          cfg.GitHub.AppID,
		PrivateKey:     cfg.GitHub.PrivateKey,
		InstallationID: cfg.GitHub.InstallationID,
		Organization:   cfg.GitHub.Organization,
		APIBaseURL:     cfg.GitHub.APIBaseURL,
		RequestTimeout: cfg.GitHub.RequestTimeout,
	})
	if err != nil {
		log.Fatal("Failed to initialize github client: ", err)
	}

	invitationRepo := postgresql.NewInvitationRepository(db)
	candidateRepoRepo := postgresql.NewCandidateRepoRepository(db)
	submissionRepo := postgresql.NewSubmissionRepository(db)
	tokenRepo := postgresql.NewTokenRepository(db)
	seedRepo := postgresql.NewSeedRepository(db)
	assessmentRepo := postgresql.NewAssessmentRepository(db)
	txManager := postgresql.NewTxManager(db)

	hasher := opaque.NewHasher(cfg.Broker.TokenHashKey)
	tokenStore := tokenstore.NewService(tokenRepo, hasher)

	provisioner := provisionerService.NewService(githubClient, candidateRepoRepo, provisionerService.Config{
		Organization:    cfg.GitHub.Organization,
		CandidatePrefix: cfg.GitHub.CandidatePrefix,
		PinFromCache:    cfg.Broker.PinFromCache,
	}, logger)

	broker := brokerService.NewService(brokerService.Deps{
		Invitations: invitationRepo,
		Repos:       candidateRepoRepo,
		Submissions: submissionRepo,
		Assessments: assessmentRepo,
		Seeds:       seedRepo,
		Provisioner: provisioner,
		Tokens:      tokenStore,
		Authority:   githubClient,
		Tx:          txManager,
		Hasher:      hasher,
		Logger:      logger,
	})

	seedService := catalog.NewSeedService(seedRepo, githubClient, logger)
	assessmentService := catalog.NewAssessmentService(assessmentRepo, seedRepo, logger)

	scheduler := cron.NewScheduler(logger)
	cron.NewDeadlineSweep(broker, cfg.Broker.SweepInterval).RegisterJobs(scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	ja := jwtauth.New("HS256", []byte(cfg.Auth.Secret), nil)

	router := appHTTP.NewRouter(logger, ja, appHTTP.Handlers{
		Candidate:  appHTTP.NewCandidateHandler(broker),
		Credential: appHTTP.NewCredentialHandler(broker),
		Seed:       appHTTP.NewSeedHandler(seedService),
		Assessment: appHTTP.NewAssessmentHandler(assessmentService),
		Invitation: appHTTP.NewInvitationHandler(broker),
	})

	port := fmt.Sprintf(":%d", cfg.App.Port)
	fmt.Printf("Server running at http://localhost%s\n", port)
	if err := http.ListenAndServe(port, router); err != nil {
		fmt.Println("Server error:", err)
	}
}
