// Package app wires configuration, storage, services and controllers. The
// HTTP server and the wellnessctl CLI both start from here.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"wellness/wellness/config"
	"wellness/wellness/controllers"
	"wellness/wellness/middlewares"
	"wellness/wellness/prompts"
	"wellness/wellness/routes"
	"wellness/wellness/services/activity"
	"wellness/wellness/services/embedding"
	"wellness/wellness/services/ingest"
	"wellness/wellness/services/knowledge"
	"wellness/wellness/services/llm"
	"wellness/wellness/services/notify"
	"wellness/wellness/services/roadmap"
	"wellness/wellness/services/scraper"
	"wellness/wellness/services/sidecar"
	"wellness/wellness/sources/psql"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/storage"
	"wellness/wellness/utils/logging"
	"wellness/wellness/utils/types"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	janitorInterval = time.Hour
	limiterSweep    = time.Minute
)

type App struct {
	Config   config.Config
	DB       *psql.Database
	Store    *storage.MinIOClient
	KB       *knowledge.Service
	Pipeline *ingest.Pipeline
	Activity *activity.Recorder
	Limiter  *middlewares.RateLimiter

	Auth      *controllers.AuthController
	Profile   *controllers.ProfileController
	Chat      *controllers.ChatController
	Query     *controllers.QueryController
	Roadmap   *controllers.RoadmapController
	Feedback  *controllers.FeedbackController
	Logger    *controllers.ActivityController
	Documents *controllers.DocumentsController
	Admin     *controllers.AdminController
	Health    *controllers.HealthController

	scraper *scraper.Scraper
}

// New connects to Postgres and MinIO and builds every service. Background
// work only begins with Start.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := psql.NewDatabase(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	store, err := storage.NewMinIOClient(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("object store: %w", err)
	}
	client, err := llm.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("llm: %w", err)
	}
	embedder, err := embedding.NewEngine(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("embedding: %w", err)
	}

	crawler := scraper.NewScraper(types.ScrapeOptions{})
	a := assemble(cfg, db.DB, store, client, embedder, crawler, notify.New(cfg))
	a.DB = db
	a.Store = store
	a.scraper = crawler
	return a, nil
}

// assemble builds the services and controllers on top of already connected
// stores.
func assemble(cfg config.Config, db *gorm.DB, store storage.ObjectStore, client llm.Client,
	embedder embedding.Engine, crawler knowledge.Crawler, notifier notify.Notifier) *App {
	fast := cfg.LLMFastModel
	if fast == "" {
		fast = cfg.LLMModel
	}
	catalog := prompts.Load(cfg.PromptsFile)
	rec := activity.NewRecorder(db)
	sidecars := sidecar.NewManager(store)

	kb := knowledge.NewService(db, store, embedder, crawler)
	pipeline := ingest.NewPipeline(db, store, kb, sidecars, client, fast, catalog)
	pipeline.IndexingWait = cfg.IndexingWait

	profiles := controllers.NewProfileController(dao.NewProfileDAO(db), rec)
	a := &App{
		Config:   cfg,
		KB:       kb,
		Pipeline: pipeline,
		Activity: rec,
		Limiter:  middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),

		Auth:    controllers.NewAuthController(dao.NewUserDAO(db), notifier, cfg),
		Profile: profiles,
		Chat:    controllers.NewChatController(dao.NewChatSessionDAO(db), client, fast, catalog),
		Query:   controllers.NewQueryController(profiles, kb, client, cfg.LLMModel, catalog, rec),
		Roadmap: controllers.NewRoadmapController(dao.NewRoadmapDAO(db),
			roadmap.NewTransformer(client, cfg.LLMModel, catalog, dao.NewRoadmapDAO(db), rec), rec),
		Feedback:  controllers.NewFeedbackController(dao.NewFeedbackDAO(db), rec),
		Logger:    controllers.NewActivityController(rec),
		Documents: controllers.NewDocumentsController(dao.NewDocumentDAO(db), store, sidecars, kb, pipeline, rec),
		Admin:     controllers.NewAdminController(db, rec, kb, store, notifier),
		Health:    controllers.NewHealthController(),
	}
	return a
}

// Start launches the ingestion workers and, when background is set, the
// status checker, bucket listener, janitors and nightly sync.
func (a *App) Start(ctx context.Context, background bool) {
	a.KB.Start(ctx)
	if !background {
		return
	}
	go a.Pipeline.RunStatusChecker(ctx, a.Config.StatusCheckInterval)
	if a.Config.MinIONotifications {
		go a.Pipeline.Listen(ctx, a.Store)
	}
	go a.Activity.Janitor(ctx, janitorInterval)
	go a.Limiter.Janitor(ctx, limiterSweep)
	go a.syncLoop(ctx)
}

func (a *App) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(a.Config.KBSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := a.KB.Sync(ctx)
			if err != nil {
				logging.ErrorLogger.Error("scheduled knowledge sync failed", zap.Error(err))
				continue
			}
			logging.AppLogger.Info("scheduled knowledge sync queued",
				zap.String("sync_id", report.JobID),
				zap.Int("documents", report.Documents),
				zap.Int("web_sources", report.WebSources))
		}
	}
}

// Close waits for queued work, then releases the browser and the database.
func (a *App) Close() {
	a.Pipeline.Wait()
	a.KB.Stop()
	a.scraper.Close()
	a.DB.Close()
}

// Handler builds the HTTP router.
func (a *App) Handler() http.Handler {
	cfg := a.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Api-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(a.Limiter.Handler)

	// The websocket outlives the request timeout.
	r.HandleFunc("/chat/ws", routes.ChatStreamHandler(a.Chat, a.Query, cfg))

	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(cfg.RequestTimeout))
		gr.Mount("/health", routes.HealthRoutes(a.Health))
		gr.Mount("/chat", routes.ChatRoutes(a.Chat, cfg))
		gr.Mount("/auth", routes.AuthRoutes(a.Auth))
		gr.Mount("/profile", routes.ProfileRoutes(a.Profile, cfg))
		gr.Mount("/generate-title", routes.TitleRoutes(a.Chat, cfg))
		gr.Mount("/docs", routes.QueryRoutes(a.Query, cfg))
		gr.Mount("/documents", routes.DocumentRoutes(a.Documents, cfg))
		gr.Mount("/roadmap", routes.RoadmapRoutes(a.Roadmap, cfg))
		gr.Mount("/roadmap-transform", routes.RoadmapTransformRoutes(a.Roadmap, cfg))
		gr.Mount("/feedback", routes.FeedbackRoutes(a.Feedback, cfg))
		gr.Mount("/activity-log", routes.ActivityRoutes(a.Logger, cfg))
		gr.Mount("/admin", routes.AdminRoutes(a.Admin, cfg))
	})
	return r
}
