package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lessonworks/analysis-api/internal/api"
	apiMiddleware "github.com/lessonworks/analysis-api/internal/api/middleware"
	"github.com/lessonworks/analysis-api/internal/api/shared"
	"github.com/lessonworks/analysis-api/internal/service/auth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter configures all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authHandler := api.NewAuthHandler(
		app.jwtService,
		auth.NewBcryptVerifier(),
		app.config.Auth.AdminPasswordHash,
	)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	analysisHandler := api.NewAnalysisHandler(app.analysisService)
	workerHandler := api.NewWorkerHandler(app.scheduler)
	hookHandler := api.NewHookHandler(app.emitter)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		r.Post("/analysis/tasks", analysisHandler.EnqueueTask)
		r.Get("/analysis/tasks/{taskID}", analysisHandler.GetTask)
		r.Get("/lessons/{lessonID}/analysis", analysisHandler.GetResult)

		r.Get("/worker/status", workerHandler.Status)
		r.Post("/hooks/lesson", hookHandler.LessonHook)

		// Administrative operations require a token.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/admin/worker/dispatch", workerHandler.TriggerDispatch)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
			"status":    "ok",
			"inference": app.healthMonitor.Status(),
			"worker":    app.scheduler.Status(),
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
