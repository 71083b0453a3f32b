package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-migrator/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	statusHandler := handlers.NewStatusHandler(s.runtime)
	configHandler := handlers.NewConfigHandler(s.runtime)
	analysisHandler := handlers.NewAnalysisHandler(s.runtime)
	applyHandler := handlers.NewApplyHandler(s.runtime)
	jobsHandler := handlers.NewJobsHandler(s.runtime)
	thumbnailsHandler := handlers.NewThumbnailsHandler(s.runtime)

	s.router.Get("/api/health", handlers.HealthCheck)

	s.router.Route("/api", func(r chi.Router) {
		// Connection overview
		r.Get("/status", statusHandler.Get)
		r.Get("/stats", statusHandler.Stats)

		// Configuration with runtime hot-swap
		r.Get("/config", configHandler.Get)
		r.Post("/config/source-db", configHandler.SetSourceDB)
		r.Post("/config/target-api", configHandler.SetTargetAPI)
		r.Post("/config/target-db", configHandler.SetTargetDB)

		// Analysis
		r.Post("/algorithm/run", analysisHandler.Run)
		r.Get("/match-details/{srcPersonId}/{clusterId}", analysisHandler.MatchDetails)
		r.Get("/diagnostics/missing-people", analysisHandler.MissingPeople)
		r.Get("/diagnostics/orphan-people", analysisHandler.OrphanPeople)

		// Apply
		r.Post("/apply", applyHandler.Rename)
		r.Post("/apply/unclustered", applyHandler.AssignUnclustered)
		r.Post("/apply/merge", applyHandler.Merge)
		r.Post("/apply/fix", applyHandler.Fix)
		r.Post("/create-faces/apply", applyHandler.CreateFaces)

		// Jobs
		r.Get("/jobs", jobsHandler.List)
		r.Get("/jobs/{jobId}", jobsHandler.Get)
		r.Get("/jobs/{jobId}/events", jobsHandler.Events)
		r.Post("/jobs/{jobId}/cancel", jobsHandler.Cancel)

		// Thumbnail proxy
		r.Get("/thumbnails/cluster/{id}", thumbnailsHandler.Cluster)
		r.Get("/thumbnails/asset/{id}", thumbnailsHandler.Asset)
	})

	s.router.Get("/", s.serveIndex)
}

// serveIndex serves a minimal landing page. The server ships no frontend
// bundle; the API is the primary surface.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Face Migrator</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        p { color: #aaa; }
        a { color: #00d9ff; }
        code { background: #2a2a3e; padding: 2px 8px; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Face Migrator</h1>
        <p>Migrates face labels from Windows Photos Legacy to Immich.</p>
        <p>API is available at <a href="/api/health">/api/health</a>, connection overview at <a href="/api/status">/api/status</a></p>
    </div>
</body>
</html>`))
}
