package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/audiogate/internal/api/handlers"
)

// NewRouter creates the API router with all routes configured
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()

	authHandler := handlers.NewAuthHandler(app.Sessions, app.SecureCookie, int(app.SessionTTL.Seconds()))
	adminHandler := handlers.NewAdminHandler(app.Gate, app.Admin)
	audioHandler := handlers.NewAudioHandler(app.Sessions, app.Uploads)

	mux.HandleFunc("GET /health", handleHealth)

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/me", authHandler.Me)
	mux.HandleFunc("GET /api/auth/verify", authHandler.Verify)

	mux.HandleFunc("GET /api/admin/users", adminHandler.ListUsers)
	mux.HandleFunc("POST /api/admin/users", adminHandler.CreateUser)
	mux.HandleFunc("PUT /api/admin/users/{id}", adminHandler.UpdateUser)
	mux.HandleFunc("DELETE /api/admin/users/{id}", adminHandler.DeleteUser)
	mux.HandleFunc("GET /api/admin/sessions", adminHandler.ListSessions)
	mux.HandleFunc("DELETE /api/admin/sessions/{id}", adminHandler.RevokeSession)

	mux.HandleFunc("POST /api/audio/upload", audioHandler.Upload)

	return requestLogger(mux)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// requestLogger logs each request with method, path, status and duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
