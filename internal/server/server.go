package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/handler"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/handler/registry"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/handler/sessions"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/logging"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/svc"
)

// Options holds optional server dependencies
type Options struct {
	SvcCtx *svc.ServiceContext // Pre-initialized service context
	Quiet  bool                // Suppress request logging
}

// Run starts the agent API server. It blocks until the context is
// cancelled or startup fails.
func Run(ctx context.Context, svcCtx *svc.ServiceContext, opts ...Options) error {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.SvcCtx != nil {
		svcCtx = o.SvcCtx
	}

	addr := svcCtx.Config.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		return fmt.Errorf("address %s is already in use: %w", addr, err)
	}

	r := NewRouter(svcCtx, o)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logging.Infof("server listening on http://%s", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// NewRouter builds the chi router with all API routes mounted.
func NewRouter(svcCtx *svc.ServiceContext, opts Options) chi.Router {
	r := chi.NewRouter()

	if !opts.Quiet {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", handler.HealthCheckHandler(svcCtx))

	r.Route("/api", func(r chi.Router) {
		registerSessionRoutes(r, svcCtx)
		registerToolRoutes(r, svcCtx)

		r.Get("/stats/sessions", sessions.SessionStatsHandler(svcCtx))
		r.Get("/stats/tools", registry.ToolStatsHandler(svcCtx))
	})

	return r
}

func registerSessionRoutes(r chi.Router, svcCtx *svc.ServiceContext) {
	r.Get("/sessions", sessions.ListSessionsHandler(svcCtx))
	r.Post("/sessions", sessions.CreateSessionHandler(svcCtx))
	r.Get("/sessions/{id}", sessions.GetSessionHandler(svcCtx))
	r.Delete("/sessions/{id}", sessions.DeleteSessionHandler(svcCtx))
	r.Get("/sessions/{id}/summary", sessions.GetSummaryHandler(svcCtx))

	r.Get("/sessions/{id}/messages", sessions.GetMessagesHandler(svcCtx))
	r.Post("/sessions/{id}/messages", sessions.AddMessageHandler(svcCtx))
	r.Post("/sessions/{id}/compress", sessions.CompressSessionHandler(svcCtx))

	r.Get("/sessions/{id}/tasks", sessions.ListTasksHandler(svcCtx))
	r.Post("/sessions/{id}/tasks", sessions.AddTaskHandler(svcCtx))
	r.Patch("/sessions/{id}/tasks/{taskID}", sessions.UpdateTaskHandler(svcCtx))
	r.Post("/sessions/{id}/tasks/{taskID}/resume", sessions.ResumeTaskHandler(svcCtx))
	r.Post("/sessions/{id}/tasks/{taskID}/pause", sessions.PauseTaskHandler(svcCtx))

	r.Get("/sessions/{id}/context/{key}", sessions.GetContextVariableHandler(svcCtx))
	r.Put("/sessions/{id}/context/{key}", sessions.SetContextVariableHandler(svcCtx))
}

func registerToolRoutes(r chi.Router, svcCtx *svc.ServiceContext) {
	r.Get("/tools", registry.SearchToolsHandler(svcCtx))
	r.Post("/tools", registry.RegisterToolHandler(svcCtx))
	r.Get("/tools/{name}", registry.GetToolHandler(svcCtx))
	r.Post("/tools/{name}/metrics", registry.UpdateToolMetricsHandler(svcCtx))
}

// checkPortAvailable checks if the listen address is free
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
