package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pe-intel/internal/model"
	"github.com/sells-group/pe-intel/internal/orchestrator"
	"github.com/sells-group/pe-intel/internal/schedule"
	"github.com/sells-group/pe-intel/internal/store"
)

var servePort int

// collectRunner triggers a collection run. *schedule.Activities satisfies it.
type collectRunner interface {
	Collect(ctx context.Context, req model.Request) (*schedule.RunSummary, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for on-demand collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initCollectEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		router := buildRouter(ctx, env.Acts, env.Store, env.Orch.Progress, requestDefaults())

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter assembles the API routes. runner, st, and progress may be nil;
// the affected endpoints then degrade instead of panicking.
func buildRouter(ctx context.Context, runner collectRunner, st store.Store, progress func() orchestrator.Progress, defaults model.RequestDefaults) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/collect", handleCollect(ctx, runner, defaults))
		r.Get("/runs", handleListRuns(st))
		r.Get("/runs/{id}", handleGetRun(st))
		r.Get("/progress", handleProgress(progress))
	})

	return r
}

// handleCollect validates the request synchronously and runs the collection
// in the background. The server context, not the request context, scopes the
// run so it survives the HTTP exchange.
func handleCollect(ctx context.Context, runner collectRunner, defaults model.RequestDefaults) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		req = req.Normalize(defaults)
		if err := req.Validate(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		go func() {
			if runner == nil {
				return
			}
			summary, err := runner.Collect(ctx, req)
			if err != nil {
				zap.L().Error("api collection failed",
					zap.String("entity_type", string(req.EntityType)),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("api collection complete",
				zap.String("run_id", summary.RunID),
				zap.Int("tasks_ok", summary.TasksOK),
				zap.Int("items_persisted", summary.ItemsPersisted),
			)
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"status":      "accepted",
			"entity_type": string(req.EntityType),
			"mode":        string(req.Mode),
		})
	}
}

func handleListRuns(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		q := r.URL.Query()
		limit := 50
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		filter := store.RunFilter{
			Status:     model.RunStatus(strings.ToLower(q.Get("status"))),
			EntityType: model.EntityType(strings.ToUpper(q.Get("entity"))),
			Limit:      limit,
		}

		runs, err := st.ListRuns(r.Context(), filter)
		if err != nil {
			zap.L().Error("api list runs failed", zap.Error(err))
			http.Error(w, `{"error":"list runs failed"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(runs)
	}
}

func handleGetRun(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			zap.L().Error("api get run failed", zap.Error(err))
			http.Error(w, `{"error":"get run failed"}`, http.StatusInternalServerError)
			return
		}
		if run == nil {
			http.Error(w, `{"error":"run not found"}`, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(run)
	}
}

func handleProgress(progress func() orchestrator.Progress) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p orchestrator.Progress
		if progress != nil {
			p = progress()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p)
	}
}
