package main

import (
	"context"
	"encoding/json"
	"errors"
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

	"github.com/sells-group/data-agent/internal/model"
	"github.com/sells-group/data-agent/internal/pipeline"
	"github.com/sells-group/data-agent/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port

		env, err := initAgent(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env.Controller, env.Store, env.Options, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type askRequest struct {
	Query           string `json:"query"`
	MaxStageRetries *int   `json:"max_stage_retries,omitempty"`
	DataByteBudget  *int   `json:"data_byte_budget,omitempty"`
	Sheet           string `json:"sheet,omitempty"`
}

type runDetail struct {
	model.Run
	Events []model.StageEvent `json:"events"`
}

// buildRouter wires the API. st may be nil, in which case the runs
// endpoints report the ledger as disabled.
func buildRouter(r runner, st store.Store, opts pipeline.Options, origins []string) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/v1", func(v1 chi.Router) {
		v1.Post("/ask", handleAsk(r, opts))
		v1.Get("/runs", handleListRuns(st))
		v1.Get("/runs/{id}", handleGetRun(st))
	})

	return router
}

// handleAsk runs the query within the request and returns its Result. An
// aborted run is still a 200: the Result carries the partial answer.
func handleAsk(r runner, opts pipeline.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body askRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		body.Query = strings.TrimSpace(body.Query)
		if body.Query == "" {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}

		runOpts := opts
		if body.MaxStageRetries != nil {
			runOpts.MaxStageRetries = *body.MaxStageRetries
		}
		if body.DataByteBudget != nil {
			runOpts.DataByteBudget = *body.DataByteBudget
		}
		if body.Sheet != "" {
			runOpts.Sheet = body.Sheet
		}
		if err := runOpts.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res := r.Run(req.Context(), body.Query, runOpts)
		writeJSON(w, http.StatusOK, res)
	}
}

func handleListRuns(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if st == nil {
			writeError(w, http.StatusNotFound, "run ledger is disabled")
			return
		}

		filter := store.RunFilter{Status: model.RunStatus(req.URL.Query().Get("status"))}
		for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
			raw := req.URL.Query().Get(name)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
				return
			}
			*dst = n
		}

		runs, err := st.ListRuns(req.Context(), filter)
		if err != nil {
			zap.L().Error("list runs", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list runs failed")
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func handleGetRun(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if st == nil {
			writeError(w, http.StatusNotFound, "run ledger is disabled")
			return
		}

		id := chi.URLParam(req, "id")
		run, err := st.GetRun(req.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if err != nil {
			zap.L().Error("get run", zap.String("run_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get run failed")
			return
		}

		events, err := st.ListStageEvents(req.Context(), id)
		if err != nil {
			zap.L().Error("list stage events", zap.String("run_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get run failed")
			return
		}
		if events == nil {
			events = []model.StageEvent{}
		}
		writeJSON(w, http.StatusOK, runDetail{Run: *run, Events: events})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
