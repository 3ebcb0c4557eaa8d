package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/refinery-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only query server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedMethods: []string{"GET"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
		r.Use(rateLimit(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, e.Collector.Snapshot())
		})

		r.Route("/tables/{table}", func(r chi.Router) {
			r.Get("/current", func(w http.ResponseWriter, req *http.Request) {
				versions, err := e.Store.Current(req.Context(), chi.URLParam(req, "table"))
				if err != nil {
					serveError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, versions)
			})

			r.Get("/asof", func(w http.ResponseWriter, req *http.Request) {
				at, err := parseAt(req.URL.Query().Get("at"))
				if err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid at parameter"})
					return
				}
				versions, err := e.Store.AsOf(req.Context(), chi.URLParam(req, "table"), at)
				if err != nil {
					serveError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, versions)
			})

			r.Get("/history", func(w http.ResponseWriter, req *http.Request) {
				key := req.URL.Query().Get("key")
				if key == "" {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key is required"})
					return
				}
				versions, err := e.Store.History(req.Context(), chi.URLParam(req, "table"), key)
				if err != nil {
					serveError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, versions)
			})

			r.Get("/masked", func(w http.ResponseWriter, req *http.Request) {
				user := req.URL.Query().Get("user")
				if user == "" {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user is required"})
					return
				}
				at, err := parseAt(req.URL.Query().Get("at"))
				if err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid at parameter"})
					return
				}

				versions, err := e.Store.Current(req.Context(), chi.URLParam(req, "table"))
				if err != nil {
					serveError(w, err)
					return
				}
				recs := make([]model.Record, 0, len(versions))
				for _, v := range versions {
					recs = append(recs, v.Fields)
				}
				projected, err := e.Evaluator.ProjectBatch(req.Context(), recs, user, at)
				if err != nil {
					serveError(w, err)
					return
				}
				e.Collector.RecordMaskEvaluations(len(projected))
				writeJSON(w, http.StatusOK, projected)
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// rateLimit applies one shared limiter across all callers.
func rateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func serveError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
