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

	"github.com/sells-group/reconcile-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reconciliation HTTP API",
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
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/entities/{id}", func(api chi.Router) {
			api.Post("/reconcile", func(w http.ResponseWriter, r *http.Request) {
				entityID := chi.URLParam(r, "id")
				var req struct {
					Publish   bool   `json:"publish"`
					CreatedBy string `json:"created_by"`
				}
				if r.ContentLength > 0 {
					if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
						writeError(w, http.StatusBadRequest, "invalid request body")
						return
					}
				}

				result, err := e.Reconciler.Run(r.Context(), entityID, pipeline.RunOptions{
					CreatedBy: req.CreatedBy,
					Publish:   req.Publish,
				})
				if err != nil {
					zap.L().Error("reconcile failed",
						zap.String("entity", entityID),
						zap.Error(err),
					)
					writeJSON(w, http.StatusInternalServerError, result)
					return
				}
				writeJSON(w, http.StatusOK, result)
			})

			api.Post("/publish", func(w http.ResponseWriter, r *http.Request) {
				entityID := chi.URLParam(r, "id")
				snap, err := e.Reconciler.Publish(r.Context(), entityID)
				if err != nil {
					writeError(w, http.StatusConflict, err.Error())
					return
				}
				writeJSON(w, http.StatusOK, snap)
			})

			api.Get("/divergence", func(w http.ResponseWriter, r *http.Request) {
				entityID := chi.URLParam(r, "id")
				warnings, err := e.Reconciler.CheckDivergence(r.Context(), entityID)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{
					"entity_id": entityID,
					"warnings":  warnings,
				})
			})

			api.Patch("/", func(w http.ResponseWriter, r *http.Request) {
				entityID := chi.URLParam(r, "id")
				var req struct {
					EditedBy string         `json:"edited_by"`
					Fields   map[string]any `json:"fields"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, "invalid request body")
					return
				}
				if len(req.Fields) == 0 {
					writeError(w, http.StatusBadRequest, "fields is required")
					return
				}
				for field := range req.Fields {
					if !e.Schema.Has(field) {
						writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown field %q", field))
						return
					}
				}
				rec, err := e.Reconciler.ApplyEdits(r.Context(), entityID, req.EditedBy, req.Fields)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				writeJSON(w, http.StatusOK, rec)
			})

			api.Get("/", func(w http.ResponseWriter, r *http.Request) {
				entityID := chi.URLParam(r, "id")
				rec, err := e.Store.GetStaging(r.Context(), entityID)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				if rec == nil {
					writeError(w, http.StatusNotFound, "no staging record")
					return
				}
				writeJSON(w, http.StatusOK, rec)
			})

			api.Get("/versions", func(w http.ResponseWriter, r *http.Request) {
				entityID := chi.URLParam(r, "id")
				snaps, err := e.Store.ListSnapshots(r.Context(), entityID, 50)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{
					"entity_id": entityID,
					"versions":  snaps,
				})
			})

			api.Get("/locks", func(w http.ResponseWriter, r *http.Request) {
				entityID := chi.URLParam(r, "id")
				lockMap, err := e.Locks.Locks(r.Context(), entityID)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{
					"entity_id": entityID,
					"locks":     lockMap,
				})
			})

			api.Put("/locks/{field}", func(w http.ResponseWriter, r *http.Request) {
				entityID := chi.URLParam(r, "id")
				fieldID := chi.URLParam(r, "field")
				if !e.Schema.Has(fieldID) {
					writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown field %q", fieldID))
					return
				}
				var req struct {
					Locked bool `json:"locked"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, "invalid request body")
					return
				}
				if err := e.Locks.SetLock(r.Context(), entityID, fieldID, req.Locked); err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{
					"entity_id": entityID,
					"field_id":  fieldID,
					"locked":    req.Locked,
				})
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
