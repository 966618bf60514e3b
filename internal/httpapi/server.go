// Package httpapi is the display boundary: a JSON API over the orchestrator
// plus a websocket stream of job completions.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskd/internal/adapter"
	"taskd/internal/orchestrator"
	"taskd/internal/runner"
	"taskd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *orchestrator.Orchestrator implements it.
type Service interface {
	Catalog(ctx context.Context) ([]orchestrator.TaskInfo, error)
	ActiveTask(ctx context.Context) (string, error)
	Models(ctx context.Context) ([]string, error)
	SelectTask(ctx context.Context, task string) (string, error)
	OnModelSelected(ctx context.Context, name string) (string, bool, error)
	SetLanguage(ctx context.Context, lang string) (string, error)
	Submit(ctx context.Context, req orchestrator.RunRequest, cb func(orchestrator.Completion)) (string, error)
	Job(id string) (runner.Record, bool)
	Activity() []orchestrator.Activity
	Pending() int
	Subscribe(fn func(orchestrator.Completion)) func()
	Ready() bool
}

// Server owns the router and the completion event hub.
type Server struct {
	handler     http.Handler
	hub         *hub
	unsubscribe func()
	cancel      context.CancelFunc
}

// NewServer wires routes onto svc and starts the event hub. The hub stops on
// Close or when the base context ends.
func NewServer(svc Service) *Server {
	closeCtx, closeFn := context.WithCancel(context.Background())
	ctx, cancelJoin := joinContexts(serverBaseCtx, closeCtx)
	s := &Server{hub: newHub(ctx)}
	s.cancel = func() { closeFn(); cancelJoin() }
	go s.hub.run()
	s.unsubscribe = svc.Subscribe(func(c orchestrator.Completion) { s.hub.publish(completionEvent(c)) })
	s.handler = newRouter(svc, s.hub)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Close detaches from the service and disconnects event clients.
func (s *Server) Close() {
	s.unsubscribe()
	s.cancel()
}

// NewMux returns the handler of a new Server. Callers that need to release
// the hub should use NewServer.
func NewMux(svc Service) http.Handler { return NewServer(svc).Handler() }

func newRouter(svc Service, h *hub) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: orDefault(corsAllowedOrigins, []string{"*"}),
			AllowedMethods: orDefault(corsAllowedMethods, []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Content-Type", "X-Log-Level"}),
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Group(func(r chi.Router) {
		// Compression for JSON endpoints
		r.Use(middleware.Compress(5))

		r.Get("/tasks", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := controlContext(r.Context())
			defer cancel()
			cat, err := svc.Catalog(ctx)
			if err != nil {
				writeError(w, err)
				return
			}
			active, err := svc.ActiveTask(ctx)
			if err != nil {
				writeError(w, err)
				return
			}
			resp := types.TasksResponse{Active: active, Tasks: make([]types.TaskInfo, 0, len(cat))}
			for _, t := range cat {
				resp.Tasks = append(resp.Tasks, types.TaskInfo{Task: t.Task, DisplayName: t.DisplayName, Kind: string(t.Kind)})
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := controlContext(r.Context())
			defer cancel()
			models, err := svc.Models(ctx)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, types.ModelsResponse{Models: models})
		})

		r.Post("/select", func(w http.ResponseWriter, r *http.Request) {
			var req types.SelectRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			ctx, cancel := controlContext(r.Context())
			defer cancel()
			switch {
			case strings.TrimSpace(req.Task) != "":
				name, err := svc.SelectTask(ctx, req.Task)
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, types.SelectResponse{Task: req.Task, DisplayName: name})
			case strings.TrimSpace(req.Model) != "":
				task, ok, err := svc.OnModelSelected(ctx, req.Model)
				if err != nil {
					writeError(w, err)
					return
				}
				if !ok {
					writeJSONError(w, http.StatusNotFound, "unknown model: "+req.Model)
					return
				}
				writeJSON(w, http.StatusOK, types.SelectResponse{Task: task, DisplayName: req.Model})
			default:
				writeJSONError(w, http.StatusBadRequest, "task or model is required")
			}
		})

		r.Get("/languages", func(w http.ResponseWriter, r *http.Request) {
			var resp types.LanguagesResponse
			for _, l := range adapter.Languages() {
				resp.Languages = append(resp.Languages, types.Language{Name: l.Name, Model: l.Model})
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Post("/language", func(w http.ResponseWriter, r *http.Request) {
			var req types.LanguageRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if strings.TrimSpace(req.Language) == "" {
				writeJSONError(w, http.StatusBadRequest, "language is required")
				return
			}
			ctx, cancel := controlContext(r.Context())
			defer cancel()
			name, err := svc.SetLanguage(ctx, req.Language)
			if err != nil {
				writeError(w, err)
				return
			}
			lang := req.Language
			if l, ok := adapter.LookupLanguage(lang); ok {
				lang = l.Name
			}
			writeJSON(w, http.StatusOK, types.LanguageResponse{Language: lang, DisplayName: name})
		})

		r.Post("/run", func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			var req types.RunRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if req.Destination != "" && !safeRelative(req.Destination) {
				writeJSONError(w, http.StatusBadRequest, "destination must be a relative path inside the outputs dir")
				return
			}
			ctx, cancel := controlContext(r.Context())
			defer cancel()
			id, err := svc.Submit(ctx, orchestrator.RunRequest{
				Task:      req.Task,
				Text:      req.Input,
				ImagePath: req.ImagePath,
				Options: adapter.Options{
					MaxLength:   req.Options.MaxLength,
					MinLength:   req.Options.MinLength,
					Temperature: req.Options.Temperature,
					TopP:        req.Options.TopP,
				},
				Language:    req.Language,
				Save:        req.Save,
				Destination: req.Destination,
			}, nil)
			if err != nil {
				runRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
				status := statusFor(err)
				logRun(r, req.Task, "", status, start, err)
				writeJSONError(w, status, err.Error())
				return
			}
			logRun(r, req.Task, id, http.StatusAccepted, start, nil)
			writeJSON(w, http.StatusAccepted, types.RunResponse{JobID: id})
		})

		r.Get("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			rec, ok := svc.Job(id)
			if !ok {
				writeJSONError(w, http.StatusNotFound, "unknown job: "+id)
				return
			}
			writeJSON(w, http.StatusOK, jobResponse(rec))
		})

		r.Get("/activity", func(w http.ResponseWriter, r *http.Request) {
			acts := svc.Activity()
			resp := types.ActivityResponse{Pending: svc.Pending(), Activity: make([]types.ActivityEntry, 0, len(acts))}
			for _, a := range acts {
				resp.Activity = append(resp.Activity, types.ActivityEntry{
					TimeUnixMS: a.Time.UnixMilli(), Kind: a.Kind, Task: a.Task, Detail: a.Detail, Success: a.Success,
				})
			}
			writeJSON(w, http.StatusOK, resp)
		})
	})

	r.Get("/events", h.serveEvents)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("stopped"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// decodeJSON enforces the content type and body limit. It writes the error
// response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Debug().Err(err).Msg("encode response")
	}
}

func safeRelative(p string) bool {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "~") {
		return false
	}
	clean := filepath.Clean(p)
	return clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

func jobResponse(rec runner.Record) types.JobResponse {
	out := types.JobResponse{
		ID:              rec.ID,
		Task:            rec.Task,
		State:           string(rec.State),
		Output:          rec.Output,
		Error:           rec.Error,
		SubmittedUnixMS: rec.Submitted.UnixMilli(),
	}
	if !rec.Started.IsZero() {
		out.StartedUnixMS = rec.Started.UnixMilli()
	}
	if !rec.Finished.IsZero() {
		out.FinishedUnixMS = rec.Finished.UnixMilli()
	}
	return out
}

func completionEvent(c orchestrator.Completion) types.CompletionEvent {
	return types.CompletionEvent{
		JobID:     c.JobID,
		Task:      c.Task,
		Model:     c.Model,
		Success:   c.Success,
		Payload:   c.Payload,
		ElapsedMS: c.Elapsed.Milliseconds(),
		SavedTo:   c.SavedTo,
		SaveError: c.SaveError,
	}
}
