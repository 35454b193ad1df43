package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"schedcard/internal/config"
	appLog "schedcard/internal/log"
	"schedcard/internal/model"
	"schedcard/internal/pipeline"
	"schedcard/internal/render"
)

const (
	cacheTTL        = 30 * time.Second
	maxRequestBytes = 1 << 20
)

// Server exposes the schedule and the card renderer over HTTP.
type Server struct {
	cfg    *config.Config
	pipe   *pipeline.Pipeline
	router chi.Router

	// In-memory caches so repeated page loads do not refetch calendars
	// or repaint the card.
	entriesMu    sync.RWMutex
	entriesCache *cached[entriesResponse]

	previewMu    sync.Mutex
	previewCache *cached[[]byte]

	now func() time.Time
}

type cached[T any] struct {
	value     T
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, pipe *pipeline.Pipeline) *Server {
	s := &Server{
		cfg:  cfg,
		pipe: pipe,
		now:  time.Now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler, wrapped with Basic Auth when it
// is configured.
func (s *Server) Handler() http.Handler {
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(s.router)
	}
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/preview.png", s.handlePreview)
	r.Route("/api", func(r chi.Router) {
		r.Get("/entries", s.handleEntries)
		r.Post("/render", s.handleRender)
	})
	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="schedcard", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// entriesResponse is the JSON response shape for /api/entries.
type entriesResponse struct {
	Entries         []model.ScheduleEntry `json:"entries"`
	TruncatedUIDs   []string              `json:"truncated_uids,omitempty"`
	RangeStart      time.Time             `json:"range_start"`
	RangeEnd        time.Time             `json:"range_end"`
	DisplayTimeZone string                `json:"display_timezone"`
}

// handleEntries returns the upcoming schedule built from the configured
// ICS sources, exactly as the card would show it.
func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	s.entriesMu.RLock()
	ec := s.entriesCache
	s.entriesMu.RUnlock()
	if ec != nil && s.now().Sub(ec.updatedAt) < cacheTTL {
		writeJSON(w, http.StatusOK, ec.value)
		return
	}

	es, err := s.pipe.Entries(r.Context())
	if err != nil {
		appLog.Error("api entries: build failed", err)
		writeError(w, http.StatusBadGateway, "failed to load calendars")
		return
	}

	resp := entriesResponse{
		Entries:         es.Entries,
		TruncatedUIDs:   es.Truncated,
		RangeStart:      es.RangeStart,
		RangeEnd:        es.RangeEnd,
		DisplayTimeZone: es.Location.String(),
	}

	s.entriesMu.Lock()
	s.entriesCache = &cached[entriesResponse]{value: resp, updatedAt: s.now()}
	s.entriesMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// renderRequest is the body of POST /api/render. Omitted card options fall
// back to the configured defaults.
type renderRequest struct {
	Title           *string               `json:"title"`
	Footer          *string               `json:"footer"`
	ProfileImageURL *string               `json:"profile_image_url"`
	ShowEndDate     *bool                 `json:"show_end_date"`
	ShowDuration    *bool                 `json:"show_duration"`
	DateFormat      *string               `json:"date_format"`
	Theme           *string               `json:"theme"`
	Entries         []model.ScheduleEntry `json:"entries"`
}

func (req renderRequest) apply(opts pipeline.CardOptions) pipeline.CardOptions {
	if req.Title != nil {
		opts.Title = *req.Title
	}
	if req.Footer != nil {
		opts.Footer = *req.Footer
	}
	if req.ProfileImageURL != nil {
		opts.ProfileImageURL = *req.ProfileImageURL
	}
	if req.ShowEndDate != nil {
		opts.ShowEndDate = *req.ShowEndDate
	}
	if req.ShowDuration != nil {
		opts.ShowDuration = *req.ShowDuration
	}
	if req.DateFormat != nil && *req.DateFormat != "" {
		opts.DateFormat = *req.DateFormat
	}
	if req.Theme != nil && *req.Theme != "" {
		opts.Theme = *req.Theme
	}
	return opts
}

// handleRender paints caller-supplied entries and returns the PNG.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if n := len(req.Entries); n == 0 || n > model.MaxEntries {
		writeError(w, http.StatusBadRequest, "entries must hold 1 to "+strconv.Itoa(model.MaxEntries)+" items")
		return
	}

	opts := req.apply(s.pipe.DefaultCardOptions())
	if !s.imageRefAllowed(opts.ProfileImageURL) {
		writeError(w, http.StatusBadRequest, "profile_image_url is not allowed")
		return
	}
	for i, e := range req.Entries {
		if !s.imageRefAllowed(e.CategoryImageURL) {
			writeError(w, http.StatusBadRequest, "entries["+strconv.Itoa(i)+"].category_image_url is not allowed")
			return
		}
	}

	res, err := s.pipe.Render(r.Context(), req.Entries, opts)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrUnknownTheme), errors.Is(err, render.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			appLog.Error("api render failed", err)
			writeError(w, http.StatusInternalServerError, "render failed")
		}
		return
	}
	writePNG(w, res.PNG)
}

// imageRefAllowed reports whether a caller-supplied image reference may be
// handed to the loader. Only configured refs and http(s) URLs on the
// configured image hosts pass; local paths never come from a request.
func (s *Server) imageRefAllowed(ref string) bool {
	if ref == "" || ref == s.cfg.Render.ProfileImageURL {
		return true
	}
	for _, v := range s.cfg.CategoryImages {
		if ref == v {
			return true
		}
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.User != nil {
		return false
	}
	host := u.Hostname()
	return host != "" && slices.ContainsFunc(s.cfg.Render.ImageHosts, func(h string) bool {
		return strings.EqualFold(h, host)
	})
}

// handlePreview renders the configured calendar as a card.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	// One render at a time; concurrent requests reuse the fresh result.
	s.previewMu.Lock()
	defer s.previewMu.Unlock()

	if pc := s.previewCache; pc != nil && s.now().Sub(pc.updatedAt) < cacheTTL {
		writePNG(w, pc.value)
		return
	}

	res, err := s.pipe.RenderConfigured(r.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrNoEntries) {
			writeError(w, http.StatusNotFound, "no upcoming entries")
			return
		}
		appLog.Error("preview render failed", err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	s.previewCache = &cached[[]byte]{value: res.PNG, updatedAt: s.now()}
	writePNG(w, res.PNG)
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
