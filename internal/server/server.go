// Package server exposes region analysis over HTTP.
//
//	GET  /healthz      liveness probe
//	GET  /v1/palette   configured palette entries
//	POST /v1/regions   multipart upload (field "image"), returns the report
//
// /v1/regions accepts the threshold, minArea and matches query parameters,
// which override the server defaults for that request.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/maax3v3/yarnmap"
	"github.com/maax3v3/yarnmap/internal/cli"
	"github.com/maax3v3/yarnmap/internal/imaging"
	"github.com/maax3v3/yarnmap/internal/palette"
	"github.com/maax3v3/yarnmap/internal/pipeline"
)

const (
	formField       = "image"
	shutdownTimeout = 10 * time.Second
)

// Server serves the analysis API.
type Server struct {
	cfg cli.ServerConfig
	pal *palette.Palette
	log zerolog.Logger
}

// New returns a Server. pal may be nil, in which case regions carry no
// palette matches.
func New(cfg cli.ServerConfig, pal *palette.Palette, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, pal: pal, log: log}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Get("/palette", s.handlePalette)
		r.With(middleware.Timeout(s.cfg.Timeout)).Post("/regions", s.handleRegions)
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type paletteEntry struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

func (s *Server) handlePalette(w http.ResponseWriter, _ *http.Request) {
	entries := []paletteEntry{}
	if s.pal != nil {
		entries = lo.Map(s.pal.Entries, func(e palette.Entry, _ int) paletteEntry {
			return paletteEntry{Name: e.Name, Hex: e.Color.Hex()}
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	log := s.log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()

	if r.ContentLength > s.cfg.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds %d bytes", s.cfg.MaxUploadBytes)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds %d bytes", s.cfg.MaxUploadBytes)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: %v", err)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn().Err(err).Msg("removing upload")
		}
	}()

	a, err := analysisFromQuery(r.URL.Query(), s.cfg.Analysis)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	file, _, err := r.FormFile(formField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing %q file field", formField)
		return
	}
	defer file.Close()

	img, err := imaging.Decode(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	report, err := pipeline.Analyze(r.Context(), img, a, s.pal, log)
	switch {
	case errors.Is(err, yarnmap.ErrCancelled):
		// The client is gone or the timeout middleware answers.
		log.Warn().Err(err).Msg("analysis cancelled")
		return
	case errors.Is(err, yarnmap.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	case err != nil:
		log.Error().Err(err).Msg("analysis failed")
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// analysisFromQuery overrides defaults with the request's query parameters.
func analysisFromQuery(q url.Values, defaults cli.Analysis) (cli.Analysis, error) {
	a := defaults
	if v := q.Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return a, fmt.Errorf("threshold: %w", err)
		}
		a.Threshold = f
	}
	if v := q.Get("minArea"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return a, fmt.Errorf("minArea: %w", err)
		}
		a.MinArea = n
	}
	if v := q.Get("matches"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return a, fmt.Errorf("matches: %w", err)
		}
		a.Matches = n
	}
	return a, a.Validate()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
