package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"codeberg.org/snonux/clarity/internal"
	"codeberg.org/snonux/clarity/internal/logging"
	"codeberg.org/snonux/clarity/internal/metrics"
	"codeberg.org/snonux/clarity/internal/pipeline"
	"codeberg.org/snonux/clarity/internal/speech"
)

const (
	// readHeaderTimeout prevents Slowloris attacks
	readHeaderTimeout = 10 * time.Second
	// maxFormSize bounds the /video request body
	maxFormSize int64 = 1 << 20
	maxNameLen        = 48
)

// Processor renders a single question
type Processor interface {
	ProcessSingle(ctx context.Context, query string) (*pipeline.Artifact, error)
}

// Config configures the HTTP server
type Config struct {
	Addr          string
	AllowedOrigin string
	MaxRenders    int
	// SpeechDir receives /speech audio; /speech is not routed when empty
	SpeechDir string
}

// Server serves the video API
type Server struct {
	config    Config
	processor Processor
	speech    *speech.Service
	registry  *prometheus.Registry
	renders   *semaphore.Weighted
	started   time.Time
}

// New creates a server. speechService may be nil to leave /speech unrouted.
func New(config Config, processor Processor, speechService *speech.Service) *Server {
	if config.MaxRenders <= 0 {
		config.MaxRenders = 1
	}
	return &Server{
		config:    config,
		processor: processor,
		speech:    speechService,
		registry:  metrics.NewRegistry(),
		renders:   semaphore.NewWeighted(int64(config.MaxRenders)),
		started:   time.Now(),
	}
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/video", s.handleVideo)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler(s.registry))
	if s.speech != nil && s.config.SpeechDir != "" {
		mux.Handle("/speech", speech.Handler(s.speech, s.config.SpeechDir))
	}
	return s.cors(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	log.Info("Serving video API", "addr", listener.Addr().String(), "origin", s.config.AllowedOrigin, "max_renders", s.config.MaxRenders)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Shutting down video API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case origin == "":
		case s.config.AllowedOrigin == "*":
			// credentials are never allowed for a wildcard origin
			w.Header().Set("Access-Control-Allow-Origin", "*")
			corsMethods(w)
		case origin == s.config.AllowedOrigin:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
			corsMethods(w)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func corsMethods(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "*")
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	question := strings.TrimSpace(formValue(r, "question"))
	if question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}

	logger := logging.For("video").With("question", internal.Truncate(question, 60))

	if err := s.renders.Acquire(r.Context(), 1); err != nil {
		logger.Warn("Client left while waiting for a render slot")
		return
	}
	defer s.renders.Release(1)

	start := time.Now()
	artifact, err := s.processor.ProcessSingle(r.Context(), question)
	if err != nil {
		logger.Error("Video generation failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to generate video"})
		return
	}

	f, err := os.Open(artifact.VideoPath)
	if err != nil {
		logger.Error("Rendered video unreadable", "path", artifact.VideoPath, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to generate video"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to generate video"})
		return
	}

	logger.Info("Streaming video", "path", artifact.VideoPath, "attempts", artifact.Attempts, "took", time.Since(start).Round(time.Millisecond))
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", downloadName(question)))
	http.ServeContent(w, r, filepath.Base(artifact.VideoPath), info.ModTime(), f)
}

// downloadName derives a filename for the video from the question
func downloadName(question string) string {
	name := strings.Trim(internal.SanitizeFilename(strings.ToLower(question)), "_")
	if runes := []rune(name); len(runes) > maxNameLen {
		name = strings.TrimRight(string(runes[:maxNameLen]), "_")
	}
	if name == "" {
		name = "clarity"
	}
	return name + ".mp4"
}

// formValue reads a field from a multipart or urlencoded form
func formValue(r *http.Request, key string) string {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFormSize); err != nil {
			return ""
		}
	}
	return r.FormValue(key)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: internal.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}
