package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ConfineDir resolves dir against root and rejects directories outside it.
// Relative dirs are taken from root; an empty root means the working directory.
func ConfineDir(root, dir string) (string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve speech root: %w", err)
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(root, dir)
	if err != nil || (rel != "." && !filepath.IsLocal(rel)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, dir)
	}
	return dir, nil
}

// Handler serves Service.Generate as a JSON POST endpoint. Audio is only
// written below root.
func Handler(service *Service, root string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}

		var req Request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
			return
		}
		if req.CacheDir == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "cache_dir is required"})
			return
		}
		cacheDir, err := ConfineDir(root, req.CacheDir)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		req.CacheDir = cacheDir

		result, err := service.Generate(r.Context(), req)
		if err != nil {
			status := http.StatusInternalServerError
			var synthErr *SynthesisError
			switch {
			case errors.Is(err, ErrEmptyText), errors.Is(err, ErrInvalidPath):
				status = http.StatusBadRequest
			case errors.As(err, &synthErr):
				status = http.StatusBadGateway
			}
			writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, result)
	})
}

// Sidecar serves a speech Handler on a loopback port for the duration of a render
type Sidecar struct {
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// StartSidecar listens on 127.0.0.1 on a free port and serves /speech,
// writing audio below root
func StartSidecar(service *Service, root string) (*Sidecar, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start speech sidecar: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/speech", Handler(service, root))

	s := &Sidecar{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Speech sidecar stopped", "err", err)
		}
	}()

	log.Debug("Speech sidecar listening", "url", s.URL())
	return s, nil
}

// URL returns the base URL of the sidecar
func (s *Sidecar) URL() string {
	return "http://" + s.listener.Addr().String()
}

// Close shuts the sidecar down
func (s *Sidecar) Close(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}
