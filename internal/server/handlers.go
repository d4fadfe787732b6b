package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/dray-io/shardroute/internal/fragment"
	"github.com/dray-io/shardroute/internal/logging"
)

// HeaderJobID carries the fragment job id on encode responses and tags request
// logs when a client sends it.
const HeaderJobID = "X-Job-Id"

func (s *Server) withJobID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(HeaderJobID); id != "" {
			ctx = logging.WithJobIDCtx(ctx, id)
			ctx = logging.WithLoggerCtx(ctx, s.logger.WithJobID(id))
		} else {
			ctx = logging.WithLoggerCtx(ctx, s.logger)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.shutDown.Load() {
		s.writeJSON(w, http.StatusServiceUnavailable, Response{Status: StatusShuttingDown})
		return
	}
	s.writeJSON(w, http.StatusOK, Response{Status: StatusOK})
}

// handleDecode accepts a binary envelope and returns its summary.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	f, err := s.decoder.Decode(body)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, fragment.FailureReason(err), err)
		return
	}

	logging.FromCtx(r.Context()).WithJobID(f.JobID.String()).Debugf("fragment decoded", map[string]any{
		"bytes": len(body),
		"nodes": len(f.Routing.Nodes()),
	})
	s.writeJSON(w, http.StatusOK, fragment.Summarize(f))
}

// handleEncode accepts a YAML description and returns the binary envelope.
// The compression query parameter overrides the configured default.
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	compression := s.cfg.Compression
	if name := r.URL.Query().Get("compression"); name != "" {
		c, err := fragment.ParseCompression(name)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "compression", err)
			return
		}
		compression = c
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	f, err := fragment.LoadDescription(bytes.NewReader(body))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "description", err)
		return
	}

	data, err := fragment.NewEncoder(compression).WithMetrics(s.metrics).Encode(f)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "encode", err)
		return
	}

	w.Header().Set("Content-Type", contentTypeBinary)
	w.Header().Set(HeaderJobID, f.JobID.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.FromCtx(r.Context()).Warnf("failed to write fragment", map[string]any{"error": err.Error()})
	}
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	reader := io.Reader(r.Body)
	if s.cfg.MaxBodyBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", err)
			return nil, false
		}
		s.writeError(w, http.StatusBadRequest, "body", err)
		return nil, false
	}
	return body, true
}
