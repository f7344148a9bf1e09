package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/zarlcorp/civicid/internal/address"
	"github.com/zarlcorp/civicid/internal/artifact"
	"github.com/zarlcorp/civicid/internal/batch"
)

// Artifacts reads stored artifacts by address.
type Artifacts interface {
	Image(a address.Address) ([]byte, error)
	Metadata(a address.Address) ([]byte, error)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ProfileResponse is the body of GET /profile/{address}.
type ProfileResponse struct {
	Address  string `json:"address"`
	DID      string `json:"did"`
	Image    string `json:"image"`
	Metadata string `json:"metadata"`
}

// DIDResponse is the body of GET /did/{address}.
type DIDResponse struct {
	DID string `json:"did"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	a, ok := s.parseParam(w, r, "file", ".json")
	if !ok {
		return
	}

	data, err := s.artifacts.Metadata(a)
	if err != nil {
		s.writeStoreError(w, r, a, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	a, ok := s.parseParam(w, r, "file", ".png")
	if !ok {
		return
	}

	data, err := s.artifacts.Image(a)
	if err != nil {
		s.writeStoreError(w, r, a, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	a, ok := s.parseParam(w, r, "address", "")
	if !ok {
		return
	}

	// a profile only exists once the identity has been generated
	if _, err := s.artifacts.Metadata(a); err != nil {
		s.writeStoreError(w, r, a, err)
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{
		Address:  a.Hex(),
		DID:      a.DID(),
		Image:    s.urls.ImageURL(a),
		Metadata: s.urls.TokenURI(a),
	})
}

func (s *Server) handleDID(w http.ResponseWriter, r *http.Request) {
	a, ok := s.parseParam(w, r, "address", "")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, DIDResponse{DID: a.DID()})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	o := s.Generator.Process(r.Context(), chi.URLParam(r, "address"))
	if !o.OK() {
		status := http.StatusInternalServerError
		switch o.Reason() {
		case batch.ReasonInvalidAddress:
			status = http.StatusBadRequest
		case batch.ReasonCanceled:
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, o.Reason())
		return
	}

	writeJSON(w, http.StatusCreated, ProfileResponse{
		Address:  o.Address.Hex(),
		DID:      o.Address.DID(),
		Image:    s.urls.ImageURL(o.Address),
		Metadata: s.urls.TokenURI(o.Address),
	})
}

// parseParam reads an address from a route parameter, dropping ext when
// present. It writes a 400 and returns false when the address is invalid.
func (s *Server) parseParam(w http.ResponseWriter, r *http.Request, name, ext string) (address.Address, bool) {
	raw := chi.URLParam(r, name)
	if ext != "" {
		raw = strings.TrimSuffix(raw, ext)
	}

	a, err := address.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address")
		return address.Address{}, false
	}
	return a, true
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, a address.Address, err error) {
	if errors.Is(err, artifact.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	s.logger.Error("read artifact",
		"address", a.Hex(),
		"path", r.URL.Path,
		"request_id", GetRequestID(r.Context()),
		"err", err,
	)
	writeError(w, http.StatusInternalServerError, "internal_error")
}
