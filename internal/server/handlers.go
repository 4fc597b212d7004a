package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/shadowjar/internal/flavor"
	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/version"
)

var (
	ErrNoVersion   = errors.NotFoundError("no version recorded").Build()
	ErrNoScheduler = errors.DaemonError("build scheduler is not available").Build()
)

// VersionsResponse lists every recorded version of a flavor.
type VersionsResponse struct {
	ServerType string   `json:"server_type"`
	Version    []string `json:"version"`
}

// LatestResponse carries the newest recorded version of a flavor.
type LatestResponse struct {
	ServerType string `json:"server_type"`
	Version    string `json:"version"`
}

// FlavorsResponse lists supported flavors and those with catalog entries.
type FlavorsResponse struct {
	Supported []string `json:"supported"`
	Cataloged []string `json:"cataloged"`
}

// StatusResponse reports scheduler state and build metadata.
type StatusResponse struct {
	State string       `json:"state"`
	Build version.Info `json:"build"`
}

// TriggerResponse acknowledges an admin-triggered run.
type TriggerResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// serverType maps a path identifier to its catalog key. Unknown identifiers
// pass through unchanged and simply have no records.
func serverType(r *http.Request) string {
	id := chi.URLParam(r, "server_type")
	if f, err := flavor.Parse(id); err == nil {
		return string(f)
	}
	return id
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	key := serverType(r)
	versions, err := s.catalog.List(r.Context(), key)
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VersionsResponse{ServerType: key, Version: versions})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	key := serverType(r)
	v, ok, err := s.catalog.Latest(r.Context(), key)
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	if !ok {
		s.errs.WriteErrorResponse(w, r, ErrNoVersion.WithContext("server_type", key))
		return
	}
	writeJSON(w, http.StatusOK, LatestResponse{ServerType: key, Version: v})
}

func (s *Server) handleFlavors(w http.ResponseWriter, r *http.Request) {
	cataloged, err := s.catalog.Flavors(r.Context())
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	resp := FlavorsResponse{Cataloged: cataloged}
	for _, f := range flavor.All() {
		resp.Supported = append(resp.Supported, string(f))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state := "unknown"
	if s.scheduler != nil {
		state = "idle"
		if s.scheduler.Running() {
			state = "running"
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{State: state, Build: version.Current()})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.errs.WriteErrorResponse(w, r, ErrNoScheduler)
		return
	}
	if err := s.scheduler.TriggerNow(); err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, TriggerResponse{Status: "started"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
