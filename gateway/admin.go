package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lcx/gatesvr/log"
	"github.com/lcx/gatesvr/metrics"
)

// AdminHandler serves metrics, health and debug endpoints.
func (s *Server) AdminHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/debug", func(r chi.Router) {
		r.Get("/logicservers", s.handleLogicServers)
		r.Get("/clients", s.handleClients)
		r.Post("/clients/{runtimeID}/kick", s.handleKick)
	})
	return r
}

type logicServersResp struct {
	Primary []int64 `json:"primary"`
	Slave   []int64 `json:"slave"`
}

type clientsResp struct {
	Count int `json:"count"`
}

func (s *Server) handleLogicServers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, logicServersResp{Primary: s.registry.PrimaryIDs(), Slave: s.registry.SlaveIDs()})
}

func (s *Server) handleClients(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, clientsResp{Count: s.clients.Count()})
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "runtimeID"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "bad runtime id", http.StatusBadRequest)
		return
	}
	if _, ok := s.clients.Find(id); !ok {
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}
	s.clients.KickByRuntimeID(id)
	log.Info().Int64("runtimeID", id).Str("remote", r.RemoteAddr).Msg("client kicked from admin")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("admin response encode")
	}
}
