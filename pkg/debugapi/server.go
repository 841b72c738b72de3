// Package debugapi exposes a read-only HTTP surface over a running
// replica's Status and committed state, for operator introspection. It
// never drives consensus: every handler only reads.
package debugapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quorumkv/raftkv/pkg/kvstore"
	"github.com/quorumkv/raftkv/pkg/raft"
)

// Server is the debug HTTP surface for one local replica.
type Server struct {
	replica *raft.Replica
	values  *kvstore.Store
	router  chi.Router
}

func New(replica *raft.Replica, values *kvstore.Store) *Server {
	s := &Server{replica: replica, values: values}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/status", s.handleStatus)
	r.Get("/log", s.handleLog)
	r.Get("/peers", s.handlePeers)
	s.router = r

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(w, req)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.replica.Status())
}

func (s *Server) handlePeers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.replica.Status().Peers)
}

// handleLog lists the committed keys in [start, end) from the query
// string (every key when both are empty), in sorted order, with their
// current values. It is a snapshot of the derived state machine, not the raw
// replicated log.
func (s *Server) handleLog(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	keys := s.values.Range(q.Get("start"), q.Get("end"))
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = s.values.Get(k)
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
