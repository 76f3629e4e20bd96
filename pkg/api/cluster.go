package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// handleClusterInfo reports Raft membership and runtime stats.
func (s *Server) handleClusterInfo(w http.ResponseWriter, r *http.Request) {
	if s.cluster == nil {
		respondError(w, http.StatusBadRequest, "HA mode is not enabled on this node")
		return
	}

	servers, err := s.cluster.Servers()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"servers": servers,
		"stats":   s.cluster.RaftStats(),
	})
}

// handleClusterJoin adds a control node as a Raft voter. The caller
// authenticates with a join token minted on the leader, so this route sits
// outside the admin gate.
func (s *Server) handleClusterJoin(w http.ResponseWriter, r *http.Request) {
	if s.cluster == nil {
		respondError(w, http.StatusBadRequest, "HA mode is not enabled on this node")
		return
	}

	var body struct {
		NodeID   string `json:"node_id"`
		BindAddr string `json:"bind_addr"`
		Token    string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Request body must be valid JSON")
		return
	}
	if body.NodeID == "" || body.BindAddr == "" || body.Token == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields: node_id, bind_addr, token")
		return
	}

	if err := s.cluster.JoinCluster(body.NodeID, body.BindAddr, body.Token); err != nil {
		// A follower cannot add voters; the joiner retries its other peers.
		if strings.Contains(err.Error(), "not the leader") {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusForbidden, err.Error())
		return
	}

	s.logger.Info().Str("node_id", body.NodeID).Str("bind_addr", body.BindAddr).Msg("Node joined cluster")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "joined",
		"node_id": body.NodeID,
	})
}

// handleClusterJoinToken mints a join token on the leader.
func (s *Server) handleClusterJoinToken(w http.ResponseWriter, r *http.Request) {
	if s.cluster == nil {
		respondError(w, http.StatusBadRequest, "HA mode is not enabled on this node")
		return
	}

	token, err := s.cluster.GenerateJoinToken()
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"join_token": token})
}

// handleClusterRemoveServer removes a server from the Raft configuration.
func (s *Server) handleClusterRemoveServer(w http.ResponseWriter, r *http.Request) {
	if s.cluster == nil {
		respondError(w, http.StatusBadRequest, "HA mode is not enabled on this node")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.cluster.RemoveServer(id); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "removed",
		"id":     id,
	})
}
