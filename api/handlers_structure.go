package api

import (
	"encoding/json"
	"net/http"

	"authgate/core/structure"
)

// structureService bundles the snapshot client with the cycle validator. Both
// handlers fetch a fresh snapshot per call; validating against anything stale
// is how trees acquire loops.
type structureService struct {
	client    *structure.Client
	validator *structure.Validator
}

type reparentRequest struct {
	NodeID        string `json:"node_id"`
	NewParentName string `json:"new_parent_name"`
}

type childrenRequest struct {
	ParentName string   `json:"parent_name"`
	ChildIDs   []string `json:"child_ids"`
}

type validationResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleStructureReparent(w http.ResponseWriter, r *http.Request) {
	var req reparentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NodeID == "" {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	all, moving, ok := s.fetchStructure(w, r, req.NodeID)
	if !ok {
		return
	}
	if err := s.structure.validator.CheckReparent(moving, req.NewParentName, all); err != nil {
		s.writeStructureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validationResponse{OK: true})
}

func (s *Server) handleStructureChildren(w http.ResponseWriter, r *http.Request) {
	var req childrenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParentName == "" {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	all, err := s.structure.client.FetchAll(r.Context(), s.bearerToken(r))
	if err != nil {
		s.logger.Errorf("structure fetch failed: %v", err)
		writeError(w, http.StatusBadGateway, "structure backend unavailable")
		return
	}
	if err := s.structure.validator.CheckChildrenAssignment(req.ParentName, req.ChildIDs, all); err != nil {
		s.writeStructureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validationResponse{OK: true})
}

// fetchStructure pulls the snapshot and locates the moving node in it.
func (s *Server) fetchStructure(w http.ResponseWriter, r *http.Request, nodeID string) ([]structure.Node, structure.Node, bool) {
	all, err := s.structure.client.FetchAll(r.Context(), s.bearerToken(r))
	if err != nil {
		s.logger.Errorf("structure fetch failed: %v", err)
		writeError(w, http.StatusBadGateway, "structure backend unavailable")
		return nil, structure.Node{}, false
	}
	for _, n := range all {
		if n.ID == nodeID {
			return all, n, true
		}
	}
	writeError(w, http.StatusNotFound, "unknown node")
	return nil, structure.Node{}, false
}

func (s *Server) writeStructureError(w http.ResponseWriter, err error) {
	if structure.IsCycle(err) {
		writeJSON(w, http.StatusConflict, validationResponse{OK: false, Reason: err.Error()})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// bearerToken hands the caller's own upstream token through to the structure
// backend. The gateway holds no structure credentials of its own.
func (s *Server) bearerToken(r *http.Request) string {
	sess, err := s.sessions.Get(r.Context(), s.sessionID(r))
	if err != nil || sess == nil {
		return ""
	}
	return sess.Token
}
