package httpapi

import (
	"net/http"

	"groceryDelivery/models"
)

func (s *Server) handleAgentOrders(w http.ResponseWriter, r *http.Request) {
	out, err := s.Orders.ListForAgent(r.Context(), principal(r).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAgentAccept(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := s.Orders.Accept(r.Context(), principal(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleAgentReject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	rej, err := s.Orders.Reject(r.Context(), principal(r), id, req.Reason)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rej)
}

func (s *Server) handleAgentDeliver(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := s.Orders.Deliver(r.Context(), principal(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleAgentLocation(w http.ResponseWriter, r *http.Request) {
	var fix models.LocationFix
	if !decode(w, r, &fix) {
		return
	}
	updates, err := s.Tracking.ReportLocation(r.Context(), principal(r), fix)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updates)
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.AgentStatus `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	a, err := s.Agents.SetAvailability(r.Context(), principal(r).ID, req.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
