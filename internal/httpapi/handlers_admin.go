package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"groceryDelivery/internal/service"
	"groceryDelivery/models"
	"groceryDelivery/repository"
)

// --- Products ---

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p models.Product
	if !decode(w, r, &p) {
		return
	}
	created, err := s.Catalog.Create(r.Context(), &p)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var p models.Product
	if !decode(w, r, &p) {
		return
	}
	p.ID = id
	updated, err := s.Catalog.Update(r.Context(), &p)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.Catalog.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- People ---

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	out, err := s.Customers.List(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if out == nil {
		out = []models.Customer{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	onlyAvailable, _ := strconv.ParseBool(r.URL.Query().Get("available"))
	out, err := s.Agents.List(r.Context(), onlyAvailable)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterAgentInput
	if !decode(w, r, &in) {
		return
	}
	a, err := s.Agents.Register(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// --- Orders ---

// handleAdminOrders supports ?status=a,b&customer_id=&agent_id=&page_size=&after_id=.
// The next_after_id in the response is the cursor for the following page.
func (s *Server) handleAdminOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := repository.ListOrdersAdminParams{
		PageSize: queryInt(r, "page_size", 20),
		AfterID:  int64(queryInt(r, "after_id", 0)),
	}
	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			if st = strings.TrimSpace(st); st != "" {
				params.Statuses = append(params.Statuses, models.OrderStatus(st))
			}
		}
	}
	if v, err := strconv.ParseInt(q.Get("customer_id"), 10, 64); err == nil {
		params.CustomerID = &v
	}
	if v, err := strconv.ParseInt(q.Get("agent_id"), 10, 64); err == nil {
		params.AgentID = &v
	}
	out, err := s.Orders.ListAdmin(r.Context(), params)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var next int64
	if len(out) > 0 {
		next = out[len(out)-1].ID
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out, "next_after_id": next})
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	o, err := s.Orders.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleAssignAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		AgentID int64 `json:"agent_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	o, err := s.Orders.AssignAgent(r.Context(), id, req.AgentID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// --- Dashboard ---

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Orders.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	out, err := s.Notifications.List(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if out == nil {
		out = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRejections(w http.ResponseWriter, r *http.Request) {
	var (
		out []models.OrderRejection
		err error
	)
	if orderID, perr := strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64); perr == nil {
		out, err = s.Rejections.ListByOrder(r.Context(), orderID)
	} else {
		out, err = s.Rejections.ListRecent(r.Context(), queryInt(r, "limit", 50))
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if out == nil {
		out = []models.OrderRejection{}
	}
	writeJSON(w, http.StatusOK, out)
}
