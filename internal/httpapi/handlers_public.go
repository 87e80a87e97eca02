package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"groceryDelivery/internal/orderstatus"
	"groceryDelivery/models"
	"groceryDelivery/repository"
)

// --- Auth ---

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, err := s.Auth.AdminLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleAgentLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, err := s.Auth.AgentLogin(r.Context(), req.Phone, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if !decode(w, r, &req) {
		return
	}
	code, err := s.Auth.RequestOTP(r.Context(), req.Phone)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := map[string]any{"sent": true}
	if s.ExposeOTP {
		resp["code"] = code
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
		Name  string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, err := s.Auth.VerifyOTP(r.Context(), req.Phone, req.Code, req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// --- Catalog ---

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	inStock, _ := strconv.ParseBool(q.Get("in_stock"))
	out, err := s.Catalog.List(r.Context(), repository.ProductFilter{
		Category:    q.Get("category"),
		Search:      q.Get("q"),
		InStockOnly: inStock,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := s.Catalog.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	out, err := s.Catalog.Categories(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Order status registry ---

func (s *Server) handleOrderStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orderstatus.GetAllStatuses())
}

func (s *Server) handleStatusFlow(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orderstatus.GetStatusFlow())
}

// handleOrderStatus always answers 200; unknown tags get the Unknown descriptor.
func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	tag := models.OrderStatus(chi.URLParam(r, "tag"))
	step, total := orderstatus.Progress(tag)
	writeJSON(w, http.StatusOK, map[string]any{
		"info":  orderstatus.GetStatusInfo(tag),
		"known": orderstatus.IsKnown(tag),
		"step":  step,
		"steps": total,
	})
}
