package httpapi

import (
	"net/http"

	"groceryDelivery/internal/auth"
	"groceryDelivery/internal/service"
)

type cartResponse struct {
	Items any     `json:"items"`
	Total float64 `json:"total"`
}

type cartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func principal(r *http.Request) *auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	items, err := s.Cart.Get(r.Context(), principal(r).Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Items: items, Total: service.CartTotal(items)})
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.Cart.Clear(r.Context(), principal(r).Name); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !decode(w, r, &req) {
		return
	}
	items, err := s.Cart.AddItem(r.Context(), principal(r).Name, req.ProductID, req.Quantity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Items: items, Total: service.CartTotal(items)})
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !decode(w, r, &req) {
		return
	}
	items, err := s.Cart.UpdateItem(r.Context(), principal(r).Name, req.ProductID, req.Quantity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Items: items, Total: service.CartTotal(items)})
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	items, err := s.Cart.RemoveItem(r.Context(), principal(r).Name, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Items: items, Total: service.CartTotal(items)})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var in service.PlaceOrderInput
	if !decode(w, r, &in) {
		return
	}
	o, err := s.Orders.PlaceOrder(r.Context(), principal(r), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleListMyOrders(w http.ResponseWriter, r *http.Request) {
	out, err := s.Orders.ListForCustomer(r.Context(), principal(r).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := s.Orders.Cancel(r.Context(), principal(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// --- Shared by every kind, scoped by the service ---

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := s.Orders.Get(r.Context(), principal(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// handleTrack answers null when there is not enough data for an estimate yet.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u, err := s.Tracking.Track(r.Context(), principal(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleTrackingHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	recs, err := s.Tracking.Trail(r.Context(), principal(r), id, queryInt(r, "limit", 0))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
