package http

import (
	"net/http"
	"time"

	"tally/internal/core"
)

type wishPayload struct {
	UserID      string  `json:"user_id"`
	Item        string  `json:"item"`
	Vendor      string  `json:"vendor"`
	Price       float64 `json:"price"`
	Priority    int     `json:"priority"`
	Status      string  `json:"status"`
	Notes       string  `json:"notes"`
	PlannedDate string  `json:"planned_date"`
}

type wishResponse struct {
	WishID      string  `json:"wish_id"`
	UserID      string  `json:"user_id"`
	Item        string  `json:"item"`
	Vendor      string  `json:"vendor,omitempty"`
	Price       float64 `json:"price"`
	Priority    int     `json:"priority"`
	Status      string  `json:"status"`
	Notes       string  `json:"notes,omitempty"`
	PlannedDate *string `json:"planned_date"`
	CreatedAt   string  `json:"created_at"`
}

func toWishResponse(w core.WishItem) wishResponse {
	return wishResponse{
		WishID:      w.ID.String(),
		UserID:      w.UserID.String(),
		Item:        w.Item,
		Vendor:      w.Vendor,
		Price:       w.Price.Amount(),
		Priority:    w.Priority,
		Status:      string(w.Status),
		Notes:       w.Notes,
		PlannedDate: formatDatePtr(w.PlannedDate),
		CreatedAt:   w.CreatedAt.Format(time.RFC3339),
	}
}

func wishFromPayload(in wishPayload) (core.WishItem, error) {
	userID, err := parseUUIDField(in.UserID, "user_id")
	if err != nil {
		return core.WishItem{}, err
	}
	price, err := core.MoneyFromFloat(in.Price)
	if err != nil {
		return core.WishItem{}, err
	}
	w := core.WishItem{
		UserID:   userID,
		Item:     in.Item,
		Vendor:   in.Vendor,
		Price:    price,
		Priority: in.Priority,
		Status:   core.WishStatus(in.Status),
		Notes:    in.Notes,
	}
	if in.Status == "" {
		w.Status = core.Wished
	}
	if in.PlannedDate != "" {
		d, err := parseDate(in.PlannedDate)
		if err != nil {
			return core.WishItem{}, err
		}
		w.PlannedDate = &d
	}
	return w, nil
}

func (s *Server) handleCreateWish(w http.ResponseWriter, r *http.Request) {
	var in wishPayload
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := wishFromPayload(in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.store.CreateWish(r.Context(), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWishResponse(created))
}

func (s *Server) handleGetWish(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.store.GetWish(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWishResponse(item))
}

func (s *Server) handleListWishes(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUUID(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.store.ListWishes(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]wishResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toWishResponse(item))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateWish(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	existing, err := s.store.GetWish(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in wishPayload
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Item != "" {
		existing.Item = in.Item
	}
	if in.Vendor != "" {
		existing.Vendor = in.Vendor
	}
	if in.Price != 0 {
		price, err := core.MoneyFromFloat(in.Price)
		if err != nil {
			writeError(w, r, err)
			return
		}
		existing.Price = price
	}
	if in.Priority != 0 {
		existing.Priority = in.Priority
	}
	if in.Status != "" {
		existing.Status = core.WishStatus(in.Status)
	}
	if in.Notes != "" {
		existing.Notes = in.Notes
	}
	if in.PlannedDate != "" {
		d, err := parseDate(in.PlannedDate)
		if err != nil {
			writeError(w, r, err)
			return
		}
		existing.PlannedDate = &d
	}

	updated, err := s.store.UpdateWish(r.Context(), existing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWishResponse(updated))
}

func (s *Server) handleDeleteWish(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteWish(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
