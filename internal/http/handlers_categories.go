package http

import (
	"net/http"

	"tally/internal/core"
)

type categoryPayload struct {
	Name string `json:"category_name"`
}

type categoryResponse struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"category_name"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{CategoryID: c.ID.String(), Name: c.Name}
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryPayload
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	// Creation from the API follows the same match-by-name rule as imports:
	// posting an existing name returns the existing record.
	c, err := s.store.EnsureCategory(r.Context(), in.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(c))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.store.GetCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(c))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in categoryPayload
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.store.UpdateCategory(r.Context(), core.Category{ID: id, Name: in.Name})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAnalytics()
	writeJSON(w, http.StatusOK, toCategoryResponse(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAnalytics()
	w.WriteHeader(http.StatusNoContent)
}
