package http

import (
	"net/http"

	"tally/internal/store"
)

type totalResponse struct {
	Total float64 `json:"total"`
}

type categoryTotalResponse struct {
	CategoryID string  `json:"category_id"`
	Name       string  `json:"category_name"`
	Total      float64 `json:"total"`
	Count      int     `json:"count"`
}

func (s *Server) handleTotalSpend(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUUID(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	categoryID, err := queryUUID(r, "category_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	total, err := s.store.TotalSpend(r.Context(), store.TotalFilter{
		UserID:     userID,
		CategoryID: categoryID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totalResponse{Total: total.Amount()})
}

func (s *Server) handleSpendByCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUUID(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	cacheKey := "all"
	if userID != nil {
		cacheKey = userID.String()
	}

	totals, hit := s.byCatCache.Get(cacheKey)
	if !hit {
		totals, err = s.store.SpendByCategory(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.byCatCache.Set(cacheKey, totals)
	}

	out := make([]categoryTotalResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, categoryTotalResponse{
			CategoryID: t.Category.ID.String(),
			Name:       t.Category.Name,
			Total:      t.Total.Amount(),
			Count:      t.Count,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
