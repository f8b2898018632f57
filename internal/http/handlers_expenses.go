package http

import (
	"net/http"
	"time"

	"tally/internal/core"
	"tally/internal/store"
)

type expensePayload struct {
	UserID        string   `json:"user_id"`
	Item          string   `json:"item"`
	Vendor        string   `json:"vendor"`
	Price         float64  `json:"price"`
	DatePurchased string   `json:"date_purchased"`
	PaymentMethod string   `json:"payment_method"`
	Notes         string   `json:"notes"`
	NewCategories []string `json:"new_categories"`
}

type expenseResponse struct {
	ExpenseID     string             `json:"expense_id"`
	UserID        string             `json:"user_id"`
	Item          string             `json:"item"`
	Vendor        string             `json:"vendor"`
	Price         float64            `json:"price"`
	DatePurchased string             `json:"date_purchased"`
	PaymentMethod string             `json:"payment_method,omitempty"`
	Notes         string             `json:"notes,omitempty"`
	CreatedAt     string             `json:"created_at"`
	Categories    []categoryResponse `json:"categories"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	cats := make([]categoryResponse, 0, len(e.Categories))
	for _, c := range e.Categories {
		cats = append(cats, toCategoryResponse(c))
	}
	return expenseResponse{
		ExpenseID:     e.ID.String(),
		UserID:        e.UserID.String(),
		Item:          e.Item,
		Vendor:        e.Vendor,
		Price:         e.Price.Amount(),
		DatePurchased: formatDate(e.DatePurchased),
		PaymentMethod: e.PaymentMethod,
		Notes:         e.Notes,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
		Categories:    cats,
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in expensePayload
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	payload, err := expenseFromPayload(in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.store.CreateExpense(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAnalytics()
	writeJSON(w, http.StatusCreated, toExpenseResponse(e))
}

func expenseFromPayload(in expensePayload) (core.NewExpense, error) {
	userID, err := parseUUIDField(in.UserID, "user_id")
	if err != nil {
		return core.NewExpense{}, err
	}
	price, err := core.MoneyFromFloat(in.Price)
	if err != nil {
		return core.NewExpense{}, err
	}
	date, err := parseDate(in.DatePurchased)
	if err != nil {
		return core.NewExpense{}, err
	}
	return core.NewExpense{
		UserID:        userID,
		Item:          in.Item,
		Vendor:        in.Vendor,
		Price:         price,
		DatePurchased: date,
		PaymentMethod: in.PaymentMethod,
		Notes:         in.Notes,
		NewCategories: in.NewCategories,
	}, nil
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.store.GetExpense(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(e))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
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
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	expenses, err := s.store.ListExpenses(r.Context(), store.ExpenseFilter{
		UserID:     userID,
		CategoryID: categoryID,
		Skip:       skip,
		Limit:      limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	existing, err := s.store.GetExpense(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in expensePayload
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
	if in.DatePurchased != "" {
		date, err := parseDate(in.DatePurchased)
		if err != nil {
			writeError(w, r, err)
			return
		}
		existing.DatePurchased = date
	}
	if in.PaymentMethod != "" {
		existing.PaymentMethod = in.PaymentMethod
	}
	if in.Notes != "" {
		existing.Notes = in.Notes
	}

	e, err := s.store.UpdateExpense(r.Context(), existing)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// new_categories on update attach without detaching anything.
	for _, name := range in.NewCategories {
		c, err := s.store.EnsureCategory(r.Context(), name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.store.AttachCategory(r.Context(), e.ID, c.ID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if len(in.NewCategories) > 0 {
		if e, err = s.store.GetExpense(r.Context(), e.ID); err != nil {
			writeError(w, r, err)
			return
		}
	}

	s.invalidateAnalytics()
	writeJSON(w, http.StatusOK, toExpenseResponse(e))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteExpense(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAnalytics()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAttachCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cid, err := pathID(r, "cid")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.AttachCategory(r.Context(), id, cid); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAnalytics()
	e, err := s.store.GetExpense(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(e))
}

func (s *Server) handleDetachCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cid, err := pathID(r, "cid")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DetachCategory(r.Context(), id, cid); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAnalytics()
	w.WriteHeader(http.StatusNoContent)
}
