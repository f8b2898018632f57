package http

import (
	"net/http"
	"time"

	"tally/internal/core"
)

type budgetPayload struct {
	UserID         string  `json:"user_id"`
	CategoryID     string  `json:"category_id"`
	MaxSpend       float64 `json:"max_spend"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	TimeframeType  string  `json:"timeframe_type"`
	Interval       int     `json:"timeframe_interval"`
	RecurringStart string  `json:"recurring_start_date"`
}

// budgetResponse carries the derived spend fields for the budget's active
// window; they are computed on read, never stored.
type budgetResponse struct {
	BudgetID       string  `json:"budget_id"`
	UserID         string  `json:"user_id"`
	CategoryID     string  `json:"category_id"`
	MaxSpend       float64 `json:"max_spend"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	TimeframeType  string  `json:"timeframe_type"`
	Interval       int     `json:"timeframe_interval,omitempty"`
	RecurringStart *string `json:"recurring_start_date"`
	WindowStart    string  `json:"window_start"`
	WindowEnd      string  `json:"window_end"`
	CurrentSpend   float64 `json:"current_spend"`
	FutureSpend    float64 `json:"future_spend"`
	IsOverMax      bool    `json:"is_over_max"`
}

func toBudgetResponse(st core.BudgetStatus) budgetResponse {
	b := st.Budget
	return budgetResponse{
		BudgetID:       b.ID.String(),
		UserID:         b.UserID.String(),
		CategoryID:     b.CategoryID.String(),
		MaxSpend:       b.MaxSpend.Amount(),
		StartDate:      formatDate(b.StartDate),
		EndDate:        formatDate(b.EndDate),
		TimeframeType:  string(b.Timeframe),
		Interval:       b.Interval,
		RecurringStart: formatDatePtr(b.RecurringStart),
		WindowStart:    formatDate(st.WindowStart),
		WindowEnd:      formatDate(st.WindowEnd),
		CurrentSpend:   st.CurrentSpend.Amount(),
		FutureSpend:    st.FutureSpend.Amount(),
		IsOverMax:      st.OverMax,
	}
}

// deriveBudget aggregates the active window's spend from the store.
func (s *Server) deriveBudget(r *http.Request, b core.Budget) (core.BudgetStatus, error) {
	ref := time.Now().UTC()
	start, end := b.ActiveWindow(ref)
	current, err := s.store.SumExpensesInWindow(r.Context(), b.UserID, b.CategoryID, start, end)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	future, err := s.store.SumScheduledWishesInWindow(r.Context(), b.UserID, start, end)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	return b.Derive(ref, current, future), nil
}

func budgetFromPayload(in budgetPayload) (core.Budget, error) {
	userID, err := parseUUIDField(in.UserID, "user_id")
	if err != nil {
		return core.Budget{}, err
	}
	categoryID, err := parseUUIDField(in.CategoryID, "category_id")
	if err != nil {
		return core.Budget{}, err
	}
	maxSpend, err := core.MoneyFromFloat(in.MaxSpend)
	if err != nil {
		return core.Budget{}, err
	}
	startDate, err := parseDate(in.StartDate)
	if err != nil {
		return core.Budget{}, err
	}
	endDate, err := parseDate(in.EndDate)
	if err != nil {
		return core.Budget{}, err
	}
	b := core.Budget{
		UserID:     userID,
		CategoryID: categoryID,
		MaxSpend:   maxSpend,
		StartDate:  startDate,
		EndDate:    endDate,
		Timeframe:  core.TimeframeType(in.TimeframeType),
		Interval:   in.Interval,
	}
	if in.RecurringStart != "" {
		rs, err := parseDate(in.RecurringStart)
		if err != nil {
			return core.Budget{}, err
		}
		b.RecurringStart = &rs
	}
	return b, nil
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var in budgetPayload
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := budgetFromPayload(in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.store.CreateBudget(r.Context(), b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.deriveBudget(r, created)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetResponse(st))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.store.GetBudget(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.deriveBudget(r, b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(st))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUUID(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	budgets, err := s.store.ListBudgets(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		st, err := s.deriveBudget(r, b)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out = append(out, toBudgetResponse(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	existing, err := s.store.GetBudget(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in budgetPayload
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.CategoryID != "" {
		cid, err := parseUUIDField(in.CategoryID, "category_id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		existing.CategoryID = cid
	}
	if in.MaxSpend != 0 {
		maxSpend, err := core.MoneyFromFloat(in.MaxSpend)
		if err != nil {
			writeError(w, r, err)
			return
		}
		existing.MaxSpend = maxSpend
	}
	if in.StartDate != "" {
		d, err := parseDate(in.StartDate)
		if err != nil {
			writeError(w, r, err)
			return
		}
		existing.StartDate = d
	}
	if in.EndDate != "" {
		d, err := parseDate(in.EndDate)
		if err != nil {
			writeError(w, r, err)
			return
		}
		existing.EndDate = d
	}
	if in.TimeframeType != "" {
		existing.Timeframe = core.TimeframeType(in.TimeframeType)
	}
	if in.Interval != 0 {
		existing.Interval = in.Interval
	}
	if in.RecurringStart != "" {
		rs, err := parseDate(in.RecurringStart)
		if err != nil {
			writeError(w, r, err)
			return
		}
		existing.RecurringStart = &rs
	}

	updated, err := s.store.UpdateBudget(r.Context(), existing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.deriveBudget(r, updated)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(st))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteBudget(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
