// Package memory is an in-memory store.Store used by tests and by local
// development when no database path is configured. Semantics mirror the
// SQLite store, cascading deletes included.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/store"
)

type Store struct {
	mu         sync.Mutex
	users      map[uuid.UUID]core.User
	categories map[uuid.UUID]core.Category
	expenses   map[uuid.UUID]core.Expense
	links      map[uuid.UUID]map[uuid.UUID]struct{} // expense id -> category ids
	wishes     map[uuid.UUID]core.WishItem
	budgets    map[uuid.UUID]core.Budget
	runs       map[uuid.UUID]core.ImportRun

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:      make(map[uuid.UUID]core.User),
		categories: make(map[uuid.UUID]core.Category),
		expenses:   make(map[uuid.UUID]core.Expense),
		links:      make(map[uuid.UUID]map[uuid.UUID]struct{}),
		wishes:     make(map[uuid.UUID]core.WishItem),
		budgets:    make(map[uuid.UUID]core.Budget),
		runs:       make(map[uuid.UUID]core.ImportRun),
		now:        time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// --- users ---

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = s.now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) ListUsers(context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.users[u.ID]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	u.CreatedAt = prev.CreatedAt
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) DeleteUser(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	for eid, e := range s.expenses {
		if e.UserID == id {
			delete(s.expenses, eid)
			delete(s.links, eid)
		}
	}
	for wid, w := range s.wishes {
		if w.UserID == id {
			delete(s.wishes, wid)
		}
	}
	for bid, b := range s.budgets {
		if b.UserID == id {
			delete(s.budgets, bid)
		}
	}
	for rid, r := range s.runs {
		if r.UserID == id {
			delete(s.runs, rid)
		}
	}
	return nil
}

// --- categories ---

func (s *Store) EnsureCategory(_ context.Context, name string) (core.Category, error) {
	c := core.Category{Name: name}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureCategoryLocked(name), nil
}

func (s *Store) ensureCategoryLocked(name string) core.Category {
	for _, c := range s.categories {
		if c.Name == name {
			return c
		}
	}
	c := core.Category{ID: uuid.New(), Name: name}
	s.categories[c.ID] = c
	return c
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.Name == c.Name {
			return core.Category{}, core.Invalid("category name already exists")
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) GetCategory(_ context.Context, id uuid.UUID) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCategories(context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; !ok {
		return core.Category{}, store.ErrNotFound
	}
	for id, existing := range s.categories {
		if id != c.ID && existing.Name == c.Name {
			return core.Category{}, core.Invalid("category name already exists")
		}
	}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.categories, id)
	for _, set := range s.links {
		delete(set, id)
	}
	for bid, b := range s.budgets {
		if b.CategoryID == id {
			delete(s.budgets, bid)
		}
	}
	return nil
}

// --- expenses ---

func (s *Store) CreateExpense(_ context.Context, e core.NewExpense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[e.UserID]; !ok {
		return core.Expense{}, store.ErrNotFound
	}
	exp := core.Expense{
		ID:            uuid.New(),
		UserID:        e.UserID,
		Item:          e.Item,
		Vendor:        e.Vendor,
		Price:         e.Price,
		DatePurchased: e.DatePurchased,
		PaymentMethod: e.PaymentMethod,
		Notes:         e.Notes,
		CreatedAt:     s.now().UTC(),
	}
	s.expenses[exp.ID] = exp
	set := make(map[uuid.UUID]struct{})
	for _, name := range e.NewCategories {
		c := s.ensureCategoryLocked(name)
		set[c.ID] = struct{}{}
	}
	s.links[exp.ID] = set
	return s.withCategoriesLocked(exp), nil
}

func (s *Store) withCategoriesLocked(e core.Expense) core.Expense {
	var cats []core.Category
	for cid := range s.links[e.ID] {
		if c, ok := s.categories[cid]; ok {
			cats = append(cats, c)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	e.Categories = cats
	return e
}

func (s *Store) GetExpense(_ context.Context, id uuid.UUID) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, store.ErrNotFound
	}
	return s.withCategoriesLocked(e), nil
}

func (s *Store) ListExpenses(_ context.Context, f store.ExpenseFilter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if f.UserID != nil && e.UserID != *f.UserID {
			continue
		}
		if f.CategoryID != nil {
			if _, ok := s.links[e.ID][*f.CategoryID]; !ok {
				continue
			}
		}
		out = append(out, s.withCategoriesLocked(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DatePurchased.Equal(out[j].DatePurchased) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].DatePurchased.After(out[j].DatePurchased)
	})
	return page(out, f.Skip, f.Limit), nil
}

func page[T any](in []T, skip, limit int) []T {
	if skip >= len(in) {
		return nil
	}
	in = in[skip:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	payload := core.NewExpense{
		UserID:        e.UserID,
		Item:          e.Item,
		Vendor:        e.Vendor,
		Price:         e.Price,
		DatePurchased: e.DatePurchased,
		PaymentMethod: e.PaymentMethod,
		Notes:         e.Notes,
	}
	if err := payload.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.expenses[e.ID]
	if !ok {
		return core.Expense{}, store.ErrNotFound
	}
	e.CreatedAt = prev.CreatedAt
	e.Categories = nil
	s.expenses[e.ID] = e
	return s.withCategoriesLocked(e), nil
}

func (s *Store) DeleteExpense(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	delete(s.links, id)
	return nil
}

func (s *Store) AttachCategory(_ context.Context, expenseID, categoryID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[expenseID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := s.categories[categoryID]; !ok {
		return store.ErrNotFound
	}
	if s.links[expenseID] == nil {
		s.links[expenseID] = make(map[uuid.UUID]struct{})
	}
	s.links[expenseID][categoryID] = struct{}{}
	return nil
}

func (s *Store) DetachCategory(_ context.Context, expenseID, categoryID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.links[expenseID]
	if !ok {
		return store.ErrNotFound
	}
	if _, linked := set[categoryID]; !linked {
		return store.ErrNotFound
	}
	delete(set, categoryID)
	return nil
}

// --- wishlist ---

func (s *Store) CreateWish(_ context.Context, w core.WishItem) (core.WishItem, error) {
	if err := w.Validate(); err != nil {
		return core.WishItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[w.UserID]; !ok {
		return core.WishItem{}, store.ErrNotFound
	}
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.CreatedAt = s.now().UTC()
	s.wishes[w.ID] = w
	return w, nil
}

func (s *Store) GetWish(_ context.Context, id uuid.UUID) (core.WishItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wishes[id]
	if !ok {
		return core.WishItem{}, store.ErrNotFound
	}
	return w, nil
}

func (s *Store) ListWishes(_ context.Context, userID *uuid.UUID) ([]core.WishItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.WishItem
	for _, w := range s.wishes {
		if userID != nil && w.UserID != *userID {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateWish(_ context.Context, w core.WishItem) (core.WishItem, error) {
	if err := w.Validate(); err != nil {
		return core.WishItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.wishes[w.ID]
	if !ok {
		return core.WishItem{}, store.ErrNotFound
	}
	w.CreatedAt = prev.CreatedAt
	s.wishes[w.ID] = w
	return w, nil
}

func (s *Store) DeleteWish(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wishes[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.wishes, id)
	return nil
}

// --- budgets ---

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[b.UserID]; !ok {
		return core.Budget{}, store.ErrNotFound
	}
	if _, ok := s.categories[b.CategoryID]; !ok {
		return core.Budget{}, store.ErrNotFound
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) GetBudget(_ context.Context, id uuid.UUID) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBudgets(_ context.Context, userID *uuid.UUID) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if userID != nil && b.UserID != *userID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[b.ID]; !ok {
		return core.Budget{}, store.ErrNotFound
	}
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) DeleteBudget(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.budgets, id)
	return nil
}

// --- analytics ---

func (s *Store) TotalSpend(_ context.Context, f store.TotalFilter) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, e := range s.expenses {
		if f.UserID != nil && e.UserID != *f.UserID {
			continue
		}
		if f.CategoryID != nil {
			if _, ok := s.links[e.ID][*f.CategoryID]; !ok {
				continue
			}
		}
		total += e.Price.Cents
	}
	return core.Money{Cents: total}, nil
}

func (s *Store) SpendByCategory(_ context.Context, userID *uuid.UUID) ([]store.CategoryTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCat := make(map[uuid.UUID]*store.CategoryTotal)
	for _, e := range s.expenses {
		if userID != nil && e.UserID != *userID {
			continue
		}
		for cid := range s.links[e.ID] {
			c, ok := s.categories[cid]
			if !ok {
				continue
			}
			t, ok := byCat[cid]
			if !ok {
				t = &store.CategoryTotal{Category: c}
				byCat[cid] = t
			}
			t.Total.Cents += e.Price.Cents
			t.Count++
		}
	}
	out := make([]store.CategoryTotal, 0, len(byCat))
	for _, t := range byCat {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total.Cents > out[j].Total.Cents })
	return out, nil
}

func (s *Store) SumExpensesInWindow(_ context.Context, userID, categoryID uuid.UUID, start, end time.Time) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, e := range s.expenses {
		if e.UserID != userID {
			continue
		}
		if _, ok := s.links[e.ID][categoryID]; !ok {
			continue
		}
		if e.DatePurchased.Before(start) || !e.DatePurchased.Before(end) {
			continue
		}
		total += e.Price.Cents
	}
	return core.Money{Cents: total}, nil
}

func (s *Store) SumScheduledWishesInWindow(_ context.Context, userID uuid.UUID, start, end time.Time) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, w := range s.wishes {
		if w.UserID != userID || w.Status != core.Scheduled || w.PlannedDate == nil {
			continue
		}
		if w.PlannedDate.Before(start) || !w.PlannedDate.Before(end) {
			continue
		}
		total += w.Price.Cents
	}
	return core.Money{Cents: total}, nil
}

// --- import runs ---

func (s *Store) CreateImportRun(_ context.Context, r core.ImportRun) (core.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[r.UserID]; !ok {
		return core.ImportRun{}, store.ErrNotFound
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = core.RunPending
	}
	r.CreatedAt = s.now().UTC()
	s.runs[r.ID] = r
	return r, nil
}

func (s *Store) GetImportRun(_ context.Context, id uuid.UUID) (core.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return core.ImportRun{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Store) UpdateImportRun(_ context.Context, r core.ImportRun) (core.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.runs[r.ID]
	if !ok {
		return core.ImportRun{}, store.ErrNotFound
	}
	r.CreatedAt = prev.CreatedAt
	s.runs[r.ID] = r
	return r, nil
}

func (s *Store) ListStalePendingRuns(_ context.Context, cutoff time.Time) ([]core.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ImportRun
	for _, r := range s.runs {
		if r.Status == core.RunPending && r.CreatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
