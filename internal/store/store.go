// Package store defines the persistence ports the HTTP layer, the import
// pipeline and the worker depend on. The SQLite implementation lives in
// internal/storage; internal/store/memory provides an in-memory one for tests
// and local development.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("not found")

// ExpenseFilter narrows expense listings. Nil pointer fields are unset.
// Skip/Limit page the result after filtering; Limit 0 means no limit.
type ExpenseFilter struct {
	UserID     *uuid.UUID
	CategoryID *uuid.UUID
	Skip       int
	Limit      int
}

// TotalFilter narrows spend aggregation.
type TotalFilter struct {
	UserID     *uuid.UUID
	CategoryID *uuid.UUID
}

// CategoryTotal is one row of the by-category breakdown.
type CategoryTotal struct {
	Category core.Category
	Total    core.Money
	Count    int
}

type UserStore interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)
	UpdateUser(ctx context.Context, u core.User) (core.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type CategoryStore interface {
	// EnsureCategory matches by exact name first and creates only when the
	// name is absent. It is the single path through which categories come
	// into existence from expense payloads and imports.
	EnsureCategory(ctx context.Context, name string) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type ExpenseStore interface {
	// CreateExpense validates the payload, ensures the named categories and
	// attaches them, all atomically.
	CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error)
	GetExpense(ctx context.Context, id uuid.UUID) (core.Expense, error)
	ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id uuid.UUID) error
	AttachCategory(ctx context.Context, expenseID, categoryID uuid.UUID) error
	DetachCategory(ctx context.Context, expenseID, categoryID uuid.UUID) error
}

type WishlistStore interface {
	CreateWish(ctx context.Context, w core.WishItem) (core.WishItem, error)
	GetWish(ctx context.Context, id uuid.UUID) (core.WishItem, error)
	ListWishes(ctx context.Context, userID *uuid.UUID) ([]core.WishItem, error)
	UpdateWish(ctx context.Context, w core.WishItem) (core.WishItem, error)
	DeleteWish(ctx context.Context, id uuid.UUID) error
}

type BudgetStore interface {
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, id uuid.UUID) (core.Budget, error)
	ListBudgets(ctx context.Context, userID *uuid.UUID) ([]core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	DeleteBudget(ctx context.Context, id uuid.UUID) error
}

// AnalyticsStore aggregates spend. The window queries back the derived budget
// fields; the totals back the analytics endpoints.
type AnalyticsStore interface {
	TotalSpend(ctx context.Context, f TotalFilter) (core.Money, error)
	SpendByCategory(ctx context.Context, userID *uuid.UUID) ([]CategoryTotal, error)
	// SumExpensesInWindow totals a user's expenses in the category dated
	// inside [start, end).
	SumExpensesInWindow(ctx context.Context, userID, categoryID uuid.UUID, start, end time.Time) (core.Money, error)
	// SumScheduledWishesInWindow totals a user's scheduled wishlist items
	// planned inside [start, end).
	SumScheduledWishesInWindow(ctx context.Context, userID uuid.UUID, start, end time.Time) (core.Money, error)
}

type ImportRunStore interface {
	CreateImportRun(ctx context.Context, r core.ImportRun) (core.ImportRun, error)
	GetImportRun(ctx context.Context, id uuid.UUID) (core.ImportRun, error)
	UpdateImportRun(ctx context.Context, r core.ImportRun) (core.ImportRun, error)
	// ListStalePendingRuns returns runs still pending that were created
	// before cutoff, oldest first. The worker's backup sweep re-runs them.
	ListStalePendingRuns(ctx context.Context, cutoff time.Time) ([]core.ImportRun, error)
}

// Store is the full persistence surface.
type Store interface {
	UserStore
	CategoryStore
	ExpenseStore
	WishlistStore
	BudgetStore
	AnalyticsStore
	ImportRunStore

	Ping(ctx context.Context) error
	Close() error
}
