package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Wished    WishStatus = "wished"
	Scheduled WishStatus = "scheduled"
	Bought    WishStatus = "bought"
)

const (
	Yearly  TimeframeType = "yearly"
	Monthly TimeframeType = "monthly"
	Weekly  TimeframeType = "weekly"
	Custom  TimeframeType = "custom"
)

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

type (
	WishStatus    string
	TimeframeType string
	RunStatus     string

	Money struct {
		Cents int64
	}

	User struct {
		ID           uuid.UUID
		Username     string
		Email        string
		PasswordHash string
		Role         string
		CreatedAt    time.Time
		LastLogin    time.Time
	}

	Category struct {
		ID   uuid.UUID
		Name string
	}

	Expense struct {
		ID            uuid.UUID
		UserID        uuid.UUID
		Item          string
		Vendor        string
		Price         Money
		DatePurchased time.Time
		PaymentMethod string
		Notes         string
		CreatedAt     time.Time
		Categories    []Category
	}

	// NewExpense is the creation payload for an expense. Category names are
	// matched against existing categories before any new one is created.
	NewExpense struct {
		UserID        uuid.UUID
		Item          string
		Vendor        string
		Price         Money
		DatePurchased time.Time
		PaymentMethod string
		Notes         string
		NewCategories []string
	}

	WishItem struct {
		ID          uuid.UUID
		UserID      uuid.UUID
		Item        string
		Vendor      string
		Price       Money
		Priority    int
		Status      WishStatus
		Notes       string
		PlannedDate *time.Time
		CreatedAt   time.Time
	}

	// ImportRun records one bulk import, pending or finished. Payload holds
	// the raw tab-separated input until the run completes; it is what the
	// worker re-reads when a run is executed asynchronously.
	ImportRun struct {
		ID          uuid.UUID
		UserID      uuid.UUID
		Status      RunStatus
		Payload     string
		Month       time.Month
		Year        int
		Attempted   int
		Succeeded   int
		Failed      int
		Errors      string
		CreatedAt   time.Time
		CompletedAt *time.Time
	}

	Budget struct {
		ID             uuid.UUID
		UserID         uuid.UUID
		CategoryID     uuid.UUID
		MaxSpend       Money
		StartDate      time.Time
		EndDate        time.Time
		Timeframe      TimeframeType
		Interval       int // periods per window; 0 for custom timeframes
		RecurringStart *time.Time
	}
)

var (
	ErrInvalidAmount    = Invalid("invalid amount")
	ErrEmptyItem        = Invalid("item cannot be empty")
	ErrEmptyVendor      = Invalid("vendor cannot be empty")
	ErrEmptyCategory    = Invalid("category name cannot be empty")
	ErrInvalidDate      = Invalid("invalid date")
	ErrInvalidPriority  = Invalid("priority must be between 1 and 10")
	ErrInvalidStatus    = Invalid("invalid wishlist status")
	ErrInvalidTimeframe = Invalid("invalid timeframe type")
	ErrInvalidInterval  = Invalid("invalid timeframe interval")
	ErrInvalidDateRange = Invalid("end date must be after start date")
	ErrMissingUser      = Invalid("user id is required")
)

// MaxPriceCents caps prices at 999999.99 in the account currency.
const MaxPriceCents int64 = 99_999_999

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxPriceCents {
		return ErrInvalidAmount
	}
	return nil
}

func (s WishStatus) IsValid() bool {
	switch s {
	case Wished, Scheduled, Bought:
		return true
	}
	return false
}

func (t TimeframeType) IsValid() bool {
	switch t {
	case Yearly, Monthly, Weekly, Custom:
		return true
	}
	return false
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyCategory
	}
	if len(name) > 100 {
		return Invalid("category name too long (max 100 characters)")
	}
	return nil
}

func (e NewExpense) Validate() error {
	if e.UserID == uuid.Nil {
		return ErrMissingUser
	}
	if strings.TrimSpace(e.Item) == "" {
		return ErrEmptyItem
	}
	if len(e.Item) > 255 {
		return Invalid("item too long (max 255 characters)")
	}
	if strings.TrimSpace(e.Vendor) == "" {
		return ErrEmptyVendor
	}
	if len(e.Vendor) > 255 {
		return Invalid("vendor too long (max 255 characters)")
	}
	if err := e.Price.Validate(); err != nil {
		return err
	}
	if e.DatePurchased.IsZero() {
		return ErrInvalidDate
	}
	if len(e.Notes) > 1000 {
		return Invalid("notes too long (max 1000 characters)")
	}
	return nil
}

func (w WishItem) Validate() error {
	if w.UserID == uuid.Nil {
		return ErrMissingUser
	}
	if strings.TrimSpace(w.Item) == "" {
		return ErrEmptyItem
	}
	if len(w.Item) > 255 {
		return Invalid("item too long (max 255 characters)")
	}
	if err := w.Price.Validate(); err != nil {
		return err
	}
	if w.Priority < 1 || w.Priority > 10 {
		return ErrInvalidPriority
	}
	if !w.Status.IsValid() {
		return ErrInvalidStatus
	}
	if len(w.Notes) > 1000 {
		return Invalid("notes too long (max 1000 characters)")
	}
	return nil
}

func (b Budget) Validate() error {
	if b.UserID == uuid.Nil {
		return ErrMissingUser
	}
	if b.CategoryID == uuid.Nil {
		return Invalid("category id is required")
	}
	if err := b.MaxSpend.Validate(); err != nil {
		return err
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return ErrInvalidDate
	}
	if !b.EndDate.After(b.StartDate) {
		return ErrInvalidDateRange
	}
	if !b.Timeframe.IsValid() {
		return ErrInvalidTimeframe
	}
	if b.Timeframe == Custom {
		if b.Interval != 0 {
			return ErrInvalidInterval
		}
		return nil
	}
	if b.Interval < 1 || b.Interval > 100 {
		return ErrInvalidInterval
	}
	if b.RecurringStart == nil {
		return Invalid("recurring start date is required for recurring timeframes")
	}
	return nil
}

func (u User) Validate() error {
	if len(strings.TrimSpace(u.Username)) < 3 {
		return Invalid("username too short (min 3 characters)")
	}
	if len(u.Username) > 50 {
		return Invalid("username too long (max 50 characters)")
	}
	if !strings.Contains(u.Email, "@") {
		return Invalid("invalid email address")
	}
	switch u.Role {
	case "regular", "admin":
	default:
		return Invalid("role must be regular or admin")
	}
	return nil
}
