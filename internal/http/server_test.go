package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tally/internal/cache"
	"tally/internal/services"
	"tally/internal/store"
	"tally/internal/store/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	byCat := cache.NewLRU[[]store.CategoryTotal](16, time.Minute)
	imports := services.NewImportService(st, nil, nil, 0)
	return NewServer(":0", st, imports, byCat), st
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func createTestUser(t *testing.T, srv *Server) string {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/users", map[string]string{
		"username": "frugal",
		"email":    "frugal@example.com",
		"password": "hunter22",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create user: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var u userResponse
	decodeInto(t, rr, &u)
	return u.UserID
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestUserLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/users", map[string]string{
		"username": "ab", // too short
		"email":    "a@example.com",
		"password": "pw",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("short username: status=%d body=%s", rr.Code, rr.Body.String())
	}

	id := createTestUser(t, srv)

	rr = doJSON(t, srv, http.MethodGet, "/users/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get user: status=%d", rr.Code)
	}
	var u userResponse
	decodeInto(t, rr, &u)
	if u.Username != "frugal" || u.Role != "regular" {
		t.Fatalf("unexpected user %+v", u)
	}

	rr = doJSON(t, srv, http.MethodPut, "/users/"+id, map[string]string{"email": "new@example.com"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update user: status=%d body=%s", rr.Code, rr.Body.String())
	}
	decodeInto(t, rr, &u)
	if u.Email != "new@example.com" || u.Username != "frugal" {
		t.Fatalf("partial update lost fields: %+v", u)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/users/"+id, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete user: status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/users/"+id, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("deleted user still found: status=%d", rr.Code)
	}
}

func TestCreateExpenseWithNewCategories(t *testing.T) {
	srv, _ := newTestServer(t)
	userID := createTestUser(t, srv)

	rr := doJSON(t, srv, http.MethodPost, "/expenses", map[string]any{
		"user_id":        userID,
		"item":           "Groceries",
		"vendor":         "Market",
		"price":          42.50,
		"date_purchased": "2024-03-10",
		"new_categories": []string{"Food", "Household"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create expense: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var e expenseResponse
	decodeInto(t, rr, &e)
	if e.Price != 42.50 {
		t.Fatalf("price = %v, want 42.50", e.Price)
	}
	if len(e.Categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(e.Categories))
	}

	// Same names again must reuse the existing categories.
	rr = doJSON(t, srv, http.MethodPost, "/expenses", map[string]any{
		"user_id":        userID,
		"item":           "Soap",
		"vendor":         "Market",
		"price":          3.00,
		"date_purchased": "2024-03-11",
		"new_categories": []string{"Food"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("second expense: status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, srv, http.MethodGet, "/categories", nil)
	var cats []categoryResponse
	decodeInto(t, rr, &cats)
	if len(cats) != 2 {
		t.Fatalf("categories in store = %d, want 2", len(cats))
	}
}

func TestCreateExpenseRejectsZeroPrice(t *testing.T) {
	srv, _ := newTestServer(t)
	userID := createTestUser(t, srv)

	rr := doJSON(t, srv, http.MethodPost, "/expenses", map[string]any{
		"user_id":        userID,
		"item":           "Freebie",
		"vendor":         "Nowhere",
		"price":          0,
		"date_purchased": "2024-03-10",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zero price: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var body errorBody
	decodeInto(t, rr, &body)
	if body.Detail == "" {
		t.Fatal("expected error detail")
	}
}

func TestExpenseNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doJSON(t, srv, http.MethodGet, "/expenses/2b8a9cbb-31c3-4f2b-8b5e-000000000000", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rr.Code)
	}
}

func TestAttachDetachCategory(t *testing.T) {
	srv, _ := newTestServer(t)
	userID := createTestUser(t, srv)

	rr := doJSON(t, srv, http.MethodPost, "/categories", map[string]string{"category_name": "Travel"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create category: status=%d", rr.Code)
	}
	var cat categoryResponse
	decodeInto(t, rr, &cat)

	rr = doJSON(t, srv, http.MethodPost, "/expenses", map[string]any{
		"user_id":        userID,
		"item":           "Ticket",
		"vendor":         "Rail",
		"price":          19.90,
		"date_purchased": "2024-04-01",
	})
	var e expenseResponse
	decodeInto(t, rr, &e)

	rr = doJSON(t, srv, http.MethodPost, "/expenses/"+e.ExpenseID+"/categories/"+cat.CategoryID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("attach: status=%d body=%s", rr.Code, rr.Body.String())
	}
	decodeInto(t, rr, &e)
	if len(e.Categories) != 1 || e.Categories[0].Name != "Travel" {
		t.Fatalf("attach result %+v", e.Categories)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/expenses/"+e.ExpenseID+"/categories/"+cat.CategoryID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("detach: status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodDelete, "/expenses/"+e.ExpenseID+"/categories/"+cat.CategoryID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("detach twice: status=%d, want 404", rr.Code)
	}
}

func TestCreateCategoryReturnsExisting(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/categories", map[string]string{"category_name": "Food"})
	var first categoryResponse
	decodeInto(t, rr, &first)

	rr = doJSON(t, srv, http.MethodPost, "/categories", map[string]string{"category_name": "Food"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("repost category: status=%d", rr.Code)
	}
	var second categoryResponse
	decodeInto(t, rr, &second)
	if first.CategoryID != second.CategoryID {
		t.Fatal("posting an existing name created a duplicate category")
	}
}

func TestAnalyticsByCategoryCaching(t *testing.T) {
	srv, _ := newTestServer(t)
	userID := createTestUser(t, srv)

	seed := func(item string, price float64, cats ...string) {
		t.Helper()
		rr := doJSON(t, srv, http.MethodPost, "/expenses", map[string]any{
			"user_id":        userID,
			"item":           item,
			"vendor":         "Shop",
			"price":          price,
			"date_purchased": "2024-05-01",
			"new_categories": cats,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("seed %s: status=%d body=%s", item, rr.Code, rr.Body.String())
		}
	}
	seed("Bread", 2.50, "Food")
	seed("Milk", 1.50, "Food")
	seed("Book", 10.00, "Leisure")

	rr := doJSON(t, srv, http.MethodGet, "/analytics/by-category", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("by-category: status=%d body=%s", rr.Code, rr.Body.String())
	}
	var totals []categoryTotalResponse
	decodeInto(t, rr, &totals)
	if len(totals) != 2 {
		t.Fatalf("totals = %d, want 2", len(totals))
	}
	if totals[0].Name != "Leisure" || totals[0].Total != 10.00 {
		t.Fatalf("top category %+v", totals[0])
	}
	if totals[1].Name != "Food" || totals[1].Total != 4.00 || totals[1].Count != 2 {
		t.Fatalf("food totals %+v", totals[1])
	}

	// A new expense purges the cache; the next read must see it.
	seed("Cheese", 6.00, "Food")
	rr = doJSON(t, srv, http.MethodGet, "/analytics/by-category", nil)
	decodeInto(t, rr, &totals)
	var food *categoryTotalResponse
	for i := range totals {
		if totals[i].Name == "Food" {
			food = &totals[i]
		}
	}
	if food == nil || food.Total != 10.00 || food.Count != 3 {
		t.Fatalf("post-invalidation food totals %+v", food)
	}

	rr = doJSON(t, srv, http.MethodGet, "/analytics/total?user_id="+userID, nil)
	var total totalResponse
	decodeInto(t, rr, &total)
	if total.Total != 20.00 {
		t.Fatalf("total = %v, want 20.00", total.Total)
	}
}

func TestImportEndpointSynchronous(t *testing.T) {
	srv, _ := newTestServer(t)
	userID := createTestUser(t, srv)

	payload := "Item\tPrice\tCategory\tVendor\tDay\n" +
		"Coffee\t3,50\tFood\tBar\t5\n" +
		"Notebook\t2.00\tOffice\tStore\t6\n"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "expenses.tsv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write([]byte(payload)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	url := fmt.Sprintf("/imports?user_id=%s&month=2&year=2024", userID)
	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("import: status=%d body=%s", rr.Code, rr.Body.String())
	}

	var run importRunResponse
	decodeInto(t, rr, &run)
	if run.Status != "completed" || run.Attempted != 2 || run.Succeeded != 2 || run.Failed != 0 {
		t.Fatalf("run %+v", run)
	}

	rr = doJSON(t, srv, http.MethodGet, "/imports/"+run.RunID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get run: status=%d", rr.Code)
	}

	// month=2 is March in the client's zero-based convention.
	rr = doJSON(t, srv, http.MethodGet, "/expenses?user_id="+userID, nil)
	var list []expenseResponse
	decodeInto(t, rr, &list)
	if len(list) != 2 {
		t.Fatalf("expenses = %d, want 2", len(list))
	}
	for _, e := range list {
		if !strings.HasPrefix(e.DatePurchased, "2024-03-") {
			t.Fatalf("date %s not in March 2024", e.DatePurchased)
		}
	}
}

func TestImportEndpointRawBodyAndBadHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	userID := createTestUser(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/imports?user_id="+userID,
		strings.NewReader("Foo\tBar\nx\ty\n"))
	req.Header.Set("Content-Type", "text/tab-separated-values")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unusable header: status=%d body=%s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/imports?user_id="+userID+"&month=12", strings.NewReader("x"))
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("month out of range: status=%d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/imports", strings.NewReader("x"))
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing user_id: status=%d", rr.Code)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	srv, _ := newTestServer(t)

	var last int
	for i := 0; i < 70; i++ {
		rr := doJSON(t, srv, http.MethodPost, "/categories", map[string]string{
			"category_name": fmt.Sprintf("cat-%d", i),
		})
		last = rr.Code
		if last == http.StatusTooManyRequests {
			break
		}
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("never rate limited, last status=%d", last)
	}

	// Reads stay unthrottled.
	rr := doJSON(t, srv, http.MethodGet, "/categories", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("read after limit: status=%d", rr.Code)
	}
}

func TestUnknownJSONFieldRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doJSON(t, srv, http.MethodPost, "/users", map[string]string{
		"username": "frugal",
		"email":    "frugal@example.com",
		"password": "hunter22",
		"surprise": "field",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown field: status=%d body=%s", rr.Code, rr.Body.String())
	}
}
