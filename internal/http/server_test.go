package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"tresor/internal/alerts"
	"tresor/internal/auth"
	"tresor/internal/core"
	"tresor/internal/finance/memory"
	"tresor/internal/receipt"
	"tresor/internal/services"
)

type fakeExtractor struct {
	detection receipt.Detection
	err       error
}

func (f fakeExtractor) ProcessTicket(ctx context.Context, filename, contentType string, image io.Reader) (receipt.Detection, error) {
	return f.detection, f.err
}

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, event alerts.Event) error {
	return nil
}

func newTestServer(t *testing.T, extractor services.Extractor) *Server {
	t.Helper()

	store := memory.New()
	authSvc := auth.NewService(auth.Config{
		Users:      store,
		JWTSecret:  "0123456789abcdef0123456789abcdef",
		Expiration: time.Hour,
	})
	txSvc := services.NewTransactionService(store, nil, nil)
	budgetSvc := services.NewBudgetService(store, store)
	alertSvc := services.NewAlertService(store, store, store, nopNotifier{})
	receiptSvc := services.NewReceiptService(extractor, store, txSvc)

	return NewServer(":0", Deps{
		Auth:         authSvc,
		Transactions: txSvc,
		Budgets:      budgetSvc,
		Alerts:       alertSvc,
		Receipts:     receiptSvc,
		Snapshots: func(ctx context.Context, userID, month string) (services.Snapshot, error) {
			mk, err := core.ParseMonthKey(month)
			if err != nil {
				return services.Snapshot{}, err
			}
			return services.LoadSnapshot(ctx, store, userID, mk)
		},
	})
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func register(t *testing.T, srv *Server, username string) string {
	t.Helper()

	rr := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"password": "secret-password",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp sessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("register returned empty token")
	}
	return resp.Token
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, fakeExtractor{})
	defer srv.Shutdown(context.Background())

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t, fakeExtractor{})
	defer srv.Shutdown(context.Background())

	token := register(t, srv, "léa")

	t.Run("duplicate username conflicts", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "léa",
			"password": "secret-password",
		})
		if rr.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rr.Code)
		}
	})

	t.Run("login succeeds", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "léa",
			"password": "secret-password",
		})
		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, body %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "léa",
			"password": "wrong-password",
		})
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rr.Code)
		}
	})

	t.Run("protected route requires token", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/api/transactions", "", nil)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rr.Code)
		}
	})

	t.Run("protected route accepts token", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/api/transactions", token, nil)
		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, body %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("me returns the token identity", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/api/auth/me", token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
		}
		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp["username"] != "léa" {
			t.Errorf("username = %q, want léa", resp["username"])
		}
		if resp["user_id"] == "" {
			t.Error("user_id is empty")
		}
	})

	t.Run("logout returns no content", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/auth/logout", token, nil)
		if rr.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rr.Code)
		}
	})
}

func TestCategoriesEndpoint(t *testing.T) {
	srv := newTestServer(t, fakeExtractor{})
	defer srv.Shutdown(context.Background())

	rr := doJSON(t, srv, http.MethodGet, "/api/categories", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp struct {
		Expense []string `json:"expense"`
		Income  []string `json:"income"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Expense) == 0 || len(resp.Income) == 0 {
		t.Fatalf("expected both category sets, got %d expense, %d income", len(resp.Expense), len(resp.Income))
	}
	if resp.Expense[0] != "Alimentation" {
		t.Errorf("first expense category = %q, want Alimentation", resp.Expense[0])
	}
}

func TestTransactionEndpoints(t *testing.T) {
	srv := newTestServer(t, fakeExtractor{})
	defer srv.Shutdown(context.Background())
	token := register(t, srv, "marc")

	today := time.Now().Format("2006-01-02")

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"description": "Courses",
		"amount":      "45.50",
		"kind":        "expense",
		"category":    "Alimentation",
		"date":        today,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	var created transactionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.AmountCents != 4550 {
		t.Errorf("AmountCents = %d, want 4550", created.AmountCents)
	}

	t.Run("invalid amount rejected", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
			"description": "Courses",
			"amount":      "abc",
			"kind":        "expense",
			"date":        today,
		})
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rr.Code)
		}
	})

	t.Run("list returns the month's entries", func(t *testing.T) {
		month := time.Now().Format("2006-01")
		rr := doJSON(t, srv, http.MethodGet, "/api/transactions?month="+month, token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("list status = %d", rr.Code)
		}
		var resp struct {
			Transactions []transactionResponse `json:"transactions"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Transactions) != 1 {
			t.Errorf("len = %d, want 1", len(resp.Transactions))
		}
	})

	t.Run("kind filter narrows the list", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
			"description": "Paie",
			"amount":      "2000.00",
			"kind":        "income",
			"category":    "Salaire",
			"date":        today,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("create income status = %d, body %s", rr.Code, rr.Body.String())
		}

		month := time.Now().Format("2006-01")
		rr = doJSON(t, srv, http.MethodGet, "/api/transactions?month="+month+"&kind=income", token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("list status = %d", rr.Code)
		}
		var resp struct {
			Transactions []transactionResponse `json:"transactions"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Transactions) != 1 || resp.Transactions[0].Category != "Salaire" {
			t.Errorf("filtered list = %+v, want the single income entry", resp.Transactions)
		}
	})

	t.Run("update rewrites the entry", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPut, "/api/transactions/"+created.ID, token, map[string]any{
			"description": "Courses du mois",
			"amount":      "60.00",
			"kind":        "expense",
			"category":    "Alimentation",
			"date":        today,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("update status = %d, body %s", rr.Code, rr.Body.String())
		}
		var updated transactionResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &updated); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if updated.ID != created.ID {
			t.Errorf("ID = %q, want %q", updated.ID, created.ID)
		}
		if updated.AmountCents != 6000 || updated.Description != "Courses du mois" {
			t.Errorf("updated = %+v", updated)
		}

		rr = doJSON(t, srv, http.MethodPut, "/api/transactions/does-not-exist", token, map[string]any{
			"description": "Fantome",
			"amount":      "1.00",
			"kind":        "expense",
			"date":        today,
		})
		if rr.Code != http.StatusNotFound {
			t.Errorf("missing id status = %d, want 404", rr.Code)
		}
	})

	t.Run("delete removes the entry", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, token, nil)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("delete status = %d", rr.Code)
		}
		rr = doJSON(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, token, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("second delete status = %d, want 404", rr.Code)
		}
	})
}

func TestBudgetEndpoints(t *testing.T) {
	srv := newTestServer(t, fakeExtractor{})
	defer srv.Shutdown(context.Background())
	token := register(t, srv, "ana")

	rr := doJSON(t, srv, http.MethodPost, "/api/budgets", token, map[string]any{
		"category":               "Transport",
		"monthly_limit":          "120.00",
		"notification_threshold": 80,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	var created budgetResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	t.Run("duplicate category conflicts", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/budgets", token, map[string]any{
			"category":               "Transport",
			"monthly_limit":          "80.00",
			"notification_threshold": 50,
		})
		if rr.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rr.Code)
		}
	})

	t.Run("update changes the limit", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPut, "/api/budgets/"+created.ID, token, map[string]any{
			"category":               "Transport",
			"monthly_limit":          "200.00",
			"notification_threshold": 80,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("update status = %d, body %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("invalid threshold rejected", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/budgets", token, map[string]any{
			"category":               "Loisirs",
			"monthly_limit":          "50.00",
			"notification_threshold": 150,
		})
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rr.Code)
		}
	})

	t.Run("delete then list", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodDelete, "/api/budgets/"+created.ID, token, nil)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("delete status = %d", rr.Code)
		}
		rr = doJSON(t, srv, http.MethodGet, "/api/budgets", token, nil)
		var resp struct {
			Budgets []budgetResponse `json:"budgets"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Budgets) != 0 {
			t.Errorf("len = %d, want 0", len(resp.Budgets))
		}
	})
}

func TestDashboardAndAlerts(t *testing.T) {
	srv := newTestServer(t, fakeExtractor{})
	defer srv.Shutdown(context.Background())
	token := register(t, srv, "paul")

	today := time.Now().Format("2006-01-02")
	for i, amount := range []string{"60.00", "55.00"} {
		rr := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
			"description": fmt.Sprintf("achat %d", i),
			"amount":      amount,
			"kind":        "expense",
			"category":    "Shopping",
			"date":        today,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("seed tx status = %d", rr.Code)
		}
	}
	rr := doJSON(t, srv, http.MethodPost, "/api/budgets", token, map[string]any{
		"category":               "Shopping",
		"monthly_limit":          "100.00",
		"notification_threshold": 80,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed budget status = %d", rr.Code)
	}

	t.Run("dashboard reflects spending", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/api/dashboard", token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Statuses []budgetStatusResponse `json:"statuses"`
			Summary  struct {
				TotalExpenses float64 `json:"total_expenses"`
			} `json:"summary"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Summary.TotalExpenses != 115.0 {
			t.Errorf("TotalExpenses = %v, want 115", resp.Summary.TotalExpenses)
		}
		if len(resp.Statuses) != 1 || !resp.Statuses[0].IsOverBudget {
			t.Errorf("statuses = %+v, want one over-budget entry", resp.Statuses)
		}
	})

	t.Run("alert fires once", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/alerts/evaluate", token, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		var resp struct {
			Alerts []alertEventResponse `json:"alerts"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Alerts) != 1 {
			t.Fatalf("alerts = %d, want 1", len(resp.Alerts))
		}
		if !strings.Contains(resp.Alerts[0].Message, "Budget dépassé") {
			t.Errorf("message = %q", resp.Alerts[0].Message)
		}

		rr = doJSON(t, srv, http.MethodPost, "/api/alerts/evaluate", token, nil)
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode second: %v", err)
		}
		if len(resp.Alerts) != 0 {
			t.Errorf("second evaluate alerts = %d, want 0", len(resp.Alerts))
		}
	})
}

func uploadImage(t *testing.T, srv *Server, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="ticket.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake image bytes")); err != nil {
		t.Fatalf("write image: %v", err)
	}
	if err := mw.WriteField("kind", "expense"); err != nil {
		t.Fatalf("write kind: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/receipts/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestReceiptFlow(t *testing.T) {
	extractor := fakeExtractor{detection: receipt.Detection{
		Items: []receipt.DetectedItem{
			{Label: "Pain", Amount: 2.50},
			{Label: "Lait", Amount: 1.20},
		},
		PredictedCategory: "Alimentation",
	}}
	srv := newTestServer(t, extractor)
	defer srv.Shutdown(context.Background())
	token := register(t, srv, "nina")

	rr := uploadImage(t, srv, token)
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", rr.Code, rr.Body.String())
	}
	var view sessionViewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.State != string(receipt.StateMultiMatch) {
		t.Fatalf("state = %s, want multi_match", view.State)
	}
	if len(view.Drafts) != 2 {
		t.Fatalf("drafts = %d, want 2", len(view.Drafts))
	}
	for _, d := range view.Drafts {
		if d.Valid {
			t.Errorf("draft %q valid before a category was chosen", d.Description)
		}
	}

	t.Run("submit with incomplete drafts conflicts", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/receipts/submit", token, map[string]string{
			"kind": "expense",
		})
		if rr.Code != http.StatusConflict {
			t.Fatalf("submit status = %d, want 409, body %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("assigning categories validates drafts", func(t *testing.T) {
		for _, d := range view.Drafts {
			rr := doJSON(t, srv, http.MethodPut, "/api/receipts/drafts/"+d.ID, token, map[string]string{
				"description": d.Description,
				"amount":      d.Amount,
				"category":    "Alimentation",
			})
			if rr.Code != http.StatusOK {
				t.Fatalf("update draft status = %d, body %s", rr.Code, rr.Body.String())
			}
		}
		rr := doJSON(t, srv, http.MethodGet, "/api/receipts/session", token, nil)
		var updated sessionViewResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &updated); err != nil {
			t.Fatalf("decode: %v", err)
		}
		for _, d := range updated.Drafts {
			if !d.Valid {
				t.Errorf("draft %q still invalid after edit", d.Description)
			}
		}
	})

	t.Run("submit commits all drafts", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/api/receipts/submit", token, map[string]string{
			"kind": "expense",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("submit status = %d, body %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Attempted int                 `json:"attempted"`
			Failed    []string            `json:"failed"`
			Session   sessionViewResponse `json:"session"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Attempted != 2 || len(resp.Failed) != 0 {
			t.Errorf("outcome = %+v", resp)
		}
		if resp.Session.State != string(receipt.StateCommitted) {
			t.Errorf("state = %s, want committed", resp.Session.State)
		}
	})

	t.Run("committed transactions are listed", func(t *testing.T) {
		month := time.Now().Format("2006-01")
		rr := doJSON(t, srv, http.MethodGet, "/api/transactions?month="+month, token, nil)
		var resp struct {
			Transactions []transactionResponse `json:"transactions"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Transactions) != 2 {
			t.Errorf("len = %d, want 2", len(resp.Transactions))
		}
		for _, tx := range resp.Transactions {
			if tx.TicketID == "" {
				t.Errorf("transaction %s missing ticket id", tx.ID)
			}
		}
	})
}

func TestReceiptUploadRejectsNonImage(t *testing.T) {
	srv := newTestServer(t, fakeExtractor{})
	defer srv.Shutdown(context.Background())
	token := register(t, srv, "joe")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("image", "notes.txt")
	part.Write([]byte("not an image"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/receipts/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415, body %s", rr.Code, rr.Body.String())
	}
}
