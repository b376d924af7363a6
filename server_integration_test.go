package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"precoscan/pkg/scanner"
	"precoscan/pkg/store"

	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	// allow callers to pass nil for body safely
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("integration-test-secret")
	initDB()
	tmp := t.TempDir()
	_ = os.Setenv("SCAN_SPOOL_DIR", tmp)

	local, err := store.Open(filepath.Join(tmp, "local.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { _ = local.Close() })

	r := gin.Default()
	setupRoutes(r, newScannerService(scanner.DefaultConfig(), local))
	return r
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)

	// 1. Register user
	regBody, _ := json.Marshal(map[string]string{"username": "shopper1", "password": "pass123"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 && resp.Code != 409 {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 2. Login
	loginBody, _ := json.Marshal(map[string]string{"username": "shopper1", "password": "pass123"})
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(loginBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	// 3. Add a cart item
	itemBody, _ := json.Marshal(map[string]any{"name": "ARROZ TIO JOAO 5KG", "preco_avulso": 2150, "quantity": 2})
	resp = performRequest(r, http.MethodPost, "/cart", bytes.NewBuffer(itemBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("add cart item failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 4. List the cart and verify the total
	resp = performRequest(r, http.MethodGet, "/cart", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list cart failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var cartResp struct {
		Items []map[string]any `json:"items"`
		Total int64            `json:"total"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &cartResp)
	if len(cartResp.Items) == 0 {
		t.Fatalf("cart should contain the added item: %s", resp.Body.String())
	}

	// 5. Save a list
	listBody, _ := json.Marshal(map[string]any{
		"name":  "compra do mes",
		"items": []map[string]any{{"name": "ARROZ TIO JOAO 5KG", "quantity": 2, "preco_avulso": 2150}},
	})
	resp = performRequest(r, http.MethodPost, "/lists", bytes.NewBuffer(listBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("create list failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 6. Report and query a price observation
	priceBody, _ := json.Marshal(map[string]any{"product_name": "ARROZ TIO JOAO 5KG", "price": 2150, "market": "Mercado Central"})
	resp = performRequest(r, http.MethodPost, "/prices", bytes.NewBuffer(priceBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("report price failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet, "/prices?product=ARROZ", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("query prices failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 7. Checkout moves the cart into history
	resp = performRequest(r, http.MethodPost, "/cart/checkout", bytes.NewBufferString(`{"market":"Mercado Central"}`), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("checkout failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet, "/history", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list history failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet, "/cart", nil, token, "")
	_ = json.Unmarshal(resp.Body.Bytes(), &cartResp)
	if len(cartResp.Items) != 0 {
		t.Fatalf("checkout should clear the cart: %s", resp.Body.String())
	}

	// 8. Scanner status without a session reports idle
	resp = performRequest(r, http.MethodGet, "/scanner/status", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("scanner status failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 9. Unauthorized access to protected endpoint should be 401
	unauth := performRequest(r, http.MethodGet, "/cart", nil, "", "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized cart access got %d", unauth.Code)
	}
}

func TestMigrateCommand(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	initDB()
}
