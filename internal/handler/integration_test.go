//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/nilewear/api/internal/config"
	"github.com/nilewear/api/internal/database"
	"github.com/nilewear/api/internal/router"
	"github.com/nilewear/api/internal/ws"
)

// TestIntegrationFlow exercises the full storefront lifecycle against a real
// PostgreSQL database: register, build a cart, preview a checkout, place an
// order, then walk the admin side of the order lifecycle.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:        "8081",
		DatabaseURL: connStr,
		JWTSecret:   "integration-test-secret",
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// NOTE: hub.Run() goroutine leaks on test exit; the hub has no shutdown
	// mechanism. Acceptable for tests.
	go hub.Run()

	// nil cart cache: every cart view goes straight to Postgres
	r := router.New(cfg, queries, pool, hub, nil)

	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Seed admin user (manual DB insert to bootstrap) ---
	adminID := createAdminUser(t, ctx, pool)

	// --- 2. Register a customer through the API ---
	registerResp := httpPostJSON(t, server, "/auth/register", map[string]interface{}{
		"full_name": "Mona Hassan",
		"email":     "mona@test.com",
		"password":  "password123",
	}, "")
	customerToken := registerResp["access_token"].(string)
	if customerToken == "" {
		t.Fatalf("register: no access token in response: %+v", registerResp)
	}

	adminToken := login(t, server, "admin@test.com", "password123")

	// --- 3. Admin creates a product with a percentage discount ---
	productResp := httpPostJSON(t, server, "/admin/products", map[string]interface{}{
		"title":           "Classic Cotton Tee",
		"description":     "Heavyweight crew-neck tee",
		"original_price":  "300.00",
		"discount_type":   "percentage",
		"discount_amount": "10",
	}, adminToken)
	productID := uuid.MustParse(productResp["id"].(string))
	if productResp["price"].(string) != "270.00" {
		t.Fatalf("product price: got %s, want 270.00", productResp["price"])
	}

	// --- 4. Admin stocks a variant ---
	httpDoJSON(t, server, "PUT", fmt.Sprintf("/admin/products/%s/variants", productID), map[string]interface{}{
		"color":    "black",
		"size":     "M",
		"quantity": 5,
	}, adminToken)

	// --- 5. Customer adds two units to the cart ---
	cartResp := httpPostJSON(t, server, "/cart/items", map[string]interface{}{
		"product_id": productID.String(),
		"color":      "black",
		"size":       "M",
		"quantity":   2,
	}, customerToken)
	if cartResp["sub_total"].(string) != "540.00" {
		t.Fatalf("cart sub_total: got %s, want 540.00", cartResp["sub_total"])
	}

	// --- 6. Preview the checkout with a Cairo address ---
	previewResp := httpPostJSON(t, server, "/checkout/preview", map[string]interface{}{
		"full_name":    "Mona Hassan",
		"phone":        "+201000000000",
		"address_line": "12 Tahrir St",
		"city":         "Nasr City",
		"governorate":  "Cairo",
	}, customerToken)
	if previewResp["shipping_fee"].(string) != "70.00" {
		t.Fatalf("preview shipping_fee: got %s, want 70.00", previewResp["shipping_fee"])
	}
	if previewResp["final_total"].(string) != "610.00" {
		t.Fatalf("preview final_total: got %s, want 610.00", previewResp["final_total"])
	}

	// --- 7. Place the order ---
	orderResp := httpPostJSON(t, server, "/orders", map[string]interface{}{
		"payment_method": "cash",
	}, customerToken)
	orderID := uuid.MustParse(orderResp["id"].(string))
	if orderResp["order_number"].(string) != "#000001" {
		t.Fatalf("order_number: got %s, want #000001", orderResp["order_number"])
	}
	if orderResp["final_total"].(string) != "610.00" {
		t.Fatalf("order final_total: got %s, want 610.00", orderResp["final_total"])
	}

	// Stock decremented at commit time
	var remaining int
	if err := pool.QueryRow(ctx,
		`SELECT quantity FROM product_variants WHERE product_id = $1`, productID,
	).Scan(&remaining); err != nil {
		t.Fatalf("read variant stock: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("variant stock after order: got %d, want 3", remaining)
	}

	// Cart and pending checkout consumed by the commit
	emptyCart := httpGetJSON(t, server, "/cart", customerToken)
	if items, _ := emptyCart["items"].([]interface{}); len(items) != 0 {
		t.Fatalf("cart after order: got %d items, want 0", len(items))
	}

	// --- 8. Placing again without a new preview is rejected ---
	httpExpectStatus(t, server, "POST", "/orders", nil, customerToken, http.StatusConflict)

	// --- 9. Admin received a notification for the new order ---
	adminFeed := httpGetJSONList(t, server, "/notifications", adminToken)
	if len(adminFeed) != 1 {
		t.Fatalf("admin notifications: got %d, want 1", len(adminFeed))
	}

	// --- 10. Admin advances the order; the customer is notified ---
	statusResp := httpDoJSON(t, server, "PATCH", fmt.Sprintf("/admin/orders/%s/status", orderID),
		map[string]interface{}{"status": "shipped"}, adminToken)
	if statusResp["status"].(string) != "shipped" {
		t.Fatalf("order status: got %s, want shipped", statusResp["status"])
	}
	customerFeed := httpGetJSONList(t, server, "/notifications", customerToken)
	if len(customerFeed) != 1 {
		t.Fatalf("customer notifications: got %d, want 1", len(customerFeed))
	}

	// --- 11. Shipped orders can no longer be cancelled ---
	httpExpectStatus(t, server, "POST", fmt.Sprintf("/orders/%s/cancel", orderID),
		nil, customerToken, http.StatusConflict)

	// --- 12. A second order burns the next number and cancels cleanly ---
	httpPostJSON(t, server, "/cart/items", map[string]interface{}{
		"product_id": productID.String(),
		"color":      "black",
		"size":       "M",
		"quantity":   1,
	}, customerToken)
	httpPostJSON(t, server, "/checkout/preview", map[string]interface{}{
		"full_name":    "Mona Hassan",
		"phone":        "+201000000000",
		"address_line": "12 Tahrir St",
		"city":         "Nasr City",
		"governorate":  "Giza",
	}, customerToken)
	order2Resp := httpPostJSON(t, server, "/orders", nil, customerToken)
	order2ID := uuid.MustParse(order2Resp["id"].(string))
	if order2Resp["order_number"].(string) != "#000002" {
		t.Fatalf("second order_number: got %s, want #000002", order2Resp["order_number"])
	}

	cancelResp := httpPostJSON(t, server, fmt.Sprintf("/orders/%s/cancel", order2ID), nil, customerToken)
	if cancelResp["status"].(string) != "cancelled" {
		t.Fatalf("cancelled order status: got %s, want cancelled", cancelResp["status"])
	}

	// Cancellation does not restock
	if err := pool.QueryRow(ctx,
		`SELECT quantity FROM product_variants WHERE product_id = $1`, productID,
	).Scan(&remaining); err != nil {
		t.Fatalf("read variant stock: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("variant stock after cancel: got %d, want 2", remaining)
	}

	t.Logf("Integration test passed: container=%s, admin=%s, product=%s, orders=%s,%s",
		pgContainer.GetContainerID(), adminID, productID, orderID, order2ID)
}

// TestOrderNumberAllocationConcurrency hammers the counter from many
// goroutines and checks that every allocation gets its own value. The counter
// is a single upserted row, so concurrent increments serialize on its row
// lock and no two callers can observe the same value.
func TestOrderNumberAllocationConcurrency(t *testing.T) {
	ctx := context.Background()

	_, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()
	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()
	queries := database.New(pool)

	const n = 20
	values := make(chan int64, n)
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := queries.NextCounterValue(ctx, "orders")
			if err != nil {
				errs <- err
				return
			}
			values <- v
		}()
	}
	wg.Wait()
	close(values)
	close(errs)

	for err := range errs {
		t.Fatalf("allocate counter value: %v", err)
	}

	var got []int64
	for v := range values {
		got = append(got, v)
	}
	if len(got) != n {
		t.Fatalf("allocations: got %d, want %d", len(got), n)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, v := range got {
		if v != int64(i+1) {
			t.Fatalf("sorted allocations = %v, want 1..%d with no duplicates or gaps", got, n)
		}
	}
}

// TestConcurrentOrdersOversubscribedStock races two commits against a variant
// that can only satisfy one of them. With 5 units in stock and two orders of
// 3, exactly one commit may win; the conditional decrement must never let the
// quantity go negative.
func TestConcurrentOrdersOversubscribedStock(t *testing.T) {
	ctx := context.Background()

	_, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()
	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:        "8082",
		DatabaseURL: connStr,
		JWTSecret:   "integration-test-secret",
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	go hub.Run()

	r := router.New(cfg, queries, pool, hub, nil)
	server := httptest.NewServer(r)
	defer server.Close()

	createAdminUser(t, ctx, pool)
	adminToken := login(t, server, "admin@test.com", "password123")

	productResp := httpPostJSON(t, server, "/admin/products", map[string]interface{}{
		"title":          "Denim Jacket",
		"description":    "Stonewashed trucker jacket",
		"original_price": "1200.00",
	}, adminToken)
	productID := uuid.MustParse(productResp["id"].(string))
	httpDoJSON(t, server, "PUT", fmt.Sprintf("/admin/products/%s/variants", productID), map[string]interface{}{
		"color":    "blue",
		"size":     "L",
		"quantity": 5,
	}, adminToken)

	// Two customers, each with 3 units carted and a previewed checkout.
	tokens := make([]string, 2)
	for i := range tokens {
		email := fmt.Sprintf("buyer%d@test.com", i)
		resp := httpPostJSON(t, server, "/auth/register", map[string]interface{}{
			"full_name": fmt.Sprintf("Buyer %d", i),
			"email":     email,
			"password":  "password123",
		}, "")
		tokens[i] = resp["access_token"].(string)

		httpPostJSON(t, server, "/cart/items", map[string]interface{}{
			"product_id": productID.String(),
			"color":      "blue",
			"size":       "L",
			"quantity":   3,
		}, tokens[i])
		httpPostJSON(t, server, "/checkout/preview", map[string]interface{}{
			"full_name":    fmt.Sprintf("Buyer %d", i),
			"phone":        "+201000000000",
			"address_line": "12 Tahrir St",
			"city":         "Nasr City",
			"governorate":  "Cairo",
		}, tokens[i])
	}

	statuses := make([]int, len(tokens))
	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			statuses[i] = httpStatus(t, server, "POST", "/orders",
				map[string]interface{}{"payment_method": "cash"}, token)
		}(i, token)
	}
	wg.Wait()

	created, conflicted := 0, 0
	for _, status := range statuses {
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicted++
		default:
			t.Fatalf("order statuses = %v, want one 201 and one 409", statuses)
		}
	}
	if created != 1 || conflicted != 1 {
		t.Fatalf("order statuses = %v, want exactly one 201 and one 409", statuses)
	}

	var remaining int
	if err := pool.QueryRow(ctx,
		`SELECT quantity FROM product_variants WHERE product_id = $1`, productID,
	).Scan(&remaining); err != nil {
		t.Fatalf("read variant stock: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("variant stock after racing commits: got %d, want 2", remaining)
	}
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("store_test"),
		tcpostgres.WithUsername("store"),
		tcpostgres.WithPassword("store"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Path relative to this test file's package directory.
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createAdminUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO users (full_name, email, hashed_password, role)
		 VALUES ($1, $2, $3, 'ADMIN')
		 RETURNING id`,
		"Test Admin", "admin@test.com", string(hashedPassword),
	).Scan(&id)
	if err != nil {
		t.Fatalf("create admin user: %v", err)
	}
	return id
}

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	resp := httpPostJSON(t, server, "/auth/login", map[string]interface{}{
		"email":    email,
		"password": password,
	}, "")
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

// --- HTTP helpers ---

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	return httpDoJSON(t, server, "POST", path, body, token)
}

func httpDoJSON(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("%s %s: status %d, body: %v", method, path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpGetJSON(t *testing.T, server *httptest.Server, path string, token string) map[string]interface{} {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("GET %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpGetJSONList(t *testing.T, server *httptest.Server, path string, token string) []map[string]interface{} {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("GET %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

// httpStatus performs a request and returns only the response status. Safe
// for use from spawned goroutines: failures are reported with Errorf, never
// FailNow.
func httpStatus(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Errorf("marshal body: %v", err)
			return 0
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Errorf("create request: %v", err)
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Errorf("do request: %v", err)
		return 0
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func httpExpectStatus(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string, want int) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("%s %s: status %d, want %d, body: %v", method, path, resp.StatusCode, want, errResp)
	}
}
