package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nilewear/api/internal/database"
	"github.com/nilewear/api/internal/enum"
	"github.com/nilewear/api/internal/handler"
	"github.com/nilewear/api/internal/service"
)

// mockOrderServicer implements handler.OrderServicer with configurable
// behavior.
type mockOrderServicer struct {
	createFn       func(ctx context.Context, userID uuid.UUID, paymentMethod string) (*service.OrderResult, error)
	getFn          func(ctx context.Context, actorID uuid.UUID, actorRole string, orderID uuid.UUID) (*service.OrderResult, error)
	listMineFn     func(ctx context.Context, userID uuid.UUID) ([]database.Order, error)
	listFn         func(ctx context.Context, status string) ([]database.Order, error)
	updateStatusFn func(ctx context.Context, orderID uuid.UUID, status string) (database.Order, error)
	cancelFn       func(ctx context.Context, actorID uuid.UUID, actorRole string, orderID uuid.UUID) (database.Order, error)
	deleteFn       func(ctx context.Context, orderID uuid.UUID) error
}

func (m *mockOrderServicer) Create(ctx context.Context, userID uuid.UUID, paymentMethod string) (*service.OrderResult, error) {
	return m.createFn(ctx, userID, paymentMethod)
}
func (m *mockOrderServicer) Get(ctx context.Context, actorID uuid.UUID, actorRole string, orderID uuid.UUID) (*service.OrderResult, error) {
	return m.getFn(ctx, actorID, actorRole, orderID)
}
func (m *mockOrderServicer) ListMine(ctx context.Context, userID uuid.UUID) ([]database.Order, error) {
	return m.listMineFn(ctx, userID)
}
func (m *mockOrderServicer) List(ctx context.Context, status string) ([]database.Order, error) {
	return m.listFn(ctx, status)
}
func (m *mockOrderServicer) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (database.Order, error) {
	return m.updateStatusFn(ctx, orderID, status)
}
func (m *mockOrderServicer) Cancel(ctx context.Context, actorID uuid.UUID, actorRole string, orderID uuid.UUID) (database.Order, error) {
	return m.cancelFn(ctx, actorID, actorRole, orderID)
}
func (m *mockOrderServicer) Delete(ctx context.Context, orderID uuid.UUID) error {
	return m.deleteFn(ctx, orderID)
}

func setupOrderRouter(svc *mockOrderServicer) *chi.Mux {
	h := handler.NewOrderHandler(svc)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	r.Route("/admin", h.RegisterAdminRoutes)
	return r
}

func sampleOrder(userID uuid.UUID, status string) database.Order {
	o := database.Order{
		ID:            uuid.New(),
		OrderNumber:   "#000042",
		UserID:        userID,
		Status:        status,
		PaymentMethod: enum.PaymentMethodCash,
		FullName:      "Mona Hassan",
		Phone:         "+201000000000",
		AddressLine:   "12 Tahrir St",
		City:          "Nasr City",
		Governorate:   "Cairo",
		Country:       "Egypt",
	}
	_ = o.SubTotal.Scan("600.00")
	_ = o.DiscountTotal.Scan("0.00")
	_ = o.ShippingFee.Scan("70.00")
	_ = o.FinalTotal.Scan("670.00")
	return o
}

// --- Create ---

func TestOrderCreate_Success(t *testing.T) {
	userID := uuid.New()
	svc := &mockOrderServicer{
		createFn: func(ctx context.Context, uid uuid.UUID, paymentMethod string) (*service.OrderResult, error) {
			return &service.OrderResult{Order: sampleOrder(uid, enum.OrderStatusPending)}, nil
		},
	}
	router := setupOrderRouter(svc)

	rr := doAuthedRequest(t, router, "POST", "/orders", map[string]interface{}{
		"payment_method": "cash",
	}, customerClaims(userID))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["order_number"] != "#000042" {
		t.Errorf("order_number = %v, want #000042", resp["order_number"])
	}
	if resp["status"] != enum.OrderStatusPending {
		t.Errorf("status = %v, want pending", resp["status"])
	}
	if resp["final_total"] != "670.00" {
		t.Errorf("final_total = %v, want 670.00", resp["final_total"])
	}
}

func TestOrderCreate_NoBodyDefaultsPayment(t *testing.T) {
	var gotMethod = "unset"
	svc := &mockOrderServicer{
		createFn: func(ctx context.Context, uid uuid.UUID, paymentMethod string) (*service.OrderResult, error) {
			gotMethod = paymentMethod
			return &service.OrderResult{Order: sampleOrder(uid, enum.OrderStatusPending)}, nil
		},
	}
	router := setupOrderRouter(svc)

	rr := doAuthedRequest(t, router, "POST", "/orders", nil, customerClaims(uuid.New()))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if gotMethod != "" {
		t.Errorf("payment method = %q, want empty passthrough", gotMethod)
	}
}

func TestOrderCreate_EmptyCartIsConflict(t *testing.T) {
	svc := &mockOrderServicer{
		createFn: func(ctx context.Context, uid uuid.UUID, paymentMethod string) (*service.OrderResult, error) {
			return nil, service.ErrEmptyCart
		},
	}
	router := setupOrderRouter(svc)

	rr := doAuthedRequest(t, router, "POST", "/orders", nil, customerClaims(uuid.New()))
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestOrderCreate_InsufficientStockIsConflict(t *testing.T) {
	svc := &mockOrderServicer{
		createFn: func(ctx context.Context, uid uuid.UUID, paymentMethod string) (*service.OrderResult, error) {
			return nil, service.ErrInsufficientStock
		},
	}
	router := setupOrderRouter(svc)

	rr := doAuthedRequest(t, router, "POST", "/orders", nil, customerClaims(uuid.New()))
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

// --- Get / List ---

func TestOrderGet_PassesActor(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	var gotActor uuid.UUID
	var gotRole string
	svc := &mockOrderServicer{
		getFn: func(ctx context.Context, actorID uuid.UUID, actorRole string, oid uuid.UUID) (*service.OrderResult, error) {
			gotActor, gotRole = actorID, actorRole
			return &service.OrderResult{Order: sampleOrder(userID, enum.OrderStatusPending)}, nil
		},
	}
	router := setupOrderRouter(svc)

	rr := doAuthedRequest(t, router, "GET", "/orders/"+orderID.String(), nil, customerClaims(userID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if gotActor != userID || gotRole != enum.UserRoleCustomer {
		t.Errorf("actor = (%s, %s), want (%s, CUSTOMER)", gotActor, gotRole, userID)
	}
}

func TestOrderGet_NotFound(t *testing.T) {
	svc := &mockOrderServicer{
		getFn: func(ctx context.Context, actorID uuid.UUID, actorRole string, oid uuid.UUID) (*service.OrderResult, error) {
			return nil, service.ErrOrderNotFound
		},
	}
	router := setupOrderRouter(svc)

	rr := doAuthedRequest(t, router, "GET", "/orders/"+uuid.NewString(), nil, customerClaims(uuid.New()))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestOrderListAll_PassesStatusFilter(t *testing.T) {
	var gotStatus string
	svc := &mockOrderServicer{
		listFn: func(ctx context.Context, status string) ([]database.Order, error) {
			gotStatus = status
			return []database.Order{sampleOrder(uuid.New(), enum.OrderStatusShipped)}, nil
		},
	}
	router := setupOrderRouter(svc)

	rr := doAuthedRequest(t, router, "GET", "/admin/orders?status=shipped", nil, adminClaims(uuid.New()))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if gotStatus != enum.OrderStatusShipped {
		t.Errorf("status filter = %q, want shipped", gotStatus)
	}
	resp := decodeListResponse(t, rr)
	if len(resp) != 1 {
		t.Fatalf("expected 1 order, got %d", len(resp))
	}
}

// --- UpdateStatus / Cancel / Delete ---

func TestOrderUpdateStatus_Success(t *testing.T) {
	svc := &mockOrderServicer{
		updateStatusFn: func(ctx context.Context, orderID uuid.UUID, status string) (database.Order, error) {
			return sampleOrder(uuid.New(), status), nil
		},
	}
	router := setupOrderRouter(svc)

	rr := doAuthedRequest(t, router, "PATCH", "/admin/orders/"+uuid.NewString()+"/status",
		map[string]interface{}{"status": "shipped"}, adminClaims(uuid.New()))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["status"] != enum.OrderStatusShipped {
		t.Errorf("status = %v, want shipped", resp["status"])
	}
}

func TestOrderUpdateStatus_CancelledDelegatesToCancel(t *testing.T) {
	adminID := uuid.New()
	cancelCalled := false
	svc := &mockOrderServicer{
		cancelFn: func(ctx context.Context, actorID uuid.UUID, actorRole string, orderID uuid.UUID) (database.Order, error) {
			cancelCalled = true
			if actorRole != enum.UserRoleAdmin {
				t.Errorf("actor role = %q, want ADMIN", actorRole)
			}
			return sampleOrder(uuid.New(), enum.OrderStatusCancelled), nil
		},
		updateStatusFn: func(ctx context.Context, orderID uuid.UUID, status string) (database.Order, error) {
			t.Fatal("UpdateStatus must not be called for cancellation")
			return database.Order{}, nil
		},
	}
	router := setupOrderRouter(svc)

	rr := doAuthedRequest(t, router, "PATCH", "/admin/orders/"+uuid.NewString()+"/status",
		map[string]interface{}{"status": "cancelled"}, adminClaims(adminID))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if !cancelCalled {
		t.Error("expected cancellation path to be used")
	}
}

func TestOrderCancel_NotPendingIsConflict(t *testing.T) {
	svc := &mockOrderServicer{
		cancelFn: func(ctx context.Context, actorID uuid.UUID, actorRole string, orderID uuid.UUID) (database.Order, error) {
			return database.Order{}, service.ErrOrderNotCancellable
		},
	}
	router := setupOrderRouter(svc)

	rr := doAuthedRequest(t, router, "POST", "/orders/"+uuid.NewString()+"/cancel", nil, customerClaims(uuid.New()))
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestOrderDelete_NoContent(t *testing.T) {
	svc := &mockOrderServicer{
		deleteFn: func(ctx context.Context, orderID uuid.UUID) error { return nil },
	}
	router := setupOrderRouter(svc)

	rr := doAuthedRequest(t, router, "DELETE", "/admin/orders/"+uuid.NewString(), nil, adminClaims(uuid.New()))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
}
