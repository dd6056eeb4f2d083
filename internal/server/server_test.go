package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farellandr/aquapark/internal/cache"
	"github.com/farellandr/aquapark/internal/events"
	"github.com/farellandr/aquapark/internal/helpers"
	"github.com/farellandr/aquapark/internal/models"
	"github.com/farellandr/aquapark/internal/payment"
	"github.com/farellandr/aquapark/internal/repository"
	"github.com/farellandr/aquapark/internal/repository/repotest"
	"github.com/farellandr/aquapark/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sandboxToken = "sandbox-secret"

type testServer struct {
	router     *gin.Engine
	recorder   *events.Recorder
	adminToken string
	staffToken string
	staffID    uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")

	db := repotest.NewDB(t)
	require.NoError(t, db.Create(&models.TicketType{TicketID: "adult", Name: "Adult", Price: 8990, IsActive: true}).Error)
	staff := models.Staff{Email: "gate@example.com", Name: "Gate 1", Password: "x", Role: models.RoleStaff, IsActive: true}
	require.NoError(t, db.Create(&staff).Error)
	admin := models.Staff{Email: "admin@example.com", Name: "Administrator", Password: "x", Role: models.RoleAdmin, IsActive: true}
	require.NoError(t, db.Create(&admin).Error)

	recorder := &events.Recorder{}
	processor := payment.NewSandboxProcessor("http://park.test", sandboxToken)
	availability := services.NewAvailabilityService(repository.NewAvailabilityRepository(db), cache.NewAvailabilityCache(nil, "", 0), nil)
	orderRepo := repository.NewOrderRepository(db)
	registry := &services.Registry{
		Availability: availability,
		Orders:       services.NewOrderService(orderRepo, repository.NewTicketTypeRepository(db), availability, processor, recorder, nil),
		Redemption:   services.NewRedemptionService(orderRepo, recorder, nil),
		Processor:    processor,
	}

	r := gin.New()
	setupRoutes(r, db, registry)

	adminToken, err := helpers.GenerateToken(admin.ID, models.RoleAdmin, models.PrincipalStaff)
	require.NoError(t, err)
	staffToken, err := helpers.GenerateToken(staff.ID, models.RoleStaff, models.PrincipalStaff)
	require.NoError(t, err)
	return &testServer{router: r, recorder: recorder, adminToken: adminToken, staffToken: staffToken, staffID: staff.ID}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func futureDate() string {
	return time.Now().UTC().AddDate(0, 1, 0).Format(models.DateLayout)
}

func TestTicketPurchaseToGate(t *testing.T) {
	s := newTestServer(t)
	date := futureDate()

	w := s.do(t, http.MethodPost, "/v1/admin/availability", s.adminToken, gin.H{"date": date, "total_tickets": 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/v1/availability/check?date="+date+"&quantity=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var check services.AvailabilityResult
	decode(t, w, &check)
	assert.True(t, check.Available)
	assert.Equal(t, 10, check.Remaining)

	w = s.do(t, http.MethodPost, "/v1/orders", "", gin.H{
		"customer":     gin.H{"name": "Ana", "email": "ana@example.com"},
		"items":        []gin.H{{"ticket_id": "adult", "quantity": 2}},
		"visit_date":   date,
		"total_amount": 1.00,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "tampered total is refused")

	w = s.do(t, http.MethodPost, "/v1/orders", "", gin.H{
		"customer":     gin.H{"name": "Ana", "email": "ana@example.com"},
		"items":        []gin.H{{"ticket_id": "adult", "quantity": 2}},
		"visit_date":   date,
		"total_amount": 179.80,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var checkout services.CheckoutResult
	decode(t, w, &checkout)
	assert.Equal(t, models.Money(17980), checkout.TotalAmount)
	assert.Contains(t, checkout.RedirectURL, "http://park.test/v1/payments/sandbox/checkout")

	w = s.do(t, http.MethodGet, "/v1/orders/"+checkout.OrderID+"/qr", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "no QR before payment")

	callback := gin.H{"order_id": checkout.OrderID, "payment_id": "pay-1", "status": "approved", "amount": "179.80"}
	w = s.do(t, http.MethodPost, "/v1/payments/webhook", "", callback)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "unsigned callback")

	w = s.do(t, http.MethodPost, "/v1/payments/webhook", "", callback, payment.SandboxTokenHeader, sandboxToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result services.CallbackResult
	decode(t, w, &result)
	assert.True(t, result.Applied)
	assert.Equal(t, models.PaymentApproved, result.Status)

	w = s.do(t, http.MethodPost, "/v1/payments/webhook", "", callback, payment.SandboxTokenHeader, sandboxToken)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &result)
	assert.False(t, result.Applied, "replay is acknowledged without effect")

	w = s.do(t, http.MethodGet, "/v1/orders/"+checkout.OrderID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var order models.Order
	decode(t, w, &order)
	require.NotNil(t, order.TicketCode)

	w = s.do(t, http.MethodGet, "/v1/orders/"+checkout.OrderID+"/qr", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = s.do(t, http.MethodGet, "/v1/staff/tickets/"+*order.TicketCode, s.staffToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/v1/staff/tickets/validate", s.staffToken, gin.H{"ticket_code": *order.TicketCode})
	require.Equal(t, http.StatusOK, w.Code)
	var redemption services.RedemptionResult
	decode(t, w, &redemption)
	assert.Equal(t, services.OutcomeAdmitted, redemption.Outcome)
	require.NotNil(t, redemption.Ticket.ValidatedByName)
	assert.Equal(t, "Gate 1", *redemption.Ticket.ValidatedByName)

	w = s.do(t, http.MethodPost, "/v1/staff/tickets/validate", s.staffToken, gin.H{"ticket_code": *order.TicketCode})
	decode(t, w, &redemption)
	assert.Equal(t, services.OutcomeAlreadyUsed, redemption.Outcome)

	w = s.do(t, http.MethodPost, "/v1/admin/orders/"+checkout.OrderID+"/refund", s.adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "used tickets are not refundable")

	w = s.do(t, http.MethodDelete, "/v1/admin/availability/"+date, s.adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "date has an approved order")

	w = s.do(t, http.MethodGet, "/v1/admin/orders/stats", s.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats repository.OrderStats
	decode(t, w, &stats)
	assert.Equal(t, int64(1), stats.TicketsValidated)

	assert.Equal(t, []string{events.OrderApproved, events.TicketRedeemed}, s.recorder.Types())
}

func TestRouteProtection(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/v1/admin/orders", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/v1/admin/orders", s.staffToken, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/admin/orders", s.adminToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/v1/staff/tickets/validate", "", gin.H{"ticket_code": "TKT-1"}).Code)
}

func TestSandboxCheckoutAndReturn(t *testing.T) {
	s := newTestServer(t)
	date := futureDate()
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/admin/availability", s.adminToken, gin.H{"date": date, "total_tickets": 1}).Code)

	w := s.do(t, http.MethodPost, "/v1/orders", "", gin.H{
		"customer":   gin.H{"name": "Ana", "email": "ana@example.com"},
		"items":      []gin.H{{"ticket_id": "adult", "quantity": 1}},
		"visit_date": date,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var checkout services.CheckoutResult
	decode(t, w, &checkout)

	w = s.do(t, http.MethodGet, "/v1/payments/return?order_id="+checkout.OrderID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var order models.Order
	decode(t, w, &order)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)

	w = s.do(t, http.MethodPost, "/v1/payments/sandbox/checkout", "", gin.H{"order_id": checkout.OrderID, "status": "approved"},
		payment.SandboxTokenHeader, sandboxToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/v1/availability/dates", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dates struct {
		Dates []services.DateRemaining `json:"dates"`
	}
	decode(t, w, &dates)
	assert.Empty(t, dates.Dates, "sold out dates are hidden")
}

// placePaidOrder buys one adult ticket and approves it through the webhook.
func (s *testServer) placePaidOrder(t *testing.T, date string) models.Order {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/orders", "", gin.H{
		"customer":   gin.H{"name": "Ana", "email": "ana@example.com"},
		"items":      []gin.H{{"ticket_id": "adult", "quantity": 1}},
		"visit_date": date,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var checkout services.CheckoutResult
	decode(t, w, &checkout)

	w = s.do(t, http.MethodPost, "/v1/payments/webhook", "", gin.H{"order_id": checkout.OrderID, "status": "approved"},
		payment.SandboxTokenHeader, sandboxToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var order models.Order
	decode(t, s.do(t, http.MethodGet, "/v1/orders/"+checkout.OrderID, "", nil), &order)
	require.NotNil(t, order.TicketCode)
	return order
}

func TestSandboxSettleRequiresToken(t *testing.T) {
	s := newTestServer(t)
	date := futureDate()
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/admin/availability", s.adminToken, gin.H{"date": date, "total_tickets": 5}).Code)

	w := s.do(t, http.MethodPost, "/v1/orders", "", gin.H{
		"customer":   gin.H{"name": "Ana", "email": "ana@example.com"},
		"items":      []gin.H{{"ticket_id": "adult", "quantity": 1}},
		"visit_date": date,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var checkout services.CheckoutResult
	decode(t, w, &checkout)

	settle := gin.H{"order_id": checkout.OrderID, "status": "approved"}
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/v1/payments/sandbox/checkout", "", settle).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/v1/payments/sandbox/checkout", "", settle,
		payment.SandboxTokenHeader, "guess").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/v1/payments/sandbox/checkout", s.adminToken, settle).Code,
		"a user token is not a sandbox token")

	var order models.Order
	decode(t, s.do(t, http.MethodGet, "/v1/orders/"+checkout.OrderID, "", nil), &order)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.Nil(t, order.TicketCode)
	assert.Empty(t, s.recorder.Types())
}

func TestSandboxRoutesRequireSandboxProcessor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := repotest.NewDB(t)
	registry := &services.Registry{Processor: payment.NewXenditProcessor(payment.XenditConfig{SecretKey: "xnd_key", CallbackToken: "cb"})}
	r := gin.New()
	setupRoutes(r, db, registry)

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/sandbox/checkout", bytes.NewBufferString(`{"order_id":"ORD-1","status":"approved"}`))
	req.Header.Set(payment.SandboxTokenHeader, sandboxToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDisabledStaffCannotUseGate(t *testing.T) {
	s := newTestServer(t)
	date := futureDate()
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/admin/availability", s.adminToken, gin.H{"date": date, "total_tickets": 5}).Code)
	order := s.placePaidOrder(t, date)

	w := s.do(t, http.MethodDelete, "/v1/admin/staff/"+s.staffID.String(), s.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/v1/staff/tickets/"+*order.TicketCode, s.staffToken, nil).Code)
	w = s.do(t, http.MethodPost, "/v1/staff/tickets/validate", s.staffToken, gin.H{"ticket_code": *order.TicketCode})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	ghostToken, err := helpers.GenerateToken(uuid.New(), models.RoleStaff, models.PrincipalStaff)
	require.NoError(t, err)
	w = s.do(t, http.MethodPost, "/v1/staff/tickets/validate", ghostToken, gin.H{"ticket_code": *order.TicketCode})
	assert.Equal(t, http.StatusForbidden, w.Code, "token for a staff member that does not exist")

	decode(t, s.do(t, http.MethodGet, "/v1/orders/"+order.OrderID, "", nil), &order)
	assert.False(t, order.Validated)
	assert.Equal(t, []string{events.OrderApproved}, s.recorder.Types())

	w = s.do(t, http.MethodPost, "/v1/staff/tickets/validate", s.adminToken, gin.H{"ticket_code": *order.TicketCode})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var redemption services.RedemptionResult
	decode(t, w, &redemption)
	assert.Equal(t, services.OutcomeAdmitted, redemption.Outcome)
	require.NotNil(t, redemption.Ticket.ValidatedByName)
	assert.Equal(t, "Administrator", *redemption.Ticket.ValidatedByName)
}

func TestCustomerPasswordChange(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/customers/register", "", gin.H{"name": "Ana", "email": "ana@example.com", "password": "oldpass1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reg struct {
		Token string `json:"token"`
	}
	decode(t, w, &reg)

	tests := []struct {
		name   string
		token  string
		body   gin.H
		status int
	}{
		{"no token", "", gin.H{"current_password": "oldpass1", "new_password": "newpass1"}, http.StatusUnauthorized},
		{"staff token", s.staffToken, gin.H{"current_password": "oldpass1", "new_password": "newpass1"}, http.StatusForbidden},
		{"wrong current", reg.Token, gin.H{"current_password": "nope123", "new_password": "newpass1"}, http.StatusBadRequest},
		{"short new", reg.Token, gin.H{"current_password": "oldpass1", "new_password": "abc"}, http.StatusBadRequest},
		{"missing fields", reg.Token, gin.H{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, s.do(t, http.MethodPut, "/v1/customers/me/password", tt.token, tt.body).Code)
		})
	}

	w = s.do(t, http.MethodPut, "/v1/customers/me/password", reg.Token, gin.H{"current_password": "oldpass1", "new_password": "newpass1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/v1/customers/login", "", gin.H{"email": "ana@example.com", "password": "oldpass1"}).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/v1/customers/login", "", gin.H{"email": "ana@example.com", "password": "newpass1"}).Code)
}

func TestCatalogAndAccounts(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/admin/tickets", s.adminToken, gin.H{"ticket_id": "vip", "name": "VIP", "price": 150.00})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/v1/admin/tickets", s.adminToken, gin.H{"ticket_id": "vip", "name": "VIP", "price": 150.00})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodDelete, "/v1/admin/tickets/vip", s.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/tickets/vip", "", nil).Code)

	var tickets []models.TicketType
	decode(t, s.do(t, http.MethodGet, "/v1/tickets", "", nil), &tickets)
	require.Len(t, tickets, 1)
	assert.Equal(t, "adult", tickets[0].TicketID)

	w = s.do(t, http.MethodPost, "/v1/customers/register", "", gin.H{"name": "Ana", "email": "ana@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/v1/customers/register", "", gin.H{"name": "Ana", "email": "ana@example.com", "password": "secret1"}).Code)

	w = s.do(t, http.MethodPost, "/v1/customers/login", "", gin.H{"email": "ana@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	decode(t, w, &login)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/v1/customers/login", "", gin.H{"email": "ana@example.com", "password": "wrong"}).Code)

	date := futureDate()
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/admin/availability", s.adminToken, gin.H{"date": date, "total_tickets": 5}).Code)
	w = s.do(t, http.MethodPost, "/v1/orders", login.Token, gin.H{
		"items":      []gin.H{{"ticket_id": "adult", "quantity": 1}},
		"visit_date": date,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var orders []models.Order
	decode(t, s.do(t, http.MethodGet, "/v1/customers/me/orders", login.Token, nil), &orders)
	require.Len(t, orders, 1)
	assert.Equal(t, "ana@example.com", orders[0].Customer.Email)

	w = s.do(t, http.MethodPost, "/v1/admin/staff", s.adminToken, gin.H{"email": "new@example.com", "name": "New", "password": "password1", "role": "staff"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/v1/staff/login", "", gin.H{"email": "new@example.com", "password": "password1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", nil).Code)
}
