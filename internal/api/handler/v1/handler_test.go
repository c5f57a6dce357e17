package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glory2yahpub/marketplace/internal/api/middleware"
	"github.com/glory2yahpub/marketplace/internal/config"
	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/pkg/jwthelper"
	"github.com/glory2yahpub/marketplace/internal/service"
)

const (
	testSigningKey = "handler-test-key"
	testUserAgent  = "handler-test"
	alice          = "+50911111111"
	bob            = "+50922222222"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testRouter struct {
	*gin.Engine
	members *gin.RouterGroup
	admin   *gin.RouterGroup
}

func newTestRouter() testRouter {
	engine := gin.New()
	authn := middleware.NewAuthenticator(testSigningKey)

	return testRouter{
		Engine:  engine,
		members: engine.Group("/api/v1", authn.VerifyJWT()),
		admin:   engine.Group("/api/v1/admin", authn.VerifyJWT(), middleware.RequireAdmin()),
	}
}

func call(t *testing.T, h http.Handler, method, path, identity string, role domain.Role, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", testUserAgent)
	if identity != "" {
		token, err := jwthelper.GenerateToken([]byte(testSigningKey), identity, string(role), testUserAgent)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type fakeAuth struct {
	users map[string]domain.User
}

func (f *fakeAuth) Signup(_ context.Context, user domain.User) (domain.User, error) {
	if _, ok := f.users[user.WhatsApp]; ok {
		return domain.User{}, service.ErrUserExists
	}
	user.Role = domain.RoleMember
	f.users[user.WhatsApp] = user
	return user, nil
}

func (f *fakeAuth) Login(_ context.Context, whatsapp, password string) (domain.User, error) {
	user, ok := f.users[whatsapp]
	if !ok {
		return domain.User{}, service.ErrUserNotFound
	}
	if user.Password != password {
		return domain.User{}, service.ErrWrongPassword
	}
	return user, nil
}

func TestAuthHandler(t *testing.T) {
	svc := &fakeAuth{users: map[string]domain.User{}}
	h := NewAuthHandler(&config.APIConfig{JWTSigningKey: testSigningKey}, svc)
	r := gin.New()
	r.POST("/auth/signup", h.HandleSignup)
	r.POST("/auth/login", h.HandleLogin)

	signup := map[string]string{
		"whatsapp":         "+509 1111-1111",
		"name":             "Alice",
		"password":         "secret123",
		"confirm_password": "secret123",
	}

	rec := call(t, r, http.MethodPost, "/auth/signup", "", "", signup)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[domain.User](t, rec)
	assert.Equal(t, alice, created.WhatsApp)
	assert.NotContains(t, rec.Body.String(), "secret123")

	rec = call(t, r, http.MethodPost, "/auth/signup", "", "", signup)
	assert.Equal(t, http.StatusConflict, rec.Code)

	weak := map[string]string{"whatsapp": bob, "name": "Bob", "password": "short", "confirm_password": "short"}
	rec = call(t, r, http.MethodPost, "/auth/signup", "", "", weak)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, r, http.MethodPost, "/auth/login", "", "", map[string]string{"whatsapp": alice, "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[struct {
		Token string `json:"token"`
	}](t, rec)
	claims, err := jwthelper.ParseToken([]byte(testSigningKey), login.Token)
	require.NoError(t, err)
	assert.Equal(t, alice, claims.Identity)
	assert.Equal(t, string(domain.RoleMember), claims.Role)
	assert.Equal(t, testUserAgent, claims.UserAgent)

	rec = call(t, r, http.MethodPost, "/auth/login", "", "", map[string]string{"whatsapp": alice, "password": "wrong123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = call(t, r, http.MethodPost, "/auth/login", "", "", map[string]string{"whatsapp": bob, "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type fakeLedger struct {
	LedgerService

	requested map[string]int64
	approve   func(requestID string) (domain.Account, error)
}

func (f *fakeLedger) RequestTopUp(_ context.Context, identity string, amount int64) (string, error) {
	f.requested[identity] += amount
	return "req-1", nil
}

func (f *fakeLedger) ApproveTopUp(_ context.Context, requestID string) (domain.Account, error) {
	return f.approve(requestID)
}

func (f *fakeLedger) AdminAdjust(_ context.Context, identity string, delta int64, _ string) (domain.Account, error) {
	if delta < -100 {
		return domain.Account{}, domain.ErrInsufficientBalance
	}
	return domain.Account{Identity: identity, Balance: 100 + delta}, nil
}

func TestLedgerHandler(t *testing.T) {
	approved := false
	svc := &fakeLedger{
		requested: map[string]int64{},
		approve: func(requestID string) (domain.Account, error) {
			if approved {
				return domain.Account{}, domain.ErrAlreadyApproved
			}
			approved = true
			return domain.Account{Identity: alice, Balance: 500}, nil
		},
	}
	h := NewLedgerHandler(svc)
	r := newTestRouter()
	r.members.POST("/topups", h.HandleRequestTopUp)
	r.admin.POST("/topups/:requestID/approve", h.HandleApproveTopUp)
	r.admin.POST("/accounts/:identity/adjust", h.HandleAdjustBalance)

	t.Run("top-up needs a token", func(t *testing.T) {
		rec := call(t, r, http.MethodPost, "/api/v1/topups", "", "", map[string]int64{"amount": 500})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("top-up is filed for the caller", func(t *testing.T) {
		rec := call(t, r, http.MethodPost, "/api/v1/topups", alice, domain.RoleMember, map[string]int64{"amount": 500})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"request_id":"req-1"}`, rec.Body.String())
		assert.Equal(t, int64(500), svc.requested[alice])
	})

	t.Run("non-positive amount", func(t *testing.T) {
		rec := call(t, r, http.MethodPost, "/api/v1/topups", alice, domain.RoleMember, map[string]int64{"amount": -5})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("members cannot approve", func(t *testing.T) {
		rec := call(t, r, http.MethodPost, "/api/v1/admin/topups/req-1/approve", alice, domain.RoleMember, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, approved)
	})

	t.Run("approve twice", func(t *testing.T) {
		rec := call(t, r, http.MethodPost, "/api/v1/admin/topups/req-1/approve", bob, domain.RoleAdmin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(500), decode[domain.Account](t, rec).Balance)

		rec = call(t, r, http.MethodPost, "/api/v1/admin/topups/req-1/approve", bob, domain.RoleAdmin, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("adjust normalizes the path identity", func(t *testing.T) {
		rec := call(t, r, http.MethodPost, "/api/v1/admin/accounts/50911111111/adjust", bob, domain.RoleAdmin,
			map[string]any{"delta": -40, "reason": "chargeback"})
		require.Equal(t, http.StatusOK, rec.Code)
		account := decode[domain.Account](t, rec)
		assert.Equal(t, alice, account.Identity)
		assert.Equal(t, int64(60), account.Balance)

		rec = call(t, r, http.MethodPost, "/api/v1/admin/accounts/50911111111/adjust", bob, domain.RoleAdmin,
			map[string]any{"delta": -400, "reason": "chargeback"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

type fakeNegotiations struct {
	NegotiationService

	checkout func(buyer string, lines []service.LineRequest) ([]domain.Negotiation, error)
	confirm  func(id, buyer string) (domain.Negotiation, error)
	quote    service.ShippingQuote
}

func (f *fakeNegotiations) Checkout(_ context.Context, buyer string, lines []service.LineRequest, _ string) ([]domain.Negotiation, error) {
	return f.checkout(buyer, lines)
}

func (f *fakeNegotiations) ConfirmPurchase(_ context.Context, id, buyer string) (domain.Negotiation, error) {
	return f.confirm(id, buyer)
}

func (f *fakeNegotiations) SetShippingCost(_ context.Context, id, seller string, quote service.ShippingQuote) (domain.Negotiation, error) {
	f.quote = quote
	cost := quote.Cost
	return domain.Negotiation{ID: id, Seller: seller, ShippingCost: &cost, Status: domain.NegotiationPriceSet}, nil
}

func TestNegotiationHandler_Checkout(t *testing.T) {
	svc := &fakeNegotiations{}
	h := NewNegotiationHandler(svc)
	r := newTestRouter()
	r.members.POST("/checkout", h.HandleCheckout)

	cart := map[string]any{
		"address": "Rue Capois, Port-au-Prince",
		"lines": []map[string]any{
			{"listing_id": "l-1", "quantity": 2},
			{"listing_id": "l-2", "quantity": 1},
		},
	}

	t.Run("all sellers", func(t *testing.T) {
		svc.checkout = func(buyer string, lines []service.LineRequest) ([]domain.Negotiation, error) {
			assert.Equal(t, alice, buyer)
			assert.Equal(t, []service.LineRequest{{ListingID: "l-1", Quantity: 2}, {ListingID: "l-2", Quantity: 1}}, lines)
			return []domain.Negotiation{{ID: "n-1"}, {ID: "n-2"}}, nil
		}

		rec := call(t, r, http.MethodPost, "/api/v1/checkout", alice, domain.RoleMember, cart)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Len(t, decode[[]domain.Negotiation](t, rec), 2)
	})

	t.Run("partial", func(t *testing.T) {
		svc.checkout = func(string, []service.LineRequest) ([]domain.Negotiation, error) {
			return []domain.Negotiation{{ID: "n-1"}}, domain.ErrListingNotPurchasable
		}

		rec := call(t, r, http.MethodPost, "/api/v1/checkout", alice, domain.RoleMember, cart)
		require.Equal(t, http.StatusMultiStatus, rec.Code)
		body := decode[struct {
			Negotiations []domain.Negotiation `json:"negotiations"`
			Error        struct {
				Error string `json:"error"`
			} `json:"error"`
		}](t, rec)
		require.Len(t, body.Negotiations, 1)
		assert.Equal(t, domain.ErrListingNotPurchasable.Error(), body.Error.Error)
	})

	t.Run("nothing opened", func(t *testing.T) {
		svc.checkout = func(string, []service.LineRequest) ([]domain.Negotiation, error) {
			return nil, domain.ErrListingNotFound
		}

		rec := call(t, r, http.MethodPost, "/api/v1/checkout", alice, domain.RoleMember, cart)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("empty cart", func(t *testing.T) {
		rec := call(t, r, http.MethodPost, "/api/v1/checkout", alice, domain.RoleMember, map[string]any{"address": "Rue Capois"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestNegotiationHandler_ConfirmAndShipping(t *testing.T) {
	svc := &fakeNegotiations{
		confirm: func(id, buyer string) (domain.Negotiation, error) {
			if buyer != alice {
				return domain.Negotiation{}, domain.ErrUnauthorized
			}
			return domain.Negotiation{}, domain.ErrInsufficientBalance
		},
	}
	h := NewNegotiationHandler(svc)
	r := newTestRouter()
	r.members.POST("/negotiations/:id/confirm", h.HandleConfirm)
	r.members.POST("/negotiations/:id/shipping", h.HandleSetShipping)

	rec := call(t, r, http.MethodPost, "/api/v1/negotiations/n-1/confirm", alice, domain.RoleMember, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(t, r, http.MethodPost, "/api/v1/negotiations/n-1/confirm", bob, domain.RoleMember, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, r, http.MethodPost, "/api/v1/negotiations/n-1/shipping", bob, domain.RoleMember,
		map[string]any{"cost": 15, "delivery_date": "2026-11-02"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.quote.DeliveryDate)
	assert.Equal(t, "2026-11-02", svc.quote.DeliveryDate.Format("2006-01-02"))
	assert.Equal(t, int64(15), svc.quote.Cost)

	rec = call(t, r, http.MethodPost, "/api/v1/negotiations/n-1/shipping", bob, domain.RoleMember,
		map[string]any{"cost": 15, "delivery_date": "next week"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
