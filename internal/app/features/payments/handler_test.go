package payments_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/teamreg/internal/app/features/payments"
	"github.com/dalemusser/teamreg/internal/app/system/ratelimit"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/dalemusser/teamreg/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	app     *testutil.App
	router  http.Handler
	team    *models.Team
	payment *models.Payment
	leader  testutil.TestUser
	member  testutil.TestUser
}

func setup(t *testing.T, limiter *ratelimit.Limiter) *fixture {
	t.Helper()
	app := testutil.NewApp(t)
	h := payments.NewHandler(app.Services.Ledger, nil, limiter, zap.NewNop())
	r := chi.NewRouter()
	r.Mount("/api/payments", payments.Routes(h))

	leader := app.Register(t, "Lead", "lead@example.com")
	reg := app.Team(t, "Team", leader, "member@example.com")
	member, err := app.DB.Users.GetByEmail(t.Context(), "member@example.com")
	require.NoError(t, err)

	return &fixture{
		app:     app,
		router:  r,
		team:    reg.Team,
		payment: reg.Payment,
		leader:  testutil.UserFrom(*app.User(t, leader.ID)),
		member:  testutil.UserFrom(*member),
	}
}

func (f *fixture) do(req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) webhook(body string) *testutil.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/payments/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return f.do(req)
}

func (f *fixture) status(t *testing.T) string {
	t.Helper()
	p, err := f.app.DB.Payments.GetByID(t.Context(), f.payment.ID)
	require.NoError(t, err)
	return p.Status
}

func TestCheckout(t *testing.T) {
	f := setup(t, nil)

	rec := f.do(testutil.NewAuthenticatedRequest("POST", "/api/payments/"+f.payment.ID.Hex()+"/checkout", nil, f.leader))
	rec.AssertStatus(t, http.StatusOK)

	var body struct {
		Payment          models.Payment `json:"payment"`
		OrderID          string         `json:"order_id"`
		PaymentSessionID string         `json:"payment_session_id"`
	}
	require.NoError(t, rec.DecodeJSON(&body))
	assert.Equal(t, models.PaymentPending, body.Payment.Status)
	assert.Equal(t, f.payment.GatewayOrderID, body.OrderID)
	assert.NotEmpty(t, body.PaymentSessionID)

	order, ok := f.app.Gateway.Order(f.payment.GatewayOrderID)
	require.True(t, ok)
	assert.Equal(t, int64(50000), order.AmountInPaise)
	assert.Equal(t, "lead@example.com", order.CustomerEmail)
}

func TestCheckout_NotPayer(t *testing.T) {
	f := setup(t, nil)
	rec := f.do(testutil.NewAuthenticatedRequest("POST", "/api/payments/"+f.payment.ID.Hex()+"/checkout", nil, f.member))
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestCheckout_GatewayFailureLeavesCreated(t *testing.T) {
	f := setup(t, nil)
	f.app.Gateway.CreateErr = errors.New("provider down")

	rec := f.do(testutil.NewAuthenticatedRequest("POST", "/api/payments/"+f.payment.ID.Hex()+"/checkout", nil, f.leader))
	rec.AssertStatus(t, http.StatusBadGateway)
	rec.AssertContains(t, "create order failed")
	assert.NotContains(t, rec.Body.String(), "provider down")
	assert.Equal(t, models.PaymentCreated, f.status(t))
}

func TestGet_Access(t *testing.T) {
	f := setup(t, nil)
	target := "/api/payments/" + f.payment.ID.Hex()

	f.do(testutil.NewAuthenticatedRequest("GET", target, nil, f.leader)).AssertStatus(t, http.StatusOK)
	f.do(testutil.NewAuthenticatedRequest("GET", target, nil, f.member)).AssertStatus(t, http.StatusOK)
	f.do(testutil.NewAuthenticatedRequest("GET", target, nil, testutil.OrganizerUser())).AssertStatus(t, http.StatusOK)
	f.do(testutil.NewAuthenticatedRequest("GET", target, nil, testutil.SoloUser())).AssertStatus(t, http.StatusForbidden)
	f.do(testutil.NewAuthenticatedRequest("GET", "/api/payments/64b7f0000000000000000000", nil, f.leader)).AssertStatus(t, http.StatusNotFound)
	f.do(testutil.NewRequest("GET", target)).AssertStatus(t, http.StatusUnauthorized)
}

func TestWebhook_SuccessLocksTeamAndIsSticky(t *testing.T) {
	f := setup(t, nil)
	order := f.payment.GatewayOrderID

	rec := f.webhook(`{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"` + order + `"},"payment":{"payment_status":"SUCCESS","cf_payment_id":5114910123}}}`)
	rec.AssertStatus(t, http.StatusOK)
	assert.Equal(t, models.PaymentSuccess, f.status(t))

	p, err := f.app.DB.Payments.GetByID(t.Context(), f.payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "5114910123", p.ReferenceID)

	team, err := f.app.DB.Teams.GetByID(t.Context(), f.team.ID)
	require.NoError(t, err)
	assert.True(t, team.Locked)

	// a late failure report does not undo success
	rec = f.webhook(`{"order_id":"` + order + `","order_status":"failed"}`)
	rec.AssertStatus(t, http.StatusOK)
	assert.Equal(t, models.PaymentSuccess, f.status(t))
}

func TestWebhook_AlwaysOK(t *testing.T) {
	f := setup(t, nil)

	for _, body := range []string{
		`not json`,
		`{}`,
		`{"order_id":"ORD_unknown","order_status":"PAID"}`,
		``,
	} {
		rec := f.webhook(body)
		rec.AssertStatus(t, http.StatusOK)
	}
	assert.Equal(t, models.PaymentCreated, f.status(t))
}

func TestWebhook_OverLimitStillOK(t *testing.T) {
	limiter := ratelimit.New(2, time.Minute)
	t.Cleanup(limiter.Close)
	f := setup(t, limiter)

	f.webhook(`{}`).AssertStatus(t, http.StatusOK)
	f.webhook(`{}`).AssertStatus(t, http.StatusOK)

	// acknowledged but not applied; the poller picks it up later
	order := "ORD_" + f.payment.ID.Hex()
	f.webhook(`{"order_id":"` + order + `","order_status":"PAID"}`).AssertStatus(t, http.StatusOK)
	assert.Equal(t, models.PaymentCreated, f.status(t))
}
