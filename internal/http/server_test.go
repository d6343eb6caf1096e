package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"spendwise/internal/auth"
	"spendwise/internal/cache"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/services"
	"spendwise/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var fixedNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type ServerTestSuite struct {
	suite.Suite
	store  *memory.Store
	srv    *Server
	token  string
	bobTok string
}

func (suite *ServerTestSuite) SetupTest() {
	suite.store = memory.NewWithClock(func() time.Time { return fixedNow })
	suite.srv = suite.newServer(1000, suite.store)

	suite.createUser("alice", "alice-password")
	suite.createUser("bob", "bob-password")
	suite.token = suite.login("alice", "alice-password")
	suite.bobTok = suite.login("bob", "bob-password")
}

func (suite *ServerTestSuite) TearDownTest() {
	suite.srv.rateLimiter.Stop()
}

func (suite *ServerTestSuite) newServer(rateLimit int, pinger Pinger) *Server {
	logger := log.New(log.Config{Output: io.Discard})
	now := func() time.Time { return fixedNow }
	authSvc := auth.NewService(suite.store, testSecret, time.Hour,
		cache.NewLRUCacheWithClock[struct{}](100, time.Hour, now),
		auth.WithClock(now), auth.WithLogger(logger))

	return NewServer(":0", Dependencies{
		Expenses:  services.NewExpenseService(suite.store, nil, logger),
		Dashboard: services.NewDashboardService(suite.store, now, 6, 5),
		Savings:   services.NewSavingsService(suite.store, now),
		Auth:      authSvc,
		Store:     pinger,
	}, Options{RateLimitPerMinute: rateLimit, Logger: logger})
}

func (suite *ServerTestSuite) createUser(username, password string) {
	hash, err := auth.HashPassword(password)
	require.NoError(suite.T(), err)
	_, err = suite.store.CreateUser(context.Background(), username, hash)
	require.NoError(suite.T(), err)
}

func (suite *ServerTestSuite) login(username, password string) string {
	rr := suite.do(http.MethodPost, "/api/login", `{"username":"`+username+`","password":"`+password+`"}`, "")
	require.Equal(suite.T(), http.StatusOK, rr.Code, rr.Body.String())
	var resp loginResponse
	require.NoError(suite.T(), json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(suite.T(), resp.Token)
	return resp.Token
}

func (suite *ServerTestSuite) do(method, path, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	suite.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (suite *ServerTestSuite) createExpense(body string) core.Expense {
	rr := suite.do(http.MethodPost, "/api/expenses", body, suite.token)
	require.Equal(suite.T(), http.StatusCreated, rr.Code, rr.Body.String())
	var e core.Expense
	require.NoError(suite.T(), json.Unmarshal(rr.Body.Bytes(), &e))
	return e
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Error
}

func (suite *ServerTestSuite) TestHealthAndReady() {
	rr := suite.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(suite.T(), http.StatusOK, rr.Code)
	assert.Contains(suite.T(), rr.Body.String(), `"status":"ok"`)
	assert.NotEmpty(suite.T(), rr.Header().Get("X-Request-ID"))
	assert.Equal(suite.T(), "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = suite.do(http.MethodGet, "/readyz", "", "")
	assert.Equal(suite.T(), http.StatusOK, rr.Code)

	suite.srv.rateLimiter.Stop()
	suite.srv = suite.newServer(1000, failingPinger{})
	rr = suite.do(http.MethodGet, "/readyz", "", "")
	assert.Equal(suite.T(), http.StatusServiceUnavailable, rr.Code)
	assert.Contains(suite.T(), rr.Body.String(), "not_ready")
}

func (suite *ServerTestSuite) TestLogin() {
	rr := suite.do(http.MethodPost, "/api/login", `{"username":"alice","password":"nope"}`, "")
	assert.Equal(suite.T(), http.StatusUnauthorized, rr.Code)
	assert.Equal(suite.T(), CodeUnauthorized, decodeError(suite.T(), rr).Code)

	rr = suite.do(http.MethodPost, "/api/login", `{"username":"alice"}`, "")
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(suite.T(), "password", decodeError(suite.T(), rr).Field)

	rr = suite.do(http.MethodPost, "/api/login", `{"username":`, "")
	assert.Equal(suite.T(), http.StatusBadRequest, rr.Code)

	rr = suite.do(http.MethodPost, "/api/login", `{"username":"a","password":"b","extra":1}`, "")
	assert.Equal(suite.T(), http.StatusBadRequest, rr.Code)
}

func (suite *ServerTestSuite) TestAuthenticationRequired() {
	for _, path := range []string{"/api/expenses", "/api/dashboard", "/api/savings"} {
		rr := suite.do(http.MethodGet, path, "", "")
		assert.Equal(suite.T(), http.StatusUnauthorized, rr.Code, path)
		assert.NotEmpty(suite.T(), rr.Header().Get("WWW-Authenticate"))
	}
	rr := suite.do(http.MethodGet, "/api/expenses", "", "garbage")
	assert.Equal(suite.T(), http.StatusUnauthorized, rr.Code)

	rr = suite.do(http.MethodGet, "/api/categories", "", "")
	assert.Equal(suite.T(), http.StatusOK, rr.Code)
	assert.JSONEq(suite.T(),
		`{"categories":["Food","Transportation","Entertainment","Shopping","Bills","Other"]}`,
		rr.Body.String())
}

func (suite *ServerTestSuite) TestLogoutRevokesToken() {
	rr := suite.do(http.MethodPost, "/api/logout", "", suite.token)
	assert.Equal(suite.T(), http.StatusNoContent, rr.Code)

	rr = suite.do(http.MethodGet, "/api/expenses", "", suite.token)
	assert.Equal(suite.T(), http.StatusUnauthorized, rr.Code)

	rr = suite.do(http.MethodGet, "/api/expenses", "", suite.bobTok)
	assert.Equal(suite.T(), http.StatusOK, rr.Code)
}

func (suite *ServerTestSuite) TestCreateAndGetExpense() {
	e := suite.createExpense(`{"date":"2025-03-10","amount":"12.50","category":"food","description":"  lunch\u0007 "}`)
	assert.Equal(suite.T(), core.Food, e.Category)
	assert.Equal(suite.T(), int64(1250), e.Amount.Cents)
	assert.Equal(suite.T(), "lunch", e.Description)
	assert.NotEmpty(suite.T(), e.UserID)

	rr := suite.do(http.MethodGet, "/api/expenses/"+e.ID, "", suite.token)
	assert.Equal(suite.T(), http.StatusOK, rr.Code)
	assert.Contains(suite.T(), rr.Body.String(), `"amount":"12.50"`)
	assert.Contains(suite.T(), rr.Body.String(), `"date":"2025-03-10"`)

	// Other users cannot see the record at all.
	rr = suite.do(http.MethodGet, "/api/expenses/"+e.ID, "", suite.bobTok)
	assert.Equal(suite.T(), http.StatusNotFound, rr.Code)
}

func (suite *ServerTestSuite) TestCreateExpenseValidation() {
	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"bad date", `{"date":"2025-02-30","amount":"1","category":"Food","description":"x"}`, 422, "date"},
		{"unknown category", `{"date":"2025-03-01","amount":"1","category":"Travel","description":"x"}`, 422, "category"},
		{"negative amount", `{"date":"2025-03-01","amount":"-1","category":"Food","description":"x"}`, 422, "amount"},
		{"amount beyond int64 cents", `{"date":"2025-03-01","amount":"184467440737095517.16","category":"Food","description":"x"}`, 422, "amount"},
		{"unparsable amount", `{"date":"2025-03-01","amount":"ten","category":"Food","description":"x"}`, 422, "amount"},
		{"missing amount", `{"date":"2025-03-01","category":"Food","description":"x"}`, 422, "amount"},
		{"blank description", `{"date":"2025-03-01","amount":"1","category":"Food","description":" \n "}`, 422, "description"},
		{"long description", `{"date":"2025-03-01","amount":"1","category":"Food","description":"` + strings.Repeat("x", 201) + `"}`, 422, "description"},
		{"not json", `date=2025-03-01`, 400, ""},
		{"empty body", ``, 400, ""},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			rr := suite.do(http.MethodPost, "/api/expenses", tt.body, suite.token)
			assert.Equal(suite.T(), tt.status, rr.Code, rr.Body.String())
			assert.Equal(suite.T(), tt.field, decodeError(suite.T(), rr).Field)
		})
	}
}

func (suite *ServerTestSuite) TestListExpensesWithFilters() {
	suite.createExpense(`{"date":"2025-01-05","amount":"10","category":"Food","description":"Groceries"}`)
	suite.createExpense(`{"date":"2025-02-05","amount":"20","category":"Bills","description":"Power bill"}`)
	suite.createExpense(`{"date":"2025-03-05","amount":"30","category":"Food","description":"Dinner out"}`)

	rr := suite.do(http.MethodGet, "/api/expenses", "", suite.token)
	require.Equal(suite.T(), http.StatusOK, rr.Code)
	var all expenseListResponse
	require.NoError(suite.T(), json.Unmarshal(rr.Body.Bytes(), &all))
	require.Len(suite.T(), all.Expenses, 3)
	assert.Equal(suite.T(), "2025-03-05", all.Expenses[0].Date.String(), "newest first")
	assert.Equal(suite.T(), int64(6000), all.Total.Cents)

	rr = suite.do(http.MethodGet, "/api/expenses?category=food&from=2025-02-01&q=DINNER", "", suite.token)
	var filtered expenseListResponse
	require.NoError(suite.T(), json.Unmarshal(rr.Body.Bytes(), &filtered))
	require.Equal(suite.T(), 1, filtered.Count)
	assert.Equal(suite.T(), "Dinner out", filtered.Expenses[0].Description)

	rr = suite.do(http.MethodGet, "/api/expenses?from=2025-03-01&to=2025-01-01", "", suite.token)
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(suite.T(), "to", decodeError(suite.T(), rr).Field)

	rr = suite.do(http.MethodGet, "/api/expenses", "", suite.bobTok)
	assert.JSONEq(suite.T(), `{"expenses":[],"count":0,"total":"0.00"}`, rr.Body.String())
}

func (suite *ServerTestSuite) TestPatchAndReplaceExpense() {
	e := suite.createExpense(`{"date":"2025-03-10","amount":"10","category":"Food","description":"lunch"}`)

	rr := suite.do(http.MethodPatch, "/api/expenses/"+e.ID, `{"amount":"15.25"}`, suite.token)
	require.Equal(suite.T(), http.StatusOK, rr.Code, rr.Body.String())
	var patched core.Expense
	require.NoError(suite.T(), json.Unmarshal(rr.Body.Bytes(), &patched))
	assert.Equal(suite.T(), int64(1525), patched.Amount.Cents)
	assert.Equal(suite.T(), "lunch", patched.Description)

	rr = suite.do(http.MethodPatch, "/api/expenses/"+e.ID, `{}`, suite.token)
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, rr.Code)

	rr = suite.do(http.MethodPatch, "/api/expenses/"+e.ID, `{"category":"Nope"}`, suite.token)
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, rr.Code)

	rr = suite.do(http.MethodPut, "/api/expenses/"+e.ID,
		`{"date":"2025-03-11","amount":"9","category":"Other","description":"replaced"}`, suite.token)
	require.Equal(suite.T(), http.StatusOK, rr.Code, rr.Body.String())
	var replaced core.Expense
	require.NoError(suite.T(), json.Unmarshal(rr.Body.Bytes(), &replaced))
	assert.Equal(suite.T(), core.Other, replaced.Category)
	assert.Equal(suite.T(), e.ID, replaced.ID)

	rr = suite.do(http.MethodPatch, "/api/expenses/"+e.ID, `{"amount":"1"}`, suite.bobTok)
	assert.Equal(suite.T(), http.StatusNotFound, rr.Code)
}

func (suite *ServerTestSuite) TestDeleteRequiresConfirmation() {
	e := suite.createExpense(`{"date":"2025-03-10","amount":"10","category":"Food","description":"lunch"}`)

	rr := suite.do(http.MethodDelete, "/api/expenses/"+e.ID, "", suite.token)
	assert.Equal(suite.T(), http.StatusPreconditionRequired, rr.Code)
	assert.Contains(suite.T(), rr.Body.String(), e.ID)

	rr = suite.do(http.MethodGet, "/api/expenses/"+e.ID, "", suite.token)
	assert.Equal(suite.T(), http.StatusOK, rr.Code, "unconfirmed delete must not remove the record")

	rr = suite.do(http.MethodDelete, "/api/expenses/"+e.ID+"?confirm=true", "", suite.bobTok)
	assert.Equal(suite.T(), http.StatusNotFound, rr.Code)

	rr = suite.do(http.MethodDelete, "/api/expenses/"+e.ID+"?confirm=true", "", suite.token)
	assert.Equal(suite.T(), http.StatusNoContent, rr.Code)

	rr = suite.do(http.MethodDelete, "/api/expenses/"+e.ID+"?confirm=true", "", suite.token)
	assert.Equal(suite.T(), http.StatusNotFound, rr.Code)

	rr = suite.do(http.MethodDelete, "/api/expenses/unknown", "", suite.token)
	assert.Equal(suite.T(), http.StatusNotFound, rr.Code)
}

func (suite *ServerTestSuite) TestDashboard() {
	suite.createExpense(`{"date":"2025-03-01","amount":"40","category":"Food","description":"a"}`)
	suite.createExpense(`{"date":"2025-02-01","amount":"25","category":"Bills","description":"b"}`)

	rr := suite.do(http.MethodGet, "/api/dashboard?months=3&recent=1", "", suite.token)
	require.Equal(suite.T(), http.StatusOK, rr.Code, rr.Body.String())

	var dash struct {
		Stats struct {
			Total       string `json:"total"`
			ThisMonth   string `json:"this_month"`
			TopCategory struct {
				Category string `json:"category"`
				Amount   string `json:"amount"`
			} `json:"top_category"`
		} `json:"stats"`
		Series struct {
			Labels []string            `json:"labels"`
			Series map[string][]string `json:"series"`
		} `json:"series"`
		Recent []core.Expense `json:"recent"`
	}
	require.NoError(suite.T(), json.Unmarshal(rr.Body.Bytes(), &dash))
	assert.Equal(suite.T(), "65.00", dash.Stats.Total)
	assert.Equal(suite.T(), "40.00", dash.Stats.ThisMonth)
	assert.Equal(suite.T(), "Food", dash.Stats.TopCategory.Category)
	assert.Equal(suite.T(), []string{"Jan 2025", "Feb 2025", "Mar 2025"}, dash.Series.Labels)
	assert.Equal(suite.T(), []string{"0.00", "25.00", "0.00"}, dash.Series.Series["Bills"])
	assert.Len(suite.T(), dash.Recent, 1)

	for _, q := range []string{"months=0x", "months=61", "recent=-1"} {
		rr = suite.do(http.MethodGet, "/api/dashboard?"+q, "", suite.token)
		assert.Equal(suite.T(), http.StatusUnprocessableEntity, rr.Code, q)
	}
}

func (suite *ServerTestSuite) TestSavings() {
	suite.createExpense(`{"date":"2025-03-02","amount":"3000","category":"Bills","description":"rent"}`)

	rr := suite.do(http.MethodGet, "/api/savings?income=5000&goal=1500&reduction=0&months=3", "", suite.token)
	require.Equal(suite.T(), http.StatusOK, rr.Code, rr.Body.String())

	var proj struct {
		Series struct {
			Labels    []string `json:"labels"`
			Projected []string `json:"projected"`
		} `json:"series"`
		Insights struct {
			NetMonthly    string `json:"net_monthly"`
			MonthsToGoal  int    `json:"months_to_goal"`
			GoalReachable bool   `json:"goal_reachable"`
		} `json:"insights"`
	}
	require.NoError(suite.T(), json.Unmarshal(rr.Body.Bytes(), &proj))
	assert.Equal(suite.T(), []string{"March 2025", "April 2025", "May 2025"}, proj.Series.Labels)
	assert.Equal(suite.T(), []string{"2000.00", "4000.00", "6000.00"}, proj.Series.Projected)
	assert.Equal(suite.T(), "2000.00", proj.Insights.NetMonthly)
	assert.Equal(suite.T(), 1, proj.Insights.MonthsToGoal)
	assert.True(suite.T(), proj.Insights.GoalReachable)

	rr = suite.do(http.MethodGet, "/api/savings", "", suite.token)
	assert.Equal(suite.T(), http.StatusOK, rr.Code, "defaults apply when parameters are omitted")

	for _, q := range []string{"months=0", "months=61", "income=-5", "reduction=1001", "goal=abc", "income=80000000000000000"} {
		rr = suite.do(http.MethodGet, "/api/savings?"+q, "", suite.token)
		assert.Equal(suite.T(), http.StatusUnprocessableEntity, rr.Code, q)
	}
}

func (suite *ServerTestSuite) TestRateLimit() {
	suite.srv.rateLimiter.Stop()
	suite.srv = suite.newServer(2, suite.store)

	for i := 0; i < 2; i++ {
		assert.Equal(suite.T(), http.StatusOK, suite.do(http.MethodGet, "/healthz", "", "").Code)
	}
	rr := suite.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(suite.T(), http.StatusTooManyRequests, rr.Code)
	assert.Equal(suite.T(), CodeRateLimited, decodeError(suite.T(), rr).Code)
	assert.NotEmpty(suite.T(), rr.Header().Get("Retry-After"))
}

func (suite *ServerTestSuite) TestMetrics() {
	suite.createExpense(`{"date":"2025-03-10","amount":"10","category":"Food","description":"lunch"}`)
	rr := suite.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(suite.T(), http.StatusOK, rr.Code)
	assert.Contains(suite.T(), rr.Body.String(), "expenses_created_total 1")
	assert.Contains(suite.T(), rr.Body.String(), "# TYPE http_requests_total counter")
}

func (suite *ServerTestSuite) TestMethodNotAllowed() {
	rr := suite.do(http.MethodPost, "/api/dashboard", "", suite.token)
	assert.Equal(suite.T(), http.StatusMethodNotAllowed, rr.Code)
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
